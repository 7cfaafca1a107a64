package ai

import (
	"context"
	"strings"

	"github.com/suPer8Hu/nextile-ai/internal/config"
	"github.com/suPer8Hu/nextile-ai/internal/persona"
)

const (
	ProviderHuggingFace = "huggingface"
	ProviderOpenRouter  = "openrouter"
	ProviderOllama      = "ollama"
	ProviderOpenAI      = "openai"
)

func ChatProviders(cfg config.Config) *Registry[StreamProvider] {
	reg := NewRegistry[StreamProvider]()
	reg.Register(ProviderHuggingFace, func(ctx context.Context, model string) (StreamProvider, error) {
		return NewHuggingFaceChat(cfg.ChatBaseURL, cfg.HFToken, model, cfg.ChatMaxTokens, nil), nil
	})
	reg.Register(ProviderOpenRouter, func(ctx context.Context, model string) (StreamProvider, error) {
		p := NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, model, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName)
		p.MaxTokens = cfg.ChatMaxTokens
		return p, nil
	})
	reg.Register(ProviderOllama, func(ctx context.Context, model string) (StreamProvider, error) {
		p := NewOllamaProvider(cfg.OllamaBaseURL, strings.TrimSpace(model))
		p.MaxTokens = cfg.ChatMaxTokens
		return p, nil
	})
	return reg
}

func ImageProviders(cfg config.Config) *Registry[ImageProvider] {
	reg := NewRegistry[ImageProvider]()
	reg.Register(ProviderHuggingFace, func(ctx context.Context, model string) (ImageProvider, error) {
		return NewHuggingFaceImage(cfg.ImageBaseURL, cfg.HFToken, model), nil
	})
	reg.Register(ProviderOpenAI, func(ctx context.Context, model string) (ImageProvider, error) {
		// the default model names an HF checkpoint
		if model == DefaultImageModel {
			model = ""
		}
		return NewOpenAIImage(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, model), nil
	})
	return reg
}

// NewGatewayFromConfig resolves the configured providers.
func NewGatewayFromConfig(ctx context.Context, cfg config.Config, p *persona.Holder) (*Gateway, error) {
	chatProvider, err := ChatProviders(cfg).Get(ctx, cfg.ChatProvider, cfg.ChatModel)
	if err != nil {
		return nil, err
	}
	imageProvider, err := ImageProviders(cfg).Get(ctx, cfg.ImageProvider, cfg.ImageModel)
	if err != nil {
		return nil, err
	}

	opts := []GatewayOption{WithWindow(cfg.ChatContextWindowSize)}
	if cfg.ChatTokenBudget > 0 {
		opts = append(opts, WithTokenBudget(cfg.ChatTokenBudget, NewTokenCounter("")))
	}
	return NewGateway(chatProvider, imageProvider, p, opts...), nil
}
