package ai

import (
	"context"
	"errors"
	"io"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

const DefaultHFRouterURL = "https://router.huggingface.co/v1"

// HuggingFaceChat uses the OpenAI-compatible Hugging Face router.
type HuggingFaceChat struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func NewHuggingFaceChat(baseURL, token, model string, maxTokens int, httpClient *http.Client) *HuggingFaceChat {
	cfg := openai.DefaultConfig(token)
	if baseURL == "" {
		baseURL = DefaultHFRouterURL
	}
	cfg.BaseURL = baseURL
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &HuggingFaceChat{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (p *HuggingFaceChat) request(messages []Message, stream bool) openai.ChatCompletionRequest {
	history := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		history = append(history, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return openai.ChatCompletionRequest{
		Model:     p.model,
		Messages:  history,
		MaxTokens: p.maxTokens,
		Stream:    stream,
	}
}

func (p *HuggingFaceChat) StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		stream, err := p.client.CreateChatCompletionStream(ctx, p.request(messages, true))
		if err != nil {
			errs <- err
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errs <- err
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if delta := resp.Choices[0].Delta.Content; delta != "" {
				chunks <- delta
			}
		}
	}()

	return chunks, errs
}
