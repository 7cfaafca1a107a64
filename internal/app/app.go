// Package app assembles the conversation controller from configuration. Every
// presentation (web, terminal, telegram) starts from here.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/suPer8Hu/nextile-ai/internal/ai"
	"github.com/suPer8Hu/nextile-ai/internal/chat"
	"github.com/suPer8Hu/nextile-ai/internal/config"
	"github.com/suPer8Hu/nextile-ai/internal/observability"
	"github.com/suPer8Hu/nextile-ai/internal/persona"
	"github.com/suPer8Hu/nextile-ai/internal/store"
	"github.com/suPer8Hu/nextile-ai/internal/store/rabbitmq"
)

type App struct {
	Config  config.Config
	Persona *persona.Holder
	Chat    *chat.Service

	closers []func() error
}

// Build wires persona, store, gateway and the optional saved-conversation
// publisher. The persona file is watched until ctx ends.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	log := observability.Logger()
	a := &App{Config: cfg}

	p, err := persona.Load(cfg.PersonaPath)
	if err != nil {
		return nil, err
	}
	a.Persona = persona.NewHolder(p)
	if err := persona.Watch(ctx, cfg.PersonaPath, a.Persona); err != nil {
		log.Warn("persona reload disabled", "err", err)
	}

	st, closeStore, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	a.closers = append(a.closers, closeStore)

	gw, err := ai.NewGatewayFromConfig(ctx, cfg, a.Persona)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("inference gateway: %w", err)
	}

	var opts []chat.Option
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("rabbit connect: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		opts = append(opts, chat.WithNotifier(pub))
	}

	a.Chat = chat.NewService(st, gw, a.Persona, opts...)
	log.Info("controller ready",
		"store", cfg.StoreBackend,
		"chat_provider", cfg.ChatProvider,
		"image_provider", cfg.ImageProvider,
		"events", cfg.RabbitURL != "",
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
