package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/suPer8Hu/nextile-ai/internal/app"
	"github.com/suPer8Hu/nextile-ai/internal/config"
	"github.com/suPer8Hu/nextile-ai/internal/observability"
	"github.com/suPer8Hu/nextile-ai/internal/telegram"
)

func main() {
	cfg, err := config.Load("")
	if errors.Is(err, config.ErrMissingCredential) {
		fmt.Fprintln(os.Stderr, config.MissingCredentialMessage)
		os.Exit(1)
	}
	if err != nil {
		observability.Logger().Error("load config", "err", err)
		os.Exit(1)
	}
	log := observability.Setup(os.Stdout, cfg.LogLevel).With("component", "telegram")

	if cfg.TelegramAPIToken == "" {
		log.Error("TELEGRAM_APITOKEN is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Error("startup", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		log.Error("create bot", "err", err)
		os.Exit(1)
	}
	log.Info("authorized", "account", botAPI.Self.UserName)

	if _, err := botAPI.Request(telegram.Commands()); err != nil {
		log.Warn("register commands", "err", err)
	}

	u := api.NewUpdate(0)
	u.Timeout = 60
	updates := botAPI.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		botAPI.StopReceivingUpdates()
	}()

	telegram.New(botAPI, a.Chat).Run(ctx, updates)
	log.Info("telegram bot stopped")
}
