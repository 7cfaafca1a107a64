package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/suPer8Hu/nextile-ai/internal/app"
	"github.com/suPer8Hu/nextile-ai/internal/config"
	"github.com/suPer8Hu/nextile-ai/internal/observability"
	"github.com/suPer8Hu/nextile-ai/internal/terminal"
)

func main() {
	cfg, err := config.Load("")
	if errors.Is(err, config.ErrMissingCredential) {
		fmt.Fprintln(os.Stderr, config.MissingCredentialMessage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	// stdout belongs to the conversation
	observability.Setup(os.Stderr, cfg.LogLevel)

	// Ctrl+C is handled by the REPL itself
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer a.Close()

	repl := terminal.New(a.Chat, os.Stdout)
	if dir := os.Getenv("NEXTILE_IMAGE_DIR"); dir != "" {
		repl.ImageDir = dir
	}
	if err := repl.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
