package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/suPer8Hu/nextile-ai/internal/app"
	"github.com/suPer8Hu/nextile-ai/internal/config"
	"github.com/suPer8Hu/nextile-ai/internal/httpapi"
	"github.com/suPer8Hu/nextile-ai/internal/httpapi/handlers"
	"github.com/suPer8Hu/nextile-ai/internal/observability"
)

const (
	sweepInterval  = 10 * time.Minute
	sessionMaxIdle = 24 * time.Hour
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
	log := observability.Setup(os.Stdout, cfg.LogLevel).With("component", "web")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Error("startup", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	sessions := handlers.NewSessions(a.Chat.StartNew)

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		// browsers get a new session after every restart
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			log.Error("session secret", "err", err)
			os.Exit(1)
		}
		log.Warn("SESSION_SECRET not set, using a random one")
	}

	r := httpapi.NewRouter(handlers.NewHandler(a.Chat, sessions), httpapi.Options{
		SessionSecret: secret,
		AllowOrigins:  cfg.CORSOrigins,
		AccessLog:     cfg.AccessLog,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go sweep(ctx, sessions)

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", "err", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
}

func sweep(ctx context.Context, sessions *handlers.Sessions) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := sessions.Sweep(sessionMaxIdle); n > 0 {
				observability.Logger().Debug("sessions swept", "count", n, "remaining", sessions.Len())
			}
		}
	}
}
