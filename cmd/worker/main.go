package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sourcegraph/conc/pool"
	"github.com/suPer8Hu/nextile-ai/internal/archive"
	"github.com/suPer8Hu/nextile-ai/internal/config"
	"github.com/suPer8Hu/nextile-ai/internal/db"
	"github.com/suPer8Hu/nextile-ai/internal/observability"
	"github.com/suPer8Hu/nextile-ai/internal/store/rabbitmq"
)

func main() {
	cfg, err := config.LoadWithoutCredential("")
	if err != nil {
		observability.Logger().Error("load config", "err", err)
		os.Exit(1)
	}
	log := observability.Setup(os.Stdout, cfg.LogLevel).With("component", "worker")

	if cfg.RabbitURL == "" {
		log.Error("RABBIT_URL is required for the worker")
		os.Exit(1)
	}

	gdb, err := db.Connect(archiveDriver(cfg.ArchiveDSN), cfg.ArchiveDSN)
	if err != nil {
		log.Error("open archive", "err", err)
		os.Exit(1)
	}
	repo, err := archive.NewRepo(gdb)
	if err != nil {
		log.Error("migrate archive", "err", err)
		os.Exit(1)
	}

	consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, cfg.WorkerConcurrency)
	if err != nil {
		log.Error("rabbit connect", "err", err)
		os.Exit(1)
	}
	defer consumer.Close()

	msgs, err := consumer.Deliveries()
	if err != nil {
		log.Error("consume", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.ArchiveHTTPAddr != "" {
		srv := &http.Server{
			Addr:              cfg.ArchiveHTTPAddr,
			Handler:           archive.NewRouter(repo),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info("archive api listening", "addr", cfg.ArchiveHTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("archive api", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	log.Info("worker started", "queue", cfg.RabbitQueue, "concurrency", cfg.WorkerConcurrency)

	workers := pool.New().WithMaxGoroutines(cfg.WorkerConcurrency)
	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			workers.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Warn("delivery channel closed")
				workers.Wait()
				return
			}
			workers.Go(func() {
				handleDelivery(ctx, consumer, repo, d)
			})
		}
	}
}

func handleDelivery(ctx context.Context, consumer *rabbitmq.Consumer, repo *archive.Repo, d amqp.Delivery) {
	log := observability.Logger().With("component", "worker", "message_id", d.MessageId)
	start := time.Now()

	err := archiveEvent(ctx, repo, d.Body)
	if err != nil {
		log.Warn("archive failed", "err", err, "cost", time.Since(start).String())
	}
	if serr := consumer.Settle(context.WithoutCancel(ctx), d, err); serr != nil {
		log.Error("settle delivery", "err", serr)
	}
}

func archiveEvent(ctx context.Context, repo *archive.Repo, body []byte) error {
	ev, err := rabbitmq.DecodeSavedEvent(body)
	if err != nil {
		return err
	}
	written, err := repo.Upsert(ctx, ev.Conversation, ev.SavedAt)
	if err != nil {
		return err
	}
	observability.Logger().Debug("archived", "conversation_id", ev.ID, "written", written, "messages", ev.MessageCount)
	return nil
}

func archiveDriver(dsn string) string {
	if strings.HasPrefix(dsn, "file:") || strings.HasSuffix(dsn, ".db") {
		return db.DriverSQLite
	}
	return db.DriverMySQL
}
