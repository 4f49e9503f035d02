package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aminmomin2/convocate/internal/api"
	"github.com/aminmomin2/convocate/internal/config"
	"github.com/aminmomin2/convocate/internal/engine"
	"github.com/aminmomin2/convocate/internal/events"
	"github.com/aminmomin2/convocate/internal/kvstore"
	"github.com/aminmomin2/convocate/internal/llm"
	"github.com/aminmomin2/convocate/internal/profile"
	"github.com/aminmomin2/convocate/internal/quota"
	"github.com/aminmomin2/convocate/internal/ticket"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("convocate starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Quota ledger backend
	var store kvstore.Store
	switch cfg.LedgerBackend {
	case "postgres":
		if cfg.DatabaseURL == "" {
			slog.Error("DATABASE_URL is required when LEDGER_BACKEND=postgres")
			os.Exit(1)
		}
		pg, err := kvstore.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		store = pg
		slog.Info("quota ledger using postgres")
	default:
		store = kvstore.NewMemory()
		slog.Info("quota ledger using process memory")
	}
	ledger := quota.NewLedger(store, cfg.MaxPersonas, cfg.MaxMessages)

	// OpenAI client
	if cfg.OpenAIKey == "" {
		slog.Error("OPENAI_API_KEY is required")
		os.Exit(1)
	}
	client := llm.NewClient(cfg.OpenAIKey, cfg.OpenAIModel, cfg.ModelTimeout, slog.Default())
	slog.Info("model client ready", "model", cfg.OpenAIModel)

	ext := profile.NewExtractor(client, slog.Default())
	eng := engine.New(client, slog.Default())

	// Scoring tickets
	tickets := ticket.NewCache(cfg.TicketTTL)
	tickets.StartJanitor(ctx, time.Minute)

	// Event publisher (optional — the service works without a broker)
	var publisher *events.Publisher
	if cfg.NatsURL != "" {
		p, err := events.NewPublisher(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer p.Close()
		publisher = p
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS not configured — running without events")
	}

	srv := api.NewServer(cfg, ledger, ext, eng, tickets, publisher, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("convocate ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("convocate stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
