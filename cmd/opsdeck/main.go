package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/flowpay/opsdeck/internal/chaos"
	"github.com/flowpay/opsdeck/internal/config"
	"github.com/flowpay/opsdeck/internal/history"
	"github.com/flowpay/opsdeck/internal/server"
	"github.com/flowpay/opsdeck/internal/stream"
	"github.com/flowpay/opsdeck/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.Init("opsdeck", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	reconnectDelay, err := cfg.ReconnectDelay()
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	escalationTTL, err := cfg.EscalationTTL()
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	opts := []stream.Option{
		stream.WithLogger(logger),
		stream.WithReconnectDelay(reconnectDelay),
		stream.WithEscalationTTL(escalationTTL),
	}

	var store *history.Store
	if cfg.Storage.Path != "" {
		store, err = history.Open(cfg.Storage.Path)
		if err != nil {
			log.Fatalf("Failed to open history store: %v", err)
		}
		defer store.Close()
		opts = append(opts, stream.WithRecorder(store))
		logger.Info("history persistence enabled", slog.String("path", cfg.Storage.Path))
	}

	session, err := stream.New(cfg.Feed.URL, opts...)
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	session.Connect()
	defer session.Disconnect()

	chaosClient := chaos.New(cfg.Chaos.BaseURL)

	srv := server.New(cfg.Server.Port, logger, session, chaosClient, historyReader(store))
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("dashboard api stopped", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	logger.Info("opsdeck started",
		slog.String("feed", cfg.Feed.URL),
		slog.String("chaos_api", cfg.Chaos.BaseURL),
		slog.Int("port", cfg.Server.Port))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")
}

// historyReader converts a possibly-nil *history.Store into the server's
// optional HistoryReader without handing it a non-nil interface wrapping a
// nil pointer.
func historyReader(store *history.Store) server.HistoryReader {
	if store == nil {
		return nil
	}
	return store
}
