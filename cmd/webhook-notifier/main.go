package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/feral-file/batch-ledger/internal/adapter"
	"github.com/feral-file/batch-ledger/internal/config"
	"github.com/feral-file/batch-ledger/internal/logger"
	"github.com/feral-file/batch-ledger/internal/providers/jetstream"
	"github.com/feral-file/batch-ledger/internal/webhook"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadNotifierConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "webhook-notifier",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Webhook Notifier", zap.Int("endpoints", len(cfg.Endpoints)))

	endpoints := make([]webhook.Endpoint, 0, len(cfg.Endpoints))
	for _, e := range cfg.Endpoints {
		endpoints = append(endpoints, webhook.Endpoint{
			URL:        e.URL,
			Secret:     e.Secret,
			EventTypes: e.EventTypes,
		})
	}
	notifier := webhook.NewNotifier(
		endpoints,
		adapter.NewHTTPClientWithRetry(cfg.HTTPTimeout, cfg.RetryTimeout),
		adapter.NewClock(),
	)

	consumer, err := jetstream.NewConsumer(jetstream.ConsumerConfig{
		Config: jetstream.Config{
			URL:            cfg.NATS.URL,
			StreamName:     cfg.NATS.StreamName,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: cfg.NATS.ConnectionName,
		},
		ConsumerName:   cfg.NATS.ConsumerName,
		AckWaitTimeout: cfg.NATS.AckWait,
		MaxDeliver:     cfg.NATS.MaxDeliver,
	}, adapter.NewNatsJetStream(), adapter.NewJSON())
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create NATS consumer", zap.Error(err), zap.String("url", cfg.NATS.URL))
	}
	defer consumer.Close()

	errCh := make(chan error, 1)
	go func() {
		if err := consumer.Run(ctx, webhook.Handler(ctx, notifier)); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "consumer"))
	}
	cancel()

	// Give some time for in-flight deliveries
	time.Sleep(time.Second)

	logger.Info("Webhook Notifier stopped")
}
