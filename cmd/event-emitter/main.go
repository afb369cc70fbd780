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
	"github.com/feral-file/batch-ledger/internal/bootstrap"
	"github.com/feral-file/batch-ledger/internal/config"
	"github.com/feral-file/batch-ledger/internal/emitter"
	"github.com/feral-file/batch-ledger/internal/logger"
	"github.com/feral-file/batch-ledger/internal/providers/ethereum"
	"github.com/feral-file/batch-ledger/internal/providers/jetstream"
	"github.com/feral-file/batch-ledger/internal/registry"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadEmitterConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "event-emitter",
			"chain":   string(cfg.Chain.ChainID),
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Ledger Event Emitter")

	// Resolve the ledger deployment
	reg, err := registry.NewDeploymentRegistryLoader(adapter.NewFileSystem(), adapter.NewJSON()).Load(cfg.Chain.DeploymentsPath)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to load deployments", zap.Error(err), zap.String("path", cfg.Chain.DeploymentsPath))
	}
	deployment, err := reg.Lookup(cfg.Chain.ChainID)
	if err != nil {
		logger.FatalCtx(ctx, "No ledger deployment for chain", zap.Error(err))
	}
	startBlock := deployment.StartBlock
	if cfg.StartBlock != nil {
		startBlock = *cfg.StartBlock
	}

	// Connect to database
	dataStore, closeStore, err := bootstrap.OpenStore(cfg.Database)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("host", cfg.Database.Host))
	}
	defer closeStore()
	logger.InfoCtx(ctx, "Connected to database")

	// Initialize adapters
	clockAdapter := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()
	natsJS := adapter.NewNatsJetStream()

	// Initialize ethereum client
	adapterEthClient, err := adapter.NewEthClientDialer().Dial(ctx, cfg.Chain.WebSocketURL)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to dial ledger node", zap.Error(err), zap.String("websocket_url", cfg.Chain.WebSocketURL))
	}
	defer adapterEthClient.Close()
	if err := bootstrap.CheckChain(ctx, adapterEthClient, cfg.Chain.ChainID); err != nil {
		logger.FatalCtx(ctx, "Ledger node is on another network", zap.Error(err))
	}
	ethereumClient := ethereum.NewClient(cfg.Chain.ChainID, deployment.ContractAddress, deployment.Codec, adapterEthClient, clockAdapter)

	// Initialize NATS publisher
	natsPublisher, err := jetstream.NewPublisher(
		ctx,
		jetstream.Config{
			URL:             cfg.NATS.URL,
			StreamName:      cfg.NATS.StreamName,
			MaxReconnects:   cfg.NATS.MaxReconnects,
			ReconnectWait:   cfg.NATS.ReconnectWait,
			ConnectionName:  cfg.NATS.ConnectionName,
			DuplicateWindow: cfg.NATS.DuplicateWindow,
			EnsureStream:    cfg.NATS.EnsureStream,
		}, natsJS, jsonAdapter, clockAdapter)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create NATS publisher", zap.Error(err), zap.String("url", cfg.NATS.URL))
	}
	defer natsPublisher.Close()
	logger.InfoCtx(ctx, "Connected to NATS JetStream")

	// Initialize ledger subscriber
	ledgerSubscriber, err := ethereum.NewSubscriber(ctx, ethereum.Config{
		WebSocketURL: cfg.Chain.WebSocketURL,
		ChainID:      cfg.Chain.ChainID,
	}, ethereumClient, clockAdapter)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create ledger subscriber", zap.Error(err), zap.String("websocket_url", cfg.Chain.WebSocketURL))
	}
	defer ledgerSubscriber.Close()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	eventEmitter := emitter.NewEmitter(
		ledgerSubscriber,
		natsPublisher,
		dataStore,
		emitter.Config{
			ChainID:         cfg.Chain.ChainID,
			StartBlock:      startBlock,
			CursorSaveFreq:  cfg.CursorSaveFreq,
			CursorSaveDelay: cfg.CursorSaveDelay,
		},
		clockAdapter,
	)
	defer eventEmitter.Close()

	// Channel for emitter errors
	errCh := make(chan error, 1)

	go func() {
		if err := eventEmitter.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case <-natsPublisher.CloseChan():
		logger.WarnCtx(ctx, "NATS connection closed unexpectedly")
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "emitter"))
	}
	cancel()

	// Give some time for graceful shutdown
	time.Sleep(time.Second)

	logger.Info("Ledger Event Emitter stopped")
}
