package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/feral-file/batch-ledger/internal/adapter"
	"github.com/feral-file/batch-ledger/internal/api/middleware"
	"github.com/feral-file/batch-ledger/internal/api/server"
	"github.com/feral-file/batch-ledger/internal/bootstrap"
	"github.com/feral-file/batch-ledger/internal/config"
	"github.com/feral-file/batch-ledger/internal/logger"
	"github.com/feral-file/batch-ledger/internal/ratelimit"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadAPIConfig(*configFile, *envPath)
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
			"service": "api-server",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Batch Ledger API")

	ledger, err := bootstrap.NewLedger(ctx, bootstrap.Options{
		Chain:    cfg.Chain,
		IPFS:     cfg.IPFS,
		Cache:    cfg.Cache,
		Signer:   cfg.Signer,
		Client:   cfg.Client,
		Database: &cfg.Database,
	})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to initialize ledger client", zap.Error(err))
	}
	defer ledger.Close()

	if !cfg.Signer.Configured() {
		logger.WarnCtx(ctx, "No signer configured, write endpoints will reject every request")
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		var distributed adapter.RedisRateLimiter
		if ledger.Redis != nil {
			distributed = ledger.Redis.NewRateLimiter()
		}
		limiter, err = ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
			KeyPrefix:         cfg.RateLimit.KeyPrefix,
		}, distributed, adapter.NewClock())
		if err != nil {
			logger.FatalCtx(ctx, "Failed to create rate limiter", zap.Error(err))
		}
	}

	srv := server.New(server.Config{
		Debug:          cfg.Debug,
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    time.Duration(cfg.Server.IdleTimeout) * time.Second,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Auth: middleware.AuthConfig{
			JWTPublicKey: cfg.Auth.JWTPublicKey,
			APIKeys:      cfg.Auth.APIKeys,
		},
		RateLimiter: limiter,
	}, ledger.Client, adapter.NewClock())

	// Start server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
	}
	cancel()

	// Don't reuse the canceled ctx for shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, zap.String("component", "server"))
	}

	logger.Info("API server stopped")
}
