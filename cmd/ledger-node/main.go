package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/feral-file/batch-ledger/internal/adapter"
	"github.com/feral-file/batch-ledger/internal/config"
	"github.com/feral-file/batch-ledger/internal/contract"
	"github.com/feral-file/batch-ledger/internal/devchain"
	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/ledger"
	"github.com/feral-file/batch-ledger/internal/logger"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadNodeConfig(*configFile, *envPath)
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
			"service": "ledger-node",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Batch Ledger node")

	contractAddress, err := domain.ParseAddress(cfg.DevChain.ContractAddress)
	if err != nil {
		logger.FatalCtx(ctx, "Invalid contract address", zap.Error(err), zap.String("address", cfg.DevChain.ContractAddress))
	}

	// Deploy the ledger contract at genesis
	clockAdapter := adapter.NewClock()
	dispatcher := contract.NewDispatcher(contractAddress, contract.MustDefaultCodec(), ledger.New())
	chain := devchain.New(devchain.Config{
		ChainID:         new(big.Int).SetUint64(cfg.DevChain.ChainID),
		ContractAddress: contractAddress,
		BaseFee:         gwei(cfg.DevChain.BaseFeeGwei),
		GasTipCap:       gwei(cfg.DevChain.GasTipCapGwei),
	}, dispatcher, clockAdapter)

	// Restore the previous state when a snapshot path is configured
	var stateStore *devchain.Store
	if cfg.DevChain.SnapshotPath != "" {
		stateStore = devchain.NewStore(cfg.DevChain.SnapshotPath, adapter.NewFileSystem(), adapter.NewJSON())
		restored, err := stateStore.Load(chain)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to restore chain state", zap.Error(err), zap.String("path", cfg.DevChain.SnapshotPath))
		}
		if restored {
			head, _ := chain.BlockNumber(ctx)
			logger.InfoCtx(ctx, "Restored chain state",
				zap.String("path", cfg.DevChain.SnapshotPath),
				zap.Uint64("block", head),
				zap.Uint64("total_batches", chain.Ledger().TotalBatches()),
			)
		}
	}

	rpcServer, err := devchain.NewRPCServer(chain)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create JSON-RPC server", zap.Error(err))
	}
	defer rpcServer.Stop()

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           devchain.Handler(rpcServer, cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.InfoCtx(ctx, "Serving JSON-RPC",
			zap.String("address", cfg.Server.Addr()),
			zap.Uint64("chain_id", cfg.DevChain.ChainID),
			zap.String("contract", contractAddress.Hex()),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if stateStore != nil {
		go snapshotLoop(ctx, stateStore, chain, cfg.DevChain.SnapshotInterval)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, zap.String("component", "server"))
	}

	if stateStore != nil {
		if err := stateStore.Save(chain); err != nil {
			logger.Error(err, zap.String("path", cfg.DevChain.SnapshotPath))
		} else {
			logger.Info("Saved chain state", zap.String("path", cfg.DevChain.SnapshotPath))
		}
	}

	logger.Info("Batch Ledger node stopped")
}

// snapshotLoop persists the chain state periodically
func snapshotLoop(ctx context.Context, stateStore *devchain.Store, chain *devchain.Chain, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastHead uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			head, _ := chain.BlockNumber(ctx)
			if head == lastHead {
				continue
			}
			if err := stateStore.Save(chain); err != nil {
				logger.ErrorCtx(ctx, err, zap.String("component", "snapshot"))
				continue
			}
			lastHead = head
			logger.DebugCtx(ctx, "Saved chain state", zap.Uint64("block", head))
		}
	}
}

func gwei(n uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(n), big.NewInt(1_000_000_000))
}

