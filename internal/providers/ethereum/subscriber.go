package ethereum

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/feral-file/batch-ledger/internal/adapter"
	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/logger"
	"github.com/feral-file/batch-ledger/internal/messaging"
)

// Config holds the configuration for Ethereum subscription
type Config struct {
	WebSocketURL string       // WebSocket URL of the node, e.g. ws://localhost:8545
	ChainID      domain.Chain // e.g., "eip155:31337" for the local ledger node
}

// logBufferSize buffers live logs while the backfill is running
const logBufferSize = 256

type ethSubscriber struct {
	client  EthereumClient
	chainID domain.Chain
	clock   adapter.Clock
}

// NewSubscriber creates a new ledger event subscriber
func NewSubscriber(ctx context.Context, cfg Config, ethereumClient EthereumClient, clock adapter.Clock) (messaging.Subscriber, error) {
	return &ethSubscriber{
		client:  ethereumClient,
		chainID: cfg.ChainID,
		clock:   clock,
	}, nil
}

// SubscribeEvents replays ledger events from fromBlock up to the current head and then follows new ones.
// The live subscription is opened before the replay so no block falls between the two.
func (s *ethSubscriber) SubscribeEvents(ctx context.Context, fromBlock uint64, handler messaging.EventHandler) error {
	logs := make(chan types.Log, logBufferSize)
	sub, err := s.client.SubscribeFilterLogs(ctx, s.client.LedgerQuery(nil), logs)
	if err != nil {
		return fmt.Errorf("failed to subscribe to filter logs: %w", err)
	}
	defer func() {
		logger.InfoCtx(ctx, "Unsubscribing from ledger event logs")
		sub.Unsubscribe()
		logger.InfoCtx(ctx, "Unsubscribed from ledger event logs")
	}()

	head, err := s.GetLatestBlock(ctx)
	if err != nil {
		return err
	}

	if fromBlock <= head {
		events, err := s.client.GetLedgerEvents(ctx, nil, fromBlock, &head)
		if err != nil {
			return fmt.Errorf("failed to replay ledger events: %w", err)
		}
		logger.InfoCtx(ctx, "Replaying ledger events",
			zap.Uint64("fromBlock", fromBlock),
			zap.Uint64("toBlock", head),
			zap.Int("count", len(events)))
		for i := range events {
			if err := handler(&events[i]); err != nil {
				logger.ErrorCtx(ctx, err, zap.String("message", "Error handling event"))
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("subscription error: %w", err)
		case vLog := <-logs:
			if vLog.BlockNumber <= head || vLog.BlockNumber < fromBlock {
				continue
			}

			event, err := s.client.ParseEventLog(ctx, vLog)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.ErrorCtx(ctx, err, zap.String("message", "Error parsing log"))
				continue
			}

			if event == nil {
				continue
			}

			if err := handler(event); err != nil {
				logger.ErrorCtx(ctx, err, zap.String("message", "Error handling event"))
			}
		}
	}
}

// GetLatestBlock returns the latest block number
func (s *ethSubscriber) GetLatestBlock(ctx context.Context) (uint64, error) {
	header, err := s.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}
	return header.Number.Uint64(), nil
}

// Close closes the connection
func (s *ethSubscriber) Close() {
	if s.client == nil {
		return
	}

	s.client.Close()
	logger.Info("Ethereum WebSocket connection closed")
}
