package emitter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/feral-file/batch-ledger/internal/adapter"
	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/logger"
	"github.com/feral-file/batch-ledger/internal/messaging"
	"github.com/feral-file/batch-ledger/internal/store"
)

// Config holds the configuration for the event emitter
type Config struct {
	ChainID         domain.Chain
	StartBlock      uint64        // First block to scan when no cursor is stored, usually the deployment block
	CursorSaveFreq  uint64        // Save cursor every N blocks
	CursorSaveDelay time.Duration // Or save cursor every N seconds
}

// Emitter defines the interface for the event emitter
//
//go:generate mockgen -source=emitter.go -destination=../mocks/emitter.go -package=mocks -mock_names=Emitter=MockEmitter
type Emitter interface {
	// Run starts the event emitter
	Run(ctx context.Context) error
	// Close closes the emitter and cleans up resources
	Close()
}

// emitter follows the ledger contract, publishes its events to NATS and journals them
type emitter struct {
	subscriber messaging.Subscriber
	publisher  messaging.Publisher
	store      store.Store
	config     Config
	clock      adapter.Clock
}

// NewEmitter creates a new event emitter
func NewEmitter(
	sub messaging.Subscriber,
	pub messaging.Publisher,
	st store.Store,
	cfg Config,
	clock adapter.Clock,
) Emitter {
	if cfg.CursorSaveFreq == 0 {
		cfg.CursorSaveFreq = 1
	}

	return &emitter{
		subscriber: sub,
		publisher:  pub,
		store:      st,
		config:     cfg,
		clock:      clock,
	}
}

// Run starts the event emitter
func (e *emitter) Run(ctx context.Context) error {
	chain := string(e.config.ChainID)

	lastBlock, err := e.store.GetBlockCursor(ctx, chain)
	if err != nil {
		return fmt.Errorf("failed to get block cursor: %w", err)
	}

	startBlock := e.config.StartBlock
	if lastBlock > 0 && lastBlock+1 > startBlock {
		startBlock = lastBlock + 1
		logger.InfoCtx(ctx, "Resuming from last processed block", zap.String("chain", chain), zap.Uint64("block", startBlock))
	} else {
		logger.InfoCtx(ctx, "Starting from configured block", zap.String("chain", chain), zap.Uint64("block", startBlock))
	}

	errCh := make(chan error, 1)

	go func() {
		logger.InfoCtx(ctx, "Starting event subscription", zap.String("chain", chain))

		tracker := newCursorTracker(lastBlock, e.clock.Now())

		handler := func(event *domain.LedgerEvent) error {
			if err := e.handleEvent(ctx, event); err != nil {
				// the cursor stays below a failed block so a restart replays it
				tracker.fail(event.BlockNumber)
				return err
			}

			block, ok := tracker.advance(event.BlockNumber, e.config.CursorSaveFreq, e.clock.Since(tracker.savedAt) >= e.config.CursorSaveDelay)
			if !ok {
				return nil
			}

			if err := e.store.SetBlockCursor(ctx, chain, block); err != nil {
				logger.ErrorCtx(ctx, err, zap.String("message", "Failed to save block cursor"), zap.Uint64("block", block))
				return nil
			}
			tracker.saved(block, e.clock.Now())

			return nil
		}

		err := e.subscriber.SubscribeEvents(ctx, startBlock, handler)
		if err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleEvent publishes an event then journals it
func (e *emitter) handleEvent(ctx context.Context, event *domain.LedgerEvent) error {
	if !event.Valid() {
		logger.WarnCtx(ctx, "Dropping malformed ledger event",
			zap.String("txHash", event.TxHash),
			zap.Uint64("logIndex", event.LogIndex),
			zap.String("eventType", string(event.EventType)))
		return nil
	}

	if err := e.publisher.PublishEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.TxHash, err)
	}

	inserted, err := e.store.RecordLedgerEvent(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to journal event %s: %w", event.TxHash, err)
	}

	logger.InfoCtx(ctx, "Ledger event emitted",
		zap.String("eventType", string(event.EventType)),
		zap.Uint64("batchId", event.BatchID),
		zap.Uint64("block", event.BlockNumber),
		zap.Bool("journaled", inserted))

	return nil
}

// Close closes the emitter and cleans up resources
func (e *emitter) Close() {
	e.subscriber.Close()
}

// cursorTracker decides which block may be persisted as processed
type cursorTracker struct {
	lastSaved   uint64
	savedAt     time.Time
	failedBlock uint64
}

func newCursorTracker(lastSaved uint64, now time.Time) *cursorTracker {
	return &cursorTracker{lastSaved: lastSaved, savedAt: now}
}

func (c *cursorTracker) fail(block uint64) {
	if c.failedBlock == 0 || block < c.failedBlock {
		c.failedBlock = block
	}
}

// advance returns the block to persist after handling an event at block, if any.
// Events of a block share one cursor value, so the block before the current one is the last complete block.
func (c *cursorTracker) advance(block uint64, every uint64, due bool) (uint64, bool) {
	if block == 0 {
		return 0, false
	}
	candidate := block - 1
	if c.failedBlock > 0 && candidate >= c.failedBlock {
		candidate = c.failedBlock - 1
	}
	if candidate <= c.lastSaved {
		return 0, false
	}
	if candidate-c.lastSaved < every && !due {
		return 0, false
	}
	return candidate, true
}

func (c *cursorTracker) saved(block uint64, at time.Time) {
	c.lastSaved = block
	c.savedAt = at
}
