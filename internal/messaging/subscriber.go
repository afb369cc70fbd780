package messaging

import (
	"context"

	"github.com/feral-file/batch-ledger/internal/domain"
)

// EventHandler is called when a new ledger event is received
type EventHandler func(event *domain.LedgerEvent) error

// Subscriber defines the interface for subscribing to ledger contract events
//
//go:generate mockgen -source=subscriber.go -destination=../mocks/subscriber.go -package=mocks -mock_names=Subscriber=MockSubscriber
type Subscriber interface {
	// SubscribeEvents replays events from fromBlock and then follows new ones
	// handler: callback function to process each event
	SubscribeEvents(ctx context.Context, fromBlock uint64, handler EventHandler) error

	// GetLatestBlock returns the latest block number
	GetLatestBlock(ctx context.Context) (uint64, error)

	// Close closes the connection and cleans up resources
	Close()
}
