package store

import (
	"context"

	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/store/schema"
)

// LedgerEventsFilter selects journaled ledger events
type LedgerEventsFilter struct {
	Chain           domain.Chain
	ContractAddress string
	BatchID         *uint64
	Limit           int
	Offset          uint64
}

// Store defines the interface for database operations
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// SaveMetadataRef records the metadata reference of a batch, replacing a previous one
	SaveMetadataRef(ctx context.Context, chain domain.Chain, contractAddress string, batchID uint64, metadataRef string, txHash string) error
	// GetMetadataRef returns the recorded metadata reference of a batch, empty when unknown
	GetMetadataRef(ctx context.Context, chain domain.Chain, contractAddress string, batchID uint64) (string, error)

	// RecordLedgerEvent journals a ledger event and refreshes the side index for events carrying a metadata reference.
	// Returns false when the event was already journaled.
	RecordLedgerEvent(ctx context.Context, event *domain.LedgerEvent) (bool, error)
	// GetLedgerEvents returns journaled events in ledger order together with the total count
	GetLedgerEvents(ctx context.Context, filter LedgerEventsFilter) ([]schema.LedgerEvent, uint64, error)

	// GetBlockCursor retrieves the last processed block number for a chain
	GetBlockCursor(ctx context.Context, chain string) (uint64, error)
	// SetBlockCursor stores the last processed block number for a chain
	SetBlockCursor(ctx context.Context, chain string, blockNumber uint64) error

	// SetKeyValue sets a key-value pair in the key-value store
	SetKeyValue(ctx context.Context, key string, value string) error
	// GetKeyValue retrieves a value by key, empty when unknown
	GetKeyValue(ctx context.Context, key string) (string, error)
}
