package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/batch-ledger/internal/domain"
)

const (
	testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	testCreator  = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testAlice    = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

// =============================================================================
// Test Data Builders
// =============================================================================

func buildCreatedEvent(batchID uint64, block uint64, metadataRef string) *domain.LedgerEvent {
	blockHash := fmt.Sprintf("0xblock%d", block)
	return &domain.LedgerEvent{
		Chain:           domain.ChainLocalDevnet,
		ContractAddress: testContract,
		EventType:       domain.EventTypeBatchCreated,
		BatchID:         batchID,
		ToAddress:       domain.StringPtr(testCreator),
		MetadataRef:     domain.StringPtr(metadataRef),
		TxHash:          fmt.Sprintf("0xcreate%d", batchID),
		BlockNumber:     block,
		BlockHash:       &blockHash,
		Timestamp:       time.Date(2026, 1, 1, 0, 0, int(block), 0, time.UTC),
	}
}

func buildTransferredEvent(batchID uint64, block uint64, from, to string) *domain.LedgerEvent {
	return &domain.LedgerEvent{
		Chain:           domain.ChainLocalDevnet,
		ContractAddress: testContract,
		EventType:       domain.EventTypeBatchTransferred,
		BatchID:         batchID,
		FromAddress:     domain.StringPtr(from),
		ToAddress:       domain.StringPtr(to),
		TxHash:          fmt.Sprintf("0xtransfer%d-%d", batchID, block),
		BlockNumber:     block,
		Timestamp:       time.Date(2026, 1, 1, 0, 0, int(block), 0, time.UTC),
	}
}

func buildMetadataUpdatedEvent(batchID uint64, block uint64, oldRef, newRef string) *domain.LedgerEvent {
	return &domain.LedgerEvent{
		Chain:           domain.ChainLocalDevnet,
		ContractAddress: testContract,
		EventType:       domain.EventTypeMetadataUpdated,
		BatchID:         batchID,
		OldMetadataRef:  domain.StringPtr(oldRef),
		MetadataRef:     domain.StringPtr(newRef),
		TxHash:          fmt.Sprintf("0xupdate%d-%d", batchID, block),
		BlockNumber:     block,
		Timestamp:       time.Date(2026, 1, 1, 0, 0, int(block), 0, time.UTC),
	}
}

// =============================================================================
// Test: Metadata side index
// =============================================================================

func testMetadataRefs(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("unknown batch returns empty reference", func(t *testing.T) {
		ref, err := store.GetMetadataRef(ctx, domain.ChainLocalDevnet, testContract, 404)
		require.NoError(t, err)
		assert.Empty(t, ref)
	})

	t.Run("save and replace", func(t *testing.T) {
		err := store.SaveMetadataRef(ctx, domain.ChainLocalDevnet, testContract, 1, "bafyfirst", "0xtx1")
		require.NoError(t, err)

		ref, err := store.GetMetadataRef(ctx, domain.ChainLocalDevnet, testContract, 1)
		require.NoError(t, err)
		assert.Equal(t, "bafyfirst", ref)

		err = store.SaveMetadataRef(ctx, domain.ChainLocalDevnet, testContract, 1, "bafysecond", "")
		require.NoError(t, err)

		ref, err = store.GetMetadataRef(ctx, domain.ChainLocalDevnet, testContract, 1)
		require.NoError(t, err)
		assert.Equal(t, "bafysecond", ref)
	})

	t.Run("scoped by chain and contract", func(t *testing.T) {
		err := store.SaveMetadataRef(ctx, domain.ChainLocalDevnet, testContract, 7, "bafydevnet", "0xtx7")
		require.NoError(t, err)

		ref, err := store.GetMetadataRef(ctx, domain.ChainEthereumSepolia, testContract, 7)
		require.NoError(t, err)
		assert.Empty(t, ref)

		ref, err = store.GetMetadataRef(ctx, domain.ChainLocalDevnet, testAlice, 7)
		require.NoError(t, err)
		assert.Empty(t, ref)
	})
}

// =============================================================================
// Test: Ledger event journal
// =============================================================================

func testLedgerEvents(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("record is idempotent", func(t *testing.T) {
		event := buildCreatedEvent(10, 100, "bafycreated")

		inserted, err := store.RecordLedgerEvent(ctx, event)
		require.NoError(t, err)
		assert.True(t, inserted)

		inserted, err = store.RecordLedgerEvent(ctx, event)
		require.NoError(t, err)
		assert.False(t, inserted)

		batchID := uint64(10)
		events, total, err := store.GetLedgerEvents(ctx, LedgerEventsFilter{Chain: domain.ChainLocalDevnet, BatchID: &batchID})
		require.NoError(t, err)
		assert.Equal(t, uint64(1), total)
		require.Len(t, events, 1)
		assert.Equal(t, domain.EventTypeBatchCreated, events[0].EventType)
		assert.Equal(t, testCreator, *events[0].ToAddress)
		assert.Nil(t, events[0].FromAddress)

		var raw domain.LedgerEvent
		require.NoError(t, json.Unmarshal(events[0].Raw, &raw))
		assert.Equal(t, event.TxHash, raw.TxHash)
		assert.True(t, event.Timestamp.Equal(raw.Timestamp))
	})

	t.Run("events refresh the side index", func(t *testing.T) {
		_, err := store.RecordLedgerEvent(ctx, buildCreatedEvent(11, 110, "bafyv1"))
		require.NoError(t, err)

		ref, err := store.GetMetadataRef(ctx, domain.ChainLocalDevnet, testContract, 11)
		require.NoError(t, err)
		assert.Equal(t, "bafyv1", ref)

		_, err = store.RecordLedgerEvent(ctx, buildMetadataUpdatedEvent(11, 111, "bafyv1", "bafyv2"))
		require.NoError(t, err)

		ref, err = store.GetMetadataRef(ctx, domain.ChainLocalDevnet, testContract, 11)
		require.NoError(t, err)
		assert.Equal(t, "bafyv2", ref)

		_, err = store.RecordLedgerEvent(ctx, buildMetadataUpdatedEvent(11, 113, "bafyv2", ""))
		require.NoError(t, err)

		ref, err = store.GetMetadataRef(ctx, domain.ChainLocalDevnet, testContract, 11)
		require.NoError(t, err)
		assert.Empty(t, ref)

		// a created event without a reference leaves the index untouched
		_, err = store.RecordLedgerEvent(ctx, buildCreatedEvent(12, 112, ""))
		require.NoError(t, err)
		ref, err = store.GetMetadataRef(ctx, domain.ChainLocalDevnet, testContract, 12)
		require.NoError(t, err)
		assert.Empty(t, ref)
	})

	t.Run("history in ledger order with pagination", func(t *testing.T) {
		batchID := uint64(20)
		// recorded out of order
		_, err := store.RecordLedgerEvent(ctx, buildTransferredEvent(batchID, 203, testAlice, testCreator))
		require.NoError(t, err)
		_, err = store.RecordLedgerEvent(ctx, buildCreatedEvent(batchID, 201, ""))
		require.NoError(t, err)
		_, err = store.RecordLedgerEvent(ctx, buildTransferredEvent(batchID, 202, testCreator, testAlice))
		require.NoError(t, err)

		events, total, err := store.GetLedgerEvents(ctx, LedgerEventsFilter{
			Chain:           domain.ChainLocalDevnet,
			ContractAddress: testContract,
			BatchID:         &batchID,
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(3), total)
		require.Len(t, events, 3)
		assert.Equal(t, []uint64{201, 202, 203}, []uint64{events[0].BlockNumber, events[1].BlockNumber, events[2].BlockNumber})

		page, total, err := store.GetLedgerEvents(ctx, LedgerEventsFilter{
			Chain:   domain.ChainLocalDevnet,
			BatchID: &batchID,
			Limit:   1,
			Offset:  1,
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(3), total)
		require.Len(t, page, 1)
		assert.Equal(t, uint64(202), page[0].BlockNumber)
	})
}

// =============================================================================
// Test: Block cursor and key-value store
// =============================================================================

func testBlockCursor(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("get non-existent cursor returns 0", func(t *testing.T) {
		cursor, err := store.GetBlockCursor(ctx, "eip155:999")
		require.NoError(t, err)
		assert.Equal(t, uint64(0), cursor)
	})

	t.Run("set and update cursor", func(t *testing.T) {
		chain := string(domain.ChainLocalDevnet)

		require.NoError(t, store.SetBlockCursor(ctx, chain, 100))
		require.NoError(t, store.SetBlockCursor(ctx, chain, 200))

		cursor, err := store.GetBlockCursor(ctx, chain)
		require.NoError(t, err)
		assert.Equal(t, uint64(200), cursor)
	})

	t.Run("corrupt cursor", func(t *testing.T) {
		require.NoError(t, store.SetKeyValue(ctx, "block_cursor:eip155:5", "not a number"))
		_, err := store.GetBlockCursor(ctx, "eip155:5")
		assert.Error(t, err)
	})
}

func testKeyValueStore(t *testing.T, store Store) {
	ctx := context.Background()

	value, err := store.GetKeyValue(ctx, "nonexistent:key")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, store.SetKeyValue(ctx, "test:key", "value1"))
	require.NoError(t, store.SetKeyValue(ctx, "test:key", "value2"))

	value, err = store.GetKeyValue(ctx, "test:key")
	require.NoError(t, err)
	assert.Equal(t, "value2", value)
}

// RunStoreTests runs the store test suite against an implementation
func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"MetadataRefs", testMetadataRefs},
		{"LedgerEvents", testLedgerEvents},
		{"BlockCursor", testBlockCursor},
		{"KeyValueStore", testKeyValueStore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, initDB(t))
		})
	}
}
