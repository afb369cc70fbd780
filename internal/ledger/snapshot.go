package ledger

import (
	"fmt"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/feral-file/batch-ledger/internal/domain"
)

// Snapshot is the serializable state of a ledger
type Snapshot struct {
	NextBatchID uint64          `json:"next_batch_id"`
	Batches     []BatchSnapshot `json:"batches"`
}

// BatchSnapshot is the serializable state of one batch
type BatchSnapshot struct {
	BatchID        uint64           `json:"batch_id"`
	Owners         []common.Address `json:"owners"`
	CreatedAt      time.Time        `json:"created_at"`
	LastTransferAt time.Time        `json:"last_transfer_at"`
	MetadataRef    string           `json:"metadata_ref"`
}

// Snapshot exports the full ledger state ordered by batch id
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Snapshot{
		NextBatchID: l.nextBatchID,
		Batches:     make([]BatchSnapshot, 0, len(l.batches)),
	}
	for id := uint64(domain.FIRST_BATCH_ID); id < l.nextBatchID; id++ {
		b := l.batches[id]
		s.Batches = append(s.Batches, BatchSnapshot{
			BatchID:        id,
			Owners:         slices.Clone(b.owners),
			CreatedAt:      b.createdAt,
			LastTransferAt: b.lastTransferAt,
			MetadataRef:    b.metadataRef,
		})
	}
	return s
}

// Restore rebuilds a ledger from a snapshot, rejecting snapshots that break the ledger invariants
func Restore(s Snapshot) (*Ledger, error) {
	if s.NextBatchID < domain.FIRST_BATCH_ID {
		return nil, fmt.Errorf("invalid snapshot: next batch id %d", s.NextBatchID)
	}
	if uint64(len(s.Batches)) != s.NextBatchID-domain.FIRST_BATCH_ID {
		return nil, fmt.Errorf("invalid snapshot: %d batches for next batch id %d", len(s.Batches), s.NextBatchID)
	}

	l := New()
	l.nextBatchID = s.NextBatchID
	for i, bs := range s.Batches {
		expected := uint64(i) + domain.FIRST_BATCH_ID
		if bs.BatchID != expected {
			return nil, fmt.Errorf("invalid snapshot: batch id %d at position %d, expected %d", bs.BatchID, i, expected)
		}
		if len(bs.Owners) == 0 {
			return nil, fmt.Errorf("invalid snapshot: batch %d has an empty owner history", bs.BatchID)
		}
		b := &batch{
			owners:         slices.Clone(bs.Owners),
			createdAt:      bs.CreatedAt,
			lastTransferAt: bs.LastTransferAt,
			metadataRef:    bs.MetadataRef,
		}
		l.batches[bs.BatchID] = b
		l.index(b.currentOwner(), bs.BatchID)
	}
	return l, nil
}

// Load replaces the ledger state with a snapshot
func (l *Ledger) Load(s Snapshot) error {
	restored, err := Restore(s)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextBatchID = restored.nextBatchID
	l.batches = restored.batches
	l.owned = restored.owned
	return nil
}
