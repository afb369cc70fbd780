package ledger

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/feral-file/batch-ledger/internal/domain"
)

// Tx carries the execution context of a state-changing call
type Tx struct {
	Sender    common.Address
	Timestamp time.Time
}

// BatchCreated is emitted when a batch is created
type BatchCreated struct {
	BatchID     uint64
	Creator     common.Address
	Timestamp   time.Time
	MetadataRef string
}

// BatchTransferred is emitted when a batch changes owner
type BatchTransferred struct {
	BatchID   uint64
	From      common.Address
	To        common.Address
	Timestamp time.Time
}

// MetadataUpdated is emitted when the metadata reference of a batch is replaced
type MetadataUpdated struct {
	BatchID   uint64
	OldRef    string
	NewRef    string
	Timestamp time.Time
}

type batch struct {
	owners         []common.Address
	createdAt      time.Time
	lastTransferAt time.Time
	metadataRef    string
}

func (b *batch) currentOwner() common.Address {
	return b.owners[len(b.owners)-1]
}

// Ledger is the single-writer container holding every batch and its ownership history.
// State-changing calls are serialized by mu; batches are never removed.
type Ledger struct {
	mu          sync.RWMutex
	nextBatchID uint64
	batches     map[uint64]*batch
	owned       map[common.Address]map[uint64]struct{}
}

// New creates an empty ledger
func New() *Ledger {
	return &Ledger{
		nextBatchID: domain.FIRST_BATCH_ID,
		batches:     make(map[uint64]*batch),
		owned:       make(map[common.Address]map[uint64]struct{}),
	}
}

// CreateBatch allocates the next batch id with tx.Sender as its first owner
func (l *Ledger) CreateBatch(tx Tx, metadataRef string) (uint64, BatchCreated, error) {
	if domain.IsZeroAddress(tx.Sender) {
		return 0, BatchCreated{}, &domain.LedgerError{
			Kind:    domain.ErrInvalidArgument,
			Op:      "createBatch",
			Address: tx.Sender.Hex(),
			Err:     errors.New("creator is the zero address"),
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextBatchID
	l.batches[id] = &batch{
		owners:         []common.Address{tx.Sender},
		createdAt:      tx.Timestamp,
		lastTransferAt: tx.Timestamp,
		metadataRef:    metadataRef,
	}
	l.index(tx.Sender, id)
	l.nextBatchID++

	return id, BatchCreated{
		BatchID:     id,
		Creator:     tx.Sender,
		Timestamp:   tx.Timestamp,
		MetadataRef: metadataRef,
	}, nil
}

// TransferBatch appends newOwner to the history of the batch
func (l *Ledger) TransferBatch(tx Tx, batchID uint64, newOwner common.Address) (BatchTransferred, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := l.checkTransfer(tx.Sender, batchID, newOwner)
	if err != nil {
		return BatchTransferred{}, err
	}

	from := b.currentOwner()
	b.owners = append(b.owners, newOwner)
	b.lastTransferAt = tx.Timestamp
	l.unindex(from, batchID)
	l.index(newOwner, batchID)

	return BatchTransferred{
		BatchID:   batchID,
		From:      from,
		To:        newOwner,
		Timestamp: tx.Timestamp,
	}, nil
}

// CheckTransfer reports the error TransferBatch would return without changing state
func (l *Ledger) CheckTransfer(sender common.Address, batchID uint64, newOwner common.Address) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, err := l.checkTransfer(sender, batchID, newOwner)
	return err
}

// checkTransfer validates the transfer preconditions in order; the first violation wins
func (l *Ledger) checkTransfer(sender common.Address, batchID uint64, newOwner common.Address) (*batch, error) {
	const op = "transferBatch"

	b, err := l.get(op, batchID)
	if err != nil {
		return nil, err
	}
	owner := b.currentOwner()
	if sender != owner {
		return nil, unauthorized(op, batchID, sender, owner)
	}
	if domain.IsZeroAddress(newOwner) {
		return nil, &domain.LedgerError{
			Kind:    domain.ErrInvalidArgument,
			Op:      op,
			BatchID: batchID,
			Address: newOwner.Hex(),
			Err:     errors.New("new owner is the zero address"),
		}
	}
	if newOwner == owner {
		return nil, &domain.LedgerError{
			Kind:    domain.ErrInvalidArgument,
			Op:      op,
			BatchID: batchID,
			Address: newOwner.Hex(),
			Err:     errors.New("new owner is already the current owner"),
		}
	}
	return b, nil
}

// UpdateMetadata replaces the metadata reference of the batch
func (l *Ledger) UpdateMetadata(tx Tx, batchID uint64, newRef string) (MetadataUpdated, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := l.checkUpdateMetadata(tx.Sender, batchID)
	if err != nil {
		return MetadataUpdated{}, err
	}

	oldRef := b.metadataRef
	b.metadataRef = newRef

	return MetadataUpdated{
		BatchID:   batchID,
		OldRef:    oldRef,
		NewRef:    newRef,
		Timestamp: tx.Timestamp,
	}, nil
}

// CheckUpdateMetadata reports the error UpdateMetadata would return without changing state
func (l *Ledger) CheckUpdateMetadata(sender common.Address, batchID uint64) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, err := l.checkUpdateMetadata(sender, batchID)
	return err
}

func (l *Ledger) checkUpdateMetadata(sender common.Address, batchID uint64) (*batch, error) {
	const op = "updateMetadata"

	b, err := l.get(op, batchID)
	if err != nil {
		return nil, err
	}
	if owner := b.currentOwner(); sender != owner {
		return nil, unauthorized(op, batchID, sender, owner)
	}
	return b, nil
}

// NextBatchID returns the id the next successful CreateBatch will allocate
func (l *Ledger) NextBatchID() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.nextBatchID
}

// CurrentOwner returns the last entry of the batch's owner history
func (l *Ledger) CurrentOwner(batchID uint64) (common.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	b, err := l.get("getCurrentOwner", batchID)
	if err != nil {
		return common.Address{}, err
	}
	return b.currentOwner(), nil
}

// OwnerHistory returns a copy of the batch's owner history, creator first
func (l *Ledger) OwnerHistory(batchID uint64) ([]common.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	b, err := l.get("getOwnerHistory", batchID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(b.owners), nil
}

// BatchInfo returns the summary of a batch
func (l *Ledger) BatchInfo(batchID uint64) (domain.BatchInfo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	b, err := l.get("getBatchInfo", batchID)
	if err != nil {
		return domain.BatchInfo{}, err
	}
	return domain.BatchInfo{
		BatchID:        batchID,
		CurrentOwner:   b.currentOwner(),
		OwnerCount:     uint64(len(b.owners)),
		CreatedAt:      b.createdAt,
		LastTransferAt: b.lastTransferAt,
		MetadataRef:    b.metadataRef,
	}, nil
}

// TotalBatches returns the number of batches ever created
func (l *Ledger) TotalBatches() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.nextBatchID - domain.FIRST_BATCH_ID
}

// OwnerCount returns the length of the batch's owner history
func (l *Ledger) OwnerCount(batchID uint64) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	b, err := l.get("getOwnerCount", batchID)
	if err != nil {
		return 0, err
	}
	return uint64(len(b.owners)), nil
}

// WasOwner reports whether address appears anywhere in the batch's owner history
func (l *Ledger) WasOwner(batchID uint64, address common.Address) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	b, err := l.get("wasOwner", batchID)
	if err != nil {
		return false, err
	}
	return slices.Contains(b.owners, address), nil
}

// BatchExists reports whether the batch has been created
func (l *Ledger) BatchExists(batchID uint64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.batches[batchID]
	return ok
}

// BatchesOf returns the ids currently owned by owner in ascending order
func (l *Ledger) BatchesOf(owner common.Address) []uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]uint64, 0, len(l.owned[owner]))
	for id := range l.owned[owner] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (l *Ledger) get(op string, batchID uint64) (*batch, error) {
	b, ok := l.batches[batchID]
	if !ok {
		return nil, &domain.LedgerError{Kind: domain.ErrNotFound, Op: op, BatchID: batchID}
	}
	return b, nil
}

func (l *Ledger) index(owner common.Address, batchID uint64) {
	ids, ok := l.owned[owner]
	if !ok {
		ids = make(map[uint64]struct{})
		l.owned[owner] = ids
	}
	ids[batchID] = struct{}{}
}

func (l *Ledger) unindex(owner common.Address, batchID uint64) {
	delete(l.owned[owner], batchID)
	if len(l.owned[owner]) == 0 {
		delete(l.owned, owner)
	}
}

func unauthorized(op string, batchID uint64, caller, owner common.Address) error {
	return &domain.LedgerError{
		Kind:    domain.ErrUnauthorized,
		Op:      op,
		BatchID: batchID,
		Caller:  caller.Hex(),
		Owner:   owner.Hex(),
	}
}
