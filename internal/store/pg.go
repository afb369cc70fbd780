package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/logger"
	"github.com/feral-file/batch-ledger/internal/store/schema"
)

const (
	defaultEventsLimit = 100
	maxEventsLimit     = 1000
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// PoolConfig holds the connection pool settings, zero values fall back to defaults
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// ConfigureConnectionPool applies pool settings to the sql.DB underneath a gorm connection
func ConfigureConnectionPool(db *gorm.DB, cfg PoolConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.MaxIdleConns > cfg.MaxOpenConns {
		cfg.MaxIdleConns = cfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.ConnMaxIdleTime <= 0 {
		cfg.ConnMaxIdleTime = 10 * time.Minute
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return nil
}

// SaveMetadataRef records the metadata reference of a batch, replacing a previous one
func (s *pgStore) SaveMetadataRef(ctx context.Context, chain domain.Chain, contractAddress string, batchID uint64, metadataRef string, txHash string) error {
	return upsertMetadataRef(s.db.WithContext(ctx), chain, contractAddress, batchID, metadataRef, txHash)
}

func upsertMetadataRef(tx *gorm.DB, chain domain.Chain, contractAddress string, batchID uint64, metadataRef string, txHash string) error {
	ref := schema.BatchMetadataRef{
		Chain:           chain,
		ContractAddress: contractAddress,
		BatchID:         batchID,
		MetadataRef:     metadataRef,
	}
	if txHash != "" {
		ref.TxHash = &txHash
	}

	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chain"}, {Name: "contract_address"}, {Name: "batch_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"metadata_ref": metadataRef,
			"tx_hash":      ref.TxHash,
			"updated_at":   gorm.Expr("now()"),
		}),
	}).Create(&ref).Error
	if err != nil {
		return fmt.Errorf("failed to save metadata reference: %w", err)
	}

	return nil
}

// GetMetadataRef returns the recorded metadata reference of a batch
func (s *pgStore) GetMetadataRef(ctx context.Context, chain domain.Chain, contractAddress string, batchID uint64) (string, error) {
	var ref schema.BatchMetadataRef
	err := s.db.WithContext(ctx).
		Where("chain = ? AND contract_address = ? AND batch_id = ?", chain, contractAddress, batchID).
		First(&ref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get metadata reference: %w", err)
	}

	return ref.MetadataRef, nil
}

// RecordLedgerEvent journals a ledger event in a single transaction with its side index update
func (s *pgStore) RecordLedgerEvent(ctx context.Context, event *domain.LedgerEvent) (bool, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return false, fmt.Errorf("failed to marshal ledger event: %w", err)
	}

	row := schema.LedgerEvent{
		Chain:           event.Chain,
		ContractAddress: event.ContractAddress,
		BatchID:         event.BatchID,
		EventType:       event.EventType,
		FromAddress:     event.FromAddress,
		ToAddress:       event.ToAddress,
		OldMetadataRef:  event.OldMetadataRef,
		MetadataRef:     event.MetadataRef,
		TxHash:          event.TxHash,
		BlockNumber:     event.BlockNumber,
		BlockHash:       event.BlockHash,
		LogIndex:        event.LogIndex,
		Timestamp:       event.Timestamp.UTC(),
		Raw:             raw,
	}

	inserted := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// (chain, tx_hash, log_index) identifies a log, replays are skipped
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chain"}, {Name: "tx_hash"}, {Name: "log_index"}},
			DoNothing: true,
		}).Create(&row)
		if result.Error != nil {
			return fmt.Errorf("failed to create ledger event: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil
		}
		inserted = true

		if event.MetadataRef == nil {
			return nil
		}
		// a cleared reference is written through
		if *event.MetadataRef == "" && event.EventType != domain.EventTypeMetadataUpdated {
			return nil
		}
		return upsertMetadataRef(tx, event.Chain, event.ContractAddress, event.BatchID, *event.MetadataRef, event.TxHash)
	})
	if err != nil {
		return false, err
	}

	if !inserted {
		logger.DebugCtx(ctx, "Ledger event already journaled",
			zap.String("txHash", event.TxHash),
			zap.Uint64("logIndex", event.LogIndex))
	}
	return inserted, nil
}

// GetLedgerEvents returns journaled events in ledger order
func (s *pgStore) GetLedgerEvents(ctx context.Context, filter LedgerEventsFilter) ([]schema.LedgerEvent, uint64, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultEventsLimit
	}
	if limit > maxEventsLimit {
		limit = maxEventsLimit
	}

	query := s.db.WithContext(ctx).Model(&schema.LedgerEvent{}).Where("chain = ?", filter.Chain)
	if filter.ContractAddress != "" {
		query = query.Where("contract_address = ?", filter.ContractAddress)
	}
	if filter.BatchID != nil {
		query = query.Where("batch_id = ?", *filter.BatchID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count ledger events: %w", err)
	}

	var events []schema.LedgerEvent
	err := query.
		Order("block_number ASC").
		Order("log_index ASC").
		Limit(limit).
		Offset(int(filter.Offset)). //nolint:gosec,G115
		Find(&events).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get ledger events: %w", err)
	}

	return events, uint64(total), nil //nolint:gosec,G115
}

// GetBlockCursor retrieves the last processed block number for a chain
func (s *pgStore) GetBlockCursor(ctx context.Context, chain string) (uint64, error) {
	value, err := s.GetKeyValue(ctx, blockCursorKey(chain))
	if err != nil {
		return 0, fmt.Errorf("failed to get block cursor: %w", err)
	}
	if value == "" {
		return 0, nil
	}

	blockNumber, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse block cursor: %w", err)
	}

	return blockNumber, nil
}

// SetBlockCursor stores the last processed block number for a chain
func (s *pgStore) SetBlockCursor(ctx context.Context, chain string, blockNumber uint64) error {
	if err := s.SetKeyValue(ctx, blockCursorKey(chain), strconv.FormatUint(blockNumber, 10)); err != nil {
		return fmt.Errorf("failed to set block cursor: %w", err)
	}
	return nil
}

func blockCursorKey(chain string) string {
	return fmt.Sprintf("block_cursor:%s", chain)
}

// SetKeyValue sets a key-value pair in the key-value store
func (s *pgStore) SetKeyValue(ctx context.Context, key string, value string) error {
	kv := schema.KeyValueStore{
		Key:   key,
		Value: value,
	}

	err := s.db.WithContext(ctx).Save(&kv).Error
	if err != nil {
		return fmt.Errorf("failed to set key-value: %w", err)
	}

	return nil
}

// GetKeyValue retrieves a value by key from the key-value store
func (s *pgStore) GetKeyValue(ctx context.Context, key string) (string, error) {
	var kv schema.KeyValueStore
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get key-value: %w", err)
	}

	return kv.Value, nil
}
