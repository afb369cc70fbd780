package schema

import (
	"time"

	"gorm.io/datatypes"

	"github.com/feral-file/batch-ledger/internal/domain"
)

// LedgerEvent represents the ledger_events table - the journal of ledger contract events
type LedgerEvent struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Chain identifies the network where this event occurred
	Chain domain.Chain `gorm:"column:chain;not null;type:text;uniqueIndex:idx_ledger_events_log"`
	// ContractAddress is the ledger contract that emitted the event
	ContractAddress string `gorm:"column:contract_address;not null;type:text"`
	// BatchID is the batch the event relates to
	BatchID uint64 `gorm:"column:batch_id;not null;type:bigint;index:idx_ledger_events_batch"`
	// EventType identifies the event (batch_created, batch_transferred, metadata_updated)
	EventType domain.EventType `gorm:"column:event_type;not null;type:text"`
	// FromAddress is the previous owner (transfers only)
	FromAddress *string `gorm:"column:from_address;type:text"`
	// ToAddress is the creator or the new owner
	ToAddress *string `gorm:"column:to_address;type:text"`
	// OldMetadataRef is the replaced metadata reference (metadata updates only)
	OldMetadataRef *string `gorm:"column:old_metadata_ref;type:text"`
	// MetadataRef is the reference at creation or after an update
	MetadataRef *string `gorm:"column:metadata_ref;type:text"`
	// TxHash is the transaction that emitted the event
	TxHash string `gorm:"column:tx_hash;not null;type:text;uniqueIndex:idx_ledger_events_log"`
	// BlockNumber is the block the event was recorded in
	BlockNumber uint64 `gorm:"column:block_number;not null;type:bigint"`
	// BlockHash is the hash of the block containing the event
	BlockHash *string `gorm:"column:block_hash;type:text"`
	// LogIndex is the position of the log in its block
	LogIndex uint64 `gorm:"column:log_index;not null;type:bigint;uniqueIndex:idx_ledger_events_log"`
	// Timestamp is the ledger timestamp carried by the event
	Timestamp time.Time `gorm:"column:timestamp;not null;type:timestamptz"`
	// Raw contains the normalized event as JSON
	Raw datatypes.JSON `gorm:"column:raw;type:jsonb"`
	// CreatedAt is the timestamp when this record was journaled
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the LedgerEvent model
func (LedgerEvent) TableName() string {
	return "ledger_events"
}
