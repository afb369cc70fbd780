package schema

import (
	"time"

	"github.com/feral-file/batch-ledger/internal/domain"
)

// BatchMetadataRef represents the batch_metadata_refs table - the off-chain side index of metadata references
type BatchMetadataRef struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Chain identifies the network the batch lives on
	Chain domain.Chain `gorm:"column:chain;not null;type:text;uniqueIndex:idx_batch_metadata_refs_batch"`
	// ContractAddress is the ledger contract the batch belongs to
	ContractAddress string `gorm:"column:contract_address;not null;type:text;uniqueIndex:idx_batch_metadata_refs_batch"`
	// BatchID is the on-chain batch identifier
	BatchID uint64 `gorm:"column:batch_id;not null;type:bigint;uniqueIndex:idx_batch_metadata_refs_batch"`
	// MetadataRef is the content address of the metadata document
	MetadataRef string `gorm:"column:metadata_ref;not null;type:text"`
	// TxHash is the transaction that attached the reference
	TxHash *string `gorm:"column:tx_hash;type:text"`
	// CreatedAt is the timestamp when this record was created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this record was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the BatchMetadataRef model
func (BatchMetadataRef) TableName() string {
	return "batch_metadata_refs"
}
