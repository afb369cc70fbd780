package rest

import (
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/feral-file/batch-ledger/internal/client"
	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/metadata"
)

// BatchResponse is the on-chain summary of a batch, optionally enriched with its document
type BatchResponse struct {
	BatchID        uint64                  `json:"batch_id"`
	CurrentOwner   string                  `json:"current_owner"`
	OwnerCount     uint64                  `json:"owner_count"`
	CreatedAt      time.Time               `json:"created_at"`
	LastTransferAt time.Time               `json:"last_transfer_at"`
	MetadataRef    string                  `json:"metadata_ref,omitempty"`
	IndexedRef     string                  `json:"indexed_metadata_ref,omitempty"`
	Metadata       *metadata.BatchMetadata `json:"metadata,omitempty"`
	MetadataError  string                  `json:"metadata_error,omitempty"`
}

func newBatchResponse(info domain.BatchInfo) BatchResponse {
	return BatchResponse{
		BatchID:        info.BatchID,
		CurrentOwner:   info.CurrentOwner.Hex(),
		OwnerCount:     info.OwnerCount,
		CreatedAt:      info.CreatedAt.UTC(),
		LastTransferAt: info.LastTransferAt.UTC(),
		MetadataRef:    info.MetadataRef,
	}
}

func newBatchWithMetadataResponse(batch *client.BatchWithMetadata) BatchResponse {
	resp := newBatchResponse(batch.BatchInfo)
	resp.IndexedRef = batch.IndexedMetadataRef
	resp.Metadata = batch.Metadata
	resp.MetadataError = batch.MetadataError
	return resp
}

// TotalBatchesResponse holds the number of batches ever created
type TotalBatchesResponse struct {
	Total uint64 `json:"total"`
}

// OwnerHistoryResponse lists every owner of a batch, creator first
type OwnerHistoryResponse struct {
	BatchID uint64   `json:"batch_id"`
	Owners  []string `json:"owners"`
}

func newOwnerHistoryResponse(batchID uint64, owners []common.Address) OwnerHistoryResponse {
	resp := OwnerHistoryResponse{BatchID: batchID, Owners: make([]string, 0, len(owners))}
	for _, owner := range owners {
		resp.Owners = append(resp.Owners, owner.Hex())
	}
	return resp
}

// BatchEventsResponse lists the ledger events of a batch in chain order
type BatchEventsResponse struct {
	BatchID uint64               `json:"batch_id"`
	Events  []domain.LedgerEvent `json:"events"`
}

// WasOwnerResponse answers whether an address ever owned a batch
type WasOwnerResponse struct {
	BatchID  uint64 `json:"batch_id"`
	Address  string `json:"address"`
	WasOwner bool   `json:"was_owner"`
}

// OwnedBatchesResponse lists the batches currently owned by an address
type OwnedBatchesResponse struct {
	Owner    string   `json:"owner"`
	BatchIDs []uint64 `json:"batch_ids"`
	Total    int      `json:"total"`
}

// HealthResponse reports the service and the deployment it is bound to
type HealthResponse struct {
	Status   string       `json:"status"`
	Service  string       `json:"service"`
	Chain    domain.Chain `json:"chain,omitempty"`
	Contract string       `json:"contract,omitempty"`
	Account  string       `json:"account,omitempty"`
}

// CreateBatchRequest creates a batch either from an existing metadata reference
// or from document fields pinned on the way, with an optional base64 image
type CreateBatchRequest struct {
	MetadataRef string          `json:"metadata_ref"`
	Metadata    *metadata.Input `json:"metadata"`
	ImageBase64 string          `json:"image_base64"`
	ImageName   string          `json:"image_name"`
}

// Validate checks the request shape
func (r *CreateBatchRequest) Validate() error {
	if r.MetadataRef != "" && r.Metadata != nil {
		return errors.New("metadata_ref and metadata are mutually exclusive")
	}
	if r.ImageBase64 != "" && r.Metadata == nil {
		return errors.New("image_base64 requires metadata")
	}
	return nil
}

// TransferBatchRequest moves a batch to a new owner
type TransferBatchRequest struct {
	NewOwner string `json:"new_owner" binding:"required"`
}

// UpdateMetadataRequest replaces the metadata reference of a batch, either directly
// or by pinning a new document built from the given fields
type UpdateMetadataRequest struct {
	MetadataRef string          `json:"metadata_ref"`
	Metadata    *metadata.Input `json:"metadata"`
	Image       string          `json:"image"`
}

// Validate checks the request shape
func (r *UpdateMetadataRequest) Validate() error {
	if (r.MetadataRef == "") == (r.Metadata == nil) {
		return errors.New("exactly one of metadata_ref and metadata is required")
	}
	if r.Image != "" && r.Metadata == nil {
		return errors.New("image requires metadata")
	}
	return nil
}
