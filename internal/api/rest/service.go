package rest

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/feral-file/batch-ledger/internal/client"
	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/metadata"
	"github.com/feral-file/batch-ledger/internal/registry"
)

// LedgerService is the subset of the client access layer served over HTTP
//
//go:generate mockgen -source=service.go -destination=../../mocks/ledger_service.go -package=mocks -mock_names=LedgerService=MockLedgerService
type LedgerService interface {
	Chain(ctx context.Context) (*registry.Deployment, error)
	Account() common.Address

	GetTotalBatches(ctx context.Context) (uint64, error)
	GetBatchInfo(ctx context.Context, batchID uint64) (*domain.BatchInfo, error)
	GetBatchInfoWithMetadata(ctx context.Context, batchID uint64) (*client.BatchWithMetadata, error)
	GetOwnerHistory(ctx context.Context, batchID uint64) ([]common.Address, error)
	GetBatchHistoryEvents(ctx context.Context, batchID uint64) ([]domain.LedgerEvent, error)
	WasOwner(ctx context.Context, batchID uint64, address string) (bool, error)
	GetUserOwnedBatches(ctx context.Context, owner string) ([]uint64, error)

	CreateBatch(ctx context.Context, metadataRef string) (*client.CreateResult, error)
	CreateBatchWithMetadata(ctx context.Context, input client.CreateBatchInput) (*client.CreateResult, error)
	TransferBatch(ctx context.Context, batchID uint64, newOwner string) (*client.TxResult, error)
	UpdateMetadata(ctx context.Context, batchID uint64, newRef string) (*client.MetadataUpdateResult, error)
	UpdateMetadataDocument(ctx context.Context, batchID uint64, doc *metadata.BatchMetadata) (*client.MetadataUpdateResult, error)
}
