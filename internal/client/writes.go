package client

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/ledger"
	"github.com/feral-file/batch-ledger/internal/logger"
	"github.com/feral-file/batch-ledger/internal/metadata"
	"github.com/feral-file/batch-ledger/internal/registry"
)

// CreateResult describes a created batch
type CreateResult struct {
	TxResult
	BatchID     uint64 `json:"batch_id"`
	MetadataRef string `json:"metadata_ref"`
}

// MetadataUpdateResult describes a metadata reference update
type MetadataUpdateResult struct {
	TxResult
	BatchID     uint64 `json:"batch_id"`
	MetadataRef string `json:"metadata_ref"`
}

// CreateBatchInput holds the document fields and the optional image of a new batch
type CreateBatchInput struct {
	metadata.Input
	Image     []byte
	ImageName string
}

// CreateBatch creates a batch owned by the signing account
func (c *Client) CreateBatch(ctx context.Context, metadataRef string) (*CreateResult, error) {
	const op = "createBatch"
	if err := c.requireSigner(op); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.TxTimeout)
	defer cancel()

	b, err := c.resolve(ctx, op)
	if err != nil {
		return nil, err
	}

	receipt, err := c.transact(ctx, b, op, 0, "createBatch", metadataRef)
	if err != nil {
		return nil, err
	}

	batchID, err := c.createdBatchID(b, receipt)
	if err != nil {
		return nil, &domain.LedgerError{
			Kind:   domain.ErrTransientNetworkFailure,
			Op:     op,
			Chain:  b.chain,
			TxHash: receipt.TxHash.Hex(),
			Err:    err,
		}
	}

	logger.InfoCtx(ctx, "Created batch",
		zap.Uint64("batchId", batchID),
		zap.String("txHash", receipt.TxHash.Hex()),
		zap.String("metadataRef", metadataRef))

	return &CreateResult{TxResult: txResult(receipt), BatchID: batchID, MetadataRef: metadataRef}, nil
}

// createdBatchID reads the id assigned by the ledger from the BatchCreated event of a receipt
func (c *Client) createdBatchID(b *binding, receipt *types.Receipt) (uint64, error) {
	for _, vLog := range receipt.Logs {
		if vLog.Address != b.address() {
			continue
		}
		event, err := b.codec().DecodeEvent(*vLog)
		if err != nil {
			continue
		}
		if created, ok := event.(ledger.BatchCreated); ok {
			return created.BatchID, nil
		}
	}
	return 0, errors.New("receipt carries no BatchCreated event")
}

// CreateBatchWithMetadata uploads the image, pins the metadata document and creates a batch referencing it.
// Off-chain failures abort before any transaction is sent. A document pinned for a batch that
// then fails to be created is left orphaned.
func (c *Client) CreateBatchWithMetadata(ctx context.Context, input CreateBatchInput) (*CreateResult, error) {
	const op = "createBatchWithMetadata"
	if err := c.requireSigner(op); err != nil {
		return nil, err
	}
	if c.metadata == nil {
		return nil, domain.NewLedgerError(domain.ErrOffChainStorageFailure, op, errors.New("metadata store not configured"))
	}

	deployment, err := c.Chain(ctx)
	if err != nil {
		return nil, err
	}

	// the fields are checked before anything is pinned
	createdAt := c.clock.Now()
	if _, err := metadata.Build(input.Input, "", createdAt); err != nil {
		return nil, err
	}

	// 1. upload the image
	var imageRef string
	if len(input.Image) > 0 {
		imageRef, err = c.metadata.PinImage(ctx, input.ImageName, input.Image)
		if err != nil {
			return nil, storageFailure(op, err)
		}
	}

	// 2. build the document
	doc, err := metadata.Build(input.Input, imageRef, createdAt)
	if err != nil {
		return nil, err
	}

	// 3. pin the document
	metadataRef, err := c.metadata.Pin(ctx, doc)
	if err != nil {
		return nil, storageFailure(op, err)
	}

	// 4-5. create the batch and read its id from the receipt
	result, err := c.CreateBatch(ctx, metadataRef)
	if err != nil {
		logger.WarnCtx(ctx, "Batch creation failed after metadata was pinned",
			zap.String("metadataRef", metadataRef),
			zap.Error(err))
		return nil, err
	}

	// 6. record the side index
	c.recordMetadataRef(ctx, deployment, result.BatchID, metadataRef, result.TxHash.Hex())

	return result, nil
}

// recordMetadataRef writes a reference to the side index, failures are only logged
func (c *Client) recordMetadataRef(ctx context.Context, deployment *registry.Deployment, batchID uint64, metadataRef string, txHash string) {
	if c.index == nil {
		return
	}
	if err := c.index.SaveMetadataRef(ctx, deployment.Chain, deployment.ContractAddress.Hex(), batchID, metadataRef, txHash); err != nil {
		logger.WarnCtx(ctx, "Failed to record metadata side index",
			zap.Uint64("batchId", batchID),
			zap.String("metadataRef", metadataRef),
			zap.Error(err))
	}
}

// TransferBatch hands a batch over to a new owner
func (c *Client) TransferBatch(ctx context.Context, batchID uint64, newOwner string) (*TxResult, error) {
	const op = "transferBatch"
	if err := c.requireSigner(op); err != nil {
		return nil, err
	}

	to, err := domain.ParseAddress(newOwner)
	if err != nil {
		return nil, &domain.LedgerError{Kind: domain.ErrInvalidArgument, Op: op, BatchID: batchID, Address: newOwner, Err: err}
	}

	// same order as the contract: existence, ownership, then the new owner
	owner, err := c.GetCurrentOwner(ctx, batchID)
	if err != nil {
		return nil, err
	}
	caller := c.signer.Address()
	if owner != caller {
		return nil, &domain.LedgerError{
			Kind:    domain.ErrUnauthorized,
			Op:      op,
			BatchID: batchID,
			Caller:  caller.Hex(),
			Owner:   owner.Hex(),
		}
	}
	if domain.IsZeroAddress(to) {
		return nil, &domain.LedgerError{
			Kind:    domain.ErrInvalidArgument,
			Op:      op,
			BatchID: batchID,
			Address: to.Hex(),
			Err:     errors.New("new owner is the zero address"),
		}
	}
	if to == owner {
		return nil, &domain.LedgerError{
			Kind:    domain.ErrInvalidArgument,
			Op:      op,
			BatchID: batchID,
			Address: to.Hex(),
			Err:     errors.New("new owner is already the current owner"),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.TxTimeout)
	defer cancel()

	b, err := c.resolve(ctx, op)
	if err != nil {
		return nil, err
	}

	receipt, err := c.transact(ctx, b, op, batchID, "transferBatch", new(big.Int).SetUint64(batchID), to)
	if err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "Transferred batch",
		zap.Uint64("batchId", batchID),
		zap.String("from", owner.Hex()),
		zap.String("to", to.Hex()),
		zap.String("txHash", receipt.TxHash.Hex()))

	result := txResult(receipt)
	return &result, nil
}

// UpdateMetadata replaces the metadata reference of a batch
func (c *Client) UpdateMetadata(ctx context.Context, batchID uint64, newRef string) (*MetadataUpdateResult, error) {
	const op = "updateMetadata"
	if err := c.requireSigner(op); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.TxTimeout)
	defer cancel()

	b, err := c.resolve(ctx, op)
	if err != nil {
		return nil, err
	}

	receipt, err := c.transact(ctx, b, op, batchID, "updateMetadata", new(big.Int).SetUint64(batchID), newRef)
	if err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "Updated batch metadata",
		zap.Uint64("batchId", batchID),
		zap.String("metadataRef", newRef),
		zap.String("txHash", receipt.TxHash.Hex()))

	c.recordMetadataRef(ctx, b.deployment, batchID, newRef, receipt.TxHash.Hex())

	return &MetadataUpdateResult{TxResult: txResult(receipt), BatchID: batchID, MetadataRef: newRef}, nil
}

// UpdateMetadataDocument pins a new metadata document and points the batch at it.
// Ownership is checked first so documents are not pinned for calls that would revert.
func (c *Client) UpdateMetadataDocument(ctx context.Context, batchID uint64, doc *metadata.BatchMetadata) (*MetadataUpdateResult, error) {
	const op = "updateMetadataDocument"
	if err := c.requireSigner(op); err != nil {
		return nil, err
	}
	if c.metadata == nil {
		return nil, domain.NewLedgerError(domain.ErrOffChainStorageFailure, op, errors.New("metadata store not configured"))
	}

	owner, err := c.GetCurrentOwner(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if caller := c.signer.Address(); owner != caller {
		return nil, &domain.LedgerError{
			Kind:    domain.ErrUnauthorized,
			Op:      op,
			BatchID: batchID,
			Caller:  caller.Hex(),
			Owner:   owner.Hex(),
		}
	}

	metadataRef, err := c.metadata.Pin(ctx, doc)
	if err != nil {
		return nil, storageFailure(op, err)
	}

	result, err := c.UpdateMetadata(ctx, batchID, metadataRef)
	if err != nil {
		logger.WarnCtx(ctx, "Metadata update failed after document was pinned",
			zap.Uint64("batchId", batchID),
			zap.String("metadataRef", metadataRef),
			zap.Error(err))
		return nil, err
	}

	return result, nil
}

// storageFailure classifies a metadata store failure, keeping validation errors as they are
func storageFailure(op string, err error) error {
	if domain.IsClassified(err) {
		return err
	}
	return domain.NewLedgerError(domain.ErrOffChainStorageFailure, op, err)
}
