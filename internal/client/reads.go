package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/logger"
	"github.com/feral-file/batch-ledger/internal/metadata"
	"github.com/feral-file/batch-ledger/internal/registry"
)

// BatchWithMetadata is the on-chain summary of a batch enriched with its metadata document
type BatchWithMetadata struct {
	domain.BatchInfo
	Metadata *metadata.BatchMetadata `json:"metadata,omitempty"`

	// IndexedMetadataRef is the side index reference of deployments without an on-chain one
	IndexedMetadataRef string `json:"indexed_metadata_ref,omitempty"`

	// MetadataError describes why the document could not be loaded
	MetadataError string `json:"metadata_error,omitempty"`
}

// call evaluates a view function against the resolved deployment
func (c *Client) call(ctx context.Context, b *binding, op string, method string, args ...interface{}) ([]byte, error) {
	data, err := b.codec().Pack(method, args...)
	if err != nil {
		return nil, domain.NewLedgerError(domain.ErrInvalidArgument, op, err)
	}

	to := b.address()
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{From: c.Account(), To: &to, Data: data}, nil)
	if err != nil {
		return nil, classify(op, b.codec(), err)
	}
	if len(out) == 0 {
		return nil, &domain.LedgerError{
			Kind:  domain.ErrUnsupportedNetwork,
			Op:    op,
			Chain: b.chain,
			Err:   fmt.Errorf("no ledger contract at %s", to.Hex()),
		}
	}
	return out, nil
}

// read resolves the network and evaluates a view function within the call timeout
func (c *Client) read(ctx context.Context, op string, method string, args ...interface{}) (*binding, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	b, err := c.resolve(ctx, op)
	if err != nil {
		return nil, nil, err
	}
	out, err := c.call(ctx, b, op, method, args...)
	if err != nil {
		return nil, nil, err
	}
	return b, out, nil
}

func decodeFailure(op string, err error) error {
	return domain.NewLedgerError(domain.ErrTransientNetworkFailure, op, fmt.Errorf("failed to decode result: %w", err))
}

// GetCurrentOwner returns the current owner of a batch
func (c *Client) GetCurrentOwner(ctx context.Context, batchID uint64) (common.Address, error) {
	const op = "getCurrentOwner"
	b, out, err := c.read(ctx, op, "getCurrentOwner", new(big.Int).SetUint64(batchID))
	if err != nil {
		return common.Address{}, err
	}
	owner, err := b.codec().UnpackAddress("getCurrentOwner", out)
	if err != nil {
		return common.Address{}, decodeFailure(op, err)
	}
	return owner, nil
}

// GetOwnerHistory returns every owner of a batch, creator first
func (c *Client) GetOwnerHistory(ctx context.Context, batchID uint64) ([]common.Address, error) {
	const op = "getOwnerHistory"
	b, out, err := c.read(ctx, op, "getOwnerHistory", new(big.Int).SetUint64(batchID))
	if err != nil {
		return nil, err
	}
	history, err := b.codec().UnpackAddresses("getOwnerHistory", out)
	if err != nil {
		return nil, decodeFailure(op, err)
	}
	return history, nil
}

// GetBatchInfo returns the on-chain summary of a batch
func (c *Client) GetBatchInfo(ctx context.Context, batchID uint64) (*domain.BatchInfo, error) {
	const op = "getBatchInfo"
	b, out, err := c.read(ctx, op, "getBatchInfo", new(big.Int).SetUint64(batchID))
	if err != nil {
		return nil, err
	}
	info, err := b.codec().UnpackBatchInfo(out)
	if err != nil {
		return nil, decodeFailure(op, err)
	}
	return &info, nil
}

// GetTotalBatches returns the number of batches ever created
func (c *Client) GetTotalBatches(ctx context.Context) (uint64, error) {
	const op = "getTotalBatches"
	b, out, err := c.read(ctx, op, "getTotalBatches")
	if err != nil {
		return 0, err
	}
	total, err := b.codec().UnpackUint64("getTotalBatches", out)
	if err != nil {
		return 0, decodeFailure(op, err)
	}
	return total, nil
}

// GetOwnerCount returns the length of the owner history of a batch
func (c *Client) GetOwnerCount(ctx context.Context, batchID uint64) (uint64, error) {
	const op = "getOwnerCount"
	b, out, err := c.read(ctx, op, "getOwnerCount", new(big.Int).SetUint64(batchID))
	if err != nil {
		return 0, err
	}
	count, err := b.codec().UnpackUint64("getOwnerCount", out)
	if err != nil {
		return 0, decodeFailure(op, err)
	}
	return count, nil
}

// WasOwner reports whether an address appears in the owner history of a batch
func (c *Client) WasOwner(ctx context.Context, batchID uint64, address string) (bool, error) {
	const op = "wasOwner"
	account, err := domain.ParseAddress(address)
	if err != nil {
		return false, &domain.LedgerError{Kind: domain.ErrInvalidArgument, Op: op, BatchID: batchID, Address: address, Err: err}
	}

	b, out, err := c.read(ctx, op, "wasOwner", new(big.Int).SetUint64(batchID), account)
	if err != nil {
		return false, err
	}
	was, err := b.codec().UnpackBool("wasOwner", out)
	if err != nil {
		return false, decodeFailure(op, err)
	}
	return was, nil
}

// BatchExists reports whether a batch id has been created
func (c *Client) BatchExists(ctx context.Context, batchID uint64) (bool, error) {
	const op = "batchExists"
	b, out, err := c.read(ctx, op, "batchExists", new(big.Int).SetUint64(batchID))
	if err != nil {
		return false, err
	}
	exists, err := b.codec().UnpackBool("batchExists", out)
	if err != nil {
		return false, decodeFailure(op, err)
	}
	return exists, nil
}

// GetBatchInfoWithMetadata returns the batch summary with its metadata document.
// A document that cannot be loaded leaves Metadata nil instead of failing the read.
// The side index is only consulted for deployments whose getBatchInfo has no metadata reference;
// otherwise an empty on-chain reference means the batch has no metadata.
func (c *Client) GetBatchInfoWithMetadata(ctx context.Context, batchID uint64) (*BatchWithMetadata, error) {
	const op = "getBatchInfo"
	b, out, err := c.read(ctx, op, "getBatchInfo", new(big.Int).SetUint64(batchID))
	if err != nil {
		return nil, err
	}
	info, err := b.codec().UnpackBatchInfo(out)
	if err != nil {
		return nil, decodeFailure(op, err)
	}

	result := &BatchWithMetadata{BatchInfo: info}

	ref := info.MetadataRef
	if !b.codec().HasMetadataField() && c.index != nil {
		ref = c.indexedMetadataRef(ctx, b.deployment, batchID)
		result.IndexedMetadataRef = ref
	}
	if ref == "" {
		return result, nil
	}

	if c.metadata == nil {
		result.MetadataError = "metadata store not configured"
		return result, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	doc, err := c.metadata.Fetch(fetchCtx, ref)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to load batch metadata",
			zap.Uint64("batchId", batchID),
			zap.String("metadataRef", ref),
			zap.Error(err))
		result.MetadataError = domain.UserMessage(err)
		return result, nil
	}
	result.Metadata = doc
	return result, nil
}

func (c *Client) indexedMetadataRef(ctx context.Context, deployment *registry.Deployment, batchID uint64) string {
	ref, err := c.index.GetMetadataRef(ctx, deployment.Chain, deployment.ContractAddress.Hex(), batchID)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to read metadata side index", zap.Uint64("batchId", batchID), zap.Error(err))
		return ""
	}
	return ref
}

// GetUserOwnedBatches returns the ids of the batches currently owned by an address in ascending order.
// It reads the owner of every batch so the cost grows linearly with the number of batches.
func (c *Client) GetUserOwnedBatches(ctx context.Context, owner string) ([]uint64, error) {
	const op = "getUserOwnedBatches"
	account, err := domain.ParseAddress(owner)
	if err != nil {
		return nil, &domain.LedgerError{Kind: domain.ErrInvalidArgument, Op: op, Address: owner, Err: err}
	}

	total, err := c.GetTotalBatches(ctx)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return []uint64{}, nil
	}

	pool := pond.NewResultPool[bool](c.cfg.ScanConcurrency)
	defer pool.StopAndWait()

	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group := pool.NewGroupContext(scanCtx)
	for batchID := uint64(domain.FIRST_BATCH_ID); batchID <= total; batchID++ {
		group.SubmitErr(func() (bool, error) {
			current, err := c.GetCurrentOwner(scanCtx, batchID)
			if errors.Is(err, domain.ErrNotFound) {
				return false, nil
			}
			if err != nil {
				return false, err
			}
			return current == account, nil
		})
	}

	owned, err := group.Wait()
	if err != nil {
		return nil, classify(op, nil, err)
	}

	batchIDs := []uint64{}
	for i, ok := range owned {
		if ok {
			batchIDs = append(batchIDs, uint64(domain.FIRST_BATCH_ID)+uint64(i)) //nolint:gosec,G115
		}
	}

	logger.DebugCtx(ctx, "Scanned owned batches",
		zap.String("owner", account.Hex()),
		zap.Uint64("total", total),
		zap.Int("owned", len(batchIDs)))
	return batchIDs, nil
}

// GetBatchHistoryEvents replays the ledger events of a batch from the deployment block
func (c *Client) GetBatchHistoryEvents(ctx context.Context, batchID uint64) ([]domain.LedgerEvent, error) {
	const op = "getBatchHistoryEvents"
	exists, err := c.BatchExists(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &domain.LedgerError{Kind: domain.ErrNotFound, Op: op, BatchID: batchID}
	}

	b, err := c.resolve(ctx, op)
	if err != nil {
		return nil, err
	}

	events, err := b.events.GetLedgerEvents(ctx, &batchID, b.deployment.StartBlock, nil)
	if err != nil {
		return nil, classify(op, b.codec(), err)
	}
	return events, nil
}
