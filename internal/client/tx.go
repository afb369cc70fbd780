package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/logger"
)

const maxReceiptPollInterval = 5 * time.Second

// TxResult describes a mined ledger transaction
type TxResult struct {
	TxHash      common.Hash `json:"tx_hash"`
	BlockNumber uint64      `json:"block_number"`
	GasUsed     uint64      `json:"gas_used"`
}

func txResult(receipt *types.Receipt) TxResult {
	var blockNumber uint64
	if receipt.BlockNumber != nil {
		blockNumber = receipt.BlockNumber.Uint64()
	}
	return TxResult{TxHash: receipt.TxHash, BlockNumber: blockNumber, GasUsed: receipt.GasUsed}
}

func (c *Client) requireSigner(op string) error {
	if c.signer == nil {
		return domain.NewLedgerError(domain.ErrTransactionRejected, op, errors.New("no signing account configured"))
	}
	return nil
}

// transact submits a state changing call and waits until it is mined.
// State changing calls are never retried.
func (c *Client) transact(ctx context.Context, b *binding, op string, batchID uint64, method string, args ...interface{}) (*types.Receipt, error) {
	data, err := b.codec().Pack(method, args...)
	if err != nil {
		return nil, domain.NewLedgerError(domain.ErrInvalidArgument, op, err)
	}

	to := b.address()
	msg := ethereum.CallMsg{From: c.signer.Address(), To: &to, Data: data}

	// a call that would revert fails here with its custom error, before anything is signed
	gas, err := c.eth.EstimateGas(ctx, msg)
	if err != nil {
		return nil, classify(op, b.codec(), err)
	}
	gas += gas * c.cfg.GasMarginPercent / 100

	nonce, err := c.eth.PendingNonceAt(ctx, msg.From)
	if err != nil {
		return nil, classify(op, b.codec(), err)
	}

	tx, err := c.buildTx(ctx, b, nonce, gas, to, data)
	if err != nil {
		return nil, classify(op, b.codec(), err)
	}

	signed, err := c.signer.SignTx(ctx, tx, b.chainID)
	if err != nil {
		return nil, classify(op, b.codec(), err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, classify(op, b.codec(), err)
	}

	logger.InfoCtx(ctx, "Submitted ledger transaction",
		zap.String("op", op),
		zap.String("txHash", signed.Hash().Hex()),
		zap.String("from", msg.From.Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", gas))

	receipt, err := c.waitReceipt(ctx, signed.Hash())
	if err != nil {
		return nil, &domain.LedgerError{
			Kind:    domain.ErrTransientNetworkFailure,
			Op:      op,
			BatchID: batchID,
			Chain:   b.chain,
			TxHash:  signed.Hash().Hex(),
			Err:     fmt.Errorf("transaction not confirmed: %w", err),
		}
	}

	if receipt.Status == types.ReceiptStatusFailed {
		return nil, c.revertReason(ctx, b, op, batchID, msg, receipt)
	}
	return receipt, nil
}

// buildTx builds a dynamic fee transaction, or a legacy one on chains without a base fee
func (c *Client) buildTx(ctx context.Context, b *binding, nonce, gas uint64, to common.Address, data []byte) (*types.Transaction, error) {
	head, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest header: %w", err)
	}

	if head.BaseFee == nil {
		gasPrice, err := c.eth.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to suggest gas price: %w", err)
		}
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       &to,
			Data:     data,
		}), nil
	}

	tip, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas tip cap: %w", err)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   b.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Data:      data,
	}), nil
}

// waitReceipt polls for the receipt of a transaction until it is mined or ctx is done
func (c *Client) waitReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.ReceiptPollInterval
	b.MaxInterval = maxReceiptPollInterval
	b.MaxElapsedTime = 0

	operation := func() (*types.Receipt, error) {
		receipt, err := c.eth.TransactionReceipt(ctx, txHash)
		if err != nil {
			if !errors.Is(err, ethereum.NotFound) {
				logger.DebugCtx(ctx, "Failed to get transaction receipt", zap.String("txHash", txHash.Hex()), zap.Error(err))
			}
			return nil, err
		}
		return receipt, nil
	}

	return backoff.RetryWithData(operation, backoff.WithContext(b, ctx))
}

// revertReason classifies a mined transaction that failed by replaying it as a call at its block
func (c *Client) revertReason(ctx context.Context, b *binding, op string, batchID uint64, msg ethereum.CallMsg, receipt *types.Receipt) error {
	txHash := receipt.TxHash.Hex()

	_, callErr := c.eth.CallContract(ctx, msg, receipt.BlockNumber)
	if callErr != nil {
		var le *domain.LedgerError
		if errors.As(classify(op, b.codec(), callErr), &le) && le.Kind != domain.ErrTransientNetworkFailure {
			classified := *le
			classified.TxHash = txHash
			return &classified
		}
	}

	logger.WarnCtx(ctx, "Ledger transaction failed without a replayable revert",
		zap.String("op", op),
		zap.String("txHash", txHash),
		zap.Uint64("gasUsed", receipt.GasUsed))

	return &domain.LedgerError{
		Kind:    domain.ErrTransientNetworkFailure,
		Op:      op,
		BatchID: batchID,
		Chain:   b.chain,
		TxHash:  txHash,
		Err:     errors.New("transaction reverted"),
	}
}
