package devchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"

	"github.com/feral-file/batch-ledger/internal/adapter"
	"github.com/feral-file/batch-ledger/internal/contract"
	"github.com/feral-file/batch-ledger/internal/ledger"
	"github.com/feral-file/batch-ledger/internal/logger"
)

const (
	transferGas   = 21_000
	blockGasLimit = 30_000_000

	// maxPendingLogs bounds the logs queued for a subscriber that is not reading
	maxPendingLogs = 10_000
)

var (
	// ErrNonceTooLow is returned when a transaction reuses a nonce
	ErrNonceTooLow = errors.New("nonce too low")

	// ErrNonceTooHigh is returned when a transaction skips a nonce
	ErrNonceTooHigh = errors.New("nonce too high")

	// ErrAlreadyKnown is returned when the transaction was already mined
	ErrAlreadyKnown = errors.New("already known")

	// ErrInvalidChainID is returned when a transaction is signed for another chain
	ErrInvalidChainID = errors.New("invalid chain id for signer")

	// ErrFeeCapTooLow is returned when the fee cap is below the base fee
	ErrFeeCapTooLow = errors.New("max fee per gas less than block base fee")

	// ErrContractCreation is returned for deployment transactions
	ErrContractCreation = errors.New("contract creation is not supported")

	// ErrSubscriptionQueueOverflow ends a log subscription whose reader fell too far behind
	ErrSubscriptionQueueOverflow = errors.New("subscription queue overflow")

	// ErrIntrinsicGas is returned when the gas limit cannot cover a plain transfer
	ErrIntrinsicGas = errors.New("intrinsic gas too low")
)

// runtimeCode is reported by eth_getCode for the ledger address
var runtimeCode = []byte{0x60, 0x80, 0x60, 0x40, 0x52}

// Config holds the configuration of the dev chain
type Config struct {
	ChainID         *big.Int
	ContractAddress common.Address
	BaseFee         *big.Int
	GasTipCap       *big.Int
}

// Chain is an automining single node chain hosting the ledger contract.
// Every accepted transaction is mined into its own block.
type Chain struct {
	mu         sync.RWMutex
	notifyMu   sync.Mutex
	cfg        Config
	signer     types.Signer
	dispatcher *contract.Dispatcher
	clock      adapter.Clock

	headers  []*types.Header
	receipts map[common.Hash]*types.Receipt
	logs     []*types.Log
	nonces   map[common.Address]uint64

	logsFeed event.Feed
}

// New creates a chain with the dispatcher's ledger deployed at genesis
func New(cfg Config, dispatcher *contract.Dispatcher, clock adapter.Clock) *Chain {
	if cfg.BaseFee == nil {
		cfg.BaseFee = big.NewInt(1_000_000_000)
	}
	if cfg.GasTipCap == nil {
		cfg.GasTipCap = big.NewInt(1_000_000_000)
	}

	c := &Chain{
		cfg:        cfg,
		signer:     types.LatestSignerForChainID(cfg.ChainID),
		dispatcher: dispatcher,
		clock:      clock,
		receipts:   make(map[common.Hash]*types.Receipt),
		nonces:     make(map[common.Address]uint64),
	}
	c.headers = []*types.Header{c.newHeader(nil, uint64(clock.Now().Unix()), 0)} //nolint:gosec,G115
	return c
}

// Ledger returns the ledger hosted by the chain
func (c *Chain) Ledger() *ledger.Ledger {
	return c.dispatcher.Ledger()
}

// ContractAddress returns the address the ledger is deployed at
func (c *Chain) ContractAddress() common.Address {
	return c.cfg.ContractAddress
}

func (c *Chain) newHeader(parent *types.Header, timestamp uint64, gasUsed uint64) *types.Header {
	h := &types.Header{
		UncleHash:   types.EmptyUncleHash,
		Root:        types.EmptyRootHash,
		TxHash:      types.EmptyTxsHash,
		ReceiptHash: types.EmptyReceiptsHash,
		Difficulty:  big.NewInt(0),
		Number:      big.NewInt(0),
		GasLimit:    blockGasLimit,
		GasUsed:     gasUsed,
		Time:        timestamp,
		Extra:       []byte{},
		BaseFee:     new(big.Int).Set(c.cfg.BaseFee),
	}
	if parent != nil {
		h.ParentHash = parent.Hash()
		h.Number = new(big.Int).Add(parent.Number, common.Big1)
	}
	return h
}

func (c *Chain) latest() *types.Header {
	return c.headers[len(c.headers)-1]
}

// resolveBlock maps a requested block number onto a mined height, nil means latest
func (c *Chain) resolveBlock(number *big.Int) (uint64, error) {
	head := c.latest().Number.Uint64()
	if number == nil || number.Sign() < 0 {
		return head, nil
	}
	if !number.IsUint64() || number.Uint64() > head {
		return 0, ethereum.NotFound
	}
	return number.Uint64(), nil
}

// ChainID returns the chain id
func (c *Chain) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.cfg.ChainID), nil
}

// BlockNumber returns the height of the latest block
func (c *Chain) BlockNumber(ctx context.Context) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.latest().Number.Uint64(), nil
}

// HeaderByNumber returns a header by number, nil for the latest header
func (c *Chain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n, err := c.resolveBlock(number)
	if err != nil {
		return nil, err
	}
	return types.CopyHeader(c.headers[n]), nil
}

// CallContract evaluates a call. Only the head state is kept: a past block must exist
// and is evaluated against the head state.
func (c *Chain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.mu.RLock()
	_, err := c.resolveBlock(blockNumber)
	c.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if msg.To == nil || *msg.To != c.cfg.ContractAddress {
		return nil, nil
	}

	exec, err := c.dispatcher.Call(msg.From, msg.Data)
	if err != nil {
		return nil, err
	}
	return exec.Output, nil
}

// EstimateGas returns the gas a transaction would use, or the revert it would hit
func (c *Chain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if msg.To == nil {
		return 0, ErrContractCreation
	}
	if *msg.To != c.cfg.ContractAddress {
		return transferGas, nil
	}

	exec, err := c.dispatcher.Call(msg.From, msg.Data)
	if err != nil {
		return 0, err
	}
	return exec.GasUsed, nil
}

// SuggestGasPrice returns base fee plus tip
func (c *Chain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Add(c.cfg.BaseFee, c.cfg.GasTipCap), nil
}

// SuggestGasTipCap returns the priority fee
func (c *Chain) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.cfg.GasTipCap), nil
}

// PendingNonceAt returns the next nonce of the account
func (c *Chain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.nonces[account], nil
}

// CodeAt returns a non-empty code for the ledger address
func (c *Chain) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	if account == c.cfg.ContractAddress {
		return runtimeCode, nil
	}
	return nil, nil
}

// SendTransaction validates a signed transaction and mines it into a new block
func (c *Chain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if tx.To() == nil {
		return ErrContractCreation
	}
	if tx.Protected() && tx.ChainId().Cmp(c.cfg.ChainID) != 0 {
		return fmt.Errorf("%w: have %d want %d", ErrInvalidChainID, tx.ChainId(), c.cfg.ChainID)
	}
	sender, err := types.Sender(c.signer, tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if tx.GasFeeCap().Cmp(c.cfg.BaseFee) < 0 {
		return fmt.Errorf("%w: address %s, maxFeePerGas: %s, baseFee: %s", ErrFeeCapTooLow, sender.Hex(), tx.GasFeeCap(), c.cfg.BaseFee)
	}
	if tx.Gas() < transferGas {
		return fmt.Errorf("%w: have %d, want %d", ErrIntrinsicGas, tx.Gas(), transferGas)
	}

	c.mu.Lock()
	if _, ok := c.receipts[tx.Hash()]; ok {
		c.mu.Unlock()
		return ErrAlreadyKnown
	}
	nonce := c.nonces[sender]
	if tx.Nonce() < nonce {
		c.mu.Unlock()
		return fmt.Errorf("%w: address %s, tx: %d state: %d", ErrNonceTooLow, sender.Hex(), tx.Nonce(), nonce)
	}
	if tx.Nonce() > nonce {
		c.mu.Unlock()
		return fmt.Errorf("%w: address %s, tx: %d state: %d", ErrNonceTooHigh, sender.Hex(), tx.Nonce(), nonce)
	}

	receipt := c.mine(tx, sender)

	// publish logs in block order without holding the state lock
	c.notifyMu.Lock()
	c.mu.Unlock()
	if len(receipt.Logs) > 0 {
		c.logsFeed.Send(receipt.Logs)
	}
	c.notifyMu.Unlock()

	return nil
}

// mine executes tx in a new block; must be called with mu held
func (c *Chain) mine(tx *types.Transaction, sender common.Address) *types.Receipt {
	parent := c.latest()
	timestamp := uint64(c.clock.Now().Unix()) //nolint:gosec,G115
	if timestamp < parent.Time {
		timestamp = parent.Time
	}

	status := types.ReceiptStatusSuccessful
	gasUsed := uint64(transferGas)
	var logs []*types.Log

	if *tx.To() == c.cfg.ContractAddress {
		required := c.dispatcher.RequiredGas(tx.Data())
		if tx.Gas() < required {
			status = types.ReceiptStatusFailed
			gasUsed = tx.Gas()
			logger.Debug("Transaction ran out of gas",
				zap.String("txHash", tx.Hash().Hex()),
				zap.Uint64("gas", tx.Gas()),
				zap.Uint64("required", required))
		} else if exec, err := c.dispatcher.Execute(ledger.Tx{Sender: sender, Timestamp: c.clock.Unix(int64(timestamp), 0).UTC()}, tx.Data()); err != nil { //nolint:gosec,G115
			status = types.ReceiptStatusFailed
			gasUsed = required
			logger.Debug("Transaction reverted",
				zap.String("txHash", tx.Hash().Hex()),
				zap.String("sender", sender.Hex()),
				zap.Error(err))
		} else {
			gasUsed = exec.GasUsed
			logs = exec.Logs
		}
	}

	header := c.newHeader(parent, timestamp, gasUsed)
	header.TxHash = crypto.Keccak256Hash(tx.Hash().Bytes())
	header.ReceiptHash = crypto.Keccak256Hash(tx.Hash().Bytes(), []byte{byte(status)})
	blockHash := header.Hash()

	for i, l := range logs {
		l.BlockNumber = header.Number.Uint64()
		l.BlockHash = blockHash
		l.TxHash = tx.Hash()
		l.TxIndex = 0
		l.Index = uint(i)
	}
	if logs == nil {
		logs = []*types.Log{}
	}

	tip := new(big.Int).Sub(tx.GasFeeCap(), c.cfg.BaseFee)
	if tip.Cmp(tx.GasTipCap()) > 0 {
		tip = tx.GasTipCap()
	}

	receipt := &types.Receipt{
		Type:              tx.Type(),
		Status:            status,
		CumulativeGasUsed: gasUsed,
		Logs:              logs,
		TxHash:            tx.Hash(),
		GasUsed:           gasUsed,
		EffectiveGasPrice: new(big.Int).Add(c.cfg.BaseFee, tip),
		BlockHash:         blockHash,
		BlockNumber:       new(big.Int).Set(header.Number),
		TransactionIndex:  0,
	}

	c.headers = append(c.headers, header)
	c.receipts[tx.Hash()] = receipt
	c.logs = append(c.logs, logs...)
	c.nonces[sender]++

	logger.Debug("Mined block",
		zap.Uint64("number", header.Number.Uint64()),
		zap.String("txHash", tx.Hash().Hex()),
		zap.Uint64("status", status))

	return receipt
}

// TransactionReceipt returns the receipt of a mined transaction
func (c *Chain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	receipt, ok := c.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

// FilterLogs returns the logs matching the query
func (c *Chain) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var from, to uint64
	if query.BlockHash != nil {
		found := false
		for _, h := range c.headers {
			if h.Hash() == *query.BlockHash {
				from, to, found = h.Number.Uint64(), h.Number.Uint64(), true
				break
			}
		}
		if !found {
			return nil, errors.New("unknown block")
		}
	} else {
		head := c.latest().Number.Uint64()
		to = head
		if query.FromBlock != nil && query.FromBlock.Sign() >= 0 {
			from = query.FromBlock.Uint64()
		}
		if query.ToBlock != nil && query.ToBlock.Sign() >= 0 && query.ToBlock.Uint64() < head {
			to = query.ToBlock.Uint64()
		}
		if from > to {
			return []types.Log{}, nil
		}
	}

	result := []types.Log{}
	for _, l := range c.logs {
		if l.BlockNumber < from || l.BlockNumber > to {
			continue
		}
		if matchLog(query, l) {
			result = append(result, *l)
		}
	}
	return result, nil
}

// SubscribeFilterLogs streams logs mined after the call that match the query.
// The feed is always drained so a slow reader never blocks mining; a reader that
// falls more than maxPendingLogs behind is dropped with ErrSubscriptionQueueOverflow.
func (c *Chain) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	feed := make(chan []*types.Log, 256)
	sub := c.logsFeed.Subscribe(feed)

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()

		var pending []types.Log
		for {
			// nil channel disables the send case while nothing is queued
			var out chan<- types.Log
			var next types.Log
			if len(pending) > 0 {
				out = ch
				next = pending[0]
			}

			select {
			case logs := <-feed:
				for _, l := range logs {
					if matchLog(query, l) {
						pending = append(pending, *l)
					}
				}
				if len(pending) > maxPendingLogs {
					logger.Warn("Dropping slow log subscriber", zap.Int("pending", len(pending)))
					return ErrSubscriptionQueueOverflow
				}
			case out <- next:
				pending = pending[1:]
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

// Close is a no-op for the in-process chain
func (c *Chain) Close() {}

// matchLog checks address and topic filters the way eth_getLogs does
func matchLog(query ethereum.FilterQuery, l *types.Log) bool {
	if len(query.Addresses) > 0 {
		found := false
		for _, addr := range query.Addresses {
			if addr == l.Address {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(query.Topics) > len(l.Topics) {
		return false
	}
	for i, alternatives := range query.Topics {
		if len(alternatives) == 0 {
			continue
		}
		found := false
		for _, topic := range alternatives {
			if topic == l.Topics[i] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
