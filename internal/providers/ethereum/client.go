package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/feral-file/batch-ledger/internal/adapter"
	"github.com/feral-file/batch-ledger/internal/contract"
	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/logger"
)

const (
	// defaultStepSize is the initial block range of a single eth_getLogs query
	defaultStepSize = uint64(1_000_000)

	// filterTimeout bounds a whole paginated log query
	filterTimeout = time.Minute
)

// EthereumClient reads the event log of a ledger contract deployment
//
//go:generate mockgen -source=client.go -destination=../../mocks/ethereum_client.go -package=mocks -mock_names=EthereumClient=MockEthereumClient
type EthereumClient interface {
	// ParseEventLog parses a ledger contract log into a ledger event.
	// Returns nil for logs that are not ledger events.
	ParseEventLog(ctx context.Context, vLog types.Log) (*domain.LedgerEvent, error)

	// SubscribeFilterLogs subscribes to filter logs
	SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)

	// HeaderByNumber returns a header by number
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)

	// LedgerQuery builds the filter matching the ledger events, optionally of a single batch
	LedgerQuery(batchID *uint64) ethereum.FilterQuery

	// GetLedgerEvents replays the ledger events between two blocks in log order.
	// A nil toBlock means the latest block.
	GetLedgerEvents(ctx context.Context, batchID *uint64, fromBlock uint64, toBlock *uint64) ([]domain.LedgerEvent, error)

	// Close closes the connection
	Close()
}

type ethereumClient struct {
	chainID  domain.Chain
	address  common.Address
	codec    *contract.Codec
	client   adapter.EthClient
	clock    adapter.Clock
	stepSize uint64
}

// NewClient creates a ledger log client for the contract deployed at address
func NewClient(chainID domain.Chain, address common.Address, codec *contract.Codec, client adapter.EthClient, clock adapter.Clock) EthereumClient {
	return &ethereumClient{
		chainID:  chainID,
		address:  address,
		codec:    codec,
		client:   client,
		clock:    clock,
		stepSize: defaultStepSize,
	}
}

// NewClientWithStepSize creates a client whose log queries start at the given block range
func NewClientWithStepSize(chainID domain.Chain, address common.Address, codec *contract.Codec, client adapter.EthClient, clock adapter.Clock, stepSize uint64) EthereumClient {
	c := NewClient(chainID, address, codec, client, clock).(*ethereumClient)
	if stepSize > 0 {
		c.stepSize = stepSize
	}
	return c
}

// SubscribeFilterLogs subscribes to filter logs
func (c *ethereumClient) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return c.client.SubscribeFilterLogs(ctx, query, ch)
}

// HeaderByNumber returns a header by number
func (c *ethereumClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return c.client.HeaderByNumber(ctx, number)
}

func (c *ethereumClient) LedgerQuery(batchID *uint64) ethereum.FilterQuery {
	topics := [][]common.Hash{c.codec.EventIDs()}
	if batchID != nil {
		topics = append(topics, []common.Hash{contract.BatchIDTopic(*batchID)})
	}
	return ethereum.FilterQuery{
		Addresses: []common.Address{c.address},
		Topics:    topics,
	}
}

func (c *ethereumClient) GetLedgerEvents(ctx context.Context, batchID *uint64, fromBlock uint64, toBlock *uint64) ([]domain.LedgerEvent, error) {
	query := c.LedgerQuery(batchID)
	query.FromBlock = new(big.Int).SetUint64(fromBlock)
	if toBlock != nil {
		query.ToBlock = new(big.Int).SetUint64(*toBlock)
	}

	logs, err := c.filterLogsWithPagination(ctx, query)
	if err != nil {
		return nil, err
	}

	events := make([]domain.LedgerEvent, 0, len(logs))
	for _, vLog := range logs {
		event, err := c.ParseEventLog(ctx, vLog)
		if err != nil {
			return nil, fmt.Errorf("failed to parse log %s:%d: %w", vLog.TxHash.Hex(), vLog.Index, err)
		}
		if event == nil {
			continue
		}
		events = append(events, *event)
	}

	return events, nil
}

// filterLogsWithPagination splits a log query into block ranges to stay under provider result limits
func (c *ethereumClient) filterLogsWithPagination(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, filterTimeout)
	defer cancel()

	// If blockhash is specified, use it directly (no pagination needed)
	if query.BlockHash != nil {
		return c.client.FilterLogs(timeoutCtx, query)
	}

	fromBlock := big.NewInt(0)
	if query.FromBlock != nil {
		fromBlock = query.FromBlock
	}

	toBlock := query.ToBlock
	if toBlock == nil {
		latest, err := c.client.HeaderByNumber(timeoutCtx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to get latest block: %w", err)
		}
		toBlock = latest.Number
	}

	if fromBlock.Cmp(toBlock) > 0 {
		return []types.Log{}, nil
	}

	rangeQuery := query
	rangeQuery.FromBlock = new(big.Int).Set(fromBlock)
	rangeQuery.ToBlock = new(big.Int).Set(toBlock)

	return c.getLogsWithRetry(timeoutCtx, rangeQuery, c.stepSize)
}

// getLogsWithRetry processes the range from query.FromBlock to query.ToBlock in chunks,
// halving the chunk size whenever the provider reports too many results
func (c *ethereumClient) getLogsWithRetry(ctx context.Context, query ethereum.FilterQuery, stepSize uint64) ([]types.Log, error) {
	currentStepSize := stepSize

	allLogs := []types.Log{}
	currentFrom := new(big.Int).Set(query.FromBlock)

	for currentFrom.Cmp(query.ToBlock) <= 0 {
		currentTo := new(big.Int).Add(currentFrom, new(big.Int).SetUint64(currentStepSize-1))
		if currentTo.Cmp(query.ToBlock) > 0 {
			currentTo.Set(query.ToBlock)
		}

		queryCopy := query
		queryCopy.FromBlock = new(big.Int).Set(currentFrom)
		queryCopy.ToBlock = new(big.Int).Set(currentTo)

		logs, err := c.client.FilterLogs(ctx, queryCopy)
		if err == nil {
			allLogs = append(allLogs, logs...)
			currentFrom.SetUint64(currentTo.Uint64() + 1)
			continue
		}

		if !isTooManyResultsError(err) || currentStepSize == 1 {
			return nil, fmt.Errorf("failed to get logs for range %d-%d: %w", currentFrom.Uint64(), currentTo.Uint64(), err)
		}

		currentStepSize = currentStepSize / 2

		logger.WarnCtx(ctx, "Too many results, reducing step size",
			zap.Uint64("oldStepSize", currentStepSize*2),
			zap.Uint64("newStepSize", currentStepSize),
			zap.Uint64("fromBlock", currentFrom.Uint64()),
			zap.Uint64("toBlock", currentTo.Uint64()))
	}

	return allLogs, nil
}

// isTooManyResultsError checks if the error is related to too many results
func isTooManyResultsError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "query returned more than 10000 results") ||
		strings.Contains(errStr, "query timeout exceeded") ||
		strings.Contains(errStr, "too many results") ||
		strings.Contains(errStr, "exceeded maximum")
}

// ParseEventLog parses a ledger contract log into a ledger event
func (c *ethereumClient) ParseEventLog(ctx context.Context, vLog types.Log) (*domain.LedgerEvent, error) {
	if vLog.Removed {
		logger.WarnCtx(ctx, "Skipping removed log",
			zap.String("txHash", vLog.TxHash.Hex()),
			zap.Uint64("blockNumber", vLog.BlockNumber))
		return nil, nil
	}
	if vLog.Address != c.address || len(vLog.Topics) == 0 {
		return nil, nil
	}

	known := false
	for _, id := range c.codec.EventIDs() {
		if vLog.Topics[0] == id {
			known = true
			break
		}
	}
	if !known {
		return nil, nil
	}

	event, err := c.codec.ToLedgerEvent(c.chainID, vLog)
	if err != nil {
		return nil, err
	}
	if !event.Valid() {
		return nil, errors.New("decoded ledger event is invalid")
	}

	return event, nil
}

// Close closes the connection
func (c *ethereumClient) Close() {
	c.client.Close()
}
