package devchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/feral-file/batch-ledger/internal/contract"
)

// CallArgs are the arguments of eth_call and eth_estimateGas
type CallArgs struct {
	From                 *common.Address `json:"from"`
	To                   *common.Address `json:"to"`
	Gas                  *hexutil.Uint64 `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas"`
	Value                *hexutil.Big    `json:"value"`
	Data                 *hexutil.Bytes  `json:"data"`
	Input                *hexutil.Bytes  `json:"input"`
}

func (a CallArgs) toMsg() ethereum.CallMsg {
	msg := ethereum.CallMsg{To: a.To}
	if a.From != nil {
		msg.From = *a.From
	}
	if a.Gas != nil {
		msg.Gas = uint64(*a.Gas)
	}
	if a.Value != nil {
		msg.Value = a.Value.ToInt()
	}
	if a.Input != nil {
		msg.Data = *a.Input
	} else if a.Data != nil {
		msg.Data = *a.Data
	}
	return msg
}

// addressList accepts a single address or a list of addresses
type addressList []common.Address

func (l *addressList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var addrs []common.Address
		if err := json.Unmarshal(data, &addrs); err != nil {
			return fmt.Errorf("invalid address list: %w", err)
		}
		*l = addrs
		return nil
	}
	var addr common.Address
	if err := json.Unmarshal(data, &addr); err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}
	*l = addressList{addr}
	return nil
}

// FilterCriteria are the arguments of eth_getLogs and the logs subscription
type FilterCriteria struct {
	BlockHash *common.Hash     `json:"blockHash"`
	FromBlock *rpc.BlockNumber `json:"fromBlock"`
	ToBlock   *rpc.BlockNumber `json:"toBlock"`
	Addresses addressList      `json:"address"`
	Topics    [][]common.Hash  `json:"topics"`
}

// EthAPI serves the eth_ namespace backed by a Chain
type EthAPI struct {
	chain *Chain
}

// NewEthAPI creates the eth_ namespace service
func NewEthAPI(chain *Chain) *EthAPI {
	return &EthAPI{chain: chain}
}

// ChainId returns the chain id
func (api *EthAPI) ChainId(ctx context.Context) (*hexutil.Big, error) { //nolint:revive,stylecheck // JSON-RPC method name
	id, err := api.chain.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	return (*hexutil.Big)(id), nil
}

// BlockNumber returns the latest block height
func (api *EthAPI) BlockNumber(ctx context.Context) (hexutil.Uint64, error) {
	n, err := api.chain.BlockNumber(ctx)
	return hexutil.Uint64(n), err
}

// GetBlockByNumber returns the header of a block, null when it does not exist
func (api *EthAPI) GetBlockByNumber(ctx context.Context, number rpc.BlockNumber, fullTx bool) (*types.Header, error) {
	header, err := api.chain.HeaderByNumber(ctx, blockNumberToBig(number))
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	return header, err
}

// Call executes a call, see Chain.CallContract for block handling
func (api *EthAPI) Call(ctx context.Context, args CallArgs, blockNrOrHash *rpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	var number *big.Int
	if blockNrOrHash != nil {
		if n, ok := blockNrOrHash.Number(); ok {
			number = blockNumberToBig(n)
		}
	}
	out, err := api.chain.CallContract(ctx, args.toMsg(), number)
	if err != nil {
		return nil, rpcError(err)
	}
	return out, nil
}

// EstimateGas returns the gas a transaction would use
func (api *EthAPI) EstimateGas(ctx context.Context, args CallArgs, blockNrOrHash *rpc.BlockNumberOrHash) (hexutil.Uint64, error) {
	gas, err := api.chain.EstimateGas(ctx, args.toMsg())
	if err != nil {
		return 0, rpcError(err)
	}
	return hexutil.Uint64(gas), nil
}

// GasPrice returns the legacy gas price
func (api *EthAPI) GasPrice(ctx context.Context) (*hexutil.Big, error) {
	price, err := api.chain.SuggestGasPrice(ctx)
	return (*hexutil.Big)(price), err
}

// MaxPriorityFeePerGas returns the suggested tip
func (api *EthAPI) MaxPriorityFeePerGas(ctx context.Context) (*hexutil.Big, error) {
	tip, err := api.chain.SuggestGasTipCap(ctx)
	return (*hexutil.Big)(tip), err
}

// GetTransactionCount returns the next nonce of an account
func (api *EthAPI) GetTransactionCount(ctx context.Context, address common.Address, blockNrOrHash *rpc.BlockNumberOrHash) (*hexutil.Uint64, error) {
	nonce, err := api.chain.PendingNonceAt(ctx, address)
	if err != nil {
		return nil, err
	}
	n := hexutil.Uint64(nonce)
	return &n, nil
}

// SendRawTransaction decodes, validates and mines a signed transaction
func (api *EthAPI) SendRawTransaction(ctx context.Context, input hexutil.Bytes) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(input); err != nil {
		return common.Hash{}, err
	}
	if err := api.chain.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}

// GetTransactionReceipt returns the receipt of a mined transaction, null while unknown
func (api *EthAPI) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := api.chain.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	return receipt, err
}

// GetCode returns the code stored at address
func (api *EthAPI) GetCode(ctx context.Context, address common.Address, blockNrOrHash *rpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	return api.chain.CodeAt(ctx, address, nil)
}

// GetLogs returns the logs matching the criteria
func (api *EthAPI) GetLogs(ctx context.Context, crit FilterCriteria) ([]types.Log, error) {
	return api.chain.FilterLogs(ctx, toFilterQuery(crit))
}

// Logs creates a subscription streaming new logs that match the criteria
func (api *EthAPI) Logs(ctx context.Context, crit FilterCriteria) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return &rpc.Subscription{}, rpc.ErrNotificationsUnsupported
	}

	rpcSub := notifier.CreateSubscription()
	logs := make(chan types.Log, 128)
	sub, err := api.chain.SubscribeFilterLogs(context.Background(), toFilterQuery(crit), logs)
	if err != nil {
		return nil, err
	}

	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case l := <-logs:
				_ = notifier.Notify(rpcSub.ID, &l)
			case <-rpcSub.Err():
				return
			case <-sub.Err():
				return
			}
		}
	}()

	return rpcSub, nil
}

// NetAPI serves the net_ namespace
type NetAPI struct {
	chainID *big.Int
}

// Version returns the network id
func (api *NetAPI) Version() string {
	return api.chainID.String()
}

// NewRPCServer creates a JSON-RPC server exposing the chain
func NewRPCServer(chain *Chain) (*rpc.Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("eth", NewEthAPI(chain)); err != nil {
		return nil, fmt.Errorf("failed to register eth service: %w", err)
	}
	if err := srv.RegisterName("net", &NetAPI{chainID: chain.cfg.ChainID}); err != nil {
		return nil, fmt.Errorf("failed to register net service: %w", err)
	}
	return srv, nil
}

// Handler serves JSON-RPC over HTTP and websocket on the same endpoint
func Handler(srv *rpc.Server, allowedOrigins []string) http.Handler {
	ws := srv.WebsocketHandler(allowedOrigins)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			ws.ServeHTTP(w, r)
			return
		}
		srv.ServeHTTP(w, r)
	})
}

// rpcError unwraps reverts so the server reports code 3 with revert data
func rpcError(err error) error {
	var rerr *contract.RevertError
	if errors.As(err, &rerr) {
		return rerr
	}
	return err
}

func blockNumberToBig(n rpc.BlockNumber) *big.Int {
	if n < 0 {
		return nil
	}
	return big.NewInt(n.Int64())
}

func toFilterQuery(crit FilterCriteria) ethereum.FilterQuery {
	q := ethereum.FilterQuery{
		BlockHash: crit.BlockHash,
		Addresses: crit.Addresses,
		Topics:    crit.Topics,
	}
	if crit.FromBlock != nil {
		q.FromBlock = blockNumberToBig(*crit.FromBlock)
	}
	if crit.ToBlock != nil {
		q.ToBlock = blockNumberToBig(*crit.ToBlock)
	}
	return q
}
