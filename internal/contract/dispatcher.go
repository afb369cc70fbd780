package contract

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/feral-file/batch-ledger/internal/ledger"
)

const intrinsicGas = 21_000

// Gas charged per function, intrinsic cost included
var gasTable = map[string]uint64{
	MethodCreateBatch:     140_000,
	MethodTransferBatch:   65_000,
	MethodUpdateMetadata:  50_000,
	MethodGetCurrentOwner: 24_000,
	MethodGetOwnerHistory: 30_000,
	MethodGetBatchInfo:    32_000,
	MethodGetTotalBatches: 23_000,
	MethodGetOwnerCount:   24_000,
	MethodWasOwner:        30_000,
	MethodBatchExists:     23_000,
}

// Execution is the outcome of running calldata against the ledger
type Execution struct {
	Method  string
	Output  []byte
	Logs    []*types.Log
	GasUsed uint64
}

// Dispatcher runs ABI calldata against a ledger deployed at Address
type Dispatcher struct {
	Address common.Address
	codec   *Codec
	ledger  *ledger.Ledger
}

// NewDispatcher creates a dispatcher for the ledger deployed at address
func NewDispatcher(address common.Address, codec *Codec, l *ledger.Ledger) *Dispatcher {
	return &Dispatcher{Address: address, codec: codec, ledger: l}
}

// Ledger returns the ledger served by the dispatcher
func (d *Dispatcher) Ledger() *ledger.Ledger {
	return d.ledger
}

// Call evaluates calldata without changing state. State-changing functions are
// simulated: they return the output or revert the real call would produce.
func (d *Dispatcher) Call(sender common.Address, data []byte) (*Execution, error) {
	return d.run(ledger.Tx{Sender: sender}, data, false)
}

// Execute runs calldata as part of a mined transaction
func (d *Dispatcher) Execute(tx ledger.Tx, data []byte) (*Execution, error) {
	return d.run(tx, data, true)
}

func (d *Dispatcher) run(tx ledger.Tx, data []byte, commit bool) (*Execution, error) {
	if len(data) < 4 {
		return nil, &RevertError{Reason: "missing function selector"}
	}
	method, err := d.codec.abi.MethodById(data[:4])
	if err != nil {
		return nil, &RevertError{Reason: fmt.Sprintf("unknown function selector %x", data[:4])}
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, &RevertError{Reason: fmt.Sprintf("invalid calldata for %s: %v", method.Name, err)}
	}

	exec := &Execution{Method: method.Name, GasUsed: gasTable[method.Name]}
	outputs, events, err := d.dispatch(method.Name, tx, args, commit)
	if err != nil {
		return nil, d.codec.NewRevertError(err)
	}

	if exec.Output, err = method.Outputs.Pack(outputs...); err != nil {
		return nil, fmt.Errorf("failed to pack %s output: %w", method.Name, err)
	}
	for _, ev := range events {
		topics, logData, err := d.codec.EncodeEvent(ev)
		if err != nil {
			return nil, err
		}
		exec.Logs = append(exec.Logs, &types.Log{Address: d.Address, Topics: topics, Data: logData})
	}

	return exec, nil
}

func (d *Dispatcher) dispatch(method string, tx ledger.Tx, args []interface{}, commit bool) ([]interface{}, []interface{}, error) {
	l := d.ledger

	switch method {
	case MethodCreateBatch:
		ref := args[0].(string)
		if !commit {
			return []interface{}{new(big.Int).SetUint64(l.NextBatchID())}, nil, nil
		}
		id, ev, err := l.CreateBatch(tx, ref)
		if err != nil {
			return nil, nil, err
		}
		return []interface{}{new(big.Int).SetUint64(id)}, []interface{}{ev}, nil

	case MethodTransferBatch:
		id, newOwner := batchIDArg(args[0]), args[1].(common.Address)
		if !commit {
			return nil, nil, l.CheckTransfer(tx.Sender, id, newOwner)
		}
		ev, err := l.TransferBatch(tx, id, newOwner)
		if err != nil {
			return nil, nil, err
		}
		return nil, []interface{}{ev}, nil

	case MethodUpdateMetadata:
		id, ref := batchIDArg(args[0]), args[1].(string)
		if !commit {
			return nil, nil, l.CheckUpdateMetadata(tx.Sender, id)
		}
		ev, err := l.UpdateMetadata(tx, id, ref)
		if err != nil {
			return nil, nil, err
		}
		return nil, []interface{}{ev}, nil

	case MethodGetCurrentOwner:
		owner, err := l.CurrentOwner(batchIDArg(args[0]))
		return []interface{}{owner}, nil, err

	case MethodGetOwnerHistory:
		history, err := l.OwnerHistory(batchIDArg(args[0]))
		return []interface{}{history}, nil, err

	case MethodGetBatchInfo:
		info, err := l.BatchInfo(batchIDArg(args[0]))
		if err != nil {
			return nil, nil, err
		}
		outputs := []interface{}{
			new(big.Int).SetUint64(info.BatchID),
			info.CurrentOwner,
			new(big.Int).SetUint64(info.OwnerCount),
			unixBig(info.CreatedAt),
			unixBig(info.LastTransferAt),
		}
		if d.codec.HasMetadataField() {
			outputs = append(outputs, info.MetadataRef)
		}
		return outputs, nil, nil

	case MethodGetTotalBatches:
		return []interface{}{new(big.Int).SetUint64(l.TotalBatches())}, nil, nil

	case MethodGetOwnerCount:
		count, err := l.OwnerCount(batchIDArg(args[0]))
		return []interface{}{new(big.Int).SetUint64(count)}, nil, err

	case MethodWasOwner:
		was, err := l.WasOwner(batchIDArg(args[0]), args[1].(common.Address))
		return []interface{}{was}, nil, err

	case MethodBatchExists:
		return []interface{}{l.BatchExists(batchIDArg(args[0]))}, nil, nil

	default:
		return nil, nil, fmt.Errorf("function %s is not implemented", method)
	}
}

// batchIDArg converts a uint256 argument; ids beyond uint64 can never exist and map to 0
func batchIDArg(v interface{}) uint64 {
	n := v.(*big.Int)
	if !n.IsUint64() {
		return 0
	}
	return n.Uint64()
}

// RequiredGas returns the gas a transaction carrying data must provide
func (d *Dispatcher) RequiredGas(data []byte) uint64 {
	if len(data) >= 4 {
		if method, err := d.codec.abi.MethodById(data[:4]); err == nil {
			return gasTable[method.Name]
		}
	}
	return intrinsicGas
}
