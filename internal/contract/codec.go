package contract

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/ledger"
)

// Codec encodes calls, decodes results, events and revert data of the ledger contract
type Codec struct {
	abi abi.ABI
}

// NewCodec creates a codec over a parsed ABI
func NewCodec(parsed abi.ABI) *Codec {
	return &Codec{abi: parsed}
}

// ABI returns the underlying ABI
func (c *Codec) ABI() abi.ABI {
	return c.abi
}

// Pack encodes the calldata of a contract function
func (c *Codec) Pack(method string, args ...interface{}) ([]byte, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	return data, nil
}

// EventID returns the topic hash of a contract event
func (c *Codec) EventID(name string) common.Hash {
	return c.abi.Events[name].ID
}

// EventIDs returns the topic hashes of every ledger event
func (c *Codec) EventIDs() []common.Hash {
	return []common.Hash{
		c.EventID(EventBatchCreated),
		c.EventID(EventBatchTransferred),
		c.EventID(EventMetadataUpdated),
	}
}

// UnpackUint64 decodes a single uint256 output
func (c *Codec) UnpackUint64(method string, data []byte) (uint64, error) {
	values, err := c.unpack(method, data, 1)
	if err != nil {
		return 0, err
	}
	return toUint64(values[0])
}

// UnpackAddress decodes a single address output
func (c *Codec) UnpackAddress(method string, data []byte) (common.Address, error) {
	values, err := c.unpack(method, data, 1)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected %s output type %T", method, values[0])
	}
	return addr, nil
}

// UnpackAddresses decodes a single address[] output
func (c *Codec) UnpackAddresses(method string, data []byte) ([]common.Address, error) {
	values, err := c.unpack(method, data, 1)
	if err != nil {
		return nil, err
	}
	addrs, ok := values[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected %s output type %T", method, values[0])
	}
	return addrs, nil
}

// UnpackBool decodes a single bool output
func (c *Codec) UnpackBool(method string, data []byte) (bool, error) {
	values, err := c.unpack(method, data, 1)
	if err != nil {
		return false, err
	}
	b, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected %s output type %T", method, values[0])
	}
	return b, nil
}

// HasMetadataField reports whether getBatchInfo returns the metadata reference.
// Deployments without it keep metadata references only in the side index.
func (c *Codec) HasMetadataField() bool {
	method, ok := c.abi.Methods[MethodGetBatchInfo]
	if !ok {
		return false
	}
	for _, out := range method.Outputs {
		if out.Name == "metadataRef" {
			return true
		}
	}
	return false
}

// UnpackBatchInfo decodes the getBatchInfo output tuple
func (c *Codec) UnpackBatchInfo(data []byte) (domain.BatchInfo, error) {
	want := 5
	if c.HasMetadataField() {
		want = 6
	}
	values, err := c.unpack(MethodGetBatchInfo, data, want)
	if err != nil {
		return domain.BatchInfo{}, err
	}

	var info domain.BatchInfo
	if info.BatchID, err = toUint64(values[0]); err != nil {
		return domain.BatchInfo{}, err
	}
	owner, ok := values[1].(common.Address)
	if !ok {
		return domain.BatchInfo{}, fmt.Errorf("unexpected currentOwner type %T", values[1])
	}
	info.CurrentOwner = owner
	if info.OwnerCount, err = toUint64(values[2]); err != nil {
		return domain.BatchInfo{}, err
	}
	if info.CreatedAt, err = toTime(values[3]); err != nil {
		return domain.BatchInfo{}, err
	}
	if info.LastTransferAt, err = toTime(values[4]); err != nil {
		return domain.BatchInfo{}, err
	}
	if want == 6 {
		ref, ok := values[5].(string)
		if !ok {
			return domain.BatchInfo{}, fmt.Errorf("unexpected metadataRef type %T", values[5])
		}
		info.MetadataRef = ref
	}

	return info, nil
}

func (c *Codec) unpack(method string, data []byte, want int) ([]interface{}, error) {
	values, err := c.abi.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(values) != want {
		return nil, fmt.Errorf("failed to unpack %s: expected %d values, got %d", method, want, len(values))
	}
	return values, nil
}

// EncodeEvent builds the topics and data of a ledger event
func (c *Codec) EncodeEvent(event interface{}) ([]common.Hash, []byte, error) {
	switch ev := event.(type) {
	case ledger.BatchCreated:
		def := c.abi.Events[EventBatchCreated]
		data, err := def.Inputs.NonIndexed().Pack(unixBig(ev.Timestamp), ev.MetadataRef)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to pack %s: %w", EventBatchCreated, err)
		}
		return []common.Hash{def.ID, idTopic(ev.BatchID), addressTopic(ev.Creator)}, data, nil

	case ledger.BatchTransferred:
		def := c.abi.Events[EventBatchTransferred]
		data, err := def.Inputs.NonIndexed().Pack(unixBig(ev.Timestamp))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to pack %s: %w", EventBatchTransferred, err)
		}
		return []common.Hash{def.ID, idTopic(ev.BatchID), addressTopic(ev.From), addressTopic(ev.To)}, data, nil

	case ledger.MetadataUpdated:
		def := c.abi.Events[EventMetadataUpdated]
		data, err := def.Inputs.NonIndexed().Pack(ev.OldRef, ev.NewRef, unixBig(ev.Timestamp))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to pack %s: %w", EventMetadataUpdated, err)
		}
		return []common.Hash{def.ID, idTopic(ev.BatchID)}, data, nil

	default:
		return nil, nil, fmt.Errorf("unsupported event type %T", event)
	}
}

// DecodeEvent parses a ledger log into ledger.BatchCreated, ledger.BatchTransferred or ledger.MetadataUpdated
func (c *Codec) DecodeEvent(vLog types.Log) (interface{}, error) {
	if len(vLog.Topics) == 0 {
		return nil, errors.New("log has no topics")
	}

	switch vLog.Topics[0] {
	case c.EventID(EventBatchCreated):
		// BatchCreated(uint256 indexed batchId, address indexed creator, uint256 timestamp, string metadataRef)
		if len(vLog.Topics) != 3 {
			return nil, fmt.Errorf("invalid %s event: expected 3 topics, got %d", EventBatchCreated, len(vLog.Topics))
		}
		values, err := c.unpackEventData(EventBatchCreated, vLog.Data, 2)
		if err != nil {
			return nil, err
		}
		ts, err := toTime(values[0])
		if err != nil {
			return nil, err
		}
		ref, ok := values[1].(string)
		if !ok {
			return nil, fmt.Errorf("unexpected metadataRef type %T", values[1])
		}
		return ledger.BatchCreated{
			BatchID:     topicID(vLog.Topics[1]),
			Creator:     common.BytesToAddress(vLog.Topics[2].Bytes()),
			Timestamp:   ts,
			MetadataRef: ref,
		}, nil

	case c.EventID(EventBatchTransferred):
		// BatchTransferred(uint256 indexed batchId, address indexed from, address indexed to, uint256 timestamp)
		if len(vLog.Topics) != 4 {
			return nil, fmt.Errorf("invalid %s event: expected 4 topics, got %d", EventBatchTransferred, len(vLog.Topics))
		}
		values, err := c.unpackEventData(EventBatchTransferred, vLog.Data, 1)
		if err != nil {
			return nil, err
		}
		ts, err := toTime(values[0])
		if err != nil {
			return nil, err
		}
		return ledger.BatchTransferred{
			BatchID:   topicID(vLog.Topics[1]),
			From:      common.BytesToAddress(vLog.Topics[2].Bytes()),
			To:        common.BytesToAddress(vLog.Topics[3].Bytes()),
			Timestamp: ts,
		}, nil

	case c.EventID(EventMetadataUpdated):
		// MetadataUpdated(uint256 indexed batchId, string oldRef, string newRef, uint256 timestamp)
		if len(vLog.Topics) != 2 {
			return nil, fmt.Errorf("invalid %s event: expected 2 topics, got %d", EventMetadataUpdated, len(vLog.Topics))
		}
		values, err := c.unpackEventData(EventMetadataUpdated, vLog.Data, 3)
		if err != nil {
			return nil, err
		}
		oldRef, ok := values[0].(string)
		if !ok {
			return nil, fmt.Errorf("unexpected oldRef type %T", values[0])
		}
		newRef, ok := values[1].(string)
		if !ok {
			return nil, fmt.Errorf("unexpected newRef type %T", values[1])
		}
		ts, err := toTime(values[2])
		if err != nil {
			return nil, err
		}
		return ledger.MetadataUpdated{
			BatchID:   topicID(vLog.Topics[1]),
			OldRef:    oldRef,
			NewRef:    newRef,
			Timestamp: ts,
		}, nil

	default:
		return nil, fmt.Errorf("unknown event signature: %s", vLog.Topics[0].Hex())
	}
}

// ToLedgerEvent decodes a log into the normalized event published downstream
func (c *Codec) ToLedgerEvent(chain domain.Chain, vLog types.Log) (*domain.LedgerEvent, error) {
	decoded, err := c.DecodeEvent(vLog)
	if err != nil {
		return nil, err
	}

	blockHash := vLog.BlockHash.Hex()
	event := &domain.LedgerEvent{
		Chain:           chain,
		ContractAddress: vLog.Address.Hex(),
		TxHash:          vLog.TxHash.Hex(),
		BlockNumber:     vLog.BlockNumber,
		BlockHash:       &blockHash,
		TxIndex:         uint64(vLog.TxIndex),
		LogIndex:        uint64(vLog.Index),
	}

	switch ev := decoded.(type) {
	case ledger.BatchCreated:
		event.EventType = domain.EventTypeBatchCreated
		event.BatchID = ev.BatchID
		event.ToAddress = domain.StringPtr(ev.Creator.Hex())
		event.MetadataRef = domain.StringPtr(ev.MetadataRef)
		event.Timestamp = ev.Timestamp
	case ledger.BatchTransferred:
		event.EventType = domain.EventTypeBatchTransferred
		event.BatchID = ev.BatchID
		event.FromAddress = domain.StringPtr(ev.From.Hex())
		event.ToAddress = domain.StringPtr(ev.To.Hex())
		event.Timestamp = ev.Timestamp
	case ledger.MetadataUpdated:
		event.EventType = domain.EventTypeMetadataUpdated
		event.BatchID = ev.BatchID
		event.OldMetadataRef = domain.StringPtr(ev.OldRef)
		event.MetadataRef = domain.StringPtr(ev.NewRef)
		event.Timestamp = ev.Timestamp
	}

	return event, nil
}

func (c *Codec) unpackEventData(name string, data []byte, want int) ([]interface{}, error) {
	values, err := c.abi.Events[name].Inputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s data: %w", name, err)
	}
	if len(values) != want {
		return nil, fmt.Errorf("failed to unpack %s data: expected %d values, got %d", name, want, len(values))
	}
	return values, nil
}

// EncodeRevert encodes a ledger failure as custom error revert data.
// Returns nil for errors the contract never reverts with.
func (c *Codec) EncodeRevert(err error) []byte {
	var le *domain.LedgerError
	if !errors.As(err, &le) {
		return nil
	}

	batchID := new(big.Int).SetUint64(le.BatchID)
	switch le.Kind {
	case domain.ErrNotFound:
		return c.packError(ErrorBatchNotFound, batchID)
	case domain.ErrUnauthorized:
		return c.packError(ErrorNotBatchOwner, batchID, common.HexToAddress(le.Caller), common.HexToAddress(le.Owner))
	case domain.ErrInvalidArgument:
		return c.packError(ErrorInvalidNewOwner, common.HexToAddress(le.Address))
	default:
		return nil
	}
}

func (c *Codec) packError(name string, args ...interface{}) []byte {
	def := c.abi.Errors[name]
	data, err := def.Inputs.Pack(args...)
	if err != nil {
		return nil
	}
	return append(bytes.Clone(def.ID[:4]), data...)
}

// DecodeRevert maps revert data back to a classified ledger error.
// Returns nil when the data matches no known custom error.
func (c *Codec) DecodeRevert(op string, data []byte) error {
	if len(data) < 4 {
		return nil
	}

	for name, def := range c.abi.Errors {
		if !bytes.Equal(data[:4], def.ID[:4]) {
			continue
		}
		values, err := def.Inputs.Unpack(data[4:])
		if err != nil {
			return nil
		}

		switch name {
		case ErrorBatchNotFound:
			id, _ := toUint64(values[0])
			return &domain.LedgerError{Kind: domain.ErrNotFound, Op: op, BatchID: id}
		case ErrorNotBatchOwner:
			id, _ := toUint64(values[0])
			caller, _ := values[1].(common.Address)
			owner, _ := values[2].(common.Address)
			return &domain.LedgerError{
				Kind:    domain.ErrUnauthorized,
				Op:      op,
				BatchID: id,
				Caller:  caller.Hex(),
				Owner:   owner.Hex(),
			}
		case ErrorInvalidNewOwner:
			addr, _ := values[0].(common.Address)
			reason := "new owner is already the current owner"
			if domain.IsZeroAddress(addr) {
				reason = "new owner is the zero address"
			}
			return &domain.LedgerError{
				Kind:    domain.ErrInvalidArgument,
				Op:      op,
				Address: addr.Hex(),
				Err:     errors.New(reason),
			}
		}
	}

	return nil
}

// RevertError is an execution revert carrying the raw revert data.
// It follows the JSON-RPC convention of error code 3 with hex encoded data.
type RevertError struct {
	Reason string
	Data   []byte
	Err    error
}

// NewRevertError wraps a ledger failure into a revert carrying custom error data
func (c *Codec) NewRevertError(err error) *RevertError {
	return &RevertError{
		Reason: err.Error(),
		Data:   c.EncodeRevert(err),
		Err:    err,
	}
}

func (e *RevertError) Error() string {
	return "execution reverted: " + e.Reason
}

// ErrorCode returns the JSON-RPC error code of a revert
func (e *RevertError) ErrorCode() int {
	return 3
}

// ErrorData returns the hex encoded revert data
func (e *RevertError) ErrorData() interface{} {
	return hexutil.Encode(e.Data)
}

func (e *RevertError) Unwrap() error {
	return e.Err
}

func idTopic(id uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(id))
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func topicID(topic common.Hash) uint64 {
	return new(big.Int).SetBytes(topic.Bytes()).Uint64()
}

// BatchIDTopic returns the topic filtering logs by batch id
func BatchIDTopic(id uint64) common.Hash {
	return idTopic(id)
}

// AddressTopic returns the topic filtering logs by participant
func AddressTopic(addr common.Address) common.Hash {
	return addressTopic(addr)
}

func unixBig(t time.Time) *big.Int {
	return big.NewInt(t.Unix())
}

func toUint64(v interface{}) (uint64, error) {
	n, ok := v.(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unexpected integer type %T", v)
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("integer %s overflows uint64", n.String())
	}
	return n.Uint64(), nil
}

func toTime(v interface{}) (time.Time, error) {
	secs, err := toUint64(v)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(secs), 0).UTC(), nil //nolint:gosec,G115 // ledger timestamps are block times in seconds
}
