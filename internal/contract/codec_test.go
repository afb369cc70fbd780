package contract_test

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/batch-ledger/internal/contract"
	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/ledger"
)

var (
	contractAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	creator      = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	alice        = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	t0           = time.Unix(1700000000, 0).UTC()
)

func TestParseABI(t *testing.T) {
	parsed, err := contract.ParseABI(strings.NewReader(contract.DefaultABI()))
	require.NoError(t, err)
	assert.Len(t, parsed.Methods, 10)
	assert.Len(t, parsed.Events, 3)
	assert.Len(t, parsed.Errors, 3)

	_, err = contract.ParseABI(strings.NewReader(`[{"type":"function","name":"createBatch","stateMutability":"nonpayable","inputs":[{"name":"metadataRef","type":"string"}],"outputs":[{"name":"","type":"uint256"}]}]`))
	assert.ErrorContains(t, err, "missing function")

	_, err = contract.ParseABI(strings.NewReader(`not json`))
	assert.ErrorContains(t, err, "failed to parse ABI")
}

func TestEventSignatures(t *testing.T) {
	codec := contract.MustDefaultCodec()

	assert.Equal(t, crypto.Keccak256Hash([]byte("BatchCreated(uint256,address,uint256,string)")), codec.EventID(contract.EventBatchCreated))
	assert.Equal(t, crypto.Keccak256Hash([]byte("BatchTransferred(uint256,address,address,uint256)")), codec.EventID(contract.EventBatchTransferred))
	assert.Equal(t, crypto.Keccak256Hash([]byte("MetadataUpdated(uint256,string,string,uint256)")), codec.EventID(contract.EventMetadataUpdated))
}

func TestEventRoundTrip(t *testing.T) {
	codec := contract.MustDefaultCodec()

	tests := []struct {
		name   string
		event  interface{}
		topics int
	}{
		{
			name:   "batch created",
			event:  ledger.BatchCreated{BatchID: 3, Creator: creator, Timestamp: t0, MetadataRef: "bafkreigh2akiscaildc"},
			topics: 3,
		},
		{
			name:   "batch transferred",
			event:  ledger.BatchTransferred{BatchID: 3, From: creator, To: alice, Timestamp: t0},
			topics: 4,
		},
		{
			name:   "metadata updated",
			event:  ledger.MetadataUpdated{BatchID: 3, OldRef: "", NewRef: "bafy", Timestamp: t0},
			topics: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topics, data, err := codec.EncodeEvent(tt.event)
			require.NoError(t, err)
			assert.Len(t, topics, tt.topics)
			assert.Equal(t, contract.BatchIDTopic(3), topics[1])

			decoded, err := codec.DecodeEvent(types.Log{Address: contractAddr, Topics: topics, Data: data})
			require.NoError(t, err)
			assert.Equal(t, tt.event, decoded)
		})
	}
}

func TestDecodeEvent_Invalid(t *testing.T) {
	codec := contract.MustDefaultCodec()

	_, err := codec.DecodeEvent(types.Log{})
	assert.ErrorContains(t, err, "no topics")

	_, err = codec.DecodeEvent(types.Log{Topics: []common.Hash{crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))}})
	assert.ErrorContains(t, err, "unknown event signature")

	_, err = codec.DecodeEvent(types.Log{Topics: []common.Hash{codec.EventID(contract.EventBatchTransferred), contract.BatchIDTopic(1)}})
	assert.ErrorContains(t, err, "expected 4 topics")
}

func TestToLedgerEvent(t *testing.T) {
	codec := contract.MustDefaultCodec()
	topics, data, err := codec.EncodeEvent(ledger.BatchTransferred{BatchID: 9, From: creator, To: alice, Timestamp: t0})
	require.NoError(t, err)

	event, err := codec.ToLedgerEvent(domain.ChainLocalDevnet, types.Log{
		Address:     contractAddr,
		Topics:      topics,
		Data:        data,
		BlockNumber: 12,
		TxHash:      common.HexToHash("0x01"),
		TxIndex:     0,
		Index:       2,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.EventTypeBatchTransferred, event.EventType)
	assert.Equal(t, uint64(9), event.BatchID)
	assert.Equal(t, creator.Hex(), *event.FromAddress)
	assert.Equal(t, alice.Hex(), *event.ToAddress)
	assert.Equal(t, uint64(12), event.BlockNumber)
	assert.Equal(t, uint64(2), event.LogIndex)
	assert.Equal(t, t0, event.Timestamp)
	assert.True(t, event.Valid())
}

func TestRevertRoundTrip(t *testing.T) {
	codec := contract.MustDefaultCodec()

	tests := []struct {
		name string
		err  *domain.LedgerError
		kind error
	}{
		{
			name: "not found",
			err:  &domain.LedgerError{Kind: domain.ErrNotFound, Op: "getCurrentOwner", BatchID: 5},
			kind: domain.ErrNotFound,
		},
		{
			name: "unauthorized",
			err:  &domain.LedgerError{Kind: domain.ErrUnauthorized, Op: "transferBatch", BatchID: 1, Caller: alice.Hex(), Owner: creator.Hex()},
			kind: domain.ErrUnauthorized,
		},
		{
			name: "invalid new owner",
			err:  &domain.LedgerError{Kind: domain.ErrInvalidArgument, Op: "transferBatch", BatchID: 1, Address: common.Address{}.Hex()},
			kind: domain.ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := codec.EncodeRevert(tt.err)
			require.NotEmpty(t, data)

			decoded := codec.DecodeRevert(tt.err.Op, data)
			require.Error(t, decoded)
			assert.ErrorIs(t, decoded, tt.kind)

			var le *domain.LedgerError
			require.ErrorAs(t, decoded, &le)
			assert.Equal(t, tt.err.Owner, le.Owner)
			if tt.kind != domain.ErrInvalidArgument {
				assert.Equal(t, tt.err.BatchID, le.BatchID)
			}
		})
	}

	assert.Nil(t, codec.DecodeRevert("x", []byte{0x01, 0x02}))
	assert.Nil(t, codec.DecodeRevert("x", []byte{0xde, 0xad, 0xbe, 0xef}))
	assert.Nil(t, codec.EncodeRevert(domain.ErrTransientNetworkFailure))
}

func TestRevertError(t *testing.T) {
	codec := contract.MustDefaultCodec()
	rerr := codec.NewRevertError(&domain.LedgerError{Kind: domain.ErrNotFound, BatchID: 2})

	assert.Equal(t, 3, rerr.ErrorCode())
	assert.ErrorIs(t, rerr, domain.ErrNotFound)
	hexData, ok := rerr.ErrorData().(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(hexData, "0x"))
	assert.Contains(t, rerr.Error(), "execution reverted")
}

func TestUnpackBatchInfo_MetadataField(t *testing.T) {
	withRef := contract.MustDefaultCodec()
	assert.True(t, withRef.HasMetadataField())

	out, err := withRef.ABI().Methods[contract.MethodGetBatchInfo].Outputs.Pack(
		big.NewInt(4), creator, big.NewInt(1), big.NewInt(t0.Unix()), big.NewInt(t0.Unix()), "bafkreiref")
	require.NoError(t, err)
	info, err := withRef.UnpackBatchInfo(out)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), info.BatchID)
	assert.Equal(t, "bafkreiref", info.MetadataRef)

	legacyABI := strings.Replace(contract.DefaultABI(),
		`{"name":"lastTransferAt","type":"uint256"},{"name":"metadataRef","type":"string"}]`,
		`{"name":"lastTransferAt","type":"uint256"}]`, 1)
	parsed, err := contract.ParseABI(strings.NewReader(legacyABI))
	require.NoError(t, err)
	legacy := contract.NewCodec(parsed)
	assert.False(t, legacy.HasMetadataField())

	out, err = parsed.Methods[contract.MethodGetBatchInfo].Outputs.Pack(
		big.NewInt(4), creator, big.NewInt(1), big.NewInt(t0.Unix()), big.NewInt(t0.Unix()))
	require.NoError(t, err)
	info, err = legacy.UnpackBatchInfo(out)
	require.NoError(t, err)
	assert.Equal(t, creator, info.CurrentOwner)
	assert.Empty(t, info.MetadataRef)
}
