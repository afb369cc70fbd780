package domain

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidChain(t *testing.T) {
	tests := []struct {
		name     string
		chain    Chain
		expected bool
	}{
		{
			name:     "valid ethereum mainnet",
			chain:    ChainEthereumMainnet,
			expected: true,
		},
		{
			name:     "valid local devnet",
			chain:    ChainLocalDevnet,
			expected: true,
		},
		{
			name:     "invalid empty chain",
			chain:    Chain(""),
			expected: false,
		},
		{
			name:     "invalid tezos chain",
			chain:    Chain("tezos:mainnet"),
			expected: false,
		},
		{
			name:     "invalid non numeric reference",
			chain:    Chain("eip155:abc"),
			expected: false,
		},
		{
			name:     "invalid zero reference",
			chain:    Chain("eip155:0"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidChain(tt.chain))
		})
	}
}

func TestChainFromID(t *testing.T) {
	assert.Equal(t, ChainLocalDevnet, ChainFromID(big.NewInt(31337)))
	assert.Equal(t, Chain(""), ChainFromID(nil))

	id, err := ChainEthereumSepolia.ChainID()
	require.NoError(t, err)
	assert.Equal(t, int64(11155111), id.Int64())
	assert.Equal(t, "11155111", ChainEthereumSepolia.Reference())

	_, err = Chain("tezos:mainnet").ChainID()
	assert.ErrorIs(t, err, ErrUnsupportedNetwork)
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    common.Address
		expectedErr bool
	}{
		{
			name:     "checksummed address",
			input:    "0x396343362be2A4dA1cE0C1C210945346fb82Aa49",
			expected: common.HexToAddress("0x396343362be2A4dA1cE0C1C210945346fb82Aa49"),
		},
		{
			name:     "lowercase address with surrounding spaces",
			input:    "  0x396343362be2a4da1ce0c1c210945346fb82aa49 ",
			expected: common.HexToAddress("0x396343362be2A4dA1cE0C1C210945346fb82Aa49"),
		},
		{
			name:        "too short",
			input:       "0x1234",
			expectedErr: true,
		},
		{
			name:        "not hex",
			input:       "0xZZ6343362be2A4dA1cE0C1C210945346fb82Aa49",
			expectedErr: true,
		},
		{
			name:        "empty",
			input:       "",
			expectedErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := ParseAddress(tt.input)
			if tt.expectedErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, addr)
		})
	}
}

func TestLedgerEvent_Valid(t *testing.T) {
	contract := "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	alice := "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	bob := "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
	now := time.Unix(1700000000, 0).UTC()

	base := func(eventType EventType) LedgerEvent {
		return LedgerEvent{
			Chain:           ChainLocalDevnet,
			ContractAddress: contract,
			EventType:       eventType,
			BatchID:         1,
			TxHash:          "0xabc",
			BlockNumber:     1,
			Timestamp:       now,
		}
	}

	tests := []struct {
		name     string
		event    func() LedgerEvent
		expected bool
	}{
		{
			name: "valid creation",
			event: func() LedgerEvent {
				e := base(EventTypeBatchCreated)
				e.ToAddress = &alice
				e.MetadataRef = StringPtr("")
				return e
			},
			expected: true,
		},
		{
			name: "creation with from address",
			event: func() LedgerEvent {
				e := base(EventTypeBatchCreated)
				e.FromAddress = &bob
				e.ToAddress = &alice
				return e
			},
			expected: false,
		},
		{
			name: "valid transfer",
			event: func() LedgerEvent {
				e := base(EventTypeBatchTransferred)
				e.FromAddress = &alice
				e.ToAddress = &bob
				return e
			},
			expected: true,
		},
		{
			name: "self transfer",
			event: func() LedgerEvent {
				e := base(EventTypeBatchTransferred)
				e.FromAddress = &alice
				e.ToAddress = &alice
				return e
			},
			expected: false,
		},
		{
			name: "transfer to zero address",
			event: func() LedgerEvent {
				e := base(EventTypeBatchTransferred)
				e.FromAddress = &alice
				e.ToAddress = StringPtr(ETHEREUM_ZERO_ADDRESS)
				return e
			},
			expected: false,
		},
		{
			name: "valid metadata update",
			event: func() LedgerEvent {
				e := base(EventTypeMetadataUpdated)
				e.OldMetadataRef = StringPtr("")
				e.MetadataRef = StringPtr("bafy")
				return e
			},
			expected: true,
		},
		{
			name: "batch id zero",
			event: func() LedgerEvent {
				e := base(EventTypeBatchCreated)
				e.ToAddress = &alice
				e.BatchID = 0
				return e
			},
			expected: false,
		},
		{
			name: "unknown event type",
			event: func() LedgerEvent {
				return base(EventType("burn"))
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.event()
			assert.Equal(t, tt.expected, e.Valid())
		})
	}
}

func TestNewDID(t *testing.T) {
	addr := common.HexToAddress("0x396343362be2A4dA1cE0C1C210945346fb82Aa49")
	did := NewDID(addr, ChainLocalDevnet)
	assert.Equal(t, "did:pkh:eip155:31337:0x396343362be2a4da1ce0c1c210945346fb82aa49", did.String())

	parsed, err := did.Address()
	require.NoError(t, err)
	assert.Equal(t, addr, parsed)

	_, err = DID("did:web:example.com").Address()
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
