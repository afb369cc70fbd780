package domain

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Chain represents the blockchain network identifier using CAIP-2 format
type Chain string

const (
	ChainEthereumMainnet Chain = "eip155:1"
	ChainEthereumSepolia Chain = "eip155:11155111"
	ChainPolygonAmoy     Chain = "eip155:80002"
	ChainLocalDevnet     Chain = "eip155:31337"
)

const eip155Namespace = "eip155"

// ChainFromID builds the CAIP-2 identifier of an EVM chain id
func ChainFromID(chainID *big.Int) Chain {
	if chainID == nil {
		return ""
	}
	return Chain(fmt.Sprintf("%s:%s", eip155Namespace, chainID.String()))
}

// ChainID returns the numeric EVM chain id of the chain
func (c Chain) ChainID() (*big.Int, error) {
	namespace, reference, ok := strings.Cut(string(c), ":")
	if !ok || namespace != eip155Namespace {
		return nil, fmt.Errorf("%w: %q is not an eip155 chain", ErrUnsupportedNetwork, c)
	}
	id, ok := new(big.Int).SetString(reference, 10)
	if !ok || id.Sign() <= 0 {
		return nil, fmt.Errorf("%w: invalid chain reference %q", ErrUnsupportedNetwork, reference)
	}
	return id, nil
}

// Reference returns the CAIP-2 reference part (e.g. "1" for "eip155:1")
func (c Chain) Reference() string {
	_, reference, _ := strings.Cut(string(c), ":")
	return reference
}

// IsValidChain checks if a chain is a well-formed eip155 chain identifier
func IsValidChain(chain Chain) bool {
	_, err := chain.ChainID()
	return err == nil
}

// EventType represents the type of ledger event
type EventType string

const (
	EventTypeBatchCreated     EventType = "batch_created"
	EventTypeBatchTransferred EventType = "batch_transferred"
	EventTypeMetadataUpdated  EventType = "metadata_updated"
)

// Valid reports whether the event type is one emitted by the ledger
func (t EventType) Valid() bool {
	switch t {
	case EventTypeBatchCreated, EventTypeBatchTransferred, EventTypeMetadataUpdated:
		return true
	default:
		return false
	}
}

// BatchInfo is the on-chain summary of a batch
type BatchInfo struct {
	BatchID        uint64         `json:"batch_id"`
	CurrentOwner   common.Address `json:"current_owner"`
	OwnerCount     uint64         `json:"owner_count"`
	CreatedAt      time.Time      `json:"created_at"`
	LastTransferAt time.Time      `json:"last_transfer_at"`
	MetadataRef    string         `json:"metadata_ref"`
}

// HasMetadata reports whether a metadata reference is attached
func (b BatchInfo) HasMetadata() bool {
	return b.MetadataRef != ""
}

// LedgerEvent represents a normalized ledger event
// This is the standard format published to NATS and journaled in the store
type LedgerEvent struct {
	Chain           Chain     `json:"chain"`                  // e.g., "eip155:31337"
	ContractAddress string    `json:"contract_address"`       // ledger contract address
	EventType       EventType `json:"event_type"`             // batch_created, batch_transferred, metadata_updated
	BatchID         uint64    `json:"batch_id"`               // batch identifier
	FromAddress     *string   `json:"from_address,omitempty"` // previous owner (transfers only)
	ToAddress       *string   `json:"to_address,omitempty"`   // creator or new owner
	OldMetadataRef  *string   `json:"old_metadata_ref,omitempty"`
	MetadataRef     *string   `json:"metadata_ref,omitempty"` // ref at creation or new ref after update
	TxHash          string    `json:"tx_hash"`
	BlockNumber     uint64    `json:"block_number"`
	BlockHash       *string   `json:"block_hash,omitempty"`
	TxIndex         uint64    `json:"tx_index"`
	LogIndex        uint64    `json:"log_index"`
	Timestamp       time.Time `json:"timestamp"` // ledger timestamp carried by the event
}

// Valid checks the event carries the fields required by its type
func (e *LedgerEvent) Valid() bool {
	if !IsValidChain(e.Chain) || !common.IsHexAddress(e.ContractAddress) {
		return false
	}
	if e.BatchID < FIRST_BATCH_ID || e.TxHash == "" {
		return false
	}

	switch e.EventType {
	case EventTypeBatchCreated:
		return e.FromAddress == nil && validParticipant(e.ToAddress)
	case EventTypeBatchTransferred:
		if !validParticipant(e.FromAddress) || !validParticipant(e.ToAddress) {
			return false
		}
		return !strings.EqualFold(*e.FromAddress, *e.ToAddress)
	case EventTypeMetadataUpdated:
		return e.FromAddress == nil && e.ToAddress == nil && e.MetadataRef != nil && e.OldMetadataRef != nil
	default:
		return false
	}
}

// Owner returns the owner after the event was applied, nil when the event does not change ownership
func (e *LedgerEvent) Owner() *string {
	if e.EventType == EventTypeMetadataUpdated {
		return nil
	}
	return e.ToAddress
}

// validParticipant checks an address is present and not the zero address
func validParticipant(address *string) bool {
	return address != nil && common.IsHexAddress(*address) && !IsZeroAddress(common.HexToAddress(*address))
}

// NormalizeAddress normalizes an address to its checksummed form
func NormalizeAddress(address string) string {
	if strings.HasPrefix(address, "0x") {
		return common.HexToAddress(address).String()
	}
	return address
}

// ParseAddress strictly parses a hex address, rejecting malformed input instead of truncating it
func ParseAddress(address string) (common.Address, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return common.Address{}, fmt.Errorf("%w: malformed address %q", ErrInvalidArgument, address)
	}
	return common.HexToAddress(address), nil
}

// IsZeroAddress reports whether an address is the null identity
func IsZeroAddress(address common.Address) bool {
	return address == (common.Address{})
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
