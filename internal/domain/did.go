package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// DID represents a Decentralized Identifier (W3C standard) for a batch participant
type DID string

// NewDID creates a did:pkh identifier for an address on the given chain
// Reference: https://github.com/w3c-ccg/did-pkh
func NewDID(address common.Address, chain Chain) DID {
	return DID(fmt.Sprintf("did:pkh:%s:%s", strings.ToLower(string(chain)), strings.ToLower(address.Hex())))
}

// String returns the string representation of the DID
func (d DID) String() string {
	return string(d)
}

// Address extracts the account address from a did:pkh identifier
func (d DID) Address() (common.Address, error) {
	parts := strings.Split(string(d), ":")
	if len(parts) != 5 || parts[0] != "did" || parts[1] != "pkh" {
		return common.Address{}, fmt.Errorf("%w: malformed did %q", ErrInvalidArgument, d)
	}
	return ParseAddress(parts[4])
}
