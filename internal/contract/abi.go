package contract

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed BatchLedger.abi.json
var batchLedgerABI string

// Function names of the ledger contract
const (
	MethodCreateBatch     = "createBatch"
	MethodTransferBatch   = "transferBatch"
	MethodUpdateMetadata  = "updateMetadata"
	MethodGetCurrentOwner = "getCurrentOwner"
	MethodGetOwnerHistory = "getOwnerHistory"
	MethodGetBatchInfo    = "getBatchInfo"
	MethodGetTotalBatches = "getTotalBatches"
	MethodGetOwnerCount   = "getOwnerCount"
	MethodWasOwner        = "wasOwner"
	MethodBatchExists     = "batchExists"
)

// Event names of the ledger contract
const (
	EventBatchCreated     = "BatchCreated"
	EventBatchTransferred = "BatchTransferred"
	EventMetadataUpdated  = "MetadataUpdated"
)

// Custom error names of the ledger contract
const (
	ErrorBatchNotFound   = "BatchNotFound"
	ErrorNotBatchOwner   = "NotBatchOwner"
	ErrorInvalidNewOwner = "InvalidNewOwner"
)

var (
	requiredMethods = []string{
		MethodCreateBatch, MethodTransferBatch, MethodUpdateMetadata,
		MethodGetCurrentOwner, MethodGetOwnerHistory, MethodGetBatchInfo,
		MethodGetTotalBatches, MethodGetOwnerCount, MethodWasOwner, MethodBatchExists,
	}
	requiredEvents = []string{EventBatchCreated, EventBatchTransferred, EventMetadataUpdated}
	requiredErrors = []string{ErrorBatchNotFound, ErrorNotBatchOwner, ErrorInvalidNewOwner}
)

// DefaultABI returns the embedded ABI JSON of the ledger contract
func DefaultABI() string {
	return batchLedgerABI
}

// ParseABI parses an ABI description and checks it exposes the ledger interface
func ParseABI(r io.Reader) (abi.ABI, error) {
	parsed, err := abi.JSON(r)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI: %w", err)
	}

	for _, name := range requiredMethods {
		if _, ok := parsed.Methods[name]; !ok {
			return abi.ABI{}, fmt.Errorf("ABI is missing function %s", name)
		}
	}
	for _, name := range requiredEvents {
		if _, ok := parsed.Events[name]; !ok {
			return abi.ABI{}, fmt.Errorf("ABI is missing event %s", name)
		}
	}
	for _, name := range requiredErrors {
		if _, ok := parsed.Errors[name]; !ok {
			return abi.ABI{}, fmt.Errorf("ABI is missing error %s", name)
		}
	}

	return parsed, nil
}

// MustDefaultCodec returns a codec over the embedded ABI
func MustDefaultCodec() *Codec {
	parsed, err := ParseABI(strings.NewReader(batchLedgerABI))
	if err != nil {
		panic(err)
	}
	return NewCodec(parsed)
}
