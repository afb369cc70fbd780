package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when the referenced batch does not exist
	ErrNotFound = errors.New("batch not found")

	// ErrUnauthorized is returned when the caller is not the current owner of the batch
	ErrUnauthorized = errors.New("caller is not the current owner")

	// ErrInvalidArgument is returned for zero-address targets, no-op transfers and malformed input
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupportedNetwork is returned when the connected chain has no known ledger deployment
	ErrUnsupportedNetwork = errors.New("unsupported network")

	// ErrTransientNetworkFailure is returned for RPC, connectivity and timeout failures
	ErrTransientNetworkFailure = errors.New("transient network failure")

	// ErrTransactionRejected is returned when the signer declined to authorize the transaction
	ErrTransactionRejected = errors.New("transaction rejected")

	// ErrOffChainStorageFailure is returned when a metadata upload or fetch fails
	ErrOffChainStorageFailure = errors.New("off-chain storage failure")

	// ErrSubscriptionFailed is returned when subscription to ledger events fails
	ErrSubscriptionFailed = errors.New("subscription failed")
)

// kinds lists the error taxonomy in matching order
var kinds = []error{
	ErrNotFound,
	ErrUnauthorized,
	ErrInvalidArgument,
	ErrUnsupportedNetwork,
	ErrTransientNetworkFailure,
	ErrTransactionRejected,
	ErrOffChainStorageFailure,
}

// LedgerError is a classified failure of a ledger operation
type LedgerError struct {
	Kind    error  // one of the taxonomy sentinels
	Op      string // operation name, e.g. "transferBatch"
	BatchID uint64 // zero when not batch specific
	Caller  string // address that attempted the operation
	Owner   string // address required for the operation (unauthorized only)
	Address string // offending address (invalid argument only)
	Chain   Chain
	TxHash  string // set when a transaction was submitted
	Err     error  // underlying cause
}

// NewLedgerError creates a classified error
func NewLedgerError(kind error, op string, err error) *LedgerError {
	return &LedgerError{Kind: kind, Op: op, Err: err}
}

func (e *LedgerError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.BatchID != 0 {
		fmt.Fprintf(&b, " (batch %d)", e.BatchID)
	}
	if e.Owner != "" {
		fmt.Fprintf(&b, " (owner %s)", e.Owner)
	}
	if e.Address != "" {
		fmt.Fprintf(&b, " (address %s)", e.Address)
	}
	if e.TxHash != "" {
		fmt.Fprintf(&b, " (tx %s)", e.TxHash)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *LedgerError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the taxonomy sentinel of err, nil if err is unclassified
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	var le *LedgerError
	if errors.As(err, &le) && le.Kind != nil {
		return le.Kind
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// IsClassified reports whether err belongs to the taxonomy
func IsClassified(err error) bool {
	return KindOf(err) != nil
}

// IsRetryable reports whether the caller may retry the operation
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientNetworkFailure)
}

// KindCode returns a stable machine readable code for the kind of err
func KindCode(err error) string {
	switch KindOf(err) {
	case ErrNotFound:
		return "not_found"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrInvalidArgument:
		return "invalid_argument"
	case ErrUnsupportedNetwork:
		return "unsupported_network"
	case ErrTransientNetworkFailure:
		return "transient_network_failure"
	case ErrTransactionRejected:
		return "transaction_rejected"
	case ErrOffChainStorageFailure:
		return "off_chain_storage_failure"
	default:
		return "internal_error"
	}
}

// UserMessage returns the human readable message shown for a failed user action
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var le *LedgerError
	_ = errors.As(err, &le)

	switch KindOf(err) {
	case ErrNotFound:
		if le != nil && le.BatchID != 0 {
			return fmt.Sprintf("Batch #%d does not exist.", le.BatchID)
		}
		return "The requested batch does not exist."
	case ErrUnauthorized:
		if le != nil && le.Owner != "" {
			return fmt.Sprintf("Only the current owner %s can perform this action. Switch to that account and try again.", le.Owner)
		}
		return "Only the current owner of the batch can perform this action."
	case ErrInvalidArgument:
		if le != nil && le.Err != nil {
			return fmt.Sprintf("Invalid input: %s.", le.Err.Error())
		}
		return "Invalid input. Check the batch id and the recipient address."
	case ErrUnsupportedNetwork:
		return "The connected network is not supported. Switch to a network where the ledger is deployed."
	case ErrTransientNetworkFailure:
		if le != nil && le.TxHash != "" {
			return fmt.Sprintf("The network did not confirm transaction %s in time. It may still be finalized; check its status before retrying.", le.TxHash)
		}
		return "A network error occurred. Please try again."
	case ErrTransactionRejected:
		return "The transaction was cancelled."
	case ErrOffChainStorageFailure:
		return "Metadata storage is unavailable. Please try again later."
	default:
		return "An unexpected error occurred."
	}
}
