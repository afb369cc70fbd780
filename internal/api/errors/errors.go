package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/feral-file/batch-ledger/internal/domain"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Client errors (4xx)
	ErrCodeBadRequest           ErrorCode = "bad_request"
	ErrCodeValidationFailed     ErrorCode = "validation_failed"
	ErrCodeAuthenticationFailed ErrorCode = "authentication_failed"
	ErrCodeNotFound             ErrorCode = "not_found"
	ErrCodeUnauthorized         ErrorCode = "unauthorized"
	ErrCodeInvalidArgument      ErrorCode = "invalid_argument"
	ErrCodeTransactionRejected  ErrorCode = "transaction_rejected"
	ErrCodeRateLimited          ErrorCode = "rate_limited"

	// Server errors (5xx)
	ErrCodeInternalError      ErrorCode = "internal_error"
	ErrCodeUnsupportedNetwork ErrorCode = "unsupported_network"
	ErrCodeTransientNetwork   ErrorCode = "transient_network_failure"
	ErrCodeOffChainStorage    ErrorCode = "off_chain_storage_failure"
	ErrCodeServiceUnavailable ErrorCode = "service_unavailable"
)

// APIError represents a structured API error that carries error code and details
type APIError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable,omitempty"`
	TxHash    string    `json:"tx_hash,omitempty"`
}

func (e *APIError) Error() string {
	jsonErr, _ := json.Marshal(e)
	return string(jsonErr)
}

// Response is the envelope of every error body
type Response struct {
	Error *APIError `json:"error"`
}

// Error constructors for common error types
func NewBadRequestError(message string, details ...string) *APIError {
	return &APIError{
		Code:    ErrCodeBadRequest,
		Message: message,
		Details: strings.Join(details, ", "),
	}
}

func NewValidationError(details ...string) *APIError {
	return &APIError{
		Code:    ErrCodeValidationFailed,
		Message: "Validation failed",
		Details: strings.Join(details, ", "),
	}
}

func NewAuthenticationError(message string, details ...string) *APIError {
	return &APIError{
		Code:    ErrCodeAuthenticationFailed,
		Message: message,
		Details: strings.Join(details, ", "),
	}
}

func NewRateLimitedError(details ...string) *APIError {
	return &APIError{
		Code:      ErrCodeRateLimited,
		Message:   "Too many requests",
		Details:   strings.Join(details, ", "),
		Retryable: true,
	}
}

func NewInternalError(message string, details ...string) *APIError {
	return &APIError{
		Code:    ErrCodeInternalError,
		Message: message,
		Details: strings.Join(details, ", "),
	}
}

func NewServiceUnavailableError(message string, details ...string) *APIError {
	return &APIError{
		Code:    ErrCodeServiceUnavailable,
		Message: message,
		Details: strings.Join(details, ", "),
		Retryable: true,
	}
}

// FromError maps a ledger error to its HTTP status and body.
// Errors outside the ledger taxonomy become an opaque internal error.
func FromError(err error) (int, *APIError) {
	kind := domain.KindOf(err)
	if kind == nil {
		return http.StatusInternalServerError, NewInternalError("Internal server error")
	}

	apiErr := &APIError{
		Code:      ErrorCode(domain.KindCode(err)),
		Message:   domain.UserMessage(err),
		Details:   err.Error(),
		Retryable: domain.IsRetryable(err),
	}

	var le *domain.LedgerError
	if errors.As(err, &le) {
		apiErr.TxHash = le.TxHash
	}

	return statusOf(kind), apiErr
}

func statusOf(kind error) int {
	switch kind {
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrUnauthorized:
		return http.StatusForbidden
	case domain.ErrInvalidArgument:
		return http.StatusBadRequest
	case domain.ErrUnsupportedNetwork, domain.ErrTransientNetworkFailure:
		return http.StatusServiceUnavailable
	case domain.ErrTransactionRejected:
		return http.StatusConflict
	case domain.ErrOffChainStorageFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
