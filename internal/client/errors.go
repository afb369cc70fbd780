package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/feral-file/batch-ledger/internal/contract"
	"github.com/feral-file/batch-ledger/internal/domain"
)

// userRejectedCode is the EIP-1193 provider error code for a declined request
const userRejectedCode = 4001

// revertCode is the JSON-RPC error code of an execution revert
const revertCode = 3

var userRejectedMessages = []string{
	"user denied",
	"user rejected",
	"rejected by user",
}

// classify maps a raw failure of a ledger operation onto the error taxonomy.
// Classified errors pass through unchanged.
func classify(op string, codec *contract.Codec, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsClassified(err) {
		return err
	}

	if revertErr := classifyRevert(op, codec, err); revertErr != nil {
		return revertErr
	}

	if isUserRejection(err) {
		return domain.NewLedgerError(domain.ErrTransactionRejected, op, err)
	}

	// timeouts, dial failures, ethereum.NotFound, 5xx and unknown node failures are retryable
	return domain.NewLedgerError(domain.ErrTransientNetworkFailure, op, err)
}

// classifyRevert decodes custom error revert data carried by a JSON-RPC error.
// Returns nil when err is not a revert.
func classifyRevert(op string, codec *contract.Codec, err error) error {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() != revertCode {
		return nil
	}

	hexData, ok := dataErr.ErrorData().(string)
	if !ok {
		return nil
	}
	data, decodeErr := hexutil.Decode(hexData)
	if decodeErr != nil {
		return nil
	}

	if codec != nil {
		if ledgerErr := codec.DecodeRevert(op, data); ledgerErr != nil {
			return ledgerErr
		}
	}

	// a revert the ledger ABI does not describe is deterministic, retrying cannot help
	return domain.NewLedgerError(domain.ErrInvalidArgument, op, fmt.Errorf("execution reverted: %w", err))
}

func isUserRejection(err error) bool {
	if errors.Is(err, ErrSignatureDeclined) {
		return true
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == userRejectedCode {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, m := range userRejectedMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
