package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/feral-file/batch-ledger/internal/client"
	"github.com/feral-file/batch-ledger/internal/domain"
)

// describeError renders a failed command for the terminal
func describeError(err error) string {
	if !domain.IsClassified(err) {
		return fmt.Sprintf("Error: %v", err)
	}

	msg := fmt.Sprintf("Error [%s]: %s", domain.KindCode(err), domain.UserMessage(err))
	if domain.IsRetryable(err) {
		msg += " The request can be retried."
	}
	return msg
}

func parseBatchID(arg string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid batch id %q", arg)
	}
	return id, nil
}

// printResult writes v as indented JSON when asked to, otherwise the text form
func printResult(w io.Writer, v interface{}, text func(w io.Writer)) error {
	if !jsonOutput {
		text(w)
		return nil
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTx(w io.Writer, tx client.TxResult) {
	fmt.Fprintf(w, "tx:       %s\n", tx.TxHash.Hex())
	fmt.Fprintf(w, "block:    %d\n", tx.BlockNumber)
	fmt.Fprintf(w, "gas used: %d\n", tx.GasUsed)
}

// promptConfirm asks on out and reads the answer from in
func promptConfirm(in io.Reader, out io.Writer) client.ConfirmFunc {
	reader := bufio.NewReader(in)
	return func(ctx context.Context, tx *types.Transaction) (bool, error) {
		to := "contract creation"
		if tx.To() != nil {
			to = tx.To().Hex()
		}
		fmt.Fprintf(out, "Sign transaction to %s (nonce %d, gas %d, max fee %s wei)? [y/N] ",
			to, tx.Nonce(), tx.Gas(), tx.GasFeeCap().String())

		answer, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return false, err
		}

		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}
