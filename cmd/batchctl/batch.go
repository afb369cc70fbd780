package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/feral-file/batch-ledger/internal/bootstrap"
	"github.com/feral-file/batch-ledger/internal/client"
	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/metadata"
)

var (
	metadataRef  string
	metadataFile string
	docName      string
	docDesc      string
	externalURL  string
	imagePath    string
	imageRef     string
	withMetadata bool
	withEvents   bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a batch owned by the signing account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, hasDoc, err := documentInput()
		if err != nil {
			return err
		}
		if hasDoc && metadataRef != "" {
			return fmt.Errorf("--ref cannot be combined with metadata fields")
		}
		if imagePath != "" && !hasDoc {
			return fmt.Errorf("--image requires metadata fields")
		}

		return withLedger(cmd, func(ctx context.Context, l *bootstrap.Ledger) error {
			var result *client.CreateResult
			if hasDoc {
				in := client.CreateBatchInput{Input: input}
				if imagePath != "" {
					in.Image, err = os.ReadFile(imagePath)
					if err != nil {
						return fmt.Errorf("failed to read image: %w", err)
					}
					in.ImageName = filepath.Base(imagePath)
				}
				result, err = l.Client.CreateBatchWithMetadata(ctx, in)
			} else {
				result, err = l.Client.CreateBatch(ctx, metadataRef)
			}
			if err != nil {
				return err
			}

			return printResult(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "Created batch #%d\n", result.BatchID)
				if result.MetadataRef != "" {
					fmt.Fprintf(w, "metadata: %s\n", result.MetadataRef)
				}
				printTx(w, result.TxResult)
			})
		})
	},
}

var transferCmd = &cobra.Command{
	Use:   "transfer <batch-id> <new-owner>",
	Short: "Transfer a batch to a new owner",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		batchID, err := parseBatchID(args[0])
		if err != nil {
			return err
		}

		return withLedger(cmd, func(ctx context.Context, l *bootstrap.Ledger) error {
			result, err := l.Client.TransferBatch(ctx, batchID, args[1])
			if err != nil {
				return err
			}

			return printResult(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "Transferred batch #%d to %s\n", batchID, args[1])
				printTx(w, *result)
			})
		})
	},
}

var updateMetadataCmd = &cobra.Command{
	Use:   "update-metadata <batch-id>",
	Short: "Point a batch at a new metadata document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batchID, err := parseBatchID(args[0])
		if err != nil {
			return err
		}
		input, hasDoc, err := documentInput()
		if err != nil {
			return err
		}
		if hasDoc == (metadataRef != "") {
			return fmt.Errorf("exactly one of --ref or metadata fields is required")
		}

		return withLedger(cmd, func(ctx context.Context, l *bootstrap.Ledger) error {
			var result *client.MetadataUpdateResult
			if hasDoc {
				doc, err := metadata.Build(input, imageRef, time.Now())
				if err != nil {
					return domain.NewLedgerError(domain.ErrInvalidArgument, "updateMetadata", err)
				}
				result, err = l.Client.UpdateMetadataDocument(ctx, batchID, doc)
				if err != nil {
					return err
				}
			} else {
				result, err = l.Client.UpdateMetadata(ctx, batchID, metadataRef)
				if err != nil {
					return err
				}
			}

			return printResult(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "Batch #%d metadata: %s\n", result.BatchID, result.MetadataRef)
				printTx(w, result.TxResult)
			})
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show <batch-id>",
	Short: "Show a batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batchID, err := parseBatchID(args[0])
		if err != nil {
			return err
		}

		return withLedger(cmd, func(ctx context.Context, l *bootstrap.Ledger) error {
			if !withMetadata {
				info, err := l.Client.GetBatchInfo(ctx, batchID)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), info, func(w io.Writer) { printBatch(w, *info) })
			}

			batch, err := l.Client.GetBatchInfoWithMetadata(ctx, batchID)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), batch, func(w io.Writer) {
				printBatch(w, batch.BatchInfo)
				switch {
				case batch.Metadata != nil:
					fmt.Fprintf(w, "name:          %s\n", batch.Metadata.Name)
					fmt.Fprintf(w, "description:   %s\n", batch.Metadata.Description)
					if batch.Metadata.Image != "" {
						fmt.Fprintf(w, "image:         %s\n", batch.Metadata.Image)
					}
				case batch.MetadataError != "":
					fmt.Fprintf(w, "metadata:      unavailable (%s)\n", batch.MetadataError)
				}
			})
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <batch-id>",
	Short: "List the owners of a batch, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batchID, err := parseBatchID(args[0])
		if err != nil {
			return err
		}

		return withLedger(cmd, func(ctx context.Context, l *bootstrap.Ledger) error {
			if withEvents {
				events, err := l.Client.GetBatchHistoryEvents(ctx, batchID)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), events, func(w io.Writer) {
					for _, e := range events {
						printEvent(w, e)
					}
				})
			}

			owners, err := l.Client.GetOwnerHistory(ctx, batchID)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), owners, func(w io.Writer) {
				for i, owner := range owners {
					fmt.Fprintf(w, "%d. %s\n", i+1, owner.Hex())
				}
			})
		})
	},
}

var ownedCmd = &cobra.Command{
	Use:   "owned <address>",
	Short: "List the batches currently owned by an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(cmd, func(ctx context.Context, l *bootstrap.Ledger) error {
			ids, err := l.Client.GetUserOwnedBatches(ctx, args[0])
			if err != nil {
				return err
			}
			if ids == nil {
				ids = []uint64{}
			}
			return printResult(cmd.OutOrStdout(), ids, func(w io.Writer) {
				if len(ids) == 0 {
					fmt.Fprintln(w, "No batches")
				}
				for _, id := range ids {
					fmt.Fprintf(w, "#%d\n", id)
				}
			})
		})
	},
}

var totalCmd = &cobra.Command{
	Use:   "total",
	Short: "Print the number of batches ever created",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(cmd, func(ctx context.Context, l *bootstrap.Ledger) error {
			total, err := l.Client.GetTotalBatches(ctx)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), map[string]uint64{"total": total}, func(w io.Writer) {
				fmt.Fprintln(w, total)
			})
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{createCmd, updateMetadataCmd} {
		cmd.Flags().StringVar(&metadataRef, "ref", "", "existing metadata reference")
		cmd.Flags().StringVar(&metadataFile, "metadata-file", "", "JSON file with the document fields")
		cmd.Flags().StringVar(&docName, "name", "", "document name")
		cmd.Flags().StringVar(&docDesc, "description", "", "document description")
		cmd.Flags().StringVar(&externalURL, "external-url", "", "document external url")
	}
	createCmd.Flags().StringVar(&imagePath, "image", "", "image file to upload with the document")
	updateMetadataCmd.Flags().StringVar(&imageRef, "image-ref", "", "image URL or content address")

	showCmd.Flags().BoolVar(&withMetadata, "metadata", false, "resolve the metadata document")
	historyCmd.Flags().BoolVar(&withEvents, "events", false, "list the ledger events instead of the owners")
}

// documentInput collects the document fields from --metadata-file and the field flags
func documentInput() (metadata.Input, bool, error) {
	var input metadata.Input
	hasDoc := false

	if metadataFile != "" {
		raw, err := os.ReadFile(metadataFile)
		if err != nil {
			return input, false, fmt.Errorf("failed to read metadata file: %w", err)
		}
		if err := json.Unmarshal(raw, &input); err != nil {
			return input, false, fmt.Errorf("failed to parse metadata file: %w", err)
		}
		hasDoc = true
	}

	if docName != "" {
		input.Name = docName
		hasDoc = true
	}
	if docDesc != "" {
		input.Description = docDesc
		hasDoc = true
	}
	if externalURL != "" {
		input.ExternalURL = externalURL
		hasDoc = true
	}

	return input, hasDoc, nil
}

func printBatch(w io.Writer, info domain.BatchInfo) {
	fmt.Fprintf(w, "batch:         #%d\n", info.BatchID)
	fmt.Fprintf(w, "owner:         %s\n", info.CurrentOwner.Hex())
	fmt.Fprintf(w, "owners:        %d\n", info.OwnerCount)
	fmt.Fprintf(w, "created:       %s\n", info.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "last transfer: %s\n", info.LastTransferAt.Format(time.RFC3339))
	if info.HasMetadata() {
		fmt.Fprintf(w, "metadata ref:  %s\n", info.MetadataRef)
	}
}

func printEvent(w io.Writer, e domain.LedgerEvent) {
	fmt.Fprintf(w, "%s  block %d  %s", e.Timestamp.Format(time.RFC3339), e.BlockNumber, e.EventType)
	if e.FromAddress != nil {
		fmt.Fprintf(w, "  from %s", *e.FromAddress)
	}
	if e.ToAddress != nil {
		fmt.Fprintf(w, "  to %s", *e.ToAddress)
	}
	if e.MetadataRef != nil {
		fmt.Fprintf(w, "  ref %s", *e.MetadataRef)
	}
	fmt.Fprintf(w, "  tx %s\n", e.TxHash)
}
