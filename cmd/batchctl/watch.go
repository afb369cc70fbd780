package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/feral-file/batch-ledger/internal/adapter"
	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/providers/jetstream"
)

var watchBatchID uint64

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print ledger events as the emitter publishes them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.NATS.URL == "" {
			return fmt.Errorf("nats.url is required")
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		consumer, err := jetstream.NewConsumer(jetstream.ConsumerConfig{
			Config: jetstream.Config{
				URL:            cfg.NATS.URL,
				StreamName:     cfg.NATS.StreamName,
				MaxReconnects:  cfg.NATS.MaxReconnects,
				ReconnectWait:  cfg.NATS.ReconnectWait,
				ConnectionName: cfg.NATS.ConnectionName,
			},
			ConsumerName:   cfg.NATS.ConsumerName,
			AckWaitTimeout: cfg.NATS.AckWait,
			MaxDeliver:     cfg.NATS.MaxDeliver,
		}, adapter.NewNatsJetStream(), adapter.NewJSON())
		if err != nil {
			return err
		}
		defer consumer.Close()

		out := cmd.OutOrStdout()
		err = consumer.Run(ctx, func(event *domain.LedgerEvent) error {
			if watchBatchID != 0 && event.BatchID != watchBatchID {
				return nil
			}
			return printResult(out, event, func(w io.Writer) { printEvent(w, *event) })
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().Uint64Var(&watchBatchID, "batch", 0, "only print events of this batch")
}
