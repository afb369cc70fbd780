package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/feral-file/batch-ledger/internal/bootstrap"
	"github.com/feral-file/batch-ledger/internal/config"
	"github.com/feral-file/batch-ledger/internal/logger"
)

var (
	cfgFile    string
	envPath    string
	assumeYes  bool
	jsonOutput bool
	cfg        *config.CLIConfig
)

var rootCmd = &cobra.Command{
	Use:           "batchctl",
	Short:         "Create, transfer and inspect ledger batches",
	Long:          `A command line client for the batch ownership ledger and its IPFS metadata`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadCLIConfig(cfgFile, envPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return logger.Initialize(logger.Config{
			Debug:     cfg.Debug,
			SentryDSN: cfg.SentryDSN,
			Tags: map[string]string{
				"service": "batchctl",
			},
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Flush(2 * time.Second)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", "config/", "directory holding .env files")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "sign transactions without asking")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")

	rootCmd.AddCommand(
		createCmd,
		transferCmd,
		updateMetadataCmd,
		showCmd,
		historyCmd,
		ownedCmd,
		totalCmd,
		watchCmd,
	)
}

// withLedger opens a ledger client for the duration of fn
func withLedger(cmd *cobra.Command, fn func(ctx context.Context, l *bootstrap.Ledger) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	opts := bootstrap.Options{
		Chain:  cfg.Chain,
		IPFS:   cfg.IPFS,
		Cache:  cfg.Cache,
		Signer: cfg.Signer,
		Client: cfg.Client,
	}
	if cfg.Database.Host != "" {
		opts.Database = &cfg.Database
	}
	if !assumeYes {
		opts.Confirm = promptConfirm(cmd.InOrStdin(), cmd.ErrOrStderr())
	}

	l, err := bootstrap.NewLedger(ctx, opts)
	if err != nil {
		return err
	}
	defer l.Close()

	return fn(ctx, l)
}
