package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/xraph/billing/internal/config"
	"github.com/xraph/billing/internal/logger"
)

var version = "0.1.0"

var (
	envFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "billingd",
	Short: "Invoice and payment reconciliation service",
	Long: `billingd runs the billing engine: invoices, direct and gateway payments,
scheduled installments and PayHere notification handling.

Configuration is read from the environment, optionally seeded from a .env file.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var files []string
		if envFile != "" {
			files = append(files, envFile)
		}

		loaded, err := config.Load(files...)
		if err != nil {
			return err
		}
		cfg = loaded

		if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		slog.SetDefault(logger.Slog("billing"))
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent("cmd")
		log.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file (default: ./.env when present)")
}
