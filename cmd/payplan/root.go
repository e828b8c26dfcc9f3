package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Vork-21/payplan/pkg/config"
	"github.com/Vork-21/payplan/pkg/logger"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "payplan",
	Short: "Payment plan analysis for QuickBooks ledger exports",
	Long: `payplan ingests customer ledger exports (CSV or XLSX), rebuilds each
customer's payment plans, flags data-quality issues, and reports who is
behind, by how much, and what collections should expect month by month.

Run "payplan analyze <file>" for a one-shot report, or "payplan serve"
to expose the same analysis over an HTTP API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(".")
		if err != nil {
			return err
		}
		return logger.Setup(logger.Config{
			Level:  cfg.LogLevel,
			Format: cfg.LogFormat,
			Output: "stderr",
		})
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
