// Command ballotctl is the operator CLI for ballot box sessions stored in a local SQLite database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose     bool
	dbPath      string
	catalogPath string
	configPath  string
	auditSecret string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ballotctl",
	Short: "Operate ballot box sessions and reference data",
	Long: `ballotctl runs the ballot box engine against a local SQLite database.

It validates catalog files, seeds and starts sessions, and reads or audits
a session's action log without a Nakama server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "data/ballotbox.db", "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "Catalog YAML (defaults to the embedded catalog)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Game rules JSON")
	rootCmd.PersistentFlags().StringVar(&auditSecret, "audit-secret", os.Getenv("BALLOTBOX_AUDIT_SECRET"), "HS256 key for audit receipts")

	catalogCmd.AddCommand(catalogValidateCmd)

	sessionLogCmd.Flags().Int64Var(&logAfter, "after", 0, "Only show entries after this sequence number")
	sessionLogCmd.Flags().IntVar(&logLimit, "limit", 0, "Maximum entries to show (0 shows the whole log)")
	sessionLogCmd.Flags().BoolVar(&logReceipt, "receipt", false, "Issue a signed audit receipt over the whole log")
	sessionLogCmd.Flags().StringVar(&logVerify, "verify", "", "Verify an audit receipt against the stored log")
	sessionCreateCmd.Flags().StringVar(&createID, "id", "", "Session id (generated when empty)")
	sessionCmd.AddCommand(sessionCreateCmd, sessionReadyCmd, sessionStartCmd, sessionLogCmd)

	rootCmd.AddCommand(catalogCmd, sessionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
