// Package cmd contains the CLI commands for vitalctl.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/good-yellow-bee/vitalguard/internal/app"
	"github.com/good-yellow-bee/vitalguard/internal/logging"
	"github.com/good-yellow-bee/vitalguard/internal/storage"
	"github.com/good-yellow-bee/vitalguard/pkg/config"
)

var (
	// Used for flags
	configFile string
	dbPath     string
	verbose    bool
	output     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vitalctl",
	Short: "vitalctl - VitalGuard operator tool",
	Long: `vitalctl runs maintenance passes and reports against a VitalGuard
database. It reads the same configuration file as the server.

Examples:
  # Run one escalation pass
  vitalctl escalate -c /etc/vitalguard/config.yaml

  # Delete readings and closed alerts past retention
  vitalctl purge --db ./data/vitalguard.db

  # Export this week's critical alerts
  vitalctl export --severity critical --from 2026-10-12T00:00:00Z -f critical.xlsx

  # Issue an operator token for the alert console
  vitalctl token --subject op-7 --username nurse.jones`,
	SilenceUsage: true,
	// Run when no subcommand is specified
	Run: func(cmd *cobra.Command, args []string) {
		// Show help by default
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides the config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
}

// loadConfig reads the config file, or the defaults when none is given.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.Load(configFile)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Driver = "sqlite"
		cfg.Database.Path = dbPath
	}
	return cfg, nil
}

// newLogger logs to stderr at warn level unless --verbose is set. Stdout
// carries only command output.
func newLogger() *zap.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(level, "console", "vitalctl")
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// openStore loads the configuration and opens its database.
func openStore(logger *zap.Logger) (*config.Config, storage.Storage, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Driver == "sqlite" {
		if _, err := os.Stat(cfg.Database.Path); os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("database file not found: %s", cfg.Database.Path)
		}
	}
	store, err := app.OpenStorage(cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
