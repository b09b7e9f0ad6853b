package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/vitalguard/internal/jobs"
)

var (
	purgeReadings time.Duration
	purgeAlerts   time.Duration
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete readings and closed alerts past retention",
	Long: `Delete readings older than the readings retention window and resolved
or false-positive alerts older than the alerts retention window. Active and
acknowledged alerts are never deleted.

Windows default to jobs.retention in the config file (30 days for
readings, 90 days for alerts).

Example:
  vitalctl purge --readings 168h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		defer logger.Sync()

		cfg, store, err := openStore(logger)
		if err != nil {
			return err
		}
		defer store.Close()

		retention := jobs.RetentionConfig{
			Readings: cfg.Jobs.Retention.Readings,
			Alerts:   cfg.Jobs.Retention.Alerts,
		}
		if purgeReadings > 0 {
			retention.Readings = purgeReadings
		}
		if purgeAlerts > 0 {
			retention.Alerts = purgeAlerts
		}

		res, err := jobs.NewPurger(store.Readings(), store.Alerts(), retention, logger).Purge(cmd.Context())
		if err != nil {
			return fmt.Errorf("purge: %w", err)
		}

		out := cmd.OutOrStdout()
		if output == "json" {
			return printJSON(out, res)
		}
		fmt.Fprintf(out, "Deleted %d reading(s) older than %s\n", res.Readings, retention.Readings)
		fmt.Fprintf(out, "Deleted %d closed alert(s) older than %s\n", res.Alerts, retention.Alerts)
		return nil
	},
}

func init() {
	purgeCmd.Flags().DurationVar(&purgeReadings, "readings", 0, "readings retention window (overrides the config)")
	purgeCmd.Flags().DurationVar(&purgeAlerts, "alerts", 0, "closed alerts retention window (overrides the config)")
	rootCmd.AddCommand(purgeCmd)
}
