package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/vitalguard/internal/alerting"
	"github.com/good-yellow-bee/vitalguard/internal/app"
	"github.com/good-yellow-bee/vitalguard/internal/jobs"
)

var escalateDryRun bool

var escalateCmd = &cobra.Command{
	Use:   "escalate",
	Short: "Run one escalation pass",
	Long: `Scan active alerts and advance every alert whose next escalation
rule is due. Escalated alerts are dispatched again on every configured
notification channel.

Use --dry-run to list the alerts that are due without changing them.

Example:
  vitalctl escalate --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		defer logger.Sync()

		cfg, store, err := openStore(logger)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if escalateDryRun {
			active, err := store.Alerts().ListActive(ctx)
			if err != nil {
				return fmt.Errorf("list active alerts: %w", err)
			}
			now := time.Now().UTC()
			fmt.Fprintf(out, "%-36s  %-18s  %-10s  %-5s  %s\n", "ID", "DEVICE", "SEVERITY", "LEVEL", "CREATED")
			fmt.Fprintln(out, strings.Repeat("-", 100))
			due := 0
			for _, a := range active {
				if !alerting.NeedsEscalation(a, now) {
					continue
				}
				due++
				fmt.Fprintf(out, "%-36s  %-18s  %-10s  %-5d  %s\n",
					a.ID, a.DeviceID, a.Severity, a.Escalation.Level,
					a.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			fmt.Fprintf(out, "\nDue: %d of %d active alert(s)\n", due, len(active))
			return nil
		}

		dispatcher, err := app.NewDispatcher(cfg.Notifications, store.Alerts(), logger)
		if err != nil {
			return err
		}
		defer dispatcher.Close()

		scanner := jobs.NewEscalationScanner(store.Alerts(), alerting.NewManager(store.Alerts(), nil), dispatcher, logger)
		res, err := scanner.Scan(ctx)
		if err != nil {
			return fmt.Errorf("escalation pass: %w", err)
		}

		if output == "json" {
			return printJSON(out, res)
		}
		fmt.Fprintf(out, "Scanned:   %d\nEscalated: %d\nFailed:    %d\n", res.Scanned, res.Escalated, res.Failed)
		return nil
	},
}

func init() {
	escalateCmd.Flags().BoolVar(&escalateDryRun, "dry-run", false, "list due alerts without escalating")
	rootCmd.AddCommand(escalateCmd)
}
