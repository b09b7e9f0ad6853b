package cmd

import (
	"fmt"
	"io"
	"net/url"
	"sort"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/vitalguard/internal/analytics"
	"github.com/good-yellow-bee/vitalguard/internal/api/params"
)

var (
	statsDevice string
	statsFrom   string
	statsTo     string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize alerts and readings",
	Long: `Print alert counts by status, severity and type, the average
acknowledgement time, and min/max/avg of each vital sign for the window.

Example:
  vitalctl stats --device watch-17 --from 2026-10-01T00:00:00Z`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		q.Set("deviceId", statsDevice)
		q.Set("from", statsFrom)
		q.Set("to", statsTo)
		win, err := params.WindowFromValues(q)
		if err != nil {
			return fmt.Errorf("invalid window: %w", err)
		}

		logger := newLogger()
		defer logger.Sync()

		_, store, err := openStore(logger)
		if err != nil {
			return err
		}
		defer store.Close()

		svc := analytics.NewService(store.Alerts(), store.Readings())
		w := analytics.Window{DeviceID: win.DeviceID, From: win.From, To: win.To}

		alertStats, err := svc.AlertStats(cmd.Context(), w)
		if err != nil {
			return fmt.Errorf("alert stats: %w", err)
		}
		readingStats, err := svc.ReadingStats(cmd.Context(), w)
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}

		out := cmd.OutOrStdout()
		if output == "json" {
			return printJSON(out, map[string]any{
				"alerts":   alertStats,
				"readings": readingStats,
			})
		}
		printAlertStats(out, alertStats)
		printReadingStats(out, readingStats)
		return nil
	},
}

func printAlertStats(out io.Writer, s *analytics.AlertStats) {
	fmt.Fprintf(out, "Alerts: %d total, %d active\n", s.Total, s.Active)
	if s.AverageResponseTimeSeconds != nil {
		fmt.Fprintf(out, "Average response time: %.1fs over %d acknowledgement(s)\n",
			*s.AverageResponseTimeSeconds, s.AcknowledgedCount)
	}
	printCounts(out, "By status", s.ByStatus)
	printCounts(out, "By severity", s.BySeverity)
	printCounts(out, "By type", s.ByType)
}

func printCounts(out io.Writer, title string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(out, "\n%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(out, "  %-28s %d\n", k, counts[k])
	}
}

func printReadingStats(out io.Writer, s *analytics.ReadingStats) {
	fmt.Fprintf(out, "\nReadings: %d total, %d fall(s) detected\n", s.Total, s.FallsDetected)
	if s.Total == 0 {
		return
	}
	fmt.Fprintf(out, "  %-18s %8s %8s %8s %8s\n", "VITAL", "COUNT", "MIN", "MAX", "AVG")
	for _, row := range []struct {
		name  string
		stats *analytics.VitalStats
	}{
		{"heart rate", s.HeartRate},
		{"spo2", s.SpO2},
		{"body temperature", s.BodyTemperature},
		{"battery", s.Battery},
	} {
		if row.stats == nil {
			continue
		}
		fmt.Fprintf(out, "  %-18s %8d %8.1f %8.1f %8.2f\n",
			row.name, row.stats.Count, row.stats.Min, row.stats.Max, row.stats.Avg)
	}
}

func init() {
	statsCmd.Flags().StringVar(&statsDevice, "device", "", "limit to one device")
	statsCmd.Flags().StringVar(&statsFrom, "from", "", "window start (RFC 3339)")
	statsCmd.Flags().StringVar(&statsTo, "to", "", "window end (RFC 3339)")
	rootCmd.AddCommand(statsCmd)
}
