package cmd

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/vitalguard/internal/api/alerts"
)

var (
	exportFile     string
	exportStatus   string
	exportSeverity string
	exportType     string
	exportDevice   string
	exportFrom     string
	exportTo       string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export alerts to an XLSX workbook",
	Long: `Write the alerts matching the filters to an Excel workbook with the
same columns as the API export. Times are RFC 3339.

Example:
  vitalctl export --status active --device watch-17 -f watch-17.xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		for key, v := range map[string]string{
			"status":   exportStatus,
			"severity": exportSeverity,
			"type":     exportType,
			"deviceId": exportDevice,
			"from":     exportFrom,
			"to":       exportTo,
		} {
			if v != "" {
				q.Set(key, v)
			}
		}
		filter, err := alerts.FilterFromValues(q)
		if err != nil {
			return fmt.Errorf("invalid filter: %w", err)
		}
		filter.Limit = alerts.MaxExportRows

		logger := newLogger()
		defer logger.Sync()

		_, store, err := openStore(logger)
		if err != nil {
			return err
		}
		defer store.Close()

		list, total, err := store.Alerts().List(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("list alerts: %w", err)
		}

		data, err := alerts.GenerateExport(list)
		if err != nil {
			return err
		}

		path := exportFile
		if path == "" {
			path = fmt.Sprintf("alerts-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
		}
		if err := os.WriteFile(path, data, 0o640); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d alert(s) to %s\n", len(list), path)
		if total > int64(len(list)) {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %d matching alert(s) exceed the export limit of %d\n",
				total-int64(len(list)), alerts.MaxExportRows)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFile, "file", "f", "", "output file (default alerts-<timestamp>.xlsx)")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "filter by status")
	exportCmd.Flags().StringVar(&exportSeverity, "severity", "", "filter by severity")
	exportCmd.Flags().StringVar(&exportType, "type", "", "filter by alert type")
	exportCmd.Flags().StringVar(&exportDevice, "device", "", "filter by device id")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "created at or after (RFC 3339)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "created at or before (RFC 3339)")
	rootCmd.AddCommand(exportCmd)
}
