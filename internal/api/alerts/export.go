package alerts

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/good-yellow-bee/vitalguard/internal/api/response"
	"github.com/good-yellow-bee/vitalguard/internal/models"
)

const exportSheet = "Alerts"

// ExportHeader is the first row of an alert export.
var ExportHeader = []string{
	"Alert ID",
	"Created At",
	"Device ID",
	"Device Name",
	"Patient",
	"Type",
	"Severity",
	"Status",
	"Title",
	"Trigger Value",
	"Threshold",
	"Unit",
	"Escalation Level",
	"Acknowledged By",
	"Acknowledged At",
	"Resolved By",
	"Resolved At",
	"Response Time (s)",
	"Notes",
}

var exportColumnWidths = []float64{38, 22, 18, 22, 22, 26, 12, 16, 30, 14, 12, 8, 16, 18, 22, 18, 22, 18, 40}

// Export writes the filtered alert list as an XLSX workbook.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r)
	if err != nil {
		response.JSONError(w, response.NewBadRequest(err.Error()))
		return
	}
	filter.Limit = MaxExportRows

	alerts, _, err := h.store.List(r.Context(), filter)
	if err != nil {
		response.HandleError(w, h.logger, "export alerts", err)
		return
	}

	data, err := GenerateExport(alerts)
	if err != nil {
		response.HandleError(w, h.logger, "export alerts", err)
		return
	}

	filename := fmt.Sprintf("alerts-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// GenerateExport renders alerts into an XLSX workbook with a single sheet.
func GenerateExport(alerts []*models.Alert) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := writeRow(f, 1, toCells(ExportHeader)); err != nil {
		return nil, err
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(ExportHeader), 1)
	if err != nil {
		return nil, fmt.Errorf("convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(exportSheet, "A1", lastHeader, headerStyle); err != nil {
		return nil, fmt.Errorf("set header style: %w", err)
	}

	for i, width := range exportColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("convert column number: %w", err)
		}
		if err := f.SetColWidth(exportSheet, col, col, width); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	for i, a := range alerts {
		if err := writeRow(f, i+2, exportRow(a)); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("convert coordinates: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func toCells(values []string) []any {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

func exportRow(a *models.Alert) []any {
	var responseTime any = ""
	if a.Response.ResponseTimeSeconds != nil {
		responseTime = *a.Response.ResponseTimeSeconds
	}
	return []any{
		a.ID,
		formatTime(&a.CreatedAt),
		a.DeviceID,
		a.DeviceName,
		a.Context.PatientName,
		string(a.Type),
		string(a.Severity),
		string(a.Status),
		a.Title,
		a.TriggerValue,
		a.Threshold,
		a.Unit,
		a.Escalation.Level,
		a.Response.AcknowledgedBy,
		formatTime(a.Response.AcknowledgedAt),
		a.Response.ResolvedBy,
		formatTime(a.Response.ResolvedAt),
		responseTime,
		a.Response.Notes,
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
