package notifier

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/good-yellow-bee/vitalguard/internal/models"
)

//go:embed templates/*
var templateFS embed.FS

// Templates holds parsed email templates.
type Templates struct {
	html  *template.Template
	plain *template.Template
}

// TemplateData contains data for template rendering.
type TemplateData struct {
	Title          string
	Message        string
	Type           string
	Severity       string
	SeverityColor  string
	DeviceName     string
	DeviceID       string
	TriggerValue   string
	Threshold      string
	Timestamp      string
	PatientName    string
	PatientAge     int
	ContactName    string
	ContactPhone   string
	MedicalHistory []string
	Medications    []string
	Location       string
	Escalation     int
}

// LoadTemplates loads embedded email templates.
func LoadTemplates() (*Templates, error) {
	funcs := template.FuncMap{
		"upper": strings.ToUpper,
		"join":  strings.Join,
	}

	htmlTmpl, err := template.New("alert.html").Funcs(funcs).ParseFS(templateFS, "templates/alert.html")
	if err != nil {
		return nil, err
	}

	plainTmpl, err := template.New("alert.txt").Funcs(funcs).ParseFS(templateFS, "templates/alert.txt")
	if err != nil {
		return nil, err
	}

	return &Templates{
		html:  htmlTmpl,
		plain: plainTmpl,
	}, nil
}

// RenderHTML renders the HTML email body.
func (t *Templates) RenderHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.html.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderPlain renders the plain text email body.
func (t *Templates) RenderPlain(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.plain.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// severityColor returns the color for a severity level.
func severityColor(severity models.Severity) string {
	switch severity {
	case models.SeverityEmergency:
		return "#b71c1c" // dark red
	case models.SeverityCritical:
		return "#d32f2f" // red
	case models.SeverityWarning:
		return "#f57c00" // orange
	case models.SeverityInfo:
		return "#1976d2" // blue
	default:
		return "#757575" // gray
	}
}

func formatValue(v float64, unit string) string {
	if unit == "" {
		return fmt.Sprintf("%g", v)
	}
	return fmt.Sprintf("%g %s", v, unit)
}

// AlertToTemplateData converts an alert to template data.
func AlertToTemplateData(alert *models.Alert) TemplateData {
	data := TemplateData{
		Title:          alert.Title,
		Message:        alert.Message,
		Type:           string(alert.Type),
		Severity:       string(alert.Severity),
		SeverityColor:  severityColor(alert.Severity),
		DeviceName:     alert.DeviceName,
		DeviceID:       alert.DeviceID,
		TriggerValue:   formatValue(alert.TriggerValue, alert.Unit),
		Threshold:      formatValue(alert.Threshold, alert.Unit),
		Timestamp:      alert.CreatedAt.Format("2006-01-02 15:04:05 MST"),
		PatientName:    alert.Context.PatientName,
		PatientAge:     alert.Context.PatientAge,
		ContactName:    alert.Context.EmergencyContact.Name,
		ContactPhone:   alert.Context.EmergencyContact.Phone,
		MedicalHistory: alert.Context.MedicalHistory,
		Medications:    alert.Context.Medications,
		Escalation:     alert.Escalation.Level,
	}
	if data.DeviceName == "" {
		data.DeviceName = alert.DeviceID
	}
	if alert.Location != nil {
		data.Location = fmt.Sprintf("%.5f, %.5f", alert.Location.Latitude, alert.Location.Longitude)
	}
	return data
}
