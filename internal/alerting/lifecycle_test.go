package alerting

import (
	"strings"
	"testing"
	"time"

	"github.com/good-yellow-bee/vitalguard/internal/models"
)

func newActiveAlert(severity models.Severity, created time.Time) *models.Alert {
	return &models.Alert{
		ID:         "alert-1",
		DeviceID:   "dev-1",
		Severity:   severity,
		Status:     models.AlertStatusActive,
		Escalation: EscalationFor(severity),
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

func TestAcknowledge(t *testing.T) {
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	a := newActiveAlert(models.SeverityCritical, created)

	now := created.Add(90*time.Second + 400*time.Millisecond)
	if err := Acknowledge(a, "nurse-1", "on my way", now); err != nil {
		t.Fatalf("Acknowledge() error = %v", err)
	}
	if a.Status != models.AlertStatusAcknowledged {
		t.Errorf("status = %s, want acknowledged", a.Status)
	}
	if a.Response.AcknowledgedBy != "nurse-1" {
		t.Errorf("acknowledgedBy = %q", a.Response.AcknowledgedBy)
	}
	if a.Response.ResponseTimeSeconds == nil || *a.Response.ResponseTimeSeconds != 90 {
		t.Errorf("responseTimeSeconds = %v, want 90", a.Response.ResponseTimeSeconds)
	}
	if a.Response.Notes != "on my way" {
		t.Errorf("notes = %q", a.Response.Notes)
	}

	err := Acknowledge(a, "nurse-2", "", now.Add(time.Minute))
	if !IsStateConflict(err) {
		t.Fatalf("second Acknowledge() error = %v, want state conflict", err)
	}
	if a.Response.AcknowledgedBy != "nurse-1" || !a.Response.AcknowledgedAt.Equal(now) {
		t.Error("acknowledgement fields changed after conflict")
	}
}

func TestResolveFromActiveAndAcknowledged(t *testing.T) {
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	a := newActiveAlert(models.SeverityWarning, created)
	if err := Resolve(a, "op", "fine", created.Add(time.Minute)); err != nil {
		t.Fatalf("Resolve(active) error = %v", err)
	}
	if a.Status != models.AlertStatusResolved || a.Response.ResolvedBy != "op" || a.Response.ResolvedAt == nil {
		t.Errorf("unexpected alert after resolve: %+v", a.Response)
	}

	b := newActiveAlert(models.SeverityWarning, created)
	if err := Acknowledge(b, "op", "first", created.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := Resolve(b, "op", "second", created.Add(2*time.Minute)); err != nil {
		t.Fatalf("Resolve(acknowledged) error = %v", err)
	}
	if b.Response.Notes != "first\nsecond" {
		t.Errorf("notes = %q, want appended notes", b.Response.Notes)
	}
}

func TestClosedAlertsRejectTransitions(t *testing.T) {
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	a := newActiveAlert(models.SeverityCritical, created)
	resolvedAt := created.Add(time.Minute)
	if err := Resolve(a, "op", "", resolvedAt); err != nil {
		t.Fatal(err)
	}

	later := created.Add(time.Hour)
	ops := map[string]func() error{
		"acknowledge":    func() error { return Acknowledge(a, "x", "", later) },
		"resolve":        func() error { return Resolve(a, "x", "", later) },
		"false positive": func() error { return MarkFalsePositive(a, "x", "", later) },
		"escalate": func() error {
			_, err := Escalate(a, later)
			return err
		},
	}
	for name, op := range ops {
		if err := op(); !IsStateConflict(err) {
			t.Errorf("%s on resolved alert: error = %v, want state conflict", name, err)
		}
	}
	if !a.Response.ResolvedAt.Equal(resolvedAt) || a.Response.ResolvedBy != "op" {
		t.Error("resolution fields changed after conflict")
	}
	if a.Status != models.AlertStatusResolved {
		t.Errorf("status = %s, want resolved", a.Status)
	}
}

func TestMarkFalsePositive(t *testing.T) {
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	a := newActiveAlert(models.SeverityCritical, created)
	if err := MarkFalsePositive(a, "op", "sensor slipped", created.Add(time.Minute)); err != nil {
		t.Fatalf("MarkFalsePositive() error = %v", err)
	}
	if a.Status != models.AlertStatusFalsePositive {
		t.Errorf("status = %s, want false_positive", a.Status)
	}
	if !strings.HasPrefix(a.Response.Notes, "False positive: ") {
		t.Errorf("notes = %q, want false positive prefix", a.Response.Notes)
	}
	if a.Response.ResolvedBy != "op" {
		t.Errorf("resolvedBy = %q", a.Response.ResolvedBy)
	}
}

func TestEscalationSeeding(t *testing.T) {
	tests := []struct {
		severity models.Severity
		minutes  []int
	}{
		{models.SeverityEmergency, []int{0, 2, 5}},
		{models.SeverityCritical, []int{0, 5, 15}},
		{models.SeverityWarning, []int{0, 15, 60}},
		{models.SeverityInfo, []int{0, 60}},
	}
	for _, tt := range tests {
		e := EscalationFor(tt.severity)
		if e.Level != 1 {
			t.Errorf("%s: level = %d, want 1", tt.severity, e.Level)
		}
		if e.MaxLevel != len(tt.minutes) {
			t.Errorf("%s: maxLevel = %d, want %d", tt.severity, e.MaxLevel, len(tt.minutes))
		}
		for i, m := range tt.minutes {
			rule, ok := e.RuleFor(i + 1)
			if !ok || rule.AfterMinutes != m {
				t.Errorf("%s: rule %d = %+v, want afterMinutes %d", tt.severity, i+1, rule, m)
			}
		}
	}
}

func TestNeedsEscalationAndEscalate(t *testing.T) {
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	a := newActiveAlert(models.SeverityCritical, created)

	if NeedsEscalation(a, created.Add(4*time.Minute)) {
		t.Error("critical alert due for level 2 before 5 minutes")
	}
	if !NeedsEscalation(a, created.Add(5*time.Minute)) {
		t.Error("critical alert not due for level 2 at 5 minutes")
	}

	for i := 0; i < 5; i++ {
		if _, err := Escalate(a, created.Add(time.Hour)); err != nil {
			t.Fatalf("Escalate() error = %v", err)
		}
	}
	if a.Escalation.Level != a.Escalation.MaxLevel {
		t.Errorf("level = %d, want max %d", a.Escalation.Level, a.Escalation.MaxLevel)
	}
	advanced, err := Escalate(a, created.Add(2*time.Hour))
	if err != nil || advanced {
		t.Errorf("Escalate() at max = %v, %v; want false, nil", advanced, err)
	}
	if NeedsEscalation(a, created.Add(24*time.Hour)) {
		t.Error("alert at max level reported as needing escalation")
	}

	if err := Acknowledge(a, "op", "", created.Add(3*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if NeedsEscalation(a, created.Add(24*time.Hour)) {
		t.Error("acknowledged alert reported as needing escalation")
	}
}
