package models

import (
	"testing"
	"time"
)

func ptr[T any](v T) *T { return &v }

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		input string
		want  Severity
		ok    bool
	}{
		{"info", SeverityInfo, true},
		{"warning", SeverityWarning, true},
		{"critical", SeverityCritical, true},
		{"emergency", SeverityEmergency, true},
		{"CRITICAL", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseSeverity(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseSeverity(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseAlertStatus(t *testing.T) {
	for _, s := range []AlertStatus{AlertStatusActive, AlertStatusAcknowledged, AlertStatusResolved, AlertStatusFalsePositive} {
		got, ok := ParseAlertStatus(string(s))
		if !ok || got != s {
			t.Errorf("ParseAlertStatus(%q) = %q, %v", s, got, ok)
		}
	}
	if _, ok := ParseAlertStatus("closed"); ok {
		t.Error("ParseAlertStatus should reject unknown status")
	}
}

func TestAlertStatus_Closed(t *testing.T) {
	if AlertStatusActive.Closed() || AlertStatusAcknowledged.Closed() {
		t.Error("active and acknowledged alerts are open")
	}
	if !AlertStatusResolved.Closed() || !AlertStatusFalsePositive.Closed() {
		t.Error("resolved and false_positive alerts are closed")
	}
}

func TestAlertType_Valid(t *testing.T) {
	for _, at := range AlertTypes {
		if !at.Valid() {
			t.Errorf("%q should be valid", at)
		}
	}
	if AlertType("heart_attack").Valid() {
		t.Error("unknown alert type reported valid")
	}
}

func TestNotificationStatus_Channel(t *testing.T) {
	var ns NotificationStatus

	ns.Channel(ChannelSMS).Attempts = 2
	if ns.SMS.Attempts != 2 {
		t.Errorf("SMS.Attempts = %d, want 2", ns.SMS.Attempts)
	}
	if ns.Channel("pager") != nil {
		t.Error("unknown channel should return nil")
	}
}

func TestEscalationState_RuleFor(t *testing.T) {
	state := EscalationState{
		Level:    1,
		MaxLevel: 3,
		Rules:    []EscalationRule{{Level: 2, AfterMinutes: 5}, {Level: 3, AfterMinutes: 15}},
	}

	rule, ok := state.RuleFor(3)
	if !ok || rule.AfterMinutes != 15 {
		t.Errorf("RuleFor(3) = %+v, %v", rule, ok)
	}
	if _, ok := state.RuleFor(4); ok {
		t.Error("RuleFor(4) should not exist")
	}
}

func TestEffectiveThresholds(t *testing.T) {
	defaults := DefaultThresholds()

	if got := EffectiveThresholds(nil, defaults); got != defaults {
		t.Errorf("nil overrides changed thresholds: %+v", got)
	}

	got := EffectiveThresholds(&ThresholdSet{MaxHeartRate: ptr(110.0), MinBattery: ptr(25.0)}, defaults)
	if got.MaxHeartRate != 110 || got.MinBattery != 25 {
		t.Errorf("overrides not applied: %+v", got)
	}
	if got.MinHeartRate != defaults.MinHeartRate || got.MinSpO2 != defaults.MinSpO2 {
		t.Errorf("unset fields should keep defaults: %+v", got)
	}
}

func TestDevice_ApplyTelemetry(t *testing.T) {
	ts := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	d := &Device{}

	d.ApplyTelemetry(&Reading{
		Timestamp: ts,
		Device: &DeviceTelemetry{
			BatteryLevel:    ptr(12.0),
			SignalStrength:  ptr(-70),
			FirmwareVersion: "2.4.1",
		},
	}, DefaultThresholds())

	if !d.Status.Online || d.Status.LastSeen == nil || !d.Status.LastSeen.Equal(ts) {
		t.Errorf("status not updated: %+v", d.Status)
	}
	if !d.Status.BatteryLow || *d.Status.BatteryLevel != 12 {
		t.Errorf("battery = %v low=%v", *d.Status.BatteryLevel, d.Status.BatteryLow)
	}
	if *d.Status.SignalStrength != -70 || d.Status.FirmwareVersion != "2.4.1" {
		t.Errorf("telemetry not copied: %+v", d.Status)
	}

	// A reading without a telemetry block keeps the last known values.
	later := ts.Add(time.Minute)
	d.ApplyTelemetry(&Reading{Timestamp: later}, DefaultThresholds())
	if !d.Status.LastSeen.Equal(later) || d.Status.FirmwareVersion != "2.4.1" {
		t.Errorf("status after bare reading: %+v", d.Status)
	}
}

func TestReading_Helpers(t *testing.T) {
	r := &Reading{}
	if _, ok := r.Battery(); ok {
		t.Error("Battery should report absent")
	}
	if r.FallDetected() {
		t.Error("FallDetected without motion block")
	}

	r.Device = &DeviceTelemetry{BatteryLevel: ptr(40.0)}
	r.Motion = &Motion{FallDetected: true}
	if level, ok := r.Battery(); !ok || level != 40 {
		t.Errorf("Battery() = %v, %v", level, ok)
	}
	if !r.FallDetected() {
		t.Error("FallDetected should be true")
	}
}
