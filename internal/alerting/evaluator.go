// Package alerting turns readings into classified alerts and manages their
// lifecycle. Threshold evaluation is pure; recording and lifecycle
// transitions go through the AlertStore port.
package alerting

import (
	"fmt"

	"github.com/good-yellow-bee/vitalguard/internal/models"
)

// Severity tiers that sit outside the configurable thresholds.
const (
	criticalHeartRateLow    = 40.0
	criticalHeartRateHigh   = 140.0
	criticalSpO2            = 90.0
	criticalTemperatureLow  = 35.0
	criticalTemperatureHigh = 40.0

	// The evaluator's battery tier is stricter than the configured
	// minBattery, which only drives the device battery-low flag.
	batteryWarning  = 10.0
	batteryCritical = 5.0
)

// Classification is the in-memory result of threshold evaluation.
type Classification struct {
	Type      models.AlertType
	Severity  models.Severity
	Value     float64
	Threshold float64
	Unit      string
	Title     string
	Message   string
}

// Evaluate maps a reading to zero or more classifications, one per rule that
// fires. Rules are independent; there is no cross-suppression and no
// deduplication against earlier readings.
func Evaluate(r *models.Reading, t models.Thresholds, deviceName string) []Classification {
	if deviceName == "" {
		deviceName = r.DeviceID
	}

	var out []Classification
	if c, ok := evaluateHeartRate(r, t, deviceName); ok {
		out = append(out, c)
	}
	if c, ok := evaluateSpO2(r, t, deviceName); ok {
		out = append(out, c)
	}
	if c, ok := evaluateTemperature(r, t, deviceName); ok {
		out = append(out, c)
	}
	if c, ok := evaluateFall(r, deviceName); ok {
		out = append(out, c)
	}
	if c, ok := evaluateBattery(r, deviceName); ok {
		out = append(out, c)
	}
	return out
}

func evaluateHeartRate(r *models.Reading, t models.Thresholds, device string) (Classification, bool) {
	if r.HeartRate == nil {
		return Classification{}, false
	}
	v := r.HeartRate.Value

	var bound float64
	var direction string
	switch {
	case v < t.MinHeartRate:
		bound, direction = t.MinHeartRate, "below the minimum"
	case v > t.MaxHeartRate:
		bound, direction = t.MaxHeartRate, "above the maximum"
	default:
		return Classification{}, false
	}

	severity := models.SeverityWarning
	if v < criticalHeartRateLow || v > criticalHeartRateHigh {
		severity = models.SeverityCritical
	}

	return Classification{
		Type:      models.AlertTypeHeartRateAbnormal,
		Severity:  severity,
		Value:     v,
		Threshold: bound,
		Unit:      "bpm",
		Title:     "Abnormal Heart Rate",
		Message:   fmt.Sprintf("Heart rate of %g bpm on %s is %s of %g bpm", v, device, direction, bound),
	}, true
}

func evaluateSpO2(r *models.Reading, t models.Thresholds, device string) (Classification, bool) {
	if r.SpO2 == nil || r.SpO2.Value >= t.MinSpO2 {
		return Classification{}, false
	}
	v := r.SpO2.Value

	severity := models.SeverityWarning
	if v < criticalSpO2 {
		severity = models.SeverityCritical
	}

	return Classification{
		Type:      models.AlertTypeSpO2Low,
		Severity:  severity,
		Value:     v,
		Threshold: t.MinSpO2,
		Unit:      "%",
		Title:     "Low Blood Oxygen",
		Message:   fmt.Sprintf("SpO2 of %g%% on %s is below the minimum of %g%%", v, device, t.MinSpO2),
	}, true
}

func evaluateTemperature(r *models.Reading, t models.Thresholds, device string) (Classification, bool) {
	if r.BodyTemperature == nil {
		return Classification{}, false
	}
	v := r.BodyTemperature.Value

	var bound float64
	var direction string
	switch {
	case v < t.MinTemperature:
		bound, direction = t.MinTemperature, "below the minimum"
	case v > t.MaxTemperature:
		bound, direction = t.MaxTemperature, "above the maximum"
	default:
		return Classification{}, false
	}

	severity := models.SeverityWarning
	if v < criticalTemperatureLow || v > criticalTemperatureHigh {
		severity = models.SeverityCritical
	}

	return Classification{
		Type:      models.AlertTypeTemperatureAbnormal,
		Severity:  severity,
		Value:     v,
		Threshold: bound,
		Unit:      "°C",
		Title:     "Abnormal Body Temperature",
		Message:   fmt.Sprintf("Body temperature of %g°C on %s is %s of %g°C", v, device, direction, bound),
	}, true
}

func evaluateFall(r *models.Reading, device string) (Classification, bool) {
	if !r.FallDetected() {
		return Classification{}, false
	}
	return Classification{
		Type:     models.AlertTypeFallDetected,
		Severity: models.SeverityCritical,
		Value:    1,
		Title:    "Fall Detected",
		Message:  fmt.Sprintf("A fall was detected by %s", device),
	}, true
}

func evaluateBattery(r *models.Reading, device string) (Classification, bool) {
	level, ok := r.Battery()
	if !ok || level >= batteryWarning {
		return Classification{}, false
	}

	severity := models.SeverityWarning
	if level < batteryCritical {
		severity = models.SeverityCritical
	}

	return Classification{
		Type:      models.AlertTypeBatteryLow,
		Severity:  severity,
		Value:     level,
		Threshold: batteryWarning,
		Unit:      "%",
		Title:     "Low Battery",
		Message:   fmt.Sprintf("Battery on %s is at %g%%", device, level),
	}, true
}
