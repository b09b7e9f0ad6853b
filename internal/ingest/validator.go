// Package ingest validates incoming readings and runs the ingestion pipeline
// from persistence through alert recording, notification and broadcast.
package ingest

import (
	"fmt"
	"strings"

	"github.com/good-yellow-bee/vitalguard/internal/models"
)

// FieldError describes one invalid field.
type FieldError struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value,omitempty"`
	Message string      `json:"message"`
}

// ValidationError is returned when a payload breaks one or more bounds.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "invalid reading: " + strings.Join(msgs, "; ")
}

// rangeRule is an inclusive numeric bound.
type rangeRule struct {
	field string
	min   float64
	max   float64
}

func (r rangeRule) check(v float64) (FieldError, bool) {
	if v >= r.min && v <= r.max {
		return FieldError{}, true
	}
	return FieldError{
		Field:   r.field,
		Value:   v,
		Message: fmt.Sprintf("value %g out of range [%g, %g]", v, r.min, r.max),
	}, false
}

var (
	heartRateRange   = rangeRule{field: "heartRate.value", min: 0, max: 300}
	spo2Range        = rangeRule{field: "spO2.value", min: 0, max: 100}
	temperatureRange = rangeRule{field: "bodyTemperature.value", min: 30, max: 45}
	latitudeRange    = rangeRule{field: "location.latitude", min: -90, max: 90}
	longitudeRange   = rangeRule{field: "location.longitude", min: -180, max: 180}
	batteryRange     = rangeRule{field: "device.batteryLevel", min: 0, max: 100}
)

// Validate checks a decoded reading. Every violation is reported. Missing
// optional groups are valid.
func Validate(r *models.Reading) error {
	var errs []FieldError
	check := func(rule rangeRule, v float64) {
		if fe, ok := rule.check(v); !ok {
			errs = append(errs, fe)
		}
	}

	if strings.TrimSpace(r.DeviceID) == "" {
		errs = append(errs, FieldError{Field: "deviceId", Message: "is required"})
	}
	if r.HeartRate != nil {
		check(heartRateRange, r.HeartRate.Value)
	}
	if r.SpO2 != nil {
		check(spo2Range, r.SpO2.Value)
	}
	if r.BodyTemperature != nil {
		check(temperatureRange, r.BodyTemperature.Value)
	}
	if r.Location != nil {
		check(latitudeRange, r.Location.Latitude)
		check(longitudeRange, r.Location.Longitude)
	}
	if level, ok := r.Battery(); ok {
		check(batteryRange, level)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
