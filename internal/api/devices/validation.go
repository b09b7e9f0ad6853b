package devices

import (
	"errors"
	"fmt"
	"strings"

	"github.com/good-yellow-bee/vitalguard/internal/models"
)

// ValidateDeviceID checks the hardware identifier a device reports with.
func ValidateDeviceID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("deviceId is required")
	}
	if len(id) > 64 {
		return errors.New("deviceId must be 64 characters or less")
	}
	if strings.ContainsAny(id, " /:") {
		return errors.New("deviceId must not contain spaces, slashes or colons")
	}
	return nil
}

// ValidateName checks a device display name.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name is required")
	}
	if len(name) > 100 {
		return errors.New("name must be 100 characters or less")
	}
	return nil
}

// ValidateThresholds checks per-device overrides. Only the fields that are
// set are checked; pairs are compared when both ends are set.
func ValidateThresholds(t *models.ThresholdSet) error {
	if t == nil {
		return nil
	}
	bounds := []struct {
		name     string
		v        *float64
		min, max float64
	}{
		{"minHeartRate", t.MinHeartRate, 0, 300},
		{"maxHeartRate", t.MaxHeartRate, 0, 300},
		{"minSpO2", t.MinSpO2, 0, 100},
		{"minTemperature", t.MinTemperature, 30, 45},
		{"maxTemperature", t.MaxTemperature, 30, 45},
		{"minBattery", t.MinBattery, 0, 100},
	}
	for _, b := range bounds {
		if b.v != nil && (*b.v < b.min || *b.v > b.max) {
			return fmt.Errorf("%s must be between %g and %g", b.name, b.min, b.max)
		}
	}
	if t.MinHeartRate != nil && t.MaxHeartRate != nil && *t.MinHeartRate >= *t.MaxHeartRate {
		return errors.New("minHeartRate must be below maxHeartRate")
	}
	if t.MinTemperature != nil && t.MaxTemperature != nil && *t.MinTemperature >= *t.MaxTemperature {
		return errors.New("minTemperature must be below maxTemperature")
	}
	return nil
}
