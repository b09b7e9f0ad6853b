// Package models defines domain models for VitalGuard.
package models

import "time"

// Reading is one timestamped sensor sample from one device.
// Readings are immutable once stored.
type Reading struct {
	ID              string           `json:"id"`
	DeviceID        string           `json:"deviceId"`
	Timestamp       time.Time        `json:"timestamp"`
	HeartRate       *VitalSample     `json:"heartRate,omitempty"`
	SpO2            *VitalSample     `json:"spO2,omitempty"`
	BodyTemperature *Temperature     `json:"bodyTemperature,omitempty"`
	Motion          *Motion          `json:"motion,omitempty"`
	Location        *Location        `json:"location,omitempty"`
	Device          *DeviceTelemetry `json:"device,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// VitalSample is a measured value with an optional sensor quality tag.
type VitalSample struct {
	Value   float64 `json:"value"`
	Quality string  `json:"quality,omitempty"`
}

// Temperature is a body temperature sample in degrees Celsius.
type Temperature struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// Motion holds accelerometer output and the device-side fall flag.
type Motion struct {
	AccelX        float64 `json:"accelX"`
	AccelY        float64 `json:"accelY"`
	AccelZ        float64 `json:"accelZ"`
	FallDetected  bool    `json:"fallDetected"`
	ActivityLevel string  `json:"activityLevel,omitempty"`
}

// Location is a GPS fix.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"`
	Altitude  float64 `json:"altitude,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
}

// DeviceTelemetry is the device health block sent with a reading.
type DeviceTelemetry struct {
	BatteryLevel    *float64 `json:"batteryLevel,omitempty"`
	SignalStrength  *int     `json:"signalStrength,omitempty"`
	FirmwareVersion string   `json:"firmwareVersion,omitempty"`
}

// Battery returns the reported battery level, if any.
func (r *Reading) Battery() (float64, bool) {
	if r.Device == nil || r.Device.BatteryLevel == nil {
		return 0, false
	}
	return *r.Device.BatteryLevel, true
}

// FallDetected reports whether the device flagged a fall.
func (r *Reading) FallDetected() bool {
	return r.Motion != nil && r.Motion.FallDetected
}
