package models

import "time"

// Device is a registered wearable and its owner record.
type Device struct {
	ID         string        `json:"id"`
	DeviceID   string        `json:"deviceId"`
	Name       string        `json:"name"`
	UserID     string        `json:"userId,omitempty"`
	Patient    Patient       `json:"patient"`
	Thresholds *ThresholdSet `json:"thresholds,omitempty"`
	Status     DeviceStatus  `json:"status"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// Patient is the person wearing the device.
type Patient struct {
	Name             string           `json:"name"`
	Age              int              `json:"age,omitempty"`
	EmergencyContact EmergencyContact `json:"emergencyContact"`
	MedicalHistory   []string         `json:"medicalHistory,omitempty"`
	Medications      []string         `json:"medications,omitempty"`
}

// EmergencyContact is who to call when the wearer needs help.
type EmergencyContact struct {
	Name         string `json:"name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	Relationship string `json:"relationship,omitempty"`
}

// DeviceStatus is the last telemetry reported by a device.
type DeviceStatus struct {
	Online          bool       `json:"online"`
	LastSeen        *time.Time `json:"lastSeen,omitempty"`
	BatteryLevel    *float64   `json:"batteryLevel,omitempty"`
	BatteryLow      bool       `json:"batteryLow"`
	SignalStrength  *int       `json:"signalStrength,omitempty"`
	FirmwareVersion string     `json:"firmwareVersion,omitempty"`
}

// ThresholdSet holds per-device threshold overrides. Nil fields fall back
// to system defaults.
type ThresholdSet struct {
	MinHeartRate   *float64 `json:"minHeartRate,omitempty" yaml:"min_heart_rate,omitempty"`
	MaxHeartRate   *float64 `json:"maxHeartRate,omitempty" yaml:"max_heart_rate,omitempty"`
	MinSpO2        *float64 `json:"minSpO2,omitempty" yaml:"min_spo2,omitempty"`
	MinTemperature *float64 `json:"minTemperature,omitempty" yaml:"min_temperature,omitempty"`
	MaxTemperature *float64 `json:"maxTemperature,omitempty" yaml:"max_temperature,omitempty"`
	MinBattery     *float64 `json:"minBattery,omitempty" yaml:"min_battery,omitempty"`
}

// Thresholds is a fully resolved threshold configuration.
type Thresholds struct {
	MinHeartRate   float64 `json:"minHeartRate" yaml:"min_heart_rate"`
	MaxHeartRate   float64 `json:"maxHeartRate" yaml:"max_heart_rate"`
	MinSpO2        float64 `json:"minSpO2" yaml:"min_spo2"`
	MinTemperature float64 `json:"minTemperature" yaml:"min_temperature"`
	MaxTemperature float64 `json:"maxTemperature" yaml:"max_temperature"`
	MinBattery     float64 `json:"minBattery" yaml:"min_battery"`
}

// DefaultThresholds returns the system defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinHeartRate:   50,
		MaxHeartRate:   120,
		MinSpO2:        95,
		MinTemperature: 35.5,
		MaxTemperature: 38.5,
		MinBattery:     15,
	}
}

// EffectiveThresholds overlays device overrides on the given defaults.
func EffectiveThresholds(overrides *ThresholdSet, defaults Thresholds) Thresholds {
	t := defaults
	if overrides == nil {
		return t
	}
	if overrides.MinHeartRate != nil {
		t.MinHeartRate = *overrides.MinHeartRate
	}
	if overrides.MaxHeartRate != nil {
		t.MaxHeartRate = *overrides.MaxHeartRate
	}
	if overrides.MinSpO2 != nil {
		t.MinSpO2 = *overrides.MinSpO2
	}
	if overrides.MinTemperature != nil {
		t.MinTemperature = *overrides.MinTemperature
	}
	if overrides.MaxTemperature != nil {
		t.MaxTemperature = *overrides.MaxTemperature
	}
	if overrides.MinBattery != nil {
		t.MinBattery = *overrides.MinBattery
	}
	return t
}

// ApplyTelemetry updates the device status from a reading. The battery-low
// flag uses the configured minBattery tier.
func (d *Device) ApplyTelemetry(r *Reading, thresholds Thresholds) {
	seen := r.Timestamp
	d.Status.Online = true
	d.Status.LastSeen = &seen
	if r.Device == nil {
		return
	}
	if r.Device.BatteryLevel != nil {
		level := *r.Device.BatteryLevel
		d.Status.BatteryLevel = &level
		d.Status.BatteryLow = level < thresholds.MinBattery
	}
	if r.Device.SignalStrength != nil {
		signal := *r.Device.SignalStrength
		d.Status.SignalStrength = &signal
	}
	if r.Device.FirmwareVersion != "" {
		d.Status.FirmwareVersion = r.Device.FirmwareVersion
	}
}
