package models

import (
	"time"
)

// AlertType identifies the emergency condition an alert reports.
type AlertType string

const (
	AlertTypeHeartRateAbnormal   AlertType = "heart_rate_abnormal"
	AlertTypeSpO2Low             AlertType = "spo2_low"
	AlertTypeTemperatureAbnormal AlertType = "temperature_abnormal"
	AlertTypeFallDetected        AlertType = "fall_detected"
	AlertTypeBatteryLow          AlertType = "battery_low"
	AlertTypeDeviceOffline       AlertType = "device_offline"
	AlertTypeSensorMalfunction   AlertType = "sensor_malfunction"
	AlertTypeEmergencyButton     AlertType = "emergency_button"
	AlertTypeOutsideSafeZone     AlertType = "location_outside_safe_zone"
	AlertTypeMedicationReminder  AlertType = "medication_reminder"
	AlertTypeInactivityDetected  AlertType = "inactivity_detected"
	AlertTypePanicAlert          AlertType = "panic_alert"
)

// AlertTypes lists every known alert type.
var AlertTypes = []AlertType{
	AlertTypeHeartRateAbnormal,
	AlertTypeSpO2Low,
	AlertTypeTemperatureAbnormal,
	AlertTypeFallDetected,
	AlertTypeBatteryLow,
	AlertTypeDeviceOffline,
	AlertTypeSensorMalfunction,
	AlertTypeEmergencyButton,
	AlertTypeOutsideSafeZone,
	AlertTypeMedicationReminder,
	AlertTypeInactivityDetected,
	AlertTypePanicAlert,
}

// Valid reports whether t is a known alert type.
func (t AlertType) Valid() bool {
	for _, known := range AlertTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Severity represents alert severity level.
type Severity string

const (
	SeverityInfo      Severity = "info"
	SeverityWarning   Severity = "warning"
	SeverityCritical  Severity = "critical"
	SeverityEmergency Severity = "emergency"
)

// ParseSeverity converts a string to Severity. The second return value is
// false for unknown input.
func ParseSeverity(s string) (Severity, bool) {
	switch s {
	case "info":
		return SeverityInfo, true
	case "warning":
		return SeverityWarning, true
	case "critical":
		return SeverityCritical, true
	case "emergency":
		return SeverityEmergency, true
	default:
		return "", false
	}
}

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	AlertStatusActive        AlertStatus = "active"
	AlertStatusAcknowledged  AlertStatus = "acknowledged"
	AlertStatusResolved      AlertStatus = "resolved"
	AlertStatusFalsePositive AlertStatus = "false_positive"
)

// ParseAlertStatus converts a string to AlertStatus.
func ParseAlertStatus(s string) (AlertStatus, bool) {
	switch s {
	case "active":
		return AlertStatusActive, true
	case "acknowledged":
		return AlertStatusAcknowledged, true
	case "resolved":
		return AlertStatusResolved, true
	case "false_positive":
		return AlertStatusFalsePositive, true
	default:
		return "", false
	}
}

// Closed reports whether the status accepts no further operator transitions.
func (s AlertStatus) Closed() bool {
	return s == AlertStatusResolved || s == AlertStatusFalsePositive
}

// Alert is a persisted, classified emergency condition derived from a reading.
type Alert struct {
	ID         string    `json:"id"`
	DeviceID   string    `json:"deviceId"`
	DeviceName string    `json:"deviceName"`
	UserID     string    `json:"userId,omitempty"`
	Type       AlertType `json:"type"`
	Severity   Severity  `json:"severity"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`

	TriggerValue float64 `json:"triggerValue"`
	Threshold    float64 `json:"threshold"`
	Unit         string  `json:"unit,omitempty"`

	ReadingID string    `json:"readingId,omitempty"`
	Location  *Location `json:"location,omitempty"`

	Status        AlertStatus        `json:"status"`
	Response      AlertResponse      `json:"response"`
	Notifications NotificationStatus `json:"notifications"`
	Context       ContextSnapshot    `json:"context"`
	Escalation    EscalationState    `json:"escalation"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AlertResponse records operator handling of an alert.
type AlertResponse struct {
	AcknowledgedBy      string     `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt      *time.Time `json:"acknowledgedAt,omitempty"`
	ResolvedBy          string     `json:"resolvedBy,omitempty"`
	ResolvedAt          *time.Time `json:"resolvedAt,omitempty"`
	Notes               string     `json:"notes,omitempty"`
	ResponseTimeSeconds *int64     `json:"responseTimeSeconds,omitempty"`
}

// Notification channels.
const (
	ChannelEmail   = "email"
	ChannelSMS     = "sms"
	ChannelPush    = "push"
	ChannelWebhook = "webhook"
)

// NotificationStatus tracks delivery per channel.
type NotificationStatus struct {
	Email   ChannelDelivery `json:"email"`
	SMS     ChannelDelivery `json:"sms"`
	Push    ChannelDelivery `json:"push"`
	Webhook ChannelDelivery `json:"webhook"`
}

// Channel returns a pointer to the tracking record for the named channel,
// or nil for an unknown channel.
func (n *NotificationStatus) Channel(name string) *ChannelDelivery {
	switch name {
	case ChannelEmail:
		return &n.Email
	case ChannelSMS:
		return &n.SMS
	case ChannelPush:
		return &n.Push
	case ChannelWebhook:
		return &n.Webhook
	default:
		return nil
	}
}

// ChannelDelivery is the delivery record of one notification channel.
type ChannelDelivery struct {
	Sent          bool       `json:"sent"`
	Attempts      int        `json:"attempts"`
	LastAttemptAt *time.Time `json:"lastAttemptAt,omitempty"`
	Recipients    []string   `json:"recipients,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
}

// ContextSnapshot is a copy of patient and device identity at alert time.
type ContextSnapshot struct {
	PatientName      string           `json:"patientName,omitempty"`
	PatientAge       int              `json:"patientAge,omitempty"`
	EmergencyContact EmergencyContact `json:"emergencyContact"`
	MedicalHistory   []string         `json:"medicalHistory,omitempty"`
	Medications      []string         `json:"medications,omitempty"`
	DeviceName       string           `json:"deviceName,omitempty"`
}

// EscalationRule says when a level becomes due, in minutes after creation.
type EscalationRule struct {
	Level        int `json:"level"`
	AfterMinutes int `json:"afterMinutes"`
}

// EscalationState is the staged-notification position of an alert.
type EscalationState struct {
	Level           int              `json:"level"`
	MaxLevel        int              `json:"maxLevel"`
	LastEscalatedAt *time.Time       `json:"lastEscalatedAt,omitempty"`
	Rules           []EscalationRule `json:"rules"`
}

// RuleFor returns the escalation rule for the given level.
func (e EscalationState) RuleFor(level int) (EscalationRule, bool) {
	for _, r := range e.Rules {
		if r.Level == level {
			return r, true
		}
	}
	return EscalationRule{}, false
}
