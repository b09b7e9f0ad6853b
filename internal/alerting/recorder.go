package alerting

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/vitalguard/internal/models"
)

// AlertStore is the persistence port used by the recorder and the manager.
// GetByID returns nil, nil when the alert does not exist. Update saves only
// while the stored status still equals from and reports whether it did.
type AlertStore interface {
	Create(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	Update(ctx context.Context, alert *models.Alert, from models.AlertStatus) (bool, error)
}

// Recorder turns classifications into persisted alerts.
type Recorder struct {
	store AlertStore
	now   func() time.Time
}

// NewRecorder creates a recorder backed by store.
func NewRecorder(store AlertStore) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Record builds an active alert for c and persists it. The context snapshot
// is copied from the device owner record at this moment and never re-read.
func (r *Recorder) Record(ctx context.Context, c Classification, reading *models.Reading, device *models.Device) (*models.Alert, error) {
	now := r.now().UTC()

	alert := &models.Alert{
		ID:           uuid.New().String(),
		DeviceID:     reading.DeviceID,
		Type:         c.Type,
		Severity:     c.Severity,
		Title:        c.Title,
		Message:      c.Message,
		TriggerValue: c.Value,
		Threshold:    c.Threshold,
		Unit:         c.Unit,
		ReadingID:    reading.ID,
		Status:       models.AlertStatusActive,
		Escalation:   EscalationFor(c.Severity),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if reading.Location != nil {
		loc := *reading.Location
		alert.Location = &loc
	}
	if device != nil {
		alert.DeviceName = device.Name
		alert.UserID = device.UserID
		alert.Context = snapshot(device)
	}

	if err := r.store.Create(ctx, alert); err != nil {
		return nil, persistErr("create alert", err)
	}
	return alert, nil
}

func snapshot(d *models.Device) models.ContextSnapshot {
	return models.ContextSnapshot{
		PatientName:      d.Patient.Name,
		PatientAge:       d.Patient.Age,
		EmergencyContact: d.Patient.EmergencyContact,
		MedicalHistory:   append([]string(nil), d.Patient.MedicalHistory...),
		Medications:      append([]string(nil), d.Patient.Medications...),
		DeviceName:       d.Name,
	}
}
