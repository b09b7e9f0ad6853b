package alerting

import (
	"time"

	"github.com/good-yellow-bee/vitalguard/internal/models"
)

const falsePositivePrefix = "False positive: "

// Acknowledge moves an active alert to acknowledged and records the
// operator response time in whole seconds.
func Acknowledge(a *models.Alert, actor, notes string, now time.Time) error {
	if a.Status != models.AlertStatusActive {
		return &StateConflictError{AlertID: a.ID, Operation: "acknowledge", Status: a.Status}
	}

	at := now
	elapsed := int64(now.Sub(a.CreatedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}

	a.Status = models.AlertStatusAcknowledged
	a.Response.AcknowledgedBy = actor
	a.Response.AcknowledgedAt = &at
	a.Response.ResponseTimeSeconds = &elapsed
	appendNotes(a, notes)
	a.UpdatedAt = now
	return nil
}

// Resolve closes an active or acknowledged alert.
func Resolve(a *models.Alert, actor, notes string, now time.Time) error {
	if err := closeAlert(a, models.AlertStatusResolved, "resolve", actor, now); err != nil {
		return err
	}
	appendNotes(a, notes)
	return nil
}

// MarkFalsePositive closes an active or acknowledged alert as a false alarm.
func MarkFalsePositive(a *models.Alert, actor, notes string, now time.Time) error {
	if err := closeAlert(a, models.AlertStatusFalsePositive, "mark false positive", actor, now); err != nil {
		return err
	}
	appendNotes(a, falsePositivePrefix+notes)
	return nil
}

func closeAlert(a *models.Alert, to models.AlertStatus, op, actor string, now time.Time) error {
	if a.Status.Closed() {
		return &StateConflictError{AlertID: a.ID, Operation: op, Status: a.Status}
	}
	at := now
	a.Status = to
	a.Response.ResolvedBy = actor
	a.Response.ResolvedAt = &at
	a.UpdatedAt = now
	return nil
}

func appendNotes(a *models.Alert, notes string) {
	if notes == "" {
		return
	}
	if a.Response.Notes == "" {
		a.Response.Notes = notes
		return
	}
	a.Response.Notes += "\n" + notes
}
