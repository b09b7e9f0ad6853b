package alerting

import (
	"time"

	"github.com/good-yellow-bee/vitalguard/internal/models"
)

// EscalationFor returns the initial escalation state for a new alert of the
// given severity. Level 1 is the creation-time notification.
func EscalationFor(severity models.Severity) models.EscalationState {
	var minutes []int
	switch severity {
	case models.SeverityEmergency:
		minutes = []int{0, 2, 5}
	case models.SeverityCritical:
		minutes = []int{0, 5, 15}
	case models.SeverityWarning:
		minutes = []int{0, 15, 60}
	default:
		minutes = []int{0, 60}
	}

	rules := make([]models.EscalationRule, len(minutes))
	for i, m := range minutes {
		rules[i] = models.EscalationRule{Level: i + 1, AfterMinutes: m}
	}
	return models.EscalationState{
		Level:    1,
		MaxLevel: len(rules),
		Rules:    rules,
	}
}

// NeedsEscalation reports whether an active alert is due for its next level.
func NeedsEscalation(a *models.Alert, now time.Time) bool {
	if a.Status != models.AlertStatusActive {
		return false
	}
	next, ok := a.Escalation.RuleFor(a.Escalation.Level + 1)
	if !ok {
		return false
	}
	return now.Sub(a.CreatedAt) >= time.Duration(next.AfterMinutes)*time.Minute
}

// Escalate advances the alert one level if it is below its maximum. It
// reports whether the level changed.
func Escalate(a *models.Alert, now time.Time) (bool, error) {
	if a.Status != models.AlertStatusActive {
		return false, &StateConflictError{AlertID: a.ID, Operation: "escalate", Status: a.Status}
	}
	if a.Escalation.Level >= a.Escalation.MaxLevel {
		return false, nil
	}
	a.Escalation.Level++
	at := now
	a.Escalation.LastEscalatedAt = &at
	a.UpdatedAt = now
	return true, nil
}
