package alerting

import (
	"context"
	"time"

	"github.com/good-yellow-bee/vitalguard/internal/metrics"
	"github.com/good-yellow-bee/vitalguard/internal/models"
)

// UpdateBroadcaster receives alerts after a lifecycle change is saved.
type UpdateBroadcaster interface {
	AlertUpdated(alert *models.Alert)
}

// Manager applies operator and escalation transitions to stored alerts.
// Every write is conditional on the status the alert was loaded with, so a
// transition that races another one fails with a StateConflictError instead
// of overwriting it.
type Manager struct {
	store       AlertStore
	broadcaster UpdateBroadcaster
	now         func() time.Time
}

// NewManager creates a manager. broadcaster may be nil.
func NewManager(store AlertStore, broadcaster UpdateBroadcaster) *Manager {
	return &Manager{store: store, broadcaster: broadcaster, now: time.Now}
}

// Acknowledge acknowledges the alert with the given id.
func (m *Manager) Acknowledge(ctx context.Context, id, actor, notes string) (*models.Alert, error) {
	return m.apply(ctx, id, "acknowledge", func(a *models.Alert, now time.Time) error {
		return Acknowledge(a, actor, notes, now)
	})
}

// Resolve resolves the alert with the given id.
func (m *Manager) Resolve(ctx context.Context, id, actor, notes string) (*models.Alert, error) {
	return m.apply(ctx, id, "resolve", func(a *models.Alert, now time.Time) error {
		return Resolve(a, actor, notes, now)
	})
}

// MarkFalsePositive closes the alert with the given id as a false alarm.
func (m *Manager) MarkFalsePositive(ctx context.Context, id, actor, notes string) (*models.Alert, error) {
	return m.apply(ctx, id, "mark false positive", func(a *models.Alert, now time.Time) error {
		return MarkFalsePositive(a, actor, notes, now)
	})
}

// EscalateIfDue loads the alert and advances it when NeedsEscalation holds,
// saves it and broadcasts the update. It returns the alert as stored and
// reports whether the level changed. An alert acknowledged or closed after
// the caller listed it is left untouched.
func (m *Manager) EscalateIfDue(ctx context.Context, id string) (*models.Alert, bool, error) {
	a, err := m.load(ctx, id)
	if err != nil {
		return nil, false, err
	}
	now := m.now().UTC()
	if !NeedsEscalation(a, now) {
		return a, false, nil
	}
	from := a.Status
	advanced, err := Escalate(a, now)
	if err != nil || !advanced {
		return a, false, err
	}
	if err := m.save(ctx, a, from, "escalate"); err != nil {
		return nil, false, err
	}
	metrics.AlertsEscalated.Inc()
	m.broadcast(a)
	return a, true, nil
}

func (m *Manager) apply(ctx context.Context, id, op string, transition func(*models.Alert, time.Time) error) (*models.Alert, error) {
	a, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}

	from := a.Status
	if err := transition(a, m.now().UTC()); err != nil {
		return nil, err
	}
	if err := m.save(ctx, a, from, op); err != nil {
		return nil, err
	}
	metrics.AlertTransitions.WithLabelValues(string(a.Status)).Inc()
	m.broadcast(a)
	return a, nil
}

func (m *Manager) load(ctx context.Context, id string) (*models.Alert, error) {
	a, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, persistErr("get alert", err)
	}
	if a == nil {
		return nil, &NotFoundError{Kind: "alert", ID: id}
	}
	return a, nil
}

// save writes a only if its stored status is still from. When another
// writer got there first the current status is reported in the conflict.
func (m *Manager) save(ctx context.Context, a *models.Alert, from models.AlertStatus, op string) error {
	ok, err := m.store.Update(ctx, a, from)
	if err != nil {
		return persistErr("update alert", err)
	}
	if ok {
		return nil
	}
	current, err := m.load(ctx, a.ID)
	if err != nil {
		return err
	}
	return &StateConflictError{AlertID: a.ID, Operation: op, Status: current.Status}
}

func (m *Manager) broadcast(a *models.Alert) {
	if m.broadcaster != nil {
		m.broadcaster.AlertUpdated(a)
	}
}
