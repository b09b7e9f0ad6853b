package alerting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/good-yellow-bee/vitalguard/internal/models"
)

type memAlertStore struct {
	mu        sync.Mutex
	alerts    map[string]*models.Alert
	createErr error
	updateErr error
	updates   int

	// beforeUpdate runs once, outside the lock, ahead of the next Update.
	beforeUpdate func()
}

func newMemAlertStore() *memAlertStore {
	return &memAlertStore{alerts: make(map[string]*models.Alert)}
}

func (s *memAlertStore) Create(ctx context.Context, a *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	cp := *a
	s.alerts[a.ID] = &cp
	return nil
}

func (s *memAlertStore) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *memAlertStore) Update(ctx context.Context, a *models.Alert, from models.AlertStatus) (bool, error) {
	if hook := s.beforeUpdate; hook != nil {
		s.beforeUpdate = nil
		hook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return false, s.updateErr
	}
	stored, ok := s.alerts[a.ID]
	if !ok || stored.Status != from {
		return false, nil
	}
	s.updates++
	cp := *a
	s.alerts[a.ID] = &cp
	return true, nil
}

type recordingBroadcaster struct {
	updated []*models.Alert
}

func (b *recordingBroadcaster) AlertUpdated(a *models.Alert) {
	b.updated = append(b.updated, a)
}

func testDevice() *models.Device {
	return &models.Device{
		ID:       "d-1",
		DeviceID: "dev-1",
		Name:     "Grandma's Watch",
		UserID:   "user-1",
		Patient: models.Patient{
			Name:             "Ada",
			Age:              81,
			EmergencyContact: models.EmergencyContact{Name: "Bob", Phone: "+15550100", Email: "bob@example.com"},
			MedicalHistory:   []string{"hypertension"},
			Medications:      []string{"lisinopril"},
		},
	}
}

func TestRecorderRecord(t *testing.T) {
	store := newMemAlertStore()
	rec := NewRecorder(store)
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return created }

	device := testDevice()
	reading := &models.Reading{
		ID:        "r-1",
		DeviceID:  "dev-1",
		Timestamp: created,
		HeartRate: &models.VitalSample{Value: 150},
		Location:  &models.Location{Latitude: 52.1, Longitude: 4.3},
	}
	c := Evaluate(reading, models.DefaultThresholds(), device.Name)[0]

	alert, err := rec.Record(context.Background(), c, reading, device)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if alert.Status != models.AlertStatusActive {
		t.Errorf("status = %s, want active", alert.Status)
	}
	if alert.Escalation.Level != 1 || alert.Escalation.MaxLevel != 3 {
		t.Errorf("escalation = %+v", alert.Escalation)
	}
	if alert.ReadingID != "r-1" || alert.UserID != "user-1" || alert.DeviceName != device.Name {
		t.Errorf("identity fields not copied: %+v", alert)
	}
	if alert.Context.PatientName != "Ada" || alert.Context.EmergencyContact.Email != "bob@example.com" {
		t.Errorf("context = %+v", alert.Context)
	}
	if alert.Location == nil || alert.Location.Latitude != 52.1 {
		t.Errorf("location = %+v", alert.Location)
	}

	// Later edits to the owner record do not leak into the snapshot.
	device.Patient.Name = "Someone Else"
	device.Patient.MedicalHistory[0] = "changed"
	stored, _ := store.GetByID(context.Background(), alert.ID)
	if stored.Context.PatientName != "Ada" || stored.Context.MedicalHistory[0] != "hypertension" {
		t.Errorf("context snapshot drifted: %+v", stored.Context)
	}
}

func TestRecorderPersistenceError(t *testing.T) {
	store := newMemAlertStore()
	store.createErr = errors.New("disk full")
	rec := NewRecorder(store)

	reading := &models.Reading{ID: "r-1", DeviceID: "dev-1", Motion: &models.Motion{FallDetected: true}}
	c := Evaluate(reading, models.DefaultThresholds(), "")[0]

	_, err := rec.Record(context.Background(), c, reading, testDevice())
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("Record() error = %v, want PersistenceError", err)
	}
	if !errors.Is(err, store.createErr) {
		t.Error("PersistenceError does not wrap the cause")
	}
}

func TestManagerTransitions(t *testing.T) {
	store := newMemAlertStore()
	bc := &recordingBroadcaster{}
	m := NewManager(store, bc)

	created := time.Now().UTC().Add(-time.Minute)
	_ = store.Create(context.Background(), newActiveAlert(models.SeverityCritical, created))

	a, err := m.Acknowledge(context.Background(), "alert-1", "nurse", "seen")
	if err != nil {
		t.Fatalf("Acknowledge() error = %v", err)
	}
	if a.Status != models.AlertStatusAcknowledged {
		t.Errorf("status = %s", a.Status)
	}
	if len(bc.updated) != 1 {
		t.Errorf("broadcasts = %d, want 1", len(bc.updated))
	}

	stored, _ := store.GetByID(context.Background(), "alert-1")
	if stored.Status != models.AlertStatusAcknowledged {
		t.Errorf("stored status = %s", stored.Status)
	}

	if _, err := m.Acknowledge(context.Background(), "alert-1", "nurse", ""); !IsStateConflict(err) {
		t.Errorf("second Acknowledge() error = %v, want state conflict", err)
	}
	if len(bc.updated) != 1 {
		t.Errorf("conflict was broadcast")
	}

	if _, err := m.MarkFalsePositive(context.Background(), "alert-1", "nurse", "loose strap"); err != nil {
		t.Fatalf("MarkFalsePositive() error = %v", err)
	}
	if _, err := m.Resolve(context.Background(), "alert-1", "nurse", ""); !IsStateConflict(err) {
		t.Errorf("Resolve() after false positive error = %v, want state conflict", err)
	}
}

func TestManagerNotFoundAndPersistence(t *testing.T) {
	store := newMemAlertStore()
	m := NewManager(store, nil)

	_, err := m.Resolve(context.Background(), "missing", "op", "")
	if !IsNotFound(err) {
		t.Fatalf("Resolve(missing) error = %v, want not found", err)
	}

	_ = store.Create(context.Background(), newActiveAlert(models.SeverityWarning, time.Now()))
	store.updateErr = errors.New("locked")
	_, err = m.Resolve(context.Background(), "alert-1", "op", "")
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Errorf("Resolve() error = %v, want PersistenceError", err)
	}
}

func TestManagerEscalateIfDue(t *testing.T) {
	store := newMemAlertStore()
	bc := &recordingBroadcaster{}
	m := NewManager(store, bc)

	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	_ = store.Create(context.Background(), newActiveAlert(models.SeverityEmergency, created))

	m.now = func() time.Time { return created.Add(time.Minute) }
	if _, ok, err := m.EscalateIfDue(context.Background(), "alert-1"); ok || err != nil {
		t.Errorf("EscalateIfDue() at 1m = %v, %v; want false, nil", ok, err)
	}

	m.now = func() time.Time { return created.Add(3 * time.Minute) }
	a, ok, err := m.EscalateIfDue(context.Background(), "alert-1")
	if err != nil || !ok {
		t.Fatalf("EscalateIfDue() at 3m = %v, %v; want true, nil", ok, err)
	}
	if a.Escalation.Level != 2 || a.Escalation.LastEscalatedAt == nil {
		t.Errorf("escalation = %+v", a.Escalation)
	}
	if store.updates != 1 || len(bc.updated) != 1 {
		t.Errorf("updates = %d, broadcasts = %d; want 1, 1", store.updates, len(bc.updated))
	}

	if _, _, err := m.EscalateIfDue(context.Background(), "missing"); !IsNotFound(err) {
		t.Errorf("EscalateIfDue(missing) error = %v, want not found", err)
	}
}

func TestManagerEscalateIfDue_LosesToAcknowledge(t *testing.T) {
	store := newMemAlertStore()
	bc := &recordingBroadcaster{}
	m := NewManager(store, bc)

	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	_ = store.Create(context.Background(), newActiveAlert(models.SeverityCritical, created))
	m.now = func() time.Time { return created.Add(10 * time.Minute) }

	// The operator acknowledges after the escalation loaded the alert.
	store.beforeUpdate = func() {
		if _, err := m.Acknowledge(context.Background(), "alert-1", "nurse", "on my way"); err != nil {
			t.Errorf("Acknowledge() error = %v", err)
		}
	}

	_, ok, err := m.EscalateIfDue(context.Background(), "alert-1")
	if ok || !IsStateConflict(err) {
		t.Fatalf("EscalateIfDue() = %v, %v; want false, state conflict", ok, err)
	}
	var sc *StateConflictError
	if errors.As(err, &sc) && sc.Status != models.AlertStatusAcknowledged {
		t.Errorf("conflict status = %s, want acknowledged", sc.Status)
	}

	stored, _ := store.GetByID(context.Background(), "alert-1")
	if stored.Status != models.AlertStatusAcknowledged || stored.Response.AcknowledgedBy != "nurse" {
		t.Errorf("acknowledgement overwritten: %s %+v", stored.Status, stored.Response)
	}
	if stored.Escalation.Level != 1 {
		t.Errorf("level = %d, want 1", stored.Escalation.Level)
	}
	if len(bc.updated) != 1 {
		t.Errorf("broadcasts = %d, want only the acknowledgement", len(bc.updated))
	}
}

func TestManagerResolveLosesToConcurrentClose(t *testing.T) {
	store := newMemAlertStore()
	m := NewManager(store, nil)
	_ = store.Create(context.Background(), newActiveAlert(models.SeverityWarning, time.Now().UTC()))

	store.beforeUpdate = func() {
		if _, err := m.MarkFalsePositive(context.Background(), "alert-1", "nurse", "loose strap"); err != nil {
			t.Errorf("MarkFalsePositive() error = %v", err)
		}
	}
	if _, err := m.Resolve(context.Background(), "alert-1", "doctor", ""); !IsStateConflict(err) {
		t.Fatalf("Resolve() error = %v, want state conflict", err)
	}

	stored, _ := store.GetByID(context.Background(), "alert-1")
	if stored.Status != models.AlertStatusFalsePositive || stored.Response.ResolvedBy != "nurse" {
		t.Errorf("stored = %s by %s, want false_positive by nurse", stored.Status, stored.Response.ResolvedBy)
	}
}
