package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/good-yellow-bee/vitalguard/internal/models"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store := NewSQLiteStorage(dbPath)
	if err := store.Open(); err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate database: %v", err)
	}
	return store
}

func floatPtr(v float64) *float64 { return &v }

func newTestDevice() *models.Device {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.Device{
		ID:       uuid.New().String(),
		DeviceID: "watch-" + uuid.New().String()[:8],
		Name:     "Grandma's Watch",
		UserID:   "user-1",
		Patient: models.Patient{
			Name:             "Ada",
			Age:              81,
			EmergencyContact: models.EmergencyContact{Name: "Bob", Phone: "+15550100", Email: "bob@example.com"},
			MedicalHistory:   []string{"hypertension"},
		},
		Thresholds: &models.ThresholdSet{MaxHeartRate: floatPtr(110)},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func newTestAlert(deviceID string, status models.AlertStatus, created time.Time) *models.Alert {
	return &models.Alert{
		ID:           uuid.New().String(),
		DeviceID:     deviceID,
		DeviceName:   "Grandma's Watch",
		UserID:       "user-1",
		Type:         models.AlertTypeHeartRateAbnormal,
		Severity:     models.SeverityCritical,
		Title:        "Abnormal Heart Rate",
		Message:      "Heart rate of 150 bpm",
		TriggerValue: 150,
		Threshold:    120,
		Unit:         "bpm",
		Status:       status,
		Context: models.ContextSnapshot{
			PatientName:    "Ada",
			MedicalHistory: []string{"hypertension"},
		},
		Escalation: models.EscalationState{
			Level:    1,
			MaxLevel: 3,
			Rules:    []models.EscalationRule{{Level: 1}, {Level: 2, AfterMinutes: 5}, {Level: 3, AfterMinutes: 15}},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestSQLiteStorage_Migrate(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	tables := []string{"devices", "readings", "alerts", "schema_migrations"}
	for _, table := range tables {
		var count int
		err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s should exist: %v", table, err)
		}
	}

	// Running again is a no-op.
	if err := store.Migrate(); err != nil {
		t.Errorf("second migrate: %v", err)
	}
}

func TestDeviceRepository_CRUD(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	device := newTestDevice()
	if err := store.Devices().Create(ctx, device); err != nil {
		t.Fatalf("create device: %v", err)
	}

	got, err := store.Devices().GetByDeviceID(ctx, device.DeviceID)
	if err != nil {
		t.Fatalf("get device: %v", err)
	}
	if got == nil {
		t.Fatal("device not found")
	}
	if got.Patient.EmergencyContact.Email != "bob@example.com" {
		t.Errorf("emergency contact = %+v", got.Patient.EmergencyContact)
	}
	if got.Thresholds == nil || got.Thresholds.MaxHeartRate == nil || *got.Thresholds.MaxHeartRate != 110 {
		t.Errorf("thresholds = %+v", got.Thresholds)
	}
	if got.Thresholds.MinHeartRate != nil {
		t.Error("unset threshold came back set")
	}

	seen := time.Now().UTC()
	got.Status.Online = true
	got.Status.LastSeen = &seen
	got.Status.BatteryLevel = floatPtr(12)
	got.Status.BatteryLow = true
	got.UpdatedAt = seen
	if err := store.Devices().Update(ctx, got); err != nil {
		t.Fatalf("update device: %v", err)
	}

	byID, err := store.Devices().GetByID(ctx, device.ID)
	if err != nil || byID == nil {
		t.Fatalf("get by id: %v, %v", byID, err)
	}
	if !byID.Status.BatteryLow || !byID.Status.Online {
		t.Errorf("status = %+v", byID.Status)
	}

	missing, err := store.Devices().GetByDeviceID(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("missing device = %v, %v; want nil, nil", missing, err)
	}

	list, err := store.Devices().List(ctx)
	if err != nil || len(list) != 1 {
		t.Errorf("list = %d devices, err %v", len(list), err)
	}
}

func TestReadingRepository(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		r := &models.Reading{
			ID:        uuid.New().String(),
			DeviceID:  "watch-1",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			HeartRate: &models.VitalSample{Value: float64(60 + i)},
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := store.Readings().Create(ctx, r); err != nil {
			t.Fatalf("create reading: %v", err)
		}
	}
	other := &models.Reading{ID: uuid.New().String(), DeviceID: "watch-2", Timestamp: base, CreatedAt: base}
	if err := store.Readings().Create(ctx, other); err != nil {
		t.Fatal(err)
	}

	page, total, err := store.Readings().List(ctx, ReadingFilter{DeviceID: "watch-1", Limit: 2})
	if err != nil {
		t.Fatalf("list readings: %v", err)
	}
	if total != 5 || len(page) != 2 {
		t.Fatalf("got %d of %d, want 2 of 5", len(page), total)
	}
	if page[0].HeartRate.Value != 64 {
		t.Errorf("first reading heart rate = %v, want newest (64)", page[0].HeartRate.Value)
	}

	ranged, total, err := store.Readings().List(ctx, ReadingFilter{
		DeviceID: "watch-1",
		From:     base.Add(time.Hour),
		To:       base.Add(3 * time.Hour),
	})
	if err != nil || total != 3 || len(ranged) != 3 {
		t.Errorf("ranged = %d of %d, err %v; want 3 of 3", len(ranged), total, err)
	}

	got, err := store.Readings().GetByID(ctx, other.ID)
	if err != nil || got == nil || got.DeviceID != "watch-2" {
		t.Errorf("get reading = %+v, %v", got, err)
	}

	deleted, err := store.Readings().DeleteBefore(ctx, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("delete readings: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}
}

// reloaded normalizes column timestamps, which the driver may return in a
// different location than they were written in.
func reloaded(a *models.Alert) *models.Alert {
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a
}

func TestAlertRepository_RoundTrip(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 8, 15, 30, 250_000_000, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := created.Add(d)
		return &ts
	}
	responseTime := int64(90)

	a := newTestAlert("watch-1", models.AlertStatusActive, created)
	a.ReadingID = "reading-7"
	a.Location = &models.Location{Latitude: 52.37, Longitude: 4.89, Accuracy: 12.5}
	a.Context = models.ContextSnapshot{
		PatientName:      "Ada",
		PatientAge:       81,
		EmergencyContact: models.EmergencyContact{Name: "Bob", Phone: "+15550100", Email: "bob@example.com", Relationship: "son"},
		MedicalHistory:   []string{"hypertension", "arrhythmia"},
		Medications:      []string{"lisinopril"},
		DeviceName:       "Grandma's Watch",
	}
	a.Notifications.SMS = models.ChannelDelivery{Attempts: 2, LastAttemptAt: at(time.Second), LastError: "twilio: 503"}
	require.NoError(t, store.Alerts().Create(ctx, a))

	got, err := store.Alerts().GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a, reloaded(got))

	// Delivery tracking and lifecycle updates touch separate columns.
	n := models.NotificationStatus{
		Email:   models.ChannelDelivery{Sent: true, Attempts: 1, LastAttemptAt: at(2 * time.Second), Recipients: []string{"bob@example.com"}},
		SMS:     a.Notifications.SMS,
		Webhook: models.ChannelDelivery{Sent: true, Attempts: 1, LastAttemptAt: at(2 * time.Second)},
	}
	require.NoError(t, store.Alerts().UpdateNotifications(ctx, a.ID, n, *at(2 * time.Second)))

	got.Status = models.AlertStatusAcknowledged
	got.Response = models.AlertResponse{
		AcknowledgedBy:      "nurse",
		AcknowledgedAt:      at(90 * time.Second),
		Notes:               "on my way",
		ResponseTimeSeconds: &responseTime,
	}
	got.Escalation.Level = 2
	got.Escalation.LastEscalatedAt = at(5 * time.Minute)
	got.UpdatedAt = *at(5 * time.Minute)
	ok, err := store.Alerts().Update(ctx, got, models.AlertStatusActive)
	require.NoError(t, err)
	require.True(t, ok)

	want := *got
	want.Notifications = n
	final, err := store.Alerts().GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, &want, reloaded(final))

	// A close from the acknowledged state carries the response forward.
	final.Status = models.AlertStatusResolved
	final.Response.ResolvedBy = "doctor"
	final.Response.ResolvedAt = at(10 * time.Minute)
	final.UpdatedAt = *at(10 * time.Minute)
	ok, err = store.Alerts().Update(ctx, final, models.AlertStatusAcknowledged)
	require.NoError(t, err)
	require.True(t, ok)

	closed, err := store.Alerts().GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, final, reloaded(closed))

	missing, err := store.Alerts().GetByID(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, missing)
	assert.Error(t, store.Alerts().UpdateNotifications(ctx, "missing", n, created))
}

func TestAlertRepository_UpdateRequiresExpectedStatus(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	created := time.Now().UTC().Truncate(time.Second)
	a := newTestAlert("watch-1", models.AlertStatusAcknowledged, created)
	a.Response.AcknowledgedBy = "nurse"
	require.NoError(t, store.Alerts().Create(ctx, a))

	stale := *a
	stale.Status = models.AlertStatusActive
	stale.Response = models.AlertResponse{}
	stale.Escalation.Level = 2
	ok, err := store.Alerts().Update(ctx, &stale, models.AlertStatusActive)
	require.NoError(t, err)
	assert.False(t, ok, "write based on a stale status must not apply")

	got, err := store.Alerts().GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusAcknowledged, got.Status)
	assert.Equal(t, "nurse", got.Response.AcknowledgedBy)
	assert.Equal(t, 1, got.Escalation.Level)

	ok, err = store.Alerts().Update(ctx, &models.Alert{ID: "missing", Status: models.AlertStatusResolved}, models.AlertStatusActive)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAlertRepository_ListFilters(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	statuses := []models.AlertStatus{
		models.AlertStatusActive,
		models.AlertStatusActive,
		models.AlertStatusAcknowledged,
		models.AlertStatusResolved,
		models.AlertStatusFalsePositive,
	}
	for i, s := range statuses {
		a := newTestAlert("watch-1", s, base.Add(time.Duration(i)*time.Minute))
		if i == 1 {
			a.Severity = models.SeverityWarning
			a.DeviceID = "watch-2"
		}
		if err := store.Alerts().Create(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter AlertFilter
		want   int64
	}{
		{"all", AlertFilter{}, 5},
		{"active", AlertFilter{Status: models.AlertStatusActive}, 2},
		{"warning", AlertFilter{Severity: models.SeverityWarning}, 1},
		{"device", AlertFilter{DeviceID: "watch-1"}, 4},
		{"type", AlertFilter{Type: models.AlertTypeHeartRateAbnormal}, 5},
		{"other type", AlertFilter{Type: models.AlertTypeFallDetected}, 0},
		{"from", AlertFilter{From: base.Add(3 * time.Minute)}, 2},
		{"paged", AlertFilter{Limit: 2, Offset: 4}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, total, err := store.Alerts().List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("list alerts: %v", err)
			}
			if total != tt.want {
				t.Errorf("total = %d, want %d", total, tt.want)
			}
		})
	}

	page, _, err := store.Alerts().List(ctx, AlertFilter{Limit: 2, Offset: 4})
	if err != nil || len(page) != 1 {
		t.Errorf("last page = %d items, err %v; want 1", len(page), err)
	}

	active, err := store.Alerts().ListActive(ctx)
	if err != nil || len(active) != 2 {
		t.Errorf("active = %d, err %v; want 2", len(active), err)
	}
}

func TestAlertRepository_DeleteClosedBefore(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-100 * 24 * time.Hour)
	for _, s := range []models.AlertStatus{
		models.AlertStatusActive,
		models.AlertStatusAcknowledged,
		models.AlertStatusResolved,
		models.AlertStatusFalsePositive,
	} {
		if err := store.Alerts().Create(ctx, newTestAlert("watch-1", s, old)); err != nil {
			t.Fatal(err)
		}
	}
	recent := newTestAlert("watch-1", models.AlertStatusResolved, time.Now().UTC())
	if err := store.Alerts().Create(ctx, recent); err != nil {
		t.Fatal(err)
	}

	deleted, err := store.Alerts().DeleteClosedBefore(ctx, time.Now().UTC().Add(-90*24*time.Hour))
	if err != nil {
		t.Fatalf("delete closed alerts: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	remaining, total, err := store.Alerts().List(ctx, AlertFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Errorf("remaining = %d, want 3", total)
	}
	for _, a := range remaining {
		if a.Status.Closed() && a.ID != recent.ID {
			t.Errorf("old closed alert %s survived purge", a.ID)
		}
	}
}

func TestSQLiteStorage_Ping(t *testing.T) {
	store := setupTestDB(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}

	closed := NewSQLiteStorage(filepath.Join(t.TempDir(), "closed.db"))
	if err := closed.Ping(context.Background()); err == nil {
		t.Error("expected error pinging unopened storage")
	}
}
