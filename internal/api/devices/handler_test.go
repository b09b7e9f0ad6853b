package devices

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/vitalguard/internal/models"
	"github.com/good-yellow-bee/vitalguard/internal/storage"
)

// Mock repositories
type mockDeviceStore struct {
	devices   []*models.Device
	getError  error
	listError error
	updates   int
}

func (m *mockDeviceStore) Create(ctx context.Context, d *models.Device) error {
	m.devices = append(m.devices, d)
	return nil
}

func (m *mockDeviceStore) GetByDeviceID(ctx context.Context, id string) (*models.Device, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	for _, d := range m.devices {
		if d.DeviceID == id {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockDeviceStore) Update(ctx context.Context, d *models.Device) error {
	m.updates++
	for i, existing := range m.devices {
		if existing.ID == d.ID {
			m.devices[i] = d
		}
	}
	return nil
}

func (m *mockDeviceStore) List(ctx context.Context) ([]*models.Device, error) {
	if m.listError != nil {
		return nil, m.listError
	}
	return m.devices, nil
}

type mockReadingStore struct {
	readings []*models.Reading
	filters  []storage.ReadingFilter
}

func (m *mockReadingStore) List(ctx context.Context, f storage.ReadingFilter) ([]*models.Reading, int64, error) {
	m.filters = append(m.filters, f)
	var out []*models.Reading
	for _, r := range m.readings {
		if r.DeviceID == f.DeviceID {
			out = append(out, r)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, int64(len(out)), nil
}

type mockCache struct {
	reading *models.Reading
	err     error
}

func (m *mockCache) LatestReading(ctx context.Context, deviceID string) (*models.Reading, error) {
	return m.reading, m.err
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/devices", func(r chi.Router) {
		h.Routes(r, func(next http.Handler) http.Handler { return next })
	})
	return r
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func seededStore() *mockDeviceStore {
	return &mockDeviceStore{devices: []*models.Device{{
		ID:       "dev-1",
		DeviceID: "watch-1",
		Name:     "Grandma's Watch",
		Patient:  models.Patient{Name: "Mary Smith"},
	}}}
}

func TestHandler_Create(t *testing.T) {
	store := &mockDeviceStore{}
	router := newRouter(NewHandler(store, &mockReadingStore{}, nil, nil))

	body := `{"deviceId":"watch-9","name":" Grandpa's Watch ","userId":"user-7",
		"patient":{"name":"Joe","emergencyContact":{"email":"kid@example.com"}},
		"thresholds":{"minHeartRate":45}}`
	rec := serve(router, "POST", "/devices", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data models.Device `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := resp.Data
	if got.ID == "" || got.DeviceID != "watch-9" || got.Name != "Grandpa's Watch" {
		t.Errorf("device = %+v", got)
	}
	if got.Thresholds == nil || got.Thresholds.MinHeartRate == nil || *got.Thresholds.MinHeartRate != 45 {
		t.Errorf("thresholds = %+v", got.Thresholds)
	}
	if len(store.devices) != 1 {
		t.Fatalf("stored %d devices, want 1", len(store.devices))
	}

	rec = serve(router, "POST", "/devices", `{"deviceId":"watch-9","name":"dup"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rec.Code)
	}
}

func TestHandler_CreateValidation(t *testing.T) {
	router := newRouter(NewHandler(&mockDeviceStore{}, &mockReadingStore{}, nil, nil))

	tests := []struct {
		name string
		body string
	}{
		{"missing device id", `{"name":"x"}`},
		{"device id with slash", `{"deviceId":"a/b","name":"x"}`},
		{"missing name", `{"deviceId":"watch-1"}`},
		{"inverted heart rate", `{"deviceId":"watch-1","name":"x","thresholds":{"minHeartRate":100,"maxHeartRate":90}}`},
		{"spo2 out of range", `{"deviceId":"watch-1","name":"x","thresholds":{"minSpO2":120}}`},
		{"malformed", `{`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(router, "POST", "/devices", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandler_GetAndList(t *testing.T) {
	store := seededStore()
	router := newRouter(NewHandler(store, &mockReadingStore{}, nil, nil))

	if rec := serve(router, "GET", "/devices/watch-1", ""); rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}
	if rec := serve(router, "GET", "/devices/ghost", ""); rec.Code != http.StatusNotFound {
		t.Errorf("get unknown status = %d, want 404", rec.Code)
	}

	rec := serve(router, "GET", "/devices", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"deviceId":"watch-1"`) {
		t.Errorf("list status = %d, body = %s", rec.Code, rec.Body.String())
	}

	empty := newRouter(NewHandler(&mockDeviceStore{}, &mockReadingStore{}, nil, nil))
	if rec := serve(empty, "GET", "/devices", ""); !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("empty list body = %s", rec.Body.String())
	}

	failing := newRouter(NewHandler(&mockDeviceStore{listError: errors.New("disk I/O error")}, &mockReadingStore{}, nil, nil))
	rec = serve(failing, "GET", "/devices", "")
	if rec.Code != http.StatusInternalServerError || strings.Contains(rec.Body.String(), "disk") {
		t.Errorf("store failure status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_UpdateThresholds(t *testing.T) {
	store := seededStore()
	router := newRouter(NewHandler(store, &mockReadingStore{}, nil, nil))

	rec := serve(router, "PUT", "/devices/watch-1/thresholds", `{"minHeartRate":40,"maxHeartRate":140}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if store.updates != 1 {
		t.Errorf("updates = %d, want 1", store.updates)
	}
	th := store.devices[0].Thresholds
	if th == nil || *th.MinHeartRate != 40 || *th.MaxHeartRate != 140 || th.MinSpO2 != nil {
		t.Errorf("thresholds = %+v", th)
	}

	if rec := serve(router, "PUT", "/devices/ghost/thresholds", `{}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown device status = %d, want 404", rec.Code)
	}
	if rec := serve(router, "PUT", "/devices/watch-1/thresholds", `{"maxTemperature":50}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid thresholds status = %d, want 400", rec.Code)
	}
}

func TestHandler_Latest(t *testing.T) {
	stored := &models.Reading{ID: "r-stored", DeviceID: "watch-1", Timestamp: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
	cached := &models.Reading{ID: "r-cached", DeviceID: "watch-1", Timestamp: time.Date(2024, 1, 15, 10, 5, 0, 0, time.UTC)}

	tests := []struct {
		name     string
		cache    LatestCache
		readings []*models.Reading
		wantCode int
		wantID   string
	}{
		{"cache hit", &mockCache{reading: cached}, []*models.Reading{stored}, http.StatusOK, "r-cached"},
		{"cache miss", &mockCache{}, []*models.Reading{stored}, http.StatusOK, "r-stored"},
		{"cache error", &mockCache{err: errors.New("connection refused")}, []*models.Reading{stored}, http.StatusOK, "r-stored"},
		{"no cache", nil, []*models.Reading{stored}, http.StatusOK, "r-stored"},
		{"no readings", &mockCache{}, nil, http.StatusNotFound, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			readings := &mockReadingStore{readings: tc.readings}
			router := newRouter(NewHandler(seededStore(), readings, tc.cache, nil))

			rec := serve(router, "GET", "/devices/watch-1/latest", "")
			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantCode)
			}
			if tc.wantID == "" {
				return
			}
			var resp struct {
				Data models.Reading `json:"data"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Data.ID != tc.wantID {
				t.Errorf("reading = %s, want %s", resp.Data.ID, tc.wantID)
			}
		})
	}
}
