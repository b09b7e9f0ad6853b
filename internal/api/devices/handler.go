// Package devices serves the device registry.
package devices

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/good-yellow-bee/vitalguard/internal/api/response"
	"github.com/good-yellow-bee/vitalguard/internal/models"
	"github.com/good-yellow-bee/vitalguard/internal/storage"
)

// Store reads and writes device records. GetByDeviceID returns nil, nil for
// an unknown device.
type Store interface {
	Create(ctx context.Context, device *models.Device) error
	GetByDeviceID(ctx context.Context, deviceID string) (*models.Device, error)
	Update(ctx context.Context, device *models.Device) error
	List(ctx context.Context) ([]*models.Device, error)
}

// ReadingStore lists stored readings.
type ReadingStore interface {
	List(ctx context.Context, filter storage.ReadingFilter) ([]*models.Reading, int64, error)
}

// LatestCache returns the most recent reading for a device, or nil, nil on a
// cache miss.
type LatestCache interface {
	LatestReading(ctx context.Context, deviceID string) (*models.Reading, error)
}

// Handler handles device endpoints.
type Handler struct {
	store    Store
	readings ReadingStore
	latest   LatestCache
	logger   *zap.Logger
}

// NewHandler creates a device handler. latest may be nil.
func NewHandler(store Store, readings ReadingStore, latest LatestCache, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, readings: readings, latest: latest, logger: logger}
}

// Routes mounts the device endpoints. Registry writes go through operator.
func (h *Handler) Routes(r chi.Router, operator func(http.Handler) http.Handler) {
	r.Get("/", h.List)
	r.Get("/{deviceId}", h.Get)
	r.Get("/{deviceId}/latest", h.Latest)
	r.Group(func(r chi.Router) {
		r.Use(operator)
		r.Post("/", h.Create)
		r.Put("/{deviceId}/thresholds", h.UpdateThresholds)
	})
}

// CreateRequest registers a device.
type CreateRequest struct {
	DeviceID   string               `json:"deviceId"`
	Name       string               `json:"name"`
	UserID     string               `json:"userId"`
	Patient    models.Patient       `json:"patient"`
	Thresholds *models.ThresholdSet `json:"thresholds"`
}

// Create registers a new device.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.JSONError(w, response.NewBadRequest("invalid request body"))
		return
	}

	if err := ValidateDeviceID(req.DeviceID); err != nil {
		response.JSONError(w, response.NewValidationError(err.Error()))
		return
	}
	if err := ValidateName(req.Name); err != nil {
		response.JSONError(w, response.NewValidationError(err.Error()))
		return
	}
	if err := ValidateThresholds(req.Thresholds); err != nil {
		response.JSONError(w, response.NewValidationError(err.Error()))
		return
	}

	ctx := r.Context()
	deviceID := strings.TrimSpace(req.DeviceID)

	existing, err := h.store.GetByDeviceID(ctx, deviceID)
	if err != nil {
		response.HandleError(w, h.logger, "create device: check existing", err)
		return
	}
	if existing != nil {
		response.JSONError(w, response.NewConflict(fmt.Sprintf("device %s already registered", deviceID)))
		return
	}

	now := time.Now().UTC()
	device := &models.Device{
		ID:         uuid.New().String(),
		DeviceID:   deviceID,
		Name:       strings.TrimSpace(req.Name),
		UserID:     strings.TrimSpace(req.UserID),
		Patient:    req.Patient,
		Thresholds: req.Thresholds,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.store.Create(ctx, device); err != nil {
		response.HandleError(w, h.logger, "create device", err)
		return
	}

	h.logger.Info("device registered", zap.String("device_id", device.DeviceID), zap.String("id", device.ID))
	response.Created(w, device)
}

// List returns every registered device.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	devices, err := h.store.List(r.Context())
	if err != nil {
		response.HandleError(w, h.logger, "list devices", err)
		return
	}
	if devices == nil {
		devices = []*models.Device{}
	}
	response.OK(w, devices)
}

// Get returns a single device.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	device, ok := h.load(w, r)
	if !ok {
		return
	}
	response.OK(w, device)
}

// UpdateThresholds replaces the device's threshold overrides. Omitted
// fields fall back to the system defaults.
func (h *Handler) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	var thresholds models.ThresholdSet
	if err := json.NewDecoder(r.Body).Decode(&thresholds); err != nil {
		response.JSONError(w, response.NewBadRequest("invalid request body"))
		return
	}
	if err := ValidateThresholds(&thresholds); err != nil {
		response.JSONError(w, response.NewValidationError(err.Error()))
		return
	}

	device, ok := h.load(w, r)
	if !ok {
		return
	}

	device.Thresholds = &thresholds
	device.UpdatedAt = time.Now().UTC()
	if err := h.store.Update(r.Context(), device); err != nil {
		response.HandleError(w, h.logger, "update thresholds", err)
		return
	}
	response.OK(w, device)
}

// Latest returns the newest reading for a device, served from the cache
// when one is configured and falling back to storage.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	device, ok := h.load(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if h.latest != nil {
		reading, err := h.latest.LatestReading(ctx, device.DeviceID)
		if err != nil {
			h.logger.Warn("latest reading cache", zap.String("device_id", device.DeviceID), zap.Error(err))
		} else if reading != nil {
			response.OK(w, reading)
			return
		}
	}

	readings, _, err := h.readings.List(ctx, storage.ReadingFilter{DeviceID: device.DeviceID, Limit: 1})
	if err != nil {
		response.HandleError(w, h.logger, "latest reading", err)
		return
	}
	if len(readings) == 0 {
		response.JSONError(w, response.NewNotFound(fmt.Sprintf("no readings for device %s", device.DeviceID)))
		return
	}
	response.OK(w, readings[0])
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*models.Device, bool) {
	deviceID := chi.URLParam(r, "deviceId")
	device, err := h.store.GetByDeviceID(r.Context(), deviceID)
	if err != nil {
		response.HandleError(w, h.logger, "get device", err)
		return nil, false
	}
	if device == nil {
		response.JSONError(w, response.NewNotFound(fmt.Sprintf("device %s not found", deviceID)))
		return nil, false
	}
	return device, true
}
