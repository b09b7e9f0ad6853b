// Package alerts serves alert queries and operator lifecycle actions.
package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/good-yellow-bee/vitalguard/internal/analytics"
	"github.com/good-yellow-bee/vitalguard/internal/api/middleware"
	"github.com/good-yellow-bee/vitalguard/internal/api/params"
	"github.com/good-yellow-bee/vitalguard/internal/api/response"
	"github.com/good-yellow-bee/vitalguard/internal/models"
	"github.com/good-yellow-bee/vitalguard/internal/storage"
)

// MaxExportRows bounds a single XLSX export.
const MaxExportRows = 10000

// Store reads alerts. GetByID returns nil, nil for an unknown id.
type Store interface {
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	List(ctx context.Context, filter storage.AlertFilter) ([]*models.Alert, int64, error)
}

// Lifecycle applies operator transitions.
type Lifecycle interface {
	Acknowledge(ctx context.Context, id, actor, notes string) (*models.Alert, error)
	Resolve(ctx context.Context, id, actor, notes string) (*models.Alert, error)
	MarkFalsePositive(ctx context.Context, id, actor, notes string) (*models.Alert, error)
}

// Stats aggregates alerts.
type Stats interface {
	AlertStats(ctx context.Context, w analytics.Window) (*analytics.AlertStats, error)
}

// Handler handles alert endpoints.
type Handler struct {
	store     Store
	lifecycle Lifecycle
	stats     Stats
	logger    *zap.Logger
}

// NewHandler creates an alert handler.
func NewHandler(store Store, lifecycle Lifecycle, stats Stats, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, lifecycle: lifecycle, stats: stats, logger: logger}
}

// Routes mounts the alert endpoints.
func (h *Handler) Routes(r chi.Router, operator func(http.Handler) http.Handler) {
	r.Get("/", h.List)
	r.Get("/stats", h.Stats)
	r.Get("/export", h.Export)
	r.Get("/{id}", h.Get)
	r.Group(func(r chi.Router) {
		r.Use(operator)
		r.Post("/{id}/acknowledge", h.Acknowledge)
		r.Post("/{id}/resolve", h.Resolve)
		r.Post("/{id}/false-positive", h.MarkFalsePositive)
	})
}

// ActionRequest is the body of a lifecycle action.
type ActionRequest struct {
	Notes string `json:"notes"`
	Actor string `json:"actor"`
}

// List returns a page of alerts matching the query filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r)
	if err != nil {
		response.JSONError(w, response.NewBadRequest(err.Error()))
		return
	}
	page, err := params.ParsePage(r)
	if err != nil {
		response.JSONError(w, response.NewBadRequest(err.Error()))
		return
	}
	filter.Limit = page.Limit
	filter.Offset = page.Offset()

	alerts, total, err := h.store.List(r.Context(), filter)
	if err != nil {
		response.HandleError(w, h.logger, "list alerts", err)
		return
	}
	if alerts == nil {
		alerts = []*models.Alert{}
	}

	response.OK(w, response.PaginatedResponse{
		Items:      alerts,
		Pagination: response.NewPagination(page.Number, page.Limit, total),
	})
}

// Get returns a single alert.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	alert, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		response.HandleError(w, h.logger, "get alert", err)
		return
	}
	if alert == nil {
		response.JSONError(w, response.NewNotFound(fmt.Sprintf("alert %s not found", id)))
		return
	}
	response.OK(w, alert)
}

// Stats returns alert aggregates for an optional device and time range.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	win, err := params.ParseWindow(r)
	if err != nil {
		response.JSONError(w, response.NewBadRequest(err.Error()))
		return
	}

	stats, err := h.stats.AlertStats(r.Context(), analytics.Window{DeviceID: win.DeviceID, From: win.From, To: win.To})
	if err != nil {
		response.HandleError(w, h.logger, "alert stats", err)
		return
	}
	response.OK(w, stats)
}

// Acknowledge moves an active alert to acknowledged.
func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "acknowledge alert", h.lifecycle.Acknowledge)
}

// Resolve closes an active or acknowledged alert.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "resolve alert", h.lifecycle.Resolve)
}

// MarkFalsePositive closes an active or acknowledged alert as a false alarm.
func (h *Handler) MarkFalsePositive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "mark false positive", h.lifecycle.MarkFalsePositive)
}

type transitionFunc func(ctx context.Context, id, actor, notes string) (*models.Alert, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op string, fn transitionFunc) {
	var req ActionRequest
	// An empty body is allowed: notes and actor are both optional.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.JSONError(w, response.NewBadRequest("invalid request body"))
		return
	}

	actor := middleware.Actor(r.Context(), req.Actor)
	alert, err := fn(r.Context(), chi.URLParam(r, "id"), actor, req.Notes)
	if err != nil {
		response.HandleError(w, h.logger, op, err)
		return
	}

	h.logger.Info("alert updated",
		zap.String("alert_id", alert.ID),
		zap.String("status", string(alert.Status)),
		zap.String("actor", actor),
	)
	response.OK(w, alert)
}

// ParseFilter reads the alert list filters from the query string.
func ParseFilter(r *http.Request) (storage.AlertFilter, error) {
	return FilterFromValues(r.URL.Query())
}

// FilterFromValues builds an alert filter from status, severity, type,
// deviceId, from and to values.
func FilterFromValues(q url.Values) (storage.AlertFilter, error) {
	win, err := params.WindowFromValues(q)
	if err != nil {
		return storage.AlertFilter{}, err
	}
	filter := storage.AlertFilter{DeviceID: win.DeviceID, From: win.From, To: win.To}

	if s := q.Get("status"); s != "" {
		status, ok := models.ParseAlertStatus(s)
		if !ok {
			return filter, fmt.Errorf("unknown status %q", s)
		}
		filter.Status = status
	}
	if s := q.Get("severity"); s != "" {
		severity, ok := models.ParseSeverity(s)
		if !ok {
			return filter, fmt.Errorf("unknown severity %q", s)
		}
		filter.Severity = severity
	}
	if s := q.Get("type"); s != "" {
		t := models.AlertType(s)
		if !t.Valid() {
			return filter, fmt.Errorf("unknown type %q", s)
		}
		filter.Type = t
	}
	return filter, nil
}
