// Package readings serves device reading ingestion and queries.
package readings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/vitalguard/internal/analytics"
	"github.com/good-yellow-bee/vitalguard/internal/api/params"
	"github.com/good-yellow-bee/vitalguard/internal/api/response"
	"github.com/good-yellow-bee/vitalguard/internal/ingest"
	"github.com/good-yellow-bee/vitalguard/internal/models"
	"github.com/good-yellow-bee/vitalguard/internal/storage"
)

const maxBodyBytes = 1 << 20

// Ingester runs a reading through the ingestion pipeline.
type Ingester interface {
	Ingest(ctx context.Context, r *models.Reading, source string) (*ingest.Result, error)
}

// Store lists stored readings.
type Store interface {
	List(ctx context.Context, filter storage.ReadingFilter) ([]*models.Reading, int64, error)
}

// Stats aggregates readings.
type Stats interface {
	ReadingStats(ctx context.Context, w analytics.Window) (*analytics.ReadingStats, error)
}

// Limiter throttles ingestion per device.
type Limiter interface {
	Allow(key string) bool
}

// Handler handles reading endpoints.
type Handler struct {
	ingester Ingester
	store    Store
	stats    Stats
	limiter  Limiter
	logger   *zap.Logger
}

// NewHandler creates a reading handler. limiter may be nil.
func NewHandler(ingester Ingester, store Store, stats Stats, limiter Limiter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ingester: ingester, store: store, stats: stats, limiter: limiter, logger: logger}
}

// Create ingests a reading posted by a device.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var reading models.Reading
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&reading); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.JSONError(w, response.NewBadRequest("request body too large"))
			return
		}
		response.JSONError(w, response.NewBadRequest("invalid request body"))
		return
	}

	if h.limiter != nil && reading.DeviceID != "" && !h.limiter.Allow(reading.DeviceID) {
		h.logger.Debug("reading rate limited", zap.String("device_id", reading.DeviceID))
		response.JSONError(w, response.ErrRateLimited)
		return
	}

	result, err := h.ingester.Ingest(r.Context(), &reading, ingest.SourceHTTP)
	if err != nil {
		response.HandleError(w, h.logger, "ingest reading", err)
		return
	}
	response.Created(w, result)
}

// List returns a page of readings, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	win, err := params.ParseWindow(r)
	if err != nil {
		response.JSONError(w, response.NewBadRequest(err.Error()))
		return
	}
	page, err := params.ParsePage(r)
	if err != nil {
		response.JSONError(w, response.NewBadRequest(err.Error()))
		return
	}

	readings, total, err := h.store.List(r.Context(), storage.ReadingFilter{
		DeviceID: win.DeviceID,
		From:     win.From,
		To:       win.To,
		Limit:    page.Limit,
		Offset:   page.Offset(),
	})
	if err != nil {
		response.HandleError(w, h.logger, "list readings", err)
		return
	}
	if readings == nil {
		readings = []*models.Reading{}
	}

	response.OK(w, response.PaginatedResponse{
		Items:      readings,
		Pagination: response.NewPagination(page.Number, page.Limit, total),
	})
}

// Stats returns vital sign aggregates for an optional device and time range.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	win, err := params.ParseWindow(r)
	if err != nil {
		response.JSONError(w, response.NewBadRequest(err.Error()))
		return
	}

	stats, err := h.stats.ReadingStats(r.Context(), analytics.Window{DeviceID: win.DeviceID, From: win.From, To: win.To})
	if err != nil {
		response.HandleError(w, h.logger, "reading stats", err)
		return
	}
	response.OK(w, stats)
}
