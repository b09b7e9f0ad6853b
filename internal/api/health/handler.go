// Package health serves the liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultCheckTimeout = 5 * time.Second

// Checker probes one dependency.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// Handler answers /health, /health/live and /health/ready.
type Handler struct {
	version string
	started time.Time
	timeout time.Duration
	logger  *zap.Logger

	mu       sync.RWMutex
	checkers []Checker
}

func NewHandler(version string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		version: version,
		started: time.Now(),
		timeout: defaultCheckTimeout,
		logger:  logger,
	}
}

// RegisterChecker adds a dependency to the readiness probe.
func (h *Handler) RegisterChecker(c Checker) {
	h.mu.Lock()
	h.checkers = append(h.checkers, c)
	h.mu.Unlock()
}

// HealthResponse is the body of every probe.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Uptime  string            `json:"uptime,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: h.version,
		Uptime:  time.Since(h.started).Truncate(time.Second).String(),
	})
}

func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "live"})
}

// Ready is 200 only when every registered checker passes within the timeout.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks, healthy := h.runChecks(ctx)
	if !healthy {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "not_ready", Checks: checks})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ready", Checks: checks})
}

// runChecks probes all dependencies in parallel.
func (h *Handler) runChecks(ctx context.Context) (map[string]string, bool) {
	h.mu.RLock()
	checkers := append([]Checker(nil), h.checkers...)
	h.mu.RUnlock()

	errs := make([]error, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.Check(ctx)
		}()
	}
	wg.Wait()

	results := make(map[string]string, len(checkers))
	healthy := true
	for i, c := range checkers {
		if errs[i] != nil {
			healthy = false
			results[c.Name()] = errs[i].Error()
			h.logger.Warn("readiness check failed", zap.String("check", c.Name()), zap.Error(errs[i]))
			continue
		}
		results[c.Name()] = "ok"
	}
	return results, healthy
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
