package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/good-yellow-bee/vitalguard/internal/alerting"
	"github.com/good-yellow-bee/vitalguard/internal/metrics"
	"github.com/good-yellow-bee/vitalguard/internal/models"
)

// Ingestion sources, used as a metrics label.
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

// DeviceStore looks up and updates registered devices. GetByDeviceID returns
// nil, nil for an unknown device.
type DeviceStore interface {
	GetByDeviceID(ctx context.Context, deviceID string) (*models.Device, error)
	Update(ctx context.Context, device *models.Device) error
}

// ReadingStore persists readings.
type ReadingStore interface {
	Create(ctx context.Context, reading *models.Reading) error
}

// AlertRecorder persists alerts for classifications.
type AlertRecorder interface {
	Record(ctx context.Context, c alerting.Classification, reading *models.Reading, device *models.Device) (*models.Alert, error)
}

// Dispatcher sends notifications for a new alert.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert *models.Alert) error
}

// Broadcaster pushes new readings and alerts to subscribers.
type Broadcaster interface {
	ReadingCreated(reading *models.Reading)
	AlertCreated(alert *models.Alert)
}

// Deps are the collaborators of the ingestion service. Dispatcher and
// Broadcaster may be nil.
type Deps struct {
	Devices     DeviceStore
	Readings    ReadingStore
	Recorder    AlertRecorder
	Dispatcher  Dispatcher
	Broadcaster Broadcaster
}

// Config holds ingestion settings.
type Config struct {
	Thresholds      models.Thresholds
	DispatchTimeout time.Duration
}

// Result is returned to the device after a reading is accepted.
type Result struct {
	ReadingID       string   `json:"readingId"`
	AlertsGenerated int      `json:"alertsGenerated"`
	AlertIDs        []string `json:"alertIds"`
}

// Service runs the ingestion pipeline. Persistence and alert recording are
// synchronous; notification and broadcast run on tracked goroutines.
type Service struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewService creates an ingestion service.
func NewService(deps Deps, cfg Config, logger *zap.Logger) *Service {
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{deps: deps, cfg: cfg, logger: logger, now: time.Now}
}

// Ingest validates, stores and evaluates a reading. It returns a
// *ValidationError, *alerting.NotFoundError or *alerting.PersistenceError
// on failure. Notification failures never reach the caller.
func (s *Service) Ingest(ctx context.Context, r *models.Reading, source string) (*Result, error) {
	start := s.now()
	now := start.UTC()

	if err := Validate(r); err != nil {
		metrics.ReadingsIngested.WithLabelValues(source, "invalid").Inc()
		return nil, err
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = now
	}

	device, err := s.deps.Devices.GetByDeviceID(ctx, r.DeviceID)
	if err != nil {
		metrics.ReadingsIngested.WithLabelValues(source, "error").Inc()
		return nil, &alerting.PersistenceError{Op: "get device", Err: err}
	}
	if device == nil {
		metrics.ReadingsIngested.WithLabelValues(source, "unknown_device").Inc()
		return nil, &alerting.NotFoundError{Kind: "device", ID: r.DeviceID}
	}

	r.ID = uuid.New().String()
	r.CreatedAt = now
	if err := s.deps.Readings.Create(ctx, r); err != nil {
		metrics.ReadingsIngested.WithLabelValues(source, "error").Inc()
		metrics.StorageErrors.WithLabelValues("create_reading").Inc()
		return nil, &alerting.PersistenceError{Op: "create reading", Err: err}
	}

	thresholds := models.EffectiveThresholds(device.Thresholds, s.cfg.Thresholds)

	device.ApplyTelemetry(r, thresholds)
	device.UpdatedAt = now
	if err := s.deps.Devices.Update(ctx, device); err != nil {
		// The reading is already stored; a stale status is not worth failing it.
		metrics.StorageErrors.WithLabelValues("update_device").Inc()
		s.logger.Warn("update device telemetry",
			zap.String("device_id", r.DeviceID), zap.Error(err))
	}

	result := &Result{ReadingID: r.ID, AlertIDs: []string{}}
	var alerts []*models.Alert
	var recordErr error
	for _, c := range alerting.Evaluate(r, thresholds, device.Name) {
		alert, err := s.deps.Recorder.Record(ctx, c, r, device)
		if err != nil {
			metrics.StorageErrors.WithLabelValues("create_alert").Inc()
			recordErr = err
			break
		}
		metrics.AlertsCreated.WithLabelValues(string(alert.Type), string(alert.Severity)).Inc()
		alerts = append(alerts, alert)
		result.AlertIDs = append(result.AlertIDs, alert.ID)
	}
	result.AlertsGenerated = len(alerts)

	s.fanOut(ctx, r, alerts)

	metrics.IngestDuration.Observe(time.Since(start).Seconds())
	if recordErr != nil {
		metrics.ReadingsIngested.WithLabelValues(source, "error").Inc()
		return nil, recordErr
	}
	metrics.ReadingsIngested.WithLabelValues(source, "accepted").Inc()

	if len(alerts) > 0 {
		s.logger.Info("alerts raised",
			zap.String("device_id", r.DeviceID),
			zap.String("reading_id", r.ID),
			zap.Strings("alert_ids", result.AlertIDs))
	}
	return result, nil
}

// fanOut broadcasts and dispatches in the background. The dispatch context
// is detached from the request so it outlives the HTTP response.
func (s *Service) fanOut(ctx context.Context, r *models.Reading, alerts []*models.Alert) {
	if s.deps.Broadcaster == nil && (s.deps.Dispatcher == nil || len(alerts) == 0) {
		return
	}
	detached := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if s.deps.Broadcaster != nil {
			s.deps.Broadcaster.ReadingCreated(r)
			for _, a := range alerts {
				s.deps.Broadcaster.AlertCreated(a)
			}
		}
		if s.deps.Dispatcher == nil {
			return
		}
		for _, a := range alerts {
			dctx, cancel := context.WithTimeout(detached, s.cfg.DispatchTimeout)
			if err := s.deps.Dispatcher.Dispatch(dctx, a); err != nil {
				s.logger.Warn("notification dispatch failed",
					zap.String("alert_id", a.ID), zap.Error(err))
			}
			cancel()
		}
	}()
}

// Wait blocks until background notification and broadcast work finishes.
func (s *Service) Wait() {
	s.wg.Wait()
}
