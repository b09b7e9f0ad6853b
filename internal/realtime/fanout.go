package realtime

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/vitalguard/internal/models"
)

// RoomGlobal receives every event.
const RoomGlobal = "global"

// Event names.
const (
	EventSensorData         = "sensor-data"
	EventGlobalSensorData   = "global-sensor-data"
	EventDeviceAlert        = "device-alert"
	EventGlobalAlert        = "global-alert"
	EventAlertUpdated       = "alert-updated"
	EventGlobalAlertUpdated = "global-alert-updated"
)

// Publisher delivers one event to one room.
type Publisher interface {
	Publish(ctx context.Context, room, event string, data any) error
}

// ReadingCache stores the latest reading per device.
type ReadingCache interface {
	CacheReading(ctx context.Context, r *models.Reading) error
}

// Fanout maps domain events onto rooms and sends them to every publisher.
// Delivery is best effort: failures are logged and never returned.
type Fanout struct {
	publishers []Publisher
	cache      ReadingCache
	timeout    time.Duration
	logger     *zap.Logger
}

// NewFanout creates a fan-out over publishers. cache may be nil.
func NewFanout(cache ReadingCache, logger *zap.Logger, publishers ...Publisher) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{
		publishers: publishers,
		cache:      cache,
		timeout:    5 * time.Second,
		logger:     logger.Named("fanout"),
	}
}

// ReadingCreated announces a stored reading.
func (f *Fanout) ReadingCreated(r *models.Reading) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	if f.cache != nil {
		if err := f.cache.CacheReading(ctx, r); err != nil {
			f.logger.Warn("failed to cache latest reading",
				zap.String("device_id", r.DeviceID), zap.Error(err))
		}
	}
	f.publish(ctx, DeviceRoom(r.DeviceID), EventSensorData, r)
	f.publish(ctx, RoomGlobal, EventGlobalSensorData, r)
}

// AlertCreated announces a new alert.
func (f *Fanout) AlertCreated(a *models.Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	f.publish(ctx, DeviceRoom(a.DeviceID), EventDeviceAlert, a)
	if a.UserID != "" {
		f.publish(ctx, UserRoom(a.UserID), EventDeviceAlert, a)
	}
	f.publish(ctx, RoomGlobal, EventGlobalAlert, a)
}

// AlertUpdated announces a lifecycle or escalation change.
func (f *Fanout) AlertUpdated(a *models.Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	f.publish(ctx, DeviceRoom(a.DeviceID), EventAlertUpdated, a)
	if a.UserID != "" {
		f.publish(ctx, UserRoom(a.UserID), EventAlertUpdated, a)
	}
	f.publish(ctx, RoomGlobal, EventGlobalAlertUpdated, a)
}

func (f *Fanout) publish(ctx context.Context, room, event string, data any) {
	for _, p := range f.publishers {
		if err := p.Publish(ctx, room, event, data); err != nil {
			f.logger.Warn("realtime publish failed",
				zap.String("room", room), zap.String("event", event), zap.Error(err))
		}
	}
}
