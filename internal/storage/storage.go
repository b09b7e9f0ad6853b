// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"time"

	"github.com/good-yellow-bee/vitalguard/internal/models"
)

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error
	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Repository accessors
	Devices() DeviceRepository
	Readings() ReadingRepository
	Alerts() AlertRepository
}

// DeviceRepository defines operations for device registration records.
// Get methods return nil, nil when the device does not exist.
type DeviceRepository interface {
	Create(ctx context.Context, device *models.Device) error
	GetByID(ctx context.Context, id string) (*models.Device, error)
	GetByDeviceID(ctx context.Context, deviceID string) (*models.Device, error)
	Update(ctx context.Context, device *models.Device) error
	List(ctx context.Context) ([]*models.Device, error)
}

// ReadingRepository stores readings. Readings are immutable, so there is no
// update operation.
type ReadingRepository interface {
	Create(ctx context.Context, reading *models.Reading) error
	GetByID(ctx context.Context, id string) (*models.Reading, error)
	List(ctx context.Context, filter ReadingFilter) ([]*models.Reading, int64, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AlertRepository stores alerts.
type AlertRepository interface {
	Create(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	// Update writes lifecycle and escalation state only while the stored
	// status still equals from. It reports false when the alert is gone or
	// another writer changed its status first. Delivery tracking is written
	// separately by UpdateNotifications.
	Update(ctx context.Context, alert *models.Alert, from models.AlertStatus) (bool, error)
	// UpdateNotifications writes only delivery tracking, leaving lifecycle
	// columns untouched.
	UpdateNotifications(ctx context.Context, id string, n models.NotificationStatus, updatedAt time.Time) error
	List(ctx context.Context, filter AlertFilter) ([]*models.Alert, int64, error)
	ListActive(ctx context.Context) ([]*models.Alert, error)
	// DeleteClosedBefore removes resolved and false-positive alerts created
	// before the cutoff. Active and acknowledged alerts are kept.
	DeleteClosedBefore(ctx context.Context, before time.Time) (int64, error)
}

// ReadingFilter selects readings. A zero Limit returns every match.
type ReadingFilter struct {
	DeviceID string
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

// AlertFilter selects alerts. A zero Limit returns every match.
type AlertFilter struct {
	DeviceID string
	Status   models.AlertStatus
	Severity models.Severity
	Type     models.AlertType
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}
