package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration. The SQL must be valid for both
// SQLite and Postgres.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// migrations holds all database migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
			-- Registered devices and their owner record
			CREATE TABLE IF NOT EXISTS devices (
				id TEXT PRIMARY KEY,
				device_id TEXT UNIQUE NOT NULL,
				name TEXT NOT NULL,
				user_id TEXT,
				patient_json TEXT NOT NULL,
				thresholds_json TEXT,
				status_json TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			);

			-- Immutable sensor readings
			CREATE TABLE IF NOT EXISTS readings (
				id TEXT PRIMARY KEY,
				device_id TEXT NOT NULL,
				ts TIMESTAMP NOT NULL,
				payload_json TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL
			);

			-- Alerts derived from readings
			CREATE TABLE IF NOT EXISTS alerts (
				id TEXT PRIMARY KEY,
				device_id TEXT NOT NULL,
				device_name TEXT,
				user_id TEXT,
				type TEXT NOT NULL,
				severity TEXT NOT NULL,
				title TEXT NOT NULL,
				message TEXT NOT NULL,
				trigger_value DOUBLE PRECISION NOT NULL,
				threshold DOUBLE PRECISION NOT NULL,
				unit TEXT,
				reading_id TEXT,
				location_json TEXT,
				status TEXT NOT NULL,
				response_json TEXT NOT NULL,
				notifications_json TEXT NOT NULL,
				context_json TEXT NOT NULL,
				escalation_json TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			);

			-- Indexes
			CREATE INDEX IF NOT EXISTS idx_readings_device_ts ON readings(device_id, ts);
			CREATE INDEX IF NOT EXISTS idx_readings_created ON readings(created_at);
			CREATE INDEX IF NOT EXISTS idx_alerts_device ON alerts(device_id);
			CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);
			CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at);
		`,
	},
}

// runMigrations applies all pending migrations.
func runMigrations(db *sql.DB, d dialect) error {
	// Create migrations table if not exists
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	// Apply pending migrations
	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		// Run migration in transaction
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		_, err = tx.Exec(m.Up)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d (%s): %w", m.Version, m.Name, err)
		}

		_, err = tx.Exec(
			d.rebind("INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)"),
			m.Version, m.Name, time.Now().UTC(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
