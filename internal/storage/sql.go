package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dialect adapts the shared queries, which are written with ? placeholders,
// to a driver.
type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// rebind rewrites ? placeholders to $1..$n for Postgres.
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// sqlStore holds the repositories shared by the SQLite and Postgres backends.
type sqlStore struct {
	db      *sql.DB
	dialect dialect

	devices  *sqlDeviceRepo
	readings *sqlReadingRepo
	alerts   *sqlAlertRepo
}

func (s *sqlStore) init(db *sql.DB, d dialect) {
	s.db = db
	s.dialect = d
	s.devices = &sqlDeviceRepo{db: db, d: d}
	s.readings = &sqlReadingRepo{db: db, d: d}
	s.alerts = &sqlAlertRepo{db: db, d: d}
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying database connection for health checks.
func (s *sqlStore) DB() *sql.DB {
	return s.db
}

// Migrate runs database migrations.
func (s *sqlStore) Migrate() error {
	return runMigrations(s.db, s.dialect)
}

// Ping verifies the database is reachable.
func (s *sqlStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not open")
	}
	return s.db.PingContext(ctx)
}

// Devices returns the device repository.
func (s *sqlStore) Devices() DeviceRepository {
	return s.devices
}

// Readings returns the reading repository.
func (s *sqlStore) Readings() ReadingRepository {
	return s.readings
}

// Alerts returns the alert repository.
func (s *sqlStore) Alerts() AlertRepository {
	return s.alerts
}

// whereBuilder collects AND-ed conditions with their arguments.
type whereBuilder struct {
	conds []string
	args  []interface{}
}

func (w *whereBuilder) add(cond string, arg interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, arg)
}

func (w *whereBuilder) addTimeRange(column string, from, to time.Time) {
	if !from.IsZero() {
		w.add(column+" >= ?", from.UTC())
	}
	if !to.IsZero() {
		w.add(column+" <= ?", to.UTC())
	}
}

func (w *whereBuilder) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func limitClause(limit, offset int) (string, []interface{}) {
	if limit <= 0 {
		return "", nil
	}
	return " LIMIT ? OFFSET ?", []interface{}{limit, offset}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// Helper functions

func marshalJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalJSON(s sql.NullString, v interface{}) error {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), v)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
