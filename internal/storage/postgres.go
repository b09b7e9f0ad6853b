package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Postgres driver, registered as "postgres".
	_ "github.com/lib/pq"
)

// PostgresConfig holds Postgres connection pool settings.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PostgresStorage implements Storage using Postgres.
type PostgresStorage struct {
	sqlStore
	cfg PostgresConfig
}

// NewPostgresStorage creates a new Postgres storage.
func NewPostgresStorage(cfg PostgresConfig) *PostgresStorage {
	return &PostgresStorage{cfg: cfg}
}

// newPostgresWithDB wraps an already open connection.
func newPostgresWithDB(db *sql.DB) *PostgresStorage {
	s := &PostgresStorage{}
	s.init(db, dialectPostgres)
	return s
}

// Open initializes the database connection.
func (s *PostgresStorage) Open() error {
	if s.cfg.DSN == "" {
		return fmt.Errorf("postgres dsn is required")
	}

	db, err := sql.Open("postgres", s.cfg.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	if s.cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	}
	if s.cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	}
	if s.cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	s.init(db, dialectPostgres)
	return nil
}
