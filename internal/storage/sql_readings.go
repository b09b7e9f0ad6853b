package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/good-yellow-bee/vitalguard/internal/models"
)

type sqlReadingRepo struct {
	db *sql.DB
	d  dialect
}

func (r *sqlReadingRepo) Create(ctx context.Context, reading *models.Reading) error {
	payload, err := marshalJSON(reading)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}

	query := `INSERT INTO readings (id, device_id, ts, payload_json, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, r.d.rebind(query),
		reading.ID, reading.DeviceID, reading.Timestamp.UTC(), payload, reading.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

func (r *sqlReadingRepo) GetByID(ctx context.Context, id string) (*models.Reading, error) {
	var payload sql.NullString
	err := r.db.QueryRowContext(ctx, r.d.rebind(`SELECT payload_json FROM readings WHERE id = ?`), id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reading: %w", err)
	}
	reading := &models.Reading{}
	if err := unmarshalJSON(payload, reading); err != nil {
		return nil, fmt.Errorf("unmarshal reading: %w", err)
	}
	return reading, nil
}

func (r *sqlReadingRepo) List(ctx context.Context, filter ReadingFilter) ([]*models.Reading, int64, error) {
	var where whereBuilder
	if filter.DeviceID != "" {
		where.add("device_id = ?", filter.DeviceID)
	}
	where.addTimeRange("ts", filter.From, filter.To)

	var total int64
	countQuery := r.d.rebind("SELECT COUNT(*) FROM readings" + where.String())
	if err := r.db.QueryRowContext(ctx, countQuery, where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count readings: %w", err)
	}

	limit, limitArgs := limitClause(filter.Limit, filter.Offset)
	query := r.d.rebind("SELECT payload_json FROM readings" + where.String() + " ORDER BY ts DESC" + limit)
	rows, err := r.db.QueryContext(ctx, query, append(where.args, limitArgs...)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	var readings []*models.Reading
	for rows.Next() {
		var payload sql.NullString
		if err := rows.Scan(&payload); err != nil {
			return nil, 0, fmt.Errorf("scan reading: %w", err)
		}
		reading := &models.Reading{}
		if err := unmarshalJSON(payload, reading); err != nil {
			return nil, 0, fmt.Errorf("unmarshal reading: %w", err)
		}
		readings = append(readings, reading)
	}
	return readings, total, rows.Err()
}

func (r *sqlReadingRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.d.rebind("DELETE FROM readings WHERE created_at < ?"), before.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete readings: %w", err)
	}
	return result.RowsAffected()
}
