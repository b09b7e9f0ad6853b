package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/good-yellow-bee/vitalguard/internal/models"
)

type sqlAlertRepo struct {
	db *sql.DB
	d  dialect
}

const alertColumns = `id, device_id, device_name, user_id, type, severity, title, message,
	trigger_value, threshold, unit, reading_id, location_json, status, response_json,
	notifications_json, context_json, escalation_json, created_at, updated_at`

// alertJSON holds the nested alert blocks encoded for their TEXT columns.
type alertJSON struct {
	location      sql.NullString
	response      string
	notifications string
	context       string
	escalation    string
}

func encodeAlert(a *models.Alert) (alertJSON, error) {
	var enc alertJSON
	var err error
	if a.Location != nil {
		s, err := marshalJSON(a.Location)
		if err != nil {
			return enc, fmt.Errorf("marshal location: %w", err)
		}
		enc.location = sql.NullString{String: s, Valid: true}
	}
	if enc.response, err = marshalJSON(a.Response); err != nil {
		return enc, fmt.Errorf("marshal response: %w", err)
	}
	if enc.notifications, err = marshalJSON(a.Notifications); err != nil {
		return enc, fmt.Errorf("marshal notifications: %w", err)
	}
	if enc.context, err = marshalJSON(a.Context); err != nil {
		return enc, fmt.Errorf("marshal context: %w", err)
	}
	if enc.escalation, err = marshalJSON(a.Escalation); err != nil {
		return enc, fmt.Errorf("marshal escalation: %w", err)
	}
	return enc, nil
}

func (r *sqlAlertRepo) Create(ctx context.Context, a *models.Alert) error {
	enc, err := encodeAlert(a)
	if err != nil {
		return err
	}

	query := `INSERT INTO alerts (` + alertColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, r.d.rebind(query),
		a.ID, a.DeviceID, nullString(a.DeviceName), nullString(a.UserID),
		string(a.Type), string(a.Severity), a.Title, a.Message,
		a.TriggerValue, a.Threshold, nullString(a.Unit), nullString(a.ReadingID),
		enc.location, string(a.Status), enc.response, enc.notifications, enc.context, enc.escalation,
		a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (r *sqlAlertRepo) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = ?`
	a, err := r.scanAlert(r.db.QueryRowContext(ctx, r.d.rebind(query), id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (r *sqlAlertRepo) Update(ctx context.Context, a *models.Alert, from models.AlertStatus) (bool, error) {
	enc, err := encodeAlert(a)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE alerts SET status = ?, response_json = ?, escalation_json = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := r.db.ExecContext(ctx, r.d.rebind(query),
		string(a.Status), enc.response, enc.escalation, a.UpdatedAt.UTC(), a.ID, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("update alert: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update alert: %w", err)
	}
	return rows > 0, nil
}

func (r *sqlAlertRepo) UpdateNotifications(ctx context.Context, id string, n models.NotificationStatus, updatedAt time.Time) error {
	notifications, err := marshalJSON(n)
	if err != nil {
		return fmt.Errorf("marshal notifications: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		r.d.rebind("UPDATE alerts SET notifications_json = ?, updated_at = ? WHERE id = ?"),
		notifications, updatedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update alert notifications: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert not found: %s", id)
	}
	return nil
}

func (r *sqlAlertRepo) List(ctx context.Context, filter AlertFilter) ([]*models.Alert, int64, error) {
	var where whereBuilder
	if filter.DeviceID != "" {
		where.add("device_id = ?", filter.DeviceID)
	}
	if filter.Status != "" {
		where.add("status = ?", string(filter.Status))
	}
	if filter.Severity != "" {
		where.add("severity = ?", string(filter.Severity))
	}
	if filter.Type != "" {
		where.add("type = ?", string(filter.Type))
	}
	where.addTimeRange("created_at", filter.From, filter.To)

	var total int64
	countQuery := r.d.rebind("SELECT COUNT(*) FROM alerts" + where.String())
	if err := r.db.QueryRowContext(ctx, countQuery, where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}

	limit, limitArgs := limitClause(filter.Limit, filter.Offset)
	query := r.d.rebind("SELECT " + alertColumns + " FROM alerts" + where.String() +
		" ORDER BY created_at DESC" + limit)
	alerts, err := r.query(ctx, query, append(where.args, limitArgs...)...)
	if err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

func (r *sqlAlertRepo) ListActive(ctx context.Context) ([]*models.Alert, error) {
	query := r.d.rebind("SELECT " + alertColumns + " FROM alerts WHERE status = ? ORDER BY created_at")
	return r.query(ctx, query, string(models.AlertStatusActive))
}

func (r *sqlAlertRepo) DeleteClosedBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		r.d.rebind("DELETE FROM alerts WHERE status IN (?, ?) AND created_at < ?"),
		string(models.AlertStatusResolved), string(models.AlertStatusFalsePositive), before.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete alerts: %w", err)
	}
	return result.RowsAffected()
}

func (r *sqlAlertRepo) query(ctx context.Context, query string, args ...interface{}) ([]*models.Alert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		a, err := r.scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (r *sqlAlertRepo) scanAlert(row scanner) (*models.Alert, error) {
	a := &models.Alert{}
	var deviceName, userID, unit, readingID sql.NullString
	var location, response, notifications, snapshot, escalation sql.NullString
	var typ, severity, status string

	err := row.Scan(
		&a.ID, &a.DeviceID, &deviceName, &userID, &typ, &severity, &a.Title, &a.Message,
		&a.TriggerValue, &a.Threshold, &unit, &readingID, &location, &status, &response,
		&notifications, &snapshot, &escalation, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}

	a.DeviceName = deviceName.String
	a.UserID = userID.String
	a.Unit = unit.String
	a.ReadingID = readingID.String
	a.Type = models.AlertType(typ)
	a.Severity = models.Severity(severity)
	a.Status = models.AlertStatus(status)

	if location.Valid {
		a.Location = &models.Location{}
		if err := unmarshalJSON(location, a.Location); err != nil {
			return nil, fmt.Errorf("unmarshal location: %w", err)
		}
	}
	if err := unmarshalJSON(response, &a.Response); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if err := unmarshalJSON(notifications, &a.Notifications); err != nil {
		return nil, fmt.Errorf("unmarshal notifications: %w", err)
	}
	if err := unmarshalJSON(snapshot, &a.Context); err != nil {
		return nil, fmt.Errorf("unmarshal context: %w", err)
	}
	if err := unmarshalJSON(escalation, &a.Escalation); err != nil {
		return nil, fmt.Errorf("unmarshal escalation: %w", err)
	}
	return a, nil
}
