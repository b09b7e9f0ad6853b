package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/good-yellow-bee/vitalguard/internal/models"
)

var (
	_ Storage = (*SQLiteStorage)(nil)
	_ Storage = (*PostgresStorage)(nil)
)

type sqlDeviceRepo struct {
	db *sql.DB
	d  dialect
}

const deviceColumns = `id, device_id, name, user_id, patient_json, thresholds_json,
	status_json, created_at, updated_at`

func (r *sqlDeviceRepo) Create(ctx context.Context, device *models.Device) error {
	patient, thresholds, status, err := marshalDevice(device)
	if err != nil {
		return err
	}

	query := `INSERT INTO devices (` + deviceColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, r.d.rebind(query),
		device.ID, device.DeviceID, device.Name, nullString(device.UserID),
		patient, thresholds, status,
		device.CreatedAt.UTC(), device.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert device: %w", err)
	}
	return nil
}

func (r *sqlDeviceRepo) GetByID(ctx context.Context, id string) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`
	return r.scanDevice(r.db.QueryRowContext(ctx, r.d.rebind(query), id))
}

func (r *sqlDeviceRepo) GetByDeviceID(ctx context.Context, deviceID string) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE device_id = ?`
	return r.scanDevice(r.db.QueryRowContext(ctx, r.d.rebind(query), deviceID))
}

func (r *sqlDeviceRepo) Update(ctx context.Context, device *models.Device) error {
	patient, thresholds, status, err := marshalDevice(device)
	if err != nil {
		return err
	}

	query := `
		UPDATE devices SET name = ?, user_id = ?, patient_json = ?, thresholds_json = ?,
			status_json = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, r.d.rebind(query),
		device.Name, nullString(device.UserID), patient, thresholds, status,
		device.UpdatedAt.UTC(), device.ID,
	)
	if err != nil {
		return fmt.Errorf("update device: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("device not found: %s", device.ID)
	}
	return nil
}

func (r *sqlDeviceRepo) List(ctx context.Context) ([]*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}
	defer rows.Close()

	var devices []*models.Device
	for rows.Next() {
		d, err := r.scanDeviceRow(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (r *sqlDeviceRepo) scanDevice(row *sql.Row) (*models.Device, error) {
	d, err := r.scanDeviceRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (r *sqlDeviceRepo) scanDeviceRow(row scanner) (*models.Device, error) {
	d := &models.Device{}
	var userID, patient, thresholds, status sql.NullString

	err := row.Scan(&d.ID, &d.DeviceID, &d.Name, &userID, &patient, &thresholds,
		&status, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan device: %w", err)
	}

	d.UserID = userID.String
	if err := unmarshalJSON(patient, &d.Patient); err != nil {
		return nil, fmt.Errorf("unmarshal patient: %w", err)
	}
	if thresholds.Valid {
		d.Thresholds = &models.ThresholdSet{}
		if err := unmarshalJSON(thresholds, d.Thresholds); err != nil {
			return nil, fmt.Errorf("unmarshal thresholds: %w", err)
		}
	}
	if err := unmarshalJSON(status, &d.Status); err != nil {
		return nil, fmt.Errorf("unmarshal status: %w", err)
	}
	return d, nil
}

func marshalDevice(d *models.Device) (patient string, thresholds sql.NullString, status string, err error) {
	if patient, err = marshalJSON(d.Patient); err != nil {
		return "", thresholds, "", fmt.Errorf("marshal patient: %w", err)
	}
	if d.Thresholds != nil {
		s, err := marshalJSON(d.Thresholds)
		if err != nil {
			return "", thresholds, "", fmt.Errorf("marshal thresholds: %w", err)
		}
		thresholds = sql.NullString{String: s, Valid: true}
	}
	if status, err = marshalJSON(d.Status); err != nil {
		return "", thresholds, "", fmt.Errorf("marshal status: %w", err)
	}
	return patient, thresholds, status, nil
}
