package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kitchenprint/internal/models"
)

const deviceColumns = `id, tenant_id, restaurant_id, name, role, token_hash, last_seen_at,
	last_error, agent_version, is_active, created_at, updated_at`

// CreateDevice stores a device registration. TokenHash must already be set.
func (db *DB) CreateDevice(ctx context.Context, d *models.PrintDevice) error {
	if d.TokenHash == "" {
		return errors.New("device token hash is required")
	}
	now := db.now()
	query := db.Q(`INSERT INTO print_devices (
				tenant_id, restaurant_id, name, role, token_hash, last_error, agent_version,
				is_active, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, '', '', ?, ?, ?) RETURNING id`)
	err := db.QueryRowContext(ctx, query,
		d.TenantID, d.RestaurantID, d.Name, d.Role, d.TokenHash, d.IsActive, now, now,
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	d.CreatedAt = now
	d.UpdatedAt = now
	return nil
}

// GetDeviceByTokenHash resolves a credential hash to a device, active or not.
func (db *DB) GetDeviceByTokenHash(ctx context.Context, tokenHash string) (*models.PrintDevice, error) {
	query := db.Q(`SELECT ` + deviceColumns + ` FROM print_devices WHERE token_hash = ?`)
	d, err := scanDevice(db.QueryRowContext(ctx, query, tokenHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return d, nil
}

func (db *DB) GetDevice(ctx context.Context, tenantID, deviceID int64) (*models.PrintDevice, error) {
	query := db.Q(`SELECT ` + deviceColumns + ` FROM print_devices WHERE id = ? AND tenant_id = ?`)
	d, err := scanDevice(db.QueryRowContext(ctx, query, deviceID, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return d, nil
}

// ListDevices returns the tenant's devices. tenantID 0 lists active devices of all tenants.
func (db *DB) ListDevices(ctx context.Context, tenantID int64) ([]*models.PrintDevice, error) {
	query := `SELECT ` + deviceColumns + ` FROM print_devices`
	var args []any
	if tenantID > 0 {
		query += ` WHERE tenant_id = ?`
		args = append(args, tenantID)
	} else {
		query += ` WHERE is_active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY id`

	rows, err := db.QueryContext(ctx, db.Q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []*models.PrintDevice
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// TouchDevice records a successful protocol call.
func (db *DB) TouchDevice(ctx context.Context, deviceID int64, at time.Time) error {
	_, err := db.ExecContext(ctx, db.Q(`UPDATE print_devices SET last_seen_at = ?, updated_at = ? WHERE id = ?`),
		at.UTC(), db.now(), deviceID)
	if err != nil {
		return fmt.Errorf("failed to touch device: %w", err)
	}
	return nil
}

// SetDeviceVersion stores the agent version the device reported.
func (db *DB) SetDeviceVersion(ctx context.Context, deviceID int64, version string) error {
	_, err := db.ExecContext(ctx, db.Q(`UPDATE print_devices SET agent_version = ?, updated_at = ? WHERE id = ?`),
		version, db.now(), deviceID)
	if err != nil {
		return fmt.Errorf("failed to record device version: %w", err)
	}
	return nil
}

// SetDeviceError stores the message of the device's latest failed print.
func (db *DB) SetDeviceError(ctx context.Context, deviceID int64, lastError string) error {
	_, err := db.ExecContext(ctx, db.Q(`UPDATE print_devices SET last_error = ?, updated_at = ? WHERE id = ?`),
		lastError, db.now(), deviceID)
	if err != nil {
		return fmt.Errorf("failed to record device error: %w", err)
	}
	return nil
}

func (db *DB) SetDeviceActive(ctx context.Context, tenantID, deviceID int64, active bool) error {
	res, err := db.ExecContext(ctx, db.Q(`UPDATE print_devices SET is_active = ?, updated_at = ? WHERE id = ? AND tenant_id = ?`),
		active, db.now(), deviceID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func scanDevice(row rowScanner) (*models.PrintDevice, error) {
	var (
		d        models.PrintDevice
		lastSeen sql.NullTime
	)
	err := row.Scan(&d.ID, &d.TenantID, &d.RestaurantID, &d.Name, &d.Role, &d.TokenHash, &lastSeen,
		&d.LastError, &d.AgentVersion, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.LastSeenAt = timePtr(lastSeen)
	return &d, nil
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
