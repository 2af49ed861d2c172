package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"kitchenprint/internal/models"
)

const printerColumns = `id, tenant_id, restaurant_id, name, type, ip_address, port, paper_width,
	is_receipt, is_active, device_id, created_at, updated_at`

func (db *DB) CreatePrinter(ctx context.Context, p *models.Printer) error {
	if !models.ValidPrinterType(p.Type) {
		return fmt.Errorf("invalid printer type: %q", p.Type)
	}
	if p.PaperWidth == 0 {
		p.PaperWidth = models.DefaultPaperWidth
	}
	if p.Type == models.PrinterTypeNetwork && p.Port == 0 {
		p.Port = models.DefaultPrinterPort
	}

	now := db.now()
	query := db.Q(`INSERT INTO printers (
				tenant_id, restaurant_id, name, type, ip_address, port, paper_width,
				is_receipt, is_active, device_id, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := db.QueryRowContext(ctx, query,
		p.TenantID, p.RestaurantID, p.Name, p.Type, p.IPAddress, p.Port, p.PaperWidth,
		p.IsReceipt, p.IsActive, nullInt64(p.DeviceID), now, now,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create printer: %w", err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now

	if len(p.CategoryIDs) > 0 {
		return db.SetPrinterCategories(ctx, p.TenantID, p.ID, p.CategoryIDs)
	}
	return nil
}

// SetPrinterCategories replaces the printer's category associations.
func (db *DB) SetPrinterCategories(ctx context.Context, tenantID, printerID int64, categoryIDs []int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists int
	err = tx.QueryRowContext(ctx, db.Q(`SELECT COUNT(*) FROM printers WHERE id = ? AND tenant_id = ?`),
		printerID, tenantID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check printer: %w", err)
	}
	if exists == 0 {
		return ErrPrinterNotFound
	}

	if _, err := tx.ExecContext(ctx, db.Q(`DELETE FROM printer_categories WHERE printer_id = ?`), printerID); err != nil {
		return fmt.Errorf("failed to clear printer categories: %w", err)
	}

	seen := make(map[int64]bool, len(categoryIDs))
	for _, categoryID := range categoryIDs {
		if seen[categoryID] {
			continue
		}
		seen[categoryID] = true
		if _, err := tx.ExecContext(ctx, db.Q(`INSERT INTO printer_categories (printer_id, category_id) VALUES (?, ?)`),
			printerID, categoryID); err != nil {
			return fmt.Errorf("failed to add printer category: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, db.Q(`UPDATE printers SET updated_at = ? WHERE id = ?`), db.now(), printerID); err != nil {
		return fmt.Errorf("failed to touch printer: %w", err)
	}
	return tx.Commit()
}

// BindPrinterDevice makes a printer agent-mediated (deviceID set) or direct (nil).
// A device restricted to one role can only take a printer that receives nothing else.
func (db *DB) BindPrinterDevice(ctx context.Context, tenantID, printerID int64, deviceID *int64) error {
	if deviceID != nil {
		device, err := db.GetDevice(ctx, tenantID, *deviceID)
		if err != nil {
			return err
		}
		if device.Role != "" {
			printer, err := db.GetPrinter(ctx, tenantID, printerID)
			if err != nil {
				return err
			}
			for _, role := range printer.Roles() {
				if role != device.Role {
					return fmt.Errorf("%w: device %d claims %s, printer %d also gets %s",
						ErrRoleMismatch, device.ID, device.Role, printer.ID, role)
				}
			}
		}
	}

	res, err := db.ExecContext(ctx, db.Q(`UPDATE printers SET device_id = ?, updated_at = ? WHERE id = ? AND tenant_id = ?`),
		nullInt64(deviceID), db.now(), printerID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to bind printer device: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPrinterNotFound
	}
	return nil
}

func (db *DB) SetPrinterActive(ctx context.Context, tenantID, printerID int64, active bool) error {
	res, err := db.ExecContext(ctx, db.Q(`UPDATE printers SET is_active = ?, updated_at = ? WHERE id = ? AND tenant_id = ?`),
		active, db.now(), printerID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to update printer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPrinterNotFound
	}
	return nil
}

func (db *DB) GetPrinter(ctx context.Context, tenantID, printerID int64) (*models.Printer, error) {
	query := db.Q(`SELECT ` + printerColumns + ` FROM printers WHERE id = ? AND tenant_id = ?`)
	p, err := scanPrinter(db.QueryRowContext(ctx, query, printerID, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPrinterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get printer: %w", err)
	}

	if err := db.loadCategories(ctx, tenantID, []*models.Printer{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPrinters returns the tenant's printers with categories. activeOnly filters inactive ones.
func (db *DB) ListPrinters(ctx context.Context, tenantID int64, activeOnly bool) ([]*models.Printer, error) {
	query := `SELECT ` + printerColumns + ` FROM printers WHERE tenant_id = ?`
	args := []any{tenantID}
	if activeOnly {
		query += ` AND is_active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY id`

	rows, err := db.QueryContext(ctx, db.Q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list printers: %w", err)
	}
	defer rows.Close()

	var printers []*models.Printer
	for rows.Next() {
		p, err := scanPrinter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan printer: %w", err)
		}
		printers = append(printers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := db.loadCategories(ctx, tenantID, printers); err != nil {
		return nil, err
	}
	return printers, nil
}

func (db *DB) loadCategories(ctx context.Context, tenantID int64, printers []*models.Printer) error {
	if len(printers) == 0 {
		return nil
	}
	byID := make(map[int64]*models.Printer, len(printers))
	for _, p := range printers {
		p.CategoryIDs = nil
		byID[p.ID] = p
	}

	query := db.Q(`SELECT pc.printer_id, pc.category_id
		FROM printer_categories pc
		JOIN printers p ON p.id = pc.printer_id
		WHERE p.tenant_id = ?
		ORDER BY pc.printer_id, pc.category_id`)
	rows, err := db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return fmt.Errorf("failed to load printer categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var printerID, categoryID int64
		if err := rows.Scan(&printerID, &categoryID); err != nil {
			return fmt.Errorf("failed to scan printer category: %w", err)
		}
		if p, ok := byID[printerID]; ok {
			p.CategoryIDs = append(p.CategoryIDs, categoryID)
		}
	}
	for _, p := range printers {
		sort.Slice(p.CategoryIDs, func(i, j int) bool { return p.CategoryIDs[i] < p.CategoryIDs[j] })
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrinter(row rowScanner) (*models.Printer, error) {
	var (
		p        models.Printer
		deviceID sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.TenantID, &p.RestaurantID, &p.Name, &p.Type, &p.IPAddress, &p.Port,
		&p.PaperWidth, &p.IsReceipt, &p.IsActive, &deviceID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.DeviceID = int64Ptr(deviceID)
	p.Name = strings.TrimSpace(p.Name)
	return &p, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}
