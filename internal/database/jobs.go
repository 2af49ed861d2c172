package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"kitchenprint/internal/models"
)

const jobColumns = `id, tenant_id, restaurant_id, printer_id, device_id, order_id, role, status, payload,
	printer_type, target_host, target_port, error_message, attempts, generation, reprint_of,
	created_at, updated_at, claimed_at, completed_at`

// JobFilter narrows ListJobs. TenantID is required.
type JobFilter struct {
	TenantID int64
	Status   string
	OrderID  int64
	From     time.Time
	To       time.Time
	Limit    int
}

// CreateJob inserts a pending job. When a job for the same (tenant, order, printer, role, generation)
// already exists, job is filled from the stored row and created is false.
func (db *DB) CreateJob(ctx context.Context, job *models.PrintJob) (created bool, err error) {
	if !models.ValidRole(job.Role) {
		return false, fmt.Errorf("invalid job role: %q", job.Role)
	}

	now := db.now()
	job.Status = models.JobStatusPending
	query := db.Q(`INSERT INTO print_jobs (
				tenant_id, restaurant_id, printer_id, device_id, order_id, role, status, payload,
				printer_type, target_host, target_port, error_message, attempts, generation, reprint_of,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', 0, ?, ?, ?, ?)
			ON CONFLICT (tenant_id, order_id, printer_id, role, generation) DO NOTHING
			RETURNING id`)
	err = db.QueryRowContext(ctx, query,
		job.TenantID, job.RestaurantID, job.PrinterID, nullInt64(job.DeviceID), job.OrderID, job.Role,
		job.Status, job.Payload, job.PrinterType, job.TargetHost, job.TargetPort, job.Generation,
		nullInt64(job.ReprintOf), now, now,
	).Scan(&job.ID)

	if errors.Is(err, sql.ErrNoRows) {
		existing, getErr := db.findJob(ctx, job.TenantID, job.OrderID, job.PrinterID, job.Role, job.Generation)
		if getErr != nil {
			return false, getErr
		}
		*job = *existing
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create print job: %w", err)
	}

	job.Attempts = 0
	job.CreatedAt = now
	job.UpdatedAt = now
	return true, nil
}

func (db *DB) findJob(ctx context.Context, tenantID, orderID, printerID int64, role string, generation int) (*models.PrintJob, error) {
	query := db.Q(`SELECT ` + jobColumns + ` FROM print_jobs
		WHERE tenant_id = ? AND order_id = ? AND printer_id = ? AND role = ? AND generation = ?`)
	job, err := scanJob(db.QueryRowContext(ctx, query, tenantID, orderID, printerID, role, generation))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find print job: %w", err)
	}
	return job, nil
}

func (db *DB) GetJob(ctx context.Context, tenantID, jobID int64) (*models.PrintJob, error) {
	query := db.Q(`SELECT ` + jobColumns + ` FROM print_jobs WHERE id = ? AND tenant_id = ?`)
	job, err := scanJob(db.QueryRowContext(ctx, query, jobID, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get print job: %w", err)
	}
	return job, nil
}

// ClaimPendingJobs atomically moves up to limit pending jobs of the device to sent and returns them.
// The selection and the update are one statement; concurrent claims never return the same job.
func (db *DB) ClaimPendingJobs(ctx context.Context, deviceID int64, role string, limit int) ([]*models.PrintJob, error) {
	if limit <= 0 {
		limit = models.DefaultPollBatchSize
	}
	now := db.now()

	inner := `SELECT id FROM print_jobs WHERE device_id = ? AND status = ?`
	args := []any{models.JobStatusSent, now, now, deviceID, models.JobStatusPending}
	if role != "" {
		inner += ` AND role = ?`
		args = append(args, role)
	}
	inner += ` ORDER BY id LIMIT ?` + db.dialect.ClaimLock()
	args = append(args, limit, models.JobStatusPending)

	query := db.Q(`UPDATE print_jobs
		SET status = ?, attempts = attempts + 1, claimed_at = ?, updated_at = ?
		WHERE id IN (` + inner + `) AND status = ?
		RETURNING ` + jobColumns)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to claim print jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.PrintJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claimed job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// RETURNING order is unspecified; keep FIFO per destination.
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs, nil
}

// AckJob applies an agent acknowledgment. Only a sent job owned by the device transitions;
// an already terminal job is left untouched and applied is false.
func (db *DB) AckJob(ctx context.Context, deviceID, jobID int64, status, errorMessage string) (job *models.PrintJob, applied bool, err error) {
	if status != models.JobStatusDone && status != models.JobStatusFailed {
		return nil, false, ErrInvalidStatus
	}
	if status == models.JobStatusDone {
		errorMessage = ""
	}

	now := db.now()
	res, err := db.ExecContext(ctx, db.Q(`UPDATE print_jobs
		SET status = ?, error_message = ?, updated_at = ?, completed_at = ?
		WHERE id = ? AND device_id = ? AND status = ?`),
		status, errorMessage, now, now, jobID, deviceID, models.JobStatusSent)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ack print job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to ack print job: %w", err)
	}

	job, err = db.getDeviceJob(ctx, deviceID, jobID)
	if err != nil {
		return nil, false, err
	}
	if n == 1 {
		return job, true, nil
	}
	if job.IsTerminal() {
		return job, false, nil
	}
	return job, false, ErrJobNotClaimed
}

func (db *DB) getDeviceJob(ctx context.Context, deviceID, jobID int64) (*models.PrintJob, error) {
	query := db.Q(`SELECT ` + jobColumns + ` FROM print_jobs WHERE id = ? AND device_id = ?`)
	job, err := scanJob(db.QueryRowContext(ctx, query, jobID, deviceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get print job: %w", err)
	}
	return job, nil
}

// CompleteDirectJob records the outcome of a synchronous server-side send.
// It counts as one attempt and applies only to pending jobs without a device.
func (db *DB) CompleteDirectJob(ctx context.Context, jobID int64, status, errorMessage string) error {
	if status != models.JobStatusDone && status != models.JobStatusFailed {
		return ErrInvalidStatus
	}
	now := db.now()
	res, err := db.ExecContext(ctx, db.Q(`UPDATE print_jobs
		SET status = ?, error_message = ?, attempts = attempts + 1, updated_at = ?, completed_at = ?
		WHERE id = ? AND device_id IS NULL AND status = ?`),
		status, errorMessage, now, now, jobID, models.JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to complete print job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInvalidStatus
	}
	return nil
}

// ReprintJob creates a fresh pending job from an existing one. Payload is copied,
// the destination comes from the printer's current settings. The original row is not modified.
func (db *DB) ReprintJob(ctx context.Context, tenantID, jobID int64, printer *models.Printer) (*models.PrintJob, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	original, err := scanJob(tx.QueryRowContext(ctx,
		db.Q(`SELECT `+jobColumns+` FROM print_jobs WHERE id = ? AND tenant_id = ?`), jobID, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load print job: %w", err)
	}

	var generation int
	err = tx.QueryRowContext(ctx, db.Q(`SELECT COALESCE(MAX(generation), 0) + 1 FROM print_jobs
		WHERE tenant_id = ? AND order_id = ? AND printer_id = ? AND role = ?`),
		tenantID, original.OrderID, original.PrinterID, original.Role).Scan(&generation)
	if err != nil {
		return nil, fmt.Errorf("failed to compute generation: %w", err)
	}

	job := &models.PrintJob{
		TenantID:     original.TenantID,
		RestaurantID: original.RestaurantID,
		PrinterID:    original.PrinterID,
		DeviceID:     original.DeviceID,
		OrderID:      original.OrderID,
		Role:         original.Role,
		Status:       models.JobStatusPending,
		Payload:      original.Payload,
		PrinterType:  original.PrinterType,
		TargetHost:   original.TargetHost,
		TargetPort:   original.TargetPort,
		Generation:   generation,
		ReprintOf:    &original.ID,
	}
	if printer != nil && printer.ID == original.PrinterID {
		job.DeviceID = printer.DeviceID
		job.PrinterType = printer.Type
		job.TargetHost = printer.IPAddress
		job.TargetPort = printer.Port
	}

	now := db.now()
	err = tx.QueryRowContext(ctx, db.Q(`INSERT INTO print_jobs (
				tenant_id, restaurant_id, printer_id, device_id, order_id, role, status, payload,
				printer_type, target_host, target_port, error_message, attempts, generation, reprint_of,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', 0, ?, ?, ?, ?) RETURNING id`),
		job.TenantID, job.RestaurantID, job.PrinterID, nullInt64(job.DeviceID), job.OrderID, job.Role,
		job.Status, job.Payload, job.PrinterType, job.TargetHost, job.TargetPort, job.Generation,
		nullInt64(job.ReprintOf), now, now,
	).Scan(&job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create reprint job: %w", err)
	}
	job.CreatedAt = now
	job.UpdatedAt = now

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reprint: %w", err)
	}
	return job, nil
}

func (db *DB) ListJobs(ctx context.Context, f JobFilter) ([]*models.PrintJob, error) {
	if f.TenantID <= 0 {
		return nil, errors.New("tenant id is required")
	}
	query := `SELECT ` + jobColumns + ` FROM print_jobs WHERE tenant_id = ?`
	args := []any{f.TenantID}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.OrderID > 0 {
		query += ` AND order_id = ?`
		args = append(args, f.OrderID)
	}
	if !f.From.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, f.To.UTC())
	}
	query += ` ORDER BY id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	return db.queryJobs(ctx, query, args...)
}

// stuckWhere matches jobs nobody has printed by cutoff: sent without an ack, or never
// picked up at all.
const stuckWhere = `((status = ? AND claimed_at < ?) OR (status = ? AND created_at < ?))`

func stuckArgs(cutoff time.Time) []any {
	cutoff = cutoff.UTC()
	return []any{models.JobStatusSent, cutoff, models.JobStatusPending, cutoff}
}

// ListStuckJobs returns jobs sent before cutoff and never acknowledged, plus jobs still
// pending since before cutoff.
func (db *DB) ListStuckJobs(ctx context.Context, tenantID int64, cutoff time.Time) ([]*models.PrintJob, error) {
	query := `SELECT ` + jobColumns + ` FROM print_jobs
		WHERE tenant_id = ? AND ` + stuckWhere + ` ORDER BY COALESCE(claimed_at, created_at), id`
	return db.queryJobs(ctx, query, append([]any{tenantID}, stuckArgs(cutoff)...)...)
}

// CountStuckJobs counts stuck jobs across all tenants.
func (db *DB) CountStuckJobs(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, db.Q(`SELECT COUNT(*) FROM print_jobs WHERE `+stuckWhere),
		stuckArgs(cutoff)...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count stuck jobs: %w", err)
	}
	return count, nil
}

func (db *DB) queryJobs(ctx context.Context, query string, args ...any) ([]*models.PrintJob, error) {
	rows, err := db.QueryContext(ctx, db.Q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list print jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.PrintJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan print job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row rowScanner) (*models.PrintJob, error) {
	var (
		job                  models.PrintJob
		deviceID, reprintOf  sql.NullInt64
		claimedAt, completed sql.NullTime
	)
	err := row.Scan(&job.ID, &job.TenantID, &job.RestaurantID, &job.PrinterID, &deviceID, &job.OrderID,
		&job.Role, &job.Status, &job.Payload, &job.PrinterType, &job.TargetHost, &job.TargetPort,
		&job.ErrorMessage, &job.Attempts, &job.Generation, &reprintOf,
		&job.CreatedAt, &job.UpdatedAt, &claimedAt, &completed)
	if err != nil {
		return nil, err
	}
	job.DeviceID = int64Ptr(deviceID)
	job.ReprintOf = int64Ptr(reprintOf)
	job.ClaimedAt = timePtr(claimedAt)
	job.CompletedAt = timePtr(completed)
	return &job, nil
}
