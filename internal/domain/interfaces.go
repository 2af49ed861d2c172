package domain

import (
	"context"
	"time"

	"kitchenprint/internal/database"
	"kitchenprint/internal/models"
	"kitchenprint/internal/transport"
)

type JobStore interface {
	CreateJob(ctx context.Context, job *models.PrintJob) (bool, error)
	GetJob(ctx context.Context, tenantID, jobID int64) (*models.PrintJob, error)
	ClaimPendingJobs(ctx context.Context, deviceID int64, role string, limit int) ([]*models.PrintJob, error)
	AckJob(ctx context.Context, deviceID, jobID int64, status, errorMessage string) (*models.PrintJob, bool, error)
	CompleteDirectJob(ctx context.Context, jobID int64, status, errorMessage string) error
	ReprintJob(ctx context.Context, tenantID, jobID int64, printer *models.Printer) (*models.PrintJob, error)
	ListJobs(ctx context.Context, filter database.JobFilter) ([]*models.PrintJob, error)
	ListStuckJobs(ctx context.Context, tenantID int64, cutoff time.Time) ([]*models.PrintJob, error)
	CountStuckJobs(ctx context.Context, cutoff time.Time) (int, error)
}

type PrinterDirectory interface {
	GetPrinter(ctx context.Context, tenantID, printerID int64) (*models.Printer, error)
	ListPrinters(ctx context.Context, tenantID int64, activeOnly bool) ([]*models.Printer, error)
}

type DeviceStore interface {
	CreateDevice(ctx context.Context, d *models.PrintDevice) error
	GetDevice(ctx context.Context, tenantID, deviceID int64) (*models.PrintDevice, error)
	GetDeviceByTokenHash(ctx context.Context, tokenHash string) (*models.PrintDevice, error)
	ListDevices(ctx context.Context, tenantID int64) ([]*models.PrintDevice, error)
	TouchDevice(ctx context.Context, deviceID int64, at time.Time) error
	SetDeviceVersion(ctx context.Context, deviceID int64, version string) error
	SetDeviceError(ctx context.Context, deviceID int64, lastError string) error
	SetDeviceActive(ctx context.Context, tenantID, deviceID int64, active bool) error
}

type TransportSelector interface {
	For(printerType string) (transport.Transport, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
