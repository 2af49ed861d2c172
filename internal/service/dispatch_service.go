package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"kitchenprint/internal/database"
	"kitchenprint/internal/domain"
	"kitchenprint/internal/events"
	"kitchenprint/internal/metrics"
	"kitchenprint/internal/models"
	"kitchenprint/internal/routing"
	"kitchenprint/internal/ticket"
	"kitchenprint/internal/transport"

	"github.com/rs/zerolog"
)

// DispatchResult summarizes what happened to one order. Per-destination failures are recorded, never returned.
type DispatchResult struct {
	TenantID int64              `json:"tenant_id"`
	OrderID  int64              `json:"order_id"`
	Jobs     []*models.PrintJob `json:"jobs"`
	Errors   []string           `json:"errors,omitempty"`
	// Unrouted lists items that no kitchen ticket carries.
	Unrouted []models.OrderItem `json:"unrouted,omitempty"`
}

type DispatchService struct {
	jobs          domain.JobStore
	printers      domain.PrinterDirectory
	transports    domain.TransportSelector
	events        domain.EventPublisher
	resolver      *routing.Resolver
	renderer      *ticket.Renderer
	directTimeout time.Duration
	now           func() time.Time
	logger        *zerolog.Logger
}

func NewDispatchService(
	jobs domain.JobStore,
	printers domain.PrinterDirectory,
	transports domain.TransportSelector,
	eventBus domain.EventPublisher,
	resolver *routing.Resolver,
	renderer *ticket.Renderer,
	directTimeout time.Duration,
	logger *zerolog.Logger,
) *DispatchService {
	if directTimeout <= 0 {
		directTimeout = models.DirectSendTimeout
	}
	return &DispatchService{
		jobs:          jobs,
		printers:      printers,
		transports:    transports,
		events:        eventBus,
		resolver:      resolver,
		renderer:      renderer,
		directTimeout: directTimeout,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        logger,
	}
}

// HandleOrder turns an order into print jobs. Jobs for printers without a device are sent
// immediately; the rest wait for the device to poll. Only an invalid order is an error.
// Canceling ctx does not abort dispatch: every created job reaches a recorded outcome.
func (s *DispatchService) HandleOrder(ctx context.Context, tenantID int64, order *models.Order) (*DispatchResult, error) {
	ctx = context.WithoutCancel(ctx)
	if order == nil {
		return nil, fmt.Errorf("%w: empty order", ErrInvalidOrder)
	}
	if order.TenantID == 0 {
		order.TenantID = tenantID
	}
	if order.TenantID != tenantID {
		return nil, fmt.Errorf("%w: tenant mismatch", ErrInvalidOrder)
	}
	if err := order.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = s.now()
	}

	result := &DispatchResult{TenantID: tenantID, OrderID: order.OrderID}
	log := s.logger.With().Int64("tenant_id", tenantID).Int64("order_id", order.OrderID).Logger()

	printers, err := s.printers.ListPrinters(ctx, tenantID, true)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load printers")
		result.Errors = append(result.Errors, err.Error())
		return result, nil
	}

	plan := s.resolver.Plan(tenantID, order, printers)
	destinations := plan.Destinations
	if len(plan.Unrouted) > 0 {
		result.Unrouted = plan.Unrouted
		names := make([]string, 0, len(plan.Unrouted))
		for _, item := range plan.Unrouted {
			names = append(names, item.Name)
		}
		log.Warn().Strs("items", names).Msg("No kitchen printer serves these items")
	}
	if len(destinations) == 0 {
		log.Warn().Int("printers", len(printers)).Msg("No print destination for order")
		return result, nil
	}

	var direct []*models.PrintJob
	for _, dest := range destinations {
		job := s.buildJob(order, dest)
		created, err := s.jobs.CreateJob(ctx, job)
		if err != nil {
			log.Error().Err(err).Int64("printer_id", dest.Printer.ID).Str("role", dest.Role).Msg("Failed to create print job")
			result.Errors = append(result.Errors, fmt.Sprintf("printer %d: %v", dest.Printer.ID, err))
			continue
		}
		result.Jobs = append(result.Jobs, job)
		if !created {
			log.Debug().Int64("job_id", job.ID).Msg("Print job already exists, skipping")
			continue
		}

		metrics.JobCreated(job.Role, pathOf(job))
		s.publish(events.EventJobCreated, job)
		if job.DeviceID == nil {
			direct = append(direct, job)
		}
	}

	s.sendDirect(ctx, direct)

	log.Info().Int("jobs", len(result.Jobs)).Int("direct", len(direct)).Msg("Order dispatched")
	return result, nil
}

func (s *DispatchService) buildJob(order *models.Order, dest routing.Destination) *models.PrintJob {
	p := dest.Printer
	return &models.PrintJob{
		TenantID:     order.TenantID,
		RestaurantID: order.RestaurantID,
		PrinterID:    p.ID,
		DeviceID:     p.DeviceID,
		OrderID:      order.OrderID,
		Role:         dest.Role,
		Payload:      s.renderer.Render(order, dest.Role, dest.Items, p.PaperWidth),
		PrinterType:  p.Type,
		TargetHost:   p.IPAddress,
		TargetPort:   p.Port,
		Generation:   1,
	}
}

// sendDirect delivers jobs in parallel so one dead printer does not delay the others.
func (s *DispatchService) sendDirect(ctx context.Context, jobs []*models.PrintJob) {
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job *models.PrintJob) {
			defer wg.Done()
			s.deliver(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (s *DispatchService) deliver(ctx context.Context, job *models.PrintJob) {
	status := models.JobStatusDone
	var errMsg string

	if err := s.send(ctx, job); err != nil {
		status = models.JobStatusFailed
		errMsg = err.Error()
	}

	// The outcome is written even when the send ran out its deadline.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.directTimeout)
	defer cancel()
	if err := s.jobs.CompleteDirectJob(writeCtx, job.ID, status, errMsg); err != nil {
		s.logger.Error().Err(err).Int64("job_id", job.ID).Msg("Failed to record direct send outcome")
		return
	}
	job.Status = status
	job.ErrorMessage = errMsg
	job.Attempts++

	metrics.JobOutcome(status, metrics.PathDirect)
	if status == models.JobStatusDone {
		s.publish(events.EventJobDone, job)
		s.logger.Info().Int64("job_id", job.ID).Int64("printer_id", job.PrinterID).Msg("Print job sent")
	} else {
		s.publish(events.EventJobFailed, job)
		s.logger.Warn().Int64("job_id", job.ID).Int64("printer_id", job.PrinterID).Str("error", errMsg).Msg("Print job failed")
	}
}

func (s *DispatchService) send(ctx context.Context, job *models.PrintJob) error {
	t, err := s.transports.For(job.PrinterType)
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.directTimeout)
	defer cancel()

	start := time.Now()
	err = t.Send(sendCtx, ticket.Frame(job.Payload), transport.TargetFor(job))
	metrics.ObserveDirectSend(time.Since(start))
	return err
}

// Reprint creates a new job from an existing one using the printer's current settings.
// Unbound printers are printed to immediately.
func (s *DispatchService) Reprint(ctx context.Context, tenantID, jobID int64) (*models.PrintJob, error) {
	ctx = context.WithoutCancel(ctx)
	original, err := s.jobs.GetJob(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}

	printer, err := s.printers.GetPrinter(ctx, tenantID, original.PrinterID)
	if err != nil && !errors.Is(err, database.ErrPrinterNotFound) {
		return nil, err
	}

	job, err := s.jobs.ReprintJob(ctx, tenantID, jobID, printer)
	if err != nil {
		return nil, err
	}

	metrics.JobCreated(job.Role, pathOf(job))
	s.publish(events.EventJobCreated, job)
	s.logger.Info().
		Int64("tenant_id", tenantID).
		Int64("job_id", job.ID).
		Int64("reprint_of", jobID).
		Int("generation", job.Generation).
		Msg("Reprint job created")

	if job.DeviceID == nil {
		s.deliver(ctx, job)
	}
	return job, nil
}

func (s *DispatchService) ListJobs(ctx context.Context, filter database.JobFilter) ([]*models.PrintJob, error) {
	return s.jobs.ListJobs(ctx, filter)
}

// StuckJobs lists jobs not printed within olderThan: sent without an ack, or still pending.
func (s *DispatchService) StuckJobs(ctx context.Context, tenantID int64, olderThan time.Duration) ([]*models.PrintJob, error) {
	if olderThan <= 0 {
		olderThan = models.StuckJobThreshold
	}
	return s.jobs.ListStuckJobs(ctx, tenantID, s.now().Add(-olderThan))
}

// ProbePrinter checks reachability of a printer the server can reach directly.
func (s *DispatchService) ProbePrinter(ctx context.Context, tenantID, printerID int64) (bool, error) {
	p, err := s.printers.GetPrinter(ctx, tenantID, printerID)
	if err != nil {
		return false, err
	}
	if p.AgentMediated() {
		return false, ErrPrinterBehindAgent
	}

	t, err := s.transports.For(p.Type)
	if err != nil {
		return false, err
	}
	return t.Probe(ctx, transport.Target{Host: p.IPAddress, Port: p.Port}), nil
}

func (s *DispatchService) publish(eventType string, job *models.PrintJob) {
	publishJob(s.events, s.logger, eventType, job, s.now())
}

func pathOf(job *models.PrintJob) string {
	if job.DeviceID != nil {
		return metrics.PathAgent
	}
	return metrics.PathDirect
}

func publishJob(bus domain.EventPublisher, logger *zerolog.Logger, eventType string, job *models.PrintJob, at time.Time) {
	if bus == nil {
		return
	}
	payload := events.JobEventPayload{
		JobID:        job.ID,
		TenantID:     job.TenantID,
		RestaurantID: job.RestaurantID,
		OrderID:      job.OrderID,
		PrinterID:    job.PrinterID,
		DeviceID:     job.DeviceID,
		Role:         job.Role,
		Status:       job.Status,
		Generation:   job.Generation,
		Attempts:     job.Attempts,
		Error:        job.ErrorMessage,
		At:           at,
	}
	if err := bus.PublishJSON(eventType, payload); err != nil {
		logger.Warn().Err(err).Str("event", eventType).Int64("job_id", job.ID).Msg("Failed to publish job event")
	}
}
