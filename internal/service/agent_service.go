package service

import (
	"context"
	"errors"
	"time"

	"kitchenprint/internal/database"
	"kitchenprint/internal/domain"
	"kitchenprint/internal/events"
	"kitchenprint/internal/metrics"
	"kitchenprint/internal/models"

	"github.com/rs/zerolog"
)

// HeartbeatReport is the optional status an agent sends with a heartbeat.
// Print errors travel with acks, never with heartbeats.
type HeartbeatReport struct {
	AgentVersion string `json:"agent_version,omitempty"`
}

// AgentService implements the device side of the protocol: poll, ack and heartbeat.
// Every call authenticates the token first, which also refreshes last_seen_at.
type AgentService struct {
	jobs      domain.JobStore
	devices   *DeviceService
	events    domain.EventPublisher
	batchSize int
	now       func() time.Time
	logger    *zerolog.Logger
}

func NewAgentService(jobs domain.JobStore, devices *DeviceService, eventBus domain.EventPublisher, batchSize int, logger *zerolog.Logger) *AgentService {
	if batchSize <= 0 {
		batchSize = models.DefaultPollBatchSize
	}
	return &AgentService{
		jobs:      jobs,
		devices:   devices,
		events:    eventBus,
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// Authenticate exposes token resolution for transport-level middleware.
func (s *AgentService) Authenticate(ctx context.Context, token string) (*models.PrintDevice, error) {
	return s.devices.Authenticate(ctx, token)
}

// Poll claims the device's pending jobs. Each job is returned to exactly one poll.
func (s *AgentService) Poll(ctx context.Context, device *models.PrintDevice) ([]*models.PrintJob, error) {
	jobs, err := s.jobs.ClaimPendingJobs(ctx, device.ID, device.Role, s.batchSize)
	metrics.AgentPoll(len(jobs), err)
	if err != nil {
		s.logger.Error().Err(err).Int64("device_id", device.ID).Msg("Failed to claim jobs")
		return nil, err
	}

	at := s.now()
	for _, job := range jobs {
		publishJob(s.events, s.logger, events.EventJobClaimed, job, at)
	}
	if len(jobs) > 0 {
		s.logger.Info().Int64("device_id", device.ID).Int("jobs", len(jobs)).Msg("Jobs claimed")
	}
	return jobs, nil
}

// Ack records the device's print outcome. Repeating an ack for a finished job is accepted and changes nothing.
func (s *AgentService) Ack(ctx context.Context, device *models.PrintDevice, jobID int64, status, errMsg string) (*models.PrintJob, error) {
	if jobID <= 0 {
		return nil, protocolError(KindMalformed, "job_id is required")
	}
	if status != models.JobStatusDone && status != models.JobStatusFailed {
		return nil, protocolError(KindMalformed, "status must be %q or %q", models.JobStatusDone, models.JobStatusFailed)
	}

	job, applied, err := s.jobs.AckJob(ctx, device.ID, jobID, status, errMsg)
	switch {
	case errors.Is(err, database.ErrJobNotFound):
		return nil, protocolError(KindUnknownJob, "job %d is not assigned to this device", jobID)
	case errors.Is(err, database.ErrJobNotClaimed):
		return nil, protocolError(KindNotClaimed, "job %d has not been polled yet", jobID)
	case errors.Is(err, database.ErrInvalidStatus):
		return nil, protocolError(KindMalformed, "invalid status %q", status)
	case err != nil:
		return nil, err
	}

	if !applied {
		s.logger.Debug().Int64("device_id", device.ID).Int64("job_id", jobID).Str("status", job.Status).Msg("Duplicate ack ignored")
		return job, nil
	}

	metrics.JobOutcome(job.Status, metrics.PathAgent)
	if job.Status == models.JobStatusDone {
		publishJob(s.events, s.logger, events.EventJobDone, job, s.now())
	} else {
		publishJob(s.events, s.logger, events.EventJobFailed, job, s.now())
		s.logger.Warn().Int64("device_id", device.ID).Int64("job_id", jobID).Str("error", errMsg).Msg("Agent reported print failure")
		if errMsg != "" {
			if err := s.devices.RecordError(ctx, device.ID, errMsg); err != nil {
				s.logger.Warn().Err(err).Int64("device_id", device.ID).Msg("Failed to record device error")
			}
		}
	}
	return job, nil
}

// Heartbeat records the agent version and returns the server time. Liveness was already
// refreshed by Authenticate.
func (s *AgentService) Heartbeat(ctx context.Context, device *models.PrintDevice, report HeartbeatReport) (time.Time, error) {
	if err := s.devices.RecordVersion(ctx, device.ID, report.AgentVersion); err != nil {
		return time.Time{}, err
	}
	return s.now(), nil
}
