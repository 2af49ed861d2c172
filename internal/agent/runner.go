package agent

import (
	"context"
	"sync"
	"time"

	"kitchenprint/internal/models"
	"kitchenprint/internal/worker"

	"github.com/rs/zerolog"
)

// API is the server side of the agent protocol.
type API interface {
	Poll(ctx context.Context) ([]models.AgentJob, error)
	Ack(ctx context.Context, jobID int64, status, errMsg string) error
	Heartbeat(ctx context.Context, report models.HeartbeatRequest) (time.Time, error)
}

// Printer prints one job locally.
type Printer interface {
	Print(ctx context.Context, job models.AgentJob) error
}

type RunnerConfig struct {
	MinPollInterval   time.Duration
	MaxPollInterval   time.Duration
	BackoffThreshold  time.Duration
	HeartbeatInterval time.Duration
	AckRetry          worker.RetryPolicy
	Version           string
}

// Runner drives the poll loop and the heartbeat loop. The loops share no state:
// print errors go out with acks, heartbeats carry only the version.
type Runner struct {
	api     API
	printer Printer
	cfg     RunnerConfig
	backoff *Backoff
	logger  *zerolog.Logger
}

func NewRunner(api API, printer Printer, cfg RunnerConfig, logger *zerolog.Logger) *Runner {
	if cfg.MinPollInterval <= 0 {
		cfg.MinPollInterval = 3 * time.Second
	}
	if cfg.MaxPollInterval <= 0 {
		cfg.MaxPollInterval = 10 * time.Second
	}
	if cfg.BackoffThreshold <= 0 {
		cfg.BackoffThreshold = 30 * time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	return &Runner{
		api:     api,
		printer: printer,
		cfg:     cfg,
		backoff: NewBackoff(cfg.MinPollInterval, cfg.MaxPollInterval, cfg.BackoffThreshold, time.Now),
		logger:  logger,
	}
}

// Run blocks until ctx is canceled.
func (r *Runner) Run(ctx context.Context) {
	r.logger.Info().
		Dur("min_poll", r.cfg.MinPollInterval).
		Dur("max_poll", r.cfg.MaxPollInterval).
		Dur("heartbeat", r.cfg.HeartbeatInterval).
		Msg("Print agent started")
	defer r.logger.Info().Msg("Print agent stopped")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.pollLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		r.heartbeatLoop(ctx)
	}()
	wg.Wait()
}

func (r *Runner) pollLoop(ctx context.Context) {
	for {
		interval := r.PollOnce(ctx)

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// PollOnce runs one poll cycle and returns the wait before the next one.
func (r *Runner) PollOnce(ctx context.Context) time.Duration {
	jobs, err := r.api.Poll(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn().Err(err).Msg("Poll failed")
		}
		return r.backoff.Observe(false)
	}

	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		r.process(ctx, job)
	}
	return r.backoff.Observe(len(jobs) > 0)
}

func (r *Runner) process(ctx context.Context, job models.AgentJob) {
	log := r.logger.With().Int64("job_id", job.ID).Int64("order_id", job.OrderID).Str("role", job.Role).Logger()

	status := models.JobStatusDone
	var errMsg string
	if err := r.printer.Print(ctx, job); err != nil {
		status = models.JobStatusFailed
		errMsg = err.Error()
		log.Warn().Err(err).Msg("Print failed")
	} else {
		log.Info().Msg("Printed")
	}

	err := r.cfg.AckRetry.Do(ctx, func(ctx context.Context) error {
		return r.api.Ack(ctx, job.ID, status, errMsg)
	})
	if err != nil {
		// The job stays sent on the server and shows up as stuck.
		log.Error().Err(err).Str("status", status).Msg("Ack failed")
	}
}

func (r *Runner) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()

	r.beat(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.beat(ctx)
		}
	}
}

func (r *Runner) beat(ctx context.Context) {
	serverTime, err := r.api.Heartbeat(ctx, models.HeartbeatRequest{AgentVersion: r.cfg.Version})
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn().Err(err).Msg("Heartbeat failed")
		}
		return
	}
	if skew := time.Since(serverTime); skew > time.Minute || skew < -time.Minute {
		r.logger.Warn().Dur("skew", skew).Msg("Clock differs from server")
	}
}
