package worker

import (
	"context"
	"time"

	"kitchenprint/internal/metrics"
	"kitchenprint/internal/models"

	"github.com/rs/zerolog"
)

type DeviceLister interface {
	ListDevices(ctx context.Context, tenantID int64) ([]*models.PrintDevice, error)
}

type StuckJobCounter interface {
	CountStuckJobs(ctx context.Context, cutoff time.Time) (int, error)
}

// MonitorSnapshot is the result of one monitor pass.
type MonitorSnapshot struct {
	Connected int
	Stale     int
	Stuck     int
}

// Monitor periodically publishes device connectivity and stuck job gauges and
// logs devices going stale. It never changes job or device state.
type Monitor struct {
	devices            DeviceLister
	jobs               StuckJobCounter
	interval           time.Duration
	connectedThreshold time.Duration
	stuckThreshold     time.Duration
	now                func() time.Time
	logger             *zerolog.Logger

	stale map[int64]bool
}

func NewMonitor(devices DeviceLister, jobs StuckJobCounter, interval, connectedThreshold, stuckThreshold time.Duration, logger *zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if connectedThreshold <= 0 {
		connectedThreshold = models.ConnectedThreshold
	}
	if stuckThreshold <= 0 {
		stuckThreshold = models.StuckJobThreshold
	}
	return &Monitor{
		devices:            devices,
		jobs:               jobs,
		interval:           interval,
		connectedThreshold: connectedThreshold,
		stuckThreshold:     stuckThreshold,
		now:                func() time.Time { return time.Now().UTC() },
		logger:             logger,
		stale:              make(map[int64]bool),
	}
}

func (m *Monitor) Start(ctx context.Context) {
	m.logger.Info().Dur("interval", m.interval).Msg("Monitor started")
	defer m.logger.Info().Msg("Monitor stopped")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check runs one pass. Not safe for concurrent use.
func (m *Monitor) Check(ctx context.Context) MonitorSnapshot {
	var snap MonitorSnapshot
	now := m.now()

	devices, err := m.devices.ListDevices(ctx, 0)
	if err != nil {
		m.logger.Error().Err(err).Msg("Monitor: failed to list devices")
	} else {
		for _, d := range devices {
			staleErr := d.Staleness(now, m.connectedThreshold)
			if staleErr == nil {
				snap.Connected++
				if m.stale[d.ID] {
					m.logger.Info().Int64("device_id", d.ID).Int64("tenant_id", d.TenantID).Msg("Device reconnected")
				}
				m.stale[d.ID] = false
				continue
			}
			snap.Stale++
			if !m.stale[d.ID] {
				m.logger.Warn().Err(staleErr).Int64("device_id", d.ID).Int64("tenant_id", d.TenantID).Msg("Device disconnected")
			}
			m.stale[d.ID] = true
		}
		metrics.SetDevicesConnected(snap.Connected)
	}

	stuck, err := m.jobs.CountStuckJobs(ctx, now.Add(-m.stuckThreshold))
	if err != nil {
		m.logger.Error().Err(err).Msg("Monitor: failed to count stuck jobs")
		return snap
	}
	snap.Stuck = stuck
	metrics.SetStuckJobs(stuck)
	if stuck > 0 {
		m.logger.Warn().Int("jobs", stuck).Dur("older_than", m.stuckThreshold).Msg("Unacknowledged print jobs")
	}
	return snap
}
