package agent

import "time"

// Backoff tracks the adaptive poll interval. The interval is Min while jobs arrived
// within Threshold and Max once the agent has been idle longer than that.
type Backoff struct {
	min       time.Duration
	max       time.Duration
	threshold time.Duration
	now       func() time.Time

	interval  time.Duration
	lastJobAt time.Time
}

func NewBackoff(minInterval, maxInterval, threshold time.Duration, now func() time.Time) *Backoff {
	if now == nil {
		now = time.Now
	}
	if maxInterval < minInterval {
		maxInterval = minInterval
	}
	return &Backoff{
		min:       minInterval,
		max:       maxInterval,
		threshold: threshold,
		now:       now,
		interval:  minInterval,
		lastJobAt: now(),
	}
}

// Observe records a poll outcome and returns the interval to wait before the next poll.
// A failed poll counts as empty.
func (b *Backoff) Observe(gotJobs bool) time.Duration {
	now := b.now()
	if gotJobs {
		b.lastJobAt = now
		b.interval = b.min
		return b.interval
	}

	if now.Sub(b.lastJobAt) > b.threshold {
		b.interval = b.max
	} else {
		b.interval = b.min
	}
	return b.interval
}

func (b *Backoff) Interval() time.Duration {
	return b.interval
}
