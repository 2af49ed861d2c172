package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kitchenprint/internal/models"
	"kitchenprint/internal/worker"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ack struct {
	jobID  int64
	status string
	errMsg string
}

type fakeAPI struct {
	mu         sync.Mutex
	batches    [][]models.AgentJob
	pollErr    error
	acks       []ack
	ackErrs    []error
	beats      []models.HeartbeatRequest
	pollCalls  int
	blockPolls chan struct{}
}

func (f *fakeAPI) Poll(ctx context.Context) ([]models.AgentJob, error) {
	if f.blockPolls != nil {
		select {
		case <-f.blockPolls:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollCalls++
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, nil
}

func (f *fakeAPI) Ack(_ context.Context, jobID int64, status, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ackErrs) > 0 {
		err := f.ackErrs[0]
		f.ackErrs = f.ackErrs[1:]
		if err != nil {
			return err
		}
	}
	f.acks = append(f.acks, ack{jobID, status, errMsg})
	return nil
}

func (f *fakeAPI) Heartbeat(_ context.Context, report models.HeartbeatRequest) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beats = append(f.beats, report)
	return time.Now(), nil
}

func (f *fakeAPI) beatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.beats)
}

func (f *fakeAPI) beatAt(i int) models.HeartbeatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.beats[i]
}

type fakePrinter struct {
	fail map[int64]error
}

func (p *fakePrinter) Print(_ context.Context, job models.AgentJob) error {
	return p.fail[job.ID]
}

func newTestRunner(api API, printer Printer) *Runner {
	logger := zerolog.Nop()
	return NewRunner(api, printer, RunnerConfig{
		MinPollInterval:   3 * time.Second,
		MaxPollInterval:   10 * time.Second,
		BackoffThreshold:  30 * time.Second,
		HeartbeatInterval: time.Hour,
		AckRetry:          worker.RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond},
		Version:           "test",
	}, &logger)
}

func TestRunner_PollOnceAcksEachJob(t *testing.T) {
	api := &fakeAPI{batches: [][]models.AgentJob{{{ID: 1}, {ID: 2}}}}
	printer := &fakePrinter{fail: map[int64]error{2: errors.New("paper out")}}
	r := newTestRunner(api, printer)

	wait := r.PollOnce(context.Background())
	assert.Equal(t, 3*time.Second, wait)

	require.Len(t, api.acks, 2)
	assert.Equal(t, ack{1, models.JobStatusDone, ""}, api.acks[0])
	assert.Equal(t, ack{2, models.JobStatusFailed, "paper out"}, api.acks[1])
}

func TestRunner_AckRetried(t *testing.T) {
	api := &fakeAPI{
		batches: [][]models.AgentJob{{{ID: 7}}},
		ackErrs: []error{errors.New("timeout"), errors.New("timeout")},
	}
	r := newTestRunner(api, &fakePrinter{})

	r.PollOnce(context.Background())
	require.Len(t, api.acks, 1)
	assert.Equal(t, int64(7), api.acks[0].jobID)
}

func TestRunner_AckPermanentNotRetried(t *testing.T) {
	api := &fakeAPI{
		batches: [][]models.AgentJob{{{ID: 7}}},
		ackErrs: []error{&HTTPError{StatusCode: 404}, nil},
	}
	r := newTestRunner(api, &fakePrinter{})

	r.PollOnce(context.Background())
	assert.Empty(t, api.acks)
}

func TestRunner_PollErrorCountsAsEmpty(t *testing.T) {
	api := &fakeAPI{pollErr: errors.New("connection refused")}
	r := newTestRunner(api, &fakePrinter{})

	clock := &fakeClock{t: time.Now()}
	r.backoff = NewBackoff(3*time.Second, 10*time.Second, 30*time.Second, clock.now)

	assert.Equal(t, 3*time.Second, r.PollOnce(context.Background()))
	clock.advance(31 * time.Second)
	assert.Equal(t, 10*time.Second, r.PollOnce(context.Background()))
}

func TestRunner_HeartbeatIndependentOfPoll(t *testing.T) {
	// poll never returns; heartbeat must still run
	api := &fakeAPI{blockPolls: make(chan struct{})}
	logger := zerolog.Nop()
	r := NewRunner(api, &fakePrinter{}, RunnerConfig{HeartbeatInterval: 5 * time.Millisecond, Version: "1.2.3"}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return api.beatCount() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
	for i := 0; i < api.beatCount(); i++ {
		assert.Equal(t, "1.2.3", api.beatAt(i).AgentVersion)
	}
}
