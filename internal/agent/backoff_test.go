package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBackoff_IdleReachesMax(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	b := NewBackoff(3*time.Second, 10*time.Second, 30*time.Second, clock.now)

	assert.Equal(t, 3*time.Second, b.Observe(true))

	// 31 empty polls at the minimum interval span 93s since the last job
	for i := 0; i < 31; i++ {
		clock.advance(3 * time.Second)
		b.Observe(false)
	}
	assert.Equal(t, 10*time.Second, b.Interval())

	clock.advance(10 * time.Second)
	assert.Equal(t, 3*time.Second, b.Observe(true))
}

func TestBackoff_StaysMinWithinThreshold(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	b := NewBackoff(3*time.Second, 10*time.Second, 30*time.Second, clock.now)

	for i := 0; i < 10; i++ {
		clock.advance(3 * time.Second)
		assert.Equal(t, 3*time.Second, b.Observe(false), "poll %d", i)
	}

	clock.advance(time.Second)
	assert.Equal(t, 10*time.Second, b.Observe(false))
}

func TestBackoff_StartsAtMin(t *testing.T) {
	b := NewBackoff(3*time.Second, 10*time.Second, 30*time.Second, nil)
	assert.Equal(t, 3*time.Second, b.Interval())
	assert.Equal(t, 3*time.Second, b.Observe(false))
}

func TestBackoff_MaxBelowMin(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	b := NewBackoff(5*time.Second, time.Second, 0, clock.now)
	clock.advance(time.Minute)
	assert.Equal(t, 5*time.Second, b.Observe(false))
}
