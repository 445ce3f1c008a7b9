package circuit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replay feeds a sequence of outcomes to b: 'f' failure, 's' success,
// 'r' reset. It returns the open state after each step.
func replay(b *Breaker, steps string) []bool {
	out := make([]bool, 0, len(steps))
	for _, step := range steps {
		switch step {
		case 'f':
			b.RecordFailure()
		case 's':
			b.RecordSuccess()
		case 'r':
			b.Reset()
		}
		out = append(out, b.IsOpen())
	}
	return out
}

func TestBreakerTransitions(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		steps    string
		wantOpen []bool
	}{
		{
			name:     "opens on the third consecutive failure",
			opts:     []Option{WithFailureThreshold(3)},
			steps:    "fff",
			wantOpen: []bool{false, false, true},
		},
		{
			name:     "success clears the failure run",
			opts:     []Option{WithFailureThreshold(3)},
			steps:    "ffsfff",
			wantOpen: []bool{false, false, false, false, false, true},
		},
		{
			name:     "closes after two probe successes",
			opts:     []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps:    "fss",
			wantOpen: []bool{true, true, false},
		},
		{
			name:     "failure while open restarts the success run",
			opts:     []Option{WithFailureThreshold(1), WithSuccessThreshold(3)},
			steps:    "fssfsss",
			wantOpen: []bool{true, true, true, true, true, true, false},
		},
		{
			name:     "reset closes immediately",
			opts:     []Option{WithFailureThreshold(1)},
			steps:    "fr",
			wantOpen: []bool{true, false},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := New("NOSPAM", tc.opts...)
			assert.Equal(t, tc.wantOpen, replay(b, tc.steps))
		})
	}
}

func TestBreakerReportsChanges(t *testing.T) {
	b := New("USER", WithFailureThreshold(1))
	assert.Equal(t, "USER", b.Name())
	assert.Equal(t, "closed", b.State().String())

	fallback, change := b.RecordFailure()
	assert.True(t, fallback)
	assert.True(t, change.Opened)
	assert.Equal(t, "open", b.State().String())

	fallback, change = b.RecordFailure()
	assert.True(t, fallback)
	assert.False(t, change.Opened, "already open")

	primary, change := b.RecordSuccess()
	assert.True(t, primary)
	assert.True(t, change.Closed)
}

func TestBreakerCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := New("CAPTCHA",
		WithFailureThreshold(1),
		WithCooldown(time.Minute),
		WithClock(func() time.Time { return now }),
	)
	require.True(t, b.Allow())

	b.RecordFailure()
	assert.False(t, b.Allow())

	now = now.Add(time.Minute)
	assert.True(t, b.Allow(), "probe once the cooldown has passed")

	b.RecordFailure()
	assert.False(t, b.Allow(), "failed probe re-arms the cooldown")

	now = now.Add(time.Minute)
	b.RecordSuccess()
	assert.True(t, b.Allow())
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerConcurrentRecords(t *testing.T) {
	b := New("LANG", WithFailureThreshold(1000))
	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			for range 10 {
				b.RecordFailure()
			}
		})
	}
	wg.Wait()
	assert.False(t, b.IsOpen())
	assert.Equal(t, 500, b.failures)
}
