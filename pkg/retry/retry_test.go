package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	f.sleeps = append(f.sleeps, d)
	f.now = f.now.Add(d)
	return nil
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	calls := 0
	p := Policy{MaxAttempts: 4, BaseDelay: time.Second, Factor: 2}
	err := p.Do(context.Background(), clock, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.sleeps)
}

func TestDoExhaustsAttempts(t *testing.T) {
	clock := &fakeClock{}
	sentinel := errors.New("down")
	calls := 0
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 2}
	err := p.Do(context.Background(), clock, func() error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls)
	assert.Len(t, clock.sleeps, 2)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := DefaultPolicy()
	err := p.Do(ctx, &fakeClock{}, func() error { return errors.New("never retried") })
	assert.ErrorIs(t, err, context.Canceled)
}
