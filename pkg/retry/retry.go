// Package retry provides the backoff policy used for all remote calls.
// The policy is a plain value and the clock is injectable so tests never
// sleep for real.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock sleeps on the wall clock but honors context cancellation.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Policy controls retry behavior: up to MaxAttempts tries, waiting
// BaseDelay * Factor^n between them, with up to Jitter of random spread.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Factor      float64
	Jitter      time.Duration
}

// DefaultPolicy mirrors the upstream data-source client defaults.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second, Factor: 2, Jitter: 250 * time.Millisecond}
}

// Do runs fn until it succeeds, attempts are exhausted, or ctx is done.
// The last error is returned on exhaustion.
func (p Policy) Do(ctx context.Context, clock Clock, fn func() error) error {
	if clock == nil {
		clock = RealClock{}
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.BaseDelay
	var err error
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		wait := delay
		if p.Jitter > 0 {
			wait += time.Duration(rand.Int63n(int64(p.Jitter)))
		}
		if serr := clock.Sleep(ctx, wait); serr != nil {
			return serr
		}
		if p.Factor > 1 {
			delay = time.Duration(float64(delay) * p.Factor)
		}
	}
	return err
}
