// Package ratelimit spaces outbound calls to the remote service. A single
// Limiter is shared by every component that talks to Shikimori.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a minimum interval between the start of consecutive calls.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// New returns a Limiter with the given minimum spacing. A non-positive
// interval disables limiting.
func New(interval time.Duration) *Limiter {
	return &Limiter{interval: interval}
}

// Interval returns the configured minimum spacing.
func (l *Limiter) Interval() time.Duration {
	if l == nil {
		return 0
	}
	return l.interval
}

// Wait blocks until the caller may issue its request. Each caller reserves the
// next free slot under the lock and sleeps outside it, so concurrent callers
// are spaced by interval without serializing on the mutex. A cancelled wait
// still consumes its slot.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.interval <= 0 {
		return nil
	}
	l.mu.Lock()
	now := time.Now()
	slot := now
	if !l.last.IsZero() {
		if next := l.last.Add(l.interval); next.After(now) {
			slot = next
		}
	}
	l.last = slot
	l.mu.Unlock()

	return SleepWithContext(ctx, slot.Sub(now))
}

// SleepWithContext sleeps for d or until ctx is done.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
