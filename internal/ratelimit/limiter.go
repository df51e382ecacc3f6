// Package ratelimit implements the sliding-window message budget every
// outbound venue action must pass. The venue disconnects sessions that
// exceed 50 messages per second, so the window is padded slightly past
// one second.
package ratelimit

import (
	"context"
	"time"
)

const (
	DefaultLimit  = 50
	DefaultWindow = 1010 * time.Millisecond

	retryInterval = 100 * time.Millisecond
)

// Limiter tracks the timestamps of recently admitted actions. It is
// owned by the engine goroutine and is not safe for concurrent use;
// events are delivered one at a time so no locking is needed.
type Limiter struct {
	limit  int
	window time.Duration
	stamps []time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

func New(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		sleep:  sleepFor,
	}
}

// TryAdmit evicts timestamps older than the window, then either records
// the action and returns true, or returns false with no state change.
func (l *Limiter) TryAdmit() bool {
	now := l.now()
	cutoff := now.Add(-l.window)
	evicted := 0
	for evicted < len(l.stamps) && l.stamps[evicted].Before(cutoff) {
		evicted++
	}
	if evicted > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[evicted:]...)
	}
	if len(l.stamps) >= l.limit {
		return false
	}
	l.stamps = append(l.stamps, now)
	return true
}

// Admit blocks until the action is admitted, retrying on a short
// backoff. Hedge sends use this path: hedging inventory risk is
// mandatory and must not be dropped under throttling.
func (l *Limiter) Admit(ctx context.Context) error {
	for {
		if l.TryAdmit() {
			return nil
		}
		if err := l.sleep(ctx, retryInterval); err != nil {
			return err
		}
	}
}

func sleepFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
