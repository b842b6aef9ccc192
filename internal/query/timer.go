package query

import (
	"sync/atomic"
	"time"
)

// idempotentTimer wraps time.Timer so firing a timer whose query has
// already completed (or that was already cancelled) is a safe no-op,
// per spec.md §5 "Cancellation and timeouts". 10ms granularity is
// acceptable per spec.md §4.5.
type idempotentTimer struct {
	inner     *time.Timer
	fired     atomic.Bool
	cancelled atomic.Bool
}

// newIdempotentTimer arms fn to run after d unless Cancel is called
// first, or fn has already run.
func newIdempotentTimer(d time.Duration, fn func()) *idempotentTimer {
	t := &idempotentTimer{}
	t.inner = time.AfterFunc(d, func() {
		if t.cancelled.Load() {
			return
		}
		if t.fired.CompareAndSwap(false, true) {
			fn()
		}
	})
	return t
}

// Cancel disarms the timer. Safe to call multiple times, and safe to
// call after the timer has already fired.
func (t *idempotentTimer) Cancel() {
	t.cancelled.Store(true)
	t.inner.Stop()
}
