// Package ratelimit provides the sliding-window gate that serializes calls
// to the external nutrition estimator. The per-client API rate limiting in
// api/middleware is a separate concern.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// safetyMargin is added to every computed wait so the re-check after waking
// lands strictly outside the window.
const safetyMargin = 100 * time.Millisecond

// Gate admits at most maxRequests acquisitions within a trailing window.
// It keeps an ordered queue of approval timestamps; Acquire prunes expired
// entries, and when the window is full it sleeps until the oldest entry
// exits, then re-evaluates. The internal queue is the only mutable state
// and is guarded by a mutex; sleeping callers do not hold the lock, so a
// waiting caller never extends another caller's wait.
type Gate struct {
	maxRequests int
	window      time.Duration

	mu         sync.Mutex
	timestamps []time.Time

	// now and sleep are injection points for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// NewGate creates a Gate admitting maxRequests per window.
func NewGate(maxRequests int, window time.Duration) *Gate {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	return &Gate{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Acquire blocks until admitting the caller would not exceed the gate's
// budget, then records the approval. It never fails; context cancellation
// only shortens the sleep, and the approval is still recorded so the caller
// can proceed to its own context check.
func (g *Gate) Acquire(ctx context.Context) {
	for {
		g.mu.Lock()
		now := g.now()
		g.prune(now)

		if len(g.timestamps) < g.maxRequests {
			g.timestamps = append(g.timestamps, now)
			g.mu.Unlock()
			return
		}

		// Window full: wait until the oldest approval exits, then re-check.
		wait := g.timestamps[0].Add(g.window).Sub(now) + safetyMargin
		g.mu.Unlock()

		if wait <= 0 {
			continue
		}
		slog.Warn("estimator rate limit reached, waiting",
			"max_requests", g.maxRequests,
			"window", g.window,
			"wait", wait.Round(time.Millisecond),
		)
		g.sleep(ctx, wait)
		if ctx.Err() != nil {
			// Record and return so the budget still reflects the caller's
			// (likely aborted) request.
			g.mu.Lock()
			g.timestamps = append(g.timestamps, g.now())
			g.mu.Unlock()
			return
		}
	}
}

// Pending reports the number of approvals currently inside the window.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prune(g.now())
	return len(g.timestamps)
}

// prune discards timestamps older than the trailing window.
// Caller must hold g.mu.
func (g *Gate) prune(now time.Time) {
	cutoff := now.Add(-g.window)
	i := 0
	for i < len(g.timestamps) && !g.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		g.timestamps = append(g.timestamps[:0], g.timestamps[i:]...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
