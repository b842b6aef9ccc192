// Package pacing governs how fast the query engine may send datagrams
// to any one upstream agent, using the same token-bucket primitive the
// teacher's inbound rate limiters used for client IPs, repurposed here
// for outbound per-agent pacing.
package pacing

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config configures a Governor.
type Config struct {
	// QueriesPerSecond is the steady-state send rate allowed to a
	// single agent. Zero or negative disables pacing entirely (every
	// Allow call returns true).
	QueriesPerSecond float64

	// Burst is the maximum number of queries that may be sent back to
	// back before the steady-state rate applies.
	Burst int
}

// DefaultConfig mirrors the teacher's DefaultRateLimiterConfig values,
// reinterpreted as an outbound pacing budget rather than an inbound cap.
func DefaultConfig() Config {
	return Config{QueriesPerSecond: 100, Burst: 200}
}

// Governor paces outbound sends per upstream agent name.
type Governor struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	disabled bool
}

// NewGovernor creates a Governor from cfg.
func NewGovernor(cfg Config) *Governor {
	if cfg.QueriesPerSecond <= 0 {
		return &Governor{disabled: true}
	}
	return &Governor{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(cfg.QueriesPerSecond),
		burst:    cfg.Burst,
	}
}

// Allow reports whether a send to the named agent may proceed now.
// Call sites that get false should treat the agent as temporarily
// unavailable and fall back to the next candidate rather than block.
func (g *Governor) Allow(agentName string) bool {
	if g.disabled {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	l, ok := g.limiters[agentName]
	if !ok {
		l = rate.NewLimiter(g.rate, g.burst)
		g.limiters[agentName] = l
	}
	return l.Allow()
}

// WaitReservation blocks until a send to agentName is permitted. If the
// required wait would exceed d it does not wait at all and returns false.
func (g *Governor) WaitReservation(agentName string, d time.Duration) bool {
	if g.disabled {
		return true
	}

	g.mu.Lock()
	l, ok := g.limiters[agentName]
	if !ok {
		l = rate.NewLimiter(g.rate, g.burst)
		g.limiters[agentName] = l
	}
	g.mu.Unlock()

	r := l.ReserveN(time.Now(), 1)
	if !r.OK() {
		return false
	}
	delay := r.Delay()
	if delay > d {
		r.Cancel()
		return false
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	return true
}

// Forget discards the tracked limiter for an agent, e.g. when an agent
// is deregistered.
func (g *Governor) Forget(agentName string) {
	if g.disabled {
		return
	}
	g.mu.Lock()
	delete(g.limiters, agentName)
	g.mu.Unlock()
}

// TrackedAgents returns the number of agents with an active limiter,
// for diagnostics.
func (g *Governor) TrackedAgents() int {
	if g.disabled {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.limiters)
}
