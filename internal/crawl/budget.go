package crawl

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// ErrBudgetExhausted stops the loop cleanly: the current unit of work has
// finished and collected data is preserved.
var ErrBudgetExhausted = errors.New("crawl: request budget exhausted")

// Governor enforces the per-run ceilings: a hard request count (circuit
// breaker), an optional wall-clock limit, and optional request pacing.
type Governor struct {
	MaxRequests int
	MaxDuration time.Duration // 0 = unlimited
	limiter     *rate.Limiter // nil = no pacing

	used    int
	started time.Time
}

// NewGovernor builds a governor. perSecond <= 0 disables pacing.
func NewGovernor(maxRequests int, maxDuration time.Duration, perSecond float64) *Governor {
	g := &Governor{
		MaxRequests: maxRequests,
		MaxDuration: maxDuration,
		started:     time.Now(),
	}
	if perSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return g
}

// Allow reports whether a new unit of work may start. Checked between
// units, never mid-unit, so a unit in flight always completes.
func (g *Governor) Allow() bool {
	if g.MaxRequests > 0 && g.used >= g.MaxRequests {
		return false
	}
	if g.MaxDuration > 0 && time.Since(g.started) >= g.MaxDuration {
		return false
	}
	return true
}

// Spend reserves one upstream request, waiting out the pacing limiter.
// Returns ErrBudgetExhausted when the ceiling has been hit, so no request
// beyond the ceiling is ever issued.
func (g *Governor) Spend(ctx context.Context) error {
	if g.MaxRequests > 0 && g.used >= g.MaxRequests {
		return ErrBudgetExhausted
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	g.used++
	return nil
}

// Used returns the number of requests spent so far.
func (g *Governor) Used() int { return g.used }

// StopReason names which ceiling tripped, or "" if none has.
func (g *Governor) StopReason() string {
	if g.MaxRequests > 0 && g.used >= g.MaxRequests {
		return "request_budget"
	}
	if g.MaxDuration > 0 && time.Since(g.started) >= g.MaxDuration {
		return "time_budget"
	}
	return ""
}
