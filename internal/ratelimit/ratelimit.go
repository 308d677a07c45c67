// Package ratelimit paces outbound remote calls to a configurable ceiling.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limiter serializes call dispatch so that no two calls start within the
// configured minimum interval. Callers queue on Schedule rather than fail;
// no ordering is guaranteed between concurrent callers.
type Limiter struct {
	lim *rate.Limiter
}

// New creates a limiter allowing callsPerSecond sustained dispatches.
// A non-positive rate disables limiting.
func New(callsPerSecond float64) *Limiter {
	limit := rate.Inf
	if callsPerSecond > 0 {
		limit = rate.Limit(callsPerSecond)
	}
	// Burst of 1 keeps dispatches strictly spaced at 1/rate.
	return &Limiter{lim: rate.NewLimiter(limit, 1)}
}

// Schedule blocks until a dispatch slot is available, then runs the task.
// The slot is consumed even if the task fails.
func (l *Limiter) Schedule(ctx context.Context, task func() error) error {
	if err := l.lim.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	return task()
}
