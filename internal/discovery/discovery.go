// Package discovery produces bursts of visible project IDs for the
// pipeline. Sources poll on an interval; the orchestrator's debounce
// absorbs redundant bursts, so sources emit what they see each poll.
package discovery

import (
	"context"
	"time"
)

// DefaultPollInterval is used when a source is configured without one.
const DefaultPollInterval = 5 * time.Minute

// Source emits bursts of project IDs until its context is cancelled.
type Source interface {
	Run(ctx context.Context, emit func(projectIDs []string)) error
}

// StaticSource re-emits a fixed project list on every poll. It backs
// watch mode when projects are configured directly instead of being
// discovered from a feed; the periodic re-emission is what drives
// staleness re-fetches.
type StaticSource struct {
	ids      []string
	interval time.Duration
}

// NewStaticSource creates a source over a fixed project list.
func NewStaticSource(ids []string, interval time.Duration) *StaticSource {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &StaticSource{ids: ids, interval: interval}
}

// Run emits immediately, then on every interval tick, until ctx is done.
func (s *StaticSource) Run(ctx context.Context, emit func(projectIDs []string)) error {
	if len(s.ids) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	emit(append([]string(nil), s.ids...))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			emit(append([]string(nil), s.ids...))
		}
	}
}
