package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jordanlewiz/atlas-xray-sub001/internal/database"
	"github.com/jordanlewiz/atlas-xray-sub001/internal/quality"
	"github.com/jordanlewiz/atlas-xray-sub001/internal/syncer"
)

// DefaultDebounce is how long the orchestrator waits after a discovery
// burst before starting a run. A burst that arrives inside the window
// supersedes the previous one entirely.
const DefaultDebounce = time.Second

// Coordinator is the staged fetch capability the orchestrator drives.
type Coordinator interface {
	Handle(ctx context.Context, projectIDs []string) (*syncer.HandleResult, error)
}

// Analyzer scores a single update. quality.Analyzer satisfies this.
type Analyzer interface {
	AnalyzeUpdate(ctx context.Context, stateLabel *string, text string) *quality.Result
}

// RunReport summarizes one pipeline run for callers that trigger runs
// synchronously.
type RunReport struct {
	ProjectIDs       []string
	SummariesFetched int
	UpdatesFetched   int
	UpdatesScored    int
	Success          bool
}

// Orchestrator sits between discovery and the fetch/scoring stages. It
// debounces discovery bursts, guarantees at most one run at a time, and
// coalesces project IDs that arrive mid-run into a single follow-up run.
type Orchestrator struct {
	db       *database.DB
	coord    Coordinator
	analyzer Analyzer
	notifier *Notifier
	debounce time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending []string
	running bool
	queued  map[string]struct{}
	closed  bool
}

// New creates an orchestrator. A non-positive debounce falls back to
// DefaultDebounce.
func New(db *database.DB, coord Coordinator, analyzer Analyzer, debounce time.Duration) *Orchestrator {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Orchestrator{
		db:       db,
		coord:    coord,
		analyzer: analyzer,
		notifier: NewNotifier(),
		debounce: debounce,
		queued:   make(map[string]struct{}),
	}
}

// Notifier exposes the run-completion event stream.
func (o *Orchestrator) Notifier() *Notifier {
	return o.notifier
}

// OnProjectsSeen records a discovery burst. The burst replaces any set
// still waiting in the debounce window and restarts the timer, so rapid
// navigation settles into a single run over the final set.
func (o *Orchestrator) OnProjectsSeen(projectIDs []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.pending = dedupe(projectIDs)
	if o.timer != nil {
		o.timer.Stop()
	}
	o.timer = time.AfterFunc(o.debounce, o.firePending)
}

func (o *Orchestrator) firePending() {
	o.mu.Lock()
	ids := o.pending
	o.pending = nil
	closed := o.closed
	o.mu.Unlock()
	if closed || len(ids) == 0 {
		return
	}
	o.TriggerRun(context.Background(), ids)
}

// TriggerRun executes the pipeline for the given project IDs. If a run
// is already active the IDs are merged into a queued set and picked up
// by a follow-up run as soon as the active one finishes; in that case
// the report is nil. Queued IDs are coalesced, never dropped.
func (o *Orchestrator) TriggerRun(ctx context.Context, projectIDs []string) *RunReport {
	o.mu.Lock()
	if o.running {
		for _, id := range projectIDs {
			o.queued[id] = struct{}{}
		}
		o.mu.Unlock()
		return nil
	}
	o.running = true
	o.mu.Unlock()

	first := o.runOnce(ctx, dedupe(projectIDs))

	for {
		o.mu.Lock()
		if len(o.queued) == 0 {
			o.running = false
			o.mu.Unlock()
			return first
		}
		// Fresh slice per follow-up: the previous run's ID slice is still
		// referenced by its report and published event.
		next := make([]string, 0, len(o.queued))
		for id := range o.queued {
			next = append(next, id)
		}
		o.queued = make(map[string]struct{})
		o.mu.Unlock()

		o.runOnce(ctx, next)
	}
}

// TriggerManualScan runs the pipeline synchronously over the last known
// visible project set. Useful for diagnostics when no discovery source
// is active.
func (o *Orchestrator) TriggerManualScan(ctx context.Context) (*RunReport, error) {
	ids, err := o.db.GetVisibleProjects()
	if err != nil {
		return nil, err
	}
	return o.TriggerRun(ctx, ids), nil
}

func (o *Orchestrator) runOnce(ctx context.Context, ids []string) *RunReport {
	report := &RunReport{ProjectIDs: ids}

	if err := o.db.SetVisibleProjects(ids); err != nil {
		log.Printf("pipeline: persisting visible projects: %v", err)
	}

	res, err := o.coord.Handle(ctx, ids)
	if err != nil {
		log.Printf("pipeline: fetch stages: %v", err)
	} else {
		report.SummariesFetched = res.SummariesFetched
		report.UpdatesFetched = res.UpdatesFetched
		report.Success = res.Success
	}
	if report.Success {
		report.UpdatesScored = o.scoreNewUpdates(ctx)
	}

	if err := o.db.SetLastScanAt(time.Now()); err != nil {
		log.Printf("pipeline: recording scan time: %v", err)
	}

	o.notifier.Publish(Event{
		ProjectIDs:       ids,
		SummariesFetched: report.SummariesFetched,
		UpdatesFetched:   report.UpdatesFetched,
		UpdatesScored:    report.UpdatesScored,
		Failed:           !report.Success,
	})
	return report
}

// scoreNewUpdates analyzes every stored update that has no quality
// result yet. Analysis failures produce a persisted fallback result, so
// a single pass always drains the unanalyzed set.
func (o *Orchestrator) scoreNewUpdates(ctx context.Context) int {
	updates, err := o.db.GetUnanalyzedUpdates()
	if err != nil {
		log.Printf("pipeline: listing unanalyzed updates: %v", err)
		return 0
	}

	scored := 0
	for _, u := range updates {
		if ctx.Err() != nil {
			return scored
		}
		result := o.analyzer.AnalyzeUpdate(ctx, u.StateLabel, u.RawText)
		if err := o.db.SaveAnalysis(u.ID, result.Score, result.Level, result.Summary, result.MissingInfo); err != nil {
			log.Printf("pipeline: saving analysis for update %s: %v", u.ID, err)
			continue
		}
		scored++
	}
	return scored
}

// QualityMetrics reports aggregate scoring stats over stored updates.
func (o *Orchestrator) QualityMetrics() (*database.QualityMetrics, error) {
	return o.db.GetQualityMetrics()
}

// UpdateQuality returns the stored update with its analysis, or nil if
// the update is unknown.
func (o *Orchestrator) UpdateQuality(updateID string) (*database.Update, error) {
	return o.db.GetUpdate(updateID)
}

// Close stops the debounce timer. It does not interrupt an active run.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.pending = nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
