// Package syncer coordinates staged, deduplicated fetching of projects and
// their update streams from the remote system of record.
package syncer

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jordanlewiz/atlas-xray-sub001/internal/database"
	"github.com/jordanlewiz/atlas-xray-sub001/internal/ratelimit"
	"github.com/jordanlewiz/atlas-xray-sub001/internal/remote"
)

// StageResult is the outcome of one fetch stage. Success stays true under
// per-project failures (those are logged and skipped); it is false only
// when a systemic precondition is missing and the stage was aborted.
type StageResult struct {
	Success bool
	Fetched int
}

// HandleResult is the outcome of a full coordinator pass.
type HandleResult struct {
	Success          bool
	SummariesFetched int
	UpdatesFetched   int
}

// Coordinator decides, per project and per stage, whether a remote fetch
// is required, and executes fetches with bounded concurrency under the
// rate limiter.
type Coordinator struct {
	db        *database.DB
	remote    remote.Client
	limiter   *ratelimit.Limiter
	batchSize int
	staleness time.Duration
}

// NewCoordinator creates a coordinator. batchSize caps concurrent
// per-project fetches within a stage; staleness is the maximum age of a
// project's newest update before its stream is re-fetched.
func NewCoordinator(db *database.DB, client remote.Client, limiter *ratelimit.Limiter, batchSize int, staleness time.Duration) *Coordinator {
	if batchSize <= 0 {
		batchSize = 5
	}
	if staleness <= 0 {
		staleness = time.Hour
	}
	return &Coordinator{
		db:        db,
		remote:    client,
		limiter:   limiter,
		batchSize: batchSize,
		staleness: staleness,
	}
}

// Handle runs the summary stage and, when it succeeds (even with zero
// fetches), the update stage. A systemic summary-stage failure blocks the
// update stage entirely.
func (c *Coordinator) Handle(ctx context.Context, ids []string) (*HandleResult, error) {
	summaries, err := c.SummaryStage(ctx, ids)
	if err != nil || !summaries.Success {
		return &HandleResult{SummariesFetched: summaries.Fetched}, err
	}

	updates, err := c.UpdateStage(ctx, ids)
	return &HandleResult{
		Success:          updates.Success,
		SummariesFetched: summaries.Fetched,
		UpdatesFetched:   updates.Fetched,
	}, err
}

// SummaryStage fetches summaries for projects that have none yet.
// Summaries are a one-shot enrichment: once present, never refreshed.
func (c *Coordinator) SummaryStage(ctx context.Context, ids []string) (*StageResult, error) {
	result := &StageResult{Success: true}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.batchSize)

	for _, id := range ids {
		g.Go(func() error {
			has, err := c.db.HasSummary(id)
			if err != nil {
				log.Printf("Checking summary for %s: %v", id, err)
				return nil
			}
			if has {
				return nil
			}

			var payload *remote.SummaryPayload
			err = c.limiter.Schedule(gctx, func() error {
				var ferr error
				payload, ferr = c.remote.FetchProjectSummary(gctx, id)
				return ferr
			})
			if err != nil {
				if errors.Is(err, remote.ErrNoWorkspace) {
					return err // systemic: abort the stage
				}
				log.Printf("Fetching summary for %s: %v (skipped this run)", id, err)
				return nil
			}

			if err := c.db.UpsertProjectSummary(payload.ID, payload.Name, payload.Archived); err != nil {
				log.Printf("Storing summary for %s: %v", id, err)
				return nil
			}

			mu.Lock()
			result.Fetched++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		result.Success = false
		log.Printf("Summary stage aborted: %v", err)
		return result, err
	}
	log.Printf("Summary stage complete: %d fetched", result.Fetched)
	return result, nil
}

// UpdateStage fetches update streams for projects with no stored updates
// or whose newest update is older than the staleness threshold.
func (c *Coordinator) UpdateStage(ctx context.Context, ids []string) (*StageResult, error) {
	result := &StageResult{Success: true}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.batchSize)

	for _, id := range ids {
		g.Go(func() error {
			need, err := c.needsUpdateFetch(id)
			if err != nil {
				log.Printf("Checking updates for %s: %v", id, err)
				return nil
			}
			if !need {
				return nil
			}

			var payloads []remote.UpdatePayload
			err = c.limiter.Schedule(gctx, func() error {
				var ferr error
				payloads, ferr = c.remote.FetchProjectUpdates(gctx, id)
				return ferr
			})
			if err != nil {
				if errors.Is(err, remote.ErrNoWorkspace) {
					return err
				}
				log.Printf("Fetching updates for %s: %v (skipped this run)", id, err)
				return nil
			}

			if err := c.storeUpdates(id, payloads); err != nil {
				log.Printf("Storing updates for %s: %v", id, err)
				return nil
			}

			mu.Lock()
			result.Fetched++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		result.Success = false
		log.Printf("Update stage aborted: %v", err)
		return result, err
	}
	log.Printf("Update stage complete: %d projects fetched", result.Fetched)
	return result, nil
}

func (c *Coordinator) needsUpdateFetch(projectID string) (bool, error) {
	count, err := c.db.CountUpdatesForProject(projectID)
	if err != nil {
		return false, err
	}
	if count == 0 {
		return true, nil
	}

	newest, err := c.db.NewestUpdateTime(projectID)
	if err != nil {
		return false, err
	}
	return time.Since(newest) > c.staleness, nil
}

// storeUpdates persists a fetched stream under the project it was
// fetched for. The payload's own project field is not trusted for
// attribution: the stream endpoint is per-project, so a divergent or
// empty value there must not redirect rows to another project row.
func (c *Coordinator) storeUpdates(projectID string, payloads []remote.UpdatePayload) error {
	if err := c.db.EnsureProject(projectID); err != nil {
		return err
	}
	for _, p := range payloads {
		_, err := c.db.InsertUpdate(p.ID, projectID, p.CreatedAt.UTC().Format(time.RFC3339), p.StateLabel, p.Text)
		if err != nil {
			return err
		}
	}
	return nil
}
