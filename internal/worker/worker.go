// Package worker drains the job queue, one job at a time, and drives
// each search through the orchestrator.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/tripradar/tripradar/internal/domain"
	applog "github.com/tripradar/tripradar/internal/log"
	"github.com/tripradar/tripradar/internal/metrics"
	"github.com/tripradar/tripradar/internal/repository"
	"github.com/tripradar/tripradar/internal/search"
)

// progressInterval throttles both progress writes and cancellation
// polls to at most one store round-trip per second.
const progressInterval = time.Second

// Orchestrator is what the worker needs from the search engine.
type Orchestrator interface {
	Run(ctx context.Context, catalog []domain.Destination, params domain.SearchParams, progress search.ProgressFunc) (*domain.SearchResult, error)
}

type Worker struct {
	store        repository.JobStore
	archive      repository.Archive // nil disables the durable copy
	orch         Orchestrator
	catalog      []domain.Destination
	claimTimeout time.Duration
	logger       *slog.Logger
}

func New(store repository.JobStore, archive repository.Archive, orch Orchestrator, catalog []domain.Destination, claimTimeout time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		store:        store,
		archive:      archive,
		orch:         orch,
		catalog:      catalog,
		claimTimeout: claimTimeout,
		logger:       logger,
	}
}

// Run claims and processes jobs until the context is cancelled.
// Jobs are strictly sequential; parallelism lives inside the
// orchestrator's pool.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "claim_timeout", w.claimTimeout)
	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info("worker stopping")
			return nil
		}

		jobID, err := w.store.ClaimBlocking(ctx, w.claimTimeout)
		if errors.Is(err, domain.ErrQueueEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("worker stopping")
				return nil
			}
			w.logger.Error("claim failed", "error", err)
			time.Sleep(time.Second)
			continue
		}

		w.runJob(applog.WithJobID(ctx, jobID), jobID)
	}
}

func (w *Worker) runJob(ctx context.Context, jobID string) {
	job, err := w.store.GetJob(ctx, jobID)
	if errors.Is(err, domain.ErrJobNotFound) {
		// Expired between enqueue and pickup. Nothing left to run.
		w.logger.Warn("claimed job already expired")
		return
	}
	if err != nil {
		w.logger.Error("read claimed job", "error", err)
		return
	}

	if job.Status == domain.StatusCancelled {
		w.logger.Info("job cancelled before pickup")
		metrics.JobsCompletedTotal.WithLabelValues("cancelled").Inc()
		return
	}
	if !job.CreatedAt.IsZero() {
		metrics.JobPickupLatency.Observe(time.Since(job.CreatedAt).Seconds())
	}

	ok, err := w.store.SetRunning(ctx, jobID)
	if errors.Is(err, domain.ErrJobNotFound) {
		w.logger.Warn("claimed job expired before start")
		return
	}
	if err != nil {
		w.logger.Error("mark running", "error", err)
		return
	}
	if !ok {
		// Cancel landed between the status check above and pickup.
		w.logger.Info("job cancelled at pickup")
		metrics.JobsCompletedTotal.WithLabelValues("cancelled").Inc()
		return
	}
	w.logger.Info("job started", "origin", job.Params.Origin,
		"window", job.Params.Start+".."+job.Params.End, "providers", job.Params.Providers)

	started := time.Now()
	result, err := w.runSearch(ctx, jobID, job.Params)

	switch {
	case errors.Is(err, domain.ErrJobCancelled):
		// Cancel already wrote the terminal status.
		w.logger.Info("job cancelled", "elapsed", time.Since(started))
		metrics.JobsCompletedTotal.WithLabelValues("cancelled").Inc()

	case err != nil:
		// Cancellation wins over a concurrent failure: the error path
		// must not overwrite the cancelled status.
		if w.isCancelled(ctx, jobID) {
			w.logger.Info("job cancelled during failure", "error", err)
			metrics.JobsCompletedTotal.WithLabelValues("cancelled").Inc()
			return
		}
		w.logger.Error("job failed", "error", err, "elapsed", time.Since(started))
		if serr := w.store.SetFailed(ctx, jobID, err.Error()); serr != nil {
			w.logger.Error("write failed status", "error", serr)
		}
		metrics.JobsCompletedTotal.WithLabelValues("failed").Inc()
		metrics.JobDuration.Observe(time.Since(started).Seconds())
		w.archiveJob(ctx, job, domain.StatusFailed, nil, err.Error())

	default:
		if w.isCancelled(ctx, jobID) {
			w.logger.Info("job cancelled at the finish line")
			metrics.JobsCompletedTotal.WithLabelValues("cancelled").Inc()
			return
		}
		if serr := w.store.SetDone(ctx, jobID, result); serr != nil {
			// The record may have expired mid-run. The result is still in
			// hand, so the archive write below must happen regardless.
			w.logger.Error("write done status", "error", serr)
		}
		w.logger.Info("job done", "results", len(result.Results), "elapsed", time.Since(started))
		metrics.JobsCompletedTotal.WithLabelValues("done").Inc()
		metrics.JobDuration.Observe(time.Since(started).Seconds())
		w.archiveJob(ctx, job, domain.StatusDone, result, "")
	}
}

// runSearch runs the orchestrator with a throttled progress callback
// and converts a panic into an ordinary job failure.
func (w *Worker) runSearch(ctx context.Context, jobID string, params domain.SearchParams) (result *domain.SearchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("orchestration panic: %v\n%s", r, debug.Stack())
		}
	}()

	var lastRoundTrip time.Time
	progress := func(processed, total int, dest domain.Destination) bool {
		if processed < total && time.Since(lastRoundTrip) < progressInterval {
			return true
		}
		lastRoundTrip = time.Now()

		if w.isCancelled(ctx, jobID) {
			return false
		}
		p := domain.Progress{
			Processed: processed,
			Total:     total,
			Current:   dest.City + " (" + dest.Airport + ")",
		}
		if perr := w.store.SetProgress(ctx, jobID, p); perr != nil {
			w.logger.Warn("write progress", "error", perr)
		}
		return true
	}

	return w.orch.Run(ctx, w.catalog, params, progress)
}

func (w *Worker) isCancelled(ctx context.Context, jobID string) bool {
	job, err := w.store.GetJob(ctx, jobID)
	if err != nil {
		// Expired mid-run reads as not cancelled; the terminal write
		// will fail on its own and be logged there.
		return false
	}
	return job.Status == domain.StatusCancelled
}

// archiveJob writes the durable copy. Best effort: an archive outage
// must not fail a finished job.
func (w *Worker) archiveJob(ctx context.Context, job *domain.Job, status domain.Status, result *domain.SearchResult, errMsg string) {
	if w.archive == nil {
		return
	}
	rec := &domain.ArchivedSearch{
		JobID:     job.ID,
		ClientID:  job.Params.ClientID,
		Status:    status,
		Params:    job.Params,
		Result:    result,
		Error:     errMsg,
		CreatedAt: job.CreatedAt,
	}
	if err := w.archive.Save(ctx, rec); err != nil {
		w.logger.Warn("archive write failed", "error", err)
		metrics.ArchiveWritesTotal.WithLabelValues("error").Inc()
		return
	}
	metrics.ArchiveWritesTotal.WithLabelValues("ok").Inc()
}
