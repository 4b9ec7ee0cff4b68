package repository

import (
	"context"
	"time"

	"github.com/tripradar/tripradar/internal/domain"
)

// Usecase and worker depend on the interface, not the Redis
// implementation, so tests can run against an in-memory store.
type JobStore interface {
	// Enqueue persists the job and pushes its ID on the work queue.
	// Returns the assigned job ID.
	Enqueue(ctx context.Context, params domain.SearchParams) (string, error)

	// GetJob returns the current snapshot, or domain.ErrJobNotFound once
	// the record has expired or never existed.
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)

	// SetRunning marks the queued→running transition at pickup time.
	// Returns false without writing when the job is no longer queued,
	// so a cancel that landed after the claim is never overwritten.
	SetRunning(ctx context.Context, jobID string) (bool, error)

	// SetProgress overwrites the live progress fields. Callers throttle;
	// the store writes every call it receives.
	SetProgress(ctx context.Context, jobID string, p domain.Progress) error

	// SetDone stores the result payload and clears progress fields.
	SetDone(ctx context.Context, jobID string, result *domain.SearchResult) error

	// SetFailed stores the error message and clears progress fields.
	SetFailed(ctx context.Context, jobID string, errMsg string) error

	// QueuePosition returns the 1-based position of a queued job, or 0
	// when the job is no longer waiting.
	QueuePosition(ctx context.Context, jobID string) (int, error)

	// Cancel flips a queued or running job to cancelled and removes it
	// from the queue. Returns false when the job was already terminal.
	// Running jobs observe the flip through their next status poll.
	Cancel(ctx context.Context, jobID string) (bool, error)

	// ClaimBlocking pops the next job ID, waiting up to timeout.
	// Returns domain.ErrQueueEmpty when the wait expires.
	ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error)
}
