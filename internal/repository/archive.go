package repository

import (
	"context"

	"github.com/tripradar/tripradar/internal/domain"
)

type Archive interface {
	// Save upserts the row keyed by job ID and resets its sliding expiry.
	Save(ctx context.Context, rec *domain.ArchivedSearch) error

	// Get returns one row and pushes its expiry forward, or
	// domain.ErrSearchNotFound when missing or already expired.
	Get(ctx context.Context, jobID string) (*domain.ArchivedSearch, error)

	// ListByClient returns the client's own searches, newest first,
	// minus the ones the client has hidden.
	ListByClient(ctx context.Context, clientID string) ([]*domain.ArchivedSearch, error)

	// SaveForClient bookmarks a search for a client under an optional
	// custom name. Any client may save any search; re-saving revives a
	// previously unsaved bookmark.
	SaveForClient(ctx context.Context, jobID, clientID, customName string) error

	// Unsave soft-deletes the client's bookmark.
	Unsave(ctx context.Context, jobID, clientID string) error

	// ListSaved returns the client's live bookmarks, newest first.
	ListSaved(ctx context.Context, clientID string) ([]*domain.ArchivedSearch, error)

	Hide(ctx context.Context, jobID, clientID string) error
	Unhide(ctx context.Context, jobID, clientID string) error

	// Rename sets the row's custom name. Only the owning client may
	// rename; domain.ErrNotOwner otherwise.
	Rename(ctx context.Context, jobID, clientID, name string) error

	// PurgeExpired deletes rows past their expiry and returns the count.
	PurgeExpired(ctx context.Context) (int, error)
}
