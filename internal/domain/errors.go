package domain

import "errors"

var (
	// ErrJobNotFound means the job never existed or its record expired.
	ErrJobNotFound = errors.New("job not found")

	// ErrQueueEmpty is returned by a blocking claim that timed out.
	ErrQueueEmpty = errors.New("queue empty")

	// ErrJobCancelled aborts an orchestration run once a cancellation
	// request has been observed.
	ErrJobCancelled = errors.New("job cancelled")

	// ErrSearchNotFound means the archived search does not exist.
	ErrSearchNotFound = errors.New("search not found")

	// ErrNotOwner means the client id does not match the search's creator.
	ErrNotOwner = errors.New("client does not own this search")

	// ErrInvalidParams wraps a search-parameter validation failure.
	ErrInvalidParams = errors.New("invalid search parameters")

	// ErrArchiveDisabled is returned by history features when the
	// deployment runs without a database.
	ErrArchiveDisabled = errors.New("search archive disabled")
)
