package domain

import (
	"time"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status can never change again.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusCancelled
}

// SearchParams is the input of one search job. Dates are ISO (YYYY-MM-DD);
// Start/End bound the departure window, TripLength is nights between
// departure and return.
type SearchParams struct {
	Origin     string   `json:"origin"`
	Start      string   `json:"start"`
	End        string   `json:"end"`
	TripLength int      `json:"trip_length"`
	Providers  []string `json:"providers"`
	TopN       int      `json:"top_n"`
	ClientID   string   `json:"client_id,omitempty"`
}

// Progress is the live snapshot written while a job is running.
// Current is a human label like "Malaga (AGP)".
type Progress struct {
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Current   string `json:"current,omitempty"`
}

// Job is one asynchronous search request and its lifecycle state.
// Exactly one of Result/Error is set once the job is done or failed;
// Progress is nil on any terminal status.
type Job struct {
	ID        string
	Status    Status
	CreatedAt time.Time
	Params    SearchParams
	Progress  *Progress
	Result    *SearchResult
	Error     string
}
