package domain

import "time"

// ArchivedSearch is a finished search persisted past the Redis job TTL.
// Rows live on a sliding expiry: every read pushes ExpiresAt forward.
type ArchivedSearch struct {
	JobID          string        `json:"job_id"`
	ClientID       string        `json:"client_id,omitempty"`
	Status         Status        `json:"status"`
	Params         SearchParams  `json:"params"`
	Result         *SearchResult `json:"result,omitempty"`
	Error          string        `json:"error,omitempty"`
	CustomName     string        `json:"custom_name,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	ExpiresAt      time.Time     `json:"expires_at"`
	LastAccessedAt time.Time     `json:"last_accessed_at"`

	// Saved is filled on list reads for the requesting client; it is
	// not a column of the archive row itself.
	Saved bool `json:"saved,omitempty"`
}
