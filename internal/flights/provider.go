// Package flights integrates the upstream flight-price providers behind
// a single contract: given an origin, a destination and a date window,
// return normalized round-trip offers. Provider idiosyncrasies (per-date
// enumeration, date-grid search, window splitting) stay inside each
// adapter; the orchestrator never branches on provider type.
package flights

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tripradar/tripradar/internal/domain"
)

// Query describes one provider search: round trips from Origin to
// Destination departing in [Start, End-TripLength], returning TripLength
// days later, no later than End. Dates are ISO (YYYY-MM-DD).
type Query struct {
	Origin      string
	Destination string
	Start       string
	End         string
	TripLength  int
}

// Provider is implemented by one adapter per upstream integration.
// Search returns every normalized offer it could collect; failures of
// individual date pairs are swallowed inside the adapter. A non-nil
// error means the whole provider produced nothing usable for this
// destination.
type Provider interface {
	Name() string
	Search(ctx context.Context, q Query) ([]domain.Offer, error)
}

// Kind classifies an upstream failure.
type Kind int

const (
	KindTransient   Kind = iota // 5xx, network error: retry with backoff
	KindRateLimited             // 429 or equivalent: retry, honoring RetryAfter
	KindFatal                   // bad request, bad airport code, auth: never retry
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindFatal:
		return "fatal"
	default:
		return "transient"
	}
}

// Error is a classified upstream failure. RetryAfter carries the
// server-supplied hint when the upstream sent one.
type Error struct {
	Kind       Kind
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as a retryable failure.
func Transient(err error) *Error { return &Error{Kind: KindTransient, Err: err} }

// Fatal wraps err as a failure the caller must not retry.
func Fatal(err error) *Error { return &Error{Kind: KindFatal, Err: err} }

// RateLimited wraps err as a rate-limit failure with an optional server hint.
func RateLimited(err error, retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, RetryAfter: retryAfter, Err: err}
}

// classifyResponse maps a non-2xx HTTP response to a classified Error.
func classifyResponse(resp *http.Response) *Error {
	err := fmt.Errorf("status %d from %s", resp.StatusCode, resp.Request.URL.Host)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return RateLimited(err, parseRetryAfter(resp.Header.Get("Retry-After")))
	case resp.StatusCode >= 500:
		return Transient(err)
	default:
		return Fatal(err)
	}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
