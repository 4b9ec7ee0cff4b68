package flights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tripradar/tripradar/internal/metrics"
)

// ErrExhausted marks a call that kept hitting retryable failures until
// the attempt cap. It is an outcome, not an abort: callers skip the
// affected date pair and move on.
var ErrExhausted = errors.New("retries exhausted")

// Stats is a point-in-time snapshot of one provider's call counters.
type Stats struct {
	Calls       int64
	Errors      int64
	RateLimited int64
}

type counters struct {
	calls       int64
	errors      int64
	rateLimited int64
}

// Retrier wraps every upstream provider call: it classifies failures,
// applies bounded exponential backoff (honoring a server Retry-After
// hint when present) and accumulates per-provider counters. One
// instance is shared by all adapters of a process; pass it explicitly,
// it is not a package global.
type Retrier struct {
	maxAttempts int
	base        time.Duration
	maxDelay    time.Duration
	logger      *slog.Logger

	mu    sync.Mutex
	stats map[string]*counters
}

func NewRetrier(logger *slog.Logger, maxAttempts int, base time.Duration) *Retrier {
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	return &Retrier{
		maxAttempts: maxAttempts,
		base:        base,
		maxDelay:    time.Minute,
		logger:      logger.With("component", "retrier"),
		stats:       make(map[string]*counters),
	}
}

// Do runs call, retrying rate-limited and transient failures up to the
// attempt cap. Fatal failures return immediately. Exhausting the cap
// returns an error matching ErrExhausted.
func (r *Retrier) Do(ctx context.Context, provider string, call func() error) error {
	var lastErr error

	for attempt := 0; ; attempt++ {
		r.count(provider, func(c *counters) { c.calls++ })
		metrics.ProviderCallsTotal.WithLabelValues(provider).Inc()

		err := call()
		if err == nil {
			return nil
		}

		var pe *Error
		if !errors.As(err, &pe) {
			// Unclassified (raw network error): treat as transient.
			pe = Transient(err)
		}

		metrics.ProviderErrorsTotal.WithLabelValues(provider, pe.Kind.String()).Inc()
		switch pe.Kind {
		case KindFatal:
			r.count(provider, func(c *counters) { c.errors++ })
			return pe
		case KindRateLimited:
			r.count(provider, func(c *counters) { c.rateLimited++ })
		default:
			r.count(provider, func(c *counters) { c.errors++ })
		}

		lastErr = pe
		if attempt >= r.maxAttempts {
			return fmt.Errorf("%s: %w after %d attempts: %w", provider, ErrExhausted, attempt+1, lastErr)
		}

		delay := pe.RetryAfter
		if delay <= 0 {
			delay = r.base << attempt
		}
		if delay > r.maxDelay {
			delay = r.maxDelay
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Snapshot returns a read-only copy of every provider's counters.
// Observability only; never used for control flow.
func (r *Retrier) Snapshot() map[string]Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Stats, len(r.stats))
	for name, c := range r.stats {
		out[name] = Stats{Calls: c.calls, Errors: c.errors, RateLimited: c.rateLimited}
	}
	return out
}

func (r *Retrier) count(provider string, f func(*counters)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.stats[provider]
	if !ok {
		c = &counters{}
		r.stats[provider] = c
	}
	f(c)
}
