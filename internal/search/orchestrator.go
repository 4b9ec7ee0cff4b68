// Package search runs one job's destination fan-out, scoring, and
// ranking.
package search

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/tripradar/tripradar/internal/domain"
	"github.com/tripradar/tripradar/internal/flights"
	"github.com/tripradar/tripradar/internal/metrics"
	"github.com/tripradar/tripradar/internal/scoring"
	"github.com/tripradar/tripradar/internal/weather"
)

// ProgressFunc is invoked once per completed destination, under the
// orchestrator's collection lock. Returning false stops dispatch of
// further destinations; in-flight ones finish.
type ProgressFunc func(processed, total int, dest domain.Destination) bool

type Orchestrator struct {
	registry    *Registry
	weather     weather.Fetcher
	concurrency int
	logger      *slog.Logger
}

func NewOrchestrator(registry *Registry, fetcher weather.Fetcher, concurrency int, logger *slog.Logger) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		registry:    registry,
		weather:     fetcher,
		concurrency: concurrency,
		logger:      logger,
	}
}

// candidate is one destination's representative offer after pass 1.
type candidate struct {
	dest    domain.Destination
	offer   domain.Offer
	weather domain.Weather
}

// Run processes the catalog under a bounded worker pool and returns the
// ranked result. Returns domain.ErrJobCancelled when the progress
// callback asked to stop.
func (o *Orchestrator) Run(ctx context.Context, catalog []domain.Destination, params domain.SearchParams, progress ProgressFunc) (*domain.SearchResult, error) {
	providers := o.registry.Resolve(params.Providers)
	total := len(catalog)

	// One cache per run: weather is shared across this job's
	// destinations but never leaks into the next job.
	cache := weather.NewCache(o.weather)

	// Slot per catalog position: completion order must not leak into
	// the ranking's tie order.
	slots := make([]*candidate, total)
	sem := make(chan struct{}, o.concurrency)
	var wg sync.WaitGroup

	var mu sync.Mutex
	processed := 0
	stopped := false

dispatch:
	for i, dest := range catalog {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break dispatch
		}
		// Check after the slot acquire: a finishing worker observes
		// cancellation before releasing its slot.
		mu.Lock()
		stop := stopped
		mu.Unlock()
		if stop {
			<-sem
			break
		}

		wg.Add(1)
		go func(i int, dest domain.Destination) {
			defer wg.Done()
			defer func() { <-sem }()

			cand := o.processDestination(ctx, cache, dest, providers, params)
			metrics.DestinationsProcessedTotal.Inc()

			mu.Lock()
			defer mu.Unlock()
			slots[i] = cand
			processed++
			if progress != nil && !progress(processed, total, dest) {
				stopped = true
			}
		}(i, dest)
	}
	wg.Wait()

	if stopped {
		return nil, domain.ErrJobCancelled
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return o.rank(slots, params), nil
}

// processDestination is pass 1: gather offers, attach weather, score
// against the destination's own price range, keep the best offer.
// Returns nil when the destination yielded nothing usable.
func (o *Orchestrator) processDestination(ctx context.Context, cache *weather.Cache, dest domain.Destination, providers []flights.Provider, params domain.SearchParams) *candidate {
	offers := o.fanOut(ctx, dest, providers, params)
	if len(offers) == 0 {
		return nil
	}

	localMin, localMax := priceRange(offers)

	var best *candidate
	bestScore := -1.0
	for _, offer := range offers {
		w, err := cache.GetOrFetch(ctx, dest.Lat, dest.Lon, offer.Departure, offer.Return)
		if err != nil {
			o.logger.Debug("weather unavailable, offer dropped",
				"airport", dest.Airport, "dep", offer.Departure, "error", err)
			continue
		}
		// Strict > keeps the earliest offer on ties, and offers arrive
		// in provider order.
		if s := scoring.Score(w, offer.Price, offer.Stops, localMin, localMax); s > bestScore {
			bestScore = s
			best = &candidate{dest: dest, offer: offer, weather: w}
		}
	}
	return best
}

// rank is pass 2: re-score every representative against the global
// price range, then order by score with catalog-order ties.
func (o *Orchestrator) rank(slots []*candidate, params domain.SearchParams) *domain.SearchResult {
	var reps []*candidate
	for _, c := range slots {
		if c != nil {
			reps = append(reps, c)
		}
	}

	var prices []domain.Offer
	for _, c := range reps {
		prices = append(prices, c.offer)
	}
	globalMin, globalMax := priceRange(prices)

	results := make([]domain.DestinationResult, 0, len(reps))
	for _, c := range reps {
		results = append(results, domain.DestinationResult{
			City:              c.dest.City,
			Country:           c.dest.Country,
			Airport:           c.dest.Airport,
			AvgTempC:          c.weather.AvgTempC,
			AvgPrecipMMPerDay: c.weather.AvgPrecipMMPerDay,
			FlightPrice:       c.offer.Price,
			Currency:          c.offer.Currency,
			TotalStops:        c.offer.Stops,
			Airlines:          c.offer.Airline,
			BestDeparture:     c.offer.Departure,
			BestReturn:        c.offer.Return,
			Provider:          c.offer.Provider,
			Score:             scoring.Score(c.weather, c.offer.Price, c.offer.Stops, globalMin, globalMax),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if params.TopN > 0 && len(results) > params.TopN {
		results = results[:params.TopN]
	}

	return &domain.SearchResult{Meta: params, Results: results}
}

func priceRange(offers []domain.Offer) (min, max float64) {
	for i, o := range offers {
		if i == 0 || o.Price < min {
			min = o.Price
		}
		if i == 0 || o.Price > max {
			max = o.Price
		}
	}
	return min, max
}
