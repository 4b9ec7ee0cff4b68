package search

import (
	"context"
	"strings"
	"sync"

	"github.com/tripradar/tripradar/internal/domain"
	"github.com/tripradar/tripradar/internal/flights"
)

// Registry maps requested provider names to adapters. Resolution keeps
// registration order, which fixes the offer concatenation order and
// with it the ranking tie behavior.
type Registry struct {
	providers []flights.Provider
}

func NewRegistry(providers ...flights.Provider) *Registry {
	return &Registry{providers: providers}
}

// Names returns the registered provider names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}

// Resolve returns the adapters for the requested names. Unknown names
// are ignored; validation happens at enqueue time.
func (r *Registry) Resolve(names []string) []flights.Provider {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(strings.TrimSpace(n))] = true
	}
	var out []flights.Provider
	for _, p := range r.providers {
		if want[p.Name()] {
			out = append(out, p)
		}
	}
	return out
}

// fanOut queries every requested provider for one destination
// concurrently and concatenates the normalized offers in provider
// order. A provider failure is logged and contributes nothing; it
// never sinks the other providers.
func (o *Orchestrator) fanOut(ctx context.Context, dest domain.Destination, providers []flights.Provider, params domain.SearchParams) []domain.Offer {
	q := flights.Query{
		Origin:      params.Origin,
		Destination: dest.Airport,
		Start:       params.Start,
		End:         params.End,
		TripLength:  params.TripLength,
	}

	results := make([][]domain.Offer, len(providers))
	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func(i int, p flights.Provider) {
			defer wg.Done()
			offers, err := p.Search(ctx, q)
			if err != nil {
				o.logger.Warn("provider search failed",
					"provider", p.Name(), "airport", dest.Airport, "error", err)
			}
			// Keep whatever the adapter gathered before failing.
			results[i] = offers
		}(i, p)
	}
	wg.Wait()

	var all []domain.Offer
	for _, offers := range results {
		all = append(all, offers...)
	}
	return all
}
