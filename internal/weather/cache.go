package weather

import (
	"context"
	"math"
	"sync"

	"github.com/tripradar/tripradar/internal/domain"
)

type cacheKey struct {
	lat, lon float64 // rounded to 4 decimals
	dep, ret string
}

// Cache memoizes weather lookups across all destinations of one job run.
// It is owned by a single run and passed down, never shared across jobs.
// A failed fetch leaves the key unset so a later call may retry.
type Cache struct {
	mu      sync.Mutex
	fetcher Fetcher
	entries map[cacheKey]domain.Weather
}

func NewCache(fetcher Fetcher) *Cache {
	return &Cache{
		fetcher: fetcher,
		entries: make(map[cacheKey]domain.Weather),
	}
}

// GetOrFetch returns the cached weather for (lat, lon, dep, ret) or
// fetches and stores it. The single mutex also serializes fetches for
// distinct keys; at catalog sizes this is cheaper than sharding and
// matches how rarely two destinations share a key.
func (c *Cache) GetOrFetch(ctx context.Context, lat, lon float64, dep, ret string) (domain.Weather, error) {
	key := cacheKey{lat: round4(lat), lon: round4(lon), dep: dep, ret: ret}

	c.mu.Lock()
	defer c.mu.Unlock()

	if w, ok := c.entries[key]; ok {
		return w, nil
	}

	w, err := c.fetcher.Fetch(ctx, lat, lon, dep, ret)
	if err != nil {
		return domain.Weather{}, err
	}
	c.entries[key] = w
	return w, nil
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
