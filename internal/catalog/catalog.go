// Package catalog holds the static list of candidate destinations
// searched by every job. The catalog order is significant: destinations
// are dispatched in this order and score ties rank in this order.
package catalog

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/tripradar/tripradar/internal/domain"
)

//go:embed cities.csv
var citiesCSV string

// Load parses the embedded catalog. Columns: city,country,lat,lon,airport.
func Load() ([]domain.Destination, error) {
	r := csv.NewReader(strings.NewReader(citiesCSV))

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read catalog csv: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("catalog csv has no data rows")
	}

	dests := make([]domain.Destination, 0, len(records)-1)
	for i, rec := range records[1:] { // skip header
		if len(rec) != 5 {
			return nil, fmt.Errorf("catalog row %d: want 5 columns, got %d", i+2, len(rec))
		}
		lat, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("catalog row %d: lat: %w", i+2, err)
		}
		lon, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return nil, fmt.Errorf("catalog row %d: lon: %w", i+2, err)
		}
		dests = append(dests, domain.Destination{
			City:    rec[0],
			Country: rec[1],
			Lat:     lat,
			Lon:     lon,
			Airport: rec[4],
		})
	}
	return dests, nil
}
