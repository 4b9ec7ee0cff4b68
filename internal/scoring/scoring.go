// Package scoring computes the 0–100 attractiveness score of a candidate
// trip. The function is pure: no I/O, no shared state.
package scoring

import "github.com/tripradar/tripradar/internal/domain"

// Weighting of the final score. Price dominates slightly; the pair must
// always sum to 1.
const (
	priceWeight   = 0.6
	weatherWeight = 0.4
)

// Ideal daytime temperature band. Outside it the temperature component
// falls off linearly at fallOffPerDeg points per degree.
const (
	idealTempLowC  = 20.0
	idealTempHighC = 26.0
	fallOffPerDeg  = 8.0
)

// Rain below lightRainMM has no effect; at or above heavyRainMM the
// rain component bottoms out. Linear in between.
const (
	lightRainMM = 0.5
	heavyRainMM = 7.0
)

// Score combines the price and weather components into a single value
// in [0, 100]. minPrice and maxPrice define the normalization range:
// on the first pass they are the destination's own price range, on the
// second pass the global range across the whole result set.
func Score(w domain.Weather, price float64, stops int, minPrice, maxPrice float64) float64 {
	p := priceScore(price, minPrice, maxPrice) * stopPenalty(stops)
	return priceWeight*p + weatherWeight*weatherScore(w)
}

// priceScore maps price linearly into [0, 100]: minPrice scores 100,
// maxPrice scores 0. A degenerate range scores 100 for any price.
func priceScore(price, minPrice, maxPrice float64) float64 {
	if maxPrice == minPrice {
		return 100.0
	}
	s := 100.0 * (maxPrice - price) / (maxPrice - minPrice)
	return clamp(s, 0, 100)
}

// stopPenalty discounts the price component by 10% per stop, but never
// below half credit.
func stopPenalty(stops int) float64 {
	if stops < 0 {
		stops = 0
	}
	return max(0.5, 1.0-0.1*float64(stops))
}

func weatherScore(w domain.Weather) float64 {
	tempScore := 100.0
	switch {
	case w.AvgTempC < idealTempLowC:
		tempScore = max(0, 100-(idealTempLowC-w.AvgTempC)*fallOffPerDeg)
	case w.AvgTempC > idealTempHighC:
		tempScore = max(0, 100-(w.AvgTempC-idealTempHighC)*fallOffPerDeg)
	}

	return 0.6*tempScore + 0.4*rainScore(w.AvgPrecipMMPerDay)
}

func rainScore(mmPerDay float64) float64 {
	switch {
	case mmPerDay <= lightRainMM:
		return 100.0
	case mmPerDay >= heavyRainMM:
		return 0.0
	}
	return 100.0 * (heavyRainMM - mmPerDay) / (heavyRainMM - lightRainMM)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
