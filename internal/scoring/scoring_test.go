package scoring_test

import (
	"testing"

	"github.com/tripradar/tripradar/internal/domain"
	"github.com/tripradar/tripradar/internal/scoring"
)

var mildWeather = domain.Weather{AvgTempC: 23, AvgPrecipMMPerDay: 0}

func TestScore_MonotonicInPrice(t *testing.T) {
	prev := 101.0
	for price := 100.0; price <= 500.0; price += 50 {
		s := scoring.Score(mildWeather, price, 0, 100, 500)
		if s > prev {
			t.Fatalf("score increased with price: %f at price %f (prev %f)", s, price, prev)
		}
		prev = s
	}
}

func TestScore_DegenerateRangeMaxesPriceComponent(t *testing.T) {
	// With min == max every price scores the full price component,
	// so two wildly different prices must tie.
	a := scoring.Score(mildWeather, 50, 0, 200, 200)
	b := scoring.Score(mildWeather, 5000, 0, 200, 200)
	if a != b {
		t.Fatalf("degenerate range: %f != %f", a, b)
	}

	// And it must equal the score of the cheapest offer in a real range.
	c := scoring.Score(mildWeather, 100, 0, 100, 500)
	if a != c {
		t.Fatalf("degenerate range score %f != min-price score %f", a, c)
	}
}

func TestScore_StopPenaltyMonotonicAndFloored(t *testing.T) {
	prev := 101.0
	for stops := 0; stops <= 12; stops++ {
		s := scoring.Score(mildWeather, 100, stops, 100, 500)
		if s > prev {
			t.Fatalf("score increased with stops=%d: %f > %f", stops, s, prev)
		}
		prev = s
	}

	// Penalty floors at 50%: 5 stops and 10 stops are identical.
	five := scoring.Score(mildWeather, 100, 5, 100, 500)
	ten := scoring.Score(mildWeather, 100, 10, 100, 500)
	if five != ten {
		t.Fatalf("stop penalty not floored: %f != %f", five, ten)
	}
}

func TestScore_IdealTempBeatsExtremes(t *testing.T) {
	ideal := scoring.Score(domain.Weather{AvgTempC: 23}, 100, 0, 100, 500)
	cold := scoring.Score(domain.Weather{AvgTempC: 5}, 100, 0, 100, 500)
	hot := scoring.Score(domain.Weather{AvgTempC: 40}, 100, 0, 100, 500)

	if ideal <= cold || ideal <= hot {
		t.Fatalf("ideal temp %f not above cold %f / hot %f", ideal, cold, hot)
	}
}

func TestScore_LightRainHasNoEffect(t *testing.T) {
	dry := scoring.Score(domain.Weather{AvgTempC: 23, AvgPrecipMMPerDay: 0}, 100, 0, 100, 500)
	drizzle := scoring.Score(domain.Weather{AvgTempC: 23, AvgPrecipMMPerDay: 0.4}, 100, 0, 100, 500)
	if dry != drizzle {
		t.Fatalf("drizzle below threshold changed score: %f != %f", dry, drizzle)
	}

	downpour := scoring.Score(domain.Weather{AvgTempC: 23, AvgPrecipMMPerDay: 12}, 100, 0, 100, 500)
	if downpour >= dry {
		t.Fatalf("heavy rain did not lower score: %f >= %f", downpour, dry)
	}
}

func TestScore_Bounded(t *testing.T) {
	cases := []struct {
		w      domain.Weather
		price  float64
		stops  int
		lo, hi float64
	}{
		{domain.Weather{AvgTempC: 23}, 100, 0, 100, 500},
		{domain.Weather{AvgTempC: -30, AvgPrecipMMPerDay: 50}, 500, 9, 100, 500},
		{domain.Weather{AvgTempC: 55}, 50, 0, 100, 500}, // price below range clamps
		{domain.Weather{AvgTempC: 23}, 900, 3, 100, 500}, // price above range clamps
	}
	for _, c := range cases {
		s := scoring.Score(c.w, c.price, c.stops, c.lo, c.hi)
		if s < 0 || s > 100 {
			t.Fatalf("score out of bounds: %f for %+v", s, c)
		}
	}
}
