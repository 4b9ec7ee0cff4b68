package flights_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tripradar/tripradar/internal/flights"
)

func fareJSON(dep, ret string, price float64) string {
	return fmt.Sprintf(`{"fares":[{
		"outbound":{"departureDate":"%sT06:40:00"},
		"inbound":{"departureDate":"%sT21:15:00"},
		"summary":{"price":{"value":%g,"currencyCode":"EUR"}}
	}]}`, dep, ret, price)
}

func TestRyanairSearch_OfferPerDatePair(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		dep := r.URL.Query().Get("outboundDepartureDateFrom")
		ret := r.URL.Query().Get("inboundDepartureDateFrom")
		fmt.Fprint(w, fareJSON(dep, ret, 99.50))
	}))
	defer srv.Close()

	p := flights.NewRyanair(flights.NewRetrier(slog.Default(), 2, time.Millisecond), slog.Default())
	p.BaseURL = srv.URL

	offers, err := p.Search(context.Background(), flights.Query{
		Origin: "WRO", Destination: "ALC",
		Start: "2026-05-01", End: "2026-05-10", TripLength: 7,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Three valid (dep, ret) pairs fit the window, one call each.
	if got := calls.Load(); got != 3 {
		t.Errorf("upstream calls = %d, want 3", got)
	}
	if len(offers) != 3 {
		t.Fatalf("got %d offers, want 3: %v", len(offers), offers)
	}
	first := offers[0]
	if first.Departure != "2026-05-01" || first.Return != "2026-05-08" {
		t.Errorf("first offer dates = %s/%s", first.Departure, first.Return)
	}
	if first.Price != 99.50 || first.Currency != "EUR" || first.Provider != "ryanair" {
		t.Errorf("first offer = %+v", first)
	}
}

func TestRyanairSearch_FailedPairSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("outboundDepartureDateFrom") == "2026-05-02" {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		dep := r.URL.Query().Get("outboundDepartureDateFrom")
		ret := r.URL.Query().Get("inboundDepartureDateFrom")
		fmt.Fprint(w, fareJSON(dep, ret, 120))
	}))
	defer srv.Close()

	p := flights.NewRyanair(flights.NewRetrier(slog.Default(), 1, time.Millisecond), slog.Default())
	p.BaseURL = srv.URL

	offers, err := p.Search(context.Background(), flights.Query{
		Origin: "WRO", Destination: "ALC",
		Start: "2026-05-01", End: "2026-05-10", TripLength: 7,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(offers) != 2 {
		t.Fatalf("got %d offers, want 2 (failing pair skipped): %v", len(offers), offers)
	}
	for _, o := range offers {
		if o.Departure == "2026-05-02" {
			t.Errorf("offer for failed pair present: %+v", o)
		}
	}
}

func TestRyanairSearch_MalformedFareDropped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"fares":[
			{"outbound":{"departureDate":"garbage"},
			 "inbound":{"departureDate":"2026-05-08T10:00:00"},
			 "summary":{"price":{"value":50,"currencyCode":"EUR"}}},
			{"outbound":{"departureDate":"2026-05-01T06:40:00"},
			 "inbound":{"departureDate":"2026-05-08T10:00:00"},
			 "summary":{"price":{"value":0,"currencyCode":"EUR"}}}
		]}`)
	}))
	defer srv.Close()

	p := flights.NewRyanair(flights.NewRetrier(slog.Default(), 1, time.Millisecond), slog.Default())
	p.BaseURL = srv.URL

	offers, err := p.Search(context.Background(), flights.Query{
		Origin: "WRO", Destination: "ALC",
		Start: "2026-05-01", End: "2026-05-08", TripLength: 7,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(offers) != 0 {
		t.Errorf("malformed fares should be dropped, got %v", offers)
	}
}
