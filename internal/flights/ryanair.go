package flights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tripradar/tripradar/internal/domain"
)

const ryanairBaseURL = "https://www.ryanair.com/api/farfnd/v4"

// Ryanair queries the public round-trip fare finder. The API only
// answers per concrete date, so the adapter enumerates every valid
// (departure, return) pair in the window, one call each.
type Ryanair struct {
	// BaseURL may be overridden in tests.
	BaseURL string

	http    *http.Client
	retrier *Retrier
	logger  *slog.Logger
}

func NewRyanair(retrier *Retrier, logger *slog.Logger) *Ryanair {
	return &Ryanair{
		BaseURL: ryanairBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		retrier: retrier,
		logger:  logger.With("provider", "ryanair"),
	}
}

func (p *Ryanair) Name() string { return "ryanair" }

type ryanairFaresResponse struct {
	Fares []struct {
		Outbound ryanairLeg `json:"outbound"`
		Inbound  ryanairLeg `json:"inbound"`
		Summary  struct {
			Price ryanairPrice `json:"price"`
		} `json:"summary"`
	} `json:"fares"`
}

type ryanairLeg struct {
	DepartureDate string `json:"departureDate"` // "2026-05-01T06:40:00"
	Price         ryanairPrice
}

type ryanairPrice struct {
	Value        float64 `json:"value"`
	CurrencyCode string  `json:"currencyCode"`
}

func (p *Ryanair) Search(ctx context.Context, q Query) ([]domain.Offer, error) {
	pairs, err := datePairs(q)
	if err != nil {
		return nil, err
	}

	var offers []domain.Offer
	for _, pair := range pairs {
		var pairOffers []domain.Offer
		err := p.retrier.Do(ctx, p.Name(), func() error {
			var fetchErr error
			pairOffers, fetchErr = p.fetchPair(ctx, q, pair)
			return fetchErr
		})
		if err != nil {
			if ctx.Err() != nil {
				return offers, ctx.Err()
			}
			// One date pair failing must not sink the rest.
			p.logger.Debug("date pair skipped", "dep", pair.dep, "ret", pair.ret, "error", err)
			continue
		}
		offers = append(offers, pairOffers...)
	}
	return offers, nil
}

func (p *Ryanair) fetchPair(ctx context.Context, q Query, pair datePair) ([]domain.Offer, error) {
	v := url.Values{}
	v.Set("departureAirportIataCode", q.Origin)
	v.Set("arrivalAirportIataCode", q.Destination)
	v.Set("outboundDepartureDateFrom", pair.dep)
	v.Set("outboundDepartureDateTo", pair.dep)
	v.Set("inboundDepartureDateFrom", pair.ret)
	v.Set("inboundDepartureDateTo", pair.ret)
	v.Set("currency", "EUR")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/roundTripFares?"+v.Encode(), nil)
	if err != nil {
		return nil, Fatal(fmt.Errorf("build request: %w", err))
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, Transient(fmt.Errorf("do request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, classifyResponse(resp)
	}

	var body ryanairFaresResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, Transient(fmt.Errorf("decode fares: %w", err))
	}

	var offers []domain.Offer
	for _, fare := range body.Fares {
		dep, err1 := legDate(fare.Outbound.DepartureDate)
		ret, err2 := legDate(fare.Inbound.DepartureDate)
		if err1 != nil || err2 != nil || fare.Summary.Price.Value <= 0 {
			continue // malformed fare, skip it
		}
		offers = append(offers, domain.Offer{
			Price:     fare.Summary.Price.Value,
			Currency:  fare.Summary.Price.CurrencyCode,
			Stops:     0, // fare finder only lists direct rotations
			Airline:   "Ryanair",
			Departure: dep,
			Return:    ret,
			Provider:  p.Name(),
		})
	}
	return offers, nil
}

// legDate trims a leg timestamp like "2026-05-01T06:40:00" to its date.
func legDate(ts string) (string, error) {
	if len(ts) < len(isoDate) {
		return "", errors.New("timestamp too short")
	}
	if _, err := time.Parse(isoDate, ts[:len(isoDate)]); err != nil {
		return "", err
	}
	return ts[:len(isoDate)], nil
}
