package flights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tripradar/tripradar/internal/domain"
)

const wizzairBaseURL = "https://be.wizzair.com/27.6.0/Api"

// The timetable endpoint rejects spans longer than 42 days, so wider
// windows are split into overlapping sub-windows and the duplicate
// date pairs deduplicated afterwards.
const wizzairMaxSpanDays = 42

// Wizzair searches the carrier's timetable API: one date-grid call per
// sub-window yields priced outbound and return days, which are joined
// into round trips matching the requested trip length.
type Wizzair struct {
	// BaseURL may be overridden in tests.
	BaseURL string

	http    *http.Client
	retrier *Retrier
	logger  *slog.Logger
}

func NewWizzair(retrier *Retrier, logger *slog.Logger) *Wizzair {
	return &Wizzair{
		BaseURL: wizzairBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		retrier: retrier,
		logger:  logger.With("provider", "wizzair"),
	}
}

func (p *Wizzair) Name() string { return "wizzair" }

type wizzairTimetableRequest struct {
	FlightList []wizzairFlightFilter `json:"flightList"`
	PriceType  string                `json:"priceType"`
}

type wizzairFlightFilter struct {
	DepartureStation string `json:"departureStation"`
	ArrivalStation   string `json:"arrivalStation"`
	From             string `json:"from"`
	To               string `json:"to"`
}

type wizzairTimetableResponse struct {
	OutboundFlights []wizzairDayPrice `json:"outboundFlights"`
	ReturnFlights   []wizzairDayPrice `json:"returnFlights"`
}

type wizzairDayPrice struct {
	DepartureDate string `json:"departureDate"` // "2026-05-01T00:00:00"
	Price         struct {
		Amount       float64 `json:"amount"`
		CurrencyCode string  `json:"currencyCode"`
	} `json:"price"`
}

func (p *Wizzair) Search(ctx context.Context, q Query) ([]domain.Offer, error) {
	windows, err := splitWindow(q, wizzairMaxSpanDays)
	if err != nil {
		return nil, err
	}

	// Cheapest price per (dep, ret) across all sub-windows.
	best := make(map[datePair]domain.Offer)
	for _, w := range windows {
		var grid *wizzairTimetableResponse
		err := p.retrier.Do(ctx, p.Name(), func() error {
			var fetchErr error
			grid, fetchErr = p.fetchTimetable(ctx, q, w)
			return fetchErr
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Debug("timetable window skipped", "from", w.dep, "to", w.ret, "error", err)
			continue
		}

		for _, offer := range p.joinRoundTrips(grid, q) {
			key := datePair{dep: offer.Departure, ret: offer.Return}
			if prev, ok := best[key]; !ok || offer.Price < prev.Price {
				best[key] = offer
			}
		}
	}

	// Deterministic output order: walk the window's date pairs, not the map.
	pairs, err := datePairs(q)
	if err != nil {
		return nil, err
	}
	var offers []domain.Offer
	for _, pair := range pairs {
		if offer, ok := best[pair]; ok {
			offers = append(offers, offer)
		}
	}
	return offers, nil
}

func (p *Wizzair) fetchTimetable(ctx context.Context, q Query, w datePair) (*wizzairTimetableResponse, error) {
	body, err := json.Marshal(wizzairTimetableRequest{
		FlightList: []wizzairFlightFilter{
			{DepartureStation: q.Origin, ArrivalStation: q.Destination, From: w.dep, To: w.ret},
			{DepartureStation: q.Destination, ArrivalStation: q.Origin, From: w.dep, To: w.ret},
		},
		PriceType: "regular",
	})
	if err != nil {
		return nil, Fatal(fmt.Errorf("marshal timetable request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/search/timetable", bytes.NewReader(body))
	if err != nil {
		return nil, Fatal(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, Transient(fmt.Errorf("do request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, classifyResponse(resp)
	}

	var grid wizzairTimetableResponse
	if err := json.NewDecoder(resp.Body).Decode(&grid); err != nil {
		return nil, Transient(fmt.Errorf("decode timetable: %w", err))
	}
	return &grid, nil
}

// joinRoundTrips pairs each priced outbound day with the return day
// exactly TripLength later, when the grid priced both.
func (p *Wizzair) joinRoundTrips(grid *wizzairTimetableResponse, q Query) []domain.Offer {
	returns := make(map[string]wizzairDayPrice, len(grid.ReturnFlights))
	for _, day := range grid.ReturnFlights {
		if d, err := legDate(day.DepartureDate); err == nil {
			returns[d] = day
		}
	}

	var offers []domain.Offer
	for _, out := range grid.OutboundFlights {
		dep, err := legDate(out.DepartureDate)
		if err != nil || out.Price.Amount <= 0 {
			continue
		}
		depDate, err := time.Parse(isoDate, dep)
		if err != nil {
			continue
		}
		ret := depDate.AddDate(0, 0, q.TripLength).Format(isoDate)
		back, ok := returns[ret]
		if !ok || back.Price.Amount <= 0 {
			continue
		}
		offers = append(offers, domain.Offer{
			Price:     out.Price.Amount + back.Price.Amount,
			Currency:  out.Price.CurrencyCode,
			Stops:     0, // point-to-point carrier
			Airline:   "Wizz Air",
			Departure: dep,
			Return:    ret,
			Provider:  p.Name(),
		})
	}
	return offers
}

// splitWindow cuts [Start, End] into sub-windows of at most maxDays,
// overlapping by one day so no date falls between the cracks.
func splitWindow(q Query, maxDays int) ([]datePair, error) {
	start, err := time.Parse(isoDate, q.Start)
	if err != nil {
		return nil, fmt.Errorf("parse start date %q: %w", q.Start, err)
	}
	end, err := time.Parse(isoDate, q.End)
	if err != nil {
		return nil, fmt.Errorf("parse end date %q: %w", q.End, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s before start date %s", q.End, q.Start)
	}

	var windows []datePair
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, maxDays-1) {
		stop := cur.AddDate(0, 0, maxDays-1)
		if stop.After(end) {
			stop = end
		}
		windows = append(windows, datePair{dep: cur.Format(isoDate), ret: stop.Format(isoDate)})
		if !stop.Before(end) {
			break
		}
	}
	return windows, nil
}
