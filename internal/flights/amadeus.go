package flights

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tripradar/tripradar/internal/domain"
)

const amadeusBaseURL = "https://test.api.amadeus.com"

// Amadeus queries the flight-offers search API, one best-offer request
// per date pair. Authentication is an OAuth2 client-credentials token,
// cached until shortly before expiry.
type Amadeus struct {
	// BaseURL may be overridden in tests.
	BaseURL string

	apiKey    string
	apiSecret string
	http      *http.Client
	retrier   *Retrier
	logger    *slog.Logger

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewAmadeus(apiKey, apiSecret string, retrier *Retrier, logger *slog.Logger) *Amadeus {
	return &Amadeus{
		BaseURL:   amadeusBaseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http:      &http.Client{Timeout: 15 * time.Second},
		retrier:   retrier,
		logger:    logger.With("provider", "amadeus"),
	}
}

func (p *Amadeus) Name() string { return "amadeus" }

func (p *Amadeus) Search(ctx context.Context, q Query) ([]domain.Offer, error) {
	if p.apiKey == "" || p.apiSecret == "" {
		return nil, Fatal(fmt.Errorf("amadeus credentials not configured"))
	}

	pairs, err := datePairs(q)
	if err != nil {
		return nil, err
	}

	var offers []domain.Offer
	for _, pair := range pairs {
		var offer *domain.Offer
		err := p.retrier.Do(ctx, p.Name(), func() error {
			var fetchErr error
			offer, fetchErr = p.fetchBestOffer(ctx, q, pair)
			return fetchErr
		})
		if err != nil {
			if ctx.Err() != nil {
				return offers, ctx.Err()
			}
			p.logger.Debug("date pair skipped", "dep", pair.dep, "ret", pair.ret, "error", err)
			continue
		}
		if offer != nil {
			offers = append(offers, *offer)
		}
	}
	return offers, nil
}

type amadeusOffersResponse struct {
	Data []struct {
		Itineraries []struct {
			Segments []struct {
				CarrierCode string `json:"carrierCode"`
			} `json:"segments"`
		} `json:"itineraries"`
		Price struct {
			GrandTotal string `json:"grandTotal"`
			Currency   string `json:"currency"`
		} `json:"price"`
		ValidatingAirlineCodes []string `json:"validatingAirlineCodes"`
	} `json:"data"`
}

func (p *Amadeus) fetchBestOffer(ctx context.Context, q Query, pair datePair) (*domain.Offer, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	v := url.Values{}
	v.Set("originLocationCode", q.Origin)
	v.Set("destinationLocationCode", q.Destination)
	v.Set("departureDate", pair.dep)
	v.Set("returnDate", pair.ret)
	v.Set("adults", "1")
	v.Set("currencyCode", "EUR")
	v.Set("max", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.BaseURL+"/v2/shopping/flight-offers?"+v.Encode(), nil)
	if err != nil {
		return nil, Fatal(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, Transient(fmt.Errorf("do request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		// Token may have been revoked early; drop it so the retry
		// fetches a fresh one.
		p.tokenMu.Lock()
		p.token = ""
		p.tokenMu.Unlock()
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, Transient(fmt.Errorf("amadeus token rejected"))
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, classifyResponse(resp)
	}

	var body amadeusOffersResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, Transient(fmt.Errorf("decode offers: %w", err))
	}
	if len(body.Data) == 0 {
		return nil, nil // no availability for this pair
	}

	best := body.Data[0]
	price, err := strconv.ParseFloat(best.Price.GrandTotal, 64)
	if err != nil || price <= 0 {
		return nil, nil
	}

	stops := 0
	for _, itin := range best.Itineraries {
		if s := len(itin.Segments) - 1; s > stops {
			stops = s
		}
	}
	airline := ""
	if len(best.ValidatingAirlineCodes) > 0 {
		airline = best.ValidatingAirlineCodes[0]
	}

	return &domain.Offer{
		Price:     price,
		Currency:  best.Price.Currency,
		Stops:     stops,
		Airline:   airline,
		Departure: pair.dep,
		Return:    pair.ret,
		Provider:  p.Name(),
	}, nil
}

type amadeusTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (p *Amadeus) accessToken(ctx context.Context) (string, error) {
	p.tokenMu.Lock()
	defer p.tokenMu.Unlock()

	if p.token != "" && time.Now().Before(p.tokenExpiry) {
		return p.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", p.apiKey)
	form.Set("client_secret", p.apiSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.BaseURL+"/v1/security/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", Fatal(fmt.Errorf("build token request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", Transient(fmt.Errorf("token request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
			return "", Fatal(fmt.Errorf("amadeus auth rejected: status %d", resp.StatusCode))
		}
		return "", classifyResponse(resp)
	}

	var body amadeusTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", Transient(fmt.Errorf("decode token: %w", err))
	}

	p.token = body.AccessToken
	// Refresh one minute early so in-flight calls never race expiry.
	p.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn)*time.Second - time.Minute)
	return p.token, nil
}
