// Package weather fetches and caches aggregated forecast data for a
// destination over a trip's date range.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tripradar/tripradar/internal/domain"
)

// Fetcher is the outbound weather-source contract.
type Fetcher interface {
	Fetch(ctx context.Context, lat, lon float64, start, end string) (domain.Weather, error)
}

const defaultBaseURL = "https://api.open-meteo.com/v1/forecast"

// Client talks to the Open-Meteo forecast API.
type Client struct {
	http    *http.Client
	baseURL string
	logger  *slog.Logger

	maxAttempts int
	backoffBase time.Duration
}

func NewClient(logger *slog.Logger) *Client {
	return &Client{
		http:        &http.Client{Timeout: 10 * time.Second},
		baseURL:     defaultBaseURL,
		logger:      logger.With("component", "weather"),
		maxAttempts: 3,
		backoffBase: 500 * time.Millisecond,
	}
}

type forecastResponse struct {
	Daily struct {
		TemperatureMean  []float64 `json:"temperature_2m_mean"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

// Fetch returns the average daily temperature and precipitation over
// [start, end]. Transient failures are retried with short exponential
// backoff; a 4xx response is returned immediately.
func (c *Client) Fetch(ctx context.Context, lat, lon float64, start, end string) (domain.Weather, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", lat))
	q.Set("longitude", fmt.Sprintf("%.4f", lon))
	q.Set("daily", "temperature_2m_mean,precipitation_sum")
	q.Set("start_date", start)
	q.Set("end_date", end)
	reqURL := c.baseURL + "?" + q.Encode()

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.backoffBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return domain.Weather{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		w, retryable, err := c.fetchOnce(ctx, reqURL)
		if err == nil {
			return w, nil
		}
		lastErr = err
		if !retryable {
			return domain.Weather{}, err
		}
		c.logger.Warn("weather fetch failed, retrying", "attempt", attempt+1, "error", err)
	}
	return domain.Weather{}, fmt.Errorf("weather fetch gave up after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, reqURL string) (domain.Weather, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.Weather{}, false, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Weather{}, true, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return domain.Weather{}, retryable, fmt.Errorf("open-meteo status %d", resp.StatusCode)
	}

	var body forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Weather{}, false, fmt.Errorf("decode response: %w", err)
	}

	if len(body.Daily.TemperatureMean) == 0 {
		return domain.Weather{}, false, fmt.Errorf("open-meteo returned no daily data")
	}

	return domain.Weather{
		AvgTempC:          mean(body.Daily.TemperatureMean),
		AvgPrecipMMPerDay: mean(body.Daily.PrecipitationSum),
	}, false, nil
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
