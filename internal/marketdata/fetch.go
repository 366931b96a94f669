package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"breachstudy/internal/config"
	"breachstudy/internal/errors"
)

// Fetcher pulls daily quote history from an HTTP price provider. Requests
// are rate limited so bulk backfills stay inside the provider's quota.
type Fetcher struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewFetcher creates a rate-limited quote fetcher
func NewFetcher(cfg config.MarketDataConfig, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		logger:  logger,
	}
}

// providerQuote is the provider's wire format for one trading day
type providerQuote struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// FetchDaily retrieves the daily history for one ticker over [from, to]
func (f *Fetcher) FetchDaily(ctx context.Context, ticker string, from, to time.Time) ([]DailyQuote, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	endpoint, err := url.Parse(fmt.Sprintf("%s/daily/%s", f.baseURL, url.PathEscape(ticker)))
	if err != nil {
		return nil, errors.NewConfigError("invalid market data base URL", err)
	}
	query := endpoint.Query()
	query.Set("from", from.Format("2006-01-02"))
	query.Set("to", to.Format("2006-01-02"))
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.NewNetworkError(fmt.Sprintf("fetch daily quotes for %s", ticker), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Delisted or unknown tickers are an expected outcome, not an error
		f.logger.WarnContext(ctx, "ticker not found at provider",
			slog.String("ticker", ticker))
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewNetworkError(
			fmt.Sprintf("provider returned status %d for %s", resp.StatusCode, ticker), nil)
	}

	var payload struct {
		Ticker string          `json:"ticker"`
		Quotes []providerQuote `json:"quotes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.NewParsingError(fmt.Sprintf("decode quotes for %s", ticker), err)
	}

	quotes := make([]DailyQuote, 0, len(payload.Quotes))
	for _, pq := range payload.Quotes {
		date, err := time.Parse("2006-01-02", pq.Date)
		if err != nil {
			continue
		}
		q := DailyQuote{
			Ticker: ticker,
			Date:   date,
			Open:   pq.Open,
			High:   pq.High,
			Low:    pq.Low,
			Close:  pq.Close,
			Volume: pq.Volume,
		}
		if q.IsValid() {
			quotes = append(quotes, q)
		}
	}

	f.logger.InfoContext(ctx, "fetched daily quotes",
		slog.String("ticker", ticker),
		slog.Int("days", len(quotes)),
		slog.Duration("elapsed", time.Since(start)))

	return quotes, nil
}
