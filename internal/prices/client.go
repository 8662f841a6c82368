// Package prices fetches market quotes from a Yahoo Finance compatible chart
// endpoint.
package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dvloznov/wealth-tracker/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public Yahoo Finance query host.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Quote is the latest market price of a ticker.
type Quote struct {
	Ticker      string
	Price       decimal.Decimal
	DisplayName string // empty when the provider has no name
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RatePerSec float64
	HTTPClient *http.Client
}

// Client is a rate limited quote client. It is safe for concurrent use.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewClient creates a Client.
func NewClient(opts Options, log zerolog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 4
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = new(http.Client)
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		timeout: opts.Timeout,
		http:    opts.HTTPClient,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
		log:     log.With().Str("component", "prices").Logger(),
	}
}

// chartResponse is the subset of the v8 chart payload we read.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string          `json:"symbol"`
				RegularMarketPrice decimal.Decimal `json:"regularMarketPrice"`
				LongName           string          `json:"longName"`
				ShortName          string          `json:"shortName"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchPrice returns the latest quote for ticker. Every failure, including
// an empty or zero quote, wraps domain.ErrUpstreamPriceUnavailable.
func (c *Client) FetchPrice(ctx context.Context, ticker string) (*Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("FetchPrice: %s: waiting for rate limiter: %w: %v", ticker, domain.ErrUpstreamPriceUnavailable, err)
	}

	addr := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d", c.baseURL, url.PathEscape(ticker))
	var payload chartResponse
	if err := c.getJSON(ctx, addr, &payload); err != nil {
		return nil, fmt.Errorf("FetchPrice: %s: %w: %v", ticker, domain.ErrUpstreamPriceUnavailable, err)
	}

	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("FetchPrice: %s: %w: %s: %s", ticker, domain.ErrUpstreamPriceUnavailable,
			payload.Chart.Error.Code, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, fmt.Errorf("FetchPrice: %s: %w: empty result", ticker, domain.ErrUpstreamPriceUnavailable)
	}

	meta := payload.Chart.Result[0].Meta
	if !meta.RegularMarketPrice.IsPositive() {
		return nil, fmt.Errorf("FetchPrice: %s: %w: no market price", ticker, domain.ErrUpstreamPriceUnavailable)
	}

	q := &Quote{
		Ticker:      ticker,
		Price:       meta.RegularMarketPrice,
		DisplayName: meta.LongName,
	}
	if q.DisplayName == "" {
		q.DisplayName = meta.ShortName
	}

	c.log.Debug().Str("ticker", ticker).Str("price", q.Price.String()).Msg("fetched quote")
	return q, nil
}

// getJSON performs a GET and decodes the JSON body into data. Error replies
// from the provider carry a JSON body too, so 4xx bodies are decoded before
// the status is reported.
func (c *Client) getJSON(ctx context.Context, addr string, data any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "wealth-tracker/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("GET %s: %s", req.URL.Path, resp.Status)
	}
	if err := json.Unmarshal(body, data); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("GET %s: %s", req.URL.Path, resp.Status)
		}
		return fmt.Errorf("decoding body: %w", err)
	}
	return nil
}
