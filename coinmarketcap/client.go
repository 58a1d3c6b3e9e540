// Package coinmarketcap provides a client for the CoinMarketCap Pro API.
package coinmarketcap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/etnz/cryptofolio"
	"github.com/etnz/cryptofolio/common"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://pro-api.coinmarketcap.com"
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 5 // requests per second

	quotesPath   = "/v1/cryptocurrency/quotes/latest"
	apiKeyHeader = "X-CMC_PRO_API_KEY"
)

// APIError is returned when CoinMarketCap answers with an error status.
type APIError struct {
	StatusCode int    // HTTP status
	Code       int    // status.error_code in the body, if any
	Message    string // status.error_message in the body, if any
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("coinmarketcap: status %d", e.StatusCode)
	}
	return fmt.Sprintf("coinmarketcap: status %d: %s", e.StatusCode, e.Message)
}

// Client implements cryptofolio.QuoteProvider on top of the quotes/latest endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	convert    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL, an empty one keeps DefaultBaseURL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithConvert sets the currency quotes are converted to. Defaults to the reporting currency.
func WithConvert(currency string) ClientOption {
	return func(c *Client) {
		c.convert = currency
	}
}

// NewClient creates a new CoinMarketCap client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		convert: cryptofolio.ReportingCurrency,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Quotes returns the latest quote of every symbol CoinMarketCap knows about.
// Unknown symbols are absent from the result.
func (c *Client) Quotes(ctx context.Context, symbols []string) (cryptofolio.Quotes, error) {
	res := make(cryptofolio.Quotes, len(symbols))
	if len(symbols) == 0 {
		return res, nil
	}

	jobj, err := c.get(ctx, symbols)
	if err != nil {
		return nil, err
	}

	data, ok := jobj.(map[string]any)["data"].(map[string]any)
	if !ok {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "response has no data"}
	}

	for _, symbol := range symbols {
		if _, exists := data[symbol]; !exists {
			c.logger.Warn().Str("symbol", symbol).Msg("symbol not found on CoinMarketCap")
			continue
		}
		q, err := c.quoteOf(data, symbol)
		if err != nil {
			return nil, err
		}
		res[symbol] = q
	}
	return res, nil
}

// get calls the endpoint and returns the decoded JSON body, numbers kept as json.Number.
func (c *Client) get(ctx context.Context, symbols []string) (any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("symbol", strings.Join(symbols, ","))
	params.Set("convert", c.convert)
	reqURL := c.baseURL + quotesPath + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)

	c.logger.Debug().Strs("symbols", symbols).Msg("CoinMarketCap request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Error().Err(err).Dur("elapsed", elapsed).Msg("CoinMarketCap request failed")
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var jobj any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	decodeErr := dec.Decode(&jobj)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if decodeErr == nil {
			apiErr.Code, apiErr.Message = statusOf(jobj)
		}
		c.logger.Warn().Int("status", resp.StatusCode).Str("message", apiErr.Message).Dur("elapsed", elapsed).Msg("CoinMarketCap non-OK response")
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if _, ok := jobj.(map[string]any); !ok {
		return nil, fmt.Errorf("failed to decode response: not a JSON object")
	}
	c.logger.Debug().Dur("elapsed", elapsed).Msg("CoinMarketCap response")
	return jobj, nil
}

// statusOf extracts the CoinMarketCap status block of an error response.
func statusOf(jobj any) (code int, message string) {
	if v, err := jsonpath.Get("$.status.error_code", jobj); err == nil {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				code = int(i)
			}
		}
	}
	if v, err := jsonpath.Get("$.status.error_message", jobj); err == nil {
		message, _ = v.(string)
	}
	return code, message
}

// quoteOf reads the converted quote of symbol from the data block.
func (c *Client) quoteOf(data map[string]any, symbol string) (cryptofolio.Quote, error) {
	path := fmt.Sprintf("$[%q].quote[%q]", symbol, c.convert)
	jval, err := jsonpath.Get(path, data)
	if err != nil {
		return cryptofolio.Quote{}, fmt.Errorf("error parsing %q: %q %w", symbol, path, err)
	}
	quote, ok := jval.(map[string]any)
	if !ok {
		return cryptofolio.Quote{}, fmt.Errorf("error parsing %q: %q is not an object", symbol, path)
	}

	var q cryptofolio.Quote
	if price, ok := decimalOf(quote["price"]); ok {
		q.Price = decimal.NewNullDecimal(price)
	}
	if v, ok := decimalOf(quote["percent_change_24h"]); ok {
		q.PercentChange24h = cryptofolio.Percent(v.InexactFloat64())
	}
	if v, ok := decimalOf(quote["percent_change_7d"]); ok {
		q.PercentChange7d = cryptofolio.Percent(v.InexactFloat64())
	}
	q.MarketCap, _ = decimalOf(quote["market_cap"])
	q.Volume24h, _ = decimalOf(quote["volume_24h"])
	return q, nil
}

// decimalOf converts a decoded JSON number. Null or anything else is not ok.
func decimalOf(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	}
	return decimal.Zero, false
}
