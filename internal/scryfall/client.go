// Package scryfall is a small read-only client for the Scryfall card API.
package scryfall

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://api.scryfall.com"
	DefaultUserAgent = "CubeBuilder/1.0"

	defaultRateInterval   = 100 * time.Millisecond // 10 req/sec
	defaultRequestTimeout = 30 * time.Second
)

// ClientOptions configures the Scryfall client.
type ClientOptions struct {
	// BaseURL is the API root. Default: https://api.scryfall.com
	BaseURL string

	// UserAgent is sent with every request.
	UserAgent string

	// RateInterval is the minimum spacing between requests.
	// Default: 100ms (10 req/sec)
	RateInterval time.Duration

	// Timeout bounds a single HTTP request.
	// Default: 30 seconds
	Timeout time.Duration

	// HTTPClient overrides the transport. Timeout is ignored when set.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// DefaultClientOptions returns sensible defaults.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		BaseURL:      DefaultBaseURL,
		UserAgent:    DefaultUserAgent,
		RateInterval: defaultRateInterval,
		Timeout:      defaultRequestTimeout,
	}
}

// Client represents a Scryfall API client with rate limiting.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
	userAgent   string
	logger      *slog.Logger
}

// NewClient creates a new Scryfall API client. Zero-valued options fall back
// to DefaultClientOptions.
func NewClient(options ClientOptions) *Client {
	defaults := DefaultClientOptions()
	if options.BaseURL == "" {
		options.BaseURL = defaults.BaseURL
	}
	if options.UserAgent == "" {
		options.UserAgent = defaults.UserAgent
	}
	if options.RateInterval <= 0 {
		options.RateInterval = defaults.RateInterval
	}
	if options.Timeout <= 0 {
		options.Timeout = defaults.Timeout
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: options.Timeout}
	}

	return &Client{
		httpClient:  httpClient,
		rateLimiter: rate.NewLimiter(rate.Every(options.RateInterval), 1),
		baseURL:     strings.TrimRight(options.BaseURL, "/"),
		userAgent:   options.UserAgent,
		logger:      options.Logger,
	}
}

// Autocomplete returns up to 20 full card names beginning with prefix.
// Extras and multilingual names are excluded. A non-success status from
// Scryfall yields an empty slice and no error; transport and decode failures
// are returned as *LookupError.
func (c *Client) Autocomplete(ctx context.Context, prefix string) ([]string, error) {
	query := url.Values{}
	query.Set("q", prefix)
	query.Set("include_extras", "false")
	query.Set("include_multilingual", "false")

	var catalog Catalog
	if err := c.doRequest(ctx, "autocomplete", "/cards/autocomplete", query, &catalog); err != nil {
		var le *LookupError
		if errors.As(err, &le) && le.HasStatus() {
			c.logger.Debug("autocomplete returned non-success status", "prefix", prefix, "status", le.Status)
			return []string{}, nil
		}
		return nil, err
	}

	if catalog.Data == nil {
		return []string{}, nil
	}
	return catalog.Data, nil
}

// FetchExact fetches a single card by exact name. When Scryfall answers the
// exact lookup with a non-success status the same name is retried once as a
// fuzzy lookup, whose outcome is final.
func (c *Client) FetchExact(ctx context.Context, name string) (*Card, error) {
	card, err := c.named(ctx, "exact", name)
	if err == nil {
		return card, nil
	}

	var le *LookupError
	if !errors.As(err, &le) || !le.HasStatus() {
		return nil, err
	}

	c.logger.Debug("exact lookup failed, trying fuzzy", "name", name, "status", le.Status)
	return c.named(ctx, "fuzzy", name)
}

func (c *Client) named(ctx context.Context, mode, name string) (*Card, error) {
	query := url.Values{}
	query.Set(mode, name)

	var card Card
	if err := c.doRequest(ctx, "fetch "+mode, "/cards/named", query, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// Search runs a full-text search and returns every printing on the first
// result page (unique=prints). Scryfall reports an empty result set as 404;
// that case returns an empty slice and no error.
func (c *Client) Search(ctx context.Context, expr string) ([]Card, error) {
	query := url.Values{}
	query.Set("q", expr)
	query.Set("unique", "prints")

	var result SearchResult
	if err := c.doRequest(ctx, "search", "/cards/search", query, &result); err != nil {
		if IsNotFound(err) {
			return []Card{}, nil
		}
		return nil, err
	}

	if result.Data == nil {
		return []Card{}, nil
	}
	return result.Data, nil
}

// doRequest performs a rate-limited GET and decodes a 200 response into
// result. Every failure is reported as *LookupError.
func (c *Client) doRequest(ctx context.Context, op, path string, query url.Values, result interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return &LookupError{Op: op, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &LookupError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &LookupError{Op: op, Err: fmt.Errorf("HTTP request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &LookupError{Op: op, Err: fmt.Errorf("read response body: %w", err)}
	}

	c.logger.Debug("scryfall request", "op", op, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		lookupErr := &LookupError{Op: op, Status: resp.StatusCode}
		var apiErr APIError
		if err := json.Unmarshal(body, &apiErr); err == nil {
			lookupErr.Code = apiErr.Code
			lookupErr.Details = apiErr.Details
		}
		return lookupErr
	}

	if err := json.Unmarshal(body, result); err != nil {
		return &LookupError{Op: op, Err: fmt.Errorf("parse JSON response: %w", err)}
	}

	return nil
}
