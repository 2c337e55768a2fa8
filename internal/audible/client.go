package audible

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"audiostacker/internal/catalog"
	"audiostacker/internal/config"
	"audiostacker/internal/logging"
	"audiostacker/internal/metrics"
	"audiostacker/internal/tracing"
)

const (
	DefaultBaseURL     = "https://api.audible.com/1.0"
	DefaultMarketplace = "US"
	DefaultLanguage    = "english"
	DefaultUserAgent   = "curl/8.5.0"
	DefaultPageSize    = 50
	DefaultMaxPages    = 4
	DefaultParallel    = 4

	defaultHTTPTimeout     = 10 * time.Second
	defaultParallelTimeout = 120 * time.Second

	responseGroups  = "product_desc,media,contributors,series,product_attrs,relationships,product_extended_attrs,category_ladders"
	sortNewestFirst = "-ReleaseDate"
	maxErrorBody    = 4096
)

// Config describes the catalog client configuration.
type Config struct {
	BaseURL         string
	Marketplace     string
	Language        string
	UserAgent       string
	Timeout         time.Duration
	PageSize        int
	MaxPages        int
	MaxParallel     int
	ParallelTimeout time.Duration
	Retry           RetryPolicy
}

// ConfigFrom derives the client configuration from application settings.
func ConfigFrom(cfg *config.Config) Config {
	if cfg == nil {
		return Config{}
	}
	return Config{
		BaseURL:         cfg.Audible.BaseURL,
		Marketplace:     cfg.Audible.Marketplace,
		Language:        cfg.Audible.Language,
		UserAgent:       cfg.Audible.UserAgent,
		Timeout:         cfg.RequestTimeout(),
		PageSize:        cfg.Audible.PageSize,
		MaxPages:        cfg.Audible.MaxPages,
		MaxParallel:     cfg.Audible.MaxParallelRequests,
		ParallelTimeout: cfg.ParallelTimeout(),
		Retry: RetryPolicy{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.RetryBaseDelay(),
			MaxDelay:   cfg.RetryMaxDelay(),
			Factor:     cfg.Retry.BackoffFactor,
			Jitter:     cfg.Retry.Jitter,
		},
	}
}

// Client wraps the Audible catalog API.
type Client struct {
	baseURL         *url.URL
	marketplace     string
	filter          productFilter
	userAgent       string
	pageSize        int
	maxPages        int
	maxParallel     int
	parallelTimeout time.Duration
	retry           RetryPolicy

	http    *http.Client
	limiter *RateLimiter
	cache   *Cache
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithRateLimiter shares limiter with the client. Every client in a process
// should use the same limiter.
func WithRateLimiter(limiter *RateLimiter) Option {
	return func(c *Client) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// WithCache enables the result cache.
func WithCache(cache *Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "audible")
		}
	}
}

// WithMetrics records requests on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = rec
	}
}

// New creates a Client. Unset configuration falls back to the package
// defaults; without WithRateLimiter the client gets a private limiter at
// DefaultCallsPerMinute.
func New(cfg Config, opts ...Option) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	baseURL, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("audible: invalid base url %q", base)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	c := &Client{
		baseURL:         baseURL,
		marketplace:     firstNonEmpty(strings.ToUpper(strings.TrimSpace(cfg.Marketplace)), DefaultMarketplace),
		filter:          productFilter{language: firstNonEmpty(strings.ToLower(strings.TrimSpace(cfg.Language)), DefaultLanguage)},
		userAgent:       firstNonEmpty(strings.TrimSpace(cfg.UserAgent), DefaultUserAgent),
		pageSize:        positiveOr(cfg.PageSize, DefaultPageSize),
		maxPages:        positiveOr(cfg.MaxPages, DefaultMaxPages),
		maxParallel:     positiveOr(cfg.MaxParallel, DefaultParallel),
		parallelTimeout: cfg.ParallelTimeout,
		retry:           cfg.Retry,
		http:            &http.Client{Timeout: timeout},
		logger:          logging.NewComponentLogger(nil, "audible"),
	}
	if c.parallelTimeout <= 0 {
		c.parallelTimeout = defaultParallelTimeout
	}
	if c.retry == (RetryPolicy{}) {
		c.retry = DefaultRetryPolicy()
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = NewRateLimiter(DefaultCallsPerMinute)
	}
	return c, nil
}

// Cache returns the client's result cache, which may be nil.
func (c *Client) Cache() *Cache {
	if c == nil {
		return nil
	}
	return c.cache
}

// PageRequest identifies one page of a catalog search.
type PageRequest struct {
	Query    string
	Field    catalog.SearchField
	Page     int
	PageSize int
}

func (r PageRequest) cacheKey() string {
	return Key(r.Query, r.Field, r.Page, r.PageSize)
}

// FetchPage issues one catalog search request, retrying transient failures.
// Each attempt waits on the shared rate limiter first.
func (c *Client) FetchPage(ctx context.Context, req PageRequest) ([]catalog.Entry, error) {
	if c == nil {
		return nil, errors.New("audible: client is nil")
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, errors.New("audible: query must not be empty")
	}
	if req.Field == "" {
		req.Field = catalog.FieldTitle
	}
	if req.PageSize <= 0 {
		req.PageSize = c.pageSize
	}

	ctx, span := tracing.StartSpan(ctx, "audible.fetch_page")
	defer span.End()
	span.SetAttributes(
		attribute.String("audible.query", req.Query),
		attribute.String("audible.field", req.Field.String()),
		attribute.Int("audible.page", req.Page),
	)

	logger := c.requestLogger(ctx, req)
	entries, err := withRetry(ctx, c.retry, c.retryNotifier(logger, "search"), func(ctx context.Context) ([]catalog.Entry, error) {
		return c.searchOnce(ctx, req)
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("audible.results", len(entries)))
	logger.Debug("fetched page", logging.Int("results", len(entries)))
	return entries, nil
}

func (c *Client) searchOnce(ctx context.Context, req PageRequest) ([]catalog.Entry, error) {
	endpoint := c.baseURL.JoinPath("catalog", "products")
	params := url.Values{}
	params.Set(req.Field.String(), req.Query)
	params.Set("num_results", strconv.Itoa(req.PageSize))
	if req.Page > 0 {
		params.Set("page", strconv.Itoa(req.Page))
	}
	params.Set("products_sort_by", sortNewestFirst)
	params.Set("response_groups", responseGroups)
	params.Set("marketplace", c.marketplace)
	endpoint.RawQuery = params.Encode()

	var payload searchResponse
	if err := c.get(ctx, "search", endpoint, &payload); err != nil {
		return nil, err
	}
	if payload.Products == nil {
		return nil, fmt.Errorf("%w: missing products list", ErrMalformedResponse)
	}
	entries := make([]catalog.Entry, 0, len(*payload.Products))
	for _, product := range *payload.Products {
		if reason := c.filter.skipReason(product); reason != "" {
			c.logger.Debug("skipping product",
				logging.String(logging.FieldASIN, product.ASIN),
				logging.String("title", product.Title),
				logging.String("reason", reason),
			)
			continue
		}
		entries = append(entries, mapProduct(product))
	}
	return entries, nil
}

// Product looks up a single catalog record by ASIN. Filtered records are
// reported as ErrNotFound.
func (c *Client) Product(ctx context.Context, asin string) (catalog.Entry, error) {
	if c == nil {
		return catalog.Entry{}, errors.New("audible: client is nil")
	}
	asin = strings.TrimSpace(asin)
	if asin == "" {
		return catalog.Entry{}, errors.New("audible: asin must not be empty")
	}
	key := ProductKey(asin)
	if cached, ok := c.cache.Get(key); ok && len(cached) == 1 {
		return cached[0], nil
	}

	ctx, span := tracing.StartSpan(ctx, "audible.product")
	defer span.End()
	span.SetAttributes(attribute.String("audible.asin", asin))

	logger := logging.WithContext(ctx, c.logger).With(logging.String(logging.FieldASIN, asin))
	entry, err := withRetry(ctx, c.retry, c.retryNotifier(logger, "product"), func(ctx context.Context) (catalog.Entry, error) {
		return c.productOnce(ctx, asin)
	})
	if err != nil {
		tracing.RecordError(span, err)
		return catalog.Entry{}, err
	}
	if err := c.cache.Put(key, []catalog.Entry{entry}); err != nil {
		logging.WarnWithContext(logger, "product cache write failed", "cache_io_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "next lookup will call the catalog API again"),
		)
	}
	return entry, nil
}

func (c *Client) productOnce(ctx context.Context, asin string) (catalog.Entry, error) {
	endpoint := c.baseURL.JoinPath("catalog", "products", asin)
	params := url.Values{}
	params.Set("response_groups", responseGroups)
	params.Set("marketplace", c.marketplace)
	endpoint.RawQuery = params.Encode()

	var payload productResponse
	if err := c.get(ctx, "product", endpoint, &payload); err != nil {
		var status *StatusError
		if errors.As(err, &status) && status.StatusCode == http.StatusNotFound {
			return catalog.Entry{}, fmt.Errorf("%w: %s", ErrNotFound, asin)
		}
		return catalog.Entry{}, err
	}
	if payload.Product == nil || strings.TrimSpace(payload.Product.ASIN) == "" {
		return catalog.Entry{}, fmt.Errorf("%w: %s", ErrNotFound, asin)
	}
	if reason := c.filter.skipReason(*payload.Product); reason != "" {
		return catalog.Entry{}, fmt.Errorf("%w: %s filtered (%s)", ErrNotFound, asin, reason)
	}
	return mapProduct(*payload.Product), nil
}

// get performs one rate-limited GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, endpointName string, endpoint *url.URL, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("audible: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(endpointName, metrics.OutcomeError, time.Since(start))
		return fmt.Errorf("audible: %s request failed: %w", endpointName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.metrics.ObserveRequest(endpointName, metrics.OutcomeRejected, time.Since(start))
		return &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.metrics.ObserveRequest(endpointName, metrics.OutcomeError, time.Since(start))
		return fmt.Errorf("%w: decode %s response: %v", ErrMalformedResponse, endpointName, err)
	}
	c.metrics.ObserveRequest(endpointName, metrics.OutcomeOK, time.Since(start))
	return nil
}

func (c *Client) retryNotifier(logger *slog.Logger, endpointName string) func(error, time.Duration) {
	return func(err error, next time.Duration) {
		c.metrics.ObserveRequest(endpointName, metrics.OutcomeRetried, 0)
		logger.Info("retrying catalog request",
			logging.Error(err),
			logging.Duration("retry_in", next),
		)
	}
}

func (c *Client) requestLogger(ctx context.Context, req PageRequest) *slog.Logger {
	return logging.WithContext(ctx, c.logger).With(
		logging.String(logging.FieldQuery, req.Query),
		logging.String(logging.FieldSearchField, req.Field.String()),
		logging.Int(logging.FieldPage, req.Page),
	)
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func positiveOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
