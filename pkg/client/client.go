// Package client provides the upstream SRD API HTTP client with a bounded
// connection pool, rate limit awareness, retries and error classification.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/srd-gateway/pkg/logging"
	"github.com/Sternrassler/srd-gateway/pkg/ratelimit"
	"github.com/Sternrassler/srd-gateway/pkg/srd"
	"github.com/Sternrassler/srd-gateway/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Prometheus metrics for upstream client operations.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "srd_upstream_requests_total",
		Help: "Total SRD API requests by resource and status",
	}, []string{"resource", "status"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "srd_upstream_request_duration_seconds",
		Help:    "SRD API request duration in seconds by resource",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
	}, []string{"resource"})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "srd_upstream_errors_total",
		Help: "Total SRD API errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of upstream failures.
type ErrorClass string

const (
	// ErrorClassNotFound represents 404 responses.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassClient represents other 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents bodies that are not a JSON object.
	ErrorClassDecode ErrorClass = "decode"
)

const (
	// maxBodyBytes bounds a single upstream response body.
	maxBodyBytes = 16 << 20

	// maxDetailBytes bounds the upstream body echoed in error details.
	maxDetailBytes = 512
)

// Config holds the client configuration.
type Config struct {
	// BaseURL of the SRD API, e.g. "https://www.dnd5eapi.co/api".
	BaseURL string

	// User-Agent header sent upstream. Empty keeps Go's default.
	UserAgent string

	// Timeout bounds one upstream call, body included.
	Timeout time.Duration

	// MaxConnections bounds concurrent outbound requests.
	MaxConnections int

	// MaxRedirects caps followed redirect hops.
	MaxRedirects int

	// Retry
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		Timeout:        15 * time.Second,
		MaxConnections: 10,
		MaxRedirects:   10,
		MaxRetries:     0,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// Client is the upstream SRD API client. It is safe for concurrent use;
// every caller shares one connection pool.
type Client struct {
	httpClient  *http.Client
	base        *url.URL
	sem         *semaphore.Weighted
	rateLimiter *ratelimit.Tracker
	retry       RetryConfig
	config      Config
	logger      zerolog.Logger
}

// New creates a new SRD API client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	if cfg.MaxConnections < 1 {
		return nil, fmt.Errorf("max_connections must be >= 1 (got %d)", cfg.MaxConnections)
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 10
	}

	retry := DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries + 1
	if cfg.InitialBackoff > 0 {
		retry.InitialBackoff = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		retry.MaxBackoff = cfg.MaxBackoff
	}

	logger := logging.NewLogger("srd-client")

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxConnsPerHost = cfg.MaxConnections
	transport.MaxIdleConnsPerHost = cfg.MaxConnections

	c := &Client{
		base:        base,
		sem:         semaphore.NewWeighted(int64(cfg.MaxConnections)),
		rateLimiter: ratelimit.NewTracker(logger),
		retry:       retry,
		config:      cfg,
		logger:      logger,
	}
	c.httpClient = &http.Client{
		Timeout:       cfg.Timeout,
		Transport:     telemetry.InstrumentTransport(transport),
		CheckRedirect: c.checkRedirect,
	}

	return c, nil
}

func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= c.config.MaxRedirects {
		return fmt.Errorf("stopped after %d redirects", len(via))
	}
	return nil
}

// Fetch retrieves one JSON object from the SRD API.
func (c *Client) Fetch(ctx context.Context, path string) (srd.Document, error) {
	target, err := c.Resolve(path)
	if err != nil {
		return nil, err
	}

	var doc srd.Document
	err = retryWithBackoff(ctx, c.retry, c.logger, func() error {
		body, err := c.get(ctx, target)
		if err != nil {
			return err
		}
		doc, err = decodeDocument(body)
		if err != nil {
			upstreamErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
			return &UpstreamError{
				StatusCode: http.StatusOK,
				ErrorClass: ErrorClassDecode,
				Detail:     "upstream body is not a JSON object",
				Err:        err,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// FetchList retrieves a JSON object and returns the object items of its
// field array. A missing field yields an empty list.
func (c *Client) FetchList(ctx context.Context, path, field string) ([]srd.Document, error) {
	doc, err := c.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}

	raw, _ := doc[field].([]any)
	items := make([]srd.Document, 0, len(raw))
	for _, item := range raw {
		if obj, ok := item.(map[string]any); ok {
			items = append(items, srd.Document(obj))
		}
	}
	return items, nil
}

// get performs one GET exchange: rate limit gate, pool slot, request,
// classification.
func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	resource := resourceLabel(c.base, target)

	if allowed, wait := c.rateLimiter.ShouldAllowRequest(); !allowed {
		upstreamRequestsTotal.WithLabelValues(resource, "rate_limited").Inc()
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
		return nil, &UpstreamError{
			StatusCode: http.StatusTooManyRequests,
			ErrorClass: ErrorClassRateLimit,
			Detail:     fmt.Sprintf("upstream rate limit active, retry in %s", wait.Round(time.Millisecond)),
			RetryAfter: wait,
		}
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, &UpstreamError{
			ErrorClass: ErrorClassNetwork,
			Detail:     "waiting for an upstream connection",
			Err:        err,
		}
	}
	defer c.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("url", target).
		Msg("Fetching from SRD API")

	startTime := time.Now()
	defer func() {
		upstreamRequestDuration.WithLabelValues(resource).Observe(time.Since(startTime).Seconds())
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		upstreamRequestsTotal.WithLabelValues(resource, "network_error").Inc()
		c.logger.Error().Err(err).Str("url", target).Msg("HTTP request failed")
		return nil, &UpstreamError{
			ErrorClass: ErrorClassNetwork,
			Detail:     "upstream request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	c.rateLimiter.UpdateFromResponse(resp.StatusCode, resp.Header)
	upstreamRequestsTotal.WithLabelValues(resource, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Detail:     "reading upstream body",
			Err:        err,
		}
	}

	if resp.StatusCode >= 400 {
		errClass := classifyStatus(resp.StatusCode)
		upstreamErrorsTotal.WithLabelValues(string(errClass)).Inc()

		event := c.logger.Warn()
		if errClass == ErrorClassNotFound {
			event = c.logger.Debug()
		}
		event.
			Str("url", target).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("SRD API request error")

		upstreamErr := &UpstreamError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Detail:     truncate(strings.TrimSpace(string(body)), maxDetailBytes),
		}
		if errClass == ErrorClassNotFound {
			upstreamErr.Err = ErrNotFound
		}
		return nil, upstreamErr
	}

	return body, nil
}

// Resolve maps a family path, a stub url or an absolute URL onto the
// upstream base.
func (c *Client) Resolve(path string) (string, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		if _, err := url.Parse(path); err != nil {
			return "", fmt.Errorf("parse url %q: %w", path, err)
		}
		return path, nil
	}

	u := *c.base
	u.RawQuery = ""
	u.Fragment = ""

	basePath := strings.TrimRight(c.base.Path, "/")
	if basePath != "" && (path == basePath || strings.HasPrefix(path, basePath+"/")) {
		u.Path = path
		return u.String(), nil
	}

	u.Path = basePath + "/" + strings.TrimLeft(path, "/")
	return u.String(), nil
}

// classifyStatus categorizes an HTTP error status for observability and handling.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusNotFound:
		return ErrorClassNotFound
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

func decodeDocument(body []byte) (srd.Document, error) {
	var doc srd.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("null document")
	}
	return doc, nil
}

// resourceLabel keeps metric cardinality at the family level: the first
// path segment below the base path.
func resourceLabel(base *url.URL, target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return "unknown"
	}
	rel := strings.TrimPrefix(u.Path, strings.TrimRight(base.Path, "/"))
	for _, segment := range strings.Split(strings.Trim(rel, "/"), "/") {
		if segment == "" {
			continue
		}
		if segment[0] >= '0' && segment[0] <= '9' {
			// ruleset version prefix such as 2014
			continue
		}
		return segment
	}
	return "root"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
