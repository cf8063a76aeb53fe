// Package client provides the HTTP transport for the economic calendar
// endpoint: browser-like form POSTs with request pacing, error
// classification and a retry helper used by the chunk fetcher.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/econ-calendar-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for calendar requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_requests_total",
		Help: "Total calendar requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "calendar_request_duration_seconds",
		Help:    "Calendar request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_errors_total",
		Help: "Total calendar request errors by class",
	}, []string{"class"})
)

const (
	// DefaultURL is the calendar data endpoint.
	DefaultURL = "https://www.investing.com/economic-calendar/Service/getCalendarFilteredData"

	// DefaultLandingURL is the page whose response sets the session cookies.
	DefaultLandingURL = "https://www.investing.com/economic-calendar/"

	// DefaultUserAgent mimics a desktop browser; the endpoint rejects obvious bots.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36"

	// maxBodyBytes bounds a single response body.
	maxBodyBytes = 16 << 20
)

// Client posts calendar queries to the upstream endpoint.
type Client struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.Tracker
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// URL is the calendar data endpoint.
	URL string

	// LandingURL is fetched to bootstrap session cookies.
	LandingURL string

	// UserAgent header sent with every request (REQUIRED).
	UserAgent string

	// Timeout bounds one HTTP round trip.
	Timeout time.Duration

	// RateLimit paces requests across all callers of this client.
	RateLimit ratelimit.Config
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		URL:        DefaultURL,
		LandingURL: DefaultLandingURL,
		UserAgent:  DefaultUserAgent,
		Timeout:    30 * time.Second,
		RateLimit:  ratelimit.DefaultConfig(),
	}
}

// New creates a new calendar client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "calendar-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: ratelimit.NewTracker(cfg.RateLimit, logger),
		config:      cfg,
		logger:      logger,
	}, nil
}

// Post sends one form-encoded calendar query and returns the raw body.
// Non-2xx responses are returned as *UpstreamError.
func (c *Client) Post(ctx context.Context, form url.Values, cookies []*http.Cookie) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setBrowserHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Accept", "*/*")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}

	startTime := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(startTime).Seconds())
	}()

	c.logger.Debug().
		Str("date_from", form.Get("dateFrom")).
		Str("date_to", form.Get("dateTo")).
		Int("cursor_ids", len(form["pids[]"])).
		Msg("Executing calendar request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, fmt.Errorf("post calendar request: %w", err)
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		errClass := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(errClass)).Inc()
		upErr := &UpstreamError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
		if errClass == ErrorClassRateLimit {
			c.rateLimiter.RecordThrottle(upErr.RetryAfter)
		}

		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Calendar request error")

		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, upErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, fmt.Errorf("read response body: %w", err)
	}

	c.rateLimiter.RecordSuccess()
	return body, nil
}

// Bootstrap loads the landing page and returns the cookies it sets.
func (c *Client) Bootstrap(ctx context.Context) ([]*http.Cookie, error) {
	if c.config.LandingURL == "" {
		return nil, fmt.Errorf("landing url is not configured")
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.LandingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setBrowserHeaders(req)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get landing page: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode >= 400 {
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			ErrorClass: classifyStatus(resp.StatusCode),
			Message:    resp.Status,
		}
	}

	cookies := resp.Cookies()
	c.logger.Info().Int("cookies", len(cookies)).Msg("Session bootstrapped from landing page")
	return cookies, nil
}

func (c *Client) setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if u, err := url.Parse(c.config.URL); err == nil && u.Host != "" {
		origin := u.Scheme + "://" + u.Host
		req.Header.Set("Origin", origin)
		req.Header.Set("Referer", origin+"/economic-calendar/")
	}
}

// parseRetryAfter reads a delay-seconds Retry-After value.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// RateLimiter returns the request tracker (for testing).
func (c *Client) RateLimiter() *ratelimit.Tracker {
	return c.rateLimiter
}
