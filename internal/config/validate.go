package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := validateURL("upstream.url", c.Upstream.URL); err != nil {
		return err
	}
	if err := validateURL("upstream.landing_url", c.Upstream.LandingURL); err != nil {
		return err
	}
	if strings.TrimSpace(c.Upstream.UserAgent) == "" {
		return errors.New("upstream.user_agent is required")
	}
	if c.Upstream.Cap < 1 {
		return errors.New("upstream.cap must be >= 1")
	}
	switch c.Upstream.TimeFilter {
	case "timeRemain", "timeOnly":
	default:
		return fmt.Errorf("upstream.time_filter must be timeRemain or timeOnly, got %q", c.Upstream.TimeFilter)
	}

	if c.Retrieval.DaysPerChunk < 1 {
		return errors.New("retrieval.days_per_chunk must be >= 1")
	}
	if c.Retrieval.MaxPagesPerChunk < 0 {
		return errors.New("retrieval.max_pages_per_chunk must be >= 0")
	}
	if c.Retrieval.MaxRangeDays < 0 {
		return errors.New("retrieval.max_range_days must be >= 0")
	}
	if c.Retrieval.Concurrency < 1 {
		return errors.New("retrieval.concurrency must be >= 1")
	}
	if c.Retrieval.ChunkTimeout < 0 {
		return errors.New("retrieval.chunk_timeout must be >= 0")
	}

	if c.Retry.Attempts < 1 {
		return errors.New("retry.attempts must be >= 1")
	}
	if c.Retry.InitialBackoff <= 0 || c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		return fmt.Errorf("retry backoff must satisfy 0 < initial_backoff <= max_backoff, got %s/%s",
			c.Retry.InitialBackoff, c.Retry.MaxBackoff)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout must be > 0")
	}

	if c.Rate.RequestsPerSecond < 0 {
		return errors.New("rate.requests_per_second must be >= 0")
	}
	if c.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}

	if c.Session.TTL <= 0 {
		return errors.New("session.ttl must be > 0")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	for _, imp := range c.Filters.Importance {
		if imp < 1 || imp > 3 {
			return fmt.Errorf("filters.importance values must be 1..3, got %d", imp)
		}
	}

	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", field, raw)
	}
	return nil
}
