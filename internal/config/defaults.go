package config

import (
	"time"

	"github.com/Sternrassler/econ-calendar-client/pkg/calendar"
	"github.com/Sternrassler/econ-calendar-client/pkg/chunk"
	"github.com/Sternrassler/econ-calendar-client/pkg/client"
	"github.com/Sternrassler/econ-calendar-client/pkg/pagination"
	"github.com/Sternrassler/econ-calendar-client/pkg/ratelimit"
	"github.com/Sternrassler/econ-calendar-client/pkg/retrieval"
	"github.com/Sternrassler/econ-calendar-client/pkg/session"
)

// Default values for unset fields.
const (
	DefaultPort           = 8080
	DefaultRequestTimeout = 30 * time.Second
	DefaultLogLevel       = "info"
)

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := preset()
	cfg.applyDefaults()
	return cfg
}

// preset returns a Config holding the defaults of fields whose zero value is
// a valid setting. Load decodes over it, so an explicit 0 survives.
func preset() *Config {
	return &Config{
		Retrieval: RetrievalConfig{
			MaxPagesPerChunk: pagination.DefaultMaxPagesPerChunk,
			MaxRangeDays:     retrieval.DefaultMaxRangeDays,
		},
	}
}

func (c *Config) applyDefaults() {
	if c.Upstream.URL == "" {
		c.Upstream.URL = client.DefaultURL
	}
	if c.Upstream.LandingURL == "" {
		c.Upstream.LandingURL = client.DefaultLandingURL
	}
	if c.Upstream.UserAgent == "" {
		c.Upstream.UserAgent = client.DefaultUserAgent
	}
	if c.Upstream.TimeZone == 0 {
		c.Upstream.TimeZone = calendar.DefaultTimeZone
	}
	if c.Upstream.TimeFilter == "" {
		c.Upstream.TimeFilter = pagination.DefaultTimeFilter
	}
	if c.Upstream.Cap == 0 {
		c.Upstream.Cap = pagination.DefaultUpstreamCap
	}

	if c.Retrieval.DaysPerChunk == 0 {
		c.Retrieval.DaysPerChunk = chunk.DefaultDaysPerChunk
	}
	if c.Retrieval.Concurrency == 0 {
		c.Retrieval.Concurrency = 1
	}

	retry := client.DefaultRetryConfig()
	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = retry.MaxAttempts
	}
	if c.Retry.InitialBackoff == 0 {
		c.Retry.InitialBackoff = retry.InitialBackoff
	}
	if c.Retry.MaxBackoff == 0 {
		c.Retry.MaxBackoff = retry.MaxBackoff
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}

	if c.Rate.RequestsPerSecond == 0 {
		c.Rate.RequestsPerSecond = ratelimit.DefaultRequestsPerSecond
	}
	if c.Rate.Burst == 0 {
		c.Rate.Burst = ratelimit.DefaultBurst
	}

	if c.Session.TTL == 0 {
		c.Session.TTL = session.DefaultTTL
	}
	if c.Session.Key == "" {
		c.Session.Key = session.DefaultKey
	}

	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}
