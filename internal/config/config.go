// Package config loads the calendar service configuration.
//
// Sources, later ones winning: an optional YAML file (with ${VAR} expansion),
// a .env file in the working directory, CALENDAR_* environment variables.
// Unset fields fall back to defaults and the result is validated.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Sternrassler/econ-calendar-client/pkg/calendar"
	"github.com/Sternrassler/econ-calendar-client/pkg/client"
	"github.com/Sternrassler/econ-calendar-client/pkg/pagination"
	"github.com/Sternrassler/econ-calendar-client/pkg/ratelimit"
	"github.com/Sternrassler/econ-calendar-client/pkg/retrieval"
	"github.com/Sternrassler/econ-calendar-client/pkg/session"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Upstream       UpstreamConfig   `yaml:"upstream"`
	Retrieval      RetrievalConfig  `yaml:"retrieval"`
	Retry          RetryConfig      `yaml:"retry"`
	RequestTimeout time.Duration    `yaml:"request_timeout"`
	Rate           RateConfig       `yaml:"rate"`
	Redis          RedisConfig      `yaml:"redis"`
	Session        SessionConfig    `yaml:"session"`
	Server         ServerConfig     `yaml:"server"`
	Log            LogConfig        `yaml:"log"`
	Filters        calendar.Filters `yaml:"filters"`
}

// UpstreamConfig describes the calendar endpoint.
type UpstreamConfig struct {
	URL        string `yaml:"url"`
	LandingURL string `yaml:"landing_url"`
	UserAgent  string `yaml:"user_agent"`
	TimeZone   int    `yaml:"timezone"`
	TimeFilter string `yaml:"time_filter"`

	// Cap is the first-page size at which truncation is suspected.
	Cap int `yaml:"cap"`
}

// RetrievalConfig controls chunking and pagination.
type RetrievalConfig struct {
	DaysPerChunk     int           `yaml:"days_per_chunk"`
	MaxPagesPerChunk int           `yaml:"max_pages_per_chunk"`
	Concurrency      int           `yaml:"concurrency"`
	ChunkTimeout     time.Duration `yaml:"chunk_timeout"`

	// MaxRangeDays caps the requested range. 0 disables the check.
	MaxRangeDays int `yaml:"max_range_days"`
}

// RetryConfig controls per-request retries.
type RetryConfig struct {
	Attempts       int           `yaml:"attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// RateConfig paces outgoing requests.
type RateConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// RedisConfig locates the session cache. An empty Addr keeps sessions in memory.
type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

// SessionConfig controls cookie reuse.
type SessionConfig struct {
	TTL time.Duration `yaml:"ttl"`
	Key string        `yaml:"key"`
}

// ServerConfig configures the HTTP façade.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load builds the configuration. path may be empty to skip the YAML file.
func Load(path string) (*Config, error) {
	cfg := preset()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		// Expand ${VAR} environment variables
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// ClientConfig returns the upstream client settings.
func (c *Config) ClientConfig() client.Config {
	return client.Config{
		URL:        c.Upstream.URL,
		LandingURL: c.Upstream.LandingURL,
		UserAgent:  c.Upstream.UserAgent,
		Timeout:    c.RequestTimeout,
		RateLimit: ratelimit.Config{
			RequestsPerSecond: c.Rate.RequestsPerSecond,
			Burst:             c.Rate.Burst,
		},
	}
}

// RetryPolicy returns the per-request retry settings.
func (c *Config) RetryPolicy() client.RetryConfig {
	rc := client.DefaultRetryConfig()
	rc.MaxAttempts = c.Retry.Attempts
	rc.InitialBackoff = c.Retry.InitialBackoff
	rc.MaxBackoff = c.Retry.MaxBackoff
	return rc
}

// FetcherConfig returns the chunk fetcher settings.
func (c *Config) FetcherConfig() pagination.Config {
	return pagination.Config{
		MaxPagesPerChunk: c.Retrieval.MaxPagesPerChunk,
		UpstreamCap:      c.Upstream.Cap,
		Retry:            c.RetryPolicy(),
	}
}

// RetrieverConfig returns the orchestrator settings.
func (c *Config) RetrieverConfig() retrieval.Config {
	return retrieval.Config{
		DaysPerChunk:     c.Retrieval.DaysPerChunk,
		Concurrency:      c.Retrieval.Concurrency,
		ChunkTimeout:     c.Retrieval.ChunkTimeout,
		RequestTimeout:   c.RequestTimeout,
		RetryAttempts:    c.Retry.Attempts,
		MaxPagesPerChunk: c.Retrieval.MaxPagesPerChunk,
		MaxRangeDays:     c.Retrieval.MaxRangeDays,
	}
}

// ProviderConfig returns the session cookie provider settings.
func (c *Config) ProviderConfig() session.Config {
	return session.Config{TTL: c.Session.TTL}
}

// BaseFilters returns the filters applied to every request unless overridden.
func (c *Config) BaseFilters() calendar.Filters {
	f := c.Filters
	f.TimeZone = c.Upstream.TimeZone
	f.TimeFilter = c.Upstream.TimeFilter
	return f
}
