package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CALENDAR_"

func (c *Config) applyEnv() error {
	setString(&c.Upstream.URL, "URL")
	setString(&c.Upstream.LandingURL, "LANDING_URL")
	setString(&c.Upstream.UserAgent, "USER_AGENT")
	setString(&c.Upstream.TimeFilter, "TIME_FILTER")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Session.Key, "SESSION_KEY")
	setString(&c.Log.Level, "LOG_LEVEL")

	ints := []struct {
		dst *int
		key string
	}{
		{&c.Upstream.TimeZone, "TIMEZONE"},
		{&c.Upstream.Cap, "UPSTREAM_CAP"},
		{&c.Retrieval.DaysPerChunk, "DAYS_PER_CHUNK"},
		{&c.Retrieval.MaxPagesPerChunk, "MAX_PAGES_PER_CHUNK"},
		{&c.Retrieval.MaxRangeDays, "MAX_RANGE_DAYS"},
		{&c.Retrieval.Concurrency, "CONCURRENCY"},
		{&c.Retry.Attempts, "RETRY_ATTEMPTS"},
		{&c.Rate.Burst, "RATE_BURST"},
		{&c.Redis.DB, "REDIS_DB"},
		{&c.Server.Port, "PORT"},
	}
	for _, e := range ints {
		if err := setInt(e.dst, e.key); err != nil {
			return err
		}
	}

	durations := []struct {
		dst *time.Duration
		key string
	}{
		{&c.Retrieval.ChunkTimeout, "CHUNK_TIMEOUT"},
		{&c.Retry.InitialBackoff, "RETRY_INITIAL_BACKOFF"},
		{&c.Retry.MaxBackoff, "RETRY_MAX_BACKOFF"},
		{&c.RequestTimeout, "REQUEST_TIMEOUT"},
		{&c.Session.TTL, "SESSION_TTL"},
	}
	for _, e := range durations {
		if err := setDuration(e.dst, e.key); err != nil {
			return err
		}
	}

	if v, ok := lookup("RATE_RPS"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse %sRATE_RPS: %w", EnvPrefix, err)
		}
		c.Rate.RequestsPerSecond = f
	}
	if v, ok := lookup("LOG_PRETTY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %sLOG_PRETTY: %w", EnvPrefix, err)
		}
		c.Log.Pretty = b
	}
	return nil
}

func lookup(key string) (string, bool) {
	v := os.Getenv(EnvPrefix + key)
	return v, v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s%s: %w", EnvPrefix, key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s%s: %w", EnvPrefix, key, err)
	}
	*dst = d
	return nil
}
