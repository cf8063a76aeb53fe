package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request pacing.
var (
	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calendar_rate_limit_waits_total",
		Help: "Total number of requests delayed by an upstream cool-down",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calendar_rate_limit_throttles_total",
		Help: "Total number of throttle responses received from upstream",
	})
)

// Config holds pacing settings.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns conservative pacing for the calendar endpoint.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: DefaultRequestsPerSecond,
		Burst:             DefaultBurst,
	}
}

// Tracker gates outgoing requests. It is safe for concurrent use.
type Tracker struct {
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu    sync.Mutex
	state State
	now   func() time.Time
}

// NewTracker creates a tracker. A non-positive rate disables the token bucket.
func NewTracker(cfg Config, logger zerolog.Logger) *Tracker {
	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Tracker{
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
		now:     time.Now,
	}
}

// GetState returns a snapshot of the throttle state.
func (t *Tracker) GetState() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Wait blocks until a request may be sent: first through any cool-down
// window, then through the token bucket.
func (t *Tracker) Wait(ctx context.Context) error {
	t.mu.Lock()
	wait := t.state.TimeUntilUnblocked(t.now())
	t.mu.Unlock()

	if wait > 0 {
		rateLimitWaitsTotal.Inc()
		t.logger.Warn().
			Dur("wait_duration", wait).
			Msg("Upstream cool-down active - delaying request")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("wait for cool-down: %w", ctx.Err())
		case <-timer.C:
		}
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// RecordThrottle opens a cool-down window after a 429 response.
func (t *Tracker) RecordThrottle(retryAfter time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	cooldown := t.state.Cooldown(retryAfter)
	t.state.ConsecutiveThrottles++
	if until := now.Add(cooldown); until.After(t.state.BlockedUntil) {
		t.state.BlockedUntil = until
	}
	t.state.LastUpdate = now

	rateLimitThrottlesTotal.Inc()
	t.logger.Warn().
		Int("consecutive_throttles", t.state.ConsecutiveThrottles).
		Dur("cooldown", cooldown).
		Time("blocked_until", t.state.BlockedUntil).
		Msg("Upstream throttled request")
}

// RecordSuccess resets the throttle streak.
func (t *Tracker) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.ConsecutiveThrottles == 0 {
		return
	}
	t.state.ConsecutiveThrottles = 0
	t.state.LastUpdate = t.now()
	t.logger.Info().Msg("Upstream throttle streak cleared")
}
