// Package ratelimit paces requests to the calendar endpoint.
// Requests pass a token bucket; 429 responses push a cool-down window during
// which every request waits, growing with consecutive throttles.
package ratelimit

import (
	"time"
)

// Defaults for pacing decisions.
const (
	// DefaultRequestsPerSecond is the steady request rate. The upstream is a
	// public web page endpoint and bans aggressive clients.
	DefaultRequestsPerSecond = 2.0

	// DefaultBurst is the token bucket size.
	DefaultBurst = 1

	// BaseCooldown is the first cool-down applied after a throttle without Retry-After.
	BaseCooldown = 2 * time.Second

	// MaxCooldown caps the escalating cool-down.
	MaxCooldown = 60 * time.Second
)

// State is the throttle state shared by all requests of one Tracker.
type State struct {
	// ConsecutiveThrottles counts 429 responses since the last success.
	ConsecutiveThrottles int `json:"consecutive_throttles"`

	// BlockedUntil is the end of the current cool-down window.
	BlockedUntil time.Time `json:"blocked_until"`

	// LastUpdate is when the state last changed.
	LastUpdate time.Time `json:"last_update"`
}

// IsBlocked reports whether now falls inside the cool-down window.
func (s *State) IsBlocked(now time.Time) bool {
	return now.Before(s.BlockedUntil)
}

// TimeUntilUnblocked returns the remaining cool-down, or 0.
func (s *State) TimeUntilUnblocked(now time.Time) time.Duration {
	d := s.BlockedUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Cooldown returns the cool-down for the next throttle. retryAfter wins when
// the server sent one; otherwise BaseCooldown doubles per consecutive throttle.
func (s *State) Cooldown(retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		if retryAfter > MaxCooldown {
			return MaxCooldown
		}
		return retryAfter
	}
	d := BaseCooldown
	for i := 0; i < s.ConsecutiveThrottles && d < MaxCooldown; i++ {
		d *= 2
	}
	if d > MaxCooldown {
		d = MaxCooldown
	}
	return d
}
