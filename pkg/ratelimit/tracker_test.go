package ratelimit

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.RequestsPerSecond != DefaultRequestsPerSecond {
		t.Errorf("RequestsPerSecond = %v, want %v", cfg.RequestsPerSecond, DefaultRequestsPerSecond)
	}
	if cfg.Burst != DefaultBurst {
		t.Errorf("Burst = %d, want %d", cfg.Burst, DefaultBurst)
	}
}

func TestTracker_WaitUnlimited(t *testing.T) {
	tracker := NewTracker(Config{RequestsPerSecond: 0}, testLogger())

	start := time.Now()
	for i := 0; i < 50; i++ {
		if err := tracker.Wait(context.Background()); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("unlimited tracker took %v for 50 waits", elapsed)
	}
}

func TestTracker_RecordThrottle(t *testing.T) {
	tracker := NewTracker(Config{}, testLogger())
	now := time.Date(2025, 12, 2, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return now }

	tracker.RecordThrottle(0)
	state := tracker.GetState()
	if state.ConsecutiveThrottles != 1 {
		t.Errorf("ConsecutiveThrottles = %d, want 1", state.ConsecutiveThrottles)
	}
	if !state.BlockedUntil.Equal(now.Add(BaseCooldown)) {
		t.Errorf("BlockedUntil = %v, want %v", state.BlockedUntil, now.Add(BaseCooldown))
	}

	tracker.RecordThrottle(0)
	state = tracker.GetState()
	if !state.BlockedUntil.Equal(now.Add(2 * BaseCooldown)) {
		t.Errorf("second BlockedUntil = %v, want %v", state.BlockedUntil, now.Add(2*BaseCooldown))
	}

	tracker.RecordSuccess()
	if got := tracker.GetState().ConsecutiveThrottles; got != 0 {
		t.Errorf("ConsecutiveThrottles after success = %d, want 0", got)
	}
}

func TestTracker_WaitDuringCooldown(t *testing.T) {
	tracker := NewTracker(Config{}, testLogger())
	tracker.RecordThrottle(80 * time.Millisecond)

	start := time.Now()
	if err := tracker.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("Wait returned after %v, expected to honor cool-down", elapsed)
	}
}

func TestTracker_WaitCancelled(t *testing.T) {
	tracker := NewTracker(Config{}, testLogger())
	tracker.RecordThrottle(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tracker.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait error = %v, want context.DeadlineExceeded", err)
	}
}
