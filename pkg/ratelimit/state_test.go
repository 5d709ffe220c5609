package ratelimit

import (
	"testing"
	"time"
)

func TestRateLimitState_IsBlockedAt(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		until    time.Time
		expected bool
	}{
		{name: "no block", until: time.Time{}, expected: false},
		{name: "active block", until: now.Add(time.Second), expected: true},
		{name: "block lifted", until: now.Add(-time.Second), expected: false},
		{name: "lifts exactly now", until: now, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &RateLimitState{BlockedUntil: tt.until}
			if got := state.IsBlockedAt(now); got != tt.expected {
				t.Errorf("IsBlockedAt() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRateLimitState_TimeUntilReset(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	state := &RateLimitState{BlockedUntil: now.Add(30 * time.Second)}
	if got := state.TimeUntilReset(now); got != 30*time.Second {
		t.Errorf("TimeUntilReset() = %v, want 30s", got)
	}

	state = &RateLimitState{BlockedUntil: now.Add(-time.Minute)}
	if got := state.TimeUntilReset(now); got != 0 {
		t.Errorf("TimeUntilReset() = %v, want 0 for past reset", got)
	}
}
