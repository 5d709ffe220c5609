// Package ratelimit tracks upstream rate limit responses and gates requests.
// When the SRD API answers 429 Too Many Requests, the tracker opens a block
// window (from the Retry-After header) during which outbound calls fail
// fast instead of adding to the upstream's load.
package ratelimit

import (
	"time"
)

// DefaultBlock is the block window used when a 429 carries no usable Retry-After.
const DefaultBlock = 2 * time.Second

// MaxBlock caps a Retry-After value so a hostile header cannot stall the gateway.
const MaxBlock = 5 * time.Minute

// RateLimitState represents the current upstream rate limit state.
type RateLimitState struct {
	// BlockedUntil is when outbound requests may resume.
	// Zero when no block is active.
	BlockedUntil time.Time `json:"blocked_until"`

	// LastStatus is the status code of the last tracked upstream response.
	LastStatus int `json:"last_status"`

	// LastUpdate is the timestamp when this state was last updated.
	LastUpdate time.Time `json:"last_update"`
}

// IsBlockedAt returns true if requests should be blocked at now.
func (s *RateLimitState) IsBlockedAt(now time.Time) bool {
	return now.Before(s.BlockedUntil)
}

// TimeUntilReset returns the duration until the block lifts.
// Returns 0 if no block is active.
func (s *RateLimitState) TimeUntilReset(now time.Time) time.Duration {
	duration := s.BlockedUntil.Sub(now)
	if duration < 0 {
		return 0
	}
	return duration
}
