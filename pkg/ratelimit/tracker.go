package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	upstreamRateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "srd_upstream_rate_limited_total",
		Help: "Total number of 429 responses received from the SRD API",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "srd_rate_limit_blocks_total",
		Help: "Total number of outbound requests blocked during an upstream rate limit window",
	})
)

// Tracker monitors upstream 429 responses and gates requests.
// The state lives in process memory and is shared by every caller of
// one upstream client.
type Tracker struct {
	mu     sync.Mutex
	state  RateLimitState
	logger zerolog.Logger
	now    func() time.Time
}

// NewTracker creates a new rate limit tracker.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the tracker's time source (for testing).
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}

// GetState returns a snapshot of the current state.
func (t *Tracker) GetState() RateLimitState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// UpdateFromResponse records an upstream response. A 429 opens a block
// window sized by the Retry-After header.
func (t *Tracker) UpdateFromResponse(statusCode int, headers http.Header) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.state.LastStatus = statusCode
	t.state.LastUpdate = now

	if statusCode != http.StatusTooManyRequests {
		return
	}

	block := parseRetryAfter(headers.Get("Retry-After"), now)
	until := now.Add(block)
	if until.After(t.state.BlockedUntil) {
		t.state.BlockedUntil = until
	}

	upstreamRateLimitedTotal.Inc()
	t.logger.Warn().
		Dur("retry_after", block).
		Time("blocked_until", t.state.BlockedUntil).
		Msg("SRD API rate limited - blocking outbound requests")
}

// ShouldAllowRequest reports whether an outbound request may proceed.
// When blocked it also returns the remaining wait.
func (t *Tracker) ShouldAllowRequest() (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if !t.state.IsBlockedAt(now) {
		return true, 0
	}

	wait := t.state.TimeUntilReset(now)
	rateLimitBlocksTotal.Inc()
	t.logger.Debug().
		Dur("wait_duration", wait).
		Msg("Upstream rate limit active - blocking request")
	return false, wait
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultBlock
	}

	var d time.Duration
	if secs, err := strconv.Atoi(value); err == nil {
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(value); err == nil {
		d = at.Sub(now)
	} else {
		return DefaultBlock
	}

	if d <= 0 {
		return DefaultBlock
	}
	if d > MaxBlock {
		return MaxBlock
	}
	return d
}
