package fanout

import (
	"context"
	"errors"
	"time"

	"github.com/Sternrassler/srd-gateway/pkg/logging"
	"github.com/Sternrassler/srd-gateway/pkg/srd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var errNilDocument = errors.New("detail fetch returned no document")

var (
	enrichItemsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "srd_enrich_items_total",
		Help: "Total number of stubs submitted for enrichment",
	})

	enrichFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "srd_enrich_failures_total",
		Help: "Total number of stubs dropped because their detail fetch failed",
	})

	enrichDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "srd_enrich_duration_seconds",
		Help:    "Duration of one enrichment join in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30},
	})
)

// Config holds batch fetcher configuration.
type Config struct {
	// MaxItems caps how many stubs one call expands.
	MaxItems int
	// MaxConcurrency is the maximum number of parallel detail fetches.
	MaxConcurrency int
	// Timeout per detail fetch.
	Timeout time.Duration
}

// DefaultConfig returns the default enrichment limits.
func DefaultConfig() Config {
	return Config{
		MaxItems:       40,
		MaxConcurrency: 8,
		Timeout:        15 * time.Second,
	}
}

// DetailFetcher loads the full document behind a listing stub.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, stub srd.Stub) (srd.Document, error)
}

// FetcherFunc adapts a function to DetailFetcher.
type FetcherFunc func(ctx context.Context, stub srd.Stub) (srd.Document, error)

// FetchDetail calls f.
func (f FetcherFunc) FetchDetail(ctx context.Context, stub srd.Stub) (srd.Document, error) {
	return f(ctx, stub)
}

// Outcome is the result of expanding a single stub.
type Outcome struct {
	Position int
	Stub     srd.Stub
	Document srd.Document
	Err      error
}

// OK reports whether the detail fetch succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Document != nil
}

// BatchFetcher handles parallel expansion of listing stubs.
type BatchFetcher struct {
	fetcher DetailFetcher
	config  Config
	logger  zerolog.Logger
}

// NewBatchFetcher creates a new batch fetcher.
func NewBatchFetcher(fetcher DetailFetcher, config Config) *BatchFetcher {
	defaults := DefaultConfig()
	if config.MaxItems <= 0 {
		config.MaxItems = defaults.MaxItems
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger("fanout"),
	}
}

// Config returns the effective configuration.
func (bf *BatchFetcher) Config() Config {
	return bf.config
}

// Expand fetches the detail document of each stub and returns the
// successes in input order. It never fails: a stub whose fetch errors is
// dropped from the result.
func (bf *BatchFetcher) Expand(ctx context.Context, stubs []srd.Stub) []srd.Document {
	outcomes := bf.Outcomes(ctx, stubs)

	docs := make([]srd.Document, 0, len(outcomes))
	for _, outcome := range outcomes {
		if outcome.OK() {
			docs = append(docs, outcome.Document)
		}
	}
	return docs
}

// Outcomes runs the detail fetches and returns one Outcome per submitted
// stub, indexed by position.
func (bf *BatchFetcher) Outcomes(ctx context.Context, stubs []srd.Stub) []Outcome {
	start := time.Now()
	defer func() {
		enrichDuration.Observe(time.Since(start).Seconds())
	}()

	if len(stubs) > bf.config.MaxItems {
		bf.logger.Debug().
			Int("stubs", len(stubs)).
			Int("max_items", bf.config.MaxItems).
			Msg("Truncating enrichment input")
		stubs = stubs[:bf.config.MaxItems]
	}
	enrichItemsTotal.Add(float64(len(stubs)))

	outcomes := make([]Outcome, len(stubs))

	var g errgroup.Group
	g.SetLimit(bf.config.MaxConcurrency)

	for i, stub := range stubs {
		i, stub := i, stub
		g.Go(func() error {
			outcomes[i] = bf.fetchOne(ctx, i, stub)
			return nil
		})
	}
	g.Wait()

	failed := 0
	for _, outcome := range outcomes {
		if outcome.OK() {
			continue
		}
		failed++
		enrichFailuresTotal.Inc()
		bf.logger.Warn().
			Err(outcome.Err).
			Int("position", outcome.Position).
			Str("index", outcome.Stub.Index).
			Msg("Enrichment fetch failed - dropping item")
	}

	bf.logger.Debug().
		Int("items", len(stubs)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Enrichment complete")

	return outcomes
}

func (bf *BatchFetcher) fetchOne(ctx context.Context, position int, stub srd.Stub) Outcome {
	fetchCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	defer cancel()

	doc, err := bf.fetcher.FetchDetail(fetchCtx, stub)
	if err == nil && doc == nil {
		err = errNilDocument
	}
	return Outcome{
		Position: position,
		Stub:     stub,
		Document: doc,
		Err:      err,
	}
}
