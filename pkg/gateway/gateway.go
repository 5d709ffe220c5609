package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/srd-gateway/pkg/cache"
	"github.com/Sternrassler/srd-gateway/pkg/client"
	"github.com/Sternrassler/srd-gateway/pkg/fanout"
	"github.com/Sternrassler/srd-gateway/pkg/filter"
	"github.com/Sternrassler/srd-gateway/pkg/logging"
	"github.com/Sternrassler/srd-gateway/pkg/pagination"
	"github.com/Sternrassler/srd-gateway/pkg/srd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const tracerName = "github.com/Sternrassler/srd-gateway/pkg/gateway"

var (
	gatewayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "srd_gateway_requests_total",
		Help: "Total gateway calls by family, operation and outcome",
	}, []string{"family", "operation", "outcome"})

	gatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "srd_gateway_request_duration_seconds",
		Help:    "Gateway call duration in seconds by operation",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30},
	}, []string{"operation"})

	upstreamFetchesShared = promauto.NewCounter(prometheus.CounterOpts{
		Name: "srd_gateway_shared_fetches_total",
		Help: "Total cache misses served by another caller's in-flight upstream fetch",
	})
)

// Upstream is the part of the SRD API client the gateway needs.
type Upstream interface {
	Fetch(ctx context.Context, path string) (srd.Document, error)
	FetchList(ctx context.Context, path, field string) ([]srd.Document, error)
}

// Config holds gateway configuration.
type Config struct {
	// TTL of cached upstream data. Zero uses the cache manager default.
	TTL time.Duration

	// Enrich bounds the fan-out behind enriched listings.
	Enrich fanout.Config
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() Config {
	return Config{
		Enrich: fanout.DefaultConfig(),
	}
}

// Envelope is the response of a listing call. Count is the filtered size
// before pagination.
type Envelope struct {
	Count   int            `json:"count"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	Results []srd.Document `json:"results"`
}

// Gateway serves SRD resource families from cache, falling back to the
// upstream API. It is safe for concurrent use.
type Gateway struct {
	cache    *cache.Manager
	upstream Upstream
	config   Config
	group    singleflight.Group
	tracer   trace.Tracer
	logger   zerolog.Logger
}

// New creates a gateway.
func New(cacheManager *cache.Manager, upstream Upstream, config Config) *Gateway {
	if cacheManager == nil {
		panic("gateway: cache manager is required")
	}
	if upstream == nil {
		panic("gateway: upstream is required")
	}

	return &Gateway{
		cache:    cacheManager,
		upstream: upstream,
		config:   config,
		tracer:   otel.Tracer(tracerName),
		logger:   logging.NewLogger("gateway"),
	}
}

// List returns one page of a family listing after filtering and optional
// enrichment. spec is applied as given; callers validate it first.
func (g *Gateway) List(ctx context.Context, family srd.Family, spec filter.Spec, page pagination.Request) (*Envelope, error) {
	start := time.Now()
	ctx, span := g.tracer.Start(ctx, "gateway.list", trace.WithAttributes(
		attribute.String("srd.family", family.Name),
		attribute.Bool("srd.enrich", spec.NeedsEnrichment()),
	))
	defer span.End()

	env, err := g.list(ctx, family, spec, page)
	g.observe(span, family, "list", start, err)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("srd.count", env.Count))
	return env, nil
}

func (g *Gateway) list(ctx context.Context, family srd.Family, spec filter.Spec, page pagination.Request) (*Envelope, error) {
	kind := filter.CategoryNone
	if family.Name == srd.Items.Name && spec.Category != "" {
		kind = filter.ClassifyCategory(spec.Category)
	}

	var (
		stubs []srd.Document
		err   error
	)
	if kind == filter.CategoryBucket {
		// Coarse buckets come from the category document.
		stubs, err = g.collection(ctx, srd.EquipmentCategories+"/"+spec.Category,
			srd.EquipmentCategories+"/"+spec.Category, "equipment")
	} else {
		stubs, err = g.collection(ctx, family.Upstream, family.Upstream, "results")
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", family.Name, err)
	}

	results := filter.ByName(stubs, spec.Name)
	if kind == filter.CategoryAlias {
		results = filter.ByAlias(results, spec.Category)
	}

	if spec.NeedsEnrichment() {
		results = g.enrich(ctx, family, results, spec)
	}

	items, limit, offset := pagination.Page(results, page)
	return &Envelope{
		Count:   len(results),
		Limit:   limit,
		Offset:  offset,
		Results: items,
	}, nil
}

// enrich expands stubs into detail documents, applies the filters that
// need them and projects each survivor to the family's summary view.
// The fan-out is detached from the caller's cancellation; each fetch
// still ends at its own timeout.
func (g *Gateway) enrich(ctx context.Context, family srd.Family, stubs []srd.Document, spec filter.Spec) []srd.Document {
	ctx, span := g.tracer.Start(ctx, "gateway.enrich", trace.WithAttributes(
		attribute.String("srd.family", family.Name),
		attribute.Int("srd.candidates", len(stubs)),
	))
	defer span.End()

	refs := make([]srd.Stub, len(stubs))
	for i, doc := range stubs {
		refs[i] = srd.StubOf(doc)
	}

	fetcher := fanout.NewBatchFetcher(fanout.FetcherFunc(func(ctx context.Context, stub srd.Stub) (srd.Document, error) {
		return g.document(ctx, family, stub)
	}), g.config.Enrich)

	docs := fetcher.Expand(context.WithoutCancel(ctx), refs)
	docs = filter.Enriched(docs, spec)

	out := make([]srd.Document, len(docs))
	for i, doc := range docs {
		out[i] = family.Summarize(doc)
	}

	span.SetAttributes(attribute.Int("srd.enriched", len(out)))
	return out
}

// Detail returns one document of a family, normalized to the family's
// detail field set.
func (g *Gateway) Detail(ctx context.Context, family srd.Family, index string) (srd.Document, error) {
	start := time.Now()
	ctx, span := g.tracer.Start(ctx, "gateway.detail", trace.WithAttributes(
		attribute.String("srd.family", family.Name),
		attribute.String("srd.index", index),
	))
	defer span.End()

	doc, err := g.document(ctx, family, srd.Stub{Index: index})
	g.observe(span, family, "detail", start, err)
	if err != nil {
		return nil, fmt.Errorf("detail %s/%s: %w", family.Name, index, err)
	}

	return family.Normalize(doc), nil
}

// Categories returns the accepted items category values.
func (g *Gateway) Categories() filter.Categories {
	return filter.SupportedCategories()
}

// collection reads a listing through the cache. name keys the cache entry,
// path and field locate the list upstream.
func (g *Gateway) collection(ctx context.Context, name, path, field string) ([]srd.Document, error) {
	key := cache.IndexKey(name)

	var docs []srd.Document
	err := g.cache.GetJSON(ctx, key, &docs)
	if err == nil {
		g.logger.Debug().Str("key", key.String()).Msg("Listing cache hit")
		return docs, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		g.logger.Warn().Err(err).Str("key", key.String()).Msg("Listing cache read failed - refetching")
	}

	v, err := g.fetchOnce(ctx, key, func(ctx context.Context) (any, error) {
		return g.upstream.FetchList(ctx, path, field)
	})
	if err != nil {
		return nil, err
	}
	return v.([]srd.Document), nil
}

// document reads one upstream document through the cache. It backs both
// detail calls and enrichment.
func (g *Gateway) document(ctx context.Context, family srd.Family, stub srd.Stub) (srd.Document, error) {
	if stub.Index == "" {
		return nil, fmt.Errorf("%s stub without index", family.Name)
	}

	// Bucket members may link to another collection, so the key follows
	// the document actually fetched rather than the requested family.
	collection, index := stub.Ref(family.Upstream)
	key := cache.DetailKey(collection, index)

	var doc srd.Document
	err := g.cache.GetJSON(ctx, key, &doc)
	if err == nil && doc != nil {
		g.logger.Debug().Str("key", key.String()).Msg("Document cache hit")
		return doc, nil
	}
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		g.logger.Warn().Err(err).Str("key", key.String()).Msg("Document cache read failed - refetching")
	}

	v, err := g.fetchOnce(ctx, key, func(ctx context.Context) (any, error) {
		return g.upstream.Fetch(ctx, stub.Path(family.Upstream))
	})
	if err != nil {
		return nil, err
	}
	return v.(srd.Document), nil
}

// fetchOnce runs fetch for key unless an identical fetch is in flight, and
// caches a successful result. Errors, NotFound included, are not cached.
// Neither the fetch nor the wait for it follow the caller's cancellation,
// so waiters sharing a fetch are not failed by someone else's disconnect.
// Both still end at the caller's deadline.
func (g *Gateway) fetchOnce(ctx context.Context, key cache.CacheKey, fetch func(context.Context) (any, error)) (any, error) {
	ch := g.group.DoChan(key.String(), func() (any, error) {
		fetchCtx, cancel := detach(ctx)
		defer cancel()

		g.logger.Info().Str("key", key.String()).Msg("Cache miss - fetching from SRD API")
		v, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}

		if err := g.cache.SetJSON(context.WithoutCancel(ctx), key, v, g.config.TTL); err != nil {
			g.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to cache upstream data")
		}
		return v, nil
	})

	waitCtx, cancel := detach(ctx)
	defer cancel()

	select {
	case res := <-ch:
		if res.Shared {
			upstreamFetchesShared.Inc()
		}
		return res.Val, res.Err
	case <-waitCtx.Done():
		return nil, &client.UpstreamError{
			ErrorClass: client.ErrorClassNetwork,
			Detail:     "waiting for upstream fetch",
			Err:        waitCtx.Err(),
		}
	}
}

// detach drops ctx's cancellation but keeps its deadline.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(detached, deadline)
	}
	return context.WithCancel(detached)
}

func (g *Gateway) observe(span trace.Span, family srd.Family, operation string, start time.Time, err error) {
	gatewayRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	outcome := outcomeOf(err)
	gatewayRequestsTotal.WithLabelValues(family.Name, operation, outcome).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
}
