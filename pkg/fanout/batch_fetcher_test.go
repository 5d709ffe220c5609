package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/srd-gateway/pkg/srd"
)

// mockDetailFetcher implements DetailFetcher for testing.
type mockDetailFetcher struct {
	mu          sync.Mutex
	calls       []string
	failIndexes map[string]bool
	delay       func(stub srd.Stub) time.Duration

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func (m *mockDetailFetcher) FetchDetail(ctx context.Context, stub srd.Stub) (srd.Document, error) {
	current := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		peak := m.maxInFlight.Load()
		if current <= peak || m.maxInFlight.CompareAndSwap(peak, current) {
			break
		}
	}

	m.mu.Lock()
	m.calls = append(m.calls, stub.Index)
	m.mu.Unlock()

	if m.delay != nil {
		select {
		case <-time.After(m.delay(stub)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.failIndexes[stub.Index] {
		return nil, fmt.Errorf("fetch %s: boom", stub.Index)
	}
	return srd.Document{"index": stub.Index, "name": stub.Name, "detail": true}, nil
}

func makeStubs(n int) []srd.Stub {
	stubs := make([]srd.Stub, n)
	for i := range stubs {
		stubs[i] = srd.Stub{Index: fmt.Sprintf("item-%02d", i), Name: fmt.Sprintf("Item %d", i)}
	}
	return stubs
}

func indexes(docs []srd.Document) []string {
	out := make([]string, len(docs))
	for i, doc := range docs {
		out[i] = doc.Index()
	}
	return out
}

func TestNewBatchFetcher_Defaults(t *testing.T) {
	bf := NewBatchFetcher(&mockDetailFetcher{}, Config{})

	cfg := bf.Config()
	if cfg.MaxItems != 40 {
		t.Errorf("MaxItems = %d, want 40", cfg.MaxItems)
	}
	if cfg.MaxConcurrency != 8 {
		t.Errorf("MaxConcurrency = %d, want 8", cfg.MaxConcurrency)
	}
	if cfg.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", cfg.Timeout)
	}
}

func TestExpand_PartialFailure(t *testing.T) {
	fetcher := &mockDetailFetcher{failIndexes: map[string]bool{"item-02": true}}
	bf := NewBatchFetcher(fetcher, DefaultConfig())

	docs := bf.Expand(context.Background(), makeStubs(5))

	want := []string{"item-00", "item-01", "item-03", "item-04"}
	got := indexes(docs)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Expand() = %v, want %v", got, want)
	}
	for _, doc := range docs {
		if doc["detail"] != true {
			t.Errorf("document %q is not the detail document", doc.Index())
		}
	}
}

func TestExpand_PreservesOrder(t *testing.T) {
	// Later stubs finish first.
	fetcher := &mockDetailFetcher{
		delay: func(stub srd.Stub) time.Duration {
			var n int
			fmt.Sscanf(stub.Index, "item-%d", &n)
			return time.Duration(10-n) * 3 * time.Millisecond
		},
	}
	bf := NewBatchFetcher(fetcher, Config{MaxConcurrency: 10})

	docs := bf.Expand(context.Background(), makeStubs(10))

	for i, doc := range docs {
		if want := fmt.Sprintf("item-%02d", i); doc.Index() != want {
			t.Errorf("position %d = %q, want %q", i, doc.Index(), want)
		}
	}
}

func TestExpand_TruncatesToMaxItems(t *testing.T) {
	fetcher := &mockDetailFetcher{}
	bf := NewBatchFetcher(fetcher, Config{MaxItems: 3})

	docs := bf.Expand(context.Background(), makeStubs(10))

	if len(docs) != 3 {
		t.Fatalf("len(docs) = %d, want 3", len(docs))
	}
	if len(fetcher.calls) != 3 {
		t.Errorf("fetch calls = %d, want 3", len(fetcher.calls))
	}
	if docs[2].Index() != "item-02" {
		t.Errorf("last doc = %q, want item-02", docs[2].Index())
	}
}

func TestExpand_BoundedConcurrency(t *testing.T) {
	fetcher := &mockDetailFetcher{
		delay: func(srd.Stub) time.Duration { return 10 * time.Millisecond },
	}
	bf := NewBatchFetcher(fetcher, Config{MaxConcurrency: 3})

	docs := bf.Expand(context.Background(), makeStubs(12))

	if len(docs) != 12 {
		t.Errorf("len(docs) = %d, want 12", len(docs))
	}
	if peak := fetcher.maxInFlight.Load(); peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak)
	}
}

func TestExpand_PerFetchTimeout(t *testing.T) {
	fetcher := &mockDetailFetcher{
		delay: func(stub srd.Stub) time.Duration {
			if stub.Index == "item-01" {
				return time.Second
			}
			return 0
		},
	}
	bf := NewBatchFetcher(fetcher, Config{Timeout: 30 * time.Millisecond})

	start := time.Now()
	docs := bf.Expand(context.Background(), makeStubs(3))

	if got := indexes(docs); fmt.Sprint(got) != "[item-00 item-02]" {
		t.Errorf("Expand() = %v, want slow item dropped", got)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("slow fetch was not cut off, elapsed %v", elapsed)
	}
}

func TestExpand_Empty(t *testing.T) {
	bf := NewBatchFetcher(&mockDetailFetcher{}, DefaultConfig())

	docs := bf.Expand(context.Background(), nil)
	if docs == nil || len(docs) != 0 {
		t.Errorf("Expand(nil) = %v, want empty non-nil slice", docs)
	}
}

func TestOutcomes(t *testing.T) {
	fetcher := FetcherFunc(func(ctx context.Context, stub srd.Stub) (srd.Document, error) {
		switch stub.Index {
		case "item-01":
			return nil, errors.New("upstream down")
		case "item-02":
			return nil, nil
		}
		return srd.Document{"index": stub.Index}, nil
	})
	bf := NewBatchFetcher(fetcher, DefaultConfig())

	outcomes := bf.Outcomes(context.Background(), makeStubs(3))

	if len(outcomes) != 3 {
		t.Fatalf("len(outcomes) = %d, want 3", len(outcomes))
	}
	for i, outcome := range outcomes {
		if outcome.Position != i {
			t.Errorf("outcome %d has Position %d", i, outcome.Position)
		}
		if outcome.Stub.Index != fmt.Sprintf("item-%02d", i) {
			t.Errorf("outcome %d has stub %q", i, outcome.Stub.Index)
		}
	}
	if !outcomes[0].OK() {
		t.Error("outcome 0 should succeed")
	}
	if outcomes[1].OK() || outcomes[1].Err == nil {
		t.Error("outcome 1 should carry the fetch error")
	}
	if !errors.Is(outcomes[2].Err, errNilDocument) {
		t.Errorf("outcome 2 Err = %v, want errNilDocument", outcomes[2].Err)
	}
}
