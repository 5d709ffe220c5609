package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/srd-gateway/internal/testutil"
	"github.com/Sternrassler/srd-gateway/pkg/srd"
)

func newTestClient(t *testing.T, mock *testutil.MockSRD, mutate func(*Config)) *Client {
	t.Helper()

	cfg := DefaultConfig(mock.BaseURL())
	cfg.Timeout = 2 * time.Second
	cfg.UserAgent = "srd-gateway-test/1.0"
	cfg.InitialBackoff = 5 * time.Millisecond
	cfg.MaxBackoff = 20 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig("https://www.dnd5eapi.co/api"),
			expectError: false,
		},
		{
			name:        "relative base url",
			config:      DefaultConfig("/api"),
			expectError: true,
			errorMsg:    "base url must be absolute",
		},
		{
			name: "zero timeout",
			config: Config{
				BaseURL:        "https://www.dnd5eapi.co/api",
				MaxConnections: 10,
			},
			expectError: true,
			errorMsg:    "timeout must be > 0",
		},
		{
			name: "zero connections",
			config: Config{
				BaseURL: "https://www.dnd5eapi.co/api",
				Timeout: time.Second,
			},
			expectError: true,
			errorMsg:    "max_connections must be >= 1",
		},
		{
			name: "negative retries",
			config: Config{
				BaseURL:        "https://www.dnd5eapi.co/api",
				Timeout:        time.Second,
				MaxConnections: 1,
				MaxRetries:     -1,
			},
			expectError: true,
			errorMsg:    "max_retries must be >= 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if c == nil {
				t.Fatal("Expected client, got nil")
			}
		})
	}
}

func TestResolve(t *testing.T) {
	c, err := New(DefaultConfig("https://www.dnd5eapi.co/api"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"family path", "monsters", "https://www.dnd5eapi.co/api/monsters"},
		{"detail path", "monsters/aboleth", "https://www.dnd5eapi.co/api/monsters/aboleth"},
		{"leading slash outside prefix", "/spells/fireball", "https://www.dnd5eapi.co/api/spells/fireball"},
		{"stub url with prefix", "/api/monsters/goblin", "https://www.dnd5eapi.co/api/monsters/goblin"},
		{"versioned stub url", "/api/2014/spells/acid-arrow", "https://www.dnd5eapi.co/api/2014/spells/acid-arrow"},
		{"absolute url", "https://mirror.example/api/feats/grappler", "https://mirror.example/api/feats/grappler"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Resolve(tt.path)
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.path, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestFetch_Success(t *testing.T) {
	mock := testutil.NewMockSRD()
	defer mock.Close()
	mock.SetCollection("monsters", testutil.Monster("goblin", "Goblin", "humanoid", 0.25))

	c := newTestClient(t, mock, nil)

	doc, err := c.Fetch(context.Background(), "monsters/goblin")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if doc.Name() != "Goblin" {
		t.Errorf("Name() = %q, want Goblin", doc.Name())
	}

	if got := mock.LastRequestHeader.Get("User-Agent"); got != "srd-gateway-test/1.0" {
		t.Errorf("User-Agent = %q", got)
	}
	if got := mock.LastRequestHeader.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q", got)
	}
}

func TestFetch_StubURL(t *testing.T) {
	mock := testutil.NewMockSRD()
	defer mock.Close()
	mock.SetCollection("spells", testutil.Named("fireball", "Fireball"))

	c := newTestClient(t, mock, nil)

	stub := srd.Stub{Index: "fireball", Name: "Fireball", URL: testutil.DetailPath("spells", "fireball")}
	doc, err := c.Fetch(context.Background(), stub.Path("spells"))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if doc.Index() != "fireball" {
		t.Errorf("Index() = %q, want fireball", doc.Index())
	}
	if mock.Count(testutil.DetailPath("spells", "fireball")) != 1 {
		t.Error("stub url should resolve against the base host")
	}
}

func TestFetchList(t *testing.T) {
	mock := testutil.NewMockSRD()
	defer mock.Close()
	mock.SetCollection("feats", testutil.Named("grappler", "Grappler"))
	mock.SetJSON(testutil.CollectionPath("mixed"), map[string]any{
		"results": []any{map[string]any{"index": "a"}, "junk", 3.0},
	})

	c := newTestClient(t, mock, nil)

	items, err := c.FetchList(context.Background(), "feats", "results")
	if err != nil {
		t.Fatalf("FetchList() error = %v", err)
	}
	if len(items) != 1 || items[0].Index() != "grappler" {
		t.Errorf("items = %v", items)
	}

	items, err = c.FetchList(context.Background(), "feats", "equipment")
	if err != nil {
		t.Fatalf("FetchList() error = %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("missing field should yield an empty list, got %v", items)
	}

	items, err = c.FetchList(context.Background(), "mixed", "results")
	if err != nil {
		t.Fatalf("FetchList() error = %v", err)
	}
	if len(items) != 1 {
		t.Errorf("non-object items should be skipped, got %v", items)
	}
}

func TestFetch_ErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		response   testutil.MockResponse
		wantClass  ErrorClass
		wantStatus int
		notFound   bool
	}{
		{
			name:       "not found",
			response:   testutil.MockResponse{StatusCode: 404, Body: `{"error":"Not found"}`},
			wantClass:  ErrorClassNotFound,
			wantStatus: 404,
			notFound:   true,
		},
		{
			name:       "bad request",
			response:   testutil.MockResponse{StatusCode: 400, Body: "bad"},
			wantClass:  ErrorClassClient,
			wantStatus: 400,
		},
		{
			name:       "server error",
			response:   testutil.MockResponse{StatusCode: 503, Body: "down"},
			wantClass:  ErrorClassServer,
			wantStatus: 503,
		},
		{
			name:       "rate limited",
			response:   testutil.MockResponse{StatusCode: 429, Headers: map[string]string{"Retry-After": "1"}},
			wantClass:  ErrorClassRateLimit,
			wantStatus: 429,
		},
		{
			name:       "array body",
			response:   testutil.MockResponse{StatusCode: 200, Body: `[1,2,3]`},
			wantClass:  ErrorClassDecode,
			wantStatus: 200,
		},
		{
			name:       "html body",
			response:   testutil.MockResponse{StatusCode: 200, Body: `<html></html>`},
			wantClass:  ErrorClassDecode,
			wantStatus: 200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockSRD()
			defer mock.Close()
			mock.SetResponse(testutil.DetailPath("monsters", "x"), tt.response)

			c := newTestClient(t, mock, nil)

			_, err := c.Fetch(context.Background(), "monsters/x")
			var upstreamErr *UpstreamError
			if !errors.As(err, &upstreamErr) {
				t.Fatalf("Expected UpstreamError, got %v", err)
			}
			if upstreamErr.ErrorClass != tt.wantClass {
				t.Errorf("ErrorClass = %q, want %q", upstreamErr.ErrorClass, tt.wantClass)
			}
			if upstreamErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", upstreamErr.StatusCode, tt.wantStatus)
			}
			if errors.Is(err, ErrNotFound) != tt.notFound {
				t.Errorf("errors.Is(err, ErrNotFound) = %v, want %v", !tt.notFound, tt.notFound)
			}
		})
	}
}

func TestFetch_NetworkError(t *testing.T) {
	mock := testutil.NewMockSRD()
	c := newTestClient(t, mock, nil)
	mock.Close()

	_, err := c.Fetch(context.Background(), "monsters/goblin")
	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("Expected UpstreamError, got %v", err)
	}
	if upstreamErr.ErrorClass != ErrorClassNetwork || upstreamErr.StatusCode != 0 {
		t.Errorf("got class %q status %d, want network/0", upstreamErr.ErrorClass, upstreamErr.StatusCode)
	}
}

func TestFetch_Timeout(t *testing.T) {
	mock := testutil.NewMockSRD()
	defer mock.Close()
	mock.SetResponse(testutil.DetailPath("monsters", "slow"), testutil.MockResponse{
		StatusCode: 200,
		Body:       `{"index":"slow"}`,
		Delay:      300 * time.Millisecond,
	})

	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.Timeout = 50 * time.Millisecond
	})

	_, err := c.Fetch(context.Background(), "monsters/slow")
	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("Expected UpstreamError, got %v", err)
	}
	if upstreamErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want network", upstreamErr.ErrorClass)
	}
	if !upstreamErr.Timeout() {
		t.Errorf("Timeout() = false for %v", err)
	}
}

func TestFetch_FollowsRedirects(t *testing.T) {
	mock := testutil.NewMockSRD()
	defer mock.Close()
	mock.SetCollection("monsters", testutil.Named("goblin", "Goblin"))
	mock.SetHandler(testutil.DetailPath("monsters", "gob"), func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, testutil.DetailPath("monsters", "goblin"), http.StatusMovedPermanently)
	})

	c := newTestClient(t, mock, nil)

	doc, err := c.Fetch(context.Background(), "monsters/gob")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if doc.Index() != "goblin" {
		t.Errorf("Index() = %q, want goblin", doc.Index())
	}
}

func TestFetch_RedirectLoopStops(t *testing.T) {
	mock := testutil.NewMockSRD()
	defer mock.Close()
	loop := testutil.DetailPath("monsters", "loop")
	mock.SetHandler(loop, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, loop, http.StatusFound)
	})

	c := newTestClient(t, mock, nil)

	_, err := c.Fetch(context.Background(), "monsters/loop")
	if err == nil {
		t.Fatal("Expected redirect error")
	}
	if hits := mock.Count(loop); hits != 10 {
		t.Errorf("loop hits = %d, want 10", hits)
	}
}

func TestFetch_BoundedConcurrency(t *testing.T) {
	mock := testutil.NewMockSRD()
	defer mock.Close()
	mock.SetResponse(testutil.DetailPath("monsters", "slow"), testutil.MockResponse{
		StatusCode: 200,
		Body:       `{"index":"slow"}`,
		Delay:      30 * time.Millisecond,
	})

	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.MaxConnections = 2
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Fetch(context.Background(), "monsters/slow"); err != nil {
				t.Errorf("Fetch() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if peak := mock.MaxInFlight(); peak > 2 {
		t.Errorf("peak in-flight requests = %d, want <= 2", peak)
	}
	if mock.GetRequestCount() != 8 {
		t.Errorf("request count = %d, want 8", mock.GetRequestCount())
	}
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	mock := testutil.NewMockSRD()
	defer mock.Close()

	path := testutil.DetailPath("spells", "flaky")
	var mu sync.Mutex
	calls := 0
	mock.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"index":"flaky","name":"Flaky"}`))
	})

	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.MaxRetries = 2
	})

	doc, err := c.Fetch(context.Background(), "spells/flaky")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if doc.Name() != "Flaky" {
		t.Errorf("Name() = %q", doc.Name())
	}
	if mock.Count(path) != 2 {
		t.Errorf("calls = %d, want 2", mock.Count(path))
	}
}

func TestFetch_NoRetryOnNotFound(t *testing.T) {
	mock := testutil.NewMockSRD()
	defer mock.Close()

	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.MaxRetries = 3
	})

	_, err := c.Fetch(context.Background(), "monsters/nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	if mock.Count(testutil.DetailPath("monsters", "nope")) != 1 {
		t.Error("404 must not be retried")
	}
}

func TestFetch_RateLimitFailsFast(t *testing.T) {
	mock := testutil.NewMockSRD()
	defer mock.Close()
	path := testutil.DetailPath("monsters", "goblin")
	mock.SetResponse(path, testutil.MockResponse{
		StatusCode: 429,
		Headers:    map[string]string{"Retry-After": "60"},
	})

	c := newTestClient(t, mock, nil)

	if _, err := c.Fetch(context.Background(), "monsters/goblin"); err == nil {
		t.Fatal("Expected rate limit error")
	}

	_, err := c.Fetch(context.Background(), "monsters/goblin")
	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) || upstreamErr.ErrorClass != ErrorClassRateLimit {
		t.Fatalf("Expected rate_limit error, got %v", err)
	}
	if upstreamErr.RetryAfter <= 0 {
		t.Error("blocked call should report the remaining window")
	}
	if mock.Count(path) != 1 {
		t.Errorf("upstream hits = %d, want 1 (second call blocked locally)", mock.Count(path))
	}
}

func TestResourceLabel(t *testing.T) {
	c, err := New(DefaultConfig("https://www.dnd5eapi.co/api"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		target string
		want   string
	}{
		{"https://www.dnd5eapi.co/api/monsters", "monsters"},
		{"https://www.dnd5eapi.co/api/monsters/aboleth", "monsters"},
		{"https://www.dnd5eapi.co/api/2014/spells/fireball", "spells"},
		{"https://www.dnd5eapi.co/api", "root"},
	}

	for _, tt := range tests {
		if got := resourceLabel(c.base, tt.target); got != tt.want {
			t.Errorf("resourceLabel(%q) = %q, want %q", tt.target, got, tt.want)
		}
	}
}
