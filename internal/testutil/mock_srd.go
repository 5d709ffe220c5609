// Package testutil provides testing utilities for the SRD gateway.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/srd-gateway/pkg/srd"
)

// APIPrefix is the path prefix the mock serves the SRD API under.
const APIPrefix = "/api"

// MockResponse defines the behavior for a mock SRD endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockSRD is a configurable mock SRD API server for testing.
type MockSRD struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	counts   map[string]int

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

// NewMockSRD creates a new mock SRD server.
func NewMockSRD() *MockSRD {
	mock := &MockSRD{
		handlers: make(map[string]http.HandlerFunc),
		counts:   make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := mock.inFlight.Add(1)
		defer mock.inFlight.Add(-1)
		for {
			peak := mock.maxInFlight.Load()
			if current <= peak || mock.maxInFlight.CompareAndSwap(peak, current) {
				break
			}
		}

		mock.mu.Lock()
		mock.RequestCount++
		mock.counts[r.URL.Path]++
		mock.LastRequestHeader = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
	}))

	return mock
}

// URL returns the mock server root URL.
func (m *MockSRD) URL() string {
	return m.server.URL
}

// BaseURL returns the API base URL, the value a gateway is configured with.
func (m *MockSRD) BaseURL() string {
	return m.server.URL + APIPrefix
}

// Close shuts down the mock server.
func (m *MockSRD) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockSRD) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.counts = make(map[string]int)
	m.LastRequestHeader = nil
	m.maxInFlight.Store(0)
}

// SetHandler sets a custom handler for a specific path.
func (m *MockSRD) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockSRD) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetJSON serves v as a 200 JSON response on path.
func (m *MockSRD) SetJSON(path string, v any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, v)
	})
}

// SetCollection serves a family listing and one detail document per entry.
// Listing items carry index, name and url like the real API.
func (m *MockSRD) SetCollection(family string, docs ...srd.Document) {
	results := make([]srd.Document, 0, len(docs))
	for _, doc := range docs {
		results = append(results, StubDocument(family, doc))
		m.SetJSON(DetailPath(family, doc.Index()), doc)
	}
	m.SetJSON(CollectionPath(family), map[string]any{
		"count":   len(results),
		"results": results,
	})
}

// SetCategory serves an equipment category bucket listing docs.
// Members must be registered separately (usually via SetCollection).
func (m *MockSRD) SetCategory(category, family string, docs ...srd.Document) {
	equipment := make([]srd.Document, 0, len(docs))
	for _, doc := range docs {
		equipment = append(equipment, StubDocument(family, doc))
	}
	m.SetJSON(DetailPath(srd.EquipmentCategories, category), map[string]any{
		"index":     category,
		"name":      category,
		"equipment": equipment,
	})
}

// SetFailure makes path answer with status.
func (m *MockSRD) SetFailure(path string, status int) {
	m.SetResponse(path, MockResponse{
		StatusCode: status,
		Body:       fmt.Sprintf(`{"error": "status %d"}`, status),
		Headers:    map[string]string{"Content-Type": "application/json"},
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockSRD) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// Count returns the number of requests made to path.
func (m *MockSRD) Count(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[path]
}

// MaxInFlight returns the highest number of concurrently served requests.
func (m *MockSRD) MaxInFlight() int {
	return int(m.maxInFlight.Load())
}

// CollectionPath returns the mock path of a family listing.
func CollectionPath(family string) string {
	return fmt.Sprintf("%s/%s", APIPrefix, family)
}

// DetailPath returns the mock path of a single document.
func DetailPath(family, index string) string {
	return fmt.Sprintf("%s/%s/%s", APIPrefix, family, index)
}

// StubDocument returns the listing view of doc.
func StubDocument(family string, doc srd.Document) srd.Document {
	return srd.Document{
		"index": doc.Index(),
		"name":  doc.Name(),
		"url":   DetailPath(family, doc.Index()),
	}
}

// Monster builds a monster fixture.
func Monster(index, name, kind string, cr float64) srd.Document {
	return srd.Document{
		"index":            index,
		"name":             name,
		"type":             kind,
		"size":             "Medium",
		"alignment":        "neutral",
		"challenge_rating": cr,
		"hit_points":       10.0,
		"armor_class":      []any{map[string]any{"type": "natural", "value": 12.0}},
		"languages":        "Common",
		"speed":            map[string]any{"walk": "30 ft."},
		"url":              DetailPath("monsters", index),
	}
}

// Named builds a minimal document with index and name.
func Named(index, name string) srd.Document {
	return srd.Document{"index": index, "name": name}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
