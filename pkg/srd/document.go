// Package srd defines the resource model shared by the gateway components:
// upstream documents, listing stubs and resource families.
package srd

import (
	"fmt"
	"net/url"
	"strings"
)

// Document is a decoded upstream JSON object.
// Upstream schemas drift, so every accessor tolerates missing or
// mistyped fields and reports them as absent.
type Document map[string]any

// String returns the field as a string, or "" when it is missing or not a string.
func (d Document) String(field string) string {
	if d == nil {
		return ""
	}
	s, _ := d[field].(string)
	return s
}

// Name returns the document's "name" field.
func (d Document) Name() string {
	return d.String("name")
}

// Index returns the document's "index" field.
func (d Document) Index() string {
	return d.String("index")
}

// Pick copies the listed fields into a new document.
// Fields absent from d are left out rather than set to null.
func (d Document) Pick(fields ...string) Document {
	out := make(Document, len(fields))
	for _, f := range fields {
		if v, ok := d[f]; ok && v != nil {
			out[f] = v
		}
	}
	return out
}

// Stub is the minimal reference an upstream collection listing returns.
type Stub struct {
	Index string `json:"index"`
	Name  string `json:"name"`
	URL   string `json:"url"`
}

// StubOf extracts the stub view of a listing item.
func StubOf(d Document) Stub {
	return Stub{
		Index: d.Index(),
		Name:  d.Name(),
		URL:   d.String("url"),
	}
}

// Path returns the upstream path of the stub's detail document.
// The listing url is preferred because equipment category buckets mix
// families (a potion bucket links to magic-items). Without a url the
// path falls back to {family}/{index}.
func (s Stub) Path(family string) string {
	if s.URL != "" {
		return s.URL
	}
	return fmt.Sprintf("%s/%s", strings.Trim(family, "/"), s.Index)
}

// Ref returns the collection and index the stub's detail document lives
// under. A listing url wins over family, so a bucket member linking to
// another collection is attributed to that collection.
func (s Stub) Ref(family string) (collection, index string) {
	collection, index = strings.Trim(family, "/"), s.Index
	if s.URL == "" {
		return collection, index
	}

	path := s.URL
	if u, err := url.Parse(s.URL); err == nil {
		path = u.Path
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[len(parts)-1] == "" {
		return collection, index
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}
