package api

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/Sternrassler/srd-gateway/pkg/filter"
	"github.com/Sternrassler/srd-gateway/pkg/pagination"
)

var indexPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

func validIndex(index string) bool {
	return indexPattern.MatchString(index)
}

type paramParser func(r *http.Request) (filter.Spec, error)

// baseParams reads name and expand.
func baseParams(r *http.Request) (filter.Spec, error) {
	q := r.URL.Query()
	spec := filter.Spec{Name: strings.TrimSpace(q.Get("name"))}

	if raw := strings.TrimSpace(q.Get("expand")); raw != "" {
		expand, err := strconv.ParseBool(raw)
		if err != nil {
			return filter.Spec{}, fmt.Errorf("expand: %q is not a boolean", raw)
		}
		spec.Expand = expand
	}
	return spec, nil
}

// monsterParams adds type and the challenge rating range.
func monsterParams(r *http.Request) (filter.Spec, error) {
	spec, err := baseParams(r)
	if err != nil {
		return spec, err
	}

	q := r.URL.Query()
	spec.Type = strings.TrimSpace(q.Get("type"))
	if spec.CRMin, err = bound(q.Get("cr_min"), "cr_min"); err != nil {
		return filter.Spec{}, err
	}
	if spec.CRMax, err = bound(q.Get("cr_max"), "cr_max"); err != nil {
		return filter.Spec{}, err
	}
	return spec, spec.Validate()
}

// itemParams adds category.
func itemParams(r *http.Request) (filter.Spec, error) {
	spec, err := baseParams(r)
	if err != nil {
		return spec, err
	}

	spec.Category = strings.ToLower(strings.TrimSpace(r.URL.Query().Get("category")))
	return spec, spec.Validate()
}

func bound(raw, name string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := filter.ParseBound(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &v, nil
}

// pageParams reads limit and offset. Non-numeric values count as absent
// and the core clamps the rest.
func pageParams(r *http.Request) pagination.Request {
	q := r.URL.Query()
	var page pagination.Request
	if v, err := strconv.Atoi(strings.TrimSpace(q.Get("limit"))); err == nil {
		page.Limit = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(q.Get("offset"))); err == nil {
		page.Offset = v
	}
	return page
}
