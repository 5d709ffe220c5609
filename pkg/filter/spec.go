package filter

import (
	"errors"
	"fmt"
)

// ErrInvalidFilter is returned when a filter combination cannot be applied.
var ErrInvalidFilter = errors.New("invalid filter")

// Spec describes the filters of one listing call. Zero values mean
// "not set".
type Spec struct {
	Name     string
	Category string
	Type     string
	CRMin    *float64
	CRMax    *float64
	Expand   bool
}

// NeedsEnrichment reports whether the listing must be expanded into full
// documents before it can be filtered or returned.
func (s Spec) NeedsEnrichment() bool {
	return s.Type != "" || s.CRMin != nil || s.CRMax != nil || s.Expand
}

// Validate rejects unknown categories and inverted CR ranges.
func (s Spec) Validate() error {
	if s.Category != "" && ClassifyCategory(s.Category) == CategoryNone {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidFilter, s.Category)
	}
	if s.CRMin != nil && s.CRMax != nil && *s.CRMin > *s.CRMax {
		return fmt.Errorf("%w: cr_min %g is greater than cr_max %g", ErrInvalidFilter, *s.CRMin, *s.CRMax)
	}
	return nil
}

// Float returns a pointer to v, for building CR bounds.
func Float(v float64) *float64 {
	return &v
}
