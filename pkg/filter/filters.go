package filter

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Sternrassler/srd-gateway/pkg/srd"
)

// ByName keeps documents whose name contains needle, case-insensitively.
// An empty needle keeps everything.
func ByName(docs []srd.Document, needle string) []srd.Document {
	if needle == "" {
		return docs
	}

	needle = strings.ToLower(needle)
	return keep(docs, func(doc srd.Document) bool {
		return strings.Contains(strings.ToLower(doc.Name()), needle)
	})
}

// ByType keeps documents whose type equals kind, case-insensitively.
func ByType(docs []srd.Document, kind string) []srd.Document {
	if kind == "" {
		return docs
	}

	return keep(docs, func(doc srd.Document) bool {
		return strings.EqualFold(doc.String("type"), kind)
	})
}

// ByChallenge keeps documents whose challenge rating lies in [min, max].
// Nil bounds are open.
func ByChallenge(docs []srd.Document, lo, hi *float64) []srd.Document {
	if lo == nil && hi == nil {
		return docs
	}

	return keep(docs, func(doc srd.Document) bool {
		cr := ChallengeRating(doc)
		if lo != nil && cr < *lo {
			return false
		}
		if hi != nil && cr > *hi {
			return false
		}
		return true
	})
}

// Enriched applies the filters that need full documents.
func Enriched(docs []srd.Document, spec Spec) []srd.Document {
	docs = ByType(docs, spec.Type)
	return ByChallenge(docs, spec.CRMin, spec.CRMax)
}

// ChallengeRating reads challenge_rating as a number. Numeric strings and
// fractions such as "1/4" are accepted; anything else counts as 0.
func ChallengeRating(doc srd.Document) float64 {
	switch v := doc["challenge_rating"].(type) {
	case float64:
		return finite(v)
	case int:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return finite(f)
	case string:
		return ParseChallengeRating(v)
	default:
		return 0
	}
}

// ParseChallengeRating parses "5", "0.5" or "1/8". Unparseable input
// yields 0.
func ParseChallengeRating(s string) float64 {
	f, err := ParseBound(s)
	if err != nil {
		return 0
	}
	return f
}

// ParseBound parses a challenge rating query bound. Like
// ParseChallengeRating it accepts fractions, but it reports bad input.
func ParseBound(s string) (float64, error) {
	s = strings.TrimSpace(s)

	var f float64
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: challenge rating %q", ErrInvalidFilter, s)
		}
		d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err != nil || d == 0 {
			return 0, fmt.Errorf("%w: challenge rating %q", ErrInvalidFilter, s)
		}
		f = n / d
	} else {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: challenge rating %q", ErrInvalidFilter, s)
		}
		f = v
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: challenge rating %q", ErrInvalidFilter, s)
	}
	return f, nil
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func keep(docs []srd.Document, pred func(srd.Document) bool) []srd.Document {
	out := make([]srd.Document, 0, len(docs))
	for _, doc := range docs {
		if pred(doc) {
			out = append(out, doc)
		}
	}
	return out
}
