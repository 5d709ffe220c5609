package filter

import (
	"strings"

	"github.com/Sternrassler/srd-gateway/pkg/srd"
)

// CategoryKind classifies an items category value.
type CategoryKind int

const (
	// CategoryNone is an unknown or empty category.
	CategoryNone CategoryKind = iota
	// CategoryBucket maps to an upstream equipment category.
	CategoryBucket
	// CategoryAlias is resolved by matching item names.
	CategoryAlias
)

var (
	bucketCategories = []string{"weapon", "armor", "adventuring-gear", "tools", "potion", "ammunition"}
	aliasCategories  = []string{"sword", "axe", "bow", "shield", "light-armor", "medium-armor", "heavy-armor"}
)

// Categories is the catalogue of accepted items category values.
type Categories struct {
	Simple  []string `json:"simple"`
	Aliases []string `json:"aliases"`
}

// SupportedCategories returns the accepted category values.
func SupportedCategories() Categories {
	return Categories{
		Simple:  append([]string(nil), bucketCategories...),
		Aliases: append([]string(nil), aliasCategories...),
	}
}

// ClassifyCategory tells how a category value is resolved.
func ClassifyCategory(category string) CategoryKind {
	for _, c := range bucketCategories {
		if category == c {
			return CategoryBucket
		}
	}
	for _, c := range aliasCategories {
		if category == c {
			return CategoryAlias
		}
	}
	return CategoryNone
}

// aliasNeedle returns the name fragment an alias matches on. Armor
// weights match on the weight word alone.
func aliasNeedle(alias string) string {
	if weight, ok := strings.CutSuffix(alias, "-armor"); ok {
		return weight
	}
	return alias
}

// ByAlias keeps the items whose name contains the alias fragment.
// Non-alias categories leave the input unchanged.
func ByAlias(docs []srd.Document, alias string) []srd.Document {
	if ClassifyCategory(alias) != CategoryAlias {
		return docs
	}
	return ByName(docs, aliasNeedle(alias))
}
