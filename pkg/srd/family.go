package srd

// Family is a resource category sharing one gateway logic shape.
type Family struct {
	// Name is the public name of the family (route segment).
	Name string

	// Upstream is the upstream collection path.
	Upstream string

	// DetailFields, when set, is the field set detail documents are
	// normalized to. Nil means upstream documents pass through unmodified.
	DetailFields []string

	// SummaryFields, when set, is the field set enriched listing items
	// are normalized to.
	SummaryFields []string
}

// Normalize applies the family's detail normalization.
func (f Family) Normalize(d Document) Document {
	if f.DetailFields == nil {
		return d
	}
	return d.Pick(f.DetailFields...)
}

// Summarize applies the family's listing normalization to an enriched item.
func (f Family) Summarize(d Document) Document {
	if f.SummaryFields == nil {
		return d
	}
	return d.Pick(f.SummaryFields...)
}

// Built-in families with dedicated routes.
var (
	Monsters = Family{
		Name:     "monsters",
		Upstream: "monsters",
		DetailFields: []string{
			"index", "name", "type", "size", "alignment", "challenge_rating",
			"hit_points", "armor_class", "languages", "proficiencies", "actions",
		},
		SummaryFields: []string{
			"index", "name", "type", "challenge_rating", "size", "alignment",
		},
	}

	Spells = Family{Name: "spells", Upstream: "spells"}

	Feats = Family{Name: "feats", Upstream: "feats"}

	Items = Family{Name: "items", Upstream: "equipment"}
)

// EquipmentCategories is the upstream collection holding coarse item buckets.
const EquipmentCategories = "equipment-categories"

// allowed lists the upstream resources the generic proxy may serve.
var allowed = map[string]struct{}{
	"ability-scores":       {},
	"alignments":           {},
	"backgrounds":          {},
	"classes":              {},
	"conditions":           {},
	"damage-types":         {},
	"equipment":            {},
	"equipment-categories": {},
	"features":             {},
	"languages":            {},
	"magic-items":          {},
	"magic-schools":        {},
	"monsters":             {},
	"proficiencies":        {},
	"races":                {},
	"skills":               {},
	"spells":               {},
	"subclasses":           {},
	"subraces":             {},
	"traits":               {},
	"weapon-properties":    {},
	"feats":                {},
}

// Allowed reports whether resource is in the generic allow-list.
func Allowed(resource string) bool {
	_, ok := allowed[resource]
	return ok
}

// Generic returns the pass-through family for an allow-listed resource.
func Generic(resource string) Family {
	return Family{Name: resource, Upstream: resource}
}
