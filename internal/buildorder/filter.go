package buildorder

import (
	"github.com/fyrsmithlabs/buildscout/internal/race"
)

// StrategicItem is a strategically meaningful action taken from a build
// order. Name is normalized; Position is the index within the filtered
// sequence.
type StrategicItem struct {
	Name     string  `json:"name"`
	Timing   float64 `json:"timing_seconds"`
	Position int     `json:"position"`
}

// Filter extracts strategic items using a race catalog.
type Filter struct {
	catalog *race.Catalog
}

// NewFilter creates a filter. A nil catalog uses the built-in vocabularies.
func NewFilter(catalog *race.Catalog) *Filter {
	if catalog == nil {
		catalog = race.NewCatalog()
	}
	return &Filter{catalog: catalog}
}

// Catalog returns the catalog the filter resolves races against.
func (f *Filter) Catalog() *race.Catalog { return f.catalog }

// Filter returns the strategic subset of steps for race r. Workers, supply
// structures and bases are dropped, as are names outside the race's
// vocabulary. Only the first occurrence of each name is kept. An
// unrecognized race yields an empty result.
func (f *Filter) Filter(steps []Step, r race.Race) []StrategicItem {
	vocab, ok := f.catalog.Lookup(r)
	if !ok {
		return nil
	}

	seen := make(map[string]struct{}, len(steps))
	items := make([]StrategicItem, 0, len(steps))
	for _, st := range steps {
		name := race.NormalizeName(st.Name)
		if name == "" || f.catalog.IsNoise(name) || f.catalog.IsExpansion(name) {
			continue
		}
		if !vocab.Contains(name) {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		items = append(items, StrategicItem{
			Name:     name,
			Timing:   st.Time.Float(),
			Position: len(items),
		})
	}
	return items
}

// CountExpansions counts base structures in the unfiltered build order.
func (f *Filter) CountExpansions(steps []Step) int {
	n := 0
	for _, st := range steps {
		if f.catalog.IsExpansion(race.NormalizeName(st.Name)) {
			n++
		}
	}
	return n
}
