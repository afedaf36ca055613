package race

// Classifier infers a race from unit names or free-text keywords.
// Thread-safe: the underlying catalog is immutable.
type Classifier struct {
	catalog *Catalog
}

// NewClassifier creates a classifier over the given catalog. A nil catalog
// uses the built-in vocabularies.
func NewClassifier(catalog *Catalog) *Classifier {
	if catalog == nil {
		catalog = NewCatalog()
	}
	return &Classifier{catalog: catalog}
}

// Infer counts, for each race, how many distinct identifiers belong to that
// race's vocabulary and returns the race with the strict maximum. Ties,
// including the all-zero case, resolve to Unknown.
func (c *Classifier) Infer(identifiers []string) Race {
	seen := make(map[string]struct{}, len(identifiers))
	counts := make(map[Race]int, len(Known))

	for _, id := range identifiers {
		name := NormalizeName(id)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		for _, r := range Known {
			if v, ok := c.catalog.Lookup(r); ok && v.Recognizes(name) {
				counts[r]++
			}
		}
	}

	best, bestCount, tied := Unknown, 0, false
	for _, r := range Known {
		switch n := counts[r]; {
		case n > bestCount:
			best, bestCount, tied = r, n, false
		case n == bestCount:
			tied = true
		}
	}
	if bestCount == 0 || tied {
		return Unknown
	}
	return best
}
