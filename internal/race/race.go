// Package race provides race labels, per-race build vocabularies and race
// inference for build-order analysis.
//
// All names handled by this package are normalized with NormalizeName so
// that "Roach Warren", "roach_warren" and "RoachWarren" compare equal.
package race

import (
	"errors"
	"strings"
	"unicode"
)

// ErrUnknownRace is returned when a race label does not resolve to a known race.
var ErrUnknownRace = errors.New("unknown race")

// Race is a player race label.
type Race string

const (
	Protoss Race = "protoss"
	Terran  Race = "terran"
	Zerg    Race = "zerg"

	// Unknown is used for missing, random or ambiguous labels. Unknown
	// patterns never take part in matching.
	Unknown Race = "unknown"
)

// Known lists the playable races in a stable order.
var Known = []Race{Protoss, Terran, Zerg}

// Parse resolves a free-form race label. Matching is case-insensitive and
// accepts single-letter aliases. Anything else resolves to Unknown.
func Parse(label string) Race {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "protoss", "p", "toss":
		return Protoss
	case "terran", "t":
		return Terran
	case "zerg", "z":
		return Zerg
	default:
		return Unknown
	}
}

// IsKnown reports whether r is one of the playable races.
func (r Race) IsKnown() bool {
	return r == Protoss || r == Terran || r == Zerg
}

func (r Race) String() string {
	if r == "" {
		return string(Unknown)
	}
	return string(r)
}

// NormalizeName lowercases a unit, building or upgrade name and strips
// whitespace, underscores, hyphens and dots.
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case unicode.IsSpace(r), r == '_', r == '-', r == '.':
			continue
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
