package buildorder

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/buildscout/internal/race"
)

const (
	// DefaultEarlyGameThreshold is the highest supply count eligible for the
	// early-game sequence.
	DefaultEarlyGameThreshold = 60

	// DefaultOpeningLength is the number of consolidated groups kept as the
	// opening sequence.
	DefaultOpeningLength = 10
)

// Group is a run of consecutive identical actions. ResourceCost and Time
// come from the last action of the run.
type Group struct {
	Unit         string  `json:"unit"`
	Count        int     `json:"count"`
	Order        int     `json:"order"`
	ResourceCost int     `json:"resource_cost"`
	Time         Seconds `json:"time"`
}

// Signature is the compact matching representation of a build order.
type Signature struct {
	EarlyGame       []Group            `json:"early_game"`
	OpeningSequence []Group            `json:"opening_sequence"`
	KeyTimings      map[string]Seconds `json:"key_timings"`
}

// Key returns a stable hash of the normalized signature. Two signatures are
// structurally equal exactly when their keys match.
func (s *Signature) Key() string {
	var b strings.Builder
	writeGroups := func(label string, groups []Group) {
		b.WriteString(label)
		for _, g := range groups {
			fmt.Fprintf(&b, "|%s:%d:%d:%d:%d", race.NormalizeName(g.Unit), g.Count, g.Order, g.ResourceCost, int(g.Time))
		}
		b.WriteByte('\n')
	}
	writeGroups("early", s.EarlyGame)
	writeGroups("opening", s.OpeningSequence)

	names := make([]string, 0, len(s.KeyTimings))
	for name := range s.KeyTimings {
		names = append(names, name)
	}
	sort.Strings(names)
	b.WriteString("timings")
	for _, name := range names {
		fmt.Fprintf(&b, "|%s:%d", race.NormalizeName(name), int(s.KeyTimings[name]))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Equal reports structural equality after normalization.
func (s *Signature) Equal(other *Signature) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Key() == other.Key()
}

// Units returns the distinct unit names of the early game, in order.
func (s *Signature) Units() []string {
	seen := make(map[string]struct{}, len(s.EarlyGame))
	out := make([]string, 0, len(s.EarlyGame))
	for _, g := range s.EarlyGame {
		n := race.NormalizeName(g.Unit)
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, g.Unit)
	}
	return out
}

// Consolidate merges consecutive steps with the same normalized name into
// groups numbered from 1. The sum of group counts equals len(steps).
func Consolidate(steps []Step) []Group {
	groups := make([]Group, 0, len(steps))
	var current *Group
	var currentName string

	for _, st := range steps {
		name := race.NormalizeName(st.Name)
		if current != nil && name == currentName {
			current.Count++
			current.ResourceCost = st.ResourceCost
			current.Time = st.Time
			continue
		}
		if current != nil {
			current.Order = len(groups) + 1
			groups = append(groups, *current)
		}
		current = &Group{Unit: st.Name, Count: 1, ResourceCost: st.ResourceCost, Time: st.Time}
		currentName = name
	}
	if current != nil {
		current.Order = len(groups) + 1
		groups = append(groups, *current)
	}
	return groups
}

// Flatten expands groups back into steps, one per counted action, each
// carrying the group's resource cost and time.
func Flatten(groups []Group) []Step {
	n := 0
	for _, g := range groups {
		n += g.Count
	}
	steps := make([]Step, 0, n)
	for _, g := range groups {
		for i := 0; i < g.Count; i++ {
			steps = append(steps, Step{Name: g.Unit, ResourceCost: g.ResourceCost, Time: g.Time})
		}
	}
	return steps
}

// Builder turns build orders into signatures.
type Builder struct {
	threshold     int
	openingLength int
	catalog       *race.Catalog
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithEarlyGameThreshold sets the highest supply count eligible for the
// early-game sequence.
func WithEarlyGameThreshold(supply int) BuilderOption {
	return func(b *Builder) {
		if supply > 0 {
			b.threshold = supply
		}
	}
}

// WithOpeningLength sets how many groups form the opening sequence.
func WithOpeningLength(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.openingLength = n
		}
	}
}

// WithCatalog sets the catalog used to recognize key-timing buildings.
func WithCatalog(c *race.Catalog) BuilderOption {
	return func(b *Builder) {
		if c != nil {
			b.catalog = c
		}
	}
}

// NewBuilder creates a signature builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		threshold:     DefaultEarlyGameThreshold,
		openingLength: DefaultOpeningLength,
		catalog:       race.NewCatalog(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build consolidates the early-game portion of steps and records the first
// time each key-timing building appears anywhere in the build.
func (b *Builder) Build(steps []Step) *Signature {
	early := make([]Step, 0, len(steps))
	timings := make(map[string]Seconds)

	for _, st := range steps {
		if st.ResourceCost <= b.threshold {
			early = append(early, st)
		}
		name := race.NormalizeName(st.Name)
		if b.catalog.IsKeyTiming(name) {
			if _, ok := timings[name]; !ok {
				timings[name] = st.Time
			}
		}
	}

	groups := Consolidate(early)
	n := len(groups)
	if n > b.openingLength {
		n = b.openingLength
	}
	opening := make([]Group, n)
	copy(opening, groups[:n])

	return &Signature{
		EarlyGame:       groups,
		OpeningSequence: opening,
		KeyTimings:      timings,
	}
}
