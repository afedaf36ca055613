// Package similarity scores how closely a new build order resembles a
// stored one.
//
// The score is bidirectional: each side is weighted by first-seen timing
// (earlier is heavier, tech structures heavier still) and matched items earn
// a timing-closeness bonus. The two directional scores are combined with a
// harmonic mean, then multiplied by a critical-tech penalty and an
// expansion-count penalty.
package similarity

import (
	"errors"
	"fmt"
	"math"

	"github.com/fyrsmithlabs/buildscout/internal/buildorder"
	"github.com/fyrsmithlabs/buildscout/internal/race"
)

// ErrEmptyItems is returned by Explain when either side has no strategic
// items, meaning the pair cannot be scored.
var ErrEmptyItems = errors.New("no strategic items to compare")

// Query is one comparison between a new build and a stored pattern.
// Expansion counts come from the unfiltered build orders.
type Query struct {
	New               []buildorder.StrategicItem
	Pattern           []buildorder.StrategicItem
	NewExpansions     int
	PatternExpansions int
	Race              race.Race
}

// Breakdown exposes every factor of a score.
type Breakdown struct {
	// Forward scores pattern items found in the new build.
	Forward float64 `json:"forward"`
	// Backward scores new-build items found in the pattern.
	Backward         float64  `json:"backward"`
	Harmonic         float64  `json:"harmonic"`
	TechPenalty      float64  `json:"tech_penalty"`
	ExpansionPenalty float64  `json:"expansion_penalty"`
	MissingCritical  []string `json:"missing_critical,omitempty"`
	Score            float64  `json:"score"`
}

// Scorer computes similarity scores. It holds no mutable state and is safe
// for concurrent use.
type Scorer struct {
	cfg     Config
	catalog *race.Catalog
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithConfig replaces the default constants.
func WithConfig(cfg Config) Option {
	return func(s *Scorer) {
		s.cfg = cfg
	}
}

// NewScorer creates a scorer. A nil catalog uses the built-in vocabularies.
func NewScorer(catalog *race.Catalog, opts ...Option) (*Scorer, error) {
	if catalog == nil {
		catalog = race.NewCatalog()
	}
	s := &Scorer{cfg: DefaultConfig(), catalog: catalog}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring config: %w", err)
	}
	return s, nil
}

// Score returns the similarity of two strategic item sets in [0,1], without
// an expansion penalty. Empty input scores 0.
func (s *Scorer) Score(newItems, patternItems []buildorder.StrategicItem, r race.Race) float64 {
	b, err := s.Explain(Query{New: newItems, Pattern: patternItems, Race: r})
	if err != nil {
		return 0
	}
	return b.Score
}

// Explain computes the full score breakdown for q.
func (s *Scorer) Explain(q Query) (Breakdown, error) {
	if len(q.New) == 0 || len(q.Pattern) == 0 {
		return Breakdown{}, ErrEmptyItems
	}

	vocab, _ := s.catalog.Lookup(q.Race)
	newIdx := index(q.New)
	patternIdx := index(q.Pattern)

	var b Breakdown
	b.Forward = s.directional(q.Pattern, newIdx, vocab)
	b.Backward = s.directional(q.New, patternIdx, vocab)
	b.Harmonic = harmonicMean(b.Forward, b.Backward)
	b.TechPenalty, b.MissingCritical = s.techPenalty(q.Pattern, newIdx, vocab)
	b.ExpansionPenalty = s.ExpansionPenalty(q.NewExpansions, q.PatternExpansions)
	b.Score = clamp(b.Harmonic * b.TechPenalty * b.ExpansionPenalty)
	return b, nil
}

// directional scores how much of source's weight is present in target.
func (s *Scorer) directional(source []buildorder.StrategicItem, target map[string]float64, vocab *race.Vocabulary) float64 {
	var total, matched float64
	for _, item := range source {
		w := s.weight(item, vocab)
		total += w
		if t, ok := target[item.Name]; ok {
			matched += w * s.timingBonus(math.Abs(item.Timing-t))
		}
	}
	if total == 0 {
		return 0
	}
	return matched / total
}

func (s *Scorer) weight(item buildorder.StrategicItem, vocab *race.Vocabulary) float64 {
	w := s.cfg.LateWeight
	for _, bucket := range s.cfg.TimingBuckets {
		if item.Timing <= bucket.UpTo {
			w = bucket.Weight
			break
		}
	}
	if vocab != nil && vocab.IsTech(item.Name) {
		w *= s.cfg.TechBonus
	}
	return w
}

func (s *Scorer) timingBonus(delta float64) float64 {
	for _, step := range s.cfg.TimingBonusSteps {
		if delta <= step.MaxDelta {
			return step.Bonus
		}
	}
	return s.cfg.TimingBonusFloor
}

// techPenalty compares the pattern's critical structures against the new
// build. No penalty applies when every critical structure is present.
func (s *Scorer) techPenalty(pattern []buildorder.StrategicItem, newIdx map[string]float64, vocab *race.Vocabulary) (float64, []string) {
	if vocab == nil {
		return 1, nil
	}

	var critical int
	var missing []string
	for _, item := range pattern {
		if !vocab.IsCritical(item.Name) {
			continue
		}
		critical++
		if _, ok := newIdx[item.Name]; !ok {
			missing = append(missing, item.Name)
		}
	}
	if len(missing) == 0 {
		return 1, nil
	}

	ratio := float64(critical-len(missing)) / float64(critical)
	threshold := s.cfg.CriticalRatioThreshold
	mid := s.cfg.CriticalMidpoint
	if ratio < threshold {
		floor := s.cfg.CriticalFloor
		return floor + (mid-floor)*(ratio/threshold), missing
	}
	return mid + (1-mid)*((ratio-threshold)/(1-threshold)), missing
}

// ExpansionPenalty returns the multiplier for a difference in base counts.
func (s *Scorer) ExpansionPenalty(newExpansions, patternExpansions int) float64 {
	d := newExpansions - patternExpansions
	if d < 0 {
		d = -d
	}
	if d < len(s.cfg.ExpansionMultipliers) {
		return s.cfg.ExpansionMultipliers[d]
	}
	return s.cfg.ExpansionFloor
}

func index(items []buildorder.StrategicItem) map[string]float64 {
	idx := make(map[string]float64, len(items))
	for _, it := range items {
		if _, ok := idx[it.Name]; !ok {
			idx[it.Name] = it.Timing
		}
	}
	return idx
}

func harmonicMean(a, b float64) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	return 2 * a * b / (a + b)
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
