// Package matcher ranks stored patterns against a new build order.
package matcher

import (
	"context"
	"errors"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/buildscout/internal/buildorder"
	"github.com/fyrsmithlabs/buildscout/internal/patternstore"
	"github.com/fyrsmithlabs/buildscout/internal/race"
	"github.com/fyrsmithlabs/buildscout/internal/similarity"
)

const instrumentationName = "github.com/fyrsmithlabs/buildscout/internal/matcher"

// DefaultMinSimilarity is the lowest score reported as a match.
const DefaultMinSimilarity = 0.60

// PatternSource provides the candidate patterns in insertion order.
type PatternSource interface {
	Patterns() []patternstore.Pattern
}

// Result is one ranked candidate.
type Result struct {
	Pattern    patternstore.Pattern
	Similarity float64
	Breakdown  similarity.Breakdown
}

// Matcher scores a build order against every stored pattern of the same
// race. It only reads from its source and is safe for concurrent use.
type Matcher struct {
	source        PatternSource
	filter        *buildorder.Filter
	scorer        *similarity.Scorer
	minSimilarity float64
	logger        *zap.Logger
	meter         metric.Meter

	matchTotal      metric.Int64Counter
	matchSimilarity metric.Float64Histogram
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Matcher) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithFilter sets the strategic item filter.
func WithFilter(f *buildorder.Filter) Option {
	return func(m *Matcher) {
		if f != nil {
			m.filter = f
		}
	}
}

// WithScorer sets the similarity scorer.
func WithScorer(s *similarity.Scorer) Option {
	return func(m *Matcher) {
		if s != nil {
			m.scorer = s
		}
	}
}

// WithMinSimilarity sets the default confidence floor.
func WithMinSimilarity(v float64) Option {
	return func(m *Matcher) {
		m.minSimilarity = v
	}
}

// WithMeter sets the meter used for match metrics.
func WithMeter(meter metric.Meter) Option {
	return func(m *Matcher) {
		m.meter = meter
	}
}

// New creates a matcher over source.
func New(source PatternSource, opts ...Option) (*Matcher, error) {
	if source == nil {
		return nil, errors.New("pattern source is required")
	}
	m := &Matcher{
		source:        source,
		filter:        buildorder.NewFilter(nil),
		minSimilarity: DefaultMinSimilarity,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.minSimilarity < 0 || m.minSimilarity > 1 {
		return nil, errors.New("min similarity must be in [0,1]")
	}
	if m.scorer == nil {
		s, err := similarity.NewScorer(m.filter.Catalog())
		if err != nil {
			return nil, err
		}
		m.scorer = s
	}
	m.initMetrics()
	return m, nil
}

func (m *Matcher) initMetrics() {
	meter := m.meter
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	var err error

	m.matchTotal, err = meter.Int64Counter(
		"buildscout.match.total",
		metric.WithDescription("Match calls labeled by result (matched, no_match, no_items)"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		m.logger.Warn("failed to create match counter", zap.Error(err))
	}

	m.matchSimilarity, err = meter.Float64Histogram(
		"buildscout.match.similarity",
		metric.WithDescription("Similarity of the best candidate per match call"),
		metric.WithExplicitBucketBoundaries(0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0),
	)
	if err != nil {
		m.logger.Warn("failed to create similarity histogram", zap.Error(err))
	}
}

type matchOptions struct {
	minSimilarity float64
}

// MatchOption configures a single Match call.
type MatchOption func(*matchOptions)

// WithThreshold overrides the confidence floor for one call.
func WithThreshold(v float64) MatchOption {
	return func(o *matchOptions) {
		o.minSimilarity = v
	}
}

// Match returns the patterns of race r scoring at least the confidence
// floor, best first. Ties keep library insertion order. An unknown race, a
// build with no strategic items or no candidate above the floor all yield an
// empty result rather than an error.
func (m *Matcher) Match(ctx context.Context, steps []buildorder.Step, r race.Race, opts ...MatchOption) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := matchOptions{minSimilarity: m.minSimilarity}
	for _, opt := range opts {
		opt(&o)
	}

	r = race.Parse(string(r))
	results := []Result{}
	if !r.IsKnown() {
		m.logger.Debug("match skipped, unknown race")
		m.record(ctx, "no_items", r, 0, false)
		return results, nil
	}

	items := m.filter.Filter(steps, r)
	if len(items) == 0 {
		m.logger.Debug("match skipped, no strategic items", zap.String("race", r.String()))
		m.record(ctx, "no_items", r, 0, false)
		return results, nil
	}
	expansions := m.filter.CountExpansions(steps)

	var best float64
	var scored bool
	for _, p := range m.source.Patterns() {
		if p.Race != r {
			continue
		}
		patternSteps := p.Metadata.BuildOrder
		if len(patternSteps) == 0 && p.Signature != nil {
			patternSteps = buildorder.Flatten(p.Signature.EarlyGame)
		}

		b, err := m.scorer.Explain(similarity.Query{
			New:               items,
			Pattern:           m.filter.Filter(patternSteps, r),
			NewExpansions:     expansions,
			PatternExpansions: m.filter.CountExpansions(patternSteps),
			Race:              r,
		})
		if errors.Is(err, similarity.ErrEmptyItems) {
			m.logger.Debug("pattern has no strategic items", zap.String("pattern_id", string(p.ID)))
			continue
		}
		if err != nil {
			return nil, err
		}

		if !scored || b.Score > best {
			best, scored = b.Score, true
		}
		if b.Score < o.minSimilarity {
			continue
		}
		results = append(results, Result{Pattern: p, Similarity: b.Score, Breakdown: b})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	outcome := "matched"
	if len(results) == 0 {
		outcome = "no_match"
	}
	m.record(ctx, outcome, r, best, scored)
	m.logger.Debug("match complete",
		zap.String("race", r.String()),
		zap.Int("strategic_items", len(items)),
		zap.Int("results", len(results)),
		zap.Float64("best", best))
	return results, nil
}

func (m *Matcher) record(ctx context.Context, outcome string, r race.Race, best float64, scored bool) {
	attrs := metric.WithAttributes(
		attribute.String("result", outcome),
		attribute.String("race", r.String()),
	)
	if m.matchTotal != nil {
		m.matchTotal.Add(ctx, 1, attrs)
	}
	if scored && m.matchSimilarity != nil {
		m.matchSimilarity.Record(ctx, best, metric.WithAttributes(attribute.String("race", r.String())))
	}
}
