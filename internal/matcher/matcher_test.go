package matcher

import (
	"context"
	"fmt"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/fyrsmithlabs/buildscout/internal/buildorder"
	"github.com/fyrsmithlabs/buildscout/internal/patternstore"
	"github.com/fyrsmithlabs/buildscout/internal/race"
)

type staticSource []patternstore.Pattern

func (s staticSource) Patterns() []patternstore.Pattern { return s }

func roachQuery() []buildorder.Step {
	return []buildorder.Step{
		{Name: "Drone", ResourceCost: 12, Time: 0},
		{Name: "Roach Warren", ResourceCost: 28, Time: 120},
		{Name: "Roach", ResourceCost: 30, Time: 150},
	}
}

func pattern(id string, r race.Race, steps []buildorder.Step) patternstore.Pattern {
	return patternstore.Pattern{
		ID:        patternstore.PatternID(id),
		Signature: buildorder.NewBuilder().Build(steps),
		Race:      r,
		Metadata:  patternstore.GameMetadata{BuildOrder: steps},
	}
}

func newTestMatcher(t *testing.T, src PatternSource, opts ...Option) *Matcher {
	t.Helper()
	m, err := New(src, opts...)
	require.NoError(t, err)
	return m
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(staticSource{}, WithMinSimilarity(1.5))
	assert.Error(t, err)
}

func TestMatch_IdenticalBuildScoresHigh(t *testing.T) {
	m := newTestMatcher(t, staticSource{pattern("pattern_001", race.Zerg, roachQuery())})

	results, err := m.Match(context.Background(), roachQuery(), race.Zerg)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.GreaterOrEqual(t, results[0].Similarity, 0.85)
	assert.Equal(t, patternstore.PatternID("pattern_001"), results[0].Pattern.ID)
}

func TestMatch_OtherRaceExcluded(t *testing.T) {
	src := staticSource{
		pattern("pattern_001", race.Terran, roachQuery()),
		pattern("pattern_002", race.Unknown, roachQuery()),
	}
	m := newTestMatcher(t, src, WithMinSimilarity(0))

	results, err := m.Match(context.Background(), roachQuery(), race.Zerg)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = m.Match(context.Background(), roachQuery(), race.Unknown)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestMatch_RaceIsCaseInsensitive(t *testing.T) {
	m := newTestMatcher(t, staticSource{pattern("pattern_001", race.Zerg, roachQuery())})

	results, err := m.Match(context.Background(), roachQuery(), race.Race("ZERG"))
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestMatch_ExpansionDifferencePenalized(t *testing.T) {
	patternSteps := []buildorder.Step{
		{Name: "Hatchery", ResourceCost: 16, Time: 50},
		{Name: "Roach Warren", ResourceCost: 28, Time: 120},
		{Name: "Roach", ResourceCost: 30, Time: 150},
	}
	query := []buildorder.Step{
		{Name: "Hatchery", ResourceCost: 16, Time: 50},
		{Name: "Hatchery", ResourceCost: 18, Time: 80},
		{Name: "Hatchery", ResourceCost: 20, Time: 100},
		{Name: "Roach Warren", ResourceCost: 28, Time: 120},
		{Name: "Roach", ResourceCost: 30, Time: 150},
	}
	m := newTestMatcher(t, staticSource{pattern("pattern_001", race.Zerg, patternSteps)})

	results, err := m.Match(context.Background(), query, race.Zerg, WithThreshold(0))
	require.NoError(t, err)
	require.Len(t, results, 1)

	b := results[0].Breakdown
	assert.Equal(t, 0.3, b.ExpansionPenalty)
	assert.LessOrEqual(t, results[0].Similarity, 0.3*b.Harmonic*b.TechPenalty+1e-9)

	results, err = m.Match(context.Background(), query, race.Zerg)
	require.NoError(t, err)
	assert.Empty(t, results, "penalized score falls below the default floor")
}

func TestMatch_MissingCriticalTech(t *testing.T) {
	patternSteps := []buildorder.Step{
		{Name: "Gateway", ResourceCost: 16, Time: 40},
		{Name: "Cybernetics Core", ResourceCost: 19, Time: 90},
		{Name: "Stargate", ResourceCost: 23, Time: 150},
		{Name: "Oracle", ResourceCost: 27, Time: 210},
	}
	query := []buildorder.Step{
		{Name: "Gateway", ResourceCost: 16, Time: 40},
		{Name: "Cybernetics Core", ResourceCost: 19, Time: 90},
		{Name: "Oracle", ResourceCost: 27, Time: 210},
	}
	m := newTestMatcher(t, staticSource{pattern("pattern_001", race.Protoss, patternSteps)})

	results, err := m.Match(context.Background(), query, race.Protoss, WithThreshold(0))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Less(t, results[0].Breakdown.TechPenalty, 0.2)
	assert.Equal(t, []string{"stargate"}, results[0].Breakdown.MissingCritical)
}

func TestMatch_NoStrategicItems(t *testing.T) {
	m := newTestMatcher(t, staticSource{pattern("pattern_001", race.Zerg, roachQuery())})

	results, err := m.Match(context.Background(), []buildorder.Step{
		{Name: "Drone", ResourceCost: 12, Time: 0},
		{Name: "Overlord", ResourceCost: 13, Time: 12},
		{Name: "Hatchery", ResourceCost: 16, Time: 50},
	}, race.Zerg)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestMatch_SortedWithStableTies(t *testing.T) {
	weaker := []buildorder.Step{
		{Name: "Roach Warren", ResourceCost: 28, Time: 200},
		{Name: "Roach", ResourceCost: 30, Time: 240},
	}
	src := staticSource{
		pattern("pattern_001", race.Zerg, weaker),
		pattern("pattern_002", race.Zerg, roachQuery()),
		pattern("pattern_003", race.Zerg, roachQuery()),
	}
	m := newTestMatcher(t, src, WithMinSimilarity(0))

	results, err := m.Match(context.Background(), roachQuery(), race.Zerg)
	require.NoError(t, err)
	require.Len(t, results, 3)

	ids := []patternstore.PatternID{results[0].Pattern.ID, results[1].Pattern.ID, results[2].Pattern.ID}
	assert.Equal(t, []patternstore.PatternID{"pattern_002", "pattern_003", "pattern_001"}, ids)
	assert.Equal(t, results[0].Similarity, results[1].Similarity)
	assert.Greater(t, results[1].Similarity, results[2].Similarity)
}

func TestMatch_StringAndNumericStoredTimesScoreIdentically(t *testing.T) {
	var fromStrings, fromNumbers buildorder.BuildOrder
	require.NoError(t, json.Unmarshal([]byte(`[
		{"name":"Roach Warren","supply":28,"time":"2:00"},
		{"name":"Roach","supply":30,"time":"2:30"}
	]`), &fromStrings))
	require.NoError(t, json.Unmarshal([]byte(`[
		{"name":"Roach Warren","supply":28,"time":120},
		{"name":"Roach","supply":30,"time":150}
	]`), &fromNumbers))

	src := staticSource{
		pattern("pattern_001", race.Zerg, fromStrings),
		pattern("pattern_002", race.Zerg, fromNumbers),
	}
	m := newTestMatcher(t, src)

	results, err := m.Match(context.Background(), roachQuery(), race.Zerg)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, results[0].Similarity, results[1].Similarity)
}

func TestMatch_FallsBackToSignature(t *testing.T) {
	p := pattern("pattern_001", race.Zerg, roachQuery())
	p.Metadata.BuildOrder = nil
	m := newTestMatcher(t, staticSource{p})

	results, err := m.Match(context.Background(), roachQuery(), race.Zerg)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.GreaterOrEqual(t, results[0].Similarity, 0.85)
}

func TestMatch_RaceExclusivityAcrossLibrary(t *testing.T) {
	var src staticSource
	races := []race.Race{race.Zerg, race.Terran, race.Protoss, race.Unknown}
	for i, r := range races {
		src = append(src, pattern(fmt.Sprintf("pattern_%03d", i+1), r, roachQuery()))
	}
	m := newTestMatcher(t, src, WithMinSimilarity(0))

	for _, r := range race.Known {
		results, err := m.Match(context.Background(), roachQuery(), r)
		require.NoError(t, err)
		for _, res := range results {
			assert.Equal(t, r, res.Pattern.Race)
		}
	}
}

func TestMatch_CancelledContext(t *testing.T) {
	m := newTestMatcher(t, staticSource{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Match(ctx, roachQuery(), race.Zerg)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMatch_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := newTestMatcher(t, staticSource{pattern("pattern_001", race.Zerg, roachQuery())},
		WithMeter(provider.Meter(instrumentationName)))

	ctx := context.Background()
	_, err := m.Match(ctx, roachQuery(), race.Zerg)
	require.NoError(t, err)
	_, err = m.Match(ctx, roachQuery(), race.Protoss)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	var calls int64
	var histogramCount uint64
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			switch data := metric.Data.(type) {
			case metricdata.Sum[int64]:
				if metric.Name == "buildscout.match.total" {
					for _, dp := range data.DataPoints {
						calls += dp.Value
					}
				}
			case metricdata.Histogram[float64]:
				if metric.Name == "buildscout.match.similarity" {
					for _, dp := range data.DataPoints {
						histogramCount += dp.Count
					}
				}
			}
		}
	}
	assert.Equal(t, int64(2), calls)
	assert.Equal(t, uint64(1), histogramCount, "only scored calls record a similarity")
}

func TestMatch_AgainstStore(t *testing.T) {
	store, err := patternstore.New(t.TempDir())
	require.NoError(t, err)
	steps := roachQuery()
	_, err = store.Upsert(patternstore.UpsertRequest{
		Signature: buildorder.NewBuilder().Build(steps),
		Race:      race.Zerg,
		Metadata:  patternstore.GameMetadata{BuildOrder: steps},
	})
	require.NoError(t, err)

	m := newTestMatcher(t, store)
	results, err := m.Match(context.Background(), steps, race.Zerg)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, patternstore.PatternID("pattern_001"), results[0].Pattern.ID)
}
