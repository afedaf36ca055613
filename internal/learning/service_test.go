package learning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/fyrsmithlabs/buildscout/internal/buildorder"
	"github.com/fyrsmithlabs/buildscout/internal/keywords"
	"github.com/fyrsmithlabs/buildscout/internal/logging"
	"github.com/fyrsmithlabs/buildscout/internal/patternstore"
	"github.com/fyrsmithlabs/buildscout/internal/race"
)

func poolSteps() buildorder.BuildOrder {
	return buildorder.BuildOrder{
		{Name: "Drone", ResourceCost: 12, Time: 0},
		{Name: "Spawning Pool", ResourceCost: 12, Time: 18},
		{Name: "Drone", ResourceCost: 12, Time: 30},
		{Name: "Zergling", ResourceCost: 13, Time: 70},
		{Name: "Zergling", ResourceCost: 14, Time: 71},
		{Name: "Zergling", ResourceCost: 15, Time: 72},
	}
}

func stargateSteps() buildorder.BuildOrder {
	return buildorder.BuildOrder{
		{Name: "Probe", ResourceCost: 12, Time: 0},
		{Name: "Pylon", ResourceCost: 14, Time: 18},
		{Name: "Gateway", ResourceCost: 16, Time: 40},
		{Name: "Cybernetics Core", ResourceCost: 19, Time: 90},
		{Name: "Stargate", ResourceCost: 23, Time: 150},
		{Name: "Oracle", ResourceCost: 27, Time: 210},
	}
}

type testEnv struct {
	svc    *Service
	store  *patternstore.Store
	reader *sdkmetric.ManualReader
	dir    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store, err := patternstore.New(dir, patternstore.WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))
	require.NoError(t, err)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	svc, err := NewService(store,
		WithLogger(logging.NewTestLogger().Underlying()),
		WithMeter(provider.Meter(instrumentationName)),
	)
	require.NoError(t, err)
	return &testEnv{svc: svc, store: store, reader: reader, dir: dir}
}

func (e *testEnv) counter(t *testing.T, name string, attrKey, attrValue string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, e.reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key(attrKey)); ok && v.AsString() == attrValue {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestNewService_RequiresStore(t *testing.T) {
	_, err := NewService(nil)
	assert.Error(t, err)
}

func TestLearn_IdenticalSignaturesShareOnePattern(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, err := env.svc.Learn(ctx, "12 pool rush", patternstore.GameMetadata{
		Opponent: "Serral", Date: "2024-03-01", Race: race.Zerg, BuildOrder: poolSteps(),
	})
	require.NoError(t, err)
	b, err := env.svc.Learn(ctx, "fast pool into zerglings", patternstore.GameMetadata{
		Opponent: "Reynor", Date: "2024-03-02", Race: race.Zerg, BuildOrder: poolSteps(),
	})
	require.NoError(t, err)

	assert.True(t, a.Created)
	assert.False(t, b.Created)
	assert.Equal(t, a.PatternID, b.PatternID)
	assert.Equal(t, 2, b.SampleCount)

	require.Equal(t, 1, env.store.Len())
	p, _ := env.store.Get(a.PatternID)
	assert.Equal(t, 2, p.SampleCount)
	assert.ElementsMatch(t, []string{"12", "pool", "rush", "fast", "zerglings"}, p.Keywords)

	comments := env.store.Comments()
	require.Len(t, comments, 2)
	assert.Equal(t, []string{a.CommentID, b.CommentID}, env.store.CommentsByKeyword("pool"))
	assert.Equal(t, "12 pool rush", comments[0].CleanedText)

	assert.Equal(t, int64(1), env.counter(t, "buildscout.learn.total", "outcome", outcomeCreated))
	assert.Equal(t, int64(1), env.counter(t, "buildscout.learn.total", "outcome", outcomeMerged))
}

func TestLearn_PersistsBeforeReturning(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.svc.Learn(context.Background(), "stargate oracle opener", patternstore.GameMetadata{
		Race: race.Protoss, BuildOrder: stargateSteps(),
	})
	require.NoError(t, err)

	reloaded, err := patternstore.New(env.dir)
	require.NoError(t, err)
	reloaded.Load()

	p, ok := reloaded.Get(res.PatternID)
	require.True(t, ok)
	assert.Equal(t, race.Protoss, p.Race)
	assert.Equal(t, keywords.StrategyAir, p.StrategyType)
	assert.Len(t, reloaded.Comments(), 1)
}

func TestLearn_InfersMissingRace(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.svc.Learn(context.Background(), "oracle harass", patternstore.GameMetadata{
		BuildOrder: stargateSteps(),
	})
	require.NoError(t, err)
	assert.Equal(t, race.Protoss, res.Race)

	p, _ := env.store.Get(res.PatternID)
	assert.Equal(t, race.Protoss, p.Race)
	assert.Equal(t, race.Protoss, p.Metadata.Race)
}

func TestLearn_MachineGuess(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.svc.Learn(context.Background(), "probably a pool first", patternstore.GameMetadata{
		Race: race.Zerg, BuildOrder: poolSteps(),
	}, AsMachineGuess())
	require.NoError(t, err)

	p, _ := env.store.Get(res.PatternID)
	assert.False(t, p.HasPlayerComment)
	assert.Equal(t, patternstore.MachineConfidence, p.Confidence)
	assert.False(t, env.store.Comments()[0].HasPlayerComment)
}

func TestLearn_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Learn(ctx, "   ", patternstore.GameMetadata{BuildOrder: poolSteps()})
	assert.ErrorIs(t, err, ErrEmptyComment)

	_, err = env.svc.Learn(ctx, "rush", patternstore.GameMetadata{})
	assert.ErrorIs(t, err, ErrNoBuildOrder)

	late := buildorder.BuildOrder{{Name: "Hive", ResourceCost: 120, Time: 600}}
	_, err = env.svc.Learn(ctx, "late game", patternstore.GameMetadata{BuildOrder: late})
	assert.ErrorIs(t, err, ErrNoBuildOrder)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = env.svc.Learn(cancelled, "rush", patternstore.GameMetadata{BuildOrder: poolSteps()})
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 0, env.store.Len())
	assert.Equal(t, int64(4), env.counter(t, "buildscout.learn.total", "outcome", outcomeFailed))
}

func TestEdit_ByPatternID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	learned, err := env.svc.Learn(ctx, "some zerg thing", patternstore.GameMetadata{
		Race: race.Zerg, BuildOrder: poolSteps(),
	}, AsMachineGuess())
	require.NoError(t, err)

	res, err := env.svc.Edit(ctx, string(learned.PatternID), "12 pool cheese")
	require.NoError(t, err)
	assert.Equal(t, learned.PatternID, res.PatternID)
	assert.Equal(t, learned.CommentID, res.CommentID)
	assert.Equal(t, keywords.StrategyCheese, res.Strategy)

	p, _ := env.store.Get(learned.PatternID)
	assert.Equal(t, "12 pool cheese", p.Comment)
	assert.True(t, p.HasPlayerComment)
	assert.Equal(t, patternstore.VerifiedConfidence, p.Confidence)
	assert.Equal(t, []string{"12", "pool", "cheese"}, p.Keywords, "keywords are regenerated")
	assert.Empty(t, env.store.FindByKeyword("zerg"))

	c := env.store.Comments()[0]
	assert.Equal(t, "12 pool cheese", c.RawText)
	assert.True(t, c.HasPlayerComment)
	assert.Equal(t, []string{c.ID}, env.store.CommentsByKeyword("cheese"))
}

func TestEdit_ByGameKeyPicksMostRecent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.svc.Learn(ctx, "guess one", patternstore.GameMetadata{
		Opponent: "Serral", Date: "2024-03-01", Race: race.Zerg, BuildOrder: poolSteps(),
	}, AsMachineGuess())
	require.NoError(t, err)
	second, err := env.svc.Learn(ctx, "guess two", patternstore.GameMetadata{
		Opponent: "Serral", Date: "2024-03-02", Race: race.Protoss, BuildOrder: stargateSteps(),
	}, AsMachineGuess())
	require.NoError(t, err)

	res, err := env.svc.Edit(ctx, "serral", "stargate into void rays")
	require.NoError(t, err)
	assert.Equal(t, second.PatternID, res.PatternID)
	assert.Equal(t, second.CommentID, res.CommentID)

	res, err = env.svc.Edit(ctx, "Serral@2024-03-01", "pool first")
	require.NoError(t, err)
	assert.Equal(t, first.PatternID, res.PatternID)

	assert.Empty(t, env.svc.ListUnverified(0))
}

func TestEdit_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Edit(ctx, "pattern_001", "")
	assert.ErrorIs(t, err, ErrEmptyComment)

	_, err = env.svc.Edit(ctx, "nobody", "rush")
	assert.ErrorIs(t, err, patternstore.ErrPatternNotFound)
	assert.Equal(t, int64(1), env.counter(t, "buildscout.edit.total", "result", "not_found"))
}

func TestListUnverified(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	older, err := env.svc.Learn(ctx, "guess", patternstore.GameMetadata{Race: race.Zerg, BuildOrder: poolSteps()}, AsMachineGuess())
	require.NoError(t, err)
	_, err = env.svc.Learn(ctx, "verified oracle", patternstore.GameMetadata{Race: race.Protoss, BuildOrder: stargateSteps()})
	require.NoError(t, err)

	terran := buildorder.BuildOrder{
		{Name: "SCV", ResourceCost: 12, Time: 0},
		{Name: "Barracks", ResourceCost: 14, Time: 40},
		{Name: "Marine", ResourceCost: 15, Time: 90},
	}
	newer, err := env.svc.Learn(ctx, "guess", patternstore.GameMetadata{Race: race.Terran, BuildOrder: terran}, AsMachineGuess())
	require.NoError(t, err)

	all := env.svc.ListUnverified(0)
	require.Len(t, all, 2)
	assert.Equal(t, newer.PatternID, all[0].ID)
	assert.Equal(t, older.PatternID, all[1].ID)

	limited := env.svc.ListUnverified(1)
	require.Len(t, limited, 1)
	assert.Equal(t, newer.PatternID, limited[0].ID)
}
