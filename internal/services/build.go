package services

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/buildscout/internal/buildorder"
	"github.com/fyrsmithlabs/buildscout/internal/config"
	"github.com/fyrsmithlabs/buildscout/internal/learning"
	"github.com/fyrsmithlabs/buildscout/internal/matcher"
	"github.com/fyrsmithlabs/buildscout/internal/patternstore"
	"github.com/fyrsmithlabs/buildscout/internal/race"
	"github.com/fyrsmithlabs/buildscout/internal/similarity"
)

// Build constructs every service from cfg and loads the pattern store.
// A nil logger discards logs; a nil meter uses the global meter provider.
func Build(cfg *config.Config, logger *zap.Logger, meter metric.Meter) (Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	catalog, err := race.LoadCatalog(cfg.Vocabulary.OverridesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load vocabulary: %w", err)
	}
	classifier := race.NewClassifier(catalog)

	scorer, err := similarity.NewScorer(catalog, similarity.WithConfig(cfg.Scoring))
	if err != nil {
		return nil, fmt.Errorf("failed to create scorer: %w", err)
	}

	store, err := patternstore.New(cfg.Store.DataDir,
		patternstore.WithLogger(logger.Named("patternstore")),
		patternstore.WithClassifier(classifier),
		patternstore.WithFileNames(cfg.Store.PatternsFile, cfg.Store.CommentsFile, cfg.Store.StatsFile),
		patternstore.WithQuarantine(cfg.Store.Quarantine))
	if err != nil {
		return nil, fmt.Errorf("failed to create pattern store: %w", err)
	}
	store.Load()

	builder := buildorder.NewBuilder(
		buildorder.WithEarlyGameThreshold(cfg.Signature.EarlyGameThreshold),
		buildorder.WithOpeningLength(cfg.Signature.OpeningLength),
		buildorder.WithCatalog(catalog))

	learner, err := learning.NewService(store,
		learning.WithLogger(logger.Named("learning")),
		learning.WithBuilder(builder),
		learning.WithClassifier(classifier),
		learning.WithMeter(meter))
	if err != nil {
		return nil, fmt.Errorf("failed to create learning service: %w", err)
	}

	m, err := matcher.New(store,
		matcher.WithLogger(logger.Named("matcher")),
		matcher.WithFilter(buildorder.NewFilter(catalog)),
		matcher.WithScorer(scorer),
		matcher.WithMinSimilarity(cfg.Matching.MinSimilarity),
		matcher.WithMeter(meter))
	if err != nil {
		return nil, fmt.Errorf("failed to create matcher: %w", err)
	}

	queue, err := NewIngestQueue(learner, WithQueueLogger(logger.Named("ingest")))
	if err != nil {
		return nil, err
	}

	logger.Debug("services ready",
		zap.String("data_dir", cfg.Store.DataDir),
		zap.Int("patterns", store.Len()))

	return NewRegistry(Options{
		Catalog:  catalog,
		Store:    store,
		Learning: learner,
		Matcher:  m,
		Ingest:   queue,
	}), nil
}
