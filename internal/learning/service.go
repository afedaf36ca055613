// Package learning turns commented games into stored patterns.
//
// Learn builds a signature from the game's build order, extracts keywords
// and a strategy label from the comment, and records both the pattern and
// the raw comment. Edit upgrades a stored pattern with a player-written
// comment. Learn and Edit must not run concurrently with each other; see
// services.IngestQueue.
package learning

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/buildscout/internal/buildorder"
	"github.com/fyrsmithlabs/buildscout/internal/keywords"
	"github.com/fyrsmithlabs/buildscout/internal/patternstore"
	"github.com/fyrsmithlabs/buildscout/internal/race"
)

var (
	// ErrEmptyComment is returned when the comment text is blank.
	ErrEmptyComment = errors.New("comment is empty")

	// ErrNoBuildOrder is returned when the game has no usable early-game
	// build order to build a signature from.
	ErrNoBuildOrder = errors.New("no usable build order")
)

// Service is the pattern learning service.
type Service struct {
	store      *patternstore.Store
	builder    *buildorder.Builder
	extractor  *keywords.Extractor
	strategies *keywords.StrategyClassifier
	classifier *race.Classifier
	metrics    *Metrics
	meter      metric.Meter
	logger     *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBuilder sets the signature builder.
func WithBuilder(b *buildorder.Builder) Option {
	return func(s *Service) {
		if b != nil {
			s.builder = b
		}
	}
}

// WithExtractor sets the keyword extractor.
func WithExtractor(e *keywords.Extractor) Option {
	return func(s *Service) {
		if e != nil {
			s.extractor = e
		}
	}
}

// WithClassifier sets the race classifier used when a game has no race.
func WithClassifier(c *race.Classifier) Option {
	return func(s *Service) {
		if c != nil {
			s.classifier = c
		}
	}
}

// WithMeter sets the meter used for service metrics.
func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.meter = m
	}
}

// NewService creates a learning service backed by store.
func NewService(store *patternstore.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("pattern store is required")
	}
	s := &Service{
		store:      store,
		builder:    buildorder.NewBuilder(),
		extractor:  keywords.NewExtractor(),
		strategies: keywords.NewStrategyClassifier(),
		classifier: race.NewClassifier(nil),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = NewMetrics(s.meter, s.logger)
	return s, nil
}

type learnOptions struct {
	machineGuess bool
}

// LearnOption configures a single Learn call.
type LearnOption func(*learnOptions)

// AsMachineGuess marks the comment as generated rather than written by a
// player.
func AsMachineGuess() LearnOption {
	return func(o *learnOptions) {
		o.machineGuess = true
	}
}

// LearnResult describes what Learn stored.
type LearnResult struct {
	PatternID   patternstore.PatternID
	CommentID   string
	Created     bool
	SampleCount int
	Race        race.Race
	Strategy    keywords.StrategyType
	Keywords    []string
}

// Learn records comment against the game described by meta. The store is
// saved before Learn returns.
func (s *Service) Learn(ctx context.Context, comment string, meta patternstore.GameMetadata, opts ...LearnOption) (LearnResult, error) {
	res, err := s.learn(ctx, comment, meta, opts...)
	if err != nil {
		s.metrics.recordLearn(ctx, outcomeFailed, meta.Race.String())
		return LearnResult{}, err
	}
	outcome := outcomeMerged
	if res.Created {
		outcome = outcomeCreated
	}
	s.metrics.recordLearn(ctx, outcome, res.Race.String())
	return res, nil
}

func (s *Service) learn(ctx context.Context, comment string, meta patternstore.GameMetadata, opts ...LearnOption) (LearnResult, error) {
	if err := ctx.Err(); err != nil {
		return LearnResult{}, err
	}
	var o learnOptions
	for _, opt := range opts {
		opt(&o)
	}

	if strings.TrimSpace(comment) == "" {
		return LearnResult{}, ErrEmptyComment
	}
	if len(meta.BuildOrder) == 0 {
		return LearnResult{}, ErrNoBuildOrder
	}
	sig := s.builder.Build(meta.BuildOrder)
	if len(sig.EarlyGame) == 0 {
		return LearnResult{}, fmt.Errorf("%w: no steps within the early-game threshold", ErrNoBuildOrder)
	}

	cleaned := s.extractor.Clean(comment)
	kws := s.extractor.Extract(comment)

	meta.Race = race.Parse(string(meta.Race))
	if !meta.Race.IsKnown() {
		meta.Race = s.inferRace(meta.BuildOrder, kws)
	}
	strategy := s.strategies.ClassifyComment(comment, kws)

	up, err := s.store.Upsert(patternstore.UpsertRequest{
		Signature:        sig,
		Comment:          comment,
		Keywords:         kws,
		Race:             meta.Race,
		Metadata:         meta,
		HasPlayerComment: !o.machineGuess,
		StrategyType:     strategy,
	})
	if err != nil {
		return LearnResult{}, fmt.Errorf("failed to store pattern: %w", err)
	}

	c, err := s.store.AddComment(patternstore.Comment{
		PatternID:        up.ID,
		RawText:          comment,
		CleanedText:      cleaned,
		Keywords:         kws,
		Metadata:         meta,
		HasPlayerComment: !o.machineGuess,
	})
	if err != nil {
		return LearnResult{}, fmt.Errorf("failed to store comment: %w", err)
	}

	if err := s.store.Save(); err != nil {
		return LearnResult{}, fmt.Errorf("failed to save store: %w", err)
	}

	s.logger.Info("learned pattern",
		zap.String("pattern_id", string(up.ID)),
		zap.Bool("created", up.Created),
		zap.Int("sample_count", up.SampleCount),
		zap.String("race", meta.Race.String()),
		zap.String("strategy", string(strategy)),
		zap.Strings("keywords", kws))

	return LearnResult{
		PatternID:   up.ID,
		CommentID:   c.ID,
		Created:     up.Created,
		SampleCount: up.SampleCount,
		Race:        meta.Race,
		Strategy:    strategy,
		Keywords:    kws,
	}, nil
}

func (s *Service) inferRace(steps buildorder.BuildOrder, kws []string) race.Race {
	ids := make([]string, 0, len(steps)+len(kws))
	for _, st := range steps {
		ids = append(ids, st.Name)
	}
	ids = append(ids, kws...)
	return s.classifier.Infer(ids)
}

// EditResult describes an applied edit.
type EditResult struct {
	PatternID patternstore.PatternID
	CommentID string
	Keywords  []string
	Strategy  keywords.StrategyType
}

// Edit replaces the comment of a stored pattern with a player-written one.
// lookupKey is a pattern ID ("pattern_007") or a game key: opponent, date or
// "opponent@date", in which case the most recent matching game wins.
// Keywords are regenerated from the new text and the pattern is marked as
// player-verified.
func (s *Service) Edit(ctx context.Context, lookupKey, newComment string) (EditResult, error) {
	res, err := s.edit(ctx, lookupKey, newComment)
	switch {
	case err == nil:
		s.metrics.recordEdit(ctx, "success")
	case errors.Is(err, patternstore.ErrPatternNotFound):
		s.metrics.recordEdit(ctx, "not_found")
	default:
		s.metrics.recordEdit(ctx, "error")
	}
	return res, err
}

func (s *Service) edit(ctx context.Context, lookupKey, newComment string) (EditResult, error) {
	if err := ctx.Err(); err != nil {
		return EditResult{}, err
	}
	if strings.TrimSpace(newComment) == "" {
		return EditResult{}, ErrEmptyComment
	}

	id, commentID, err := s.resolve(lookupKey)
	if err != nil {
		return EditResult{}, err
	}

	cleaned := s.extractor.Clean(newComment)
	kws := s.extractor.Extract(newComment)
	strategy := s.strategies.ClassifyComment(newComment, kws)

	if _, err := s.store.Update(id, func(p *patternstore.Pattern) {
		p.Comment = newComment
		p.Keywords = kws
		p.HasPlayerComment = true
		p.Confidence = patternstore.VerifiedConfidence
		p.StrategyType = strategy
	}); err != nil {
		return EditResult{}, err
	}

	if commentID != "" {
		if _, err := s.store.UpdateComment(commentID, func(c *patternstore.Comment) {
			c.RawText = newComment
			c.CleanedText = cleaned
			c.Keywords = kws
			c.HasPlayerComment = true
		}); err != nil {
			return EditResult{}, err
		}
	}

	if err := s.store.Save(); err != nil {
		return EditResult{}, fmt.Errorf("failed to save store: %w", err)
	}

	s.logger.Info("pattern edited",
		zap.String("pattern_id", string(id)),
		zap.String("lookup", lookupKey),
		zap.String("strategy", string(strategy)))

	return EditResult{PatternID: id, CommentID: commentID, Keywords: kws, Strategy: strategy}, nil
}

// resolve maps a lookup key to a pattern ID and the comment paired with it,
// if any.
func (s *Service) resolve(lookupKey string) (patternstore.PatternID, string, error) {
	lookupKey = strings.TrimSpace(lookupKey)
	if _, ok := s.store.Get(patternstore.PatternID(lookupKey)); ok {
		id := patternstore.PatternID(lookupKey)
		return id, s.latestCommentFor(id), nil
	}
	id, c, err := s.store.FindByGame(lookupKey)
	if err != nil {
		return "", "", err
	}
	if c != nil {
		return id, c.ID, nil
	}
	return id, s.latestCommentFor(id), nil
}

func (s *Service) latestCommentFor(id patternstore.PatternID) string {
	var best *patternstore.Comment
	comments := s.store.Comments()
	for i := range comments {
		c := &comments[i]
		if c.PatternID != id {
			continue
		}
		if best == nil || !c.Timestamp.Before(best.Timestamp) {
			best = c
		}
	}
	if best == nil {
		return ""
	}
	return best.ID
}

// ListUnverified returns patterns without a player comment, most recently
// seen first. A non-positive limit returns all of them.
func (s *Service) ListUnverified(limit int) []patternstore.Pattern {
	var out []patternstore.Pattern
	for _, p := range s.store.Patterns() {
		if !p.HasPlayerComment {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
