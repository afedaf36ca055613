// Package patternstore holds the deduplicated library of learned patterns
// and the raw comments they came from.
//
// Patterns live in a single arena in insertion order. A keyword index maps
// each keyword to the set of pattern IDs carrying it, and a signature index
// enforces that no two patterns share a signature. The whole library is
// persisted after every mutation with write-then-rename semantics:
//
//	<dir>/
//	├── patterns.json        ← pattern_001 → {signature, keywords, ...}
//	├── comments.json        ← {comments: [...], keyword_index: {...}}
//	└── pattern_stats.json   ← derived counters, regenerated on save
//
// The store assumes a single writer. Concurrent readers are safe and see
// either the state before or after any one write, never a partial pattern.
package patternstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/buildscout/internal/keywords"
	"github.com/fyrsmithlabs/buildscout/internal/race"
)

// Errors for store operations.
var (
	ErrNilSignature    = errors.New("signature is nil")
	ErrPatternNotFound = errors.New("pattern not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrStoreCorrupted  = errors.New("store file corrupted")
)

// Default file names inside the store directory.
const (
	DefaultPatternsFile = "patterns.json"
	DefaultCommentsFile = "comments.json"
	DefaultStatsFile    = "pattern_stats.json"
)

// Store is the pattern library.
type Store struct {
	mu     sync.RWMutex
	saveMu sync.Mutex

	patternsPath string
	commentsPath string
	statsPath    string

	logger     *zap.Logger
	classifier *race.Classifier
	now        func() time.Time
	quarantine bool

	patterns     []*Pattern
	byID         map[PatternID]int
	bySignature  map[string]PatternID
	keywordIndex map[string]map[PatternID]struct{}

	comments     []*Comment
	commentByID  map[string]int
	commentIndex map[string][]string

	lastSeq     int
	loadedMtime time.Time
	lastSaved   time.Time

	// gen counts mutations; savedGen is the gen last written or loaded.
	// The store holds unsaved changes while they differ.
	gen      uint64
	savedGen uint64
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClassifier sets the classifier used to infer races of legacy records.
func WithClassifier(c *race.Classifier) Option {
	return func(s *Store) {
		if c != nil {
			s.classifier = c
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithFileNames overrides the file names used inside the store directory.
// Empty names keep the defaults.
func WithFileNames(patterns, comments, stats string) Option {
	return func(s *Store) {
		dir := filepath.Dir(s.patternsPath)
		if patterns != "" {
			s.patternsPath = filepath.Join(dir, patterns)
		}
		if comments != "" {
			s.commentsPath = filepath.Join(dir, comments)
		}
		if stats != "" {
			s.statsPath = filepath.Join(dir, stats)
		}
	}
}

// WithQuarantine controls whether corrupt files are renamed aside with a
// ".corrupt" suffix before the store continues empty. Enabled by default.
func WithQuarantine(enabled bool) Option {
	return func(s *Store) {
		s.quarantine = enabled
	}
}

// New creates a store rooted at dir. The directory is created if needed;
// nothing is read until Load is called.
func New(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("store directory is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s := &Store{
		patternsPath: filepath.Join(dir, DefaultPatternsFile),
		commentsPath: filepath.Join(dir, DefaultCommentsFile),
		statsPath:    filepath.Join(dir, DefaultStatsFile),
		logger:       zap.NewNop(),
		classifier:   race.NewClassifier(nil),
		now:          func() time.Time { return time.Now().UTC() },
		quarantine:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reset()
	return s, nil
}

// reset clears all in-memory state. Caller must hold mu or own s exclusively.
func (s *Store) reset() {
	s.patterns = nil
	s.byID = make(map[PatternID]int)
	s.bySignature = make(map[string]PatternID)
	s.keywordIndex = make(map[string]map[PatternID]struct{})
	s.comments = nil
	s.commentByID = make(map[string]int)
	s.commentIndex = make(map[string][]string)
	s.lastSeq = 0
}

// Upsert records one observation of req.Signature. A structurally equal
// stored signature absorbs the observation: keywords are unioned, the sample
// count and confidence rise, and a player comment replaces a machine guess.
// The metadata of the latest game replaces the stored one, except for the
// build order: the first game's build order is kept, since matching scores
// against it. Otherwise a new pattern is appended under the next sequential
// ID.
func (s *Store) Upsert(req UpsertRequest) (UpsertResult, error) {
	if req.Signature == nil {
		return UpsertResult{}, ErrNilSignature
	}
	key := req.Signature.Key()
	now := s.now()
	kws := keywords.Merge(nil, req.Keywords)

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.bySignature[key]; ok {
		idx := s.byID[id]
		p := s.patterns[idx].clone()
		p.Keywords = keywords.Merge(p.Keywords, kws)
		p.SampleCount++
		p.LastSeen = now
		p.Metadata = mergeMetadata(p.Metadata, req.Metadata)
		p.Confidence = min(1.0, p.Confidence+RecurrenceStep)
		if !p.Race.IsKnown() && req.Race.IsKnown() {
			p.Race = req.Race
		}
		if req.HasPlayerComment && !p.HasPlayerComment {
			p.Comment = req.Comment
			p.HasPlayerComment = true
			p.StrategyType = req.StrategyType
			p.Confidence = max(p.Confidence, PlayerConfidence)
		}
		s.replace(idx, p)
		s.gen++

		s.logger.Debug("pattern sample recorded",
			zap.String("pattern_id", string(id)),
			zap.Int("sample_count", p.SampleCount))
		return UpsertResult{ID: id, SampleCount: p.SampleCount}, nil
	}

	confidence := MachineConfidence
	if req.HasPlayerComment {
		confidence = PlayerConfidence
	}
	strategy := req.StrategyType
	if strategy == "" {
		strategy = keywords.StrategyUnknown
	}

	s.lastSeq++
	p := &Pattern{
		ID:               formatPatternID(s.lastSeq),
		Signature:        req.Signature,
		Keywords:         kws,
		Comment:          req.Comment,
		SampleCount:      1,
		LastSeen:         now,
		StrategyType:     strategy,
		Race:             race.Parse(string(req.Race)),
		Confidence:       confidence,
		Metadata:         req.Metadata,
		HasPlayerComment: req.HasPlayerComment,
	}
	s.appendPattern(p, key)
	s.gen++

	s.logger.Info("pattern created",
		zap.String("pattern_id", string(p.ID)),
		zap.String("race", p.Race.String()),
		zap.String("strategy", string(p.StrategyType)))
	return UpsertResult{ID: p.ID, Created: true, SampleCount: 1}, nil
}

// mergeMetadata takes latest over stored, keeping the stored build order
// when there is one.
func mergeMetadata(stored, latest GameMetadata) GameMetadata {
	if len(stored.BuildOrder) > 0 {
		latest.BuildOrder = stored.BuildOrder
	}
	return latest
}

// appendPattern adds p to the arena. Caller must hold mu.
func (s *Store) appendPattern(p *Pattern, sigKey string) {
	s.patterns = append(s.patterns, p)
	s.byID[p.ID] = len(s.patterns) - 1
	s.bySignature[sigKey] = p.ID
	s.indexKeywords(p.ID, p.Keywords)
}

// replace swaps the record at idx for p and reindexes its keywords.
// Caller must hold mu.
func (s *Store) replace(idx int, p *Pattern) {
	old := s.patterns[idx]
	s.unindexKeywords(old.ID, old.Keywords)
	s.patterns[idx] = p
	s.indexKeywords(p.ID, p.Keywords)
}

func (s *Store) indexKeywords(id PatternID, kws []string) {
	for _, k := range kws {
		set, ok := s.keywordIndex[k]
		if !ok {
			set = make(map[PatternID]struct{})
			s.keywordIndex[k] = set
		}
		set[id] = struct{}{}
	}
}

func (s *Store) unindexKeywords(id PatternID, kws []string) {
	for _, k := range kws {
		if set, ok := s.keywordIndex[k]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(s.keywordIndex, k)
			}
		}
	}
}

// Update applies fn to a copy of the pattern and stores the result. The ID
// and signature cannot be changed.
func (s *Store) Update(id PatternID, fn func(*Pattern)) (Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[id]
	if !ok {
		return Pattern{}, fmt.Errorf("%w: %s", ErrPatternNotFound, id)
	}
	old := s.patterns[idx]
	p := old.clone()
	fn(p)
	p.ID = old.ID
	p.Signature = old.Signature
	p.Keywords = keywords.Merge(nil, p.Keywords)
	p.Race = race.Parse(string(p.Race))
	p.Confidence = clampConfidence(p.Confidence)
	s.replace(idx, p)
	s.gen++
	return *p.clone(), nil
}

// Get returns a copy of the pattern with the given ID.
func (s *Store) Get(id PatternID) (Pattern, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byID[id]
	if !ok {
		return Pattern{}, false
	}
	return *s.patterns[idx].clone(), true
}

// Patterns returns copies of all patterns in insertion order.
func (s *Store) Patterns() []Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Pattern, len(s.patterns))
	for i, p := range s.patterns {
		out[i] = *p.clone()
	}
	return out
}

// Dirty reports whether the store holds mutations not yet saved.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen != s.savedGen
}

// Len returns the number of stored patterns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patterns)
}

// FindByKeyword returns the IDs of patterns carrying keyword, in insertion
// order.
func (s *Store) FindByKeyword(keyword string) []PatternID {
	keyword = strings.ToLower(strings.TrimSpace(keyword))

	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.keywordIndex[keyword]
	ids := make([]PatternID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.byID[ids[i]] < s.byID[ids[j]]
	})
	return ids
}

// AddComment appends a comment and indexes its keywords. An empty ID is
// replaced with a new UUID and a zero timestamp with the current time.
func (s *Store) AddComment(c Comment) (Comment, error) {
	if strings.TrimSpace(c.RawText) == "" {
		return Comment{}, errors.New("comment text is empty")
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = s.now()
	}
	c.Keywords = keywords.Merge(nil, c.Keywords)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.commentByID[c.ID]; dup {
		return Comment{}, fmt.Errorf("comment %s already exists", c.ID)
	}
	stored := c.clone()
	s.comments = append(s.comments, stored)
	s.commentByID[c.ID] = len(s.comments) - 1
	s.indexComment(stored)
	s.gen++
	return *stored.clone(), nil
}

// UpdateComment applies fn to a copy of the comment and reindexes it.
func (s *Store) UpdateComment(id string, fn func(*Comment)) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.commentByID[id]
	if !ok {
		return Comment{}, fmt.Errorf("%w: %s", ErrCommentNotFound, id)
	}
	old := s.comments[idx]
	c := old.clone()
	fn(c)
	c.ID = old.ID
	c.Keywords = keywords.Merge(nil, c.Keywords)

	s.unindexComment(old)
	s.comments[idx] = c
	s.indexComment(c)
	s.gen++
	return *c.clone(), nil
}

func (s *Store) indexComment(c *Comment) {
	for _, k := range c.Keywords {
		s.commentIndex[k] = append(s.commentIndex[k], c.ID)
	}
}

func (s *Store) unindexComment(c *Comment) {
	for _, k := range c.Keywords {
		ids := s.commentIndex[k]
		kept := ids[:0:0]
		for _, id := range ids {
			if id != c.ID {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(s.commentIndex, k)
		} else {
			s.commentIndex[k] = kept
		}
	}
}

// Comments returns copies of all comments in insertion order.
func (s *Store) Comments() []Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Comment, len(s.comments))
	for i, c := range s.comments {
		out[i] = *c.clone()
	}
	return out
}

// CommentsByKeyword returns the IDs of comments carrying keyword, in
// insertion order.
func (s *Store) CommentsByKeyword(keyword string) []string {
	keyword = strings.ToLower(strings.TrimSpace(keyword))

	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.commentIndex[keyword]...)
}

// FindByGame locates the most recent comment whose game metadata matches
// key, falling back to pattern metadata. The comment is nil when the match
// came from a pattern only.
func (s *Store) FindByGame(key string) (PatternID, *Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *Comment
	for _, c := range s.comments {
		if c.PatternID == "" || !c.Metadata.MatchesLookup(key) {
			continue
		}
		if best == nil || !c.Timestamp.Before(best.Timestamp) {
			best = c
		}
	}
	if best != nil {
		return best.PatternID, best.clone(), nil
	}

	var bestPattern *Pattern
	for _, p := range s.patterns {
		if !p.Metadata.MatchesLookup(key) {
			continue
		}
		if bestPattern == nil || !p.LastSeen.Before(bestPattern.LastSeen) {
			bestPattern = p
		}
	}
	if bestPattern != nil {
		return bestPattern.ID, nil, nil
	}
	return "", nil, fmt.Errorf("%w: no game matches %q", ErrPatternNotFound, key)
}

// Stats computes summary counters for the current state.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statsLocked()
}

func (s *Store) statsLocked() Stats {
	st := Stats{
		TotalPatterns: len(s.patterns),
		TotalComments: len(s.comments),
		TotalKeywords: len(s.keywordIndex),
		ByRace:        make(map[race.Race]int),
		LastSaved:     s.lastSaved,
	}
	for _, p := range s.patterns {
		if p.HasPlayerComment {
			st.PlayerVerified++
		} else {
			st.MachineGuessed++
		}
		st.ByRace[p.Race]++
	}
	return st
}

func clampConfidence(v float64) float64 {
	return max(0, min(1, v))
}
