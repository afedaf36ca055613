package patternstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/buildscout/internal/keywords"
	"github.com/fyrsmithlabs/buildscout/internal/race"
)

// Save writes the patterns, comments and stats files. Each file is written
// to a temporary sibling and renamed into place, so a crash leaves either
// the previous or the new version on disk.
func (s *Store) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	start := time.Now()

	s.mu.RLock()
	pf := make(patternsFile, len(s.patterns))
	for _, p := range s.patterns {
		pf[p.ID] = p
	}
	cf := commentsFile{
		Comments:     s.comments,
		KeywordIndex: s.commentIndex,
	}
	if cf.Comments == nil {
		cf.Comments = []*Comment{}
	}
	patternsData, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		s.mu.RUnlock()
		return fmt.Errorf("failed to marshal patterns: %w", err)
	}
	commentsData, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		s.mu.RUnlock()
		return fmt.Errorf("failed to marshal comments: %w", err)
	}
	stats := s.statsLocked()
	gen := s.gen
	s.mu.RUnlock()

	if err := writeAtomic(s.patternsPath, patternsData); err != nil {
		return err
	}
	if err := writeAtomic(s.commentsPath, commentsData); err != nil {
		return err
	}

	saved := s.now()
	stats.LastSaved = saved
	statsData, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	if err := writeAtomic(s.statsPath, statsData); err != nil {
		return err
	}

	s.mu.Lock()
	s.lastSaved = saved
	s.loadedMtime = s.latestMtime()
	s.savedGen = gen
	s.mu.Unlock()

	updateStoreMetrics(stats)
	SaveDuration.Observe(time.Since(start).Seconds())
	s.logger.Debug("store saved",
		zap.Int("patterns", stats.TotalPatterns),
		zap.Int("comments", stats.TotalComments))
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", tmpPath, err)
	}
	return nil
}

// Load replaces the in-memory state with the files on disk. Missing files
// mean an empty store. Unreadable or corrupt files are logged, quarantined
// and treated as empty; Load never fails.
func (s *Store) Load() {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()
}

// loadLocked is Load with saveMu and mu held.
func (s *Store) loadLocked() {
	s.reset()
	s.loadedMtime = s.latestMtime()
	s.savedGen = s.gen

	var pf patternsFile
	if s.readJSON(s.patternsPath, "patterns", &pf) {
		s.loadPatterns(pf)
	}

	var cf commentsFile
	if s.readJSON(s.commentsPath, "comments", &cf) {
		s.loadComments(cf)
	}

	stats := s.statsLocked()
	updateStoreMetrics(stats)
	s.logger.Info("store loaded",
		zap.String("path", s.patternsPath),
		zap.Int("patterns", stats.TotalPatterns),
		zap.Int("comments", stats.TotalComments))
}

// readJSON decodes path into v. It returns false when the file is missing
// or unusable; the latter is logged and counted.
func (s *Store) readJSON(path, kind string, v any) bool {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	if err != nil {
		LoadFailures.WithLabelValues(kind).Inc()
		s.logger.Warn("store file unreadable, continuing empty",
			zap.String("path", path), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		LoadFailures.WithLabelValues(kind).Inc()
		s.logger.Warn("store file corrupted, continuing empty",
			zap.String("path", path),
			zap.Error(fmt.Errorf("%w: %v", ErrStoreCorrupted, err)))
		s.quarantineFile(path)
		return false
	}
	return true
}

func (s *Store) quarantineFile(path string) {
	if !s.quarantine {
		return
	}
	dest := path + ".corrupt"
	if err := os.Rename(path, dest); err != nil {
		s.logger.Warn("failed to quarantine corrupt store file",
			zap.String("path", path), zap.Error(err))
		return
	}
	s.logger.Info("quarantined corrupt store file",
		zap.String("path", path), zap.String("quarantine", dest))
}

// loadPatterns rebuilds the arena from decoded records. Records are ordered
// by numeric ID, records without a signature are skipped, missing races are
// inferred and duplicate signatures are merged into the first record.
// Caller must hold mu.
func (s *Store) loadPatterns(pf patternsFile) {
	ids := make([]PatternID, 0, len(pf))
	for id := range pf {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := ids[i].Seq(), ids[j].Seq()
		if a != b {
			return a < b
		}
		return ids[i] < ids[j]
	})

	for _, id := range ids {
		p := pf[id]
		if seq := id.Seq(); seq > s.lastSeq {
			s.lastSeq = seq
		}
		if p == nil || p.Signature == nil {
			s.logger.Warn("skipping pattern without signature", zap.String("pattern_id", string(id)))
			continue
		}

		p.ID = id
		p.Keywords = keywords.Merge(nil, p.Keywords)
		if p.SampleCount < 1 {
			p.SampleCount = 1
		}
		if p.StrategyType == "" {
			p.StrategyType = keywords.StrategyUnknown
		}
		p.Confidence = clampConfidence(p.Confidence)
		p.Race = race.Parse(string(p.Race))
		if !p.Race.IsKnown() {
			p.Race = s.classifier.Infer(append(p.Signature.Units(), p.Keywords...))
			if p.Race.IsKnown() {
				s.logger.Debug("inferred race for legacy pattern",
					zap.String("pattern_id", string(id)),
					zap.String("race", p.Race.String()))
			}
		}

		key := p.Signature.Key()
		if existing, dup := s.bySignature[key]; dup {
			s.mergeDuplicate(s.byID[existing], p)
			s.logger.Warn("merged duplicate pattern",
				zap.String("pattern_id", string(id)),
				zap.String("into", string(existing)))
			continue
		}
		s.appendPattern(p, key)
	}
}

// mergeDuplicate folds dup into the pattern at idx. Caller must hold mu.
func (s *Store) mergeDuplicate(idx int, dup *Pattern) {
	p := s.patterns[idx].clone()
	p.Keywords = keywords.Merge(p.Keywords, dup.Keywords)
	p.SampleCount += dup.SampleCount
	p.Confidence = max(p.Confidence, dup.Confidence)
	if dup.LastSeen.After(p.LastSeen) {
		p.LastSeen = dup.LastSeen
		p.Metadata = mergeMetadata(p.Metadata, dup.Metadata)
	}
	if dup.HasPlayerComment && !p.HasPlayerComment {
		p.Comment = dup.Comment
		p.HasPlayerComment = true
		p.StrategyType = dup.StrategyType
	}
	if !p.Race.IsKnown() {
		p.Race = dup.Race
	}
	s.replace(idx, p)
}

// loadComments restores comments and rebuilds their keyword index from the
// comments themselves. Caller must hold mu.
func (s *Store) loadComments(cf commentsFile) {
	for _, c := range cf.Comments {
		if c == nil || c.ID == "" {
			continue
		}
		if _, dup := s.commentByID[c.ID]; dup {
			continue
		}
		c.Keywords = keywords.Merge(nil, c.Keywords)
		s.comments = append(s.comments, c)
		s.commentByID[c.ID] = len(s.comments) - 1
		s.indexComment(c)
	}
}

// RefreshIfStale reloads the store when either data file changed on disk
// since the last load or save. It reports whether a reload happened.
//
// A refresh never runs during a Save of this store, and never replaces
// mutations that have not been saved yet: those win, and the next Save
// overwrites the files on disk.
func (s *Store) RefreshIfStale() bool {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.latestMtime().After(s.loadedMtime) {
		return false
	}
	if s.gen != s.savedGen {
		s.logger.Warn("store files changed on disk with unsaved changes in memory, keeping memory")
		return false
	}
	s.logger.Info("store files changed on disk, reloading")
	s.loadLocked()
	return true
}

func (s *Store) latestMtime() time.Time {
	var latest time.Time
	for _, path := range []string{s.patternsPath, s.commentsPath} {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	return latest
}

// Paths returns the patterns, comments and stats file paths.
func (s *Store) Paths() (patterns, comments, stats string) {
	return s.patternsPath, s.commentsPath, s.statsPath
}
