package patternstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/fyrsmithlabs/buildscout/internal/buildorder"
	"github.com/fyrsmithlabs/buildscout/internal/keywords"
	"github.com/fyrsmithlabs/buildscout/internal/race"
)

// Confidence levels assigned to patterns.
const (
	MachineConfidence  = 0.5
	PlayerConfidence   = 0.8
	VerifiedConfidence = 0.9
	RecurrenceStep     = 0.05
)

// PatternID is the persisted key of a pattern, e.g. "pattern_007".
type PatternID string

const patternIDPrefix = "pattern_"

func formatPatternID(seq int) PatternID {
	return PatternID(fmt.Sprintf("%s%03d", patternIDPrefix, seq))
}

// Seq returns the numeric suffix of the ID, or 0 if it has none.
func (id PatternID) Seq() int {
	n, err := strconv.Atoi(strings.TrimPrefix(string(id), patternIDPrefix))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// GameMetadata describes the match a pattern or comment came from. The
// store treats it as opaque apart from the lookup fields.
type GameMetadata struct {
	Opponent   string                `json:"opponent,omitempty"`
	Map        string                `json:"map,omitempty"`
	Date       string                `json:"date,omitempty"`
	Result     string                `json:"result,omitempty"`
	Duration   buildorder.Seconds    `json:"duration,omitempty"`
	Race       race.Race             `json:"race,omitempty"`
	BuildOrder buildorder.BuildOrder `json:"build_order,omitempty"`
}

// MatchesLookup reports whether key names this game by opponent, date or
// "opponent@date". Comparison is case-insensitive.
func (m GameMetadata) MatchesLookup(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	if m.Opponent != "" && strings.EqualFold(key, m.Opponent) {
		return true
	}
	if m.Date != "" && strings.EqualFold(key, m.Date) {
		return true
	}
	return m.Opponent != "" && m.Date != "" && strings.EqualFold(key, m.Opponent+"@"+m.Date)
}

// GameInput is game metadata as submitted by a client. Skipped holds one
// error per build order entry dropped while decoding.
type GameInput struct {
	GameMetadata
	Skipped []error `json:"-"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (g *GameInput) UnmarshalJSON(data []byte) error {
	var meta GameMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return err
	}
	var bo struct {
		BuildOrder buildorder.Input `json:"build_order"`
	}
	if err := json.Unmarshal(data, &bo); err != nil {
		return err
	}
	meta.BuildOrder = bo.BuildOrder.Steps
	g.GameMetadata, g.Skipped = meta, bo.BuildOrder.Skipped
	return nil
}

// Pattern is one learned strategy. Patterns held by the store are never
// mutated in place; updates replace the record.
type Pattern struct {
	ID               PatternID             `json:"-"`
	Signature        *buildorder.Signature `json:"signature"`
	Keywords         []string              `json:"keywords"`
	Comment          string                `json:"comment"`
	SampleCount      int                   `json:"sample_count"`
	LastSeen         time.Time             `json:"last_seen"`
	StrategyType     keywords.StrategyType `json:"strategy_type"`
	Race             race.Race             `json:"race"`
	Confidence       float64               `json:"confidence"`
	Metadata         GameMetadata          `json:"game_metadata"`
	HasPlayerComment bool                  `json:"has_player_comment"`
}

func (p *Pattern) clone() *Pattern {
	c := *p
	c.Keywords = append([]string(nil), p.Keywords...)
	return &c
}

// Comment is one raw comment as written by a player or generated for an
// unlabeled game.
type Comment struct {
	ID               string       `json:"id"`
	PatternID        PatternID    `json:"pattern_id,omitempty"`
	RawText          string       `json:"raw_text"`
	CleanedText      string       `json:"cleaned_text"`
	Keywords         []string     `json:"keywords"`
	Metadata         GameMetadata `json:"game_metadata"`
	Timestamp        time.Time    `json:"timestamp"`
	HasPlayerComment bool         `json:"has_player_comment"`
}

func (c *Comment) clone() *Comment {
	cp := *c
	cp.Keywords = append([]string(nil), c.Keywords...)
	return &cp
}

// Stats summarizes the store. It is derived data and safe to regenerate.
type Stats struct {
	TotalPatterns  int               `json:"total_patterns"`
	TotalComments  int               `json:"total_comments"`
	TotalKeywords  int               `json:"total_keywords"`
	MachineGuessed int               `json:"machine_guessed"`
	PlayerVerified int               `json:"player_verified"`
	ByRace         map[race.Race]int `json:"by_race"`
	LastSaved      time.Time         `json:"last_saved,omitempty"`
}

// UpsertRequest carries one observation of a signature.
type UpsertRequest struct {
	Signature        *buildorder.Signature
	Comment          string
	Keywords         []string
	Race             race.Race
	Metadata         GameMetadata
	HasPlayerComment bool
	StrategyType     keywords.StrategyType
}

// UpsertResult reports what Upsert did.
type UpsertResult struct {
	ID          PatternID
	Created     bool
	SampleCount int
}

type patternsFile map[PatternID]*Pattern

type commentsFile struct {
	Comments     []*Comment          `json:"comments"`
	KeywordIndex map[string][]string `json:"keyword_index"`
}
