package http

import (
	"github.com/fyrsmithlabs/buildscout/internal/buildorder"
	"github.com/fyrsmithlabs/buildscout/internal/learning"
	"github.com/fyrsmithlabs/buildscout/internal/matcher"
	"github.com/fyrsmithlabs/buildscout/internal/patternstore"
	"github.com/fyrsmithlabs/buildscout/internal/similarity"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Patterns int    `json:"patterns"`
}

// MatchRequest is the request body for POST /api/v1/match.
type MatchRequest struct {
	Race       string           `json:"race"`
	BuildOrder buildorder.Input `json:"build_order"`
	// MinSimilarity overrides the configured floor when set.
	MinSimilarity *float64 `json:"min_similarity,omitempty"`
	// Limit caps the number of matches; 0 uses the configured limit.
	Limit   int  `json:"limit,omitempty"`
	Explain bool `json:"explain,omitempty"`
}

// MatchItem is one ranked pattern.
type MatchItem struct {
	PatternID    string                `json:"pattern_id"`
	Similarity   float64               `json:"similarity"`
	Comment      string                `json:"comment"`
	StrategyType string                `json:"strategy_type"`
	Confidence   float64               `json:"confidence"`
	SampleCount  int                   `json:"sample_count"`
	Keywords     []string              `json:"keywords"`
	Verified     bool                  `json:"verified"`
	Breakdown    *similarity.Breakdown `json:"breakdown,omitempty"`
}

// MatchResponse is the response body for POST /api/v1/match.
type MatchResponse struct {
	Race    string      `json:"race"`
	Matches []MatchItem `json:"matches"`
}

// NewMatchItems converts matcher results, keeping the score breakdown when
// explain is set.
func NewMatchItems(results []matcher.Result, explain bool) []MatchItem {
	out := make([]MatchItem, 0, len(results))
	for _, res := range results {
		item := MatchItem{
			PatternID:    string(res.Pattern.ID),
			Similarity:   res.Similarity,
			Comment:      res.Pattern.Comment,
			StrategyType: string(res.Pattern.StrategyType),
			Confidence:   res.Pattern.Confidence,
			SampleCount:  res.Pattern.SampleCount,
			Keywords:     res.Pattern.Keywords,
			Verified:     res.Pattern.HasPlayerComment,
		}
		if explain {
			b := res.Breakdown
			item.Breakdown = &b
		}
		out = append(out, item)
	}
	return out
}

// LearnRequest is the request body for POST /api/v1/learn.
type LearnRequest struct {
	Comment      string                 `json:"comment"`
	MachineGuess bool                   `json:"machine_guess,omitempty"`
	Game         patternstore.GameInput `json:"game"`
}

// LearnResponse is the response body for POST /api/v1/learn.
type LearnResponse struct {
	PatternID   string   `json:"pattern_id"`
	CommentID   string   `json:"comment_id"`
	Created     bool     `json:"created"`
	SampleCount int      `json:"sample_count"`
	Race        string   `json:"race"`
	Strategy    string   `json:"strategy"`
	Keywords    []string `json:"keywords"`
}

// NewLearnResponse converts a learn result.
func NewLearnResponse(res learning.LearnResult) LearnResponse {
	return LearnResponse{
		PatternID:   string(res.PatternID),
		CommentID:   res.CommentID,
		Created:     res.Created,
		SampleCount: res.SampleCount,
		Race:        res.Race.String(),
		Strategy:    string(res.Strategy),
		Keywords:    res.Keywords,
	}
}

// EditRequest is the request body for POST /api/v1/patterns/edit. Key is a
// pattern ID, opponent, date or opponent@date.
type EditRequest struct {
	Key     string `json:"key"`
	Comment string `json:"comment"`
}

// EditResponse is the response body for POST /api/v1/patterns/edit.
type EditResponse struct {
	PatternID string   `json:"pattern_id"`
	Strategy  string   `json:"strategy"`
	Keywords  []string `json:"keywords"`
}

// NewEditResponse converts an edit result.
func NewEditResponse(res learning.EditResult) EditResponse {
	return EditResponse{
		PatternID: string(res.PatternID),
		Strategy:  string(res.Strategy),
		Keywords:  res.Keywords,
	}
}

// PatternView is a stored pattern with its ID, which the store's JSON
// encoding leaves out.
type PatternView struct {
	ID string `json:"pattern_id"`
	patternstore.Pattern
}

// NewPatternViews wraps patterns for output.
func NewPatternViews(patterns []patternstore.Pattern) []PatternView {
	out := make([]PatternView, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, PatternView{ID: string(p.ID), Pattern: p})
	}
	return out
}
