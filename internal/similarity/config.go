package similarity

import (
	"errors"
	"fmt"
)

// TimingBucket assigns Weight to items first seen at or before UpTo seconds.
type TimingBucket struct {
	UpTo   float64 `koanf:"up_to" json:"up_to"`
	Weight float64 `koanf:"weight" json:"weight"`
}

// TimingBonusStep grants Bonus when two occurrences are at most MaxDelta
// seconds apart.
type TimingBonusStep struct {
	MaxDelta float64 `koanf:"max_delta" json:"max_delta"`
	Bonus    float64 `koanf:"bonus" json:"bonus"`
}

// Config holds the weights and penalty bands used by the Scorer.
//
// The expansion multipliers and critical-tech bands are hand-tuned defaults
// with no documented derivation; they are configurable so they can be
// calibrated against labeled games.
type Config struct {
	// TimingBuckets must be sorted by UpTo ascending. Items later than the
	// last bucket get LateWeight.
	TimingBuckets []TimingBucket `koanf:"timing_buckets" json:"timing_buckets"`
	LateWeight    float64        `koanf:"late_weight" json:"late_weight"`

	// TechBonus multiplies the weight of tech-path structures.
	TechBonus float64 `koanf:"tech_bonus" json:"tech_bonus"`

	// TimingBonusSteps must be sorted by MaxDelta ascending. Gaps larger than
	// the last step get TimingBonusFloor.
	TimingBonusSteps []TimingBonusStep `koanf:"timing_bonus_steps" json:"timing_bonus_steps"`
	TimingBonusFloor float64           `koanf:"timing_bonus_floor" json:"timing_bonus_floor"`

	// CriticalRatioThreshold splits the steep and gentle penalty bands.
	// Below it the penalty rises from CriticalFloor to CriticalMidpoint;
	// above it from CriticalMidpoint to 1.0.
	CriticalRatioThreshold float64 `koanf:"critical_ratio_threshold" json:"critical_ratio_threshold"`
	CriticalMidpoint       float64 `koanf:"critical_midpoint" json:"critical_midpoint"`
	CriticalFloor          float64 `koanf:"critical_floor" json:"critical_floor"`

	// ExpansionMultipliers[d] applies when the expansion counts differ by d.
	// Larger differences get ExpansionFloor.
	ExpansionMultipliers []float64 `koanf:"expansion_multipliers" json:"expansion_multipliers"`
	ExpansionFloor       float64   `koanf:"expansion_floor" json:"expansion_floor"`
}

// DefaultConfig returns the stock scoring constants.
func DefaultConfig() Config {
	return Config{
		TimingBuckets: []TimingBucket{
			{UpTo: 180, Weight: 3.0},
			{UpTo: 300, Weight: 2.0},
			{UpTo: 480, Weight: 1.5},
		},
		LateWeight: 1.0,
		TechBonus:  1.5,
		TimingBonusSteps: []TimingBonusStep{
			{MaxDelta: 15, Bonus: 1.0},
			{MaxDelta: 30, Bonus: 0.9},
			{MaxDelta: 60, Bonus: 0.75},
			{MaxDelta: 120, Bonus: 0.5},
		},
		TimingBonusFloor:       0.3,
		CriticalRatioThreshold: 0.5,
		CriticalMidpoint:       0.5,
		CriticalFloor:          0,
		ExpansionMultipliers:   []float64{1.0, 0.6, 0.3},
		ExpansionFloor:         0.1,
	}
}

// Validate checks that the constants describe a score in [0,1].
func (c Config) Validate() error {
	for i, b := range c.TimingBuckets {
		if b.Weight < 0 {
			return fmt.Errorf("timing bucket %d: negative weight", i)
		}
		if i > 0 && b.UpTo <= c.TimingBuckets[i-1].UpTo {
			return fmt.Errorf("timing bucket %d: bounds must increase", i)
		}
	}
	if c.LateWeight < 0 || c.TechBonus < 0 {
		return errors.New("weights must be non-negative")
	}
	for i, s := range c.TimingBonusSteps {
		if s.Bonus < 0 || s.Bonus > 1 {
			return fmt.Errorf("timing bonus step %d: bonus must be in [0,1]", i)
		}
		if i > 0 && s.MaxDelta <= c.TimingBonusSteps[i-1].MaxDelta {
			return fmt.Errorf("timing bonus step %d: bounds must increase", i)
		}
	}
	if !unit(c.TimingBonusFloor) || !unit(c.CriticalMidpoint) || !unit(c.CriticalFloor) || !unit(c.ExpansionFloor) {
		return errors.New("floors and midpoints must be in [0,1]")
	}
	if c.CriticalRatioThreshold <= 0 || c.CriticalRatioThreshold >= 1 {
		return errors.New("critical ratio threshold must be in (0,1)")
	}
	if c.CriticalFloor > c.CriticalMidpoint {
		return errors.New("critical floor must not exceed midpoint")
	}
	for i, m := range c.ExpansionMultipliers {
		if !unit(m) {
			return fmt.Errorf("expansion multiplier %d must be in [0,1]", i)
		}
	}
	return nil
}

func unit(v float64) bool { return v >= 0 && v <= 1 }
