// Package buildorder models recorded build orders and derives the matching
// representations used by the engine: strategic items and signatures.
//
// Build orders arrive in two historical shapes, plain strings and structured
// objects. Both decode into Entry and are normalized into Step at the
// ingestion boundary; everything downstream only sees Step.
package buildorder

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/buildscout/internal/validation"
)

var (
	// ErrMalformedEntry is returned when an entry lacks a name, time or cost.
	ErrMalformedEntry = errors.New("malformed build order entry")

	// ErrInvalidTime is returned when a time value cannot be read as seconds.
	ErrInvalidTime = errors.New("invalid time value")
)

// Seconds is a game-clock offset in whole seconds. It decodes from JSON
// numbers as well as from "m:ss", "h:mm:ss" and numeric strings, so stored
// records written with either representation compare equal.
type Seconds int

// ParseSeconds reads "2:00", "1:02:03", "120" or "120.4" as seconds.
func ParseSeconds(s string) (Seconds, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidTime)
	}

	if !strings.Contains(s, ":") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		return Seconds(math.Round(f)), nil
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		total = total*60 + n
	}
	return Seconds(total), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Seconds) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		v, err := ParseSeconds(str)
		if err != nil {
			return err
		}
		*s = v
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTime, data)
	}
	if f < 0 {
		return fmt.Errorf("%w: negative %v", ErrInvalidTime, f)
	}
	*s = Seconds(math.Round(f))
	return nil
}

// Float returns the value as float64 seconds.
func (s Seconds) Float() float64 { return float64(s) }

// String formats the value as m:ss.
func (s Seconds) String() string {
	return fmt.Sprintf("%d:%02d", int(s)/60, int(s)%60)
}

// Step is a single recorded action. ResourceCost carries the supply count at
// which the action was taken.
type Step struct {
	Name         string  `json:"name" validate:"required"`
	ResourceCost int     `json:"resource_cost" validate:"gte=0"`
	Time         Seconds `json:"time_seconds" validate:"gte=0"`
}

type entryKind int

const (
	entryStructured entryKind = iota
	entryPlain
)

// Entry is one raw build order entry in either historical shape.
type Entry struct {
	kind entryKind
	text string
	name string
	cost *int
	time *Seconds
}

// PlainEntry wraps a "<supply> <m:ss> <Name>" line.
func PlainEntry(text string) Entry {
	return Entry{kind: entryPlain, text: text}
}

// StructuredEntry builds a structured entry with all fields present.
func StructuredEntry(name string, cost int, seconds Seconds) Entry {
	return Entry{kind: entryStructured, name: name, cost: &cost, time: &seconds}
}

// rawEntry accepts both the current and the legacy key names.
type rawEntry struct {
	Name         string   `json:"name"`
	Supply       *int     `json:"supply"`
	ResourceCost *int     `json:"resource_cost"`
	Time         *Seconds `json:"time"`
	TimeSeconds  *Seconds `json:"time_seconds"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Entry) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*e = PlainEntry(text)
		return nil
	}

	var raw rawEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}
	cost := raw.ResourceCost
	if cost == nil {
		cost = raw.Supply
	}
	t := raw.TimeSeconds
	if t == nil {
		t = raw.Time
	}
	*e = Entry{kind: entryStructured, name: raw.Name, cost: cost, time: t}
	return nil
}

var plainEntryPattern = regexp.MustCompile(`^\s*(\d+)\s+(\d+(?::\d{1,2}){1,2})\s+(.+?)\s*$`)

// Normalize converts the entry into a Step, or returns ErrMalformedEntry
// when a name, time or cost is missing or invalid.
func (e Entry) Normalize() (Step, error) {
	var step Step

	switch e.kind {
	case entryPlain:
		m := plainEntryPattern.FindStringSubmatch(e.text)
		if m == nil {
			return Step{}, fmt.Errorf("%w: %q", ErrMalformedEntry, e.text)
		}
		cost, err := strconv.Atoi(m[1])
		if err != nil {
			return Step{}, fmt.Errorf("%w: %q", ErrMalformedEntry, e.text)
		}
		t, err := ParseSeconds(m[2])
		if err != nil {
			return Step{}, fmt.Errorf("%w: %v", ErrMalformedEntry, err)
		}
		step = Step{Name: m[3], ResourceCost: cost, Time: t}
	default:
		if e.cost == nil || e.time == nil {
			return Step{}, fmt.Errorf("%w: %q missing cost or time", ErrMalformedEntry, e.name)
		}
		step = Step{Name: strings.TrimSpace(e.name), ResourceCost: *e.cost, Time: *e.time}
	}

	if err := validation.Struct(&step); err != nil {
		return Step{}, fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}
	return step, nil
}

// NormalizeEntries converts entries to steps, skipping malformed ones
// individually. The returned errors describe every skipped entry.
func NormalizeEntries(entries []Entry) ([]Step, []error) {
	steps := make([]Step, 0, len(entries))
	var skipped []error
	for i, e := range entries {
		step, err := e.Normalize()
		if err != nil {
			skipped = append(skipped, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		steps = append(steps, step)
	}
	return steps, skipped
}

// BuildOrder is an ordered sequence of steps. It decodes from a JSON array
// of entries in either shape, dropping malformed entries. Decode reports
// which entries were dropped.
type BuildOrder []Step

// UnmarshalJSON implements json.Unmarshaler.
func (b *BuildOrder) UnmarshalJSON(data []byte) error {
	steps, _, err := Decode(data)
	if err != nil {
		return err
	}
	*b = steps
	return nil
}

// Decode decodes a JSON array of entries into steps. Entries that cannot be
// decoded or normalized are skipped individually; skipped holds one error
// per dropped entry. Only input that is not an array fails.
func Decode(data []byte) (steps BuildOrder, skipped []error, err error) {
	var rawItems []json.RawMessage
	if err := json.Unmarshal(data, &rawItems); err != nil {
		return nil, nil, fmt.Errorf("decode build order: %w", err)
	}
	steps = make(BuildOrder, 0, len(rawItems))
	for i, item := range rawItems {
		var e Entry
		if err := json.Unmarshal(item, &e); err != nil {
			skipped = append(skipped, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		step, err := e.Normalize()
		if err != nil {
			skipped = append(skipped, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		steps = append(steps, step)
	}
	return steps, skipped, nil
}

// Input is a build order submitted by a client. Skipped holds one error per
// entry dropped while decoding, for the caller to report.
type Input struct {
	Steps   BuildOrder
	Skipped []error
}

// UnmarshalJSON implements json.Unmarshaler.
func (in *Input) UnmarshalJSON(data []byte) error {
	steps, skipped, err := Decode(data)
	if err != nil {
		return err
	}
	in.Steps, in.Skipped = steps, skipped
	return nil
}

// MarshalJSON encodes the kept steps.
func (in Input) MarshalJSON() ([]byte, error) {
	return json.Marshal(in.Steps)
}

// LogSkipped logs each skipped entry at Debug.
func LogSkipped(logger *zap.Logger, skipped []error) {
	if logger == nil {
		return
	}
	for _, err := range skipped {
		logger.Debug("skipped malformed build order entry", zap.Error(err))
	}
}
