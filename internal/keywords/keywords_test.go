package keywords

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractor_Clean(t *testing.T) {
	e := NewExtractor()
	tests := []struct {
		in   string
		want string
	}{
		{"12 Pool RUSH!!", "12 pool rush"},
		{"  fast   pool,\tinto zerglings. ", "fast pool into zerglings"},
		{"All-in with he's -dash-", "all-in with he's dash"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Clean(tt.in))
		})
	}
}

func TestExtractor_Extract(t *testing.T) {
	e := NewExtractor()
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"numbers kept", "12 pool rush", []string{"12", "pool", "rush"}},
		{"stopwords dropped", "fast pool into zerglings", []string{"fast", "pool", "zerglings"}},
		{"deduplicated case-insensitive", "DTs and more dts", []string{"dts", "more"}},
		{"hyphenated words split", "All-in! The DTs", []string{"all-in", "all", "dts"}},
		{"single letters dropped", "x y proxy", []string{"proxy"}},
		{"empty", "   ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Extract(tt.in))
		})
	}
}

func TestExtractor_Options(t *testing.T) {
	e := NewExtractor(WithStopwords("Pool"), WithMinLength(5))
	assert.Equal(t, []string{"12", "zerglings"}, e.Extract("12 pool fast zerglings"))
}

func TestMerge(t *testing.T) {
	got := Merge([]string{"pool", "Rush"}, []string{"rush", "zerglings", " ", "POOL"})
	assert.Equal(t, []string{"pool", "rush", "zerglings"}, got)
	assert.Empty(t, Merge(nil, nil))
}

func TestStrategyClassifier_Classify(t *testing.T) {
	c := NewStrategyClassifier()
	tests := []struct {
		text string
		want StrategyType
	}{
		{"proxy rax reaper", StrategyProxy},
		{"cannon rush at my natural", StrategyCheese},
		{"12 pool rush", StrategyCheese},
		{"fast pool into zerglings", StrategyRush},
		{"one base all-in with roaches", StrategyAllIn},
		{"4 gate push at 6 minutes", StrategyTiming},
		{"mass void rays off two bases", StrategyAir},
		{"DTs off a dark shrine", StrategyTech},
		{"turtled behind cannons", StrategyDefensive},
		{"hatch first, three base greedy", StrategyMacro},
		{"gg", StrategyUnknown},
		{"", StrategyUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.text))
		})
	}
}

func TestStrategyClassifier_ClassifyCommentFallsBackToKeywords(t *testing.T) {
	c := NewStrategyClassifier()
	assert.Equal(t, StrategyAir, c.ClassifyComment("gg wp", []string{"mutas"}))
	assert.Equal(t, StrategyRush, c.ClassifyComment("rush", []string{"mutas"}))
	assert.Equal(t, StrategyUnknown, c.ClassifyComment("gg", nil))
}
