package keywords

import (
	"regexp"
	"strings"
)

// StrategyType is the derived label stored on a pattern.
type StrategyType string

const (
	StrategyProxy     StrategyType = "proxy"
	StrategyCheese    StrategyType = "cheese"
	StrategyRush      StrategyType = "rush"
	StrategyAllIn     StrategyType = "all-in"
	StrategyTiming    StrategyType = "timing"
	StrategyAir       StrategyType = "air"
	StrategyTech      StrategyType = "tech"
	StrategyDefensive StrategyType = "defensive"
	StrategyMacro     StrategyType = "macro"
	StrategyUnknown   StrategyType = "unknown"
)

// strategyRule pairs a compiled regex with the label it detects.
// Rules are evaluated in order; the first match wins.
type strategyRule struct {
	regex    *regexp.Regexp
	strategy StrategyType
}

// StrategyClassifier labels comments with a StrategyType.
// Thread-safe: all patterns are compiled at construction time.
type StrategyClassifier struct {
	rules []*strategyRule
}

// NewStrategyClassifier creates a classifier with the built-in rules.
func NewStrategyClassifier() *StrategyClassifier {
	return &StrategyClassifier{rules: buildStrategyRules()}
}

// buildStrategyRules returns ordered rules. Proxy and cheese are listed
// before rush because "cannon rush" and "proxy rax rush" are more specific.
func buildStrategyRules() []*strategyRule {
	return []*strategyRule{
		{
			regex:    regexp.MustCompile(`(?i)\bproxy(?:\s*(?:rax|gate|gates|barracks|hatch|stargate|robo))?\b`),
			strategy: StrategyProxy,
		},
		{
			regex:    regexp.MustCompile(`(?i)\b(?:cheese|cheesy|cannon\s*rush|bunker\s*rush|(?:6|7|8|9|10|12)\s*pool|early\s*pool|worker\s*rush|nydus\s*(?:rush|all-?in))\b`),
			strategy: StrategyCheese,
		},
		{
			regex:    regexp.MustCompile(`(?i)\b(?:all-?in|one\s*base|1\s*base|no\s*expan\w*)\b`),
			strategy: StrategyAllIn,
		},
		{
			regex:    regexp.MustCompile(`(?i)\b(?:rush|rushed|rushing|fast\s+(?:pool|lings?|zerglings?|reapers?|zealots?)|ling\s*flood)\b`),
			strategy: StrategyRush,
		},
		{
			regex:    regexp.MustCompile(`(?i)\b(?:timing(?:\s*attack|\s*push)?|push\s+at|hit\s+at|\d+\s*(?:gate|rax|hatch|roach)\s*(?:push|attack|timing))\b`),
			strategy: StrategyTiming,
		},
		{
			regex:    regexp.MustCompile(`(?i)\b(?:sky\s*toss|air|mutas?|mutalisks?|void\s*rays?|carriers?|tempests?|banshees?|bcs?|battlecruisers?|brood\s*lords?|phoenix(?:es)?|oracles?|liberators?)\b`),
			strategy: StrategyAir,
		},
		{
			regex:    regexp.MustCompile(`(?i)\b(?:dts?|dark\s*templars?|dark\s*shrine|lurkers?|tech|fast\s+(?:lair|hive|robo|twilight)|blink|ghosts?|nukes?|swarm\s*hosts?)\b`),
			strategy: StrategyTech,
		},
		{
			regex:    regexp.MustCompile(`(?i)\b(?:defensive|defen[cs]e|turtle|turtling|cannons?|spines?|spine\s*crawlers?|bunkers?|batteries|shield\s*batter(?:y|ies)|walled?)\b`),
			strategy: StrategyDefensive,
		},
		{
			regex:    regexp.MustCompile(`(?i)\b(?:macro|greedy|fast\s*expand|expand|expansion|hatch\s*first|cc\s*first|nexus\s*first|three\s*(?:hatch|base)|3\s*(?:hatch|base)|double\s*expand)\b`),
			strategy: StrategyMacro,
		},
	}
}

// Classify labels text with the first matching rule, or StrategyUnknown.
func (c *StrategyClassifier) Classify(text string) StrategyType {
	if strings.TrimSpace(text) == "" {
		return StrategyUnknown
	}
	for _, rule := range c.rules {
		if rule.regex.MatchString(text) {
			return rule.strategy
		}
	}
	return StrategyUnknown
}

// ClassifyComment labels a comment using its text and keyword set.
func (c *StrategyClassifier) ClassifyComment(text string, keywords []string) StrategyType {
	if s := c.Classify(text); s != StrategyUnknown {
		return s
	}
	return c.Classify(strings.Join(keywords, " "))
}
