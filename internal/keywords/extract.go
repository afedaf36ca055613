// Package keywords turns free-text game comments into the cleaned text,
// keyword set and strategy label stored alongside a pattern.
package keywords

import (
	"strings"
	"unicode"
)

// defaultStopwords are dropped from keyword sets. Strategy words such as
// "rush" or "all" are deliberately absent.
var defaultStopwords = []string{
	"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for", "of",
	"with", "by", "from", "as", "is", "was", "are", "be", "been", "being",
	"have", "has", "had", "do", "does", "did", "will", "would", "could",
	"should", "may", "might", "can", "this", "that", "these", "those", "i",
	"you", "he", "she", "it", "we", "they", "what", "which", "who", "when",
	"where", "why", "how", "into", "then", "just", "very", "really", "so",
	"his", "her", "their", "my", "me", "him", "them", "got", "went", "game",
}

// Extractor cleans comments and extracts keywords. It is safe for
// concurrent use once constructed.
type Extractor struct {
	stopwords map[string]struct{}
	minLength int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithStopwords adds words to the stopword list.
func WithStopwords(words ...string) Option {
	return func(e *Extractor) {
		for _, w := range words {
			e.stopwords[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
		}
	}
}

// WithMinLength sets the shortest alphabetic token kept as a keyword.
// Numeric tokens such as "12" are always kept.
func WithMinLength(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.minLength = n
		}
	}
}

// NewExtractor creates an extractor with the built-in stopword list.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		stopwords: make(map[string]struct{}, len(defaultStopwords)),
		minLength: 2,
	}
	for _, w := range defaultStopwords {
		e.stopwords[w] = struct{}{}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Clean lowercases text, replaces punctuation with spaces and collapses
// whitespace. Hyphens and apostrophes inside words are kept.
func (e *Extractor) Clean(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	runes := []rune(strings.ToLower(text))
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case (r == '-' || r == '\'') && i > 0 && i < len(runes)-1 && isWordRune(runes[i-1]) && isWordRune(runes[i+1]):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Extract returns the distinct keywords of text in first-seen order.
func (e *Extractor) Extract(text string) []string {
	tokens := tokenize(e.Clean(text))
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, stop := e.stopwords[tok]; stop {
			continue
		}
		if !isNumeric(tok) && len([]rune(tok)) < e.minLength {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// Merge returns the union of a and b, lowercased, keeping a's order first.
func Merge(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, k := range list {
			k = strings.ToLower(strings.TrimSpace(k))
			if k == "" {
				continue
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}

// tokenize splits cleaned text into words. Hyphenated words yield the whole
// word followed by its parts, so "all-in" indexes as "all-in", "all", "in".
func tokenize(cleaned string) []string {
	fields := strings.Fields(cleaned)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if f == "" {
			continue
		}
		out = append(out, f)
		if strings.Contains(f, "-") {
			for _, part := range strings.Split(f, "-") {
				if part != "" {
					out = append(out, part)
				}
			}
		}
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
