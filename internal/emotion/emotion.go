// Package emotion provides the keyword-based emotion classifier used to
// branch the scripted intervention.
//
// Classification is a deliberately simple heuristic: substring matching
// against fixed keyword tables. The tables are deployment-time configuration;
// the classifier itself is a pure function over them so the strategy can be
// swapped without touching routing logic.
package emotion

import "strings"

// Emotion is the classification result.
type Emotion string

const (
	Positive Emotion = "positive"
	Negative Emotion = "negative"
	Neutral  Emotion = "neutral"
)

// DefaultPositiveKeywords is the built-in positive keyword set. Keywords are
// lowercase; matching is substring, not whole-word.
var DefaultPositiveKeywords = []string{
	"開心", "快樂", "高興", "興奮", "期待", "喜歡", "幸福", "很棒", "太好了", "不錯", "順利",
	"happy", "great", "good", "excited", "love",
}

// DefaultNegativeKeywords is the built-in negative keyword set.
var DefaultNegativeKeywords = []string{
	"難過", "傷心", "生氣", "煩", "累", "壓力", "討厭", "哭", "焦慮", "沮喪", "不爽", "委屈",
	"sad", "angry", "tired", "stress", "upset", "hate",
}

// Classifier maps free text to an Emotion using its keyword tables.
type Classifier struct {
	positive []string
	negative []string
}

// NewClassifier creates a classifier with the default keyword tables.
func NewClassifier() *Classifier {
	return NewClassifierWithKeywords(DefaultPositiveKeywords, DefaultNegativeKeywords)
}

// NewClassifierWithKeywords creates a classifier with custom keyword tables.
// Keywords are matched case-insensitively as substrings.
func NewClassifierWithKeywords(positive, negative []string) *Classifier {
	lower := func(words []string) []string {
		out := make([]string, 0, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				out = append(out, w)
			}
		}
		return out
	}
	return &Classifier{positive: lower(positive), negative: lower(negative)}
}

// Classify returns the emotion detected in text. Positive keywords are tested
// before negative ones, so a text containing hits from both sets classifies
// as Positive. No hit from either set classifies as Neutral.
func (c *Classifier) Classify(text string) Emotion {
	lowered := strings.ToLower(text)
	for _, kw := range c.positive {
		if strings.Contains(lowered, kw) {
			return Positive
		}
	}
	for _, kw := range c.negative {
		if strings.Contains(lowered, kw) {
			return Negative
		}
	}
	return Neutral
}
