// Package metrics computes text metrics (word count, readability grade,
// checksum) for regulation text and aggregates them per part, per section
// and per title.
package metrics

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"regexp"
	"strings"
)

// TextMetrics are the measurements of one unit of text.
type TextMetrics struct {
	WordCount   int     `json:"word_count"`
	Readability float64 `json:"readability"`
	Checksum    string  `json:"checksum,omitempty"`
}

// Engine measures text. Implementations must be safe for concurrent use.
type Engine interface {
	Measure(text string) TextMetrics
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(text string) TextMetrics

// Measure calls f(text).
func (f EngineFunc) Measure(text string) TextMetrics {
	return f(text)
}

var (
	sentenceSplit = regexp.MustCompile(`[.!?]+`)
	wordPattern   = regexp.MustCompile(`\w+`)
	vowelGroup    = regexp.MustCompile(`[aeiouy]+`)
)

// FleschKincaid is the default engine: whitespace word count, MD5 checksum
// and Flesch-Kincaid grade level.
type FleschKincaid struct{}

// Measure implements Engine.
func (FleschKincaid) Measure(text string) TextMetrics {
	return TextMetrics{
		WordCount:   WordCount(text),
		Readability: FleschKincaidGrade(text),
		Checksum:    Checksum(text),
	}
}

// WordCount counts whitespace-separated tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Checksum returns the hex MD5 digest of text.
func Checksum(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// FleschKincaidGrade returns
//
//	0.39*(words/sentences) + 11.8*(syllables/words) - 15.59
//
// rounded to two decimals, or 0 for text without words.
func FleschKincaidGrade(text string) float64 {
	words := wordPattern.FindAllString(text, -1)
	if len(words) == 0 {
		return 0
	}

	sentences := 0
	for _, fragment := range sentenceSplit.Split(text, -1) {
		if strings.TrimSpace(fragment) != "" {
			sentences++
		}
	}
	if sentences == 0 {
		sentences = 1
	}

	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}

	grade := 0.39*(float64(len(words))/float64(sentences)) +
		11.8*(float64(syllables)/float64(len(words))) - 15.59
	return math.Round(grade*100) / 100
}

// countSyllables approximates syllables as vowel groups. Tokens without
// vowels, such as section numbers, count zero.
func countSyllables(word string) int {
	return len(vowelGroup.FindAllString(strings.ToLower(word), -1))
}
