package pattern

import (
	"fmt"
	"sort"
)

// Match is one citation-shaped substring found in a paragraph.
type Match struct {
	Kind   Kind   `json:"kind"`
	Text   string `json:"text"`
	Offset int    `json:"offset"`
}

// Matcher applies a compiled PatternSet to paragraph text.
type Matcher struct {
	set *PatternSet
}

// NewMatcher creates a Matcher, compiling the set if necessary.
func NewMatcher(set *PatternSet) (*Matcher, error) {
	if set == nil {
		return nil, fmt.Errorf("pattern set cannot be nil")
	}
	if !set.IsCompiled() {
		if err := set.Compile(); err != nil {
			return nil, err
		}
	}
	return &Matcher{set: set}, nil
}

// DefaultMatcher returns a Matcher over the built-in pattern set.
func DefaultMatcher() *Matcher {
	return &Matcher{set: DefaultSet()}
}

// Set returns the pattern set backing the matcher.
func (m *Matcher) Set() *PatternSet {
	return m.set
}

// HasCue reports whether text contains at least one contextual cue phrase.
func (m *Matcher) HasCue(text string) bool {
	return m.set.compiled.Cue.MatchString(text)
}

// Matches returns every category match in text, grouped by category in
// declaration order and by offset within a category. Matches from different
// categories may overlap.
func (m *Matcher) Matches(text string) []Match {
	var matches []Match
	for i, re := range m.set.compiled.Categories {
		kind := m.set.Categories[i].Kind
		for _, loc := range re.FindAllStringIndex(text, -1) {
			matches = append(matches, Match{
				Kind:   kind,
				Text:   text[loc[0]:loc[1]],
				Offset: loc[0],
			})
		}
	}
	return matches
}

// References returns the distinct matched substrings of text, sorted.
// The cue gate is not applied.
func (m *Matcher) References(text string) []string {
	seen := make(map[string]bool)
	var refs []string
	for _, match := range m.Matches(text) {
		if seen[match.Text] {
			continue
		}
		seen[match.Text] = true
		refs = append(refs, match.Text)
	}
	sort.Strings(refs)
	return refs
}

// Scan applies the cue gate and then the category patterns. It returns nil
// when text has no cue phrase or no citation match.
func (m *Matcher) Scan(text string) []string {
	if !m.HasCue(text) {
		return nil
	}
	return m.References(text)
}

// Classify returns the kinds whose pattern matches the whole reference string.
func (m *Matcher) Classify(reference string) []Kind {
	var kinds []Kind
	for i, re := range m.set.compiled.Categories {
		if loc := re.FindStringIndex(reference); loc != nil && loc[0] == 0 && loc[1] == len(reference) {
			kinds = append(kinds, m.set.Categories[i].Kind)
		}
	}
	return kinds
}
