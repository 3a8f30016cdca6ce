// Package pattern provides the citation pattern sets used to detect informal
// cross-references in regulatory text, and a registry that loads them from
// YAML files.
package pattern

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kind tags the citation category a pattern detects.
type Kind string

const (
	KindSection  Kind = "section"
	KindPart     Kind = "part"
	KindSubpart  Kind = "subpart"
	KindAppendix Kind = "appendix"
	KindTitle    Kind = "title"
	KindUSCode   Kind = "usc"
)

// DefaultSetID identifies the built-in eCFR pattern set.
const DefaultSetID = "ecfr-default"

var validate = validator.New()

// PatternSet is a named collection of citation categories plus the cue
// phrases that gate scanning.
type PatternSet struct {
	// Metadata
	Name        string `yaml:"name" json:"name" validate:"required"`
	Version     string `yaml:"version" json:"version" validate:"required"`
	SetID       string `yaml:"set_id" json:"set_id" validate:"required"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Cues are matched case-insensitively as plain substrings. A paragraph
	// without any cue is never scanned.
	Cues []string `yaml:"cues" json:"cues" validate:"required,min=1,dive,required"`

	// Categories are applied independently; overlapping matches across
	// categories are all kept.
	Categories []Category `yaml:"categories" json:"categories" validate:"required,min=1,dive"`

	// Compiled patterns (populated after loading)
	compiled *CompiledSet
}

// Category is one citation shape, e.g. "section symbol followed by a number".
type Category struct {
	Kind          Kind   `yaml:"kind" json:"kind" validate:"required"`
	Pattern       string `yaml:"pattern" json:"pattern" validate:"required"`
	CaseSensitive bool   `yaml:"case_sensitive,omitempty" json:"case_sensitive,omitempty"`

	compiled *regexp.Regexp
}

// CompiledSet holds the compiled regular expressions of a PatternSet.
type CompiledSet struct {
	Cue        *regexp.Regexp
	Categories []*regexp.Regexp
}

// Validate checks that the set has all required fields.
func (ps *PatternSet) Validate() error {
	if err := validate.Struct(ps); err != nil {
		return fmt.Errorf("pattern set %q: %w", ps.SetID, err)
	}
	return nil
}

// Compile compiles the cue phrases and every category pattern.
// Categories are case-insensitive unless CaseSensitive is set.
func (ps *PatternSet) Compile() error {
	quoted := make([]string, 0, len(ps.Cues))
	for _, cue := range ps.Cues {
		quoted = append(quoted, regexp.QuoteMeta(cue))
	}
	cue, err := regexp.Compile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)
	if err != nil {
		return fmt.Errorf("compiling cue phrases: %w", err)
	}

	compiled := &CompiledSet{Cue: cue}
	for i := range ps.Categories {
		category := &ps.Categories[i]
		expr := category.Pattern
		if !category.CaseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("compiling %s category pattern %q: %w", category.Kind, category.Pattern, err)
		}
		category.compiled = re
		compiled.Categories = append(compiled.Categories, re)
	}

	ps.compiled = compiled
	return nil
}

// IsCompiled returns true if the set has been compiled.
func (ps *PatternSet) IsCompiled() bool {
	return ps.compiled != nil
}

// Kinds lists the category kinds in declaration order.
func (ps *PatternSet) Kinds() []Kind {
	kinds := make([]Kind, 0, len(ps.Categories))
	for _, category := range ps.Categories {
		kinds = append(kinds, category.Kind)
	}
	return kinds
}

// DefaultCues are the contextual phrases that mark a paragraph as citing
// something.
var DefaultCues = []string{
	"see",
	"as provided in",
	"as described in",
	"according to",
	"under",
	"pursuant to",
	"in accordance with",
}

// DefaultSet returns a freshly compiled copy of the built-in eCFR pattern set.
func DefaultSet() *PatternSet {
	set := &PatternSet{
		Name:        "eCFR informal citations",
		Version:     "1.0.0",
		SetID:       DefaultSetID,
		Description: "Section, part, subpart, appendix, title and U.S. Code references",
		Cues:        append([]string(nil), DefaultCues...),
		Categories: []Category{
			// "§ 1.2", "section 12"; the word boundary only applies to the word
			// form, since "§" is not a word character
			{Kind: KindSection, Pattern: `(?:§|\bsection)\s*\d+(?:\.\d+)?\b`},
			// "part 3", "Part 12"
			{Kind: KindPart, Pattern: `part\s*\d+`},
			// "subpart B"
			{Kind: KindSubpart, Pattern: `\bsubpart\s*[A-Z]+\b`},
			// "appendix A"
			{Kind: KindAppendix, Pattern: `\bappendix\s*[A-Z]+\b`},
			// "title 44"
			{Kind: KindTitle, Pattern: `\btitle\s*\d+\b`},
			// "44 U.S.C. 1506", "5 U.S.C. § 552"
			{Kind: KindUSCode, Pattern: `\b\d+\s*U\.S\.C\.(?:\s*§)?\s*\d+\b`},
		},
	}
	if err := set.Compile(); err != nil {
		panic(fmt.Sprintf("built-in pattern set does not compile: %v", err))
	}
	return set
}
