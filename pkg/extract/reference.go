package extract

import (
	"go.uber.org/zap"

	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/document"
	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/pattern"
)

// CrossReference is one paragraph that cites something: its location and
// the sorted, de-duplicated citation strings found in it.
type CrossReference struct {
	PartHeading    string   `json:"part_heading"`
	SectionHeading string   `json:"section_heading"`
	Paragraph      string   `json:"paragraph"`
	References     []string `json:"references"`
}

// ReferenceExtractor scans document paragraphs for citations.
type ReferenceExtractor struct {
	matcher *pattern.Matcher
	logger  *zap.Logger
}

// ExtractorOption configures a ReferenceExtractor.
type ExtractorOption func(*ReferenceExtractor)

// WithMatcher replaces the built-in citation patterns.
func WithMatcher(m *pattern.Matcher) ExtractorOption {
	return func(e *ReferenceExtractor) {
		if m != nil {
			e.matcher = m
		}
	}
}

// WithLogger sets the logger used for extraction summaries.
func WithLogger(logger *zap.Logger) ExtractorOption {
	return func(e *ReferenceExtractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewReferenceExtractor creates an extractor using the default eCFR
// pattern set unless WithMatcher is given.
func NewReferenceExtractor(opts ...ExtractorOption) *ReferenceExtractor {
	e := &ReferenceExtractor{
		matcher: pattern.DefaultMatcher(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Matcher returns the matcher in use.
func (e *ReferenceExtractor) Matcher() *pattern.Matcher {
	return e.matcher
}

// ExtractFromDocument returns one CrossReference per paragraph that contains
// a cue phrase and at least one citation, in document order.
func (e *ReferenceExtractor) ExtractFromDocument(doc *document.Document) []*CrossReference {
	refs := make([]*CrossReference, 0)
	paragraphs := 0

	doc.WalkParagraphs(func(loc document.ParagraphLocation) {
		paragraphs++
		if ref := e.ExtractFromParagraph(loc.Part.Heading, loc.Section.Heading, loc.Paragraph); ref != nil {
			refs = append(refs, ref)
		}
	})

	e.logger.Debug("extracted cross-references",
		zap.Int("paragraphs", paragraphs),
		zap.Int("records", len(refs)))
	return refs
}

// ExtractFromParagraph returns the CrossReference for a single paragraph,
// or nil if the paragraph is not gated in or has no citations.
func (e *ReferenceExtractor) ExtractFromParagraph(partHeading, sectionHeading, paragraph string) *CrossReference {
	found := e.matcher.Scan(paragraph)
	if len(found) == 0 {
		return nil
	}
	return &CrossReference{
		PartHeading:    partHeading,
		SectionHeading: sectionHeading,
		Paragraph:      paragraph,
		References:     found,
	}
}

// ReferenceStats holds statistics about extracted cross-references.
type ReferenceStats struct {
	Records          int            `json:"records"`
	TotalReferences  int            `json:"total_references"`
	UniqueReferences int            `json:"unique_references"`
	SectionsWithRefs int            `json:"sections_with_refs"`
	PartsWithRefs    int            `json:"parts_with_refs"`
	ByKind           map[string]int `json:"by_kind"`
	UnclassifiedRefs int            `json:"unclassified_refs,omitempty"`
}

// CalculateStats calculates statistics for a set of cross-references.
// Reference strings are classified with the default pattern set; a string
// matching several categories counts once for each.
func CalculateStats(refs []*CrossReference) ReferenceStats {
	stats := ReferenceStats{
		Records: len(refs),
		ByKind:  make(map[string]int),
	}

	matcher := pattern.DefaultMatcher()
	unique := make(map[string]bool)
	sections := make(map[string]bool)
	parts := make(map[string]bool)

	for _, ref := range refs {
		sections[ref.PartHeading+"\x00"+ref.SectionHeading] = true
		parts[ref.PartHeading] = true

		for _, r := range ref.References {
			stats.TotalReferences++
			unique[r] = true

			kinds := matcher.Classify(r)
			if len(kinds) == 0 {
				stats.UnclassifiedRefs++
			}
			for _, kind := range kinds {
				stats.ByKind[string(kind)]++
			}
		}
	}

	stats.UniqueReferences = len(unique)
	stats.SectionsWithRefs = len(sections)
	stats.PartsWithRefs = len(parts)

	return stats
}
