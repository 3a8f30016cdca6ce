// Package extract detects informal citations in a document tree, resolves
// them against the document's own headings and tallies how often each
// target is cited.
package extract

import (
	"regexp"
	"strings"

	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/document"
)

var (
	partNumberPattern    = regexp.MustCompile(`(?i)PART\s*(\d+)`)
	sectionNumberPattern = regexp.MustCompile(`§\s*(\d+(?:\.\d+)?)`)
)

// HeadingIndex maps lower-cased reference keys to canonical headings.
// Each numbered section is reachable as "section N" and "§ N"; each
// numbered part as "part N".
type HeadingIndex struct {
	Sections map[string]string `json:"section_lookup"`
	Parts    map[string]string `json:"part_lookup"`
}

// BuildHeadingIndex indexes every part and section heading that carries a
// number. Headings without one are left out. When two headings produce the
// same key the later one wins.
func BuildHeadingIndex(doc *document.Document) *HeadingIndex {
	idx := &HeadingIndex{
		Sections: make(map[string]string),
		Parts:    make(map[string]string),
	}
	if doc == nil {
		return idx
	}

	for _, part := range doc.Parts {
		if part == nil {
			continue
		}
		if m := partNumberPattern.FindStringSubmatch(part.Heading); m != nil {
			idx.Parts["part "+m[1]] = part.Heading
		}

		for _, section := range part.Sections {
			if section == nil {
				continue
			}
			if m := sectionNumberPattern.FindStringSubmatch(section.Heading); m != nil {
				idx.Sections["section "+m[1]] = section.Heading
				idx.Sections["§ "+m[1]] = section.Heading
			}
		}
	}

	return idx
}

// Lookup resolves a raw reference string. Section keys take precedence over
// part keys. The second result is false when neither table has the key.
func (idx *HeadingIndex) Lookup(reference string) (string, bool) {
	key := strings.ToLower(reference)
	if heading, ok := idx.Sections[key]; ok {
		return heading, true
	}
	if heading, ok := idx.Parts[key]; ok {
		return heading, true
	}
	return "", false
}

// Len returns the total number of keys in both tables.
func (idx *HeadingIndex) Len() int {
	return len(idx.Sections) + len(idx.Parts)
}
