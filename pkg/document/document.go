// Package document defines the parsed regulation tree (title → parts →
// sections → paragraphs) consumed by the cross-reference pipeline, and the
// loaders that produce it from JSON snapshots and eCFR XML.
package document

import "strings"

// Document is one parsed title: an ordered sequence of parts.
type Document struct {
	Parts []*Part `json:"parts"`
}

// Part is a top-level subdivision of a title.
type Part struct {
	Heading  string     `json:"part_heading"`
	Sections []*Section `json:"sections"`
}

// Section is a subdivision of a part holding paragraphs of regulatory text.
type Section struct {
	Heading    string   `json:"heading"`
	Paragraphs []string `json:"paragraphs"`
}

// ParagraphLocation identifies a paragraph during a document walk.
type ParagraphLocation struct {
	Part      *Part
	Section   *Section
	Index     int
	Paragraph string
}

// WalkParagraphs calls fn for every paragraph in document order: parts in
// order, sections within a part in order, paragraphs within a section in order.
func (d *Document) WalkParagraphs(fn func(loc ParagraphLocation)) {
	if d == nil {
		return
	}
	for _, part := range d.Parts {
		if part == nil {
			continue
		}
		for _, section := range part.Sections {
			if section == nil {
				continue
			}
			for i, paragraph := range section.Paragraphs {
				fn(ParagraphLocation{
					Part:      part,
					Section:   section,
					Index:     i,
					Paragraph: paragraph,
				})
			}
		}
	}
}

// Text returns all section paragraphs joined with single spaces.
func (s *Section) Text() string {
	if s == nil {
		return ""
	}
	return strings.Join(s.Paragraphs, " ")
}

// Text returns the paragraphs of every section in the part, space-joined in
// document order.
func (p *Part) Text() string {
	if p == nil {
		return ""
	}
	var paragraphs []string
	for _, section := range p.Sections {
		if section == nil {
			continue
		}
		paragraphs = append(paragraphs, section.Paragraphs...)
	}
	return strings.Join(paragraphs, " ")
}

// FullText returns every heading and paragraph of the document in traversal
// order, space-joined. Used for whole-title metrics.
func (d *Document) FullText() string {
	if d == nil {
		return ""
	}
	var pieces []string
	for _, part := range d.Parts {
		if part == nil {
			continue
		}
		pieces = append(pieces, part.Heading)
		for _, section := range part.Sections {
			if section == nil {
				continue
			}
			pieces = append(pieces, section.Heading)
			pieces = append(pieces, section.Paragraphs...)
		}
	}
	return strings.Join(strings.Fields(strings.Join(pieces, " ")), " ")
}

// Stats holds structural counts for a document.
type Stats struct {
	Parts      int `json:"parts"`
	Sections   int `json:"sections"`
	Paragraphs int `json:"paragraphs"`
}

// Stats counts parts, sections and paragraphs.
func (d *Document) Stats() Stats {
	var stats Stats
	if d == nil {
		return stats
	}
	for _, part := range d.Parts {
		if part == nil {
			continue
		}
		stats.Parts++
		for _, section := range part.Sections {
			if section == nil {
				continue
			}
			stats.Sections++
			stats.Paragraphs += len(section.Paragraphs)
		}
	}
	return stats
}
