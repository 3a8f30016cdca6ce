package metrics

import (
	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/document"
)

// Level is the granularity of a Record.
type Level string

const (
	LevelPart    Level = "part"
	LevelSection Level = "section"
)

// Record holds the size and readability of one part or section.
type Record struct {
	Level          Level   `json:"level"`
	PartHeading    string  `json:"part_heading"`
	SectionHeading string  `json:"section_heading"`
	WordCount      int     `json:"word_count"`
	Readability    float64 `json:"readability"`
}

// Aggregate measures every part and section of doc. Each part record is
// followed by the records of its sections, parts in document order. Text
// that is empty gets readability 0 without consulting the engine.
func Aggregate(doc *document.Document, engine Engine) []Record {
	if engine == nil {
		engine = FleschKincaid{}
	}

	records := make([]Record, 0)
	if doc == nil {
		return records
	}

	for _, part := range doc.Parts {
		if part == nil {
			continue
		}
		wc, readability := measure(engine, part.Text())
		records = append(records, Record{
			Level:       LevelPart,
			PartHeading: part.Heading,
			WordCount:   wc,
			Readability: readability,
		})

		for _, section := range part.Sections {
			if section == nil {
				continue
			}
			wc, readability := measure(engine, section.Text())
			records = append(records, Record{
				Level:          LevelSection,
				PartHeading:    part.Heading,
				SectionHeading: section.Heading,
				WordCount:      wc,
				Readability:    readability,
			})
		}
	}

	return records
}

func measure(engine Engine, text string) (int, float64) {
	if text == "" {
		return 0, 0
	}
	m := engine.Measure(text)
	return m.WordCount, m.Readability
}
