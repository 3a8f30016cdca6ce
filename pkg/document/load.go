package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrMalformedDocument is the sentinel wrapped by every structural decoding
// failure.
var ErrMalformedDocument = errors.New("malformed document")

// MalformedError reports the location of a structurally invalid entry.
type MalformedError struct {
	Path   string // JSON path, e.g. parts[0].sections[2].paragraphs[1]
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed document at %s: %s", e.Path, e.Reason)
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformedDocument
}

var jsonNull = []byte("null")

type rawDocument struct {
	Parts []json.RawMessage `json:"parts"`
}

type rawPart struct {
	Heading  json.RawMessage   `json:"part_heading"`
	Sections []json.RawMessage `json:"sections"`
}

type rawSection struct {
	Heading    json.RawMessage   `json:"heading"`
	Paragraphs []json.RawMessage `json:"paragraphs"`
}

// Decode reads a document snapshot of the form
// {"parts": [{"part_heading": ..., "sections": [{"heading": ..., "paragraphs": [...]}]}]}.
//
// Missing or null "parts", "sections" and "paragraphs" are treated as empty,
// and missing or null headings as "". Any paragraph that is not a JSON string,
// and any part or section that is not an object, is a fatal *MalformedError.
func Decode(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}

	if !json.Valid(data) {
		return nil, &MalformedError{Path: "$", Reason: "invalid JSON"}
	}
	if isNull(data) {
		return nil, &MalformedError{Path: "$", Reason: "document is null"}
	}

	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedError{Path: "$", Reason: err.Error()}
	}

	doc := &Document{Parts: make([]*Part, 0, len(raw.Parts))}
	for i, partData := range raw.Parts {
		partPath := fmt.Sprintf("parts[%d]", i)
		part, err := decodePart(partData, partPath)
		if err != nil {
			return nil, err
		}
		doc.Parts = append(doc.Parts, part)
	}

	return doc, nil
}

func decodePart(data json.RawMessage, path string) (*Part, error) {
	if isNull(data) {
		return nil, &MalformedError{Path: path, Reason: "part is null"}
	}

	var raw rawPart
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedError{Path: path, Reason: err.Error()}
	}

	heading, err := decodeOptionalString(raw.Heading, path+".part_heading")
	if err != nil {
		return nil, err
	}

	part := &Part{Heading: heading, Sections: make([]*Section, 0, len(raw.Sections))}
	for i, sectionData := range raw.Sections {
		section, err := decodeSection(sectionData, fmt.Sprintf("%s.sections[%d]", path, i))
		if err != nil {
			return nil, err
		}
		part.Sections = append(part.Sections, section)
	}

	return part, nil
}

func decodeSection(data json.RawMessage, path string) (*Section, error) {
	if isNull(data) {
		return nil, &MalformedError{Path: path, Reason: "section is null"}
	}

	var raw rawSection
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedError{Path: path, Reason: err.Error()}
	}

	heading, err := decodeOptionalString(raw.Heading, path+".heading")
	if err != nil {
		return nil, err
	}

	section := &Section{Heading: heading, Paragraphs: make([]string, 0, len(raw.Paragraphs))}
	for i, paragraphData := range raw.Paragraphs {
		paragraphPath := fmt.Sprintf("%s.paragraphs[%d]", path, i)
		var paragraph string
		if isNull(paragraphData) {
			return nil, &MalformedError{Path: paragraphPath, Reason: "paragraph is null, want text"}
		}
		if err := json.Unmarshal(paragraphData, &paragraph); err != nil {
			return nil, &MalformedError{Path: paragraphPath, Reason: "paragraph is not text"}
		}
		section.Paragraphs = append(section.Paragraphs, paragraph)
	}

	return section, nil
}

func decodeOptionalString(data json.RawMessage, path string) (string, error) {
	if len(data) == 0 || isNull(data) {
		return "", nil
	}
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return "", &MalformedError{Path: path, Reason: "heading is not text"}
	}
	return value, nil
}

func isNull(data json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(data), jsonNull)
}

// LoadFile decodes the document snapshot stored at path.
func LoadFile(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening document %s: %w", path, err)
	}
	defer file.Close()

	doc, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

// WriteFile stores the document as indented JSON.
func WriteFile(path string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing document %s: %w", path, err)
	}
	return nil
}
