package document

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// --- eCFR XML Structures ---
// govinfo eCFR bulk XML nests parts as <DIV5 TYPE="PART"> and sections as
// <DIV8 TYPE="SECTION">, each with a <HEAD> and body <P> elements.

type ecfrPart struct {
	Type     string        `xml:"TYPE,attr"`
	Heads    []ecfrText    `xml:"HEAD"`
	Sections []ecfrSection `xml:"DIV8"`
}

type ecfrSection struct {
	Type       string     `xml:"TYPE,attr"`
	Heads      []ecfrText `xml:"HEAD"`
	Paragraphs []ecfrText `xml:"P"`
}

// ecfrText collects all character data beneath an element, including text
// inside inline markup such as <I> or <E>.
type ecfrText string

func (t *ecfrText) UnmarshalXML(decoder *xml.Decoder, start xml.StartElement) error {
	var builder strings.Builder
	depth := 1
	for depth > 0 {
		token, err := decoder.Token()
		if err != nil {
			return err
		}
		switch typed := token.(type) {
		case xml.CharData:
			builder.Write(typed)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	*t = ecfrText(builder.String())
	return nil
}

func (t ecfrText) clean() string {
	return strings.TrimSpace(norm.NFC.String(string(t)))
}

func firstHead(heads []ecfrText) string {
	if len(heads) == 0 {
		return ""
	}
	return heads[0].clean()
}

// ParseECFRXML converts eCFR XML into a Document. Every PART division at any
// depth becomes a Part; only SECTION divisions that are direct children of a
// part are collected, and only direct <P> children of a section become
// paragraphs.
func ParseECFRXML(reader io.Reader) (*Document, error) {
	decoder := xml.NewDecoder(reader)
	decoder.Strict = false

	doc := &Document{Parts: []*Part{}}
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse eCFR XML: %w", err)
		}

		start, ok := token.(xml.StartElement)
		if !ok || start.Name.Local != "DIV5" || attrValue(start, "TYPE") != "PART" {
			continue
		}

		var raw ecfrPart
		if err := decoder.DecodeElement(&raw, &start); err != nil {
			return nil, fmt.Errorf("failed to parse eCFR part: %w", err)
		}
		doc.Parts = append(doc.Parts, convertECFRPart(raw))
	}

	return doc, nil
}

func convertECFRPart(raw ecfrPart) *Part {
	part := &Part{
		Heading:  firstHead(raw.Heads),
		Sections: []*Section{},
	}
	for _, rawSection := range raw.Sections {
		if rawSection.Type != "SECTION" {
			continue
		}
		section := &Section{
			Heading:    firstHead(rawSection.Heads),
			Paragraphs: make([]string, 0, len(rawSection.Paragraphs)),
		}
		for _, paragraph := range rawSection.Paragraphs {
			section.Paragraphs = append(section.Paragraphs, paragraph.clean())
		}
		part.Sections = append(part.Sections, section)
	}
	return part
}

func attrValue(start xml.StartElement, name string) string {
	for _, attr := range start.Attr {
		if attr.Name.Local == name {
			return attr.Value
		}
	}
	return ""
}

// ConvertECFRFile parses the eCFR XML file at xmlPath and writes the
// resulting document snapshot to jsonPath.
func ConvertECFRFile(xmlPath, jsonPath string) (*Document, error) {
	file, err := os.Open(xmlPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", xmlPath, err)
	}
	defer file.Close()

	doc, err := ParseECFRXML(file)
	if err != nil {
		return nil, err
	}
	if err := WriteFile(jsonPath, doc); err != nil {
		return nil, err
	}
	return doc, nil
}
