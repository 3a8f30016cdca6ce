package extract

import (
	"reflect"
	"sort"
	"testing"

	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/document"
	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/pattern"
)

func TestExtractFromDocument(t *testing.T) {
	refs := NewReferenceExtractor().ExtractFromDocument(sampleDocument())

	want := []*CrossReference{
		{
			PartHeading:    "PART 1—GENERAL",
			SectionHeading: "§ 1.1 Scope",
			Paragraph:      "As provided in § 1.2, the term applies.",
			References:     []string{"§ 1.2"},
		},
		{
			PartHeading:    "PART 1—GENERAL",
			SectionHeading: "§ 1.2 Definitions",
			Paragraph:      "See part 3 and appendix Z for details.",
			References:     []string{"appendix Z", "part 3"},
		},
		{
			PartHeading:    "PART 3—FEES",
			SectionHeading: "§ 3.1 Amounts",
			Paragraph:      "Under section 1.1, fees are set pursuant to 44 U.S.C. 1506.",
			References:     []string{"44 U.S.C. 1506", "section 1.1"},
		},
	}

	if len(refs) != len(want) {
		t.Fatalf("ExtractFromDocument() returned %d records, want %d", len(refs), len(want))
	}
	for i := range want {
		if !reflect.DeepEqual(refs[i], want[i]) {
			t.Errorf("record %d = %+v, want %+v", i, refs[i], want[i])
		}
	}
}

func TestExtractFromDocument_RecordsAreSortedAndNonEmpty(t *testing.T) {
	refs := NewReferenceExtractor().ExtractFromDocument(sampleDocument())
	for i, ref := range refs {
		if len(ref.References) == 0 {
			t.Errorf("record %d has no references", i)
		}
		if !sort.StringsAreSorted(ref.References) {
			t.Errorf("record %d references not sorted: %q", i, ref.References)
		}
		seen := make(map[string]bool)
		for _, r := range ref.References {
			if seen[r] {
				t.Errorf("record %d has duplicate %q", i, r)
			}
			seen[r] = true
		}
	}
}

func TestExtractFromDocument_Idempotent(t *testing.T) {
	extractor := NewReferenceExtractor()
	first := extractor.ExtractFromDocument(sampleDocument())
	second := extractor.ExtractFromDocument(sampleDocument())
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated extraction produced different records")
	}
}

func TestExtractFromDocument_Empty(t *testing.T) {
	extractor := NewReferenceExtractor()
	if refs := extractor.ExtractFromDocument(&document.Document{}); len(refs) != 0 {
		t.Errorf("ExtractFromDocument(empty) = %v, want none", refs)
	}
	if refs := extractor.ExtractFromDocument(nil); len(refs) != 0 {
		t.Errorf("ExtractFromDocument(nil) = %v, want none", refs)
	}
}

func TestExtractFromParagraph(t *testing.T) {
	extractor := NewReferenceExtractor()

	ref := extractor.ExtractFromParagraph("PART 1—GENERAL", "§ 1.1 Scope", "As provided in § 1.2, the term applies.")
	if ref == nil {
		t.Fatal("ExtractFromParagraph() returned nil")
	}
	if !reflect.DeepEqual(ref.References, []string{"§ 1.2"}) {
		t.Errorf("References = %q, want [§ 1.2]", ref.References)
	}

	if ref := extractor.ExtractFromParagraph("PART 1", "§ 1.1", "The fee is $5."); ref != nil {
		t.Errorf("ExtractFromParagraph() without cue = %+v, want nil", ref)
	}
}

func TestExtractorWithMatcher(t *testing.T) {
	set := &pattern.PatternSet{
		Name:    "Parts only",
		SetID:   "parts-only",
		Version: "1.0.0",
		Cues:    []string{"see"},
		Categories: []pattern.Category{
			{Kind: pattern.KindPart, Pattern: `part\s*\d+`},
		},
	}
	m, err := pattern.NewMatcher(set)
	if err != nil {
		t.Fatalf("NewMatcher() error = %v", err)
	}

	extractor := NewReferenceExtractor(WithMatcher(m), WithLogger(nil))
	if extractor.Matcher() != m {
		t.Fatal("WithMatcher() not applied")
	}

	refs := extractor.ExtractFromDocument(sampleDocument())
	if len(refs) != 1 {
		t.Fatalf("ExtractFromDocument() returned %d records, want 1", len(refs))
	}
	if !reflect.DeepEqual(refs[0].References, []string{"part 3"}) {
		t.Errorf("References = %q, want [part 3]", refs[0].References)
	}
}

func TestCalculateStats(t *testing.T) {
	refs := NewReferenceExtractor().ExtractFromDocument(sampleDocument())
	stats := CalculateStats(refs)

	if stats.Records != 3 {
		t.Errorf("Records = %d, want 3", stats.Records)
	}
	if stats.TotalReferences != 5 {
		t.Errorf("TotalReferences = %d, want 5", stats.TotalReferences)
	}
	if stats.UniqueReferences != 5 {
		t.Errorf("UniqueReferences = %d, want 5", stats.UniqueReferences)
	}
	if stats.SectionsWithRefs != 3 {
		t.Errorf("SectionsWithRefs = %d, want 3", stats.SectionsWithRefs)
	}
	if stats.PartsWithRefs != 2 {
		t.Errorf("PartsWithRefs = %d, want 2", stats.PartsWithRefs)
	}

	wantKinds := map[string]int{"section": 2, "part": 1, "appendix": 1, "usc": 1}
	if !reflect.DeepEqual(stats.ByKind, wantKinds) {
		t.Errorf("ByKind = %v, want %v", stats.ByKind, wantKinds)
	}
	if stats.UnclassifiedRefs != 0 {
		t.Errorf("UnclassifiedRefs = %d, want 0", stats.UnclassifiedRefs)
	}
}
