package pattern

import (
	"reflect"
	"testing"
)

func TestMatcherScan(t *testing.T) {
	m := DefaultMatcher()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "section symbol after cue",
			text: "As provided in § 1.2, the term applies.",
			want: []string{"§ 1.2"},
		},
		{
			name: "no cue phrase",
			text: "The fee is $5.",
			want: nil,
		},
		{
			name: "citation without cue",
			text: "Section 4 applies to part 3.",
			want: nil,
		},
		{
			name: "cue without citation",
			text: "See the instructions.",
			want: nil,
		},
		{
			name: "case-insensitive categories",
			text: "Under Section 4 and PART 12, filings are due.",
			want: []string{"PART 12", "Section 4"},
		},
		{
			name: "duplicates collapse",
			text: "See part 3; see also part 3.",
			want: []string{"part 3"},
		},
		{
			name: "overlapping categories are both kept",
			text: "Records are released pursuant to 5 U.S.C. § 552.",
			want: []string{"5 U.S.C. § 552", "§ 552"},
		},
		{
			name: "title and code citation",
			text: "In accordance with title 44 and 44 U.S.C. 1506, the committee meets.",
			want: []string{"44 U.S.C. 1506", "title 44"},
		},
		{
			name: "subpart and appendix",
			text: "According to subpart B and appendix C, records are kept.",
			want: []string{"appendix C", "subpart B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Scan(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Scan(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestMatcherReferencesIgnoresCue(t *testing.T) {
	got := DefaultMatcher().References("Section 4 applies.")
	want := []string{"Section 4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("References() = %q, want %q", got, want)
	}
}

func TestMatcherMatches(t *testing.T) {
	text := "See § 2.1 and part 5."
	matches := DefaultMatcher().Matches(text)
	if len(matches) != 2 {
		t.Fatalf("Matches() returned %d matches, want 2: %+v", len(matches), matches)
	}

	if matches[0].Kind != KindSection || matches[0].Text != "§ 2.1" {
		t.Errorf("matches[0] = %+v, want section § 2.1", matches[0])
	}
	if matches[1].Kind != KindPart || matches[1].Text != "part 5" {
		t.Errorf("matches[1] = %+v, want part part 5", matches[1])
	}
	for _, match := range matches {
		if text[match.Offset:match.Offset+len(match.Text)] != match.Text {
			t.Errorf("Offset %d does not locate %q", match.Offset, match.Text)
		}
	}
}

func TestMatcherHasCue(t *testing.T) {
	m := DefaultMatcher()
	for _, text := range []string{"SEE below", "as described in", "Pursuant To the act"} {
		if !m.HasCue(text) {
			t.Errorf("HasCue(%q) = false, want true", text)
		}
	}
	if m.HasCue("The fee is $5.") {
		t.Error("HasCue() = true for text without a cue")
	}
}

func TestMatcherClassify(t *testing.T) {
	m := DefaultMatcher()

	tests := []struct {
		reference string
		want      []Kind
	}{
		{"§ 1.2", []Kind{KindSection}},
		{"section 12", []Kind{KindSection}},
		{"part 3", []Kind{KindPart}},
		{"subpart B", []Kind{KindSubpart}},
		{"appendix Z", []Kind{KindAppendix}},
		{"title 44", []Kind{KindTitle}},
		{"44 U.S.C. 1506", []Kind{KindUSCode}},
		{"not a citation", nil},
	}

	for _, tt := range tests {
		t.Run(tt.reference, func(t *testing.T) {
			got := m.Classify(tt.reference)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Classify(%q) = %v, want %v", tt.reference, got, tt.want)
			}
		})
	}
}

func TestNewMatcherNil(t *testing.T) {
	if _, err := NewMatcher(nil); err == nil {
		t.Error("NewMatcher(nil) should return error")
	}
}

func TestNewMatcherCompilesSet(t *testing.T) {
	set := testSet("test", "1.0.0")
	m, err := NewMatcher(set)
	if err != nil {
		t.Fatalf("NewMatcher() error = %v", err)
	}
	if !set.IsCompiled() {
		t.Error("NewMatcher() should compile the set")
	}
	if m.Set() != set {
		t.Error("Set() should return the backing set")
	}
}
