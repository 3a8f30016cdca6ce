package extract

import (
	"fmt"
	"sort"
	"strings"
)

// ResolvedReference pairs a raw citation string with the heading it
// resolved to. ResolvedTo is nil when no heading matched.
type ResolvedReference struct {
	Reference  string  `json:"reference"`
	ResolvedTo *string `json:"resolved_to"`
}

// Resolved reports whether the reference matched a heading.
func (r ResolvedReference) Resolved() bool {
	return r.ResolvedTo != nil
}

// Key returns the identity the reference is counted under: the resolved
// heading, or the raw string when unresolved.
func (r ResolvedReference) Key() string {
	if r.ResolvedTo != nil {
		return *r.ResolvedTo
	}
	return r.Reference
}

// ReferenceResolver resolves raw citation strings against a HeadingIndex.
type ReferenceResolver struct {
	index *HeadingIndex
}

// NewReferenceResolver creates a resolver over index. A nil index resolves
// nothing.
func NewReferenceResolver(index *HeadingIndex) *ReferenceResolver {
	if index == nil {
		index = &HeadingIndex{
			Sections: map[string]string{},
			Parts:    map[string]string{},
		}
	}
	return &ReferenceResolver{index: index}
}

// Index returns the heading index used for resolution.
func (r *ReferenceResolver) Index() *HeadingIndex {
	return r.index
}

// Resolve looks up a single reference string.
func (r *ReferenceResolver) Resolve(reference string) ResolvedReference {
	result := ResolvedReference{Reference: reference}
	if heading, ok := r.index.Lookup(reference); ok {
		result.ResolvedTo = &heading
	}
	return result
}

// ResolveAll resolves every reference string of every record, flattened in
// record order and then in each record's reference order.
func (r *ReferenceResolver) ResolveAll(refs []*CrossReference) []ResolvedReference {
	resolved := make([]ResolvedReference, 0, len(refs))
	for _, ref := range refs {
		for _, s := range ref.References {
			resolved = append(resolved, r.Resolve(s))
		}
	}
	return resolved
}

// CitationReport is the serialized result of citation resolution.
type CitationReport struct {
	CitationCounts     map[string]int      `json:"citation_counts"`
	ResolvedReferences []ResolvedReference `json:"resolved_references"`
}

// Report resolves refs and tallies the results.
func (r *ReferenceResolver) Report(refs []*CrossReference) *CitationReport {
	resolved := r.ResolveAll(refs)
	return &CitationReport{
		CitationCounts:     CountCitations(resolved),
		ResolvedReferences: resolved,
	}
}

// CountCitations tallies resolved references by Key.
func CountCitations(resolved []ResolvedReference) map[string]int {
	counts := make(map[string]int)
	for _, ref := range resolved {
		counts[ref.Key()]++
	}
	return counts
}

// CitationCount is one row of a citation frequency ranking.
type CitationCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// TopCitations returns the n most cited keys, highest count first and ties
// broken by key. A non-positive n returns every key.
func TopCitations(counts map[string]int, n int) []CitationCount {
	ranked := make([]CitationCount, 0, len(counts))
	for key, count := range counts {
		ranked = append(ranked, CitationCount{Key: key, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Key < ranked[j].Key
	})
	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

// ResolutionRate returns the fraction of references that resolved to a
// heading, or 0 when there are none.
func (c *CitationReport) ResolutionRate() float64 {
	if len(c.ResolvedReferences) == 0 {
		return 0
	}
	resolved := 0
	for _, ref := range c.ResolvedReferences {
		if ref.Resolved() {
			resolved++
		}
	}
	return float64(resolved) / float64(len(c.ResolvedReferences))
}

// Unresolved returns the distinct reference strings that did not resolve,
// sorted.
func (c *CitationReport) Unresolved() []string {
	seen := make(map[string]bool)
	var out []string
	for _, ref := range c.ResolvedReferences {
		if ref.Resolved() || seen[ref.Reference] {
			continue
		}
		seen[ref.Reference] = true
		out = append(out, ref.Reference)
	}
	sort.Strings(out)
	return out
}

// String returns a human-readable summary of the report.
func (c *CitationReport) String() string {
	var sb strings.Builder

	sb.WriteString("Citation Report\n")
	sb.WriteString("===============\n\n")

	sb.WriteString(fmt.Sprintf("Total references: %d\n", len(c.ResolvedReferences)))
	sb.WriteString(fmt.Sprintf("Distinct targets: %d\n", len(c.CitationCounts)))
	sb.WriteString(fmt.Sprintf("Resolution rate:  %.1f%%\n\n", c.ResolutionRate()*100))

	top := TopCitations(c.CitationCounts, 10)
	if len(top) > 0 {
		sb.WriteString("Most cited:\n")
		for _, row := range top {
			sb.WriteString(fmt.Sprintf("  %4d  %s\n", row.Count, row.Key))
		}
		sb.WriteString("\n")
	}

	if unresolved := c.Unresolved(); len(unresolved) > 0 {
		sb.WriteString("Unresolved references:\n")
		for _, ref := range unresolved {
			sb.WriteString(fmt.Sprintf("  - %s\n", ref))
		}
	}

	return sb.String()
}
