// Package analysis builds the cross-reference graph of a document and the
// reports derived from it: degree rankings, impact traversal, part-level
// citation matrices and Graphviz rendering.
package analysis

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/document"
	"github.com/TiensToi/eCFR-Regulatory-Analysis-Website/pkg/extract"
)

// NodeType distinguishes part nodes from section nodes.
type NodeType string

const (
	NodePart    NodeType = "part"
	NodeSection NodeType = "section"
)

// Node is a part or section heading. Section nodes carry their part heading.
type Node struct {
	ID   string   `json:"id"`
	Type NodeType `json:"type"`
	Part string   `json:"part,omitempty"`
}

// MarshalJSON always writes "part" for section nodes, even when the
// enclosing part has no heading.
func (n Node) MarshalJSON() ([]byte, error) {
	type plain Node
	if n.Type != NodeSection {
		return json.Marshal(plain(n))
	}
	return json.Marshal(struct {
		ID   string   `json:"id"`
		Type NodeType `json:"type"`
		Part string   `json:"part"`
	}{n.ID, n.Type, n.Part})
}

// Edge is a single citation from a section to a node or to a raw
// reference string that matched no node.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

// Graph is the cross-reference graph of one document.
type Graph struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`

	byID map[string]*Node
}

// BuildGraph creates one node per distinct non-empty part and section
// heading, in document order with the first occurrence kept, and one edge
// per reference string of every cross-reference.
//
// Edge targets are matched by case-insensitive prefix against node IDs in
// node order; the first match wins. Unmatched references become targets
// verbatim.
func BuildGraph(doc *document.Document, refs []*extract.CrossReference) *Graph {
	g := &Graph{
		Nodes: make([]*Node, 0),
		Edges: make([]*Edge, 0),
		byID:  make(map[string]*Node),
	}

	if doc != nil {
		for _, part := range doc.Parts {
			if part == nil {
				continue
			}
			g.addNode(&Node{ID: part.Heading, Type: NodePart})
			for _, section := range part.Sections {
				if section == nil {
					continue
				}
				g.addNode(&Node{ID: section.Heading, Type: NodeSection, Part: part.Heading})
			}
		}
	}

	// Lower-cased IDs are computed once; matching scans them in node order.
	lowered := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		lowered[i] = strings.ToLower(n.ID)
	}

	for _, ref := range refs {
		source := ref.SectionHeading
		for _, raw := range ref.References {
			target := raw
			prefix := strings.ToLower(raw)
			for i, id := range lowered {
				if strings.HasPrefix(id, prefix) {
					target = g.Nodes[i].ID
					break
				}
			}
			g.Edges = append(g.Edges, &Edge{
				Source: source,
				Target: target,
				Label:  fmt.Sprintf("%s references %s", source, target),
			})
		}
	}

	return g
}

func (g *Graph) addNode(n *Node) {
	if n.ID == "" {
		return
	}
	if _, ok := g.byID[n.ID]; ok {
		return
	}
	g.byID[n.ID] = n
	g.Nodes = append(g.Nodes, n)
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*Node, bool) {
	if g.byID == nil {
		g.reindex()
	}
	n, ok := g.byID[id]
	return n, ok
}

// reindex rebuilds the ID lookup, e.g. after the graph was decoded from JSON.
func (g *Graph) reindex() {
	g.byID = make(map[string]*Node, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, ok := g.byID[n.ID]; !ok {
			g.byID[n.ID] = n
		}
	}
}

// IsExternal reports whether an edge target is not a node of the graph.
func (g *Graph) IsExternal(target string) bool {
	_, ok := g.Node(target)
	return !ok
}

// GraphStats summarizes a graph.
type GraphStats struct {
	Nodes           int            `json:"nodes"`
	Edges           int            `json:"edges"`
	ResolvedEdges   int            `json:"resolved_edges"`
	ExternalEdges   int            `json:"external_edges"`
	ExternalTargets int            `json:"external_targets"`
	NodesByType     map[string]int `json:"nodes_by_type"`
}

// Stats calculates node and edge totals.
func (g *Graph) Stats() GraphStats {
	stats := GraphStats{
		Nodes:       len(g.Nodes),
		Edges:       len(g.Edges),
		NodesByType: make(map[string]int),
	}
	for _, n := range g.Nodes {
		stats.NodesByType[string(n.Type)]++
	}

	external := make(map[string]bool)
	for _, e := range g.Edges {
		if g.IsExternal(e.Target) {
			stats.ExternalEdges++
			external[e.Target] = true
		} else {
			stats.ResolvedEdges++
		}
	}
	stats.ExternalTargets = len(external)
	return stats
}

// Degree is a target and the number of edges pointing at it.
type Degree struct {
	ID       string `json:"id"`
	Incoming int    `json:"incoming"`
	External bool   `json:"external,omitempty"`
}

// MostReferenced ranks edge targets by in-degree, highest first and ties
// broken by ID. A non-positive limit returns every target.
func (g *Graph) MostReferenced(limit int) []Degree {
	counts := make(map[string]int)
	for _, e := range g.Edges {
		counts[e.Target]++
	}

	ranked := make([]Degree, 0, len(counts))
	for id, n := range counts {
		ranked = append(ranked, Degree{ID: id, Incoming: n, External: g.IsExternal(id)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Incoming != ranked[j].Incoming {
			return ranked[i].Incoming > ranked[j].Incoming
		}
		return ranked[i].ID < ranked[j].ID
	})

	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked
}

// ToJSON serializes the graph to indented JSON.
func (g *Graph) ToJSON() ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}

// String returns a human-readable summary of the graph.
func (g *Graph) String() string {
	var sb strings.Builder
	stats := g.Stats()

	sb.WriteString("Cross-Reference Graph\n")
	sb.WriteString("=====================\n\n")
	sb.WriteString(fmt.Sprintf("Nodes: %d (%d parts, %d sections)\n",
		stats.Nodes, stats.NodesByType[string(NodePart)], stats.NodesByType[string(NodeSection)]))
	sb.WriteString(fmt.Sprintf("Edges: %d (%d to headings, %d external)\n\n",
		stats.Edges, stats.ResolvedEdges, stats.ExternalEdges))

	top := g.MostReferenced(10)
	if len(top) > 0 {
		sb.WriteString("Most referenced:\n")
		for _, d := range top {
			marker := ""
			if d.External {
				marker = " (external)"
			}
			sb.WriteString(fmt.Sprintf("  %4d  %s%s\n", d.Incoming, Truncate(d.ID, 60), marker))
		}
	}

	return sb.String()
}

// Truncate shortens s to at most maxLen runes, marking the cut with "..."
// when there is room for it.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 0 {
		return ""
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
