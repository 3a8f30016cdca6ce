package analysis

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// ToDOT generates a Graphviz DOT representation of the graph.
// Parts are rendered as cluster subgraphs holding their sections; reference
// targets that are not headings become hexagon nodes with dashed edges.
func (g *Graph) ToDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph CrossReferences {\n")
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  compound=true;\n")
	sb.WriteString("  fontname=\"Helvetica\";\n")
	sb.WriteString("  node [fontname=\"Helvetica\" fontsize=10];\n")
	sb.WriteString("  edge [fontname=\"Helvetica\" fontsize=8];\n\n")

	// Sections grouped under their part, in node order
	sectionsByPart := make(map[string][]*Node)
	var orphans []*Node
	for _, n := range g.Nodes {
		if n.Type != NodeSection {
			continue
		}
		if _, ok := g.Node(n.Part); ok && n.Part != "" {
			sectionsByPart[n.Part] = append(sectionsByPart[n.Part], n)
		} else {
			orphans = append(orphans, n)
		}
	}

	clusterIndex := 0
	for _, n := range g.Nodes {
		if n.Type != NodePart {
			continue
		}
		sb.WriteString(fmt.Sprintf("  subgraph cluster_%d {\n", clusterIndex))
		sb.WriteString(fmt.Sprintf("    label=\"%s\";\n", escapeDOTLabel(n.ID)))
		sb.WriteString("    style=filled;\n")
		sb.WriteString("    color=lightgrey;\n")
		sb.WriteString("    node [style=filled];\n\n")
		sb.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\" shape=box fillcolor=lightyellow];\n",
			dotNodeID(n.ID), escapeDOTLabel(Truncate(n.ID, 40))))
		for _, s := range sectionsByPart[n.ID] {
			sb.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\" shape=ellipse fillcolor=lightblue];\n",
				dotNodeID(s.ID), escapeDOTLabel(Truncate(s.ID, 40))))
		}
		sb.WriteString("  }\n\n")
		clusterIndex++
	}

	for _, s := range orphans {
		sb.WriteString(fmt.Sprintf("  \"%s\" [label=\"%s\" shape=ellipse style=filled fillcolor=lightblue];\n",
			dotNodeID(s.ID), escapeDOTLabel(Truncate(s.ID, 40))))
	}

	// External targets (red, dashed edges)
	externalNodes := make(map[string]bool)
	for _, e := range g.Edges {
		if !g.IsExternal(e.Target) || externalNodes[e.Target] {
			continue
		}
		externalNodes[e.Target] = true
		sb.WriteString(fmt.Sprintf("  \"%s\" [label=\"%s\" shape=hexagon style=filled fillcolor=mistyrose];\n",
			externalNodeID(e.Target), escapeDOTLabel(Truncate(e.Target, 30))))
	}
	if len(externalNodes) > 0 {
		sb.WriteString("\n")
	}

	for _, e := range g.Edges {
		source := dotNodeID(e.Source)
		if g.IsExternal(e.Source) {
			// Sources with an empty heading have no node of their own.
			source = externalNodeID(e.Source)
		}
		if g.IsExternal(e.Target) {
			sb.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [color=red style=dashed];\n",
				source, externalNodeID(e.Target)))
			continue
		}
		sb.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\";\n", source, dotNodeID(e.Target)))
	}

	sb.WriteString("}\n")
	return sb.String()
}

// dotNodeID maps a heading to a DOT node ID. Headings differing only in
// punctuation would collide after sanitizing, so the ID keeps a hash suffix.
func dotNodeID(id string) string {
	return fmt.Sprintf("n_%s_%08x", sanitizeDOTID(Truncate(id, 24)), fnv32(id))
}

func externalNodeID(target string) string {
	return fmt.Sprintf("ext_%s_%08x", sanitizeDOTID(Truncate(target, 24)), fnv32(target))
}

func fnv32(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

// sanitizeDOTID converts a string into a valid DOT node identifier.
func sanitizeDOTID(s string) string {
	var sb strings.Builder
	for _, c := range s {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			sb.WriteRune(c)
		} else {
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

// escapeDOTLabel escapes special characters for DOT label strings.
func escapeDOTLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
