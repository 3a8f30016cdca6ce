package analysis

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ImpactDirection represents the direction of impact analysis.
type ImpactDirection string

const (
	// DirectionIncoming finds headings that cite the target.
	DirectionIncoming ImpactDirection = "incoming"
	// DirectionOutgoing finds what the target cites.
	DirectionOutgoing ImpactDirection = "outgoing"
	// DirectionBoth finds both incoming and outgoing citations.
	DirectionBoth ImpactDirection = "both"
)

// ParseImpactDirection validates a direction name.
func ParseImpactDirection(s string) (ImpactDirection, error) {
	switch d := ImpactDirection(strings.ToLower(s)); d {
	case DirectionIncoming, DirectionOutgoing, DirectionBoth:
		return d, nil
	}
	return "", fmt.Errorf("unknown impact direction %q (want incoming, outgoing or both)", s)
}

// ImpactType categorizes the type of impact.
type ImpactType string

const (
	ImpactDirect     ImpactType = "direct"
	ImpactTransitive ImpactType = "transitive"
)

// ImpactNode is a heading or external reference reached from the target.
type ImpactNode struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Depth     int        `json:"depth"`
	Impact    ImpactType `json:"impact"`
	Direction string     `json:"direction"`
}

// ImpactEdge is a graph edge traversed during analysis.
type ImpactEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Depth  int    `json:"depth"`
}

// ImpactResult contains the results of an impact analysis.
type ImpactResult struct {
	Target          string           `json:"target"`
	MaxDepth        int              `json:"max_depth"`
	DirectIncoming  []*ImpactNode    `json:"direct_incoming"`
	DirectOutgoing  []*ImpactNode    `json:"direct_outgoing"`
	TransitiveNodes []*ImpactNode    `json:"transitive_nodes"`
	Edges           []*ImpactEdge    `json:"edges"`
	Summary         *ImpactSummary   `json:"summary"`
	ByDepth         map[int][]string `json:"by_depth"`
}

// ImpactSummary provides summary statistics for the impact analysis.
type ImpactSummary struct {
	TotalAffected       int            `json:"total_affected"`
	DirectIncomingCount int            `json:"direct_incoming_count"`
	DirectOutgoingCount int            `json:"direct_outgoing_count"`
	TransitiveCount     int            `json:"transitive_count"`
	MaxDepthReached     int            `json:"max_depth_reached"`
	AffectedByType      map[string]int `json:"affected_by_type"`
	AffectedByDepth     map[int]int    `json:"affected_by_depth"`
}

// ImpactAnalyzer walks citation edges outward from a heading.
type ImpactAnalyzer struct {
	graph    *Graph
	incoming map[string][]string
	outgoing map[string][]string
}

// NewImpactAnalyzer indexes the edges of g for traversal. Parallel edges
// are collapsed.
func NewImpactAnalyzer(g *Graph) *ImpactAnalyzer {
	a := &ImpactAnalyzer{
		graph:    g,
		incoming: make(map[string][]string),
		outgoing: make(map[string][]string),
	}
	seen := make(map[[2]string]bool)
	for _, e := range g.Edges {
		key := [2]string{e.Source, e.Target}
		if seen[key] {
			continue
		}
		seen[key] = true
		a.outgoing[e.Source] = append(a.outgoing[e.Source], e.Target)
		a.incoming[e.Target] = append(a.incoming[e.Target], e.Source)
	}
	return a
}

// FindNode resolves a query to a node ID: an exact ID first, then the first
// node whose ID starts with the query, ignoring case.
func (a *ImpactAnalyzer) FindNode(query string) (string, bool) {
	if _, ok := a.graph.Node(query); ok {
		return query, true
	}
	prefix := strings.ToLower(query)
	for _, n := range a.graph.Nodes {
		if strings.HasPrefix(strings.ToLower(n.ID), prefix) {
			return n.ID, true
		}
	}
	if _, ok := a.incoming[query]; ok {
		return query, true
	}
	return "", false
}

// Analyze performs impact analysis for target up to maxDepth hops.
func (a *ImpactAnalyzer) Analyze(target string, maxDepth int, direction ImpactDirection) *ImpactResult {
	if maxDepth < 1 {
		maxDepth = 1
	}
	result := &ImpactResult{
		Target:          target,
		MaxDepth:        maxDepth,
		DirectIncoming:  make([]*ImpactNode, 0),
		DirectOutgoing:  make([]*ImpactNode, 0),
		TransitiveNodes: make([]*ImpactNode, 0),
		Edges:           make([]*ImpactEdge, 0),
		ByDepth:         make(map[int][]string),
		Summary: &ImpactSummary{
			AffectedByType:  make(map[string]int),
			AffectedByDepth: make(map[int]int),
		},
	}

	// Track visited nodes to avoid cycles
	visited := map[string]bool{target: true}
	frontier := []string{target}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			if direction == DirectionIncoming || direction == DirectionBoth {
				for _, src := range a.incoming[id] {
					if visited[src] {
						continue
					}
					visited[src] = true
					next = append(next, src)
					a.record(result, src, depth, "incoming")
					result.Edges = append(result.Edges, &ImpactEdge{Source: src, Target: id, Depth: depth})
				}
			}
			if direction == DirectionOutgoing || direction == DirectionBoth {
				for _, dst := range a.outgoing[id] {
					if visited[dst] {
						continue
					}
					visited[dst] = true
					next = append(next, dst)
					a.record(result, dst, depth, "outgoing")
					result.Edges = append(result.Edges, &ImpactEdge{Source: id, Target: dst, Depth: depth})
				}
			}
		}
		frontier = next
	}

	a.calculateSummary(result)
	return result
}

func (a *ImpactAnalyzer) record(result *ImpactResult, id string, depth int, direction string) {
	node := &ImpactNode{
		ID:        id,
		Type:      a.nodeType(id),
		Depth:     depth,
		Impact:    ImpactTransitive,
		Direction: direction,
	}
	switch {
	case depth > 1:
		result.TransitiveNodes = append(result.TransitiveNodes, node)
	case direction == "incoming":
		node.Impact = ImpactDirect
		result.DirectIncoming = append(result.DirectIncoming, node)
	default:
		node.Impact = ImpactDirect
		result.DirectOutgoing = append(result.DirectOutgoing, node)
	}
	result.ByDepth[depth] = append(result.ByDepth[depth], id)
}

func (a *ImpactAnalyzer) nodeType(id string) string {
	if n, ok := a.graph.Node(id); ok {
		return string(n.Type)
	}
	return "external"
}

// calculateSummary calculates summary statistics.
func (a *ImpactAnalyzer) calculateSummary(result *ImpactResult) {
	result.Summary.DirectIncomingCount = len(result.DirectIncoming)
	result.Summary.DirectOutgoingCount = len(result.DirectOutgoing)
	result.Summary.TransitiveCount = len(result.TransitiveNodes)
	result.Summary.TotalAffected = result.Summary.DirectIncomingCount +
		result.Summary.DirectOutgoingCount + result.Summary.TransitiveCount

	for _, node := range result.allNodes() {
		result.Summary.AffectedByType[node.Type]++
	}

	for depth, ids := range result.ByDepth {
		result.Summary.AffectedByDepth[depth] = len(ids)
		if depth > result.Summary.MaxDepthReached {
			result.Summary.MaxDepthReached = depth
		}
	}
}

func (r *ImpactResult) allNodes() []*ImpactNode {
	all := make([]*ImpactNode, 0, len(r.DirectIncoming)+len(r.DirectOutgoing)+len(r.TransitiveNodes))
	all = append(all, r.DirectIncoming...)
	all = append(all, r.DirectOutgoing...)
	all = append(all, r.TransitiveNodes...)
	return all
}

// ToJSON serializes the impact result to JSON.
func (r *ImpactResult) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// String returns a human-readable string representation.
func (r *ImpactResult) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Impact Analysis for: %s\n", r.Target))
	sb.WriteString(fmt.Sprintf("Analysis Depth: %d\n", r.MaxDepth))
	sb.WriteString("=" + strings.Repeat("=", 50) + "\n\n")

	sb.WriteString("Summary:\n")
	sb.WriteString(fmt.Sprintf("  Total affected: %d\n", r.Summary.TotalAffected))
	sb.WriteString(fmt.Sprintf("  Direct incoming (cites this): %d\n", r.Summary.DirectIncomingCount))
	sb.WriteString(fmt.Sprintf("  Direct outgoing (cited by this): %d\n", r.Summary.DirectOutgoingCount))
	sb.WriteString(fmt.Sprintf("  Transitive: %d\n", r.Summary.TransitiveCount))
	sb.WriteString(fmt.Sprintf("  Max depth reached: %d\n\n", r.Summary.MaxDepthReached))

	if len(r.DirectIncoming) > 0 {
		sb.WriteString("Direct Incoming:\n")
		for _, node := range r.DirectIncoming {
			sb.WriteString(fmt.Sprintf("  - %s (%s)\n", node.ID, node.Type))
		}
		sb.WriteString("\n")
	}

	if len(r.DirectOutgoing) > 0 {
		sb.WriteString("Direct Outgoing:\n")
		for _, node := range r.DirectOutgoing {
			sb.WriteString(fmt.Sprintf("  - %s (%s)\n", node.ID, node.Type))
		}
		sb.WriteString("\n")
	}

	if len(r.TransitiveNodes) > 0 {
		sb.WriteString("Transitive Impact:\n")

		byDepth := make(map[int][]*ImpactNode)
		for _, node := range r.TransitiveNodes {
			byDepth[node.Depth] = append(byDepth[node.Depth], node)
		}
		depths := make([]int, 0, len(byDepth))
		for d := range byDepth {
			depths = append(depths, d)
		}
		sort.Ints(depths)

		for _, depth := range depths {
			sb.WriteString(fmt.Sprintf("  Depth %d:\n", depth))
			for _, node := range byDepth[depth] {
				sb.WriteString(fmt.Sprintf("    - %s (%s, %s)\n", node.ID, node.Type, node.Direction))
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// FormatTable formats the result as a simple table.
func (r *ImpactResult) FormatTable() string {
	var sb strings.Builder

	sb.WriteString("+-------+--------------------------------------------------+------------+-----------+\n")
	sb.WriteString("| Depth | Heading                                          | Type       | Direction |\n")
	sb.WriteString("+-------+--------------------------------------------------+------------+-----------+\n")

	all := r.allNodes()
	sort.Slice(all, func(i, j int) bool {
		if all[i].Depth != all[j].Depth {
			return all[i].Depth < all[j].Depth
		}
		return all[i].ID < all[j].ID
	})

	for _, node := range all {
		sb.WriteString(fmt.Sprintf("| %5d | %-48s | %-10s | %-9s |\n",
			node.Depth, Truncate(node.ID, 48), node.Type, node.Direction))
	}

	sb.WriteString("+-------+--------------------------------------------------+------------+-----------+\n")

	return sb.String()
}
