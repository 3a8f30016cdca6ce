package analysis

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var partLabelPattern = regexp.MustCompile(`(?i)PART\s*(\d+)`)

// PartMatrix is a citation adjacency matrix between the parts of a
// document. Section-level edges are attributed to the owning parts; edges
// to external targets are not counted.
type PartMatrix struct {
	// Parts is the ordered list of part headings, in document order.
	Parts []string `json:"parts"`

	// Matrix[i][j] is the count of citations from Parts[i] to Parts[j].
	Matrix [][]int `json:"matrix"`

	// Incoming[i] is the total citations into Parts[i].
	Incoming []int `json:"incoming"`

	// Outgoing[i] is the total citations out of Parts[i].
	Outgoing []int `json:"outgoing"`

	// TotalRefs is the number of edges counted.
	TotalRefs int `json:"total_refs"`
}

// PartConnection is a part with its citation counts.
type PartConnection struct {
	Part     string `json:"part"`
	Incoming int    `json:"incoming"`
	Outgoing int    `json:"outgoing"`
	Total    int    `json:"total"`
}

// PartCluster is a set of parts connected through citations.
type PartCluster struct {
	Parts []string `json:"parts"`
	Size  int      `json:"size"`
}

// MatrixReport contains the full part matrix analysis.
type MatrixReport struct {
	Matrix        *PartMatrix      `json:"matrix"`
	MostConnected []PartConnection `json:"most_connected"`
	Clusters      []PartCluster    `json:"clusters"`
}

// BuildPartMatrix builds a part-to-part citation matrix from a graph.
func BuildPartMatrix(g *Graph) *PartMatrix {
	m := &PartMatrix{}
	index := make(map[string]int)
	for _, n := range g.Nodes {
		if n.Type == NodePart {
			index[n.ID] = len(m.Parts)
			m.Parts = append(m.Parts, n.ID)
		}
	}

	n := len(m.Parts)
	m.Matrix = make([][]int, n)
	for i := range m.Matrix {
		m.Matrix[i] = make([]int, n)
	}
	m.Incoming = make([]int, n)
	m.Outgoing = make([]int, n)

	// sourcePart maps an edge source heading to its part index.
	sourcePart := make(map[string]int)
	for _, node := range g.Nodes {
		if node.Type != NodeSection {
			continue
		}
		if i, ok := index[node.Part]; ok {
			if _, seen := sourcePart[node.ID]; !seen {
				sourcePart[node.ID] = i
			}
		}
	}

	for _, e := range g.Edges {
		from, ok := sourcePart[e.Source]
		if !ok {
			continue
		}
		to, ok := partOf(g, index, e.Target)
		if !ok {
			continue
		}
		m.Matrix[from][to]++
		m.Outgoing[from]++
		m.Incoming[to]++
		m.TotalRefs++
	}

	return m
}

// partOf returns the part index a target node belongs to.
func partOf(g *Graph, index map[string]int, target string) (int, bool) {
	node, ok := g.Node(target)
	if !ok {
		return 0, false
	}
	if node.Type == NodePart {
		i, ok := index[node.ID]
		return i, ok
	}
	i, ok := index[node.Part]
	return i, ok
}

// MostConnected returns the parts with the most citations in and out,
// omitting parts with none.
func (m *PartMatrix) MostConnected(limit int) []PartConnection {
	connections := make([]PartConnection, len(m.Parts))
	for i, part := range m.Parts {
		connections[i] = PartConnection{
			Part:     part,
			Incoming: m.Incoming[i],
			Outgoing: m.Outgoing[i],
			Total:    m.Incoming[i] + m.Outgoing[i],
		}
	}

	sort.SliceStable(connections, func(i, j int) bool {
		return connections[i].Total > connections[j].Total
	})

	result := make([]PartConnection, 0)
	for _, c := range connections {
		if c.Total > 0 {
			result = append(result, c)
		}
	}
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result
}

// FindClusters returns groups of two or more parts that cite one another
// directly or through intermediate parts, largest first. Self-citations do
// not form clusters.
func (m *PartMatrix) FindClusters() []PartCluster {
	n := len(m.Parts)
	if n == 0 {
		return nil
	}

	// Undirected adjacency
	adj := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j && (m.Matrix[i][j] > 0 || m.Matrix[j][i] > 0) {
				adj[i] = append(adj[i], j)
			}
		}
	}

	visited := make([]bool, n)
	var clusters []PartCluster

	for start := 0; start < n; start++ {
		if visited[start] || len(adj[start]) == 0 {
			visited[start] = true
			continue
		}

		// BFS to find all connected parts
		queue := []int{start}
		visited[start] = true
		var members []int

		for len(queue) > 0 {
			node := queue[0]
			queue = queue[1:]
			members = append(members, node)

			for _, neighbor := range adj[node] {
				if !visited[neighbor] {
					visited[neighbor] = true
					queue = append(queue, neighbor)
				}
			}
		}

		// Keep document order within a cluster
		sort.Ints(members)
		parts := make([]string, len(members))
		for i, idx := range members {
			parts[i] = m.Parts[idx]
		}
		clusters = append(clusters, PartCluster{Parts: parts, Size: len(parts)})
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Size > clusters[j].Size
	})

	return clusters
}

// labels returns short column labels: the part number when the heading has
// one, otherwise the position.
func (m *PartMatrix) labels() []string {
	labels := make([]string, len(m.Parts))
	for i, part := range m.Parts {
		if match := partLabelPattern.FindStringSubmatch(part); match != nil {
			labels[i] = match[1]
		} else {
			labels[i] = fmt.Sprintf("#%d", i+1)
		}
	}
	return labels
}

// ToASCII generates an ASCII representation of the matrix.
func (m *PartMatrix) ToASCII() string {
	if len(m.Parts) == 0 {
		return "No parts found.\n"
	}

	var sb strings.Builder
	labels := m.labels()

	colWidth := 4 // minimum width for "Part"
	for _, label := range labels {
		if len(label) > colWidth {
			colWidth = len(label)
		}
	}

	// Header row
	sb.WriteString(strings.Repeat(" ", colWidth+1))
	for _, label := range labels {
		sb.WriteString(fmt.Sprintf("%*s ", colWidth, label))
	}
	sb.WriteString("\n")

	separator := strings.Repeat(" ", colWidth+1)
	for range labels {
		separator += strings.Repeat("─", colWidth) + " "
	}
	sb.WriteString(separator + "\n")

	// Data rows
	for i, label := range labels {
		sb.WriteString(fmt.Sprintf("%*s│", colWidth, label))
		for j := range labels {
			count := m.Matrix[i][j]
			switch {
			case count == 0 && i == j:
				sb.WriteString(fmt.Sprintf("%*s ", colWidth, "-"))
			case count == 0:
				sb.WriteString(fmt.Sprintf("%*s ", colWidth, "·"))
			default:
				sb.WriteString(fmt.Sprintf("%*d ", colWidth, count))
			}
		}
		sb.WriteString(fmt.Sprintf("│ out:%d\n", m.Outgoing[i]))
	}

	sb.WriteString(separator + "\n")

	// Incoming totals
	sb.WriteString(fmt.Sprintf("%*s│", colWidth, "in"))
	for j := range labels {
		sb.WriteString(fmt.Sprintf("%*d ", colWidth, m.Incoming[j]))
	}
	sb.WriteString("\n")

	return sb.String()
}

// ToCSV generates a CSV representation of the matrix with full headings.
func (m *PartMatrix) ToCSV() (string, error) {
	if len(m.Parts) == 0 {
		return "", nil
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)

	header := append([]string{"Source/Target"}, m.Parts...)
	header = append(header, "Outgoing")
	records := [][]string{header}

	for i, source := range m.Parts {
		row := []string{source}
		for j := range m.Parts {
			row = append(row, fmt.Sprintf("%d", m.Matrix[i][j]))
		}
		row = append(row, fmt.Sprintf("%d", m.Outgoing[i]))
		records = append(records, row)
	}

	incoming := []string{"Incoming"}
	for j := range m.Parts {
		incoming = append(incoming, fmt.Sprintf("%d", m.Incoming[j]))
	}
	incoming = append(incoming, fmt.Sprintf("%d", m.TotalRefs))
	records = append(records, incoming)

	if err := w.WriteAll(records); err != nil {
		return "", fmt.Errorf("writing matrix CSV: %w", err)
	}
	return sb.String(), nil
}

// GenerateMatrixReport creates a complete matrix analysis report.
func GenerateMatrixReport(g *Graph) *MatrixReport {
	matrix := BuildPartMatrix(g)

	return &MatrixReport{
		Matrix:        matrix,
		MostConnected: matrix.MostConnected(10),
		Clusters:      matrix.FindClusters(),
	}
}

// ToJSON generates a JSON representation of the matrix report.
func (report *MatrixReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}

// String returns a formatted string representation of the report.
func (report *MatrixReport) String() string {
	var sb strings.Builder

	sb.WriteString("Part Citation Matrix\n")
	sb.WriteString(strings.Repeat("═", 60) + "\n\n")

	sb.WriteString(report.Matrix.ToASCII())
	sb.WriteString("\n")

	if len(report.MostConnected) > 0 {
		sb.WriteString("Most Connected Parts:\n")
		for i, conn := range report.MostConnected {
			if i >= 5 {
				break
			}
			sb.WriteString(fmt.Sprintf("  %s: %d outgoing, %d incoming (total: %d)\n",
				Truncate(conn.Part, 50), conn.Outgoing, conn.Incoming, conn.Total))
		}
		sb.WriteString("\n")
	}

	if len(report.Clusters) > 0 {
		sb.WriteString("Part Clusters:\n")
		for _, cluster := range report.Clusters {
			sb.WriteString(fmt.Sprintf("  {%s}\n", strings.Join(cluster.Parts, ", ")))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("Total part-to-part citations: %d\n", report.Matrix.TotalRefs))

	return sb.String()
}
