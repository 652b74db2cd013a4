package lineage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExportFormat selects a graph interchange format.
type ExportFormat string

const (
	ExportDOT  ExportFormat = "dot"
	ExportJSON ExportFormat = "json"
)

// Export serializes the whole graph. Both formats derive from the same
// canonical snapshot (sorted nodes and edges), so they can never drift from
// one another.
func Export(g *Graph, format ExportFormat) ([]byte, error) {
	nodes := g.Nodes()
	edges := g.Edges()

	switch format {
	case ExportJSON:
		doc := graphDoc{Nodes: nodes, Edges: edges}
		if g.UnresolvedCount() > 0 {
			doc.Unresolved = g.unresolved
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode graph: %w", err)
		}
		return append(data, '\n'), nil

	case ExportDOT:
		return exportDOT(g, nodes, edges), nil
	}
	return nil, fmt.Errorf("unknown export format %q (want dot or json)", format)
}

// exportDOT renders the graph-description text format. Edges that belong to
// a detected cycle are styled red and dashed.
func exportDOT(g *Graph, nodes []Node, edges []Edge) []byte {
	onCycle := CycleEdges(g)

	var sb strings.Builder
	sb.WriteString("digraph lineage {\n")
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=box, fontsize=10];\n")

	for _, n := range nodes {
		fmt.Fprintf(&sb, "  %q [label=%q];\n", n.Key, n.Key+"\n("+strings.ToLower(string(n.ObjectType))+")")
	}
	for _, e := range edges {
		attrs := fmt.Sprintf("label=%q", string(e.Kind))
		if onCycle[[2]string{e.From, e.To}] {
			attrs += ", color=red, style=dashed"
		}
		fmt.Fprintf(&sb, "  %q -> %q [%s];\n", e.From, e.To, attrs)
	}
	sb.WriteString("}\n")
	return []byte(sb.String())
}

// ParseExported reconstructs a graph from its JSON interchange form.
func ParseExported(data []byte) (*Graph, error) {
	g := NewGraph()
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("failed to decode graph: %w", err)
	}
	return g, nil
}
