package lineage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// RenderFormat selects a traversal output rendering.
type RenderFormat string

const (
	FormatText RenderFormat = "text"
	FormatTree RenderFormat = "tree"
	FormatJSON RenderFormat = "json"
)

// Render serializes a traversal result in the requested format.
func Render(result *TraversalResult, format RenderFormat) (string, error) {
	switch format {
	case FormatText, "":
		return renderText(result), nil
	case FormatTree:
		return renderTree(result), nil
	case FormatJSON:
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode traversal result: %w", err)
		}
		return string(data) + "\n", nil
	}
	return "", fmt.Errorf("unknown render format %q (want text, tree, or json)", format)
}

// renderText produces the flat summary listing.
func renderText(result *TraversalResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Lineage for %s (direction=%s, depth=%d)\n", result.Root, result.Direction, result.Depth)
	fmt.Fprintf(&sb, "Nodes: %d, Edges: %d\n", len(result.Nodes), len(result.Edges))

	for _, n := range result.Nodes {
		fmt.Fprintf(&sb, "  [%d] %s (%s)\n", n.Depth, n.Key, strings.ToLower(n.ObjectType))
	}

	if len(result.Cycles) > 0 {
		sb.WriteString("Cycles detected:\n")
		for _, c := range result.Cycles {
			fmt.Fprintf(&sb, "  %s -> %s\n", c.From, c.To)
		}
	}
	return sb.String()
}

// renderTree produces an indented tree, parent before children, children
// alphabetical. A node revisited deeper in the tree is shown once with an
// ellipsis marker instead of being re-expanded.
func renderTree(result *TraversalResult) string {
	children := make(map[string][]string)
	for _, e := range result.Edges {
		parent, child := e.From, e.To
		if e.Relationship == "depended_on_by" {
			parent, child = e.To, e.From
		}
		children[parent] = append(children[parent], child)
	}
	for k := range children {
		sort.Strings(children[k])
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", result.Root)

	expanded := map[string]bool{result.Root: true}
	var write func(key string, indent int)
	write = func(key string, indent int) {
		for _, child := range children[key] {
			fmt.Fprintf(&sb, "%s%s", strings.Repeat("  ", indent), child)
			if expanded[child] {
				sb.WriteString(" ...\n")
				continue
			}
			sb.WriteString("\n")
			expanded[child] = true
			write(child, indent+1)
		}
	}
	write(result.Root, 1)

	if len(result.Cycles) > 0 {
		sb.WriteString("\nCycles detected:\n")
		for _, c := range result.Cycles {
			fmt.Fprintf(&sb, "  %s -> %s\n", c.From, c.To)
		}
	}
	return sb.String()
}
