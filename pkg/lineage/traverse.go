package lineage

import "sort"

// Depth bounds for a single traversal.
const (
	MinDepth = 1
	MaxDepth = 10
)

// Direction selects which edges a traversal follows.
type Direction string

const (
	// DirectionUpstream follows "depends on" edges outward from the root.
	DirectionUpstream Direction = "upstream"
	// DirectionDownstream follows reverse edges to dependents.
	DirectionDownstream Direction = "downstream"
	// DirectionBoth merges independent upstream and downstream traversals.
	DirectionBoth Direction = "both"
)

// ParseDirection validates a direction string.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionUpstream, DirectionDownstream, DirectionBoth:
		return Direction(s), nil
	}
	return "", &InvalidDirectionError{Direction: s}
}

// VisitedNode is one node reached by a traversal, with the BFS level it was
// first reached at (0 = the root).
type VisitedNode struct {
	Key        string `json:"key"`
	ObjectType string `json:"object_type"`
	Depth      int    `json:"depth"`
}

// TraversedEdge is one edge crossed by a traversal. Relationship labels the
// edge from the root's point of view.
type TraversedEdge struct {
	From         string   `json:"from"`
	To           string   `json:"to"`
	Kind         EdgeKind `json:"kind"`
	Relationship string   `json:"relationship"`
}

// CycleEdge records an edge that closed a loop during traversal.
type CycleEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// TraversalResult is the transient product of one query. It is produced per
// call and never persisted.
type TraversalResult struct {
	Root      string          `json:"root"`
	Direction Direction       `json:"direction"`
	Depth     int             `json:"depth"`
	Nodes     []VisitedNode   `json:"nodes"`
	Edges     []TraversedEdge `json:"edges"`
	Cycles    []CycleEdge     `json:"cycles,omitempty"`
}

// Traverse runs a breadth-first, depth-bounded walk over the graph from
// root. Cycles are safe by construction: a visited set keyed by qualified
// name stops re-expansion, and the closing edge is reported in Cycles rather
// than treated as an error. For DirectionBoth the two subtrees are computed
// independently and merged; the depth bound applies to each direction on its
// own.
func Traverse(g *Graph, root string, direction Direction, maxDepth int) (*TraversalResult, error) {
	if maxDepth < MinDepth || maxDepth > MaxDepth {
		return nil, &InvalidDepthError{Depth: maxDepth}
	}
	if _, err := ParseDirection(string(direction)); err != nil {
		return nil, err
	}
	if !g.HasNode(root) {
		return nil, &NotFoundError{Object: root}
	}

	result := &TraversalResult{Root: root, Direction: direction, Depth: maxDepth}

	if direction == DirectionBoth {
		up := walk(g, root, DirectionUpstream, maxDepth)
		down := walk(g, root, DirectionDownstream, maxDepth)
		merged := mergeWalks(up, down)
		result.Nodes, result.Edges, result.Cycles = merged.nodes, merged.edges, merged.cycles
	} else {
		w := walk(g, root, direction, maxDepth)
		result.Nodes, result.Edges, result.Cycles = w.nodes, w.edges, w.cycles
	}

	return result, nil
}

// walkState holds one directional BFS outcome.
type walkState struct {
	nodes  []VisitedNode
	edges  []TraversedEdge
	cycles []CycleEdge
	depths map[string]int
}

// walk performs a level-order traversal in one direction. Neighbor expansion
// is sorted, so the visit order is deterministic.
func walk(g *Graph, root string, direction Direction, maxDepth int) walkState {
	relationship := "depends_on"
	next := g.UpstreamOf
	if direction == DirectionDownstream {
		relationship = "depended_on_by"
		next = g.DownstreamOf
	}

	state := walkState{depths: map[string]int{root: 0}}
	state.nodes = append(state.nodes, visited(g, root, 0))

	frontier := []string{root}
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var nextFrontier []string
		for _, key := range frontier {
			for _, edge := range next(key) {
				neighbor := edge.To
				if direction == DirectionDownstream {
					neighbor = edge.From
				}

				state.edges = append(state.edges, TraversedEdge{
					From:         edge.From,
					To:           edge.To,
					Kind:         edge.Kind,
					Relationship: relationship,
				})

				if seenAt, seen := state.depths[neighbor]; seen {
					// An edge back to a node at a shallower or equal level
					// closes a loop.
					if seenAt <= depth-1 {
						state.cycles = append(state.cycles, CycleEdge{From: key, To: neighbor})
					}
					continue
				}
				state.depths[neighbor] = depth
				state.nodes = append(state.nodes, visited(g, neighbor, depth))
				nextFrontier = append(nextFrontier, neighbor)
			}
		}
		frontier = nextFrontier
	}

	return state
}

func visited(g *Graph, key string, depth int) VisitedNode {
	node, _ := g.GetNode(key)
	typ := ""
	if node != nil {
		typ = string(node.ObjectType)
	}
	return VisitedNode{Key: key, ObjectType: typ, Depth: depth}
}

// mergeWalks combines the upstream and downstream subtrees for presentation:
// nodes deduplicated (keeping the shallower depth), edges deduplicated,
// cycles concatenated.
func mergeWalks(up, down walkState) walkState {
	merged := walkState{depths: make(map[string]int)}

	nodeIdx := make(map[string]int)
	for _, w := range []walkState{up, down} {
		for _, n := range w.nodes {
			if at, ok := nodeIdx[n.Key]; ok {
				if n.Depth < merged.nodes[at].Depth {
					merged.nodes[at].Depth = n.Depth
				}
				continue
			}
			nodeIdx[n.Key] = len(merged.nodes)
			merged.nodes = append(merged.nodes, n)
		}
		merged.cycles = append(merged.cycles, w.cycles...)
	}

	type edgeKey struct{ from, to, rel string }
	seen := make(map[edgeKey]struct{})
	for _, w := range []walkState{up, down} {
		for _, e := range w.edges {
			k := edgeKey{e.From, e.To, e.Relationship}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			merged.edges = append(merged.edges, e)
		}
	}

	sort.Slice(merged.nodes, func(i, j int) bool {
		if merged.nodes[i].Depth != merged.nodes[j].Depth {
			return merged.nodes[i].Depth < merged.nodes[j].Depth
		}
		return merged.nodes[i].Key < merged.nodes[j].Key
	})
	return merged
}
