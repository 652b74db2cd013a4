package lineage

import (
	"encoding/json"
	"sort"

	"github.com/leapstack-labs/snowline/pkg/catalog"
)

// EdgeKind distinguishes how a dependency was discovered.
type EdgeKind string

const (
	// EdgeDirect marks a reference found in a FROM/JOIN-style clause of a
	// defining query.
	EdgeDirect EdgeKind = "direct_reference"
	// EdgeInferred marks a catalog-index match inside a procedural body.
	EdgeInferred EdgeKind = "inferred"
)

// Node is one object in the lineage graph, keyed by qualified name.
type Node struct {
	Key          string             `json:"key"`
	ObjectType   catalog.ObjectType `json:"object_type"`
	LastModified string             `json:"last_modified,omitempty"`
}

// Edge is a directed dependency: From reads from / is derived from To.
type Edge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Kind EdgeKind `json:"kind"`
}

// Graph is the lineage graph: a node index plus dual adjacency maps so both
// traversal directions are O(1). The logical graph may be cyclic; the
// storage is flat maps keyed by qualified name, so ownership never is.
//
// Graphs are built once and read concurrently afterwards; no mutation after
// Build returns.
type Graph struct {
	nodes map[string]*Node
	// out maps a node to the nodes it depends on (forward / upstream edges).
	out map[string]map[string]EdgeKind
	// in maps a node to the nodes that depend on it (reverse / downstream).
	in map[string]map[string]EdgeKind
	// unresolved maps a source node to referenced identifiers with no
	// matching cataloged object. Recorded, never dropped.
	unresolved map[string][]string
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:      make(map[string]*Node),
		out:        make(map[string]map[string]EdgeKind),
		in:         make(map[string]map[string]EdgeKind),
		unresolved: make(map[string][]string),
	}
}

// AddNode adds or updates a node.
func (g *Graph) AddNode(n Node) {
	if existing, ok := g.nodes[n.Key]; ok {
		if n.ObjectType != "" {
			existing.ObjectType = n.ObjectType
		}
		if n.LastModified != "" {
			existing.LastModified = n.LastModified
		}
		return
	}
	node := n
	g.nodes[n.Key] = &node
}

// AddEdge records that from depends on to. Both endpoints must already be in
// the node index. Duplicate edges collapse; a direct reference wins over an
// inferred one for the same pair.
func (g *Graph) AddEdge(from, to string, kind EdgeKind) bool {
	if _, ok := g.nodes[from]; !ok {
		return false
	}
	if _, ok := g.nodes[to]; !ok {
		return false
	}

	fwd, ok := g.out[from]
	if !ok {
		fwd = make(map[string]EdgeKind)
		g.out[from] = fwd
	}
	if prev, exists := fwd[to]; exists && (prev == EdgeDirect || prev == kind) {
		return false
	}
	fwd[to] = kind

	rev, ok := g.in[to]
	if !ok {
		rev = make(map[string]EdgeKind)
		g.in[to] = rev
	}
	rev[from] = kind
	return true
}

// AddUnresolved records a referenced identifier that matched no cataloged
// object.
func (g *Graph) AddUnresolved(from, ref string) {
	for _, existing := range g.unresolved[from] {
		if existing == ref {
			return
		}
	}
	g.unresolved[from] = append(g.unresolved[from], ref)
	sort.Strings(g.unresolved[from])
}

// GetNode returns the node for a key.
func (g *Graph) GetNode(key string) (*Node, bool) {
	n, ok := g.nodes[key]
	return n, ok
}

// HasNode reports whether key is in the node index.
func (g *Graph) HasNode(key string) bool {
	_, ok := g.nodes[key]
	return ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, targets := range g.out {
		count += len(targets)
	}
	return count
}

// Keys returns all node keys, sorted.
func (g *Graph) Keys() []string {
	keys := make([]string, 0, len(g.nodes))
	for k := range g.nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Nodes returns all nodes sorted by key.
func (g *Graph) Nodes() []Node {
	nodes := make([]Node, 0, len(g.nodes))
	for _, key := range g.Keys() {
		nodes = append(nodes, *g.nodes[key])
	}
	return nodes
}

// Edges returns all edges sorted by (from, to).
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for from, targets := range g.out {
		for to, kind := range targets {
			edges = append(edges, Edge{From: from, To: to, Kind: kind})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// UpstreamOf returns the keys the given node depends on, sorted, with the
// edge kind for each.
func (g *Graph) UpstreamOf(key string) []Edge {
	return g.neighbors(key, g.out, func(from, to string, k EdgeKind) Edge {
		return Edge{From: from, To: to, Kind: k}
	})
}

// DownstreamOf returns the keys that depend on the given node, sorted.
func (g *Graph) DownstreamOf(key string) []Edge {
	return g.neighbors(key, g.in, func(from, to string, k EdgeKind) Edge {
		// Reverse adjacency stores depender under dependee; the logical
		// edge still points depender -> dependee.
		return Edge{From: to, To: from, Kind: k}
	})
}

func (g *Graph) neighbors(key string, adj map[string]map[string]EdgeKind, mk func(a, b string, k EdgeKind) Edge) []Edge {
	targets := adj[key]
	if len(targets) == 0 {
		return nil
	}
	keys := make([]string, 0, len(targets))
	for k := range targets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	edges := make([]Edge, 0, len(keys))
	for _, k := range keys {
		edges = append(edges, mk(key, k, targets[k]))
	}
	return edges
}

// Unresolved returns the unresolved references for a node, sorted.
func (g *Graph) Unresolved(key string) []string {
	return g.unresolved[key]
}

// UnresolvedCount returns the total number of unresolved references.
func (g *Graph) UnresolvedCount() int {
	count := 0
	for _, refs := range g.unresolved {
		count += len(refs)
	}
	return count
}

// graphDoc is the canonical serialized form; nodes and edges are sorted so
// identical graphs serialize byte-for-byte identically.
type graphDoc struct {
	Nodes      []Node              `json:"nodes"`
	Edges      []Edge              `json:"edges"`
	Unresolved map[string][]string `json:"unresolved,omitempty"`
}

// MarshalJSON implements json.Marshaler using the canonical ordering.
func (g *Graph) MarshalJSON() ([]byte, error) {
	doc := graphDoc{Nodes: g.Nodes(), Edges: g.Edges()}
	if len(g.unresolved) > 0 {
		doc.Unresolved = g.unresolved
	}
	return json.Marshal(doc)
}

// UnmarshalJSON implements json.Unmarshaler; the round trip reconstructs the
// same node, edge, and unresolved sets.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var doc graphDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	*g = *NewGraph()
	for _, n := range doc.Nodes {
		g.AddNode(n)
	}
	for _, e := range doc.Edges {
		g.AddEdge(e.From, e.To, e.Kind)
	}
	for from, refs := range doc.Unresolved {
		for _, ref := range refs {
			g.AddUnresolved(from, ref)
		}
	}
	return nil
}
