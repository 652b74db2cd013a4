package lineage

import (
	"sort"

	"github.com/leapstack-labs/snowline/pkg/catalog"
)

// Summary aggregates whole-graph statistics, including every circular
// dependency found by a graph-wide strongly-connected-component scan (as
// opposed to the per-query cycle flags a traversal reports).
type Summary struct {
	Nodes        int                        `json:"nodes"`
	Edges        int                        `json:"edges"`
	CountsByType map[catalog.ObjectType]int `json:"counts_by_type"`
	Unresolved   int                        `json:"unresolved_references"`
	// Cycles lists each circular dependency as its ordered path, first key
	// repeated at the end to close the loop.
	Cycles [][]string `json:"cycles,omitempty"`
}

// Report computes the graph summary.
func Report(g *Graph) *Summary {
	counts := make(map[catalog.ObjectType]int)
	for _, n := range g.Nodes() {
		counts[n.ObjectType]++
	}

	return &Summary{
		Nodes:        g.NodeCount(),
		Edges:        g.EdgeCount(),
		CountsByType: counts,
		Unresolved:   g.UnresolvedCount(),
		Cycles:       FindCycles(g),
	}
}

// FindCycles runs Tarjan's strongly-connected-component algorithm over the
// forward adjacency and returns every component of size > 1 (plus
// self-loops, which cannot occur by construction but are handled anyway) as
// an ordered cycle path. Components and paths are sorted so the output is
// deterministic.
func FindCycles(g *Graph) [][]string {
	keys := g.Keys()

	index := make(map[string]int, len(keys))
	lowlink := make(map[string]int, len(keys))
	onStack := make(map[string]bool, len(keys))
	var stack []string
	counter := 0

	var components [][]string

	var strongconnect func(v string)
	strongconnect = func(v string) {
		index[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, e := range g.UpstreamOf(v) {
			w := e.To
			if _, seen := index[w]; !seen {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if index[w] < lowlink[v] {
					lowlink[v] = index[w]
				}
			}
		}

		if lowlink[v] == index[v] {
			var comp []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			if len(comp) > 1 {
				components = append(components, comp)
			}
		}
	}

	for _, k := range keys {
		if _, seen := index[k]; !seen {
			strongconnect(k)
		}
	}

	// Order each cycle starting from its smallest key, following forward
	// edges, and close the loop by repeating the start.
	var cycles [][]string
	for _, comp := range components {
		cycles = append(cycles, orderCycle(g, comp))
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}

// orderCycle walks the component from its smallest member along in-component
// forward edges to produce a readable path.
func orderCycle(g *Graph, comp []string) []string {
	inComp := make(map[string]bool, len(comp))
	for _, k := range comp {
		inComp[k] = true
	}
	start := comp[0]
	for _, k := range comp {
		if k < start {
			start = k
		}
	}

	path := []string{start}
	visited := map[string]bool{start: true}
	cur := start
	for len(path) < len(comp) {
		advanced := false
		for _, e := range g.UpstreamOf(cur) {
			if inComp[e.To] && !visited[e.To] {
				path = append(path, e.To)
				visited[e.To] = true
				cur = e.To
				advanced = true
				break
			}
		}
		if !advanced {
			// Component is strongly connected, so this only happens with
			// branchy components; fall back to sorted membership.
			rest := make([]string, 0, len(comp))
			for _, k := range comp {
				if !visited[k] {
					rest = append(rest, k)
				}
			}
			sort.Strings(rest)
			path = append(path, rest...)
			break
		}
	}
	return append(path, start)
}

// CycleEdges returns the set of (from, to) pairs that lie on some cycle,
// used to style exports.
func CycleEdges(g *Graph) map[[2]string]bool {
	onCycle := make(map[[2]string]bool)
	for _, cycle := range FindCycles(g) {
		members := make(map[string]bool, len(cycle))
		for _, k := range cycle {
			members[k] = true
		}
		for _, e := range g.Edges() {
			if members[e.From] && members[e.To] {
				onCycle[[2]string{e.From, e.To}] = true
			}
		}
	}
	return onCycle
}
