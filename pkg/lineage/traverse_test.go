package lineage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/snowline/pkg/catalog"
)

func buildGraph(t *testing.T, records []catalog.ObjectRecord) *Graph {
	t.Helper()
	g, _, err := NewBuilder(nil).Build(context.Background(), records)
	require.NoError(t, err)
	return g
}

func TestTraverseUpstreamChain(t *testing.T) {
	g := buildGraph(t, chainRecords())

	res, err := Traverse(g, "DB.S.A", DirectionUpstream, 2)
	require.NoError(t, err)

	require.Len(t, res.Nodes, 3)
	assert.Equal(t, VisitedNode{Key: "DB.S.A", ObjectType: "VIEW", Depth: 0}, res.Nodes[0])
	assert.Equal(t, VisitedNode{Key: "DB.S.B", ObjectType: "VIEW", Depth: 1}, res.Nodes[1])
	assert.Equal(t, VisitedNode{Key: "DB.S.C", ObjectType: "TABLE", Depth: 2}, res.Nodes[2])

	require.Len(t, res.Edges, 2)
	assert.Equal(t, "depends_on", res.Edges[0].Relationship)
	assert.Empty(t, res.Cycles)
}

func TestTraverseDepthBoundStopsExpansion(t *testing.T) {
	g := buildGraph(t, chainRecords())

	res, err := Traverse(g, "DB.S.A", DirectionUpstream, 1)
	require.NoError(t, err)

	require.Len(t, res.Nodes, 2)
	assert.Equal(t, "DB.S.B", res.Nodes[1].Key)
}

func TestTraverseDownstream(t *testing.T) {
	g := buildGraph(t, chainRecords())

	res, err := Traverse(g, "DB.S.C", DirectionDownstream, 5)
	require.NoError(t, err)

	require.Len(t, res.Nodes, 3)
	assert.Equal(t, 0, res.Nodes[0].Depth)
	assert.Equal(t, "DB.S.B", res.Nodes[1].Key)
	assert.Equal(t, "DB.S.A", res.Nodes[2].Key)

	for _, e := range res.Edges {
		assert.Equal(t, "depended_on_by", e.Relationship)
	}
	// Logical edges still point depender -> dependee.
	assert.Equal(t, "DB.S.B", res.Edges[0].From)
	assert.Equal(t, "DB.S.C", res.Edges[0].To)
}

func TestTraverseBothMergesIndependentWalks(t *testing.T) {
	g := buildGraph(t, chainRecords())

	res, err := Traverse(g, "DB.S.B", DirectionBoth, 3)
	require.NoError(t, err)

	require.Len(t, res.Nodes, 3)
	// Root first, then the two neighbors at depth 1 in key order.
	assert.Equal(t, "DB.S.B", res.Nodes[0].Key)
	assert.Equal(t, 0, res.Nodes[0].Depth)
	assert.Equal(t, "DB.S.A", res.Nodes[1].Key)
	assert.Equal(t, 1, res.Nodes[1].Depth)
	assert.Equal(t, "DB.S.C", res.Nodes[2].Key)
	assert.Equal(t, 1, res.Nodes[2].Depth)

	require.Len(t, res.Edges, 2)
}

func TestTraverseInvalidDepth(t *testing.T) {
	g := buildGraph(t, chainRecords())

	for _, depth := range []int{0, -1, 11, 100} {
		_, err := Traverse(g, "DB.S.A", DirectionUpstream, depth)
		var depthErr *InvalidDepthError
		require.ErrorAs(t, err, &depthErr, "depth=%d", depth)
		assert.Equal(t, depth, depthErr.Depth)
	}
}

func TestTraverseInvalidDirection(t *testing.T) {
	g := buildGraph(t, chainRecords())

	_, err := Traverse(g, "DB.S.A", Direction("sideways"), 3)
	var dirErr *InvalidDirectionError
	require.ErrorAs(t, err, &dirErr)
	assert.Equal(t, "sideways", dirErr.Direction)
}

func TestTraverseRootNotFound(t *testing.T) {
	g := buildGraph(t, chainRecords())

	_, err := Traverse(g, "DB.S.NOPE", DirectionUpstream, 3)
	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "DB.S.NOPE", nfErr.Object)
}

// cycleRecords models A -> B -> C -> A.
func cycleRecords() []catalog.ObjectRecord {
	return []catalog.ObjectRecord{
		rec("DB.S.A", catalog.TypeView, "SELECT * FROM DB.S.B"),
		rec("DB.S.B", catalog.TypeView, "SELECT * FROM DB.S.C"),
		rec("DB.S.C", catalog.TypeView, "SELECT * FROM DB.S.A"),
	}
}

func TestTraverseCycleTerminatesAndReports(t *testing.T) {
	g := buildGraph(t, cycleRecords())

	res, err := Traverse(g, "DB.S.A", DirectionUpstream, 5)
	require.NoError(t, err)

	// All three nodes visited exactly once despite the loop.
	require.Len(t, res.Nodes, 3)
	require.Len(t, res.Cycles, 1)
	assert.Equal(t, CycleEdge{From: "DB.S.C", To: "DB.S.A"}, res.Cycles[0])
}

func TestTraverseCycleDepthOneNoCycleEdge(t *testing.T) {
	g := buildGraph(t, cycleRecords())

	// At depth 1 the closing edge C->A is never walked.
	res, err := Traverse(g, "DB.S.A", DirectionUpstream, 1)
	require.NoError(t, err)
	require.Len(t, res.Nodes, 2)
	assert.Empty(t, res.Cycles)
}

func TestParseDirection(t *testing.T) {
	for _, s := range []string{"upstream", "downstream", "both"} {
		d, err := ParseDirection(s)
		require.NoError(t, err)
		assert.Equal(t, Direction(s), d)
	}
	_, err := ParseDirection("up")
	var dirErr *InvalidDirectionError
	require.ErrorAs(t, err, &dirErr)
}

func TestRenderText(t *testing.T) {
	g := buildGraph(t, chainRecords())
	res, err := Traverse(g, "DB.S.A", DirectionUpstream, 2)
	require.NoError(t, err)

	out, err := Render(res, FormatText)
	require.NoError(t, err)
	assert.Contains(t, out, "Lineage for DB.S.A (direction=upstream, depth=2)")
	assert.Contains(t, out, "[0] DB.S.A (view)")
	assert.Contains(t, out, "[2] DB.S.C (table)")
}

func TestRenderTree(t *testing.T) {
	g := buildGraph(t, chainRecords())
	res, err := Traverse(g, "DB.S.A", DirectionUpstream, 2)
	require.NoError(t, err)

	out, err := Render(res, FormatTree)
	require.NoError(t, err)
	assert.Equal(t, "DB.S.A\n  DB.S.B\n    DB.S.C\n", out)
}

func TestRenderTreeMarksRevisited(t *testing.T) {
	g := buildGraph(t, cycleRecords())
	res, err := Traverse(g, "DB.S.A", DirectionUpstream, 5)
	require.NoError(t, err)

	out, err := Render(res, FormatTree)
	require.NoError(t, err)
	assert.Contains(t, out, "DB.S.A ...")
	assert.Contains(t, out, "Cycles detected:")
}

func TestRenderJSON(t *testing.T) {
	g := buildGraph(t, chainRecords())
	res, err := Traverse(g, "DB.S.A", DirectionUpstream, 2)
	require.NoError(t, err)

	out, err := Render(res, FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, out, `"root": "DB.S.A"`)
	assert.Contains(t, out, `"direction": "upstream"`)
}

func TestRenderUnknownFormat(t *testing.T) {
	g := buildGraph(t, chainRecords())
	res, err := Traverse(g, "DB.S.A", DirectionUpstream, 1)
	require.NoError(t, err)

	_, err = Render(res, RenderFormat("yaml"))
	require.Error(t, err)
}
