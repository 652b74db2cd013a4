package lineage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/snowline/internal/testutil"
	"github.com/leapstack-labs/snowline/pkg/catalog"
)

// chainRecords models a three-object dependency chain: A (view) reads B
// (view) reads C (table).
func chainRecords() []catalog.ObjectRecord {
	return []catalog.ObjectRecord{
		rec("DB.S.C", catalog.TypeTable, ""),
		rec("DB.S.B", catalog.TypeView, "SELECT * FROM DB.S.C"),
		rec("DB.S.A", catalog.TypeView, "SELECT * FROM DB.S.B"),
	}
}

func TestBuildEmptyCatalog(t *testing.T) {
	b := NewBuilder(testutil.NewTestLogger(t))
	_, _, err := b.Build(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptyCatalog)
}

func TestBuildChain(t *testing.T) {
	b := NewBuilder(testutil.NewTestLogger(t))
	graph, audit, err := b.Build(context.Background(), chainRecords())
	require.NoError(t, err)

	assert.Equal(t, 3, graph.NodeCount())
	assert.Equal(t, 2, graph.EdgeCount())
	assert.Equal(t, 3, audit.Objects)
	assert.Equal(t, 2, audit.Edges)
	assert.Empty(t, audit.ParseSkipped)
	assert.Empty(t, audit.Unresolved)

	up := graph.UpstreamOf("DB.S.A")
	require.Len(t, up, 1)
	assert.Equal(t, "DB.S.B", up[0].To)
}

func TestBuildRecordsUnresolved(t *testing.T) {
	records := []catalog.ObjectRecord{
		rec("DB.S.BASE", catalog.TypeTable, ""),
		rec("DB.S.D", catalog.TypeView, "SELECT * FROM DB.S.BASE JOIN DB.S.MISSING_TABLE USING (id)"),
	}

	b := NewBuilder(testutil.NewTestLogger(t))
	graph, audit, err := b.Build(context.Background(), records)
	require.NoError(t, err)

	// Unresolved references are warnings, not failures.
	assert.Equal(t, 1, graph.EdgeCount())
	require.Contains(t, audit.Unresolved, "DB.S.D")
	assert.Equal(t, []string{"DB.S.MISSING_TABLE"}, audit.Unresolved["DB.S.D"])
	assert.Equal(t, []string{"DB.S.MISSING_TABLE"}, graph.Unresolved("DB.S.D"))
}

func TestBuildRecordsParseSkips(t *testing.T) {
	records := []catalog.ObjectRecord{
		rec("DB.S.BASE", catalog.TypeTable, ""),
		rec("DB.S.WEIRD", catalog.TypeView, "@@@ not sql @@@"),
	}

	b := NewBuilder(testutil.NewTestLogger(t))
	graph, audit, err := b.Build(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, []string{"DB.S.WEIRD"}, audit.ParseSkipped)
	// The object still exists as a node with no edges.
	assert.True(t, graph.HasNode("DB.S.WEIRD"))
	assert.Empty(t, graph.UpstreamOf("DB.S.WEIRD"))
}

func TestBuildDeterministicAcrossParallelism(t *testing.T) {
	records := make([]catalog.ObjectRecord, 0, 40)
	records = append(records, rec("DB.S.ROOT", catalog.TypeTable, ""))
	for i := 0; i < 39; i++ {
		key := "DB.S.V" + string(rune('A'+i%26)) + string(rune('A'+i/26))
		records = append(records, rec(key, catalog.TypeView, "SELECT * FROM DB.S.ROOT"))
	}

	serialize := func(workers int) []byte {
		b := NewBuilder(nil)
		b.workers = workers
		graph, _, err := b.Build(context.Background(), records)
		require.NoError(t, err)
		data, err := json.Marshal(graph)
		require.NoError(t, err)
		return data
	}

	want := serialize(1)
	for _, workers := range []int{2, 4, 8} {
		assert.Equal(t, want, serialize(workers), "workers=%d", workers)
	}
}

func TestBuildIdempotent(t *testing.T) {
	b := NewBuilder(nil)

	first, _, err := b.Build(context.Background(), chainRecords())
	require.NoError(t, err)
	second, _, err := b.Build(context.Background(), chainRecords())
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	c, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, c)
}

func TestBuildCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBuilder(nil)
	_, _, err := b.Build(ctx, chainRecords())
	require.Error(t, err)
}
