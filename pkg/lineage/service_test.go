package lineage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/snowline/internal/testutil"
	"github.com/leapstack-labs/snowline/pkg/catalog"
)

// newTestService persists a catalog snapshot and returns a service over it.
func newTestService(t *testing.T, records []catalog.ObjectRecord) *Service {
	t.Helper()
	catalogDir := t.TempDir()

	summary := &catalog.Summary{
		BuildInfo: catalog.BuildInfo{
			BuildID:      "test-build",
			BuiltAt:      time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
			ObjectCount:  len(records),
			DDLChecksums: catalog.ChecksumObjects(records),
		},
	}
	require.NoError(t, catalog.NewStore(catalogDir).Write(records, summary, "json"))

	return NewService(catalogDir, t.TempDir(), testutil.NewTestLogger(t))
}

func TestServiceQueryExactKey(t *testing.T) {
	svc := newTestService(t, chainRecords())

	res, err := svc.Query(context.Background(), "DB.S.A", DirectionUpstream, 2)
	require.NoError(t, err)
	assert.Equal(t, "DB.S.A", res.Root)
	assert.Len(t, res.Nodes, 3)
}

func TestServiceQueryPartialName(t *testing.T) {
	svc := newTestService(t, chainRecords())

	res, err := svc.Query(context.Background(), "a", DirectionUpstream, 2)
	require.NoError(t, err)
	assert.Equal(t, "DB.S.A", res.Root)
}

func TestServiceQueryDottedSuffix(t *testing.T) {
	svc := newTestService(t, chainRecords())

	res, err := svc.Query(context.Background(), "S.B", DirectionDownstream, 1)
	require.NoError(t, err)
	assert.Equal(t, "DB.S.B", res.Root)
}

func TestServiceQueryDefaultQualification(t *testing.T) {
	svc := newTestService(t, chainRecords())
	svc.DefaultDatabase = "DB"
	svc.DefaultSchema = "S"

	res, err := svc.Query(context.Background(), "C", DirectionDownstream, 2)
	require.NoError(t, err)
	assert.Equal(t, "DB.S.C", res.Root)
}

func TestServiceQueryAmbiguous(t *testing.T) {
	records := []catalog.ObjectRecord{
		rec("DB.A.ORDERS", catalog.TypeTable, ""),
		rec("DB.B.ORDERS", catalog.TypeTable, ""),
	}
	svc := newTestService(t, records)

	_, err := svc.Query(context.Background(), "orders", DirectionUpstream, 1)
	var ambErr *AmbiguousObjectError
	require.ErrorAs(t, err, &ambErr)
	assert.Equal(t, []string{"DB.A.ORDERS", "DB.B.ORDERS"}, ambErr.Candidates)
}

func TestServiceQueryNotFound(t *testing.T) {
	svc := newTestService(t, chainRecords())

	_, err := svc.Query(context.Background(), "nothing_here", DirectionUpstream, 1)
	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestServiceQueryCacheReuse(t *testing.T) {
	svc := newTestService(t, chainRecords())
	ctx := context.Background()

	first, err := svc.Graph(ctx)
	require.NoError(t, err)
	second, err := svc.Graph(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestServiceExportGraphJSON(t *testing.T) {
	svc := newTestService(t, chainRecords())
	outDir := t.TempDir()

	summary, err := svc.ExportGraph(context.Background(), ExportOptions{
		Format:       ExportJSON,
		OutputDir:    outDir,
		IncludeViews: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Nodes)

	data, err := os.ReadFile(filepath.Join(outDir, "dependencies.json"))
	require.NoError(t, err)

	restored, err := ParseExported(data)
	require.NoError(t, err)
	assert.Equal(t, 3, restored.NodeCount())
}

func TestServiceExportGraphDOT(t *testing.T) {
	svc := newTestService(t, chainRecords())
	outDir := t.TempDir()

	_, err := svc.ExportGraph(context.Background(), ExportOptions{
		Format:       ExportDOT,
		OutputDir:    outDir,
		IncludeViews: true,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, "dependencies.dot"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "digraph lineage")
}

func TestServiceExportExcludesViews(t *testing.T) {
	svc := newTestService(t, chainRecords())

	summary, err := svc.ExportGraph(context.Background(), ExportOptions{
		IncludeViews: false,
	})
	require.NoError(t, err)
	// Only the base table survives; view edges disappear with their nodes.
	assert.Equal(t, 1, summary.Nodes)
	assert.Equal(t, 0, summary.Edges)
}

func TestServiceExportDatabaseFilter(t *testing.T) {
	records := append(chainRecords(),
		rec("OTHER.S.T", catalog.TypeTable, ""),
	)
	svc := newTestService(t, records)

	summary, err := svc.ExportGraph(context.Background(), ExportOptions{
		Database:     "db",
		IncludeViews: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Nodes)
}

func TestServiceMissingCatalog(t *testing.T) {
	svc := NewService(t.TempDir(), t.TempDir(), nil)
	_, err := svc.Graph(context.Background())
	require.Error(t, err)
}
