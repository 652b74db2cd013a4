package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/snowline/internal/testutil"
	"github.com/leapstack-labs/snowline/pkg/identifier"
)

// fakeSource is an in-memory MetadataSource for build tests.
type fakeSource struct {
	objects []ObjectRecord
	ddl     map[string]string
	failDDL map[string]error

	mu          sync.Mutex
	inFlight    int64
	maxInFlight int64
	fetches     int
}

func (f *fakeSource) Name() string                                { return "fake" }
func (f *fakeSource) Connect(context.Context, SourceConfig) error { return nil }
func (f *fakeSource) Close() error                                { return nil }

func (f *fakeSource) ListObjects(_ context.Context, database string) ([]ObjectRecord, error) {
	if database == "" {
		return append([]ObjectRecord(nil), f.objects...), nil
	}
	var out []ObjectRecord
	for _, r := range f.objects {
		if r.QualifiedName.Database == database {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSource) FetchDDL(_ context.Context, qn identifier.QualifiedName, _ ObjectType) (string, error) {
	cur := atomic.AddInt64(&f.inFlight, 1)
	defer atomic.AddInt64(&f.inFlight, -1)
	for {
		max := atomic.LoadInt64(&f.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt64(&f.maxInFlight, max, cur) {
			break
		}
	}
	time.Sleep(time.Millisecond)

	f.mu.Lock()
	f.fetches++
	f.mu.Unlock()

	if err, ok := f.failDDL[qn.Key()]; ok {
		return "", err
	}
	return f.ddl[qn.Key()], nil
}

func newFakeSource() *fakeSource {
	mod := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{
		ddl:     make(map[string]string),
		failDDL: make(map[string]error),
	}
	src.objects = append(src.objects, objRecord("DB", "RAW", "EVENTS", TypeTable, mod))
	for _, name := range []string{"V1", "V2", "V3", "V4", "V5"} {
		src.objects = append(src.objects, objRecord("DB", "STG", name, TypeView, mod))
		src.ddl["DB.STG."+name] = "SELECT * FROM DB.RAW.EVENTS"
	}
	return src
}

func TestBuildFetchesMissingDDL(t *testing.T) {
	src := newFakeSource()

	records, summary, err := Build(context.Background(), src, BuildOptions{
		IncludeDDL: true,
		Logger:     testutil.NewTestLogger(t),
	})
	require.NoError(t, err)

	assert.Len(t, records, 6)
	assert.Equal(t, 6, summary.ObjectCount)
	assert.Equal(t, 1, summary.CountsByType[TypeTable])
	assert.Equal(t, 5, summary.CountsByType[TypeView])
	assert.Equal(t, []string{"DB"}, summary.Databases)
	assert.Empty(t, summary.Warnings)

	for _, r := range records {
		if r.ObjectType == TypeView {
			assert.NotEmpty(t, r.DefinitionText, r.Key())
		}
	}
	assert.Equal(t, 5, src.fetches)
}

func TestBuildSkipsDDLWhenDisabled(t *testing.T) {
	src := newFakeSource()

	records, _, err := Build(context.Background(), src, BuildOptions{IncludeDDL: false})
	require.NoError(t, err)

	assert.Equal(t, 0, src.fetches)
	for _, r := range records {
		assert.Empty(t, r.DefinitionText)
	}
}

func TestBuildRecordsSortedByKey(t *testing.T) {
	src := newFakeSource()
	// Reverse the listing order; the build sorts regardless.
	for i, j := 0, len(src.objects)-1; i < j; i, j = i+1, j-1 {
		src.objects[i], src.objects[j] = src.objects[j], src.objects[i]
	}

	records, _, err := Build(context.Background(), src, BuildOptions{})
	require.NoError(t, err)
	for i := 1; i < len(records); i++ {
		assert.Less(t, records[i-1].Key(), records[i].Key())
	}
}

func TestBuildDDLFailureIsWarning(t *testing.T) {
	src := newFakeSource()
	src.failDDL["DB.STG.V3"] = errors.New("permission denied")

	records, summary, err := Build(context.Background(), src, BuildOptions{
		IncludeDDL: true,
		Logger:     testutil.NewTestLogger(t),
	})
	require.NoError(t, err)

	require.Len(t, summary.Warnings, 1)
	assert.Contains(t, summary.Warnings[0], "DB.STG.V3")
	assert.Contains(t, summary.Warnings[0], "permission denied")

	// The failed object keeps its (empty) definition but stays cataloged.
	for _, r := range records {
		if r.Key() == "DB.STG.V3" {
			assert.Empty(t, r.DefinitionText)
		}
	}
}

func TestBuildBoundsDDLConcurrency(t *testing.T) {
	src := newFakeSource()

	_, _, err := Build(context.Background(), src, BuildOptions{
		IncludeDDL:     true,
		DDLConcurrency: 2,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt64(&src.maxInFlight), int64(2))
}

func TestBuildDatabaseFilter(t *testing.T) {
	src := newFakeSource()
	src.objects = append(src.objects,
		objRecord("OTHER", "S", "T", TypeTable, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)))

	records, summary, err := Build(context.Background(), src, BuildOptions{Database: "DB"})
	require.NoError(t, err)
	assert.Len(t, records, 6)
	assert.Equal(t, []string{"DB"}, summary.Databases)
}

func TestBuildDropsMalformedRecords(t *testing.T) {
	mod := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	src := newFakeSource()
	src.objects = append(src.objects,
		objRecord("DB", "RAW", "WIDGET", ObjectType("WIDGET"), mod),
		ObjectRecord{ObjectType: TypeTable, LastModified: mod},
	)

	records, summary, err := Build(context.Background(), src, BuildOptions{
		Logger: testutil.NewTestLogger(t),
	})
	require.NoError(t, err)

	assert.Len(t, records, 6)
	assert.Equal(t, 6, summary.ObjectCount)
	assert.NotContains(t, summary.CountsByType, ObjectType("WIDGET"))

	require.Len(t, summary.Warnings, 2)
	assert.Contains(t, summary.Warnings[0], `unknown object type "WIDGET"`)
	assert.Contains(t, summary.Warnings[1], "empty qualified name")
}

func TestBuildFingerprintChangesAcrossBuilds(t *testing.T) {
	src := newFakeSource()

	_, first, err := Build(context.Background(), src, BuildOptions{})
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, second, err := Build(context.Background(), src, BuildOptions{})
	require.NoError(t, err)

	// Each build gets a fresh identity and fingerprint even over identical
	// objects: BuiltAt participates in the fingerprint.
	assert.NotEqual(t, first.BuildID, second.BuildID)
	assert.NotEqual(t, Fingerprint(first.BuildInfo), Fingerprint(second.BuildInfo))
}

var _ MetadataSource = (*fakeSource)(nil)

func init() {
	// Exercised by the registry tests below.
	RegisterSource("fake", func(*slog.Logger) MetadataSource { return &fakeSource{} })
}

func TestSourceRegistry(t *testing.T) {
	src, err := NewSource(SourceConfig{Type: "fake"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "fake", src.Name())

	assert.Contains(t, ListSources(), "fake")

	_, err = NewSource(SourceConfig{Type: "nope"}, nil)
	var unknownErr *UnknownSourceError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "nope", unknownErr.Type)

	_, err = NewSource(SourceConfig{}, nil)
	require.Error(t, err)
}
