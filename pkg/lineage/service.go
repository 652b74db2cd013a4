package lineage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/snowline/pkg/catalog"
	"github.com/leapstack-labs/snowline/pkg/identifier"
)

// Service answers lineage queries against a persisted catalog, building and
// caching the graph on demand. The catalog directory doubles as the cache
// location key.
type Service struct {
	catalogDir string
	store      *catalog.Store
	cache      *CacheStore
	logger     *slog.Logger

	// DefaultDatabase and DefaultSchema qualify bare object names supplied
	// by callers.
	DefaultDatabase string
	DefaultSchema   string
}

// NewService creates a Service reading the catalog from catalogDir and
// caching graphs under cacheDir. A nil logger discards.
func NewService(catalogDir, cacheDir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	abs, err := filepath.Abs(catalogDir)
	if err != nil {
		abs = filepath.Clean(catalogDir)
	}
	return &Service{
		catalogDir: abs,
		store:      catalog.NewStore(catalogDir),
		cache:      NewCacheStore(cacheDir, logger),
		logger:     logger,
	}
}

// Graph loads the catalog and returns the (cached or freshly built) lineage
// graph for it.
func (s *Service) Graph(ctx context.Context) (*CacheEntry, error) {
	summary, err := s.store.ReadSummary()
	if err != nil {
		return nil, err
	}
	records, err := s.store.Read()
	if err != nil {
		return nil, err
	}

	fingerprint := catalog.Fingerprint(summary.BuildInfo)
	entry, hit, err := s.cache.GetOrBuild(ctx, s.catalogDir, fingerprint, records)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("lineage graph ready",
		slog.Bool("cache_hit", hit),
		slog.Int("nodes", entry.Graph.NodeCount()))
	return entry, nil
}

// Invalidate forces the next query to rebuild the graph.
func (s *Service) Invalidate() {
	s.cache.Invalidate(s.catalogDir)
}

// Query resolves the object name against the graph and runs a traversal.
// Resolution tries the exact canonical key first, then falls back to a
// unique partial match (bare name or dotted suffix).
func (s *Service) Query(ctx context.Context, object string, direction Direction, depth int) (*TraversalResult, error) {
	entry, err := s.Graph(ctx)
	if err != nil {
		return nil, err
	}

	root, err := s.resolveRoot(entry.Graph, object)
	if err != nil {
		return nil, err
	}
	return Traverse(entry.Graph, root, direction, depth)
}

// resolveRoot maps a caller-supplied name to a graph node key.
func (s *Service) resolveRoot(g *Graph, object string) (string, error) {
	if qn, err := identifier.Normalize(object, s.DefaultDatabase, s.DefaultSchema); err == nil {
		if g.HasNode(qn.Key()) {
			return qn.Key(), nil
		}
	}

	matches := matchesByPartialName(g, object)
	switch len(matches) {
	case 0:
		return "", &NotFoundError{Object: object}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousObjectError{Object: object, Candidates: matches}
	}
}

// matchesByPartialName returns the node keys whose dotted suffix equals the
// (case-folded) partial name.
func matchesByPartialName(g *Graph, partial string) []string {
	want := strings.ToUpper(strings.TrimSpace(partial))
	if want == "" {
		return nil
	}

	var matches []string
	for _, key := range g.Keys() {
		if key == want || strings.HasSuffix(key, "."+want) {
			matches = append(matches, key)
		}
	}
	sort.Strings(matches)
	return matches
}

// ExportOptions filters and targets a whole-graph export.
type ExportOptions struct {
	Format           ExportFormat
	OutputDir        string
	Database         string
	IncludeViews     bool
	IncludeFunctions bool
}

// ExportGraph writes the dependency graph, filtered by object type and
// database, into the output directory as dependencies.json or
// dependencies.dot. It returns the summary of the exported subgraph.
func (s *Service) ExportGraph(ctx context.Context, opts ExportOptions) (*Summary, error) {
	entry, err := s.Graph(ctx)
	if err != nil {
		return nil, err
	}

	g := filterGraph(entry.Graph, opts)
	summary := Report(g)

	if opts.OutputDir != "" {
		if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}

		format := opts.Format
		if format == "" {
			format = ExportJSON
		}
		data, err := Export(g, format)
		if err != nil {
			return nil, err
		}
		name := "dependencies.json"
		if format == ExportDOT {
			name = "dependencies.dot"
		}
		if err := os.WriteFile(filepath.Join(opts.OutputDir, name), data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write export: %w", err)
		}
	}

	return summary, nil
}

// filterGraph copies the graph, keeping only nodes matching the export
// filters; edges with a dropped endpoint are dropped with them.
func filterGraph(g *Graph, opts ExportOptions) *Graph {
	keep := func(n Node) bool {
		if opts.Database != "" && !strings.HasPrefix(n.Key, strings.ToUpper(opts.Database)+".") {
			return false
		}
		switch n.ObjectType {
		case catalog.TypeView, catalog.TypeMaterializedView, catalog.TypeDynamicTable:
			return opts.IncludeViews
		case catalog.TypeFunction, catalog.TypeProcedure:
			return opts.IncludeFunctions
		}
		return true
	}

	out := NewGraph()
	for _, n := range g.Nodes() {
		if keep(n) {
			out.AddNode(n)
		}
	}
	for _, e := range g.Edges() {
		out.AddEdge(e.From, e.To, e.Kind)
	}
	for _, from := range g.Keys() {
		if !out.HasNode(from) {
			continue
		}
		for _, ref := range g.Unresolved(from) {
			out.AddUnresolved(from, ref)
		}
	}
	return out
}
