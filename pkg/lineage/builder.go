package lineage

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/snowline/pkg/catalog"
)

// BuildAudit aggregates the non-fatal anomalies observed during a build.
// Parse skips and unresolved references are warnings, never failures;
// partial success is the default posture.
type BuildAudit struct {
	Objects      int                 `json:"objects"`
	Edges        int                 `json:"edges"`
	ParseSkipped []string            `json:"parse_skipped,omitempty"`
	Unresolved   map[string][]string `json:"unresolved,omitempty"`
}

// Builder assembles lineage graphs from catalog snapshots.
type Builder struct {
	logger *slog.Logger
	// workers bounds the parallel extraction pass; 0 uses GOMAXPROCS.
	workers int
}

// NewBuilder creates a Builder. A nil logger discards.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{logger: logger}
}

// Build constructs the lineage graph for a catalog snapshot. The node index
// is built first in a single pass; a second pass extracts each object's
// dependencies with the full index available, so bare names resolve against
// every known object. Returns ErrEmptyCatalog for an empty input; every
// other anomaly lands in the audit.
//
// Output is deterministic: identical input produces a byte-identical
// serialized graph regardless of extraction parallelism.
func (b *Builder) Build(ctx context.Context, records []catalog.ObjectRecord) (*Graph, *BuildAudit, error) {
	if len(records) == 0 {
		return nil, nil, ErrEmptyCatalog
	}

	// Pass 1: node index.
	graph := NewGraph()
	idx := NewCatalogIndex(records)
	b.logger.Debug("catalog indexed", slog.Int("objects", idx.Len()))
	for _, r := range records {
		graph.AddNode(Node{
			Key:          r.Key(),
			ObjectType:   r.ObjectType,
			LastModified: r.LastModified.UTC().Format(time.RFC3339Nano),
		})
	}

	// Pass 2: extraction. Each object's scan is independent given the
	// shared read-only index, so the pass runs in parallel; results land in
	// per-object slots and merge in sorted order afterwards, which keeps
	// the output independent of scheduling.
	results := make([]ExtractResult, len(records))
	workers := b.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range records {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = Extract(records[i].DefinitionText, records[i].ObjectType, idx, records[i].QualifiedName)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// Merge in source-key order.
	order := make([]int, len(records))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, c int) bool { return records[order[a]].Key() < records[order[c]].Key() })

	audit := &BuildAudit{Objects: len(records), Unresolved: make(map[string][]string)}
	for _, i := range order {
		from := records[i].Key()
		res := results[i]

		if res.ParseSkipped {
			audit.ParseSkipped = append(audit.ParseSkipped, from)
		}

		targets := make([]string, 0, len(res.References))
		for to := range res.References {
			targets = append(targets, to)
		}
		sort.Strings(targets)
		for _, to := range targets {
			if to == from {
				continue
			}
			graph.AddEdge(from, to, res.References[to])
		}

		for _, ref := range res.Unresolved {
			graph.AddUnresolved(from, ref)
		}
		if len(res.Unresolved) > 0 {
			audit.Unresolved[from] = res.Unresolved
		}
	}
	audit.Edges = graph.EdgeCount()
	if len(audit.Unresolved) == 0 {
		audit.Unresolved = nil
	}

	b.logger.Debug("lineage graph built",
		slog.Int("nodes", graph.NodeCount()),
		slog.Int("edges", graph.EdgeCount()),
		slog.Int("parse_skipped", len(audit.ParseSkipped)),
		slog.Int("unresolved", graph.UnresolvedCount()))

	return graph, audit, nil
}
