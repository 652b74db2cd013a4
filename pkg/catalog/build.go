package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultDDLConcurrency bounds parallel DDL fetches during a catalog build.
const DefaultDDLConcurrency = 8

// BuildOptions configures a catalog build.
type BuildOptions struct {
	// Database restricts the build to one database; empty means all.
	Database string
	// IncludeDDL controls whether definition text is fetched and persisted.
	IncludeDDL bool
	// DDLConcurrency bounds parallel DDL fetches (0 uses the default).
	DDLConcurrency int
	// Format selects the persisted catalog layout: "json" or "jsonl".
	Format string
	// Logger receives build progress; nil discards.
	Logger *slog.Logger
}

// Build lists objects from the source, fetches missing definition text in
// parallel, and returns the records together with the build summary. DDL
// fetch failures are recorded as warnings, never build failures.
func Build(ctx context.Context, src MetadataSource, opts BuildOptions) ([]ObjectRecord, *Summary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	listed, err := src.ListObjects(ctx, opts.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list objects: %w", err)
	}

	// Malformed source rows become warnings, not records.
	var warnings []string
	records := listed[:0]
	for _, r := range listed {
		switch {
		case r.QualifiedName.IsZero():
			warnings = append(warnings, fmt.Sprintf("dropped object with empty qualified name (type %s)", r.ObjectType))
		case !r.ObjectType.Valid():
			warnings = append(warnings, fmt.Sprintf("dropped %s: unknown object type %q", r.Key(), r.ObjectType))
		default:
			records = append(records, r)
		}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Key() < records[j].Key() })

	if opts.IncludeDDL {
		ddlWarnings, err := fetchMissingDDL(ctx, src, records, opts.DDLConcurrency, logger)
		if err != nil {
			return nil, nil, err
		}
		warnings = append(warnings, ddlWarnings...)
	}

	countsByType := make(map[ObjectType]int)
	dbSet := make(map[string]struct{})
	for _, r := range records {
		countsByType[r.ObjectType]++
		dbSet[r.QualifiedName.Database] = struct{}{}
	}
	databases := make([]string, 0, len(dbSet))
	for db := range dbSet {
		databases = append(databases, db)
	}
	sort.Strings(databases)

	summary := &Summary{
		BuildInfo: BuildInfo{
			BuildID:      uuid.New().String(),
			BuiltAt:      time.Now().UTC(),
			ObjectCount:  len(records),
			CountsByType: countsByType,
			DDLChecksums: ChecksumObjects(records),
		},
		Databases: databases,
		Warnings:  warnings,
	}

	logger.Info("catalog built",
		slog.Int("objects", len(records)),
		slog.Int("databases", len(databases)),
		slog.Int("warnings", len(warnings)))

	return records, summary, nil
}

// fetchMissingDDL fills in definition text for objects that carry one,
// bounded by a semaphore. Each record slot is written by exactly one
// goroutine, so no locking is needed around the slice.
func fetchMissingDDL(ctx context.Context, src MetadataSource, records []ObjectRecord, concurrency int, logger *slog.Logger) ([]string, error) {
	if concurrency <= 0 {
		concurrency = DefaultDDLConcurrency
	}

	sem := semaphore.NewWeighted(int64(concurrency))
	g, ctx := errgroup.WithContext(ctx)
	warnSlots := make([]string, len(records))

	for i := range records {
		if !records[i].ObjectType.HasDefinition() || records[i].DefinitionText != "" {
			continue
		}
		i := i
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			ddl, err := src.FetchDDL(ctx, records[i].QualifiedName, records[i].ObjectType)
			if err != nil {
				logger.Warn("ddl fetch failed",
					slog.String("object", records[i].Key()),
					slog.String("error", err.Error()))
				warnSlots[i] = fmt.Sprintf("ddl fetch failed for %s: %v", records[i].Key(), err)
				return nil
			}
			records[i].DefinitionText = ddl
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ddl fetch cancelled: %w", err)
	}

	var warnings []string
	for _, w := range warnSlots {
		if w != "" {
			warnings = append(warnings, w)
		}
	}
	return warnings, nil
}
