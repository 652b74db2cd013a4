package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/snowline/pkg/catalog"

	// Metadata source registrations.
	_ "github.com/leapstack-labs/snowline/pkg/catalog/duckdbsource"
	_ "github.com/leapstack-labs/snowline/pkg/catalog/pgsource"
)

// CatalogOptions holds options for the catalog command.
type CatalogOptions struct {
	Database    string
	IncludeDDL  bool
	Concurrency int
	Format      string
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand() *cobra.Command {
	opts := &CatalogOptions{}

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Build a catalog snapshot from the configured source",
		Long: `Connect to the configured metadata source, list every cataloged object,
fetch definition text, and persist the snapshot with its build summary.

The snapshot is the input for lineage queries and dependency exports;
rebuild it whenever warehouse objects change.`,
		Example: `  # Build the catalog for every database
  snowline catalog

  # Restrict to one database, skip DDL text
  snowline catalog --database ANALYTICS --include-ddl=false

  # Persist one record per line
  snowline catalog --catalog-format jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCatalog(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Database, "database", "d", "", "Restrict the build to one database")
	cmd.Flags().BoolVar(&opts.IncludeDDL, "include-ddl", true, "Fetch and persist definition text")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "Parallel DDL fetches (0 = default)")
	cmd.Flags().StringVar(&opts.Format, "catalog-format", "", "Persisted layout (json|jsonl)")

	return cmd
}

func runCatalog(cmd *cobra.Command, opts *CatalogOptions) error {
	cc := NewCommandContext(cmd)
	ctx := cmd.Context()

	src, err := catalog.NewSource(cc.Cfg.Source, cc.Logger)
	if err != nil {
		return err
	}
	if err := src.Connect(ctx, cc.Cfg.Source); err != nil {
		return err
	}
	defer src.Close()

	start := time.Now()
	records, summary, err := catalog.Build(ctx, src, catalog.BuildOptions{
		Database:       opts.Database,
		IncludeDDL:     opts.IncludeDDL,
		DDLConcurrency: opts.Concurrency,
		Logger:         cc.Logger,
	})
	if err != nil {
		return err
	}

	format := opts.Format
	if format == "" {
		format = cc.Cfg.CatalogFormat
	}
	store := catalog.NewStore(cc.Cfg.CatalogDir)
	if err := store.Write(records, summary, format); err != nil {
		return err
	}

	// A new snapshot invalidates any cached graph for this location.
	cc.Service.Invalidate()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cataloged %d objects across %d databases in %s\n",
		summary.ObjectCount, len(summary.Databases), time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(out, "Written to %s (build %s)\n", cc.Cfg.CatalogDir, summary.BuildID)
	for _, w := range summary.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w)
	}
	return nil
}
