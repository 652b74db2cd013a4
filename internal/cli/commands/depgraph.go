package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/snowline/pkg/lineage"
)

// DepgraphOptions holds options for the depgraph command.
type DepgraphOptions struct {
	Format           string
	OutputDir        string
	Database         string
	IncludeViews     bool
	IncludeFunctions bool
}

// NewDepgraphCommand creates the depgraph command.
func NewDepgraphCommand() *cobra.Command {
	opts := &DepgraphOptions{}

	cmd := &cobra.Command{
		Use:   "depgraph",
		Short: "Export the whole dependency graph",
		Long: `Export the dependency graph over the current catalog as JSON or DOT.

Edges on a circular dependency are styled red and dashed in DOT output.
The export summary reports node and edge counts, unresolved references,
and every cycle found.`,
		Example: `  # JSON export into the configured output directory
  snowline depgraph

  # DOT, one database only, tables and views
  snowline depgraph --format dot --database ANALYTICS --include-views

  # Render the DOT output (requires graphviz)
  snowline depgraph --format dot && dot -Tsvg dependencies/dependencies.dot -o graph.svg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDepgraph(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "json", "Export format (json|dot)")
	cmd.Flags().StringVarP(&opts.OutputDir, "output-dir", "o", "", "Output directory (default from config)")
	cmd.Flags().StringVarP(&opts.Database, "database", "d", "", "Restrict the export to one database")
	cmd.Flags().BoolVar(&opts.IncludeViews, "include-views", true, "Include views, materialized views, and dynamic tables")
	cmd.Flags().BoolVar(&opts.IncludeFunctions, "include-functions", false, "Include functions and procedures")

	return cmd
}

func runDepgraph(cmd *cobra.Command, opts *DepgraphOptions) error {
	cc := NewCommandContext(cmd)

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = cc.Cfg.OutputDir
	}

	summary, err := cc.Service.ExportGraph(cmd.Context(), lineage.ExportOptions{
		Format:           lineage.ExportFormat(opts.Format),
		OutputDir:        outputDir,
		Database:         opts.Database,
		IncludeViews:     opts.IncludeViews,
		IncludeFunctions: opts.IncludeFunctions,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Exported %d nodes, %d edges to %s\n", summary.Nodes, summary.Edges, outputDir)
	if summary.Unresolved > 0 {
		fmt.Fprintf(out, "Unresolved references: %d\n", summary.Unresolved)
	}
	for _, cycle := range summary.Cycles {
		fmt.Fprintf(out, "Cycle: %s\n", strings.Join(cycle, " -> "))
	}
	return nil
}
