package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/snowline/pkg/lineage"
)

// LineageOptions holds options for the lineage command.
type LineageOptions struct {
	Direction    string
	Depth        int
	OutputFormat string
}

// NewLineageCommand creates the lineage command.
func NewLineageCommand() *cobra.Command {
	opts := &LineageOptions{}

	cmd := &cobra.Command{
		Use:   "lineage <object>",
		Short: "Show lineage for a cataloged object",
		Long: `Traverse the dependency graph from one object, upstream toward what it
reads from, downstream toward what reads from it, or both.

The object may be fully qualified (DATABASE.SCHEMA.NAME), partially
qualified, or a bare name; partial names resolve when they match exactly
one cataloged object.`,
		Example: `  # Upstream dependencies, three levels deep
  snowline lineage ANALYTICS.MART.DAU --direction upstream --depth 3

  # Everything touching a table, as a tree
  snowline lineage orders --direction both --format tree

  # Machine-readable output
  snowline lineage orders --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLineageQuery(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Direction, "direction", "upstream", "Traversal direction (upstream|downstream|both)")
	cmd.Flags().IntVar(&opts.Depth, "depth", 3, "Max traversal depth (1-10)")
	cmd.Flags().StringVarP(&opts.OutputFormat, "format", "f", "", "Output format (text|tree|json)")

	_ = cmd.RegisterFlagCompletionFunc("direction", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"upstream", "downstream", "both"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runLineageQuery(cmd *cobra.Command, object string, opts *LineageOptions) error {
	cc := NewCommandContext(cmd)

	direction, err := lineage.ParseDirection(opts.Direction)
	if err != nil {
		return err
	}

	result, err := cc.Service.Query(cmd.Context(), object, direction, opts.Depth)
	if err != nil {
		return err
	}

	format := lineage.RenderFormat(opts.OutputFormat)
	if format == "" {
		format = lineage.RenderFormat(cc.Cfg.OutputFormat)
	}
	rendered, err := lineage.Render(result, format)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), rendered)
	return nil
}
