package commands

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/snowline/pkg/catalog"
)

// SummaryOptions holds options for the summary command.
type SummaryOptions struct {
	OutputFormat string
}

// NewSummaryCommand creates the summary command.
func NewSummaryCommand() *cobra.Command {
	opts := &SummaryOptions{}

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the current catalog build summary",
		Long: `Display the persisted catalog summary: build identity, object counts by
type, covered databases, and warnings from the last build.

Reads only the summary file; the object records themselves are not
loaded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSummary(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.OutputFormat, "format", "f", "table", "Output format (table|json)")

	return cmd
}

func runSummary(cmd *cobra.Command, opts *SummaryOptions) error {
	cc := NewCommandContext(cmd)

	summary, err := catalog.NewStore(cc.Cfg.CatalogDir).ReadSummary()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.OutputFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Fprintf(out, "Catalog build %s (%s)\n", summary.BuildID, summary.BuiltAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "Objects: %d  Databases: %d\n\n", summary.ObjectCount, len(summary.Databases))

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Object Type", "Count"})

	for _, typ := range catalog.AllObjectTypes {
		if count, ok := summary.CountsByType[typ]; ok {
			t.AppendRow(table.Row{string(typ), count})
		}
	}
	t.AppendFooter(table.Row{"Total", summary.ObjectCount})
	t.Render()

	if len(summary.Warnings) > 0 {
		fmt.Fprintf(out, "\nWarnings (%d):\n", len(summary.Warnings))
		for _, w := range summary.Warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
	}
	return nil
}
