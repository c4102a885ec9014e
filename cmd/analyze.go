package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/brandmerge-cli/internal/engine"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a consolidation pass and list proposals",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Engine.Analyze(ctx)
		if err != nil {
			return err
		}

		if analyzeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		if len(result.Proposals) == 0 {
			fmt.Fprintln(os.Stderr, "No consolidation proposals.")
			return nil
		}

		formatProposals(os.Stdout, result)
		return nil
	},
}

func formatProposals(w io.Writer, result *engine.AnalysisResult) {
	fmt.Fprintf(w, "Analyzed %d records (db version %d): %d proposals\n\n",
		result.Records, result.Version, len(result.Proposals))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tCONF\tRISK\tREC\tCANONICAL\tMEMBERS")
	for _, p := range result.Proposals {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\t%s\t%s\n",
			p.ID,
			p.Kind.Type,
			p.Confidence,
			p.RiskLevel,
			p.Recommendation,
			p.CanonicalName,
			strings.Join(p.Members, ", "),
		)
	}
	tw.Flush()
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "emit full proposals as JSON")
	rootCmd.AddCommand(analyzeCmd)
}
