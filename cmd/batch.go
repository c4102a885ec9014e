package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/brandmerge-cli/internal/engine"
)

var batchFlags struct {
	minConfidence float64
	limit         int
	dryRun        bool
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Apply low-risk proposals in bulk",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Engine.BatchProcess(ctx, batchFlags.minConfidence, batchFlags.limit, batchFlags.dryRun)
		if err != nil {
			return err
		}

		formatBatchResult(os.Stdout, result, batchFlags.dryRun)
		return nil
	},
}

func formatBatchResult(w io.Writer, result *engine.BatchResult, dryRun bool) {
	if dryRun {
		fmt.Fprintf(w, "Dry run: %d proposals would be processed\n\n", result.WouldProcess)
	} else {
		fmt.Fprintf(w, "Processed %d of %d proposals (%d failed)\n\n",
			result.Processed, result.WouldProcess, result.Failed)
	}

	if len(result.Proposals) == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCONF\tMEMBERS\tCANONICAL\tSTATUS")
	for _, item := range result.Proposals {
		status := "pending"
		switch {
		case item.Merged:
			status = "merged"
		case item.Error != "":
			status = "failed: " + item.Error
		case dryRun:
			status = "would merge"
		}
		fmt.Fprintf(tw, "%s\t%.2f\t%d\t%s\t%s\n",
			item.ProposalID, item.Confidence, item.Members, item.CanonicalName, status)
	}
	tw.Flush()
}

func init() {
	batchCmd.Flags().Float64Var(&batchFlags.minConfidence, "min-confidence", 0.95, "minimum confidence for low-risk proposals to merge")
	batchCmd.Flags().IntVar(&batchFlags.limit, "limit", 50, "max proposals per run (0 for no cap)")
	batchCmd.Flags().BoolVar(&batchFlags.dryRun, "dry-run", false, "report without merging")
	rootCmd.AddCommand(batchCmd)
}
