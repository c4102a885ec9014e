package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Inspect and rebuild learned consolidation patterns",
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List learned patterns with success rates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		patterns := env.Learning.Patterns()
		if len(patterns) == 0 {
			fmt.Fprintln(os.Stderr, "No learned patterns yet.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TYPE\tSIGNATURE\tSAMPLES\tSUCCESS\tBOOST")
		for _, p := range patterns {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%+.2f\n",
				p.Type, p.Signature, p.SampleCount, p.SuccessRate, p.ConfidenceBoost)
		}
		tw.Flush()

		return nil
	},
}

var patternsRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Replay the feedback log from scratch",
	Long:  "Discards in-store pattern state and rebuilds it by replaying every feedback event in order. Useful after tuning the learning bounds.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Learning.Rebuild(ctx); err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Rebuilt %d patterns from the feedback log\n", len(env.Learning.Patterns()))
		return nil
	},
}

func init() {
	patternsCmd.AddCommand(patternsListCmd, patternsRebuildCmd)
	rootCmd.AddCommand(patternsCmd)
}
