package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var proposalsCmd = &cobra.Command{
	Use:   "proposals [proposal-id]",
	Short: "List proposals from the current pass, or show one as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if len(args) == 1 {
			p, err := env.Engine.Proposal(ctx, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		}

		result, err := env.Engine.Analyze(ctx)
		if err != nil {
			return err
		}
		formatProposals(os.Stdout, result)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(proposalsCmd)
}
