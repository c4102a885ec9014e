package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/brandmerge-cli/internal/model"
)

var approveForce bool

var approveCmd = &cobra.Command{
	Use:   "approve <proposal-id>",
	Short: "Execute the merge for a proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Engine.Approve(ctx, args[0], approveForce)
		if err != nil {
			return err
		}
		if !result.Success {
			return eris.Errorf("merge failed: %s", result.Error)
		}

		fmt.Fprintf(os.Stdout, "Merged %d records into %s (%d countries, %d class types, %d permits)\n",
			len(result.MembersMerged),
			result.CanonicalName,
			result.CountriesCount,
			result.ClassTypesCount,
			result.PermitsCount,
		)
		return nil
	},
}

var rejectReason string

var rejectCmd = &cobra.Command{
	Use:   "reject <proposal-id>",
	Short: "Reject a proposal and feed the learning store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Engine.Reject(ctx, args[0], rejectReason); err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Rejected proposal %s\n", args[0])
		return nil
	},
}

var feedbackFlags struct {
	members    []string
	canonical  string
	action     string
	confidence float64
	reason     string
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Record a manual consolidation outcome",
	Long:  "Logs an approved, rejected, or modified consolidation decision so future passes adjust pattern confidence.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		action := model.FeedbackAction(feedbackFlags.action)
		switch action {
		case model.FeedbackApproved, model.FeedbackRejected, model.FeedbackModified:
		default:
			return eris.Errorf("invalid action: %s (want approved, rejected, or modified)", feedbackFlags.action)
		}
		if len(feedbackFlags.members) < 2 {
			return eris.New("at least two --member values are required")
		}
		if feedbackFlags.canonical == "" {
			return eris.New("--canonical is required")
		}

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Engine.RecordFeedback(ctx,
			feedbackFlags.members,
			feedbackFlags.canonical,
			action,
			feedbackFlags.confidence,
			feedbackFlags.reason,
		); err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout, "Feedback recorded.")
		return nil
	},
}

func init() {
	approveCmd.Flags().BoolVar(&approveForce, "force", false, "override the high-risk guard")
	rejectCmd.Flags().StringVar(&rejectReason, "reason", "", "why the proposal is wrong")

	feedbackCmd.Flags().StringSliceVar(&feedbackFlags.members, "member", nil, "brand name in the group (repeatable)")
	feedbackCmd.Flags().StringVar(&feedbackFlags.canonical, "canonical", "", "canonical brand name")
	feedbackCmd.Flags().StringVar(&feedbackFlags.action, "action", "", "approved, rejected, or modified")
	feedbackCmd.Flags().Float64Var(&feedbackFlags.confidence, "confidence", 0, "predicted confidence at decision time")
	feedbackCmd.Flags().StringVar(&feedbackFlags.reason, "reason", "", "free-form note")

	rootCmd.AddCommand(approveCmd, rejectCmd, feedbackCmd)
}
