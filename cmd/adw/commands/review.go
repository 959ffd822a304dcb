package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/valksor/go-adw/internal/state"
	"github.com/valksor/go-adw/internal/workflow"
)

var reviewSkipResolution bool

var reviewCmd = &cobra.Command{
	Use:     "review <issue-number> <adw-id>",
	Short:   "Review the implementation against the plan and fix blockers",
	GroupID: "stages",
	Long: `Have the agent review the run's branch against its plan. Blocking findings are
patched and the review repeated, at most three reviews in total. Tech debt
and skippable findings are reported but do not fail the stage.

With --skip-resolution blockers are only reported.`,
	Args: stageArgs(true),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := workflow.ReviewOptions{SkipResolution: reviewSkipResolution}

		return runStage(cmd, args, func(ctx context.Context, w *workflow.Workflow, issue, id string) (*state.WorkflowState, error) {
			return w.Review(ctx, issue, id, opts)
		})
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)

	reviewCmd.Flags().BoolVar(&reviewSkipResolution, "skip-resolution", false, "Report blockers without fixing them")
}
