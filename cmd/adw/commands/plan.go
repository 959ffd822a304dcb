package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/valksor/go-adw/internal/state"
	"github.com/valksor/go-adw/internal/workflow"
)

var planCmd = &cobra.Command{
	Use:     "plan <issue-number> [adw-id]",
	Short:   "Classify an issue, create its branch and write an implementation plan",
	GroupID: "stages",
	Long: `Fetch the issue, classify it as a chore, bug or feature, check out a branch
for it and have the agent write a plan file. The plan is committed and pushed
and a pull request is opened.

Without an adw-id a new run is started and its ID is printed with the state.

Examples:
  adw plan 42
  adw plan 42 a1b2c3d4    # re-plan an existing run`,
	Args: stageArgs(false),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd, args, func(ctx context.Context, w *workflow.Workflow, issue, id string) (*state.WorkflowState, error) {
			return w.Plan(ctx, issue, id)
		})
	},
}

var buildCmd = &cobra.Command{
	Use:     "build <issue-number> <adw-id>",
	Short:   "Implement the plan of a run",
	GroupID: "stages",
	Args:    stageArgs(true),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd, args, func(ctx context.Context, w *workflow.Workflow, issue, id string) (*state.WorkflowState, error) {
			return w.Build(ctx, issue, id)
		})
	},
}

var documentCmd = &cobra.Command{
	Use:     "document <issue-number> <adw-id>",
	Short:   "Write feature documentation for the changes of a run",
	GroupID: "stages",
	Long: `Have the agent document the changes on the run's branch, using the review
screenshots when there are any. Nothing is generated when the branch does not
differ from the base branch.`,
	Args: stageArgs(true),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd, args, func(ctx context.Context, w *workflow.Workflow, issue, id string) (*state.WorkflowState, error) {
			return w.Document(ctx, issue, id)
		})
	},
}

var patchCmd = &cobra.Command{
	Use:     "patch <issue-number> [adw-id]",
	Short:   "Apply the change requested by an adw_patch comment",
	GroupID: "stages",
	Long: `Find the newest comment mentioning ` + workflow.PatchKeyword + ` (or the issue body when
it mentions it), plan a focused patch for it and implement it.`,
	Args: stageArgs(false),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd, args, func(ctx context.Context, w *workflow.Workflow, issue, id string) (*state.WorkflowState, error) {
			return w.Patch(ctx, issue, id)
		})
	},
}

func init() {
	rootCmd.AddCommand(planCmd, buildCmd, documentCmd, patchCmd)
}
