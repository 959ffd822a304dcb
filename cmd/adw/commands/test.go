package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/valksor/go-adw/internal/state"
	"github.com/valksor/go-adw/internal/workflow"
)

var testSkipE2E bool

var testCmd = &cobra.Command{
	Use:     "test <issue-number> <adw-id>",
	Short:   "Run the test suite and fix failing tests",
	GroupID: "stages",
	Long: `Have the agent run the project's tests and resolve failures, re-running the
suite up to four times. End-to-end tests run afterwards unless --skip-e2e is set.`,
	Args: stageArgs(true),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := workflow.TestOptions{SkipE2E: testSkipE2E}

		return runStage(cmd, args, func(ctx context.Context, w *workflow.Workflow, issue, id string) (*state.WorkflowState, error) {
			return w.Test(ctx, issue, id, opts)
		})
	},
}

func init() {
	rootCmd.AddCommand(testCmd)

	testCmd.Flags().BoolVar(&testSkipE2E, "skip-e2e", false, "Skip the end-to-end tests")
}
