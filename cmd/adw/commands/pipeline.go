package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valksor/go-adw/internal/display"
	"github.com/valksor/go-adw/internal/log"
	"github.com/valksor/go-adw/internal/pipeline"
)

var pipelinesCmd = &cobra.Command{
	Use:     "pipelines",
	Short:   "List the built-in pipelines",
	GroupID: "info",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Fprint(cmd.OutOrStdout(), display.FormatVariants(pipeline.Variants()))

		return nil
	},
}

// newPipelineCmd exposes a variant as "adw <variant> <issue-number> [adw-id]".
func newPipelineCmd(v pipeline.Variant) *cobra.Command {
	return &cobra.Command{
		Use:     v.Name + " <issue-number> [adw-id]",
		Short:   v.Description,
		GroupID: "pipelines",
		Long: fmt.Sprintf(`%s.

Runs %s, each as its own adw process sharing one adw-id. The chain
stops at the first failing stage; re-run that stage with the printed adw-id
to resume.`, v.Description, v.Stages()),
		Args: stageArgs(false),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, v, args)
		},
	}
}

func runPipeline(cmd *cobra.Command, v pipeline.Variant, args []string) error {
	ctx := cmd.Context()

	runner, err := pipeline.NewExecRunner()
	if err != nil {
		return err
	}
	// Stage processes print their state on stdout; only the final one is
	// passed through below.
	runner.Stdout = cmd.ErrOrStderr()
	runner.Stderr = cmd.ErrOrStderr()
	runner.Prefix = passthroughFlags()

	c := &pipeline.Composer{Runner: runner, Store: openStore()}
	if repo, err := openRepo(); err != nil {
		log.Warn("no repository, progress comments disabled", log.Err(err))
	} else if tr, err := newTracker(ctx, repo); err != nil {
		log.Warn("no tracker, progress comments disabled", log.Err(err))
	} else {
		c.Tracker = tr
	}

	issueNumber, adwID := splitArgs(args)
	res, err := c.Run(ctx, v, issueNumber, adwID)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.ErrOrStderr(), display.SuccessMsg("%s completed for run %s", v.Name, res.ADWID))
	for _, s := range res.Steps {
		switch {
		case s.Err != nil:
			fmt.Fprintln(cmd.ErrOrStderr(), display.WarningMsg("%s failed: %v", s.Stage, s.Err))
		case s.Skipped:
			fmt.Fprintln(cmd.ErrOrStderr(), display.InfoMsg("%s skipped, already completed", s.Stage))
		}
	}

	st, err := c.Store.Load(res.ADWID)
	if err != nil {
		return err
	}
	display.PrintNextSteps(cmd.ErrOrStderr(), st)

	return st.ToStdout(cmd.OutOrStdout())
}

// passthroughFlags forwards the global flags to the stage processes.
func passthroughFlags() []string {
	var out []string
	if verbose {
		out = append(out, "--verbose")
	}
	if noColor {
		out = append(out, "--no-color")
	}
	if jsonLog {
		out = append(out, "--log-json")
	}

	return out
}

func init() {
	rootCmd.AddCommand(pipelinesCmd)
	for _, v := range pipeline.Variants() {
		rootCmd.AddCommand(newPipelineCmd(v))
	}
}
