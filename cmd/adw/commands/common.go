package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/valksor/go-adw/internal/agent"
	"github.com/valksor/go-adw/internal/agent/claude"
	"github.com/valksor/go-adw/internal/display"
	"github.com/valksor/go-adw/internal/metrics"
	"github.com/valksor/go-adw/internal/state"
	"github.com/valksor/go-adw/internal/tracker"
	"github.com/valksor/go-adw/internal/tracker/github"
	"github.com/valksor/go-adw/internal/tracker/gitlab"
	"github.com/valksor/go-adw/internal/vcs"
	"github.com/valksor/go-adw/internal/workflow"
)

// ErrADWIDRequired is returned when a downstream stage gets no ADW ID.
var ErrADWIDRequired = errors.New("adw-id is required for this stage (run `adw plan <issue-number>` first)")

// stageArgs validates "<issue-number> [adw-id]".
func stageArgs(requireID bool) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.RangeArgs(1, 2)(cmd, args); err != nil {
			return err
		}
		if _, err := tracker.ParseNumber(args[0]); err != nil {
			return err
		}
		if requireID && len(args) < 2 {
			return ErrADWIDRequired
		}

		return nil
	}
}

// splitArgs returns the issue number and optional ADW ID.
func splitArgs(args []string) (string, string) {
	if len(args) > 1 {
		return args[0], args[1]
	}

	return args[0], ""
}

// openStore returns the state store of the configured agents dir.
func openStore() *state.Store {
	return state.NewStore(cfg.Storage.AgentsDir)
}

// openRepo opens the repository containing the working directory.
func openRepo() (*vcs.Git, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	return vcs.New(cwd)
}

// issueTracker is the tracker surface the commands need.
type issueTracker interface {
	tracker.Tracker
	tracker.PullRequester
}

// newTracker builds the configured tracker. GitHub owner and repo come from
// the config or the git remote.
func newTracker(ctx context.Context, repo *vcs.Git) (issueTracker, error) {
	switch cfg.Tracker.Kind {
	case "gitlab":
		token, err := gitlab.ResolveToken("")
		if err != nil {
			return nil, err
		}

		return gitlab.New(gitlab.Config{
			Token:       token,
			Host:        cfg.Tracker.GitLabHost,
			ProjectPath: cfg.Tracker.GitLabProject,
		})
	default:
		token, err := github.ResolveToken("")
		if err != nil {
			return nil, err
		}
		remote := ""
		if cfg.Tracker.Owner == "" || cfg.Tracker.Repo == "" {
			remote, err = repo.RemoteURL(ctx, cfg.Git.Remote)
			if err != nil {
				return nil, fmt.Errorf("detect repository: %w", err)
			}
		}

		return github.New(github.Config{
			Token:     token,
			Owner:     cfg.Tracker.Owner,
			Repo:      cfg.Tracker.Repo,
			RemoteURL: remote,
		})
	}
}

// newExecutor builds the agent adapter after checking that the agent CLI
// is configured and usable.
func newExecutor(ctx context.Context, workDir string) (*agent.Executor, error) {
	if err := cfg.RequireAgent(); err != nil {
		return nil, err
	}

	runner := claude.New(claude.Config{
		Path:            cfg.Agent.Path,
		Env:             cfg.Agent.Env,
		Timeout:         cfg.Agent.Timeout,
		SkipPermissions: cfg.Agent.SkipPermissions,
		MinVersion:      cfg.Agent.MinVersion,
	})
	if err := runner.Available(ctx); err != nil {
		return nil, err
	}

	return agent.NewExecutor(agent.ExecutorConfig{
		Runner:       runner,
		Models:       cfg.Agent.Models,
		DefaultModel: cfg.Agent.DefaultModel,
		CommandsDir:  cfg.Agent.CommandsDir,
		AgentsDir:    cfg.Storage.AgentsDir,
		WorkDir:      workDir,
	}), nil
}

// newWorkflow wires a Workflow for the repository in the working directory.
func newWorkflow(cmd *cobra.Command) (*workflow.Workflow, error) {
	ctx := cmd.Context()

	repo, err := openRepo()
	if err != nil {
		return nil, err
	}
	exec, err := newExecutor(ctx, repo.Root())
	if err != nil {
		return nil, err
	}
	tr, err := newTracker(ctx, repo)
	if err != nil {
		return nil, err
	}

	var rec *metrics.Recorder
	if cfg.Metrics.Enabled {
		rec = metrics.New()
	}

	return workflow.New(workflow.Options{
		Agent:       exec,
		Tracker:     tr,
		PRs:         tr,
		Repo:        repo,
		Store:       openStore(),
		Metrics:     rec,
		MetricsFile: cfg.Metrics.File,
		E2ETestsDir: cfg.Agent.E2ETestsDir,
		WorkDir:     repo.Root(),
		Remote:      cfg.Git.Remote,
		BaseBranch:  cfg.Git.BaseBranch,
		DraftPR:     cfg.Tracker.DraftPR,
		Stdout:      cmd.OutOrStdout(),
	}), nil
}

// runStage wires a workflow and runs one stage with the command's args.
func runStage(cmd *cobra.Command, args []string, run func(ctx context.Context, w *workflow.Workflow, issueNumber, adwID string) (*state.WorkflowState, error)) error {
	w, err := newWorkflow(cmd)
	if err != nil {
		return err
	}

	issueNumber, adwID := splitArgs(args)
	st, err := run(cmd.Context(), w, issueNumber, adwID)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.ErrOrStderr(), display.SuccessMsg("%s: run %s is %s", cmd.Name(), st.ADWID, display.FormatPhase(st.Phase)))
	display.PrintNextSteps(cmd.ErrOrStderr(), st)

	return nil
}
