package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/valksor/go-adw/internal/log"
	"github.com/valksor/go-adw/internal/state"
	"github.com/valksor/go-adw/internal/tracker"
	"github.com/valksor/go-adw/internal/vcs"
)

// Plan classifies the issue, prepares its branch, has the agent write a
// plan file and commits it. adwID may be empty, in which case a new run is
// started. Re-running Plan for an existing run reuses its class and branch.
func (w *Workflow) Plan(ctx context.Context, issueNumber, adwID string) (*state.WorkflowState, error) {
	r, err := w.begin(ctx, StagePlan, issueNumber, adwID, true)
	if err != nil {
		return nil, err
	}

	issue, err := r.fetchIssue(ctx)
	if err != nil {
		return r.st, r.fail(ctx, AgentOps, err)
	}

	if r.st.IssueClass == "" {
		class, err := r.classify(ctx, issue)
		if err != nil {
			return r.st, r.fail(ctx, AgentClassifier, err)
		}
		r.st.IssueClass = class
		r.comment(ctx, AgentOps, "✅ Issue classified as: "+string(class))
	}

	if err := r.ensureBranch(ctx, issue); err != nil {
		return r.st, r.fail(ctx, AgentOps, err)
	}
	if err := r.save(); err != nil {
		return r.st, r.fail(ctx, AgentOps, err)
	}

	r.comment(ctx, AgentPlanner, "✅ Building implementation plan")
	res, err := r.execute(ctx, string(r.st.IssueClass), AgentPlanner,
		r.st.IssueNumber, r.st.ADWID, issueJSON(issue))
	if err != nil {
		return r.st, r.fail(ctx, AgentPlanner, fmt.Errorf("build plan: %w", err))
	}

	planFile := extractPath(res.Output)
	if err := w.checkFile(planFile); err != nil {
		return r.st, r.fail(ctx, AgentPlanner, fmt.Errorf("plan file: %w", err))
	}
	r.st.PlanFile = planFile
	if err := r.save(); err != nil {
		return r.st, r.fail(ctx, AgentOps, err)
	}
	log.Info("plan created", "plan_file", planFile)
	r.comment(ctx, AgentPlanner, "✅ Plan file created: "+planFile)

	if err := r.commit(ctx, AgentPlanner, r.st.IssueClass, issue); err != nil {
		return r.st, r.fail(ctx, AgentPlanner, err)
	}
	if err := r.finalize(ctx, issue); err != nil {
		return r.st, r.fail(ctx, AgentOps, err)
	}

	return r.st, r.complete(ctx, state.PhasePlanned)
}

// classify asks the agent which slash command fits the issue.
func (r *run) classify(ctx context.Context, issue *tracker.Issue) (state.IssueClass, error) {
	res, err := r.execute(ctx, "/classify_issue", AgentClassifier, issueJSON(issue))
	if err != nil {
		return "", fmt.Errorf("classify issue: %w", err)
	}

	class, err := parseIssueClass(res.Output)
	if err != nil {
		return "", fmt.Errorf("classify issue: %w", err)
	}

	return class, nil
}

// ensureBranch checks out the run's branch, naming and creating it first
// when the state has none. The agent proposes the name; a deterministic
// name is used when its answer is not a valid branch name.
func (r *run) ensureBranch(ctx context.Context, issue *tracker.Issue) error {
	if r.st.BranchName != "" {
		if _, err := r.w.opts.Repo.EnsureBranch(ctx, r.st.BranchName, ""); err != nil {
			return fmt.Errorf("checkout %s: %w", r.st.BranchName, err)
		}
		r.comment(ctx, AgentOps, "✅ Using existing branch: "+r.st.BranchName)

		return nil
	}

	res, err := r.execute(ctx, "/generate_branch_name", AgentBranchGenerator,
		r.st.IssueClass.Name(), r.st.ADWID, issueJSON(issue))
	if err != nil {
		return fmt.Errorf("generate branch name: %w", err)
	}

	name := extractPath(res.Output)
	if !vcs.ValidBranchName(name) {
		fallback := vcs.BranchName(r.st.IssueClass.Name(), r.st.IssueNumber, r.st.ADWID, issue.Title)
		log.Warn("agent branch name unusable, using fallback", "got", name, "branch", fallback)
		name = fallback
	}

	if _, err := r.w.opts.Repo.EnsureBranch(ctx, name, ""); err != nil {
		return fmt.Errorf("create branch %s: %w", name, err)
	}
	r.st.BranchName = name
	r.comment(ctx, AgentOps, "✅ Working on branch: "+name)

	return nil
}

// ErrMissingFile is returned when an agent names a file that does not exist.
var ErrMissingFile = errors.New("file reported by agent does not exist")

// checkFile verifies that path, relative to the work dir, exists.
func (w *Workflow) checkFile(path string) error {
	if path == "" {
		return fmt.Errorf("%w: agent returned no path", ErrMissingFile)
	}
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(w.opts.WorkDir, path)
	}
	if _, err := os.Stat(full); err != nil {
		return fmt.Errorf("%w: %s", ErrMissingFile, strings.TrimSpace(path))
	}

	return nil
}
