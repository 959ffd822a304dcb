package workflow

import (
	"context"
	"fmt"

	"github.com/valksor/go-adw/internal/log"
	"github.com/valksor/go-adw/internal/state"
)

// Document has the agent write feature documentation for the changes on
// the run's branch. When the branch does not differ from the base branch
// there is nothing to document and the stage succeeds without output.
func (w *Workflow) Document(ctx context.Context, issueNumber, adwID string) (*state.WorkflowState, error) {
	r, err := w.begin(ctx, StageDocument, issueNumber, adwID, false)
	if err != nil {
		return nil, err
	}
	if err := r.requirePhase(ctx, state.PhaseDocumented); err != nil {
		return r.st, err
	}

	if err := r.checkoutBranch(ctx); err != nil {
		return r.st, r.fail(ctx, AgentOps, fmt.Errorf("%w (run the plan stage first)", err))
	}

	base := w.opts.Remote + "/" + w.opts.BaseBranch
	stat, err := w.opts.Repo.DiffStat(ctx, base)
	switch {
	case err != nil:
		// Let the agent decide when the diff cannot be computed.
		log.Warn("cannot check for changes, documenting anyway", "base", base, log.Err(err))
	case stat == "":
		log.Info("no changes to document", "base", base)
		r.comment(ctx, AgentOps, "ℹ️ No changes detected between current branch and "+base+
			" - skipping documentation generation")

		return r.st, r.complete(ctx, state.PhaseDocumented)
	default:
		log.Debug("changes found", "stat", stat)
	}

	issue, err := r.fetchIssue(ctx)
	if err != nil {
		return r.st, r.fail(ctx, AgentOps, err)
	}

	screenshots := r.findScreenshotDir()
	args := []string{r.st.ADWID, r.st.SpecPath()}
	if screenshots != "" {
		args = append(args, screenshots)
	}
	log.Info("generating documentation", "spec", r.st.SpecPath(), "screenshots", describeScreenshots(screenshots))
	r.comment(ctx, AgentDocumenter, "✅ Generating documentation")

	res, err := r.execute(ctx, "/document", AgentDocumenter, args...)
	if err != nil {
		return r.st, r.fail(ctx, AgentDocumenter, fmt.Errorf("generate documentation: %w", err))
	}

	r.st.DocumentationPath = extractPath(res.Output)
	if err := r.save(); err != nil {
		return r.st, r.fail(ctx, AgentOps, err)
	}
	r.comment(ctx, AgentDocumenter, "✅ Documentation created: "+r.st.DocumentationPath)

	if err := r.commit(ctx, AgentDocumenter, r.st.IssueClass, issue); err != nil {
		return r.st, r.fail(ctx, AgentDocumenter, err)
	}
	if err := r.finalize(ctx, issue); err != nil {
		return r.st, r.fail(ctx, AgentOps, err)
	}

	return r.st, r.complete(ctx, state.PhaseDocumented)
}
