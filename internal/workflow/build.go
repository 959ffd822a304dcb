package workflow

import (
	"context"
	"fmt"

	"github.com/valksor/go-adw/internal/state"
)

// Build implements the plan recorded by Plan on the run's branch.
func (w *Workflow) Build(ctx context.Context, issueNumber, adwID string) (*state.WorkflowState, error) {
	r, err := w.begin(ctx, StageBuild, issueNumber, adwID, false)
	if err != nil {
		return nil, err
	}
	if err := r.requirePhase(ctx, state.PhaseBuilt); err != nil {
		return r.st, err
	}

	if err := r.st.Require("branch_name", "plan_file"); err != nil {
		return r.st, r.fail(ctx, AgentOps, fmt.Errorf("%w (run the plan stage first)", err))
	}
	if err := r.checkoutBranch(ctx); err != nil {
		return r.st, r.fail(ctx, AgentOps, err)
	}

	issue, err := r.fetchIssue(ctx)
	if err != nil {
		return r.st, r.fail(ctx, AgentOps, err)
	}

	r.comment(ctx, AgentImplementor, "✅ Implementing solution")
	if _, err := r.execute(ctx, "/implement", AgentImplementor, r.st.PlanFile); err != nil {
		return r.st, r.fail(ctx, AgentImplementor, fmt.Errorf("implement plan: %w", err))
	}
	r.comment(ctx, AgentImplementor, "✅ Solution implemented")

	if err := r.commit(ctx, AgentImplementor, r.st.IssueClass, issue); err != nil {
		return r.st, r.fail(ctx, AgentImplementor, err)
	}
	if err := r.finalize(ctx, issue); err != nil {
		return r.st, r.fail(ctx, AgentOps, err)
	}

	return r.st, r.complete(ctx, state.PhaseBuilt)
}
