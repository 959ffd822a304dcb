package workflow

import (
	"context"
	"fmt"

	"github.com/valksor/go-adw/internal/log"
	"github.com/valksor/go-adw/internal/state"
	"github.com/valksor/go-adw/internal/tracker"
)

// PatchKeyword marks the issue text or comment the patch stage acts on.
const PatchKeyword = "adw_patch"

// patchRequest describes one focused change for /patch.
type patchRequest struct {
	ChangeRequest string
	SpecPath      string
	Planner       string
	Implementor   string
	Screenshots   string
}

// createAndImplementPatch has the planner write a patch plan for the
// request and the implementor apply it. patchFile is empty when planning
// failed; err reports the failing step either way.
func (r *run) createAndImplementPatch(ctx context.Context, req patchRequest) (patchFile string, err error) {
	args := []string{r.st.ADWID, req.ChangeRequest, req.SpecPath, req.Planner}
	if req.Screenshots != "" {
		args = append(args, req.Screenshots)
	}

	res, err := r.execute(ctx, "/patch", req.Planner, args...)
	if err != nil {
		return "", fmt.Errorf("create patch plan: %w", err)
	}
	patchFile = extractPath(res.Output)
	if err := r.w.checkFile(patchFile); err != nil {
		return "", fmt.Errorf("patch plan: %w", err)
	}
	log.Info("patch plan created", "agent", req.Planner, "patch_file", patchFile)

	if _, err := r.execute(ctx, "/implement", req.Implementor, patchFile); err != nil {
		return patchFile, fmt.Errorf("implement patch: %w", err)
	}

	return patchFile, nil
}

// Patch applies the change requested by the newest comment mentioning
// adw_patch, or by the issue itself when its body mentions it. adwID may be
// empty to start a new run.
func (w *Workflow) Patch(ctx context.Context, issueNumber, adwID string) (*state.WorkflowState, error) {
	r, err := w.begin(ctx, StagePatch, issueNumber, adwID, true)
	if err != nil {
		return nil, err
	}

	issue, err := r.fetchIssue(ctx)
	if err != nil {
		return r.st, r.fail(ctx, AgentOps, err)
	}

	if r.st.IssueClass == "" {
		r.st.IssueClass = state.ClassPatch
	}
	if err := r.ensureBranch(ctx, issue); err != nil {
		return r.st, r.fail(ctx, AgentOps, err)
	}
	if err := r.save(); err != nil {
		return r.st, r.fail(ctx, AgentOps, err)
	}

	change, err := tracker.FindKeyword(issue, PatchKeyword)
	if err != nil {
		return r.st, r.fail(ctx, AgentOps,
			fmt.Errorf("%w. Add '%s' to the issue or a comment to trigger the patch workflow", err, PatchKeyword))
	}
	r.comment(ctx, AgentPatchPlanner, "✅ Creating patch plan from:\n\n```\n"+change+"\n```")

	patchFile, err := r.createAndImplementPatch(ctx, patchRequest{
		ChangeRequest: change,
		Planner:       AgentPatchPlanner,
		Implementor:   AgentPatchImplementor,
	})
	if patchFile != "" {
		r.st.PatchFile = patchFile
		if serr := r.save(); serr != nil {
			return r.st, r.fail(ctx, AgentOps, serr)
		}
		r.comment(ctx, AgentPatchPlanner, "✅ Patch plan created: "+patchFile)
	}
	if err != nil {
		agentName := AgentPatchPlanner
		if patchFile != "" {
			agentName = AgentPatchImplementor
		}

		return r.st, r.fail(ctx, agentName, err)
	}
	r.comment(ctx, AgentPatchImplementor, "✅ Patch implemented")

	if err := r.commit(ctx, AgentPatchImplementor, state.ClassPatch, issue); err != nil {
		return r.st, r.fail(ctx, AgentPatchImplementor, err)
	}
	if err := r.finalize(ctx, issue); err != nil {
		return r.st, r.fail(ctx, AgentOps, err)
	}

	var phases []state.Phase
	if !state.CanEnter(r.st.Phase, state.PhaseBuilt) {
		phases = append(phases, state.PhasePlanned)
	}

	return r.st, r.complete(ctx, append(phases, state.PhaseBuilt)...)
}
