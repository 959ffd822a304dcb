package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/valksor/go-adw/internal/log"
	"github.com/valksor/go-adw/internal/state"
	"github.com/valksor/go-adw/internal/tracker"
	"github.com/valksor/go-adw/internal/vcs"
)

// commit asks the agent for a message describing the work of agentName
// and commits every change in the work tree. A clean tree is not an error.
func (r *run) commit(ctx context.Context, agentName string, class state.IssueClass, issue *tracker.Issue) error {
	if class == "" {
		class = state.ClassChore
	}

	res, err := r.execute(ctx, "/commit", agentName+"_committer", agentName, class.Name(), issueJSON(issue))
	if err != nil {
		return fmt.Errorf("create commit message: %w", err)
	}
	msg := strings.TrimSpace(res.Output)
	if msg == "" {
		return errors.New("create commit message: agent returned an empty message")
	}

	hash, err := r.w.opts.Repo.Commit(ctx, msg)
	switch {
	case errors.Is(err, vcs.ErrNothingToCommit):
		log.Info("no changes to commit")

		return nil
	case err != nil:
		return fmt.Errorf("commit: %w", err)
	}

	log.Info("committed changes", "commit", hash, "message", msg)
	r.comment(ctx, agentName, "✅ Changes committed")

	return nil
}

// finalize pushes the run's branch and opens or refreshes its pull request.
func (r *run) finalize(ctx context.Context, issue *tracker.Issue) error {
	branch := r.st.BranchName
	if err := r.w.opts.Repo.Push(ctx, r.w.opts.Remote, branch); err != nil {
		return fmt.Errorf("push %s: %w", branch, err)
	}
	log.Info("pushed branch", "remote", r.w.opts.Remote, "branch", branch)

	if r.w.opts.PRs == nil {
		return nil
	}

	url, err := r.w.opts.PRs.OpenOrUpdatePR(ctx, tracker.PullRequest{
		Title: pullRequestTitle(r.st, issue),
		Body:  pullRequestBody(r.st, issue),
		Head:  branch,
		Base:  r.w.opts.BaseBranch,
		Draft: r.w.opts.DraftPR,
	})
	if err != nil {
		return fmt.Errorf("open pull request: %w", err)
	}

	if url != r.st.PRURL {
		r.st.PRURL = url
		r.comment(ctx, AgentOps, "✅ Pull request: "+url)
	}

	return r.save()
}

func pullRequestTitle(st *state.WorkflowState, issue *tracker.Issue) string {
	class := st.IssueClass
	if class == "" {
		class = state.ClassChore
	}

	return fmt.Sprintf("%s: #%d - %s", class.Name(), issue.Number, issue.Title)
}

func pullRequestBody(st *state.WorkflowState, issue *tracker.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Closes #%d\n\n", issue.Number)
	fmt.Fprintf(&b, "**ADW ID:** `%s`\n", st.ADWID)
	if spec := st.SpecPath(); spec != "" {
		fmt.Fprintf(&b, "**Plan:** `%s`\n", spec)
	}
	if st.DocumentationPath != "" {
		fmt.Fprintf(&b, "**Documentation:** `%s`\n", st.DocumentationPath)
	}

	return b.String()
}
