package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/valksor/go-adw/internal/agent"
	"github.com/valksor/go-adw/internal/log"
	"github.com/valksor/go-adw/internal/state"
)

// Severity ranks a review finding. Only blockers trigger resolution.
type Severity string

const (
	SeverityBlocker   Severity = "blocker"
	SeverityTechDebt  Severity = "tech_debt"
	SeveritySkippable Severity = "skippable"
)

// ReviewIssue is one finding reported by /review.
type ReviewIssue struct {
	Number         int      `json:"review_issue_number"`
	ScreenshotPath string   `json:"screenshot_path"`
	Description    string   `json:"issue_description"`
	Resolution     string   `json:"issue_resolution"`
	Severity       Severity `json:"issue_severity"`
	ScreenshotURL  string   `json:"screenshot_url,omitempty"`
}

// ReviewResult is the JSON document /review answers with.
type ReviewResult struct {
	Success        bool          `json:"success"`
	Issues         []ReviewIssue `json:"review_issues"`
	Screenshots    []string      `json:"screenshots"`
	ScreenshotURLs []string      `json:"screenshot_urls"`
}

// Blockers returns the blocking findings in review order.
func (r *ReviewResult) Blockers() []ReviewIssue {
	var out []ReviewIssue
	for _, i := range r.Issues {
		if i.Severity == SeverityBlocker {
			out = append(out, i)
		}
	}

	return out
}

// ReviewOptions tunes the review stage.
type ReviewOptions struct {
	// SkipResolution reports blockers without trying to fix them.
	SkipResolution bool
}

// ErrBlockersRemain is returned by Review when blocking findings are left.
var ErrBlockersRemain = errors.New("blocking review issues remain")

// failedReview synthesizes a blocker so a broken review run is reported
// like any other finding.
func failedReview(description, resolution string) *ReviewResult {
	return &ReviewResult{
		Issues: []ReviewIssue{{
			Number:      1,
			Description: description,
			Resolution:  resolution,
			Severity:    SeverityBlocker,
		}},
	}
}

// parseReviewResult decodes /review output, tolerating fences and
// slightly malformed JSON.
func parseReviewResult(output string) (*ReviewResult, error) {
	var res ReviewResult
	if err := parseJSON(output, &res); err != nil {
		return nil, err
	}
	for i := range res.Issues {
		if res.Issues[i].Number == 0 {
			res.Issues[i].Number = i + 1
		}
		res.Issues[i].Severity = Severity(strings.ToLower(strings.TrimSpace(string(res.Issues[i].Severity))))
	}

	return &res, nil
}

// runReview invokes /review once. Only fatal agent errors are returned;
// every other failure becomes a synthesized blocker.
func (r *run) runReview(ctx context.Context, specFile string) (*ReviewResult, error) {
	res, err := r.execute(ctx, "/review", AgentReviewer, r.st.ADWID, specFile, AgentReviewer)
	if err != nil {
		if agent.Fatal(err) {
			return nil, fmt.Errorf("review: %w", err)
		}
		log.Error("review execution failed", log.Err(err))

		return failedReview("Review execution failed: "+res.Output, "Fix the review execution error"), nil
	}

	result, err := parseReviewResult(res.Output)
	if err != nil {
		log.Error("cannot parse review result", log.Err(err))

		return failedReview("Failed to parse review result: "+err.Error(), "Fix the review output format"), nil
	}

	return result, nil
}

// FormatReviewComment renders a review result for the issue, grouped by
// severity and followed by the raw JSON.
func FormatReviewComment(res *ReviewResult) string {
	var b strings.Builder

	if res.Success {
		b.WriteString("## ✅ Review Passed\n\n")
		b.WriteString("The implementation matches the specification.\n\n")
		var shots []string
		for _, u := range res.ScreenshotURLs {
			if u != "" {
				shots = append(shots, u)
			}
		}
		if len(shots) > 0 {
			b.WriteString("### Screenshots\n\n")
			for _, u := range shots {
				fmt.Fprintf(&b, "![%s](%s)\n", u[strings.LastIndex(u, "/")+1:], u)
			}
			b.WriteString("\n")
		}
	} else {
		b.WriteString("## ❌ Review Issues Found\n\n")
		fmt.Fprintf(&b, "Found %d issues during review:\n\n", len(res.Issues))

		groups := []struct {
			severity Severity
			title    string
		}{
			{SeverityBlocker, "### 🚨 Blockers"},
			{SeverityTechDebt, "### ⚠️ Tech Debt"},
			{SeveritySkippable, "### ℹ️ Skippable"},
		}
		for _, g := range groups {
			var issues []ReviewIssue
			for _, i := range res.Issues {
				if i.Severity == g.severity {
					issues = append(issues, i)
				}
			}
			if len(issues) == 0 {
				continue
			}

			b.WriteString(g.title + "\n\n")
			for _, i := range issues {
				fmt.Fprintf(&b, "**Issue #%d**: %s\n", i.Number, i.Description)
				fmt.Fprintf(&b, "- **Resolution**: %s\n", i.Resolution)
				if i.ScreenshotURL != "" {
					fmt.Fprintf(&b, "- **Screenshot**: ![Issue #%d](%s)\n", i.Number, i.ScreenshotURL)
				}
				b.WriteString("\n")
			}
		}
	}

	payload := *res
	if payload.Issues == nil {
		payload.Issues = []ReviewIssue{}
	}
	if payload.Screenshots == nil {
		payload.Screenshots = []string{}
	}
	if payload.ScreenshotURLs == nil {
		payload.ScreenshotURLs = []string{}
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		data = []byte("{}")
	}
	b.WriteString("### Review Data\n\n```json\n")
	b.Write(data)
	b.WriteString("\n```")

	return b.String()
}

// Review checks the implementation against the plan and, unless
// resolution is skipped, patches blocking findings and reviews again up to
// MaxReviewRetryAttempts times. Residual tech debt and skippable findings
// do not fail the stage.
func (w *Workflow) Review(ctx context.Context, issueNumber, adwID string, opts ReviewOptions) (*state.WorkflowState, error) {
	r, err := w.begin(ctx, StageReview, issueNumber, adwID, false)
	if err != nil {
		return nil, err
	}
	if err := r.requirePhase(ctx, state.PhaseReviewed); err != nil {
		return r.st, err
	}

	if err := r.st.Require("branch_name"); err != nil {
		return r.st, r.fail(ctx, AgentOps, fmt.Errorf("%w (run the plan stage first)", err))
	}
	specFile := r.st.SpecPath()
	if specFile == "" {
		return r.st, r.fail(ctx, AgentOps, fmt.Errorf("%w: plan_file (could not find spec file for review)", state.ErrMissingField))
	}
	if err := r.checkoutBranch(ctx); err != nil {
		return r.st, r.fail(ctx, AgentOps, err)
	}
	r.comment(ctx, AgentOps, "✅ Found spec file: "+specFile)

	issue, err := r.fetchIssue(ctx)
	if err != nil {
		return r.st, r.fail(ctx, AgentOps, err)
	}

	maxAttempts := MaxReviewRetryAttempts
	if opts.SkipResolution {
		maxAttempts = 1
	}

	var last *ReviewResult
	loop := &RetryLoop[ReviewIssue]{
		MaxAttempts:    maxAttempts,
		SkipResolution: opts.SkipResolution,
		Check: func(ctx context.Context, attempt int) ([]ReviewIssue, error) {
			w.opts.Metrics.IncAttempt("review")
			log.Info("review attempt", "attempt", attempt, "max", maxAttempts)
			r.comment(ctx, AgentReviewer, fmt.Sprintf(
				"✅ Reviewing implementation against specification (attempt %d/%d)", attempt, maxAttempts))

			res, err := r.runReview(ctx, specFile)
			if err != nil {
				return nil, err
			}
			last = res

			if err := r.recordScreenshots(ctx, res); err != nil {
				return nil, err
			}
			for _, i := range res.Issues {
				w.opts.Metrics.IncFinding(string(i.Severity))
			}
			r.comment(ctx, AgentReviewer, FormatReviewComment(res))

			if res.Success {
				log.Info("review passed")

				return nil, nil
			}
			blockers := res.Blockers()
			log.Warn("review found issues", "issues", len(res.Issues), "blockers", len(blockers))
			if len(blockers) > 0 && !opts.SkipResolution && attempt < maxAttempts {
				r.comment(ctx, AgentOps, fmt.Sprintf(
					"🔧 Starting resolution workflow for %d blocker issues", len(blockers)))
			}

			return blockers, nil
		},
		Resolve: func(ctx context.Context, attempt, _ int, finding ReviewIssue) error {
			return r.resolveReviewIssue(ctx, attempt, specFile, finding)
		},
		AfterResolve: func(ctx context.Context, attempt int, out ResolutionOutcome) error {
			r.comment(ctx, AgentOps, fmt.Sprintf(
				"✅ Resolution complete: %d issues resolved, %d failed", out.Resolved, out.Failed))
			if err := r.commit(ctx, AgentReviewPatchImplementor, r.st.IssueClass, issue); err != nil {
				return err
			}
			r.comment(ctx, AgentReviewer, fmt.Sprintf(
				"🔄 Re-running review (attempt %d/%d)...", attempt+1, maxAttempts))

			return nil
		},
	}

	result, err := loop.Run(ctx)
	for _, o := range result.Outcomes {
		w.opts.Metrics.AddResolutions("review", o.Resolved, o.Failed)
	}
	if err != nil {
		return r.st, r.fail(ctx, AgentReviewer, err)
	}

	remaining := len(result.Remaining)
	switch result.Reason {
	case StopSkipped:
		r.comment(ctx, AgentOps, fmt.Sprintf("⚠️ Skipping resolution for %d blocker issues", remaining))
	case StopNoProgress:
		r.comment(ctx, AgentOps, fmt.Sprintf(
			"❌ Resolution failed: Could not resolve any of the %d blocker issues", remaining))
	case StopCeiling:
		r.comment(ctx, AgentOps, fmt.Sprintf(
			"⚠️ Reached maximum retry attempts (%d) with %d blocking issues", maxAttempts, remaining))
	case StopPassed:
		if last != nil && !last.Success {
			log.Warn("review found non-blocking issues", "issues", len(last.Issues))
		}
	}

	if err := r.commit(ctx, AgentReviewer, r.st.IssueClass, issue); err != nil {
		return r.st, r.fail(ctx, AgentReviewer, err)
	}
	if err := r.finalize(ctx, issue); err != nil {
		return r.st, r.fail(ctx, AgentOps, err)
	}

	if !result.Passed() {
		return r.st, r.fail(ctx, AgentReviewer, fmt.Errorf("%w: %d after %d attempts (%s)",
			ErrBlockersRemain, remaining, result.Attempts, result.Reason))
	}

	return r.st, r.complete(ctx, state.PhaseReviewed)
}

// resolveReviewIssue plans and implements a patch for one blocker.
func (r *run) resolveReviewIssue(ctx context.Context, attempt int, specFile string, finding ReviewIssue) error {
	planner := fmt.Sprintf("%s_%d_%d", AgentReviewPatchPlanner, attempt, finding.Number)
	implementor := fmt.Sprintf("%s_%d_%d", AgentReviewPatchImplementor, attempt, finding.Number)

	log.Info("resolving blocker", "issue", finding.Number, "attempt", attempt)
	r.comment(ctx, planner, fmt.Sprintf("📝 Creating patch plan for issue #%d: %s", finding.Number, finding.Description))

	patchFile, err := r.createAndImplementPatch(ctx, patchRequest{
		ChangeRequest: finding.Description + "\n\nSuggested resolution: " + finding.Resolution,
		SpecPath:      specFile,
		Planner:       planner,
		Implementor:   implementor,
		Screenshots:   finding.ScreenshotPath,
	})
	switch {
	case patchFile == "":
		r.comment(ctx, planner, fmt.Sprintf("❌ Failed to create patch plan for issue #%d", finding.Number))

		return err
	case err != nil:
		r.comment(ctx, implementor, fmt.Sprintf(
			"❌ Failed to implement patch for issue #%d: %v", finding.Number, err))

		return err
	}

	r.comment(ctx, planner, "✅ Created patch plan: "+patchFile)
	r.comment(ctx, implementor, fmt.Sprintf("✅ Successfully resolved issue #%d", finding.Number))

	return nil
}
