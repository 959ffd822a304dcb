// Package workflow runs the ADW stages: plan, build, test, review,
// document and patch. Each stage loads or creates the persisted state for
// an ADW ID, drives the agent through slash commands, reports progress on
// the originating issue and saves what it produced.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/valksor/go-adw/internal/agent"
	"github.com/valksor/go-adw/internal/log"
	"github.com/valksor/go-adw/internal/metrics"
	"github.com/valksor/go-adw/internal/state"
	"github.com/valksor/go-adw/internal/tracker"
)

// Stage names tag state saves, run logs and metrics.
const (
	StagePlan     = "adw_plan"
	StageBuild    = "adw_build"
	StageTest     = "adw_test"
	StageReview   = "adw_review"
	StageDocument = "adw_document"
	StagePatch    = "adw_patch"
)

// Agent names namespace the audit output under agents/<adw_id>/.
const (
	AgentOps                    = "ops"
	AgentClassifier             = "issue_classifier"
	AgentBranchGenerator        = "branch_generator"
	AgentPlanner                = "sdlc_planner"
	AgentImplementor            = "sdlc_implementor"
	AgentTester                 = "test_runner"
	AgentTestResolver           = "test_resolver"
	AgentE2ETester              = "e2e_test_runner"
	AgentE2EResolver            = "e2e_test_resolver"
	AgentReviewer               = "reviewer"
	AgentReviewPatchPlanner     = "review_patch_planner"
	AgentReviewPatchImplementor = "review_patch_implementor"
	AgentDocumenter             = "documenter"
	AgentPatchPlanner           = "patch_planner"
	AgentPatchImplementor       = "patch_implementor"
)

// Repository is the git surface the stages need. *vcs.Git implements it.
type Repository interface {
	CurrentBranch(ctx context.Context) (string, error)
	EnsureBranch(ctx context.Context, name, base string) (bool, error)
	Checkout(ctx context.Context, ref string) error
	Commit(ctx context.Context, message string) (string, error)
	Push(ctx context.Context, remote, branch string) error
	DiffStat(ctx context.Context, ref string) (string, error)
}

// Options wires a Workflow to its collaborators.
type Options struct {
	Agent   agent.TemplateExecutor
	Tracker tracker.Tracker
	// PRs opens the pull request after a push; nil skips PR handling.
	PRs   tracker.PullRequester
	Repo  Repository
	Store *state.Store
	// Screenshots maps review screenshot paths to shareable URLs.
	Screenshots ScreenshotUploader
	Metrics     *metrics.Recorder
	// MetricsFile is written under agents/<adw_id>/<stage>/ when set.
	MetricsFile string

	// E2ETestsDir holds the end-to-end test prompts run by the test stage.
	E2ETestsDir string

	// WorkDir is the repository root that relative agent paths refer to.
	WorkDir    string
	Remote     string
	BaseBranch string
	DraftPR    bool

	// Stdout receives the final state of a successful stage.
	Stdout io.Writer
}

// Workflow runs stages against one repository checkout.
type Workflow struct {
	opts Options
	now  func() time.Time
}

// New creates a Workflow.
func New(opts Options) *Workflow {
	if opts.Remote == "" {
		opts.Remote = "origin"
	}
	if opts.BaseBranch == "" {
		opts.BaseBranch = "main"
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Screenshots == nil {
		opts.Screenshots = LocalUploader{Root: opts.WorkDir}
	}

	return &Workflow{opts: opts, now: time.Now}
}

// StageError is returned by every stage that fails. It names the last
// phase the run completed so the user knows where to resume.
type StageError struct {
	Stage string
	ADWID string
	Phase state.Phase
	Err   error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s failed (adw_id %s, last completed phase: %s): %v",
		e.Stage, e.ADWID, e.Phase, e.Err)
	if hint := e.Hint(); hint != "" {
		msg += "; " + hint
	}

	return msg
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Hint tells the user which command resumes the run.
func (e *StageError) Hint() string {
	if e.ADWID == "" {
		return ""
	}
	if errors.Is(e.Err, state.ErrNotFound) {
		return "run the plan stage first: adw plan <issue-number> " + e.ADWID
	}

	return fmt.Sprintf("fix the cause and re-run: adw %s <issue-number> %s",
		strings.TrimPrefix(e.Stage, "adw_"), e.ADWID)
}

// run is the per-invocation context shared by the stage helpers.
type run struct {
	w      *Workflow
	stage  string
	issue  int
	st     *state.WorkflowState
	runLog *log.RunLog
	start  time.Time
}

// begin loads the state for adwID or, when create is set, mints or starts
// one. Downstream stages pass create=false and fail when no state exists.
func (w *Workflow) begin(ctx context.Context, stage, issueNumber, adwID string, create bool) (*run, error) {
	if issueNumber != "" {
		norm, err := tracker.NormalizeNumber(issueNumber)
		if err != nil {
			return nil, &StageError{Stage: stage, ADWID: adwID, Err: err}
		}
		issueNumber = norm
	}

	if adwID == "" {
		if !create {
			return nil, &StageError{Stage: stage, Err: errors.New("adw-id is required for this stage")}
		}
		adwID = state.NewID()
	}

	st, err := w.opts.Store.Load(adwID)
	switch {
	case err == nil:
	case errors.Is(err, state.ErrNotFound) && create:
		st = state.New(adwID, issueNumber)
	default:
		w.reportMissingState(ctx, issueNumber, adwID, err)

		return nil, &StageError{Stage: stage, ADWID: adwID, Err: err}
	}

	if st.IssueNumber == "" {
		st.IssueNumber = issueNumber
	} else if issueNumber != "" && st.IssueNumber != issueNumber {
		log.Warn("issue number differs from state, using state",
			"state", st.IssueNumber, "argument", issueNumber)
	}

	n, err := tracker.ParseNumber(st.IssueNumber)
	if err != nil {
		return nil, &StageError{Stage: stage, ADWID: adwID, Phase: st.Phase, Err: err}
	}
	st.IssueNumber = strconv.Itoa(n)

	r := &run{w: w, stage: stage, issue: n, st: st, start: w.now()}
	if rl, err := log.OpenRunLog(w.opts.Store.Root(), adwID, stage); err != nil {
		log.Warn("run log unavailable", log.Err(err))
	} else {
		r.runLog = rl
	}

	log.Info("stage starting", "issue", n, "phase", st.Phase.String())
	r.comment(ctx, AgentOps, "✅ Starting "+strings.TrimPrefix(stage, "adw_")+" phase")
	r.commentState(ctx, "🔍 Using state")

	return r, nil
}

// reportMissingState tells the issue that a downstream stage found no state.
func (w *Workflow) reportMissingState(ctx context.Context, issueNumber, adwID string, err error) {
	log.Error("cannot load state", log.ADWID(adwID), log.Err(err))

	n, perr := tracker.ParseNumber(issueNumber)
	if perr != nil || !errors.Is(err, state.ErrNotFound) {
		return
	}
	msg := tracker.FormatMessage(adwID, AgentOps, "❌ No state found for this ADW ID. Run the plan stage first.")
	if cerr := w.opts.Tracker.PostComment(ctx, n, msg); cerr != nil {
		log.Warn("failed to post issue comment", log.Err(cerr))
	}
}

// close flushes metrics and detaches the run log.
func (r *run) close(success bool) {
	r.w.opts.Metrics.ObserveStage(r.stage, success, r.w.now().Sub(r.start))
	if r.w.opts.Metrics != nil && r.w.opts.MetricsFile != "" {
		path := filepath.Join(r.w.opts.Store.Dir(r.st.ADWID), r.stage, r.w.opts.MetricsFile)
		if err := r.w.opts.Metrics.WriteTextfile(path); err != nil {
			log.Warn("failed to write metrics", log.Err(err))
		}
	}
	if r.runLog != nil {
		if err := r.runLog.Close(); err != nil {
			log.Warn("failed to close run log", log.Err(err))
		}
	}
}

// fail reports err on the issue, persists the state as it is and returns
// the StageError for the caller to exit with.
func (r *run) fail(ctx context.Context, agentName string, err error) error {
	log.Error("stage failed", log.Err(err))
	r.comment(ctx, agentName, "❌ "+err.Error())
	if saveErr := r.save(); saveErr != nil {
		log.Error("failed to persist state", log.Err(saveErr))
	}
	r.close(false)

	return &StageError{Stage: r.stage, ADWID: r.st.ADWID, Phase: r.st.Phase, Err: err}
}

// complete advances the phase, saves and prints the state.
func (r *run) complete(ctx context.Context, phases ...state.Phase) error {
	for _, p := range phases {
		if err := r.st.Advance(p); err != nil {
			return r.fail(ctx, AgentOps, err)
		}
	}
	if err := r.save(); err != nil {
		return r.fail(ctx, AgentOps, err)
	}

	log.Info("stage completed", "phase", r.st.Phase.String())
	r.comment(ctx, AgentOps, "✅ "+strings.TrimPrefix(r.stage, "adw_")+" phase completed")
	r.commentState(ctx, "📋 Final state")
	if err := r.st.ToStdout(r.w.opts.Stdout); err != nil {
		log.Warn("failed to print state", log.Err(err))
	}
	r.close(true)

	return nil
}

// requirePhase fails the stage when the run has not reached a phase the
// stage producing to may start from.
func (r *run) requirePhase(ctx context.Context, to state.Phase) error {
	if state.CanEnter(r.st.Phase, to) {
		return nil
	}

	return r.fail(ctx, AgentOps, fmt.Errorf("%w: run is %s, cannot start a stage producing %s",
		ErrWrongPhase, r.st.Phase, to))
}

// ErrWrongPhase is returned when a stage runs before its predecessors.
var ErrWrongPhase = errors.New("stage out of order")

func (r *run) save() error {
	return r.w.opts.Store.Save(r.st, r.stage)
}

// comment posts a progress message. Tracker hiccups are logged and do not
// stop the stage.
func (r *run) comment(ctx context.Context, agentName, msg string) {
	body := tracker.FormatMessage(r.st.ADWID, agentName, msg)
	if err := r.w.opts.Tracker.PostComment(ctx, r.issue, body); err != nil {
		log.Warn("failed to post issue comment", log.Err(err))
	}
}

func (r *run) commentState(ctx context.Context, title string) {
	data, err := r.st.Encode()
	if err != nil {
		return
	}
	r.comment(ctx, AgentOps, title+"\n```json\n"+strings.TrimSpace(string(data))+"\n```")
}

// execute runs one slash command for this run and records metrics.
func (r *run) execute(ctx context.Context, command, agentName string, args ...string) (*agent.Result, error) {
	res, err := r.w.opts.Agent.ExecuteTemplate(ctx, agent.Request{
		Command:   command,
		Args:      args,
		ADWID:     r.st.ADWID,
		AgentName: agentName,
	})
	if res == nil {
		res = &agent.Result{}
		if err != nil {
			res.Output = err.Error()
		}
	}
	r.w.opts.Metrics.ObserveAgent(command, err == nil && res.Success, res.Duration, res.CostUSD)
	if err == nil && !res.Success {
		err = fmt.Errorf("%w: %s", agent.ErrAgentFailed, res.Output)
	}

	return res, err
}

// fetchIssue reads the originating issue.
func (r *run) fetchIssue(ctx context.Context) (*tracker.Issue, error) {
	issue, err := r.w.opts.Tracker.FetchIssue(ctx, r.issue)
	if err != nil {
		return nil, fmt.Errorf("fetch issue #%d: %w", r.issue, err)
	}

	return issue, nil
}

// issueJSON renders the fields of issue the prompts use.
func issueJSON(issue *tracker.Issue) string {
	data, err := json.Marshal(issue.Compact())
	if err != nil {
		return "{}"
	}

	return string(data)
}

// checkoutBranch switches to the branch recorded in state.
func (r *run) checkoutBranch(ctx context.Context) error {
	if err := r.st.Require("branch_name"); err != nil {
		return err
	}
	if err := r.w.opts.Repo.Checkout(ctx, r.st.BranchName); err != nil {
		return fmt.Errorf("checkout %s: %w", r.st.BranchName, err)
	}
	log.Info("checked out branch", "branch", r.st.BranchName)

	return nil
}
