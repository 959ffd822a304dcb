// Package pipeline chains workflow stages into named variants. Every stage
// runs as its own process and receives the same ADW ID, so a failed chain
// can be resumed by running the remaining stages with that ID.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/valksor/go-adw/internal/log"
	"github.com/valksor/go-adw/internal/state"
	"github.com/valksor/go-adw/internal/tracker"
)

// Step is one stage invocation of a variant.
type Step struct {
	// Stage is the CLI command that runs the stage, e.g. "plan".
	Stage string
	// Flags are appended after the issue number and ADW ID.
	Flags []string
	// ContinueOnFailure reports the failure and moves on to the next step.
	ContinueOnFailure bool
}

// Variant is a named, fixed sequence of stages.
type Variant struct {
	Name        string
	Description string
	Steps       []Step
}

var variants = []Variant{
	{
		Name:        "plan-build",
		Description: "Plan and implement",
		Steps:       []Step{{Stage: "plan"}, {Stage: "build"}},
	},
	{
		Name:        "plan-build-test",
		Description: "Plan, implement and test",
		Steps:       []Step{{Stage: "plan"}, {Stage: "build"}, {Stage: "test"}},
	},
	{
		Name:        "plan-build-review",
		Description: "Plan, implement and review",
		Steps:       []Step{{Stage: "plan"}, {Stage: "build"}, {Stage: "review"}},
	},
	{
		Name:        "plan-build-test-review",
		Description: "Plan, implement, test and review; test failures are left to the review",
		Steps: []Step{
			{Stage: "plan"},
			{Stage: "build"},
			{Stage: "test", ContinueOnFailure: true},
			{Stage: "review"},
		},
	},
	{
		Name:        "plan-build-document",
		Description: "Plan, implement and document",
		Steps:       []Step{{Stage: "plan"}, {Stage: "build"}, {Stage: "document"}},
	},
	{
		Name:        "sdlc",
		Description: "Full cycle: plan, implement, unit test, review and document",
		Steps: []Step{
			{Stage: "plan"},
			{Stage: "build"},
			{Stage: "test", Flags: []string{"--skip-e2e"}},
			{Stage: "review"},
			{Stage: "document"},
		},
	},
}

// stagePhases is the phase each stage leaves a run in.
var stagePhases = map[string]state.Phase{
	"plan":     state.PhasePlanned,
	"build":    state.PhaseBuilt,
	"test":     state.PhaseTested,
	"review":   state.PhaseReviewed,
	"document": state.PhaseDocumented,
}

var phaseOrder = []state.Phase{
	state.PhaseNone,
	state.PhasePlanned,
	state.PhaseBuilt,
	state.PhaseTested,
	state.PhaseReviewed,
	state.PhaseDocumented,
}

// phaseReached reports whether a run at current has already passed target.
func phaseReached(current, target state.Phase) bool {
	if target == state.PhaseNone {
		return false
	}

	return slices.Index(phaseOrder, current) >= slices.Index(phaseOrder, target)
}

// ErrUnknownVariant is returned by Lookup for names not in Variants.
var ErrUnknownVariant = errors.New("unknown pipeline")

// Variants returns the built-in pipelines in display order.
func Variants() []Variant {
	out := make([]Variant, len(variants))
	copy(out, variants)

	return out
}

// Lookup finds a variant by name.
func Lookup(name string) (Variant, error) {
	for _, v := range variants {
		if v.Name == name {
			return v, nil
		}
	}

	return Variant{}, fmt.Errorf("%w: %s", ErrUnknownVariant, name)
}

// Stages lists the stage names of v joined with " → ".
func (v Variant) Stages() string {
	names := make([]string, len(v.Steps))
	for i, s := range v.Steps {
		names[i] = s.Stage
	}

	return strings.Join(names, " → ")
}

// Runner runs one stage to completion. A non-nil error means the stage
// exited non-zero.
type Runner interface {
	Run(ctx context.Context, args []string) error
}

// StepResult records how one step ended.
type StepResult struct {
	Stage string
	Err   error

	// Skipped is set for steps a resumed run had already completed.
	Skipped bool
}

// Result summarizes a pipeline run.
type Result struct {
	ADWID string
	Steps []StepResult
	// FailedAt names the stage that stopped the chain.
	FailedAt string
}

// StepError is returned when a step stops the chain.
type StepError struct {
	Variant string
	Stage   string
	ADWID   string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s stage failed (resume with: adw %s <issue-number> %s): %v",
		e.Variant, e.Stage, e.Stage, e.ADWID, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Composer runs variants.
type Composer struct {
	Runner Runner
	// Store, when set, receives the initial state of a new run and is read
	// for the closing summary.
	Store *state.Store
	// Tracker, when set, receives phase progress comments.
	Tracker tracker.Tracker
}

// Run executes the steps of v in order for issueNumber. An empty adwID is
// minted here so every stage shares it. A supplied adwID resumes the run:
// leading steps whose phase the persisted state has already reached are
// skipped. The first failing step stops the chain unless it is marked
// ContinueOnFailure.
func (c *Composer) Run(ctx context.Context, v Variant, issueNumber, adwID string) (*Result, error) {
	issue, err := tracker.ParseNumber(issueNumber)
	if err != nil {
		return nil, err
	}
	issueNumber = strconv.Itoa(issue)

	resumeAt := 0
	if adwID == "" {
		adwID = state.NewID()
		if err := c.initState(adwID, issueNumber, v.Name); err != nil {
			return nil, err
		}
	} else {
		resumeAt = c.resumePoint(v, adwID)
	}
	res := &Result{ADWID: adwID}

	if c.Store != nil {
		if rl, err := log.OpenRunLog(c.Store.Root(), adwID, "adw_"+strings.ReplaceAll(v.Name, "-", "_")); err != nil {
			log.Warn("run log unavailable", log.Err(err))
		} else {
			defer func() {
				if err := rl.Close(); err != nil {
					log.Warn("failed to close run log", log.Err(err))
				}
			}()
		}
	}

	log.Info("pipeline starting", "pipeline", v.Name, "issue", issue, log.ADWID(adwID))
	c.comment(ctx, issue, adwID, fmt.Sprintf("🚀 Starting ADW workflow (%s)", v.Stages()))

	for i, step := range v.Steps {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if i < resumeAt {
			log.Info("stage already completed, skipping", "stage", step.Stage)
			c.comment(ctx, issue, adwID, fmt.Sprintf("⏭️ Phase %d: %s already completed, skipping", i+1, step.Stage))
			res.Steps = append(res.Steps, StepResult{Stage: step.Stage, Skipped: true})

			continue
		}

		args := append([]string{step.Stage, issueNumber, adwID}, step.Flags...)
		log.Info("running stage", "stage", step.Stage, "step", i+1, "of", len(v.Steps))
		c.comment(ctx, issue, adwID, fmt.Sprintf("▶️ Phase %d: %s", i+1, step.Stage))

		err := c.Runner.Run(ctx, args)
		res.Steps = append(res.Steps, StepResult{Stage: step.Stage, Err: err})
		if err == nil {
			c.comment(ctx, issue, adwID, fmt.Sprintf("✅ Phase %d: %s completed", i+1, step.Stage))

			continue
		}

		if step.ContinueOnFailure {
			log.Warn("stage failed, continuing", "stage", step.Stage, log.Err(err))
			c.comment(ctx, issue, adwID, fmt.Sprintf("⚠️ Phase %d: %s completed with failures, continuing", i+1, step.Stage))

			continue
		}

		log.Error("stage failed", "stage", step.Stage, log.Err(err))
		c.comment(ctx, issue, adwID, fmt.Sprintf("❌ Phase %d: %s failed", i+1, step.Stage))
		res.FailedAt = step.Stage

		return res, &StepError{Variant: v.Name, Stage: step.Stage, ADWID: adwID, Err: err}
	}

	c.comment(ctx, issue, adwID, c.summary(v, res))
	log.Info("pipeline completed", "pipeline", v.Name)

	return res, nil
}

// resumePoint returns the number of leading steps of v the persisted state
// of adwID has already completed. Without readable state nothing is skipped.
func (c *Composer) resumePoint(v Variant, adwID string) int {
	if c.Store == nil {
		return 0
	}
	st, err := c.Store.Load(adwID)
	if err != nil {
		if !errors.Is(err, state.ErrNotFound) {
			log.Warn("cannot read state, running every stage", log.ADWID(adwID), log.Err(err))
		}

		return 0
	}

	n := 0
	for _, step := range v.Steps {
		if !phaseReached(st.Phase, stagePhases[step.Stage]) {
			break
		}
		n++
	}
	if n > 0 {
		log.Info("resuming run", log.ADWID(adwID), "phase", st.Phase.String(), "next", nextStage(v, n))
	}

	return n
}

func nextStage(v Variant, i int) string {
	if i >= len(v.Steps) {
		return "none"
	}

	return v.Steps[i].Stage
}

// initState persists the record for a freshly minted ID.
func (c *Composer) initState(adwID, issueNumber, variant string) error {
	if c.Store == nil {
		return nil
	}
	st := state.New(adwID, issueNumber)
	if err := c.Store.Save(st, "adw_"+strings.ReplaceAll(variant, "-", "_")); err != nil {
		return fmt.Errorf("initialize state: %w", err)
	}

	return nil
}

func (c *Composer) comment(ctx context.Context, issue int, adwID, msg string) {
	if c.Tracker == nil {
		return
	}
	if err := c.Tracker.PostComment(ctx, issue, tracker.FormatMessage(adwID, "ops", msg)); err != nil {
		log.Warn("failed to post issue comment", log.Err(err))
	}
}

// summary renders the closing comment from the persisted state.
func (c *Composer) summary(v Variant, res *Result) string {
	st := &state.WorkflowState{ADWID: res.ADWID}
	if c.Store != nil {
		if loaded, err := c.Store.Load(res.ADWID); err == nil {
			st = loaded
		}
	}

	orDefault := func(s, def string) string {
		if s == "" {
			return def
		}

		return s
	}

	var b strings.Builder
	b.WriteString("## 📊 ADW Workflow Summary\n\n")
	fmt.Fprintf(&b, "- **Pipeline:** %s\n", v.Name)
	fmt.Fprintf(&b, "- **ADW ID:** `%s`\n", res.ADWID)
	fmt.Fprintf(&b, "- **Issue Type:** %s\n", orDefault(st.IssueClass.Name(), "unknown"))
	fmt.Fprintf(&b, "- **Branch:** `%s`\n", orDefault(st.BranchName, "unknown"))
	fmt.Fprintf(&b, "- **Plan File:** `%s`\n", orDefault(st.SpecPath(), "unknown"))
	fmt.Fprintf(&b, "- **Pull Request:** %s\n", orDefault(st.PRURL, "PR pending"))
	fmt.Fprintf(&b, "- **Phase:** %s\n\n", st.Phase)
	for _, s := range res.Steps {
		mark := "✅"
		switch {
		case s.Err != nil:
			mark = "⚠️"
		case s.Skipped:
			mark = "⏭️"
		}
		fmt.Fprintf(&b, "%s %s\n", mark, s.Stage)
	}

	return b.String()
}
