package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/valksor/go-adw/internal/agent"
	"github.com/valksor/go-adw/internal/log"
	"github.com/valksor/go-adw/internal/state"
)

// TestResult is one entry of the JSON array /test answers with.
type TestResult struct {
	Name             string `json:"test_name"`
	Passed           bool   `json:"passed"`
	ExecutionCommand string `json:"execution_command"`
	Purpose          string `json:"test_purpose"`
	Error            string `json:"error,omitempty"`
}

// E2ETestResult is the JSON document /test_e2e answers with.
type E2ETestResult struct {
	Name        string   `json:"test_name"`
	Status      string   `json:"status"`
	TestPath    string   `json:"test_path"`
	Screenshots []string `json:"screenshots"`
	Error       string   `json:"error,omitempty"`
}

// Passed reports whether the end-to-end test passed.
func (r E2ETestResult) Passed() bool {
	return strings.EqualFold(r.Status, "passed")
}

// TestOptions tunes the test stage.
type TestOptions struct {
	// SkipE2E runs only the unit test suite.
	SkipE2E bool
}

// ErrTestsFailed is returned by Test when failing tests are left.
var ErrTestsFailed = errors.New("tests failed")

// Test runs the project's test suite through the agent, resolving failing
// tests up to MaxTestRetryAttempts times, then the end-to-end tests unless
// skipped.
func (w *Workflow) Test(ctx context.Context, issueNumber, adwID string, opts TestOptions) (*state.WorkflowState, error) {
	r, err := w.begin(ctx, StageTest, issueNumber, adwID, false)
	if err != nil {
		return nil, err
	}
	if err := r.requirePhase(ctx, state.PhaseTested); err != nil {
		return r.st, err
	}
	if err := r.checkoutBranch(ctx); err != nil {
		return r.st, r.fail(ctx, AgentOps, fmt.Errorf("%w (run the plan stage first)", err))
	}

	issue, err := r.fetchIssue(ctx)
	if err != nil {
		return r.st, r.fail(ctx, AgentOps, err)
	}

	unit, err := r.unitTestLoop().Run(ctx)
	if err != nil {
		return r.st, r.fail(ctx, AgentTester, err)
	}
	failed := len(unit.Remaining)

	if !opts.SkipE2E && failed == 0 {
		e2e, err := r.e2eTestLoop().Run(ctx)
		if err != nil {
			return r.st, r.fail(ctx, AgentE2ETester, err)
		}
		failed += len(e2e.Remaining)
	}

	if err := r.commit(ctx, AgentTester, r.st.IssueClass, issue); err != nil {
		return r.st, r.fail(ctx, AgentTester, err)
	}
	if err := r.finalize(ctx, issue); err != nil {
		return r.st, r.fail(ctx, AgentOps, err)
	}

	if failed > 0 {
		return r.st, r.fail(ctx, AgentTester, fmt.Errorf("%w: %d tests still failing", ErrTestsFailed, failed))
	}

	return r.st, r.complete(ctx, state.PhaseTested)
}

func (r *run) unitTestLoop() *RetryLoop[TestResult] {
	return &RetryLoop[TestResult]{
		MaxAttempts: MaxTestRetryAttempts,
		Check: func(ctx context.Context, attempt int) ([]TestResult, error) {
			r.w.opts.Metrics.IncAttempt("test")
			r.comment(ctx, AgentTester, fmt.Sprintf("✅ Running test suite (attempt %d/%d)", attempt, MaxTestRetryAttempts))

			res, err := r.execute(ctx, "/test", AgentTester)
			if err != nil {
				return nil, fmt.Errorf("run tests: %w", err)
			}
			var results []TestResult
			if err := parseJSON(res.Output, &results); err != nil {
				return nil, fmt.Errorf("parse test results: %w", err)
			}

			var failed []TestResult
			for _, t := range results {
				if !t.Passed {
					failed = append(failed, t)
				}
			}
			r.comment(ctx, AgentTester, FormatTestComment(results))

			return failed, nil
		},
		Resolve: func(ctx context.Context, attempt, index int, t TestResult) error {
			payload, err := json.Marshal(t)
			if err != nil {
				return err
			}
			agentName := fmt.Sprintf("%s_iter%d_%d", AgentTestResolver, attempt, index)
			r.comment(ctx, agentName, "🔧 Attempting to resolve: "+t.Name)
			if _, err := r.execute(ctx, "/resolve_failed_test", agentName, string(payload)); err != nil {
				r.comment(ctx, agentName, "❌ Failed to resolve: "+t.Name)

				return err
			}
			r.comment(ctx, agentName, "✅ Resolved: "+t.Name)

			return nil
		},
		AfterResolve: func(ctx context.Context, attempt int, out ResolutionOutcome) error {
			r.w.opts.Metrics.AddResolutions("test", out.Resolved, out.Failed)
			r.comment(ctx, AgentOps, fmt.Sprintf("🔄 Resolved %d/%d failing tests, re-running test suite",
				out.Resolved, out.Resolved+out.Failed))

			return nil
		},
	}
}

func (r *run) e2eTestLoop() *RetryLoop[E2ETestResult] {
	return &RetryLoop[E2ETestResult]{
		MaxAttempts: MaxE2ETestRetryAttempts,
		Check: func(ctx context.Context, attempt int) ([]E2ETestResult, error) {
			r.w.opts.Metrics.IncAttempt("e2e")

			files, err := discoverE2ETests(r.w.opts.E2ETestsDir)
			if err != nil {
				return nil, err
			}
			if len(files) == 0 {
				log.Info("no e2e tests found", "dir", r.w.opts.E2ETestsDir)

				return nil, nil
			}

			var failed []E2ETestResult
			for i, file := range files {
				agentName := fmt.Sprintf("%s_%d_%d", AgentE2ETester, attempt, i)
				res, err := r.execute(ctx, "/test_e2e", agentName, r.st.ADWID, agentName, file)
				if agent.Fatal(err) {
					return nil, fmt.Errorf("run e2e test %s: %w", file, err)
				}
				if err != nil {
					failed = append(failed, E2ETestResult{Name: file, Status: "failed", TestPath: file, Error: res.Output})

					continue
				}
				var result E2ETestResult
				if err := parseJSON(res.Output, &result); err != nil {
					failed = append(failed, E2ETestResult{Name: file, Status: "failed", TestPath: file, Error: err.Error()})

					continue
				}
				if result.TestPath == "" {
					result.TestPath = file
				}
				if !result.Passed() {
					failed = append(failed, result)
				}
			}
			r.comment(ctx, AgentE2ETester, fmt.Sprintf("E2E tests (attempt %d/%d): %d passed, %d failed",
				attempt, MaxE2ETestRetryAttempts, len(files)-len(failed), len(failed)))

			return failed, nil
		},
		Resolve: func(ctx context.Context, attempt, index int, t E2ETestResult) error {
			payload, err := json.Marshal(t)
			if err != nil {
				return err
			}
			agentName := fmt.Sprintf("%s_iter%d_%d", AgentE2EResolver, attempt, index)
			_, err = r.execute(ctx, "/resolve_failed_e2e_test", agentName, string(payload))

			return err
		},
	}
}

// discoverE2ETests lists the end-to-end test prompts under dir, relative
// to the work dir when dir is.
func discoverE2ETests(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	matches, err := doublestar.Glob(os.DirFS(dir), "**/*.md")
	if err != nil {
		return nil, fmt.Errorf("find e2e tests: %w", err)
	}
	sort.Strings(matches)

	files := make([]string, len(matches))
	for i, m := range matches {
		files[i] = filepath.Join(dir, filepath.FromSlash(m))
	}

	return files, nil
}

// FormatTestComment summarizes a test run for the issue.
func FormatTestComment(results []TestResult) string {
	var passed, failed []TestResult
	for _, t := range results {
		if t.Passed {
			passed = append(passed, t)
		} else {
			failed = append(failed, t)
		}
	}

	var b strings.Builder
	if len(failed) == 0 {
		b.WriteString("## ✅ All Tests Passed\n\n")
	} else {
		b.WriteString("## ❌ Test Failures\n\n")
	}
	fmt.Fprintf(&b, "**Passed:** %d, **Failed:** %d\n", len(passed), len(failed))

	for _, t := range failed {
		fmt.Fprintf(&b, "\n### %s\n", t.Name)
		if t.ExecutionCommand != "" {
			fmt.Fprintf(&b, "- **Command**: `%s`\n", t.ExecutionCommand)
		}
		if t.Error != "" {
			fmt.Fprintf(&b, "- **Error**:\n```\n%s\n```\n", strings.TrimSpace(t.Error))
		}
	}

	return b.String()
}
