package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// scriptedRunner writes a fixed stream and exit status.
type scriptedRunner struct {
	stream string
	exit   *Exit
	err    error
	got    []Invocation
}

func (r *scriptedRunner) Run(_ context.Context, inv Invocation) (*Exit, error) {
	r.got = append(r.got, inv)
	if r.err != nil {
		return nil, r.err
	}
	if _, err := io.WriteString(inv.Output, r.stream); err != nil {
		return nil, err
	}
	if r.exit == nil {
		return &Exit{}, nil
	}

	return r.exit, nil
}

func newTestExecutor(t *testing.T, r Runner) (*Executor, string) {
	t.Helper()
	root := t.TempDir()

	return NewExecutor(ExecutorConfig{
		Runner:       r,
		Models:       map[string]string{"/implement": "opus"},
		DefaultModel: "sonnet",
		CommandsDir:  filepath.Join(root, ".claude", "commands"),
		AgentsDir:    filepath.Join(root, "agents"),
	}), root
}

func TestModelFor(t *testing.T) {
	ex, _ := newTestExecutor(t, &scriptedRunner{})
	if got := ex.ModelFor("/implement"); got != "opus" {
		t.Errorf("ModelFor(/implement) = %q", got)
	}
	if got := ex.ModelFor("/unmapped"); got != "sonnet" {
		t.Errorf("ModelFor(/unmapped) = %q, want default", got)
	}
}

func TestRenderPrompt(t *testing.T) {
	ex, root := newTestExecutor(t, &scriptedRunner{})
	dir := filepath.Join(root, ".claude", "commands")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "review.md"), []byte("Review the work."), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "commit.md"), []byte("Commit as $ARGUMENTS now."), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"no template", Request{Command: "/chore", Args: []string{"abc", "42"}}, "/chore abc 42"},
		{"no template no args", Request{Command: "/test"}, "/test"},
		{"template appends args", Request{Command: "/review", Args: []string{"abc", "spec.md"}}, "Review the work.\n\nabc spec.md"},
		{"template placeholder", Request{Command: "/commit", Args: []string{"planner", "/feature"}}, "Commit as planner /feature now."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ex.RenderPrompt(tt.req)
			if err != nil {
				t.Fatalf("RenderPrompt: %v", err)
			}
			if got != tt.want {
				t.Errorf("RenderPrompt() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExecuteTemplateSuccessWritesAudit(t *testing.T) {
	runner := &scriptedRunner{stream: `{"type":"system"}
{"type":"result","subtype":"success","result":"specs/42.md","session_id":"sess-1"}
`}
	ex, root := newTestExecutor(t, runner)

	res, err := ex.ExecuteTemplate(context.Background(), Request{
		Command:   "implement",
		Args:      []string{"specs/42.md"},
		ADWID:     "abc12345",
		AgentName: "sdlc_implementor",
	})
	if err != nil {
		t.Fatalf("ExecuteTemplate: %v", err)
	}
	if !res.Success || res.Output != "specs/42.md" || res.SessionID != "sess-1" || res.Model != "opus" {
		t.Errorf("Result = %+v", res)
	}
	if len(runner.got) != 1 || runner.got[0].Model != "opus" || runner.got[0].Prompt != "/implement specs/42.md" {
		t.Errorf("invocations = %+v", runner.got)
	}

	dir := filepath.Join(root, "agents", "abc12345", "sdlc_implementor")
	prompt, err := os.ReadFile(filepath.Join(dir, PromptsDir, "implement.txt"))
	if err != nil || string(prompt) != "/implement specs/42.md" {
		t.Errorf("saved prompt = %q, %v", prompt, err)
	}
	if _, err := os.Stat(filepath.Join(dir, RawOutputJSONL)); err != nil {
		t.Errorf("raw jsonl missing: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, RawOutputJSON))
	if err != nil {
		t.Fatalf("raw json missing: %v", err)
	}
	if !strings.HasPrefix(string(data), "[") || !strings.Contains(string(data), `"sess-1"`) {
		t.Errorf("raw json = %s", data)
	}
}

func TestExecuteTemplateFailures(t *testing.T) {
	tests := []struct {
		name    string
		runner  *scriptedRunner
		wantErr error
		wantOut string
	}{
		{
			name:    "not installed",
			runner:  &scriptedRunner{err: fmt.Errorf("%w: claude", ErrNotInstalled)},
			wantErr: ErrNotInstalled,
			wantOut: "not installed",
		},
		{
			name:    "timeout",
			runner:  &scriptedRunner{err: fmt.Errorf("%w after 5m0s", ErrTimeout)},
			wantErr: ErrTimeout,
			wantOut: "timed out",
		},
		{
			name:    "aborted",
			runner:  &scriptedRunner{stream: `{"type":"assistant"}` + "\n"},
			wantErr: ErrAborted,
			wantOut: "aborted mid-execution",
		},
		{
			name:    "malformed",
			runner:  &scriptedRunner{stream: `{"type":"result","resu`},
			wantErr: ErrMalformed,
			wantOut: "malformed",
		},
		{
			name:    "is_error",
			runner:  &scriptedRunner{stream: `{"type":"result","is_error":true,"result":"quota exceeded"}` + "\n"},
			wantErr: ErrAgentFailed,
			wantOut: "quota exceeded",
		},
		{
			name:    "non-zero exit",
			runner:  &scriptedRunner{exit: &Exit{ExitCode: 2, Stderr: "bad flag\n"}},
			wantErr: ErrExitStatus,
			wantOut: "exited with code 2: bad flag",
		},
		{
			name:    "crash",
			runner:  &scriptedRunner{exit: &Exit{ExitCode: 3221225477}},
			wantErr: ErrCrashed,
			wantOut: "STATUS_ACCESS_VIOLATION",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, _ := newTestExecutor(t, tt.runner)
			res, err := ex.ExecuteTemplate(context.Background(), Request{
				Command: "/review", ADWID: "abc12345", AgentName: "reviewer",
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if res == nil || res.Success {
				t.Fatalf("Result = %+v, want failure", res)
			}
			if !strings.Contains(res.Output, tt.wantOut) {
				t.Errorf("Output = %q, want to contain %q", res.Output, tt.wantOut)
			}
		})
	}
}
