package commands

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/valksor/go-adw/internal/state"
	"github.com/valksor/go-adw/internal/tracker"
)

// executeRoot runs the real root command with fresh flag state.
func executeRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	stateJSON, stateHistory = false, false
	for _, name := range []string{"json", "history"} {
		stateCmd.Flags().Lookup(name).Changed = false
	}

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(append([]string{"--no-color"}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()

	return stdout.String(), stderr.String(), err
}

func seedState(t *testing.T) *state.Store {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("ADW_AGENTS_DIR", dir)

	st := state.New("abc12345", "42")
	st.IssueClass = state.ClassFeature
	st.BranchName = "feat-issue-42-adw-abc12345-dark-mode"
	st.PlanFile = "specs/issue-42-adw-abc12345.md"
	st.Phase = state.PhasePlanned

	store := state.NewStore(dir)
	if err := store.Save(st, "adw_plan"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	return store
}

func TestStageArgs(t *testing.T) {
	tests := []struct {
		name      string
		requireID bool
		args      []string
		wantErr   error
		wantAny   bool
	}{
		{name: "issue only", args: []string{"42"}},
		{name: "issue and id", args: []string{"42", "abc12345"}, requireID: true},
		{name: "hash prefix", args: []string{"#42"}},
		{name: "no args", args: nil, wantAny: true},
		{name: "too many", args: []string{"42", "abc12345", "extra"}, wantAny: true},
		{name: "bad number", args: []string{"forty-two"}, wantErr: tracker.ErrInvalidNumber},
		{name: "zero", args: []string{"0"}, wantErr: tracker.ErrInvalidNumber},
		{name: "id required", args: []string{"42"}, requireID: true, wantErr: ErrADWIDRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := stageArgs(tt.requireID)(&cobra.Command{}, tt.args)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
			case tt.wantAny:
				if err == nil {
					t.Error("expected error")
				}
			case err != nil:
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSplitArgs(t *testing.T) {
	if issue, id := splitArgs([]string{"42"}); issue != "42" || id != "" {
		t.Errorf("splitArgs(42) = %q, %q", issue, id)
	}
	if issue, id := splitArgs([]string{"42", "abc12345"}); issue != "42" || id != "abc12345" {
		t.Errorf("splitArgs(42, abc12345) = %q, %q", issue, id)
	}
}

func TestStateCommand(t *testing.T) {
	seedState(t)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "summary",
			args: []string{"state", "abc12345"},
			want: []string{"abc12345", "Planned", "feat-issue-42-adw-abc12345-dark-mode", "adw build 42 abc12345"},
		},
		{
			name: "json",
			args: []string{"state", "abc12345", "--json"},
			want: []string{`"adw_id"`, `"phase": "planned"`},
		},
		{
			name: "history",
			args: []string{"state", "abc12345", "--history"},
			want: []string{"STAGE", "adw_plan"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := executeRoot(t, tt.args...)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(stdout, want) {
					t.Errorf("output missing %q\nGot:\n%s", want, stdout)
				}
			}
		})
	}
}

func TestStateCommandJSONDecodes(t *testing.T) {
	seedState(t)

	stdout, _, err := executeRoot(t, "state", "abc12345", "--json")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	st, err := state.Decode([]byte(stdout))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if st.ADWID != "abc12345" || st.Phase != state.PhasePlanned {
		t.Errorf("state = %+v", st)
	}
}

func TestStateCommandNotFound(t *testing.T) {
	t.Setenv("ADW_AGENTS_DIR", t.TempDir())

	_, _, err := executeRoot(t, "state", "deadbeef")
	if !errors.Is(err, state.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPipelinesCommand(t *testing.T) {
	t.Setenv("ADW_AGENTS_DIR", t.TempDir())

	stdout, _, err := executeRoot(t, "pipelines")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	for _, want := range []string{"PIPELINE", "plan-build", "plan-build-test-review", "sdlc", "plan → build"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q\nGot:\n%s", want, stdout)
		}
	}
}

func TestPipelineCommandsRegistered(t *testing.T) {
	for _, name := range []string{"plan-build", "plan-build-test", "plan-build-review", "plan-build-test-review", "plan-build-document", "sdlc"} {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil {
			t.Errorf("Find(%s): %v", name, err)

			continue
		}
		if cmd.Name() != name {
			t.Errorf("Find(%s) = %s", name, cmd.Name())
		}
		if cmd.GroupID != "pipelines" {
			t.Errorf("%s GroupID = %q", name, cmd.GroupID)
		}
	}
}

func TestDownstreamStageRequiresID(t *testing.T) {
	t.Setenv("ADW_AGENTS_DIR", t.TempDir())

	for _, stage := range []string{"build", "test", "review", "document"} {
		t.Run(stage, func(t *testing.T) {
			_, _, err := executeRoot(t, stage, "42")
			if !errors.Is(err, ErrADWIDRequired) {
				t.Errorf("err = %v, want ErrADWIDRequired", err)
			}
		})
	}
}

func TestPassthroughFlags(t *testing.T) {
	origVerbose, origNoColor, origJSON := verbose, noColor, jsonLog
	defer func() { verbose, noColor, jsonLog = origVerbose, origNoColor, origJSON }()

	verbose, noColor, jsonLog = true, false, true
	got := strings.Join(passthroughFlags(), " ")
	if got != "--verbose --log-json" {
		t.Errorf("passthroughFlags() = %q", got)
	}
}
