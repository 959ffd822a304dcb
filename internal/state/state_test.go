package state

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	id := NewID()
	if len(id) != ADWIDLength {
		t.Errorf("len(NewID()) = %d, want %d", len(id), ADWIDLength)
	}
	if id == NewID() {
		t.Error("NewID returned the same value twice")
	}
}

func TestParseIssueClass(t *testing.T) {
	tests := []struct {
		in      string
		want    IssueClass
		wantErr bool
	}{
		{"/feature", ClassFeature, false},
		{"bug", ClassBug, false},
		{"chore", ClassChore, false},
		{"/patch", ClassPatch, false},
		{"epic", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIssueClass(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseIssueClass(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseIssueClass(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if ClassFeature.Name() != "feature" {
		t.Errorf("Name() = %q, want feature", ClassFeature.Name())
	}
}

func TestGetAndUpdate(t *testing.T) {
	st := New("abc12345", "42")

	if got := st.Get("plan_file", "none"); got != "none" {
		t.Errorf("Get(missing) = %v, want default", got)
	}

	if err := st.Update(map[string]any{
		"plan_file":   "specs/42.md",
		"branch_name": "issue-42",
		"custom_key":  []string{"a", "b"},
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if st.PlanFile != "specs/42.md" || st.BranchName != "issue-42" {
		t.Errorf("named fields not merged: %+v", st)
	}
	if got := st.Get("branch_name", ""); got != "issue-42" {
		t.Errorf("Get(branch_name) = %v", got)
	}
	if _, ok := st.Extra["custom_key"]; !ok {
		t.Error("unknown key not kept in Extra")
	}
	if st.IssueNumber != "42" {
		t.Errorf("Update dropped untouched field issue_number: %q", st.IssueNumber)
	}

	// Last write wins.
	if err := st.Update(map[string]any{"plan_file": "specs/other.md"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if st.PlanFile != "specs/other.md" {
		t.Errorf("PlanFile = %q, want specs/other.md", st.PlanFile)
	}
}

func TestUpdateNumericIssueNumber(t *testing.T) {
	st := New("abc12345", "")
	if err := st.Update(map[string]any{"issue_number": 7}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if st.IssueNumber != "7" {
		t.Errorf("IssueNumber = %q, want \"7\"", st.IssueNumber)
	}
}

func TestRequire(t *testing.T) {
	st := New("abc12345", "42")
	st.BranchName = "issue-42"

	if err := st.Require("adw_id", "branch_name"); err != nil {
		t.Errorf("Require: %v", err)
	}

	err := st.Require("branch_name", "plan_file")
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("Require() = %v, want ErrMissingField", err)
	}
	if !strings.Contains(err.Error(), "plan_file") {
		t.Errorf("error %q does not name the field", err)
	}
}

func TestSpecPath(t *testing.T) {
	st := New("abc12345", "1")
	if st.SpecPath() != "" {
		t.Errorf("SpecPath() = %q, want empty", st.SpecPath())
	}
	st.PatchFile = "specs/patch.md"
	if st.SpecPath() != "specs/patch.md" {
		t.Errorf("SpecPath() = %q", st.SpecPath())
	}
	st.PlanFile = "specs/plan.md"
	if st.SpecPath() != "specs/plan.md" {
		t.Errorf("SpecPath() = %q", st.SpecPath())
	}
}

func TestEncodeIsCanonical(t *testing.T) {
	st := New("abc12345", "42")
	st.BranchName = "issue-42"
	if err := st.Update(map[string]any{"zeta": 1, "alpha": true}); err != nil {
		t.Fatal(err)
	}

	data, err := st.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := `{
  "adw_id": "abc12345",
  "alpha": true,
  "branch_name": "issue-42",
  "issue_number": "42",
  "zeta": 1
}
`
	if string(data) != want {
		t.Errorf("Encode() =\n%s\nwant\n%s", data, want)
	}
}

func TestReadRoundTripPreservesUnknown(t *testing.T) {
	in := `{"adw_id":"abc12345","issue_number":42,"future_field":{"nested":[1,2]}}`

	st, err := Read(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if st.IssueNumber != "42" {
		t.Errorf("IssueNumber = %q", st.IssueNumber)
	}

	var buf bytes.Buffer
	if err := st.ToStdout(&buf); err != nil {
		t.Fatalf("ToStdout: %v", err)
	}
	if !strings.Contains(buf.String(), `"future_field"`) || !strings.Contains(buf.String(), `"nested"`) {
		t.Errorf("unknown field lost: %s", buf.String())
	}
}

func TestReadEmpty(t *testing.T) {
	if _, err := Read(strings.NewReader("  \n")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Read(empty) = %v, want ErrNotFound", err)
	}
}

func TestDecodeValidation(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing adw_id", `{"issue_number":"1"}`},
		{"bad class", `{"adw_id":"x","issue_class":"/epic"}`},
		{"bad phase", `{"adw_id":"x","phase":"shipped"}`},
		{"not json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.in)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestStoreSaveLoad(t *testing.T) {
	store := NewStore(t.TempDir())

	st := New("abc12345", "42")
	st.PlanFile = "specs/42.md"
	st.BranchName = "issue-42"
	if err := st.Advance(PhasePlanned); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	if err := store.Save(st, "adw_plan"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load("abc12345")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.PlanFile != "specs/42.md" || loaded.BranchName != "issue-42" || loaded.Phase != PhasePlanned {
		t.Errorf("loaded state = %+v", loaded)
	}

	if _, err := os.Stat(store.Path("abc12345") + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestStoreSaveIdempotent(t *testing.T) {
	store := NewStore(t.TempDir())
	st := New("abc12345", "42")
	st.ReviewScreenshots = []string{"file:///a.png", "file:///b.png"}

	if err := store.Save(st, "adw_review"); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(store.Path("abc12345"))
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Save(st, "adw_review"); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(store.Path("abc12345"))
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("saves differ:\n%s\n---\n%s", first, second)
	}

	history, err := store.History("abc12345")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(history))
	}
	if history[0].Stage != "adw_review" || history[0].Digest != history[1].Digest {
		t.Errorf("history = %+v", history)
	}
}

func TestStoreLoadMissingCreatesNothing(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	_, err := store.Load("deadbeef")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() = %v, want ErrNotFound", err)
	}
	if store.Exists("deadbeef") {
		t.Error("Exists() = true after failed load")
	}
	if _, err := os.Stat(filepath.Join(root, "deadbeef")); !os.IsNotExist(err) {
		t.Error("Load created the run directory")
	}
}

func TestStoreLoadMismatchedID(t *testing.T) {
	store := NewStore(t.TempDir())
	st := New("abc12345", "1")
	if err := store.Save(st, "adw_plan"); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(store.Dir("other123"), 0o755); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(store.Path("abc12345"))
	if err := os.WriteFile(store.Path("other123"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Load("other123"); !errors.Is(err, ErrMismatchedID) {
		t.Errorf("Load() = %v, want ErrMismatchedID", err)
	}
}

func TestStoreRejectsPathIDs(t *testing.T) {
	store := NewStore(t.TempDir())
	for _, id := range []string{"", "..", "a/b", `a\b`} {
		if _, err := store.Load(id); err == nil {
			t.Errorf("Load(%q) succeeded", id)
		}
	}
}

func TestResumeKeepsPriorStageFields(t *testing.T) {
	store := NewStore(t.TempDir())

	plan := New("abc12345", "42")
	plan.PlanFile = "specs/42.md"
	plan.BranchName = "issue-42"
	plan.IssueClass = ClassFeature
	_ = plan.Advance(PhasePlanned)
	if err := store.Save(plan, "adw_plan"); err != nil {
		t.Fatal(err)
	}

	build, err := store.Load("abc12345")
	if err != nil {
		t.Fatal(err)
	}
	_ = build.Advance(PhaseBuilt)
	if err := store.Save(build, "adw_build"); err != nil {
		t.Fatal(err)
	}

	final, err := store.Load("abc12345")
	if err != nil {
		t.Fatal(err)
	}
	if final.PlanFile != plan.PlanFile || final.BranchName != plan.BranchName || final.IssueClass != ClassFeature {
		t.Errorf("fields lost across stages: %+v", final)
	}
	if final.PatchFile != "" {
		t.Errorf("PatchFile = %q, want empty", final.PatchFile)
	}
}
