package vcs

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// initTestRepo initializes a git repository with one commit.
func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

	if err := runGit(ctx, dir, "init"); err != nil {
		t.Skipf("git not available: %v", err)
	}
	if err := runGit(ctx, dir, "config", "user.email", "test@example.com"); err != nil {
		t.Fatalf("git config: %v", err)
	}
	if err := runGit(ctx, dir, "config", "user.name", "Test"); err != nil {
		t.Fatalf("git config: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Test\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := runGit(ctx, dir, "add", "."); err != nil {
		t.Fatalf("git add: %v", err)
	}
	if err := runGit(ctx, dir, "commit", "-m", "initial"); err != nil {
		t.Fatalf("git commit: %v", err)
	}

	return dir
}

func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_DATE=2020-01-01T00:00:00Z",
		"GIT_COMMITTER_DATE=2020-01-01T00:00:00Z",
	)

	return cmd.Run()
}

func newTestGit(t *testing.T) *Git {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	g, err := New(initTestRepo(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return g
}

func TestNewNotRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	if IsRepo(dir) {
		t.Skip("temp dir is inside a git work tree")
	}

	_, err := New(dir)
	if !errors.Is(err, ErrNotRepository) {
		t.Errorf("New() error = %v, want ErrNotRepository", err)
	}
}

func TestCommitAndStatus(t *testing.T) {
	g := newTestGit(t)
	ctx := context.Background()

	changed, err := g.HasChanges(ctx)
	if err != nil {
		t.Fatalf("HasChanges: %v", err)
	}
	if changed {
		t.Fatal("fresh repo reports changes")
	}

	if _, err := g.Commit(ctx, "empty"); !errors.Is(err, ErrNothingToCommit) {
		t.Errorf("Commit() on clean tree error = %v, want ErrNothingToCommit", err)
	}

	if err := os.WriteFile(filepath.Join(g.Root(), "plan.md"), []byte("plan\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	files, err := g.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(files) != 1 || files[0].Path != "plan.md" {
		t.Fatalf("Status() = %+v, want plan.md", files)
	}
	if files[0].IsStaged() {
		t.Error("untracked file reported as staged")
	}

	hash, err := g.Commit(ctx, "add plan")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(hash) < 7 {
		t.Errorf("Commit() hash = %q", hash)
	}

	changed, err = g.HasChanges(ctx)
	if err != nil {
		t.Fatalf("HasChanges: %v", err)
	}
	if changed {
		t.Error("changes remain after commit")
	}
}

func TestEnsureBranch(t *testing.T) {
	g := newTestGit(t)
	ctx := context.Background()

	base, err := g.CurrentBranch(ctx)
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}

	created, err := g.EnsureBranch(ctx, "feat-issue-42-adw-abc12345", base)
	if err != nil {
		t.Fatalf("EnsureBranch: %v", err)
	}
	if !created {
		t.Error("EnsureBranch() created = false for new branch")
	}
	if !g.BranchExists(ctx, "feat-issue-42-adw-abc12345") {
		t.Error("branch not created")
	}

	// Second call on the same branch is a no-op.
	created, err = g.EnsureBranch(ctx, "feat-issue-42-adw-abc12345", base)
	if err != nil || created {
		t.Errorf("EnsureBranch() again = %v, %v", created, err)
	}

	if err := g.Checkout(ctx, base); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	created, err = g.EnsureBranch(ctx, "feat-issue-42-adw-abc12345", base)
	if err != nil || created {
		t.Errorf("EnsureBranch() existing = %v, %v", created, err)
	}
	current, _ := g.CurrentBranch(ctx)
	if current != "feat-issue-42-adw-abc12345" {
		t.Errorf("CurrentBranch() = %q after EnsureBranch", current)
	}

	if g.BranchExists(ctx, "missing") {
		t.Error("BranchExists(missing) = true")
	}
	if g.RemoteBranchExists(ctx, "origin", base) {
		t.Error("RemoteBranchExists() = true without a remote")
	}
}

func TestDiffStat(t *testing.T) {
	g := newTestGit(t)
	ctx := context.Background()

	stat, err := g.DiffStat(ctx, "HEAD")
	if err != nil {
		t.Fatalf("DiffStat: %v", err)
	}
	if stat != "" {
		t.Errorf("DiffStat() on clean tree = %q", stat)
	}

	if err := os.WriteFile(filepath.Join(g.Root(), "README.md"), []byte("# Changed\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	stat, err = g.DiffStat(ctx, "HEAD")
	if err != nil {
		t.Fatalf("DiffStat: %v", err)
	}
	if !strings.Contains(stat, "README.md") {
		t.Errorf("DiffStat() = %q, want README.md", stat)
	}
}

func TestPushWithRemote(t *testing.T) {
	g := newTestGit(t)
	ctx := context.Background()

	remote := t.TempDir()
	if err := runGit(ctx, remote, "init", "--bare"); err != nil {
		t.Fatalf("init bare: %v", err)
	}
	if _, err := g.RunContext(ctx, "remote", "add", "origin", remote); err != nil {
		t.Fatalf("remote add: %v", err)
	}

	url, err := g.RemoteURL(ctx, "origin")
	if err != nil || url != remote {
		t.Errorf("RemoteURL() = %q, %v", url, err)
	}

	branch, _ := g.CurrentBranch(ctx)
	if err := g.Push(ctx, "origin", branch); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := g.Fetch(ctx, "origin"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !g.RemoteBranchExists(ctx, "origin", branch) {
		t.Error("pushed branch not visible as remote branch")
	}
}

func TestPushNoRemote(t *testing.T) {
	g := newTestGit(t)

	if err := g.Push(context.Background(), "origin", "main"); err == nil {
		t.Error("Push() without remote should fail")
	}
}
