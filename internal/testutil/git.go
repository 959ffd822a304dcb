package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/valksor/go-adw/internal/vcs"
)

// FakeRepo is an in-memory stand-in for *vcs.Git.
type FakeRepo struct {
	mu       sync.Mutex
	current  string
	branches map[string]bool
	commits  []string
	pushes   []string

	// Clean makes Commit report vcs.ErrNothingToCommit.
	Clean bool
	// Diff is returned by DiffStat.
	Diff string

	CheckoutErr error
	CommitErr   error
	PushErr     error
	DiffErr     error
}

// NewFakeRepo creates a repo on branch "main".
func NewFakeRepo() *FakeRepo {
	return &FakeRepo{
		current:  "main",
		branches: map[string]bool{"main": true},
		Diff:     " README.md | 1 +",
	}
}

// CurrentBranch returns the checked out branch.
func (f *FakeRepo) CurrentBranch(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.current, nil
}

// EnsureBranch checks out name, creating it when missing.
func (f *FakeRepo) EnsureBranch(_ context.Context, name, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CheckoutErr != nil {
		return false, f.CheckoutErr
	}
	created := !f.branches[name]
	f.branches[name] = true
	f.current = name

	return created, nil
}

// Checkout switches to an existing branch.
func (f *FakeRepo) Checkout(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CheckoutErr != nil {
		return f.CheckoutErr
	}
	if !f.branches[ref] {
		return fmt.Errorf("pathspec '%s' did not match any file(s) known to git", ref)
	}
	f.current = ref

	return nil
}

// AddBranch makes name known without checking it out.
func (f *FakeRepo) AddBranch(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.branches[name] = true
}

// Commit records message.
func (f *FakeRepo) Commit(_ context.Context, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CommitErr != nil {
		return "", f.CommitErr
	}
	if f.Clean {
		return "", vcs.ErrNothingToCommit
	}
	f.commits = append(f.commits, message)

	return fmt.Sprintf("%07d", len(f.commits)), nil
}

// Push records the pushed branch.
func (f *FakeRepo) Push(_ context.Context, remote, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PushErr != nil {
		return f.PushErr
	}
	f.pushes = append(f.pushes, remote+"/"+branch)

	return nil
}

// DiffStat returns Diff.
func (f *FakeRepo) DiffStat(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.Diff, f.DiffErr
}

// Commits returns the committed messages in order.
func (f *FakeRepo) Commits() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.commits...)
}

// Pushes returns "remote/branch" for every push.
func (f *FakeRepo) Pushes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.pushes...)
}
