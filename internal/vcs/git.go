// Package vcs wraps the git commands a workflow stage needs: branch
// checkout, staging, committing, pushing and diff statistics.
//
// Git values hold no mutable state and are safe for concurrent use, but a
// single working tree is shared by every stage of a run.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Git porcelain v1 format: XY PATH where X=index status, Y=worktree status.
const (
	gitStatusIndexPos   = 0
	gitStatusWorkDirPos = 1
	gitStatusPathStart  = 3
	gitStatusMinLength  = 4
)

// ErrNotRepository is returned when the path is not inside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// Git provides git operations for a repository
type Git struct {
	repoRoot string
}

// New creates a Git instance for the repository containing path.
func New(path string) (*Git, error) {
	root, err := findRepoRoot(path)
	if err != nil {
		return nil, err
	}

	return &Git{repoRoot: root}, nil
}

// Root returns the repository root path
func (g *Git) Root() string {
	return g.repoRoot
}

// IsRepo checks if the path is inside a git repository
func IsRepo(path string) bool {
	_, err := findRepoRoot(path)
	return err == nil
}

func findRepoRoot(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	out, err := runGitCommandContext(context.Background(), absPath, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotRepository, err)
	}

	return strings.TrimSpace(out), nil
}

// CurrentBranch returns the checked out branch name
func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("get current branch: %w", err)
	}

	return strings.TrimSpace(out), nil
}

// FileStatus represents a file's git status
type FileStatus struct {
	Index   byte
	WorkDir byte
	Path    string
}

// IsStaged returns true if the file is staged
func (f FileStatus) IsStaged() bool {
	return f.Index != ' ' && f.Index != '?'
}

// Status returns uncommitted changes, untracked files included.
func (g *Git) Status(ctx context.Context) ([]FileStatus, error) {
	out, err := g.run(ctx, "status", "--porcelain", "-z")
	if err != nil {
		return nil, fmt.Errorf("git status: %w", err)
	}
	if out == "" {
		return nil, nil
	}

	var files []FileStatus
	for _, entry := range strings.Split(strings.TrimSuffix(out, "\x00"), "\x00") {
		if len(entry) < gitStatusMinLength {
			continue
		}
		files = append(files, FileStatus{
			Index:   entry[gitStatusIndexPos],
			WorkDir: entry[gitStatusWorkDirPos],
			Path:    strings.TrimSpace(entry[gitStatusPathStart:]),
		})
	}

	return files, nil
}

// HasChanges returns true if there are uncommitted changes
func (g *Git) HasChanges(ctx context.Context) (bool, error) {
	files, err := g.Status(ctx)
	if err != nil {
		return false, err
	}

	return len(files) > 0, nil
}

// AddAll stages every change in the work tree.
func (g *Git) AddAll(ctx context.Context) error {
	if _, err := g.run(ctx, "add", "-A"); err != nil {
		return fmt.Errorf("git add: %w", err)
	}

	return nil
}

// ErrNothingToCommit is returned by Commit when the work tree is clean.
var ErrNothingToCommit = errors.New("nothing to commit")

// Commit stages all changes and commits them, returning the new HEAD hash.
func (g *Git) Commit(ctx context.Context, message string) (string, error) {
	if err := g.AddAll(ctx); err != nil {
		return "", err
	}

	changed, err := g.HasChanges(ctx)
	if err != nil {
		return "", err
	}
	if !changed {
		return "", ErrNothingToCommit
	}

	if _, err := g.run(ctx, "commit", "-m", message); err != nil {
		return "", fmt.Errorf("git commit: %w", err)
	}

	out, err := g.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("get commit hash: %w", err)
	}

	return strings.TrimSpace(out), nil
}

// Checkout switches to a branch or ref
func (g *Git) Checkout(ctx context.Context, ref string) error {
	if _, err := g.run(ctx, "checkout", ref); err != nil {
		return fmt.Errorf("git checkout %s: %w", ref, err)
	}

	return nil
}

// DiffStat returns `git diff <ref> --stat`. An empty result means the work
// tree matches ref.
func (g *Git) DiffStat(ctx context.Context, ref string) (string, error) {
	out, err := g.run(ctx, "diff", ref, "--stat")
	if err != nil {
		return "", fmt.Errorf("git diff %s: %w", ref, err)
	}

	return strings.TrimSpace(out), nil
}

// RemoteURL returns the URL configured for the named remote.
func (g *Git) RemoteURL(ctx context.Context, name string) (string, error) {
	out, err := g.run(ctx, "remote", "get-url", name)
	if err != nil {
		return "", fmt.Errorf("get remote url: %w", err)
	}

	return strings.TrimSpace(out), nil
}

// Fetch updates refs from the remote.
func (g *Git) Fetch(ctx context.Context, remote string) error {
	if _, err := g.run(ctx, "fetch", remote); err != nil {
		return fmt.Errorf("git fetch: %w", err)
	}

	return nil
}

// Push pushes branch to remote and records the upstream.
func (g *Git) Push(ctx context.Context, remote, branch string) error {
	if _, err := g.run(ctx, "push", "-u", remote, branch); err != nil {
		return fmt.Errorf("git push: %w", err)
	}

	return nil
}

// RunContext executes an arbitrary git command in the repository root.
func (g *Git) RunContext(ctx context.Context, args ...string) (string, error) {
	return g.run(ctx, args...)
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	return runGitCommandContext(ctx, g.repoRoot, args...)
}

func runGitCommandContext(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = err.Error()
		}

		return "", errors.New(errMsg)
	}

	return stdout.String(), nil
}
