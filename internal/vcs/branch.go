package vcs

import (
	"context"
	"fmt"
)

// CreateBranch creates and checks out name. An empty base branches from HEAD.
func (g *Git) CreateBranch(ctx context.Context, name, base string) error {
	args := []string{"checkout", "-b", name}
	if base != "" {
		args = append(args, base)
	}
	if _, err := g.run(ctx, args...); err != nil {
		return fmt.Errorf("create branch %s: %w", name, err)
	}

	return nil
}

// BranchExists reports whether a local branch exists.
func (g *Git) BranchExists(ctx context.Context, name string) bool {
	_, err := g.run(ctx, "rev-parse", "--verify", "--quiet", "refs/heads/"+name)
	return err == nil
}

// RemoteBranchExists reports whether remote/name is known locally.
func (g *Git) RemoteBranchExists(ctx context.Context, remote, name string) bool {
	_, err := g.run(ctx, "rev-parse", "--verify", "--quiet", "refs/remotes/"+remote+"/"+name)
	return err == nil
}

// EnsureBranch checks out name, creating it from base when it does not
// exist yet. It reports whether the branch was created.
func (g *Git) EnsureBranch(ctx context.Context, name, base string) (bool, error) {
	current, err := g.CurrentBranch(ctx)
	if err != nil {
		return false, err
	}
	if current == name {
		return false, nil
	}

	if g.BranchExists(ctx, name) {
		return false, g.Checkout(ctx, name)
	}

	return true, g.CreateBranch(ctx, name, base)
}
