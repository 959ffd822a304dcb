// Package claude runs the Claude Code CLI in print mode with stream-json output.
package claude

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/valksor/go-adw/internal/agent"
)

const AgentName = "claude"

// stderrLimit caps how much stderr is kept for error messages.
const stderrLimit = 64 * 1024

// Config holds runner settings. Env is used as the complete process
// environment; nothing is inherited from the parent.
type Config struct {
	Path            string
	Env             []string
	Timeout         time.Duration
	SkipPermissions bool
	// MinVersion rejects older CLIs when set, e.g. "1.0.0".
	MinVersion string
}

// Runner implements agent.Runner for the Claude CLI
type Runner struct {
	config Config
}

// New creates a runner
func New(cfg Config) *Runner {
	if cfg.Path == "" {
		cfg.Path = "claude"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}

	return &Runner{config: cfg}
}

// Name returns the agent identifier
func (r *Runner) Name() string {
	return AgentName
}

// Available checks that the CLI resolves, runs and meets MinVersion.
func (r *Runner) Available(ctx context.Context) error {
	path, err := exec.LookPath(r.config.Path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", agent.ErrNotInstalled, r.config.Path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, "--version")
	cmd.Env = r.env()
	out, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("claude CLI not working: %w", err)
	}

	if r.config.MinVersion == "" {
		return nil
	}

	version := ParseVersion(string(out))
	if version == "" {
		return fmt.Errorf("%w: cannot read version from %q", agent.ErrUnsupportedCLI, strings.TrimSpace(string(out)))
	}
	if semver.Compare(version, canonical(r.config.MinVersion)) < 0 {
		return fmt.Errorf("%w: have %s, need %s", agent.ErrUnsupportedCLI, version, canonical(r.config.MinVersion))
	}

	return nil
}

var versionRe = regexp.MustCompile(`\d+\.\d+\.\d+(?:-[0-9A-Za-z.-]+)?`)

// ParseVersion extracts a semver ("v1.2.3") from `claude --version` output.
func ParseVersion(out string) string {
	m := versionRe.FindString(out)
	if m == "" {
		return ""
	}
	v := "v" + m
	if !semver.IsValid(v) {
		return ""
	}

	return v
}

func canonical(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}

	return semver.Canonical(v)
}

// Run executes the CLI with the prompt on stdin and streams stdout into inv.Output.
func (r *Runner) Run(ctx context.Context, inv agent.Invocation) (*agent.Exit, error) {
	path, err := exec.LookPath(r.config.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", agent.ErrNotInstalled, r.config.Path)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, path, r.buildArgs(inv.Model)...)
	if inv.Dir != "" {
		cmd.Dir = inv.Dir
	}
	cmd.Env = r.env()
	cmd.Stdin = strings.NewReader(inv.Prompt)
	cmd.Stdout = inv.Output
	stderr := &limitedBuffer{limit: stderrLimit}
	cmd.Stderr = stderr
	cmd.WaitDelay = 5 * time.Second

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}

	waitErr := cmd.Wait()

	if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, fmt.Errorf("%w after %s", agent.ErrTimeout, r.config.Timeout)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	exit := &agent.Exit{Stderr: stderr.String()}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, fmt.Errorf("wait error: %w", waitErr)
		}
		exit.ExitCode = exitErr.ExitCode()
	}

	return exit, nil
}

func (r *Runner) buildArgs(model string) []string {
	args := []string{}
	if model != "" {
		args = append(args, "--model", model)
	}

	// Non-interactive mode; the prompt arrives on stdin.
	args = append(args, "-p")

	// Use streaming JSON output (requires --verbose)
	args = append(args, "--verbose", "--output-format", "stream-json")

	if r.config.SkipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	}

	return args
}

// env returns a non-nil copy so an empty config never inherits the parent environment.
func (r *Runner) env() []string {
	return append([]string{}, r.config.Env...)
}

// limitedBuffer keeps the first limit bytes written to it.
type limitedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}

	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}

var _ agent.Runner = (*Runner)(nil)
