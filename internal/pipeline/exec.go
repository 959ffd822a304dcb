package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/valksor/go-adw/internal/log"
)

// ExitError reports a stage process that exited non-zero.
type ExitError struct {
	Args []string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", strings.Join(e.Args, " "), e.Code)
}

// ExecRunner starts each stage as a child process of Executable, usually
// the running adw binary. Output is streamed to Stdout and Stderr.
type ExecRunner struct {
	Executable string
	// Prefix is inserted before the stage arguments.
	Prefix []string
	Dir    string
	// Env is the child environment; nil inherits the parent's.
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner creates a runner re-invoking the current executable.
func NewExecRunner() (*ExecRunner, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}

	return &ExecRunner{Executable: exe, Stdout: os.Stdout, Stderr: os.Stderr}, nil
}

// Run implements Runner. It blocks until the child exits.
func (r *ExecRunner) Run(ctx context.Context, args []string) error {
	full := append(append([]string(nil), r.Prefix...), args...)
	cmd := exec.CommandContext(ctx, r.Executable, full...)
	cmd.Dir = r.Dir
	cmd.Env = r.Env
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	log.Debug("starting stage process", "cmd", r.Executable, "args", strings.Join(full, " "))
	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return &ExitError{Args: args, Code: exitErr.ExitCode()}
	}

	return fmt.Errorf("run %s: %w", strings.Join(args, " "), err)
}
