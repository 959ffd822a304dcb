package agent

import (
	"context"
	"io"
)

// Runner starts the external agent process once.
type Runner interface {
	// Run executes inv and blocks until the process exits or ctx is done.
	// Launch problems and timeouts are returned as errors; a process that
	// ran and exited non-zero is reported through Exit.ExitCode.
	Run(ctx context.Context, inv Invocation) (*Exit, error)
}

// Invocation is what a Runner needs to start the agent.
type Invocation struct {
	Prompt string
	Model  string
	// Output receives the agent's line-delimited JSON stream.
	Output io.Writer
	// Dir is the working directory; empty means the current one.
	Dir string
}

// Exit describes how the process ended.
type Exit struct {
	ExitCode int
	Stderr   string
}

// TemplateExecutor is the part of Executor stages depend on.
type TemplateExecutor interface {
	ExecuteTemplate(ctx context.Context, req Request) (*Result, error)
}
