package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/valksor/go-adw/internal/log"
)

// Windows status codes the agent CLI dies with when it crashes natively.
var crashExitCodes = map[int64]string{
	3221226505: "STATUS_STACK_BUFFER_OVERRUN",
	3221225477: "STATUS_ACCESS_VIOLATION",
}

// ExecutorConfig is computed once per process and handed to NewExecutor.
type ExecutorConfig struct {
	Runner Runner
	// Models maps slash commands to model names.
	Models       map[string]string
	DefaultModel string
	// CommandsDir holds <command>.md prompt templates.
	CommandsDir string
	// AgentsDir is the root of the per-run audit output.
	AgentsDir string
	WorkDir   string
	// Logger overrides the global logger, which follows the per-run log file.
	Logger *slog.Logger
}

// Executor renders slash commands, runs the agent and interprets its output.
type Executor struct {
	cfg ExecutorConfig
	now func() time.Time
}

// NewExecutor creates an executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	return &Executor{cfg: cfg, now: time.Now}
}

// ModelFor resolves the model for a slash command.
func (e *Executor) ModelFor(command string) string {
	if m, ok := e.cfg.Models[command]; ok && m != "" {
		return m
	}

	return e.cfg.DefaultModel
}

// AgentDir returns agents/<adw_id>/<agent_name>.
func (e *Executor) AgentDir(adwID, agentName string) string {
	return filepath.Join(e.cfg.AgentsDir, adwID, agentName)
}

// RenderPrompt builds the prompt text for req. When a template file exists
// for the command its content is used, with $ARGUMENTS replaced by the
// joined arguments or the arguments appended after a blank line.
// Otherwise the prompt is the command followed by its arguments.
func (e *Executor) RenderPrompt(req Request) (string, error) {
	joined := strings.Join(req.Args, " ")

	if e.cfg.CommandsDir != "" {
		name := strings.TrimPrefix(req.Command, "/")
		data, err := os.ReadFile(filepath.Join(e.cfg.CommandsDir, name+".md"))
		switch {
		case err == nil:
			body := string(data)
			if strings.Contains(body, "$ARGUMENTS") {
				return strings.ReplaceAll(body, "$ARGUMENTS", joined), nil
			}
			if joined == "" {
				return body, nil
			}

			return body + "\n\n" + joined, nil
		case !errors.Is(err, os.ErrNotExist):
			return "", fmt.Errorf("read template %s: %w", name, err)
		}
	}

	if joined == "" {
		return req.Command, nil
	}

	return req.Command + " " + joined, nil
}

// ExecuteTemplate runs one slash command. The returned Result is never nil;
// on failure Output carries a human-readable diagnostic and err wraps one of
// the package errors.
func (e *Executor) ExecuteTemplate(ctx context.Context, req Request) (*Result, error) {
	if !strings.HasPrefix(req.Command, "/") {
		req.Command = "/" + req.Command
	}
	model := req.Model
	if model == "" {
		model = e.ModelFor(req.Command)
	}
	res := &Result{Model: model}

	fail := func(err error, msg string) (*Result, error) {
		res.Success = false
		res.Output = msg
		e.logger().Error("agent invocation failed",
			"adw_id", req.ADWID, "agent", req.AgentName, "command", req.Command, "error", err)

		return res, err
	}

	prompt, err := e.RenderPrompt(req)
	if err != nil {
		return fail(err, err.Error())
	}

	dir := e.AgentDir(req.ADWID, req.AgentName)
	if err := e.savePrompt(dir, req.Command, prompt); err != nil {
		return fail(err, err.Error())
	}

	outPath := filepath.Join(dir, RawOutputJSONL)
	out, err := os.Create(outPath)
	if err != nil {
		err = fmt.Errorf("create output file: %w", err)

		return fail(err, err.Error())
	}

	e.logger().Debug("running agent",
		"adw_id", req.ADWID, "agent", req.AgentName, "command", req.Command, "model", model)

	start := e.now()
	exit, runErr := e.cfg.Runner.Run(ctx, Invocation{
		Prompt: prompt,
		Model:  model,
		Output: out,
		Dir:    e.cfg.WorkDir,
	})
	res.Duration = e.now().Sub(start)
	if err := out.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("close output file: %w", err)
	}

	switch {
	case errors.Is(runErr, ErrTimeout):
		return fail(runErr, fmt.Sprintf("Error: agent timed out after %s", res.Duration.Round(time.Second)))
	case errors.Is(runErr, ErrNotInstalled):
		return fail(runErr, "Error: agent CLI is not installed: "+runErr.Error())
	case runErr != nil:
		return fail(runErr, "Error executing agent: "+runErr.Error())
	}

	outcome, records, parseErr := ParseFile(outPath)
	if parseErr != nil {
		return fail(parseErr, "Error parsing agent output: "+parseErr.Error())
	}
	if err := e.writeJSON(dir, records); err != nil {
		e.logger().Warn("failed to write converted output", "path", dir, "error", err)
	}

	if exit != nil && exit.ExitCode != 0 {
		if name, ok := crashExitCodes[int64(exit.ExitCode)]; ok {
			err := fmt.Errorf("%w: exit code %d (%s)", ErrCrashed, exit.ExitCode, name)

			return fail(err, "Error: agent crashed: "+err.Error())
		}
		if c, ok := outcome.(Completed); ok && c.IsError && c.Text != "" {
			res.SessionID = c.SessionID

			return fail(fmt.Errorf("%w: %s", ErrAgentFailed, c.Text), c.Text)
		}
		err := fmt.Errorf("%w: %d", ErrExitStatus, exit.ExitCode)
		msg := "Error: agent exited with code " + fmt.Sprint(exit.ExitCode)
		if s := strings.TrimSpace(exit.Stderr); s != "" {
			msg += ": " + s
		}

		return fail(err, msg)
	}

	switch o := outcome.(type) {
	case Completed:
		res.SessionID = o.SessionID
		res.CostUSD = o.CostUSD
		if o.IsError {
			return fail(fmt.Errorf("%w: %s", ErrAgentFailed, o.Text), o.Text)
		}
		res.Success = true
		res.Output = o.Text

		return res, nil
	case Aborted:
		return fail(fmt.Errorf("%w: %s", ErrAborted, o.Reason), "Error: agent aborted mid-execution: "+o.Reason)
	case Malformed:
		return fail(fmt.Errorf("%w: %w", ErrMalformed, o.Err), "Error: malformed agent output: "+truncate(o.Line, 200))
	default:
		return fail(ErrMalformed, "Error: unknown agent outcome")
	}
}

func (e *Executor) logger() *slog.Logger {
	if e.cfg.Logger != nil {
		return e.cfg.Logger
	}

	return log.Logger()
}

func (e *Executor) savePrompt(dir, command, prompt string) error {
	promptsDir := filepath.Join(dir, PromptsDir)
	if err := os.MkdirAll(promptsDir, 0o755); err != nil {
		return fmt.Errorf("create prompts dir: %w", err)
	}
	name := strings.TrimPrefix(command, "/") + ".txt"
	if err := os.WriteFile(filepath.Join(promptsDir, name), []byte(prompt), 0o644); err != nil {
		return fmt.Errorf("save prompt: %w", err)
	}

	return nil
}

func (e *Executor) writeJSON(dir string, records []json.RawMessage) error {
	data, err := EncodeRecords(records)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, RawOutputJSON), data, 0o644)
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open agent output: %w", err)
	}

	return f, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}

var _ TemplateExecutor = (*Executor)(nil)
