package agent

import (
	"errors"
	"time"
)

// Request is one slash command invocation.
type Request struct {
	// Command is the slash command, e.g. "/review".
	Command string
	Args    []string
	ADWID   string
	// AgentName namespaces the audit output, e.g. "reviewer" or "sdlc_planner".
	AgentName string
	// Model overrides the command table when set.
	Model string
}

// Result is the outcome of one Request.
type Result struct {
	Success   bool
	Output    string
	SessionID string
	Model     string
	Duration  time.Duration
	// CostUSD is read from the result record when present.
	CostUSD float64
}

// Errors
var (
	ErrNotInstalled   = errors.New("agent executable not found")
	ErrTimeout        = errors.New("agent timed out")
	ErrAborted        = errors.New("agent aborted mid-execution")
	ErrMalformed      = errors.New("agent output malformed")
	ErrExitStatus     = errors.New("agent exited with non-zero status")
	ErrCrashed        = errors.New("agent process crashed")
	ErrAgentFailed    = errors.New("agent reported an error")
	ErrUnsupportedCLI = errors.New("agent CLI version not supported")
)

// Fatal reports whether err must stop the calling stage without retry.
func Fatal(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrNotInstalled) ||
		errors.Is(err, ErrCrashed) ||
		errors.Is(err, ErrUnsupportedCLI)
}

// Audit file names under agents/<adw_id>/<agent_name>/.
const (
	RawOutputJSONL = "raw_output.jsonl"
	RawOutputJSON  = "raw_output.json"
	PromptsDir     = "prompts"
)
