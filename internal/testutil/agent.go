package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/valksor/go-adw/internal/agent"
)

// AgentReply scripts one answer of FakeAgent.
type AgentReply struct {
	Output string
	// Fail reports a failed result with Output as the message.
	Fail bool
	// Err is returned as-is, e.g. agent.ErrTimeout.
	Err error
	// Files are written relative to the agent's Dir before answering.
	Files map[string]string
}

// FakeAgent is a scripted agent.TemplateExecutor. Replies are queued per
// slash command; the last reply of a queue repeats. Commands without a
// script succeed with "ok".
type FakeAgent struct {
	mu       sync.Mutex
	Dir      string
	replies  map[string][]AgentReply
	requests []agent.Request
}

// NewFakeAgent creates a FakeAgent writing files under dir.
func NewFakeAgent(dir string) *FakeAgent {
	return &FakeAgent{Dir: dir, replies: make(map[string][]AgentReply)}
}

// On queues replies for command.
func (f *FakeAgent) On(command string, replies ...AgentReply) *FakeAgent {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[command] = append(f.replies[command], replies...)

	return f
}

// ExecuteTemplate implements agent.TemplateExecutor.
func (f *FakeAgent) ExecuteTemplate(_ context.Context, req agent.Request) (*agent.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	reply := AgentReply{Output: "ok"}
	if q := f.replies[req.Command]; len(q) > 0 {
		reply = q[0]
		if len(q) > 1 {
			f.replies[req.Command] = q[1:]
		}
	}
	f.mu.Unlock()

	for name, content := range reply.Files {
		path := filepath.Join(f.Dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return &agent.Result{Output: err.Error()}, err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return &agent.Result{Output: err.Error()}, err
		}
	}

	switch {
	case reply.Err != nil:
		return &agent.Result{Output: reply.Err.Error()}, reply.Err
	case reply.Fail:
		return &agent.Result{Output: reply.Output}, fmt.Errorf("%w: %s", agent.ErrAgentFailed, reply.Output)
	default:
		return &agent.Result{Success: true, Output: reply.Output, SessionID: "fake-session"}, nil
	}
}

// Requests returns every request received so far.
func (f *FakeAgent) Requests() []agent.Request {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]agent.Request(nil), f.requests...)
}

// Calls returns the requests received for command.
func (f *FakeAgent) Calls(command string) []agent.Request {
	var out []agent.Request
	for _, r := range f.Requests() {
		if r.Command == command {
			out = append(out, r)
		}
	}

	return out
}
