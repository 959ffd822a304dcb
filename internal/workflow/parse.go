package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/valksor/go-adw/internal/state"
)

// ErrUnparseable is returned when agent output carries no usable payload.
var ErrUnparseable = errors.New("unparseable agent output")

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// parseJSON decodes the JSON payload of agent output into v. The payload
// may be wrapped in a markdown fence or surrounded by prose; payloads that
// do not decode as-is are run through jsonrepair once.
func parseJSON(output string, v any) error {
	text := strings.TrimSpace(output)
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	text = trimToPayload(text)
	if text == "" {
		return fmt.Errorf("%w: empty output", ErrUnparseable)
	}

	err := json.Unmarshal([]byte(text), v)
	if err == nil {
		return nil
	}

	repaired, rerr := jsonrepair.JSONRepair(text)
	if rerr != nil {
		return fmt.Errorf("%w: %w", ErrUnparseable, err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("%w: %w", ErrUnparseable, err)
	}

	return nil
}

// trimToPayload drops prose before the first '{' or '[' and after the
// matching last '}' or ']'.
func trimToPayload(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return s[start:]
	}

	return s[start : end+1]
}

var classRe = regexp.MustCompile(`/(chore|bug|feature)\b`)

// parseIssueClass reads the /classify_issue answer. "0" means the agent
// could not classify the issue.
func parseIssueClass(output string) (state.IssueClass, error) {
	m := classRe.FindStringSubmatch(output)
	if m == nil {
		return "", fmt.Errorf("%w: no issue class in %q", ErrUnparseable, truncate(output, 80))
	}

	return state.ParseIssueClass(m[1])
}

// extractPath returns the file path an agent reported: the last non-empty
// line with markdown quoting removed.
func extractPath(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.Trim(strings.TrimSpace(lines[i]), "`'\"")
		if line != "" {
			return line
		}
	}

	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
