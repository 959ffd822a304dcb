// Package tracker defines the issue tracker collaborator used by the stages.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BotIdentifier prefixes every comment posted by the workflow so that
// keyword scans and webhook triggers can ignore them.
const BotIdentifier = "[ADW-AGENTS]"

// Issue is the tracker-neutral view of an issue.
type Issue struct {
	Number   int
	Title    string
	Body     string
	State    string
	URL      string
	Author   string
	Labels   []string
	Comments []Comment
}

// Comment is one issue comment or note.
type Comment struct {
	ID        int64
	Author    string
	Body      string
	CreatedAt time.Time
}

// PullRequest describes the change request opened for a branch.
type PullRequest struct {
	Title string
	Body  string
	Head  string
	Base  string
	Draft bool
}

// Tracker fetches issues and posts progress comments.
type Tracker interface {
	FetchIssue(ctx context.Context, number int) (*Issue, error)
	PostComment(ctx context.Context, number int, body string) error
}

// PullRequester opens or updates the pull/merge request for a branch and
// returns its URL.
type PullRequester interface {
	OpenOrUpdatePR(ctx context.Context, pr PullRequest) (string, error)
}

// Errors
var (
	ErrKeywordNotFound = errors.New("keyword not found in issue or comments")
	ErrInvalidNumber   = errors.New("invalid issue number")
)

// ParseNumber accepts "42" or "#42".
func ParseNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}

	return n, nil
}

// NormalizeNumber parses s and returns the canonical decimal form, so
// "#42" and " 42" are stored and forwarded as "42".
func NormalizeNumber(s string) (string, error) {
	n, err := ParseNumber(s)
	if err != nil {
		return "", err
	}

	return strconv.Itoa(n), nil
}

// FormatMessage renders a progress comment body as "<adw_id>_<agent>: <message>".
func FormatMessage(adwID, agentName, message string) string {
	return fmt.Sprintf("%s_%s: %s", adwID, agentName, message)
}

// WithBotIdentifier prefixes body with BotIdentifier unless already present.
func WithBotIdentifier(body string) string {
	if strings.HasPrefix(body, BotIdentifier) {
		return body
	}

	return BotIdentifier + " " + body
}

// IsBotComment reports whether body was posted by the workflow.
func IsBotComment(body string) bool {
	return strings.Contains(body, BotIdentifier)
}

// FindKeyword returns the content to act on for keyword: the newest
// non-bot comment mentioning it, otherwise the issue itself rendered as
// "Issue #N: title\n\nbody" when the body mentions it.
func FindKeyword(issue *Issue, keyword string) (string, error) {
	for i := len(issue.Comments) - 1; i >= 0; i-- {
		c := issue.Comments[i]
		if IsBotComment(c.Body) {
			continue
		}
		if strings.Contains(c.Body, keyword) {
			return c.Body, nil
		}
	}

	if strings.Contains(issue.Body, keyword) {
		return fmt.Sprintf("Issue #%d: %s\n\n%s", issue.Number, issue.Title, issue.Body), nil
	}

	return "", fmt.Errorf("%w: %s", ErrKeywordNotFound, keyword)
}

// Compact returns a copy of issue limited to the fields the agent prompts need.
func (i *Issue) Compact() map[string]any {
	return map[string]any{
		"number": i.Number,
		"title":  i.Title,
		"body":   i.Body,
	}
}
