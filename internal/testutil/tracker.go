package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/valksor/go-adw/internal/tracker"
)

// FakeTracker is an in-memory tracker.Tracker and tracker.PullRequester.
type FakeTracker struct {
	mu       sync.Mutex
	issues   map[int]*tracker.Issue
	comments map[int][]string
	prs      []tracker.PullRequest

	PRURL      string
	FetchErr   error
	CommentErr error
	PRErr      error
}

// NewFakeTracker creates a tracker serving issues.
func NewFakeTracker(issues ...*tracker.Issue) *FakeTracker {
	f := &FakeTracker{
		issues:   make(map[int]*tracker.Issue),
		comments: make(map[int][]string),
		PRURL:    "https://github.com/acme/app/pull/1",
	}
	for _, i := range issues {
		f.issues[i.Number] = i
	}

	return f
}

// FetchIssue implements tracker.Tracker.
func (f *FakeTracker) FetchIssue(_ context.Context, number int) (*tracker.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	issue, ok := f.issues[number]
	if !ok {
		return nil, fmt.Errorf("issue #%d not found", number)
	}
	cp := *issue

	return &cp, nil
}

// PostComment implements tracker.Tracker.
func (f *FakeTracker) PostComment(_ context.Context, number int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CommentErr != nil {
		return f.CommentErr
	}
	f.comments[number] = append(f.comments[number], body)

	return nil
}

// OpenOrUpdatePR implements tracker.PullRequester.
func (f *FakeTracker) OpenOrUpdatePR(_ context.Context, pr tracker.PullRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PRErr != nil {
		return "", f.PRErr
	}
	f.prs = append(f.prs, pr)

	return f.PRURL, nil
}

// Comments returns the comments posted on issue number.
func (f *FakeTracker) Comments(number int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.comments[number]...)
}

// HasComment reports whether any comment on number contains substr.
func (f *FakeTracker) HasComment(number int, substr string) bool {
	for _, c := range f.Comments(number) {
		if strings.Contains(c, substr) {
			return true
		}
	}

	return false
}

// PullRequests returns every PR request received.
func (f *FakeTracker) PullRequests() []tracker.PullRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]tracker.PullRequest(nil), f.prs...)
}
