// Package gitlab implements the issue tracker and merge request opener on the GitLab API.
package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/valksor/go-adw/internal/cache"
	"github.com/valksor/go-adw/internal/tracker"
)

// Error types for the GitLab tracker.
var (
	ErrProjectNotConfigured = errors.New("gitlab project not configured")
	ErrIssueNotFound        = errors.New("issue not found")
	ErrUnauthorized         = errors.New("gitlab token unauthorized or expired")
	ErrInsufficientScope    = errors.New("gitlab token lacks required scope")
	ErrNetworkError         = errors.New("network error communicating with gitlab")
)

func ptr[T any](v T) *T {
	return &v
}

// Config holds tracker settings
type Config struct {
	Token string
	// Host is e.g. "gitlab.example.com"; empty means gitlab.com.
	Host        string
	ProjectPath string
	// ProjectID skips the project lookup when set.
	ProjectID int64
}

// Tracker implements tracker.Tracker and tracker.PullRequester for GitLab.
type Tracker struct {
	gl          *gitlab.Client
	cache       *cache.Cache
	projectPath string
	projectID   int64
}

// ResolveToken finds the GitLab token: GITLAB_TOKEN, then configToken.
func ResolveToken(configToken string) (string, error) {
	tok, err := tracker.ResolveToken(tracker.TokenSources{
		EnvVars:     []string{"GITLAB_TOKEN"},
		ConfigToken: configToken,
	})
	if err != nil {
		return "", fmt.Errorf("gitlab: %w (set GITLAB_TOKEN)", err)
	}

	return tok, nil
}

// BaseURL returns the API root for host.
func BaseURL(host string) string {
	host = strings.TrimSuffix(strings.TrimSpace(host), "/")
	if host == "" {
		host = "gitlab.com"
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}

	return host + "/api/v4"
}

// New creates a GitLab tracker
func New(cfg Config) (*Tracker, error) {
	if cfg.ProjectPath == "" && cfg.ProjectID == 0 {
		return nil, ErrProjectNotConfigured
	}

	client, err := gitlab.NewClient(cfg.Token, gitlab.WithBaseURL(BaseURL(cfg.Host)))
	if err != nil {
		return nil, fmt.Errorf("create gitlab client: %w", err)
	}

	return &Tracker{
		gl:          client,
		cache:       cache.New(),
		projectPath: cfg.ProjectPath,
		projectID:   cfg.ProjectID,
	}, nil
}

func (t *Tracker) pid(ctx context.Context) (int64, error) {
	if t.projectID > 0 {
		return t.projectID, nil
	}

	project, _, err := t.gl.Projects.GetProject(t.projectPath, nil, gitlab.WithContext(ctx))
	if err != nil {
		return 0, wrapAPIError(err)
	}
	t.projectID = int64(project.ID)

	return t.projectID, nil
}

// FetchIssue fetches an issue and its user notes, oldest first
func (t *Tracker) FetchIssue(ctx context.Context, number int) (*tracker.Issue, error) {
	key := fmt.Sprintf("gitlab:%s:%d:issue:%d", t.projectPath, t.projectID, number)

	return cache.GetOrLoad(t.cache, key, cache.DefaultCommentsTTL, func() (*tracker.Issue, error) {
		pid, err := t.pid(ctx)
		if err != nil {
			return nil, err
		}

		issue, _, err := t.gl.Issues.GetIssue(pid, int64(number), gitlab.WithContext(ctx))
		if err != nil {
			return nil, wrapAPIError(err)
		}

		out := &tracker.Issue{
			Number: int(issue.IID),
			Title:  issue.Title,
			Body:   issue.Description,
			State:  issue.State,
			URL:    issue.WebURL,
			Labels: []string(issue.Labels),
		}
		if issue.Author != nil {
			out.Author = issue.Author.Username
		}

		opts := &gitlab.ListIssueNotesOptions{
			OrderBy: ptr("created_at"),
			Sort:    ptr("asc"),
		}
		opts.Page = 1
		opts.PerPage = 100

		for {
			notes, resp, err := t.gl.Notes.ListIssueNotes(pid, int64(number), opts, gitlab.WithContext(ctx))
			if err != nil {
				return nil, wrapAPIError(err)
			}
			for _, n := range notes {
				if n.System {
					continue
				}
				c := tracker.Comment{
					ID:     int64(n.ID),
					Author: n.Author.Username,
					Body:   n.Body,
				}
				if n.CreatedAt != nil {
					c.CreatedAt = *n.CreatedAt
				}
				out.Comments = append(out.Comments, c)
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}

		return out, nil
	})
}

// PostComment adds a note tagged with the bot identifier
func (t *Tracker) PostComment(ctx context.Context, number int, body string) error {
	pid, err := t.pid(ctx)
	if err != nil {
		return err
	}

	_, _, err = t.gl.Notes.CreateIssueNote(pid, int64(number), &gitlab.CreateIssueNoteOptions{
		Body: ptr(tracker.WithBotIdentifier(body)),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return wrapAPIError(err)
	}

	t.cache.Delete(fmt.Sprintf("gitlab:%s:%d:issue:%d", t.projectPath, t.projectID, number))

	return nil
}

// OpenOrUpdatePR returns the URL of the open merge request for pr.Head or
// creates one against pr.Base (the project default branch when empty).
func (t *Tracker) OpenOrUpdatePR(ctx context.Context, pr tracker.PullRequest) (string, error) {
	pid, err := t.pid(ctx)
	if err != nil {
		return "", err
	}

	mrs, _, err := t.gl.MergeRequests.ListProjectMergeRequests(pid, &gitlab.ListProjectMergeRequestsOptions{
		State:        ptr("opened"),
		SourceBranch: ptr(pr.Head),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return "", wrapAPIError(err)
	}
	if len(mrs) > 0 {
		return mrs[0].WebURL, nil
	}

	base := pr.Base
	if base == "" {
		project, _, err := t.gl.Projects.GetProject(pid, nil, gitlab.WithContext(ctx))
		if err != nil {
			return "", wrapAPIError(err)
		}
		base = project.DefaultBranch
	}

	title := pr.Title
	if pr.Draft && !strings.HasPrefix(title, "Draft:") {
		title = "Draft: " + title
	}

	mr, _, err := t.gl.MergeRequests.CreateMergeRequest(pid, &gitlab.CreateMergeRequestOptions{
		Title:              ptr(title),
		Description:        ptr(pr.Body),
		SourceBranch:       ptr(pr.Head),
		TargetBranch:       ptr(base),
		RemoveSourceBranch: ptr(true),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return "", wrapAPIError(err)
	}

	return mr.WebURL, nil
}

// wrapAPIError converts GitLab API errors to typed errors.
func wrapAPIError(err error) error {
	if err == nil {
		return nil
	}

	var errResp *gitlab.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		switch errResp.Response.StatusCode {
		case 401:
			return fmt.Errorf("%w: %w", ErrUnauthorized, err)
		case 403:
			return fmt.Errorf("%w: %w", ErrInsufficientScope, err)
		case 404:
			return fmt.Errorf("%w: %w", ErrIssueNotFound, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrNetworkError, err)
	}

	return err
}

var (
	_ tracker.Tracker       = (*Tracker)(nil)
	_ tracker.PullRequester = (*Tracker)(nil)
)
