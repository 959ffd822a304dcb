// Package github implements the issue tracker and pull request opener on the GitHub API.
package github

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v67/github"
	"golang.org/x/oauth2"

	"github.com/valksor/go-adw/internal/cache"
)

// ptr is a helper to create a pointer to a value
func ptr[T any](v T) *T {
	return &v
}

// Client wraps the GitHub API client
type Client struct {
	gh    *github.Client
	cache *cache.Cache
	owner string
	repo  string
}

// NewClient creates a GitHub API client authenticated with token.
// c may be nil to disable caching.
func NewClient(token, owner, repo string, c *cache.Cache) *Client {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	return &Client{
		gh:    github.NewClient(httpClient),
		owner: owner,
		repo:  repo,
		cache: c,
	}
}

func (c *Client) cacheKey(resourceType string, id any) string {
	return fmt.Sprintf("github:%s/%s:%s:%v", c.owner, c.repo, resourceType, id)
}

// GetIssue fetches an issue by number
func (c *Client) GetIssue(ctx context.Context, number int) (*github.Issue, error) {
	return cache.GetOrLoad(c.cache, c.cacheKey("issue", number), cache.DefaultIssueTTL, func() (*github.Issue, error) {
		issue, _, err := c.gh.Issues.Get(ctx, c.owner, c.repo, number)
		if err != nil {
			return nil, wrapAPIError(err)
		}

		return issue, nil
	})
}

// GetIssueComments fetches all comments on an issue, oldest first.
func (c *Client) GetIssueComments(ctx context.Context, number int) ([]*github.IssueComment, error) {
	return cache.GetOrLoad(c.cache, c.cacheKey("comments", number), cache.DefaultCommentsTTL, func() ([]*github.IssueComment, error) {
		opts := &github.IssueListCommentsOptions{
			ListOptions: github.ListOptions{PerPage: 100},
		}

		var all []*github.IssueComment
		for {
			comments, resp, err := c.gh.Issues.ListComments(ctx, c.owner, c.repo, number, opts)
			if err != nil {
				return nil, wrapAPIError(err)
			}
			all = append(all, comments...)
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}

		return all, nil
	})
}

// AddComment adds a comment to an issue
func (c *Client) AddComment(ctx context.Context, number int, body string) (*github.IssueComment, error) {
	comment, _, err := c.gh.Issues.CreateComment(ctx, c.owner, c.repo, number, &github.IssueComment{
		Body: ptr(body),
	})
	if err != nil {
		return nil, wrapAPIError(err)
	}

	c.cache.Delete(c.cacheKey("comments", number))

	return comment, nil
}

// FindOpenPullRequest returns the open PR whose head is branch, or nil.
func (c *Client) FindOpenPullRequest(ctx context.Context, branch string) (*github.PullRequest, error) {
	prs, _, err := c.gh.PullRequests.List(ctx, c.owner, c.repo, &github.PullRequestListOptions{
		State:       "open",
		Head:        c.owner + ":" + branch,
		ListOptions: github.ListOptions{PerPage: 10},
	})
	if err != nil {
		return nil, wrapAPIError(err)
	}
	if len(prs) == 0 {
		return nil, nil
	}

	return prs[0], nil
}

// CreatePullRequest creates a new pull request
func (c *Client) CreatePullRequest(ctx context.Context, title, body, head, base string, draft bool) (*github.PullRequest, error) {
	pr, _, err := c.gh.PullRequests.Create(ctx, c.owner, c.repo, &github.NewPullRequest{
		Title: ptr(title),
		Body:  ptr(body),
		Head:  ptr(head),
		Base:  ptr(base),
		Draft: ptr(draft),
	})
	if err != nil {
		return nil, wrapAPIError(err)
	}

	return pr, nil
}

// UpdatePullRequestBody replaces the description of PR number.
func (c *Client) UpdatePullRequestBody(ctx context.Context, number int, body string) (*github.PullRequest, error) {
	pr, _, err := c.gh.PullRequests.Edit(ctx, c.owner, c.repo, number, &github.PullRequest{
		Body: ptr(body),
	})
	if err != nil {
		return nil, wrapAPIError(err)
	}

	return pr, nil
}

// GetDefaultBranch returns the repository's default branch
func (c *Client) GetDefaultBranch(ctx context.Context) (string, error) {
	return cache.GetOrLoad(c.cache, c.cacheKey("metadata", "default-branch"), cache.DefaultMetadataTTL, func() (string, error) {
		repo, _, err := c.gh.Repositories.Get(ctx, c.owner, c.repo)
		if err != nil {
			return "", wrapAPIError(err)
		}

		return repo.GetDefaultBranch(), nil
	})
}

// Owner returns the repository owner
func (c *Client) Owner() string {
	return c.owner
}

// Repo returns the repository name
func (c *Client) Repo() string {
	return c.repo
}
