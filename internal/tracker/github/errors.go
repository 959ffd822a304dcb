package github

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/google/go-github/v67/github"
)

// Error types for the GitHub tracker
var (
	ErrRepoNotDetected   = errors.New("could not detect repository from git remote")
	ErrRepoNotConfigured = errors.New("repository not configured")
	ErrIssueNotFound     = errors.New("issue not found")
	ErrRateLimited       = errors.New("github api rate limit exceeded")
	ErrNetworkError      = errors.New("network error communicating with github")
	ErrUnauthorized      = errors.New("github token unauthorized or expired")
	ErrInsufficientScope = errors.New("github token lacks required scope")
)

// wrapAPIError converts GitHub API errors to typed errors
func wrapAPIError(err error) error {
	if err == nil {
		return nil
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%w: resets at %s", ErrRateLimited, rateErr.Rate.Reset.Time.Format("15:04:05"))
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case 401:
			return fmt.Errorf("%w: %w", ErrUnauthorized, err)
		case 403:
			if strings.Contains(strings.ToLower(ghErr.Message), "rate limit") {
				return fmt.Errorf("%w: retry after %s", ErrRateLimited, ghErr.Response.Header.Get("X-RateLimit-Reset"))
			}

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
