package tracker

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ErrNoToken is returned when no token can be resolved.
var ErrNoToken = errors.New("no token found")

// TokenSources lists where a tracker token may come from, in priority order:
// EnvVars, then ConfigToken, then CLIFallback.
type TokenSources struct {
	EnvVars     []string
	ConfigToken string
	CLIFallback func() string
	// Lookup defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

// ResolveToken returns the first non-empty token.
func ResolveToken(src TokenSources) (string, error) {
	lookup := src.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	for _, k := range src.EnvVars {
		if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}

	if src.ConfigToken != "" {
		return src.ConfigToken, nil
	}

	if src.CLIFallback != nil {
		if v := src.CLIFallback(); v != "" {
			return v, nil
		}
	}

	return "", ErrNoToken
}

// CommandToken runs a CLI that prints a token, e.g. `gh auth token`.
// It returns "" on any failure.
func CommandToken(name string, args ...string) func() string {
	return func() string {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		out, err := exec.CommandContext(ctx, name, args...).Output()
		if err != nil {
			return ""
		}

		return strings.TrimSpace(string(out))
	}
}
