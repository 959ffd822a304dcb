package workflow

import (
	"context"
	"fmt"

	"github.com/valksor/go-adw/internal/agent"
)

// Retry ceilings.
const (
	MaxReviewRetryAttempts  = 3
	MaxTestRetryAttempts    = 4
	MaxE2ETestRetryAttempts = 2
)

// StopReason says why a RetryLoop ended.
type StopReason int

const (
	// StopPassed means the last check reported no blocking findings.
	StopPassed StopReason = iota
	// StopCeiling means the attempt limit was reached with blockers left.
	StopCeiling
	// StopNoProgress means an attempt resolved none of its blockers.
	StopNoProgress
	// StopSkipped means resolution was disabled and blockers were found.
	StopSkipped
)

func (r StopReason) String() string {
	switch r {
	case StopPassed:
		return "passed"
	case StopCeiling:
		return "attempt limit reached"
	case StopNoProgress:
		return "no progress"
	case StopSkipped:
		return "resolution skipped"
	default:
		return fmt.Sprintf("StopReason(%d)", int(r))
	}
}

// ResolutionOutcome is what one pass over the blocking findings achieved.
type ResolutionOutcome struct {
	Resolved int
	Failed   int
	Errors   []error
}

// RetryLoop alternates a check with resolution of the blocking findings
// the check reports. Check and Resolve may be backed by the agent, git and
// the tracker; the loop itself only decides when to stop.
type RetryLoop[F any] struct {
	MaxAttempts int
	// SkipResolution stops after the first check.
	SkipResolution bool
	// Check runs attempt number n (1-based) and returns the blocking
	// findings. An empty result means the check passed.
	Check func(ctx context.Context, attempt int) ([]F, error)
	// Resolve tries to fix one finding. A non-nil error marks it failed.
	Resolve func(ctx context.Context, attempt, index int, finding F) error
	// AfterResolve runs when an attempt resolved at least one finding and
	// another check follows, e.g. to commit the fixes.
	AfterResolve func(ctx context.Context, attempt int, outcome ResolutionOutcome) error
	// Fatal reports resolution errors that must abort the loop instead of
	// being counted. Defaults to agent.Fatal.
	Fatal func(error) bool
}

// RetryResult summarizes a finished loop.
type RetryResult[F any] struct {
	Attempts  int
	Remaining []F
	Reason    StopReason
	Outcomes  []ResolutionOutcome
}

// Passed reports whether the loop ended without blocking findings.
func (r *RetryResult[F]) Passed() bool {
	return r.Reason == StopPassed
}

// Run executes the loop. It returns an error only when Check, AfterResolve
// or a fatal resolution failure stops it; a loop that ends with blockers
// left is reported through the result.
func (l *RetryLoop[F]) Run(ctx context.Context) (*RetryResult[F], error) {
	maxAttempts := l.MaxAttempts
	if maxAttempts <= 0 || l.SkipResolution {
		maxAttempts = 1
	}
	fatal := l.Fatal
	if fatal == nil {
		fatal = agent.Fatal
	}

	res := &RetryResult[F]{}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.Attempts = attempt
		blockers, err := l.Check(ctx, attempt)
		if err != nil {
			return res, err
		}
		res.Remaining = blockers

		switch {
		case len(blockers) == 0:
			res.Reason = StopPassed

			return res, nil
		case l.SkipResolution:
			res.Reason = StopSkipped

			return res, nil
		case attempt == maxAttempts:
			res.Reason = StopCeiling

			return res, nil
		}

		outcome, err := resolveFindings(ctx, attempt, blockers, l.Resolve, fatal)
		res.Outcomes = append(res.Outcomes, outcome)
		if err != nil {
			return res, err
		}
		if outcome.Resolved == 0 {
			res.Reason = StopNoProgress

			return res, nil
		}

		if l.AfterResolve != nil {
			if err := l.AfterResolve(ctx, attempt, outcome); err != nil {
				return res, err
			}
		}
	}

	res.Reason = StopCeiling

	return res, nil
}

// resolveFindings tries every finding in order. One failure does not stop
// the others unless it is fatal.
func resolveFindings[F any](
	ctx context.Context,
	attempt int,
	findings []F,
	resolve func(ctx context.Context, attempt, index int, finding F) error,
	fatal func(error) bool,
) (ResolutionOutcome, error) {
	var out ResolutionOutcome
	for i, f := range findings {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		err := resolve(ctx, attempt, i, f)
		switch {
		case err == nil:
			out.Resolved++
		case fatal(err):
			out.Failed++
			out.Errors = append(out.Errors, err)

			return out, err
		default:
			out.Failed++
			out.Errors = append(out.Errors, err)
		}
	}

	return out, nil
}
