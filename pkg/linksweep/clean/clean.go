// Package clean drives deletion of grouped orphans through the debrid API.
// Calls are rate-limited and retried per instance policy; a failure on one
// unit never aborts the rest, and dry-run mode never touches the network.
package clean

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/avast/retry-go"
	"golang.org/x/time/rate"

	"github.com/linksweep/linksweep/pkg/linksweep/alldebrid"
	"github.com/linksweep/linksweep/pkg/linksweep/group"
)

// Status is the terminal state of one unit's deletion.
type Status string

// Terminal states. An outcome is never mutated after creation.
const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Outcome records what happened to one deletion unit during a run.
type Outcome struct {
	Unit     string `json:"unit"`
	Status   Status `json:"status"`
	Reason   string `json:"reason,omitempty"`
	Files    int    `json:"files"`
	Attempts int    `json:"attempts,omitempty"`
}

// ErrNotFound is returned by a Deleter when the unit has no matching magnet
// upstream. The unit is recorded as skipped, not failed: there is nothing
// left to delete.
var ErrNotFound = errors.New("unit not found upstream")

// Deleter is the external deletion capability, operating on whole units.
type Deleter interface {
	DeleteUnit(ctx context.Context, unit string) error
}

// Options is the per-instance deletion policy.
type Options struct {
	// RateLimit is the minimum seconds between deletion calls.
	RateLimit float64

	// RetryAttempts is the number of retries after a transient failure.
	RetryAttempts int

	// RetryBackoff is the geometric factor: retry n waits backoff^n units.
	RetryBackoff float64

	// delayUnit scales the backoff wait. Tests shrink it; production code
	// leaves it at the default of one second.
	delayUnit time.Duration
}

// Coordinator executes grouped deletions for one instance. Each instance
// gets its own coordinator: rate budgets and retry state are never shared.
type Coordinator struct {
	deleter Deleter
	opts    Options
	limiter *rate.Limiter
}

// New creates a Coordinator for one instance.
func New(deleter Deleter, opts Options) *Coordinator {
	if opts.RetryBackoff < 1.0 {
		opts.RetryBackoff = 1.0
	}
	if opts.delayUnit <= 0 {
		opts.delayUnit = time.Second
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Every(time.Duration(opts.RateLimit * float64(time.Second)))
	}

	return &Coordinator{
		deleter: deleter,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Execute deletes every complete group, in sorted unit order, and returns
// one outcome per group. mountFiles is the full mount listing, used to
// refuse partially-linked units. With dryRun set, no external call is made
// and every outcome is skipped.
//
// Cancellation lets the in-flight call finish; units not yet attempted are
// recorded failed("cancelled") so no unit leaves the run without an outcome.
func (c *Coordinator) Execute(ctx context.Context, grouping group.Grouping, mountFiles map[string]struct{}, dryRun bool) []Outcome {
	units := grouping.Units()
	outcomes := make([]Outcome, 0, len(units))

	cancelled := false
	for _, unit := range units {
		files := len(grouping.Groups[unit])

		switch {
		case dryRun:
			outcomes = append(outcomes, Outcome{
				Unit: unit, Status: StatusSkipped, Reason: "dry-run", Files: files,
			})
			continue
		case cancelled:
			outcomes = append(outcomes, Outcome{
				Unit: unit, Status: StatusFailed, Reason: "cancelled", Files: files,
			})
			continue
		case !grouping.Complete(unit, mountFiles):
			outcomes = append(outcomes, Outcome{
				Unit: unit, Status: StatusSkipped, Reason: "partially linked", Files: files,
			})
			continue
		}

		outcome := c.deleteUnit(ctx, unit, files)
		if outcome.Reason == "cancelled" {
			cancelled = true
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

// deleteUnit performs one rate-limited, retried deletion call.
func (c *Coordinator) deleteUnit(ctx context.Context, unit string, files int) Outcome {
	if err := c.limiter.Wait(ctx); err != nil {
		return Outcome{Unit: unit, Status: StatusFailed, Reason: "cancelled", Files: files}
	}

	attempts := 0
	err := retry.Do(
		func() error {
			attempts++
			return c.deleter.DeleteUnit(ctx, unit)
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.opts.RetryAttempts+1)),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return alldebrid.IsTransient(err) && !errors.Is(err, ErrNotFound)
		}),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			// Retry n (0-based) waits backoff^(n+1) units, matching the
			// policy of 2^1, 2^2, ... seconds for backoff 2.0.
			return time.Duration(math.Pow(c.opts.RetryBackoff, float64(n+1)) * float64(c.opts.delayUnit))
		}),
	)

	switch {
	case err == nil:
		return Outcome{Unit: unit, Status: StatusSuccess, Files: files, Attempts: attempts}
	case errors.Is(err, ErrNotFound):
		return Outcome{Unit: unit, Status: StatusSkipped, Reason: "not found upstream", Files: files, Attempts: attempts}
	case ctx.Err() != nil:
		return Outcome{Unit: unit, Status: StatusFailed, Reason: "cancelled", Files: files, Attempts: attempts}
	default:
		return Outcome{Unit: unit, Status: StatusFailed, Reason: err.Error(), Files: files, Attempts: attempts}
	}
}
