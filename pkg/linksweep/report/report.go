// Package report defines the result accumulators produced by a run. Reports
// are built per instance, aggregated per cycle, and consumed by the CLI
// summary and the history store. Nothing here is global or mutable after a
// run: each pipeline returns its own report.
package report

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/linksweep/linksweep/pkg/linksweep/clean"
)

// Exit codes mirror what cron jobs and wrapper scripts branch on.
const (
	ExitNoOrphans       = 0
	ExitError           = 1
	ExitOrphansDetected = 2
	ExitOrphansRemoved  = 3
)

// InstanceReport accumulates everything that happened for one instance in
// one cycle.
type InstanceReport struct {
	Instance string `json:"instance"`

	// Counts from the two scans and the detection.
	SymlinksFound int `json:"symlinks_found"`
	MountFiles    int `json:"mount_files"`
	Orphans       int `json:"orphans"`
	Groups        int `json:"groups"`

	// Suspicious is set when the symlink scan came back empty against a
	// non-empty mount and deletion was withheld.
	Suspicious bool `json:"suspicious,omitempty"`

	// Outcomes holds one entry per deletion group.
	Outcomes []clean.Outcome `json:"outcomes,omitempty"`

	// ScanWarnings counts non-fatal problems during the symlink walk.
	ScanWarnings int `json:"scan_warnings,omitempty"`

	// Err is set when the instance's cycle failed outright (mount
	// listing failure, cancelled scan). Other instances are unaffected.
	Err string `json:"error,omitempty"`

	Elapsed time.Duration `json:"elapsed"`
}

// Failed reports whether the instance's cycle aborted before deletion.
func (r *InstanceReport) Failed() bool {
	return r.Err != ""
}

// Counts tallies outcomes by status.
func (r *InstanceReport) Counts() (succeeded, failed, skipped int) {
	for _, o := range r.Outcomes {
		switch o.Status {
		case clean.StatusSuccess:
			succeeded++
		case clean.StatusFailed:
			failed++
		case clean.StatusSkipped:
			skipped++
		}
	}
	return succeeded, failed, skipped
}

// Summary renders a one-line digest for logs.
func (r *InstanceReport) Summary() string {
	if r.Failed() {
		return fmt.Sprintf("%s: failed: %s", r.Instance, r.Err)
	}
	succeeded, failed, skipped := r.Counts()
	return fmt.Sprintf("%s: %s symlinks, %s mount files, %s orphans in %d groups (deleted %d, failed %d, skipped %d) in %s",
		r.Instance,
		humanize.Comma(int64(r.SymlinksFound)),
		humanize.Comma(int64(r.MountFiles)),
		humanize.Comma(int64(r.Orphans)),
		r.Groups,
		succeeded, failed, skipped,
		r.Elapsed.Round(time.Millisecond))
}

// RunReport aggregates one cycle across instances.
type RunReport struct {
	Cycle     int               `json:"cycle"`
	Started   time.Time         `json:"started"`
	Finished  time.Time         `json:"finished"`
	DryRun    bool              `json:"dry_run"`
	Instances []*InstanceReport `json:"instances"`
}

// TotalOrphans sums detected orphans across instances.
func (r *RunReport) TotalOrphans() int {
	total := 0
	for _, ir := range r.Instances {
		total += ir.Orphans
	}
	return total
}

// HadError reports whether any instance failed its cycle.
func (r *RunReport) HadError() bool {
	for _, ir := range r.Instances {
		if ir.Failed() {
			return true
		}
	}
	return false
}

// Deleted counts successfully removed units across instances.
func (r *RunReport) Deleted() int {
	total := 0
	for _, ir := range r.Instances {
		succeeded, _, _ := ir.Counts()
		total += succeeded
	}
	return total
}

// ExitCode maps the run result onto the process exit contract:
// 0 no orphans, 1 technical error, 2 orphans detected but not removed,
// 3 orphans removed.
func (r *RunReport) ExitCode() int {
	switch {
	case r.HadError():
		return ExitError
	case r.Deleted() > 0:
		return ExitOrphansRemoved
	case r.TotalOrphans() > 0:
		return ExitOrphansDetected
	default:
		return ExitNoOrphans
	}
}
