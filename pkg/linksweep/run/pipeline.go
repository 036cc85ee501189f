// Package run wires the per-instance pipeline (scan, detect, group, clean)
// and the cycle orchestration across instances.
package run

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/linksweep/linksweep/pkg/linksweep/clean"
	"github.com/linksweep/linksweep/pkg/linksweep/config"
	"github.com/linksweep/linksweep/pkg/linksweep/detect"
	"github.com/linksweep/linksweep/pkg/linksweep/group"
	"github.com/linksweep/linksweep/pkg/linksweep/logging"
	"github.com/linksweep/linksweep/pkg/linksweep/mount"
	"github.com/linksweep/linksweep/pkg/linksweep/report"
	"github.com/linksweep/linksweep/pkg/linksweep/symlink"
)

// Pipeline runs one instance's full cycle. Pipelines share nothing mutable:
// each owns its scanner, lister, deleter and report.
type Pipeline struct {
	cfg     *config.Config
	inst    config.Instance
	lister  mount.Lister
	deleter clean.Deleter
	dryRun  bool
	log     *logging.Logger
}

// NewPipeline builds a pipeline for one instance.
func NewPipeline(cfg *config.Config, inst config.Instance, lister mount.Lister, deleter clean.Deleter, dryRun bool) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		inst:    inst,
		lister:  lister,
		deleter: deleter,
		dryRun:  dryRun,
		log:     logging.Get("pipeline").With("instance", inst.Name),
	}
}

// Run executes scan, detect, group and clean for the instance and returns
// the accumulated report. Errors local to this instance are recorded in the
// report, never propagated: other instances must be unaffected.
func (p *Pipeline) Run(ctx context.Context) *report.InstanceReport {
	start := time.Now()
	rep := &report.InstanceReport{Instance: p.inst.Name}
	defer func() { rep.Elapsed = time.Since(start) }()

	scanDirs, err := p.cfg.ScanDirs()
	if err != nil {
		rep.Err = err.Error()
		return rep
	}

	// Both scans must complete before detection: the set difference needs
	// both full sets. They share nothing, so they run concurrently.
	var (
		linkResult *symlink.Result
		mountFiles map[string]struct{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var scanErr error
		linkResult, scanErr = symlink.New().Scan(gctx, scanDirs, p.inst.MountPath)
		return scanErr
	})
	g.Go(func() error {
		var listErr error
		mountFiles, listErr = mount.Scan(gctx, p.lister, p.inst.MountPath)
		return listErr
	})
	if err := g.Wait(); err != nil {
		p.log.Error("scan failed", "error", err)
		rep.Err = err.Error()
		return rep
	}

	rep.SymlinksFound = len(linkResult.Targets)
	rep.MountFiles = len(mountFiles)
	rep.ScanWarnings = len(linkResult.Errors)
	for _, warn := range linkResult.Errors {
		p.log.Warn("unreadable during symlink scan", "path", warn.Path, "error", warn.Error)
	}

	result := detect.Detect(mountFiles, linkResult.Targets)
	rep.Orphans = len(result.Orphans)

	dryRun := p.dryRun
	if result.Suspicious && !p.inst.AllowEmptyLibrary {
		// Zero symlinks against a non-empty mount means every mounted
		// file looks orphaned. Treat it as a scanning problem and
		// withhold deletion for this cycle.
		rep.Suspicious = true
		dryRun = true
		p.log.Warn("no symlinks found while mount is non-empty; withholding deletion",
			"mount_files", len(mountFiles))
	}

	grouping := group.Group(result.Orphans, p.inst.MountPath)
	rep.Groups = len(grouping.Groups)
	for _, skipped := range grouping.Skipped {
		p.log.Warn("orphan path outside grouping", "path", skipped)
	}

	if rep.Orphans == 0 {
		p.log.Info("no orphans detected",
			"symlinks", rep.SymlinksFound, "mount_files", rep.MountFiles)
		return rep
	}

	coordinator := clean.New(p.deleter, clean.Options{
		RateLimit:     p.inst.RateLimit,
		RetryAttempts: p.inst.RetryAttempts,
		RetryBackoff:  p.inst.RetryBackoff,
	})
	rep.Outcomes = coordinator.Execute(ctx, grouping, mountFiles, dryRun)

	succeeded, failed, skipped := rep.Counts()
	p.log.Info("cycle finished",
		"orphans", rep.Orphans, "groups", rep.Groups,
		"deleted", succeeded, "failed", failed, "skipped", skipped)

	return rep
}
