package run

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/linksweep/linksweep/pkg/linksweep/alldebrid"
	"github.com/linksweep/linksweep/pkg/linksweep/clean"
	"github.com/linksweep/linksweep/pkg/linksweep/config"
	"github.com/linksweep/linksweep/pkg/linksweep/logging"
	"github.com/linksweep/linksweep/pkg/linksweep/mount"
	"github.com/linksweep/linksweep/pkg/linksweep/report"
)

// Options selects what a run does.
type Options struct {
	// DryRun detects and reports without any deletion call.
	DryRun bool

	// Instance restricts the run to one instance name (case-insensitive).
	Instance string

	// NewLister overrides the mount listing capability. Nil uses the
	// local filesystem bridge.
	NewLister func(inst config.Instance) mount.Lister

	// NewDeleter overrides the deletion capability. Nil uses the
	// AllDebrid client with the instance's credential.
	NewDeleter func(inst config.Instance) clean.Deleter

	// OnCycle, when set, observes each completed cycle's report
	// (the CLI uses it to journal runs and print summaries).
	OnCycle func(*report.RunReport)
}

// Runner executes detect/clean cycles across all selected instances.
type Runner struct {
	cfg  *config.Config
	opts Options
	log  *logging.Logger
}

// NewRunner creates a Runner.
func NewRunner(cfg *config.Config, opts Options) *Runner {
	if opts.NewLister == nil {
		opts.NewLister = func(config.Instance) mount.Lister { return mount.FSLister{} }
	}
	if opts.NewDeleter == nil {
		opts.NewDeleter = func(inst config.Instance) clean.Deleter {
			return clean.NewMagnetDeleter(alldebrid.New(inst.APIKey))
		}
	}
	return &Runner{
		cfg:  cfg,
		opts: opts,
		log:  logging.Get("runner"),
	}
}

// RunCycle processes every selected instance once. Instances run
// concurrently, bounded by the configured worker limit; each pipeline is
// isolated, so one instance's failure leaves the others untouched.
func (r *Runner) RunCycle(ctx context.Context, cycle int) *report.RunReport {
	instances := r.cfg.Enabled(r.opts.Instance)

	run := &report.RunReport{
		Cycle:     cycle,
		Started:   time.Now().UTC(),
		DryRun:    r.opts.DryRun,
		Instances: make([]*report.InstanceReport, len(instances)),
	}

	for _, pair := range r.cfg.OverlappingMounts() {
		r.log.Warn("mount roots overlap between instances", "a", pair[0], "b", pair[1])
	}

	workers := r.cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	g := new(errgroup.Group)
	g.SetLimit(workers)

	for i, inst := range instances {
		g.Go(func() error {
			// A fresh deleter per cycle: the magnet list must not go
			// stale across cycles.
			pipeline := NewPipeline(r.cfg, inst,
				r.opts.NewLister(inst), r.opts.NewDeleter(inst), r.opts.DryRun)
			run.Instances[i] = pipeline.Run(ctx)
			return nil
		})
	}
	_ = g.Wait()

	run.Finished = time.Now().UTC()
	return run
}

// Run executes the configured number of cycles, pausing cycle_interval
// minutes between them, and returns the last cycle's exit code. Context
// cancellation between cycles ends the run cleanly.
func (r *Runner) Run(ctx context.Context) int {
	if len(r.cfg.Enabled(r.opts.Instance)) == 0 {
		r.log.Error("no enabled instances selected", "filter", r.opts.Instance)
		return report.ExitError
	}

	exit := report.ExitNoOrphans
	for cycle := 1; ; cycle++ {
		r.log.Info("cycle starting", "cycle", cycle, "dry_run", r.opts.DryRun)

		run := r.RunCycle(ctx, cycle)
		exit = run.ExitCode()

		for _, ir := range run.Instances {
			r.log.Info(ir.Summary())
		}
		if r.opts.OnCycle != nil {
			r.opts.OnCycle(run)
		}

		if ctx.Err() != nil {
			return exit
		}
		if r.cfg.CycleCount > 0 && cycle >= r.cfg.CycleCount {
			return exit
		}

		wait := time.Duration(r.cfg.CycleInterval) * time.Minute
		r.log.Info("waiting before next cycle", "minutes", r.cfg.CycleInterval)
		select {
		case <-ctx.Done():
			return exit
		case <-time.After(wait):
		}
	}
}
