package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/linksweep/linksweep/pkg/linksweep/config"
	"github.com/linksweep/linksweep/pkg/linksweep/history"
	"github.com/linksweep/linksweep/pkg/linksweep/logging"
	"github.com/linksweep/linksweep/pkg/linksweep/report"
	"github.com/linksweep/linksweep/pkg/linksweep/run"
	"github.com/spf13/cobra"
)

// runSweep is the root command: detect orphans across all selected
// instances, optionally delete them, and translate the result into the
// documented exit codes.
func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagWorkers > 0 {
		cfg.Workers = flagWorkers
	}

	if err := initLogging(cfg); err != nil {
		return err
	}
	defer func() { _ = logging.Close() }()

	if flagExecute {
		if err := confirmExecution(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store *history.Store
	if cfg.History.Enabled {
		path := cfg.History.Path
		if path == "" {
			path = config.DefaultHistoryPath()
		}
		store, err = history.Open(path)
		if err != nil {
			// Journaling is best-effort: a broken history store must
			// not block the actual cleanup.
			logging.Get("cli").Warn("history store unavailable", "path", path, "error", err)
		} else {
			defer func() { _ = store.Close() }()
		}
	}

	runner := run.NewRunner(cfg, run.Options{
		DryRun:   !flagExecute,
		Instance: flagInstance,
		OnCycle: func(rep *report.RunReport) {
			printCycle(rep)
			if store != nil {
				if err := store.SaveRun(rep); err != nil {
					logging.Get("cli").Warn("failed to journal run", "error", err)
				}
			}
		},
	})

	exitCode = runner.Run(ctx)

	if store != nil {
		if pruned, err := store.Prune(cfg.History.RetentionDays); err != nil {
			logging.Get("cli").Warn("history prune failed", "error", err)
		} else if pruned > 0 {
			logging.Get("cli").Debug("pruned history records", "count", pruned)
		}
	}

	return nil
}

// initLogging wires the config's logging section plus the verbosity flags
// into the shared logging state.
func initLogging(cfg *config.Config) error {
	var maxSize int64
	if cfg.Logging.Rotation.MaxSize != "" {
		parsed, err := humanize.ParseBytes(cfg.Logging.Rotation.MaxSize)
		if err != nil {
			return fmt.Errorf("invalid logging.rotation.max_size %q: %w", cfg.Logging.Rotation.MaxSize, err)
		}
		maxSize = int64(parsed)
	}

	logCfg := logging.Config{
		Level: cfg.Logging.Level,
		Path:  cfg.Logging.Path,
		Rotation: logging.RotationConfig{
			MaxSize:    maxSize,
			MaxAge:     cfg.Logging.Rotation.MaxAge,
			MaxBackups: cfg.Logging.Rotation.MaxBackups,
			Daily:      cfg.Logging.Rotation.Daily,
		},
		Components:   cfg.Logging.Components,
		ConsoleLevel: "info",
	}
	if flagVerbose {
		logCfg.Level = "debug"
		logCfg.ConsoleLevel = "debug"
	}
	if flagQuiet {
		logCfg.ConsoleLevel = "error"
	}
	return logging.Init(logCfg)
}

// printCycle renders one cycle's result to stdout.
func printCycle(rep *report.RunReport) {
	mode := "execute"
	if rep.DryRun {
		mode = "dry-run"
	}
	printInfo("cycle %d (%s):", rep.Cycle, mode)
	for _, ir := range rep.Instances {
		printInfo("  %s", ir.Summary())
	}
}
