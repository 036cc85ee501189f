package main

import (
	"fmt"

	"github.com/linksweep/linksweep/pkg/linksweep/config"
	"github.com/linksweep/linksweep/pkg/linksweep/history"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View run history",
	Long: `View summaries of past detect/clean runs.

Each cycle linksweep completes is journaled with its per-instance counts
and deletion outcomes.`,
	RunE: runHistory,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove history entries past the retention period",
	RunE:  runHistoryClean,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of runs to show")

	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// openHistory opens the configured history store.
func openHistory(cfg *config.Config) (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, fmt.Errorf("history is disabled in configuration")
	}
	path := cfg.History.Path
	if path == "" {
		path = config.DefaultHistoryPath()
	}
	return history.Open(path)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.Recent(historyLimit)
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}
	if len(records) == 0 {
		printInfo("No runs recorded.")
		return nil
	}

	for _, rec := range records {
		mode := "execute"
		if rec.Run.DryRun {
			mode = "dry-run"
		}
		printInfo("%s  cycle %d (%s)", rec.Stored.Local().Format("2006-01-02 15:04:05"), rec.Run.Cycle, mode)
		for _, ir := range rec.Run.Instances {
			printInfo("  %s", ir.Summary())
		}
	}
	return nil
}

func runHistoryClean(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	pruned, err := store.Prune(cfg.History.RetentionDays)
	if err != nil {
		return fmt.Errorf("pruning history: %w", err)
	}
	printInfo("Removed %d run(s) older than %d days.", pruned, cfg.History.RetentionDays)
	return nil
}
