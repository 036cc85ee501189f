package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/linksweep/linksweep/pkg/linksweep/config"
	"github.com/linksweep/linksweep/pkg/linksweep/report"
	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	flagVerbose  bool
	flagQuiet    bool
	flagExecute  bool
	flagYes      bool
	flagInstance string
	flagWorkers  int

	// exitCode carries the run's exit code out of cobra, which only
	// distinguishes success from failure.
	exitCode = report.ExitNoOrphans

	rootCmd = &cobra.Command{
		Use:   "linksweep",
		Short: "Find and remove debrid torrents no longer referenced by your library",
		Long: `Linksweep compares the files present on a debrid mount against the
symlink targets in your media library. Mount files that no symlink points at
are orphans: their torrents waste debrid storage and can be removed upstream.

Runs are dry-run by default. Pass --execute to delete, and --yes to skip the
confirmation prompt.

Exit codes:
  0  no orphans found
  1  error
  2  orphans detected (dry-run)
  3  orphans removed

Examples:
  linksweep                          # Dry-run over all enabled instances
  linksweep --execute --yes          # Delete orphaned torrents
  linksweep -I alldebrid_main        # Single instance only
  linksweep match /library/medias/shows/S01E01.mkv
  linksweep history                  # Recent run summaries`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runSweep,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/linksweep/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug output")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().StringVarP(&flagInstance, "instance", "I", "", "restrict to one configured instance")

	rootCmd.Flags().BoolVar(&flagExecute, "execute", false, "actually delete orphaned torrents (default: dry-run)")
	rootCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.Flags().IntVarP(&flagWorkers, "workers", "w", 0, "override concurrent instance limit (0=config)")
}

// loadConfig loads configuration, honoring the --config flag.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFile(cfgFile)
	}
	return config.Load()
}

// confirmExecution asks before destructive work. Non-interactive callers
// must pass --yes explicitly; a cron job should never be one orphan scan
// away from silent deletion.
func confirmExecution() error {
	if flagYes {
		return nil
	}

	info, err := os.Stdin.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice == 0 {
		return fmt.Errorf("--execute requires --yes when stdin is not a terminal")
	}

	fmt.Print("This will permanently delete orphaned torrents upstream. Continue? [y/N] ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	default:
		return fmt.Errorf("aborted")
	}
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		return report.ExitError
	}
	return exitCode
}

// printInfo prints a message unless quiet mode is enabled.
func printInfo(format string, args ...interface{}) {
	if !flagQuiet {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
