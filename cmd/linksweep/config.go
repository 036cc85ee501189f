package main

import (
	"fmt"
	"strings"

	"github.com/linksweep/linksweep/pkg/linksweep/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage linksweep configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/linksweep/config.yaml (if set)
  2. ~/.config/linksweep/config.yaml

Environment variables can override config file settings using the
LINKSWEEP_ prefix:
  LINKSWEEP_LIBRARY_ROOT=/library/medias
  LINKSWEEP_CYCLE_COUNT=0
  LINKSWEEP_WORKERS=4`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration from all sources.`,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long:  `Create a starter configuration file if one doesn't exist.`,
	RunE:  runConfigInit,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Printf("library_root:    %s\n", cfg.LibraryRoot)
	fmt.Printf("include_dirs:    %v\n", cfg.IncludeDirs)
	fmt.Printf("exclude_dirs:    %v\n", cfg.ExcludeDirs)
	fmt.Printf("cycle_count:     %d\n", cfg.CycleCount)
	fmt.Printf("cycle_interval:  %d minutes\n", cfg.CycleInterval)
	fmt.Printf("workers:         %d\n", cfg.Workers)
	fmt.Printf("logging.level:   %s\n", cfg.Logging.Level)
	fmt.Printf("history.enabled: %t\n", cfg.History.Enabled)
	fmt.Printf("history.retention: %d days\n", cfg.History.RetentionDays)

	fmt.Printf("\nInstances (%d):\n", len(cfg.Instances))
	fmt.Println("----------------------")
	for _, inst := range cfg.Instances {
		state := "disabled"
		if inst.Enabled {
			state = "enabled"
		}
		fmt.Printf("%s (%s)\n", inst.Name, state)
		fmt.Printf("  mount_path:     %s\n", inst.MountPath)
		fmt.Printf("  api_key:        %s\n", maskKey(inst.APIKey))
		fmt.Printf("  rate_limit:     %gs between calls\n", inst.RateLimit)
		fmt.Printf("  retry:          %d attempts, backoff %g\n", inst.RetryAttempts, inst.RetryBackoff)
	}
	return nil
}

// maskKey hides all but the tail of a credential.
func maskKey(key string) string {
	if key == "" {
		return "(unset)"
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := config.WriteDefault()
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	printInfo("Configuration file: %s", path)
	printInfo("Edit it to add your instances before running linksweep.")
	return nil
}
