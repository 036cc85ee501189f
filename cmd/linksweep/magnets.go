package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/linksweep/linksweep/pkg/linksweep/alldebrid"
	"github.com/spf13/cobra"
)

var magnetsCmd = &cobra.Command{
	Use:   "magnets",
	Short: "List magnets on the debrid account",
	Long: `List every magnet known to an instance's debrid account, as the
deletion matcher sees them. With multiple instances configured, select one
with --instance.`,
	RunE: runMagnets,
}

func init() {
	rootCmd.AddCommand(magnetsCmd)
}

func runMagnets(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	instances := cfg.Enabled(flagInstance)
	if len(instances) == 0 {
		return fmt.Errorf("no enabled instance matches %q", flagInstance)
	}
	if len(instances) > 1 {
		return fmt.Errorf("multiple instances enabled; select one with --instance")
	}
	inst := instances[0]

	client := alldebrid.New(inst.APIKey)
	magnets, err := client.Magnets(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing magnets for %s: %w", inst.Name, err)
	}

	printInfo("%s: %d magnets", inst.Name, len(magnets))
	for _, m := range magnets {
		printInfo("  %-10d %-10s %8s  %s", m.ID, m.Status, humanize.Bytes(uint64(m.Size)), m.Filename)
	}
	return nil
}
