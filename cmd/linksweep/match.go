package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/linksweep/linksweep/pkg/linksweep/alldebrid"
	"github.com/linksweep/linksweep/pkg/linksweep/config"
	"github.com/linksweep/linksweep/pkg/linksweep/pathmatch"
	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match <path>",
	Short: "Show how a file maps to an upstream torrent",
	Long: `Resolve a library symlink (or mount path) to its torrent unit and look
up the matching magnet on the debrid account. Useful for debugging why a
particular file is or is not considered orphaned.`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving %s: %w", args[0], err)
	}

	// A library symlink is followed one level to its mount target; a path
	// already on the mount is used as-is.
	target := path
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		raw, err := os.Readlink(path)
		if err != nil {
			return fmt.Errorf("reading symlink %s: %w", path, err)
		}
		target = pathmatch.Normalize(raw, filepath.Dir(path))
		printInfo("symlink: %s", path)
		printInfo("target:  %s", target)
	} else {
		printInfo("path:    %s", target)
	}

	inst, err := instanceForPath(cfg, target)
	if err != nil {
		return err
	}
	printInfo("instance: %s (mount %s)", inst.Name, inst.MountPath)

	unit, ok := pathmatch.Unit(target, inst.MountPath)
	if !ok {
		return fmt.Errorf("%s is not under mount %s", target, inst.MountPath)
	}
	printInfo("unit:    %s", unit)

	client := alldebrid.New(inst.APIKey)
	magnets, err := client.Magnets(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing magnets: %w", err)
	}

	id, found := alldebrid.FindMagnetID(unit, magnets)
	if !found {
		printInfo("magnet:  no match among %d magnets", len(magnets))
		return nil
	}
	for _, m := range magnets {
		if m.ID == id {
			printInfo("magnet:  %d %s (status %s)", m.ID, m.Filename, m.Status)
			break
		}
	}
	return nil
}

// instanceForPath picks the enabled instance whose mount contains the path,
// honoring the --instance filter.
func instanceForPath(cfg *config.Config, path string) (config.Instance, error) {
	candidates := cfg.Enabled(flagInstance)
	if len(candidates) == 0 {
		return config.Instance{}, fmt.Errorf("no enabled instance matches %q", flagInstance)
	}
	for _, inst := range candidates {
		if pathmatch.Belongs(path, inst.MountPath) {
			return inst, nil
		}
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	return config.Instance{}, fmt.Errorf("%s is not under any instance mount; use --instance", path)
}
