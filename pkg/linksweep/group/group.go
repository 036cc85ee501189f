// Package group buckets orphan files by their owning torrent: the first path
// component under the instance's mount root. The debrid API deletes whole
// torrents, never individual files, so deletion always operates on these
// units.
package group

import (
	"sort"

	"github.com/linksweep/linksweep/pkg/linksweep/pathmatch"
)

// Grouping partitions an orphan set into per-torrent buckets.
type Grouping struct {
	// Groups maps unit identifier (torrent name) to the orphan files
	// under it. Every orphan path lands in exactly one group.
	Groups map[string]map[string]struct{}

	// Skipped holds degenerate inputs excluded from grouping: paths equal
	// to the mount root or not under it at all.
	Skipped []string

	mountRoot string
}

// Group partitions orphans by their unit under mountRoot. The identifier is
// derived purely from path structure; file contents are never inspected.
func Group(orphans map[string]struct{}, mountRoot string) Grouping {
	g := Grouping{
		Groups:    make(map[string]map[string]struct{}),
		mountRoot: mountRoot,
	}

	for path := range orphans {
		unit, ok := pathmatch.Unit(path, mountRoot)
		if !ok {
			g.Skipped = append(g.Skipped, path)
			continue
		}
		bucket, ok := g.Groups[unit]
		if !ok {
			bucket = make(map[string]struct{})
			g.Groups[unit] = bucket
		}
		bucket[path] = struct{}{}
	}

	sort.Strings(g.Skipped)
	return g
}

// Units returns the unit identifiers in sorted order, so deletion order and
// logs are stable within a run.
func (g Grouping) Units() []string {
	units := make([]string, 0, len(g.Groups))
	for u := range g.Groups {
		units = append(units, u)
	}
	sort.Strings(units)
	return units
}

// Complete reports whether every mount file under unit is in the orphan set,
// i.e. nothing in the unit is still linked. Deleting an incomplete unit
// would take live content down with it, so incomplete units are skipped.
func (g Grouping) Complete(unit string, mountFiles map[string]struct{}) bool {
	bucket, ok := g.Groups[unit]
	if !ok {
		return false
	}

	for f := range mountFiles {
		u, under := pathmatch.Unit(f, g.mountRoot)
		if !under || u != unit {
			continue
		}
		if _, orphaned := bucket[f]; !orphaned {
			return false
		}
	}
	return true
}
