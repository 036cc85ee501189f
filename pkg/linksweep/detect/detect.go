// Package detect computes the orphan set for one instance: mount files minus
// live symlink targets. It is a pure set difference with one safety guard.
package detect

import "sort"

// Result is the orphan set for one instance, with the guard flag.
type Result struct {
	// Orphans are mount files with no referencing symlink.
	Orphans map[string]struct{}

	// Suspicious is set when the symlink scan found nothing while the
	// mount is non-empty. In that state every mounted file looks
	// orphaned, which is far more likely a scanning problem (wrong
	// library root, unmounted library volume) than a genuinely empty
	// library. Callers must not proceed to deletion while this is set
	// unless the instance explicitly opts in.
	Suspicious bool
}

// Detect returns mountFiles − symlinkTargets. Deterministic for identical
// inputs regardless of how either set was produced.
func Detect(mountFiles, symlinkTargets map[string]struct{}) Result {
	orphans := make(map[string]struct{})
	for f := range mountFiles {
		if _, linked := symlinkTargets[f]; !linked {
			orphans[f] = struct{}{}
		}
	}

	return Result{
		Orphans:    orphans,
		Suspicious: len(symlinkTargets) == 0 && len(mountFiles) > 0,
	}
}

// Sorted returns the orphan paths in lexical order, for stable logs and
// reproducible reports.
func (r Result) Sorted() []string {
	out := make([]string, 0, len(r.Orphans))
	for p := range r.Orphans {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
