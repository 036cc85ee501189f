// Package pathmatch provides semantic path-containment tests used throughout
// linksweep. Containment is decided component-wise at separator boundaries,
// never by raw string prefix, so configured mount roots that are textual
// prefixes of one another (e.g. /mnt/alldebrid and /mnt/alldebrid2) can never
// claim each other's files.
//
// Comparison is byte-exact after filepath.Clean. Unicode normalization
// differences between filesystems (NFC vs NFD) are deliberately not
// reconciled here; mixing normalization forms between the library and a mount
// is a configuration hazard the operator must resolve.
package pathmatch

import (
	"path/filepath"
	"strings"
)

// Belongs reports whether candidate is root itself or a descendant of root.
// Both paths are cleaned before comparison.
func Belongs(candidate, root string) bool {
	c := filepath.Clean(candidate)
	r := filepath.Clean(root)

	if c == r {
		return true
	}
	if len(c) <= len(r) {
		return false
	}
	if c[:len(r)] != r {
		return false
	}
	// Boundary check: the next byte after the root prefix must be a
	// separator, otherwise /mnt/alldebrid2/x would match root /mnt/alldebrid.
	if r == string(filepath.Separator) {
		return true
	}
	return c[len(r)] == filepath.Separator
}

// Rel returns candidate's path relative to root, and whether candidate is a
// strict descendant of root. The root itself yields ok=false: a mount root
// has no relative remainder and is degenerate for grouping purposes.
func Rel(candidate, root string) (string, bool) {
	c := filepath.Clean(candidate)
	r := filepath.Clean(root)

	if c == r || !Belongs(c, r) {
		return "", false
	}
	if r == string(filepath.Separator) {
		return c[1:], true
	}
	return c[len(r)+1:], true
}

// Unit returns the first path component of candidate relative to root: the
// torrent (deletion unit) a mounted file belongs to. ok is false when
// candidate is not a strict descendant of root.
func Unit(candidate, root string) (string, bool) {
	rel, ok := Rel(candidate, root)
	if !ok {
		return "", false
	}
	if i := strings.IndexByte(rel, filepath.Separator); i >= 0 {
		return rel[:i], true
	}
	return rel, true
}

// Normalize makes path absolute with respect to base (the directory a
// relative symlink target is interpreted from) and cleans it.
func Normalize(path, base string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	return filepath.Clean(path)
}
