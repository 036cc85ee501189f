package symlink

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// mkLibrary builds a temp library with symlinks into a fake mount and
// returns (libraryDir, mountDir).
func mkLibrary(t *testing.T) (string, string) {
	t.Helper()

	library := t.TempDir()
	mount := t.TempDir()

	mustMkdir(t, filepath.Join(mount, "Movie.A"))
	mustWrite(t, filepath.Join(mount, "Movie.A", "a.mkv"))
	mustMkdir(t, filepath.Join(library, "movies"))

	return library, mount
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
}

func mustWrite(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func mustSymlink(t *testing.T, target, link string) {
	t.Helper()
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}
}

func TestScanCollectsMatchingTargets(t *testing.T) {
	library, mount := mkLibrary(t)

	inMount := filepath.Join(mount, "Movie.A", "a.mkv")
	mustSymlink(t, inMount, filepath.Join(library, "movies", "a.mkv"))

	// A link pointing elsewhere must not be retained.
	elsewhere := t.TempDir()
	mustWrite(t, filepath.Join(elsewhere, "other.mkv"))
	mustSymlink(t, filepath.Join(elsewhere, "other.mkv"), filepath.Join(library, "movies", "other.mkv"))

	res, err := New().Scan(context.Background(), []string{library}, mount)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.LinksSeen != 2 {
		t.Errorf("LinksSeen = %d, want 2", res.LinksSeen)
	}
	if len(res.Targets) != 1 {
		t.Fatalf("got %d targets, want 1: %v", len(res.Targets), res.Targets)
	}
	if _, ok := res.Targets[inMount]; !ok {
		t.Errorf("missing target %q", inMount)
	}
}

func TestScanBrokenLinkStillCounts(t *testing.T) {
	library, mount := mkLibrary(t)

	// Target never exists on disk, only as a stored link string.
	gone := filepath.Join(mount, "Deleted.Movie", "gone.mkv")
	mustSymlink(t, gone, filepath.Join(library, "movies", "gone.mkv"))

	res, err := New().Scan(context.Background(), []string{library}, mount)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := res.Targets[gone]; !ok {
		t.Errorf("broken link target %q should be retained", gone)
	}
}

func TestScanRelativeTargetResolved(t *testing.T) {
	library, mount := mkLibrary(t)

	link := filepath.Join(library, "movies", "rel.mkv")
	rel, err := filepath.Rel(filepath.Dir(link), filepath.Join(mount, "Movie.A", "a.mkv"))
	if err != nil {
		t.Fatal(err)
	}
	mustSymlink(t, rel, link)

	res, err := New().Scan(context.Background(), []string{library}, mount)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := filepath.Join(mount, "Movie.A", "a.mkv")
	if _, ok := res.Targets[want]; !ok {
		t.Errorf("relative link should resolve to %q, got %v", want, res.Targets)
	}
}

func TestScanDuplicateTargetsCollapse(t *testing.T) {
	library, mount := mkLibrary(t)

	target := filepath.Join(mount, "Movie.A", "a.mkv")
	mustSymlink(t, target, filepath.Join(library, "movies", "one.mkv"))
	mustSymlink(t, target, filepath.Join(library, "movies", "two.mkv"))

	res, err := New().Scan(context.Background(), []string{library}, mount)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.LinksSeen != 2 {
		t.Errorf("LinksSeen = %d, want 2", res.LinksSeen)
	}
	if len(res.Targets) != 1 {
		t.Errorf("duplicate targets should collapse to 1, got %d", len(res.Targets))
	}
}

func TestScanMissingRootIsWarning(t *testing.T) {
	library, mount := mkLibrary(t)

	missing := filepath.Join(library, "does-not-exist")
	res, err := New().Scan(context.Background(), []string{missing}, mount)
	if err != nil {
		t.Fatalf("missing root should not be fatal: %v", err)
	}
	if len(res.Errors) == 0 {
		t.Error("expected a warning for the missing root")
	}
}

func TestScanPrefixCollisionMount(t *testing.T) {
	library := t.TempDir()
	base := t.TempDir()

	mountA := filepath.Join(base, "debrid")
	mountA2 := filepath.Join(base, "debrid2")
	mustMkdir(t, filepath.Join(mountA2, "Movie"))
	mustWrite(t, filepath.Join(mountA2, "Movie", "m.mkv"))
	mustMkdir(t, mountA)
	mustMkdir(t, filepath.Join(library, "movies"))

	// Link points into debrid2; a scan scoped to debrid must not claim it.
	mustSymlink(t, filepath.Join(mountA2, "Movie", "m.mkv"), filepath.Join(library, "movies", "m.mkv"))

	res, err := New().Scan(context.Background(), []string{library}, mountA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Targets) != 0 {
		t.Errorf("target in sibling mount must not match, got %v", res.Targets)
	}
}

func TestScanCancellation(t *testing.T) {
	library, mount := mkLibrary(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Scan(ctx, []string{library}, mount)
	if err == nil {
		t.Error("expected error from cancelled context")
	}
}
