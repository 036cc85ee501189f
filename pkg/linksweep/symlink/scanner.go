// Package symlink walks library directories and collects the targets of
// every symlink pointing into an instance's mount root. The target is read
// with a single readlink, not resolved through the whole chain: broken links
// still count by their stored target string, and skipping the extra stat per
// link keeps large library walks cheap.
package symlink

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"

	"github.com/linksweep/linksweep/pkg/linksweep/pathmatch"
)

// ScanError records a path that could not be read during the walk.
// Scan errors are warnings: the subtree is skipped and the scan continues.
type ScanError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Result holds the outcome of a symlink scan.
type Result struct {
	// Targets is the set of normalized link targets under the mount root.
	// Duplicates collapse: only target uniqueness matters downstream.
	Targets map[string]struct{}

	// LinksSeen counts every symlink encountered, matching or not.
	LinksSeen int64

	// Errors are non-fatal problems encountered during the walk.
	Errors []ScanError
}

// Scanner walks directory roots looking for symlinks into a mount.
type Scanner struct {
	linksSeen atomic.Int64

	targets   map[string]struct{}
	targetsMu sync.Mutex

	errors   []ScanError
	errorsMu sync.Mutex
}

// New creates a Scanner.
func New() *Scanner {
	return &Scanner{
		targets: make(map[string]struct{}),
	}
}

// Scan walks each root and returns the set of symlink targets that belong to
// mountRoot. Unreadable directories are recorded as warnings, never fatal.
// Cancellation stops the walk and returns ctx.Err().
func (s *Scanner) Scan(ctx context.Context, roots []string, mountRoot string) (*Result, error) {
	conf := fastwalk.Config{
		Follow: false,
	}

	for _, root := range roots {
		err := fastwalk.Walk(&conf, root, s.walkCallback(ctx, mountRoot))
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, ctx.Err()
			}
			// A missing or unreadable root is a warning like any other
			// unreadable subtree.
			s.addError(root, err)
		}
	}

	return &Result{
		Targets:   s.targets,
		LinksSeen: s.linksSeen.Load(),
		Errors:    s.errors,
	}, nil
}

func (s *Scanner) walkCallback(ctx context.Context, mountRoot string) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return context.Canceled
		default:
		}

		if err != nil {
			s.addError(path, err)
			return nil
		}

		if d.Type()&fs.ModeSymlink == 0 {
			return nil
		}

		s.linksSeen.Add(1)

		target, err := os.Readlink(path)
		if err != nil {
			s.addError(path, err)
			return nil
		}

		// Relative targets are interpreted from the link's directory.
		resolved := pathmatch.Normalize(target, filepath.Dir(path))

		if !pathmatch.Belongs(resolved, mountRoot) {
			return nil
		}

		s.targetsMu.Lock()
		s.targets[resolved] = struct{}{}
		s.targetsMu.Unlock()

		return nil
	}
}

func (s *Scanner) addError(path string, err error) {
	s.errorsMu.Lock()
	s.errors = append(s.errors, ScanError{
		Path:  path,
		Error: err.Error(),
	})
	s.errorsMu.Unlock()
}
