// Package mount enumerates the files present on an instance's debrid mount.
// The listing is supplied by a Lister, the external storage capability; the
// default implementation walks the locally-bridged mount point. A listing
// failure is fatal for that instance's cycle: it must never be mistaken for
// "no orphans".
package mount

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/charlievieth/fastwalk"
)

// ErrListing marks mount enumeration failures. The affected instance is
// skipped for the cycle; other instances are unaffected.
var ErrListing = errors.New("mount listing failed")

// Lister is the storage listing capability: it returns every file path under
// root, recursively, excluding directories.
type Lister interface {
	List(ctx context.Context, root string) ([]string, error)
}

// Scan lists all files under mountRoot through the given lister and returns
// them as a set.
func Scan(ctx context.Context, lister Lister, mountRoot string) (map[string]struct{}, error) {
	paths, err := lister.List(ctx, mountRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrListing, mountRoot, err)
	}

	files := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		files[p] = struct{}{}
	}
	return files, nil
}

// FSLister lists files by walking the mount point on the local filesystem,
// as exposed by an rclone/WebDAV bridge.
type FSLister struct{}

// List walks root. Before walking, the mount is probed: a path that does not
// exist, is not a directory, or fails the filesystem probe is a listing
// error, because a dead bridge often presents as an empty directory and an
// empty listing would flag every symlink target as orphaned elsewhere in the
// pipeline.
func (FSLister) List(ctx context.Context, root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("mount inaccessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("mount point %q is not a directory", root)
	}
	if err := probeMount(root); err != nil {
		return nil, fmt.Errorf("mount probe failed: %w", err)
	}

	var (
		files []string
		mu    sync.Mutex
	)

	conf := fastwalk.Config{
		Follow: false,
	}

	err = fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return context.Canceled
		default:
		}

		if err != nil {
			// Unlike library scanning, an unreadable subtree on the
			// mount means the listing is incomplete, which would
			// surface its files as deleted. Fatal.
			return err
		}

		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		mu.Lock()
		files = append(files, path)
		mu.Unlock()
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, err
	}

	return files, nil
}
