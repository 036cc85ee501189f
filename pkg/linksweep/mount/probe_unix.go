//go:build unix

package mount

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// probeMount issues a statfs against the mount point. A bridge whose backing
// transport has died typically fails here (EIO, ESTALE, ENOTCONN) while
// still appearing as an empty directory to a plain stat.
func probeMount(root string) error {
	var st unix.Statfs_t
	if err := unix.Statfs(root, &st); err != nil {
		return fmt.Errorf("statfs %s: %w", root, err)
	}
	return nil
}
