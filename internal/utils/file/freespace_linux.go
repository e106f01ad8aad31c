//go:build linux

package file

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// FreeBytes returns the bytes available to unprivileged users on the filesystem holding path.
func FreeBytes(path string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("could not stat filesystem of %s: %w", path, err)
	}

	return int64(st.Bavail) * int64(st.Bsize), nil
}
