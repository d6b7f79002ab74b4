//go:build linux || darwin || freebsd

package migration

import (
	"golang.org/x/sys/unix"
)

func availableBytes(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil
}

func isWritable(path string) bool {
	return unix.Access(path, unix.W_OK) == nil
}
