package recording

import (
	"os"

	"golang.org/x/sys/unix"
)

// fileSize returns the size of path in bytes, or 0 if it cannot be stat'd.
func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// usedPercent returns the percentage of disk space in use on the
// filesystem containing path, grounded in the teacher's StorageMonitor
// pattern of gating recording start on free space.
func usedPercent(path string) (int, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	if total == 0 {
		return 0, nil
	}
	used := total - free
	return int(used * 100 / total), nil
}
