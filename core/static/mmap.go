//go:build unix

package static

import (
	"os"

	"golang.org/x/sys/unix"
)

// mapFile creates a read-only mapping of the file at path. Zero-length files
// return an empty slice with no mapping (mmap of length 0 is invalid).
func mapFile(path string, size int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if size == 0 {
		return []byte{}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// unmapFile releases a mapping created by mapFile.
func unmapFile(data []byte) {
	if len(data) > 0 {
		_ = unix.Munmap(data)
	}
}
