//go:build unix

package segment

import (
	"os"

	"golang.org/x/sys/unix"
)

func resize(f *os.File, size int) error {
	return unix.Ftruncate(int(f.Fd()), int64(size))
}

func mapFile(f *os.File, size int) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

func unmap(b []byte) error {
	return unix.Munmap(b)
}
