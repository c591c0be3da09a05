//go:build !unix

package segment

import "os"

func resize(f *os.File, size int) error { return ErrUnsupported }

func mapFile(f *os.File, size int) ([]byte, error) { return nil, ErrUnsupported }

func unmap(b []byte) error { return nil }
