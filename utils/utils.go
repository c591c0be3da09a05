package utils

import (
	"os"
	"unsafe"
)

///////////////////////////////////////////////////////////////////////////////
// Geometry Helpers: Power-of-Two & Alignment
///////////////////////////////////////////////////////////////////////////////

// RoundUpPow2 returns the smallest power of two >= v.
// Values <= 1 round to 1.
//
//go:nosplit
//go:inline
func RoundUpPow2(v int) int {
	if v <= 1 {
		return 1
	}
	n := uint64(v - 1)
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return int(n + 1)
}

// AlignUp rounds v up to the next multiple of align, which must be a power of two.
//
//go:nosplit
//go:inline
func AlignUp(v, align int) int {
	return (v + align - 1) &^ (align - 1)
}

// AlignPad returns how many bytes must be skipped from p to reach the next
// align boundary.
//
//go:nosplit
//go:inline
func AlignPad(p unsafe.Pointer, align int) int {
	return int(-uintptr(p) & uintptr(align-1))
}

///////////////////////////////////////////////////////////////////////////////
// Fast Loaders: Little-Endian 64-Bit Payload Words
///////////////////////////////////////////////////////////////////////////////

// Load64 reads a little-endian 64-bit word from b.
//
//go:nosplit
//go:inline
func Load64(b []byte) uint64 {
	_ = b[7] // bounds check hint
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
}

// Store64 writes v into b as a little-endian 64-bit word.
//
//go:nosplit
//go:inline
func Store64(b []byte, v uint64) {
	_ = b[7] // bounds check hint
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 32)
	b[5] = byte(v >> 40)
	b[6] = byte(v >> 48)
	b[7] = byte(v >> 56)
}

///////////////////////////////////////////////////////////////////////////////
// Formatting & Output: Cold Path Only
///////////////////////////////////////////////////////////////////////////////

// Itoa converts a non-negative or negative int to decimal without fmt.
func Itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	u := uint64(n)
	if n < 0 {
		u = uint64(-n)
	}
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	if n < 0 {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// PrintWarning writes msg to stderr unbuffered. Errors are dropped.
func PrintWarning(msg string) {
	_, _ = os.Stderr.WriteString(msg)
}

// PrintInfo writes msg to stdout unbuffered. Errors are dropped.
func PrintInfo(msg string) {
	_, _ = os.Stdout.WriteString(msg)
}
