// setaffinity_stub.go - CPU affinity no-op for platforms without
// sched_setaffinity(2) (macOS, Windows, BSDs).

//go:build !linux

package pinned

// setAffinity is a no-op on unsupported platforms.
func setAffinity(cpu int) {}
