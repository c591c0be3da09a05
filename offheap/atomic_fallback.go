//go:build !amd64 || noasm || race

// atomic_fallback.go: Portable acquire/release helpers
//
// Used on weakly ordered targets (arm64, riscv64, ...), when the assembly
// stubs are disabled with the noasm tag, and under the race detector so that
// payload hand-off is visible to it as a proper happens-before edge.
// sync/atomic is sequentially consistent, a superset of the order we need.

package offheap

import "sync/atomic"

//go:nosplit
//go:inline
func loadAcquireUint64(p *uint64) uint64 {
	return atomic.LoadUint64(p)
}

//go:nosplit
//go:inline
func storeReleaseUint64(p *uint64, v uint64) {
	atomic.StoreUint64(p, v)
}

//go:nosplit
//go:inline
func loadAcquireUint32(p *uint32) uint32 {
	return atomic.LoadUint32(p)
}

//go:nosplit
//go:inline
func storeReleaseUint32(p *uint32, v uint32) {
	atomic.StoreUint32(p, v)
}
