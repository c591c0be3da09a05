//go:build amd64 && !noasm && !race

// atomic_amd64.go
//
// Declarations for the acquire/release helpers implemented in
// atomic_amd64.s. On x86-64 (TSO) an aligned MOV already has acquire
// semantics for loads and release semantics for stores; the assembly call
// boundary keeps the Go compiler from reordering around it. No MFENCE.

package offheap

// loadAcquireUint64 returns *p with acquire ordering.
//
//go:noescape
//go:nosplit
func loadAcquireUint64(p *uint64) uint64

// storeReleaseUint64 performs *p = v with release ordering.
//
//go:noescape
//go:nosplit
func storeReleaseUint64(p *uint64, v uint64)

// loadAcquireUint32 returns *p with acquire ordering.
//
//go:noescape
//go:nosplit
func loadAcquireUint32(p *uint32) uint32

// storeReleaseUint32 performs *p = v with release ordering.
//
//go:noescape
//go:nosplit
func storeReleaseUint32(p *uint32, v uint32)
