// ring_bench_test.go
//
// Benchmarks:
//   - WriteOnly   – producer cost, one read per wrap to keep room
//   - ReadOnly    – consumer cost over a pre-filled ring
//   - WriteRead   – round-trip inside one goroutine
//   - CrossCore   – producer goroutine, consumer measured
//   - OfferPoll   – copying wrappers, cross-core
//
// A 1 Ki slot ring keeps the working set cache-resident.

package offheap

import (
	"fmt"
	"runtime"
	"testing"
)

const benchCap = 1024

var sink uint64

func BenchmarkRing_WriteOnly(b *testing.B) {
	r := New(benchCap, 8)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		off := r.WriteAcquire()
		if off == NotReady {
			r.ReadRelease(r.ReadAcquire())
			off = r.WriteAcquire()
		}
		r.WriteRelease(off)
	}
}

func BenchmarkRing_ReadOnly(b *testing.B) {
	r := New(benchCap, 8)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		off := r.ReadAcquire()
		if off == NotReady {
			b.StopTimer()
			for r.Offer(nil) {
			}
			b.StartTimer()
			off = r.ReadAcquire()
		}
		sink += uint64(off)
		r.ReadRelease(off)
	}
}

func BenchmarkRing_WriteRead(b *testing.B) {
	for _, msg := range []int{8, 32, 128} {
		b.Run(fmt.Sprintf("msg_%d", msg), func(b *testing.B) {
			r := New(benchCap, msg)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				off := r.WriteAcquire()
				r.PutUint64(off, 0, uint64(i))
				r.WriteRelease(off)
				off = r.ReadAcquire()
				sink += r.Uint64(off, 0)
				r.ReadRelease(off)
			}
		})
	}
}

func BenchmarkRing_CrossCore(b *testing.B) {
	if runtime.GOMAXPROCS(0) < 2 {
		b.Skip("needs GOMAXPROCS >= 2")
	}
	r := New(benchCap, 8)
	n := b.N
	go func() {
		for i := 0; i < n; i++ {
			off := r.WriteAcquire()
			for off == NotReady {
				off = r.WriteAcquire()
			}
			r.PutUint64(off, 0, uint64(i))
			r.WriteRelease(off)
		}
	}()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < n; i++ {
		off := r.ReadAcquire()
		for off == NotReady {
			off = r.ReadAcquire()
		}
		sink += r.Uint64(off, 0)
		r.ReadRelease(off)
	}
}

func BenchmarkRing_OfferPoll(b *testing.B) {
	if runtime.GOMAXPROCS(0) < 2 {
		b.Skip("needs GOMAXPROCS >= 2")
	}
	r := New(benchCap, 32)
	n := b.N
	go func() {
		msg := make([]byte, 32)
		for i := 0; i < n; i++ {
			for !r.Offer(msg) {
			}
		}
	}()

	dst := make([]byte, 32)
	b.SetBytes(32)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < n; i++ {
		for !r.Poll(dst) {
		}
	}
}
