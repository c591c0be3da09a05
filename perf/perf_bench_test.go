package perf

import (
	"context"
	"testing"

	ring "github.com/randomizedcoder/go-lock-free-ring"

	"spscring/offheap"
	"spscring/seqring"
	"spscring/utils"
)

// ============================================================================
// SPSC: 1 producer → 1 consumer, 1024 slots, 8-byte records
// ============================================================================
//
// go-lock-free-ring is an MPSC sharded ring; one shard is its SPSC-like mode.

const benchCapacity = 1024

// benchTransfer pushes b.N records through offer while a goroutine drains
// with poll.
func benchTransfer(b *testing.B, offer func(i int) bool, poll func() bool) {
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				poll()
			}
		}
	}()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for !offer(i) {
		}
	}
	b.StopTimer()
	close(done)
}

func BenchmarkSPSC_Channel(b *testing.B) {
	q := NewChannelQueue(benchCapacity, 8)
	rec, dst := make([]byte, 8), make([]byte, 8)
	benchTransfer(b,
		func(i int) bool { utils.Store64(rec, uint64(i)); return q.Offer(rec) },
		func() bool { return q.Poll(dst) })
}

func BenchmarkSPSC_OffHeapCopy(b *testing.B) {
	q := RingQueue{offheap.New(benchCapacity, 8)}
	rec, dst := make([]byte, 8), make([]byte, 8)
	benchTransfer(b,
		func(i int) bool { utils.Store64(rec, uint64(i)); return q.Offer(rec) },
		func() bool { return q.Poll(dst) })
}

func BenchmarkSPSC_OffHeapInPlace(b *testing.B) {
	r := offheap.New(benchCapacity, 8)
	var sink uint64
	benchTransfer(b,
		func(i int) bool {
			off := r.WriteAcquire()
			if off == offheap.NotReady {
				return false
			}
			r.PutUint64(off, 0, uint64(i))
			r.WriteRelease(off)
			return true
		},
		func() bool {
			off := r.ReadAcquire()
			if off == offheap.NotReady {
				return false
			}
			sink += r.Uint64(off, 0)
			r.ReadRelease(off)
			return true
		})
}

func BenchmarkSPSC_SeqRing(b *testing.B) {
	q := SeqQueue{seqring.New(benchCapacity, 8)}
	rec, dst := make([]byte, 8), make([]byte, 8)
	benchTransfer(b,
		func(i int) bool { utils.Store64(rec, uint64(i)); return q.Offer(rec) },
		func() bool { return q.Poll(dst) })
}

func BenchmarkSPSC_LockFreeRing1(b *testing.B) {
	r, err := ring.NewShardedRing(benchCapacity, 1)
	if err != nil {
		b.Fatal(err)
	}
	benchTransfer(b,
		func(i int) bool { return r.Write(0, i) },
		func() bool { _, ok := r.TryRead(); return ok })
}

// ============================================================================
// Full harness runs
// ============================================================================

func benchHarness(b *testing.B, run func(Options) (Report, error)) {
	opts := Options{Reps: 100_000, Runs: 1, Tail: 1, MessageSize: 12, ProducerCore: -1, ConsumerCore: -1}
	b.ResetTimer()
	var ops float64
	for i := 0; i < b.N; i++ {
		rep, err := run(opts)
		if err != nil {
			b.Fatal(err)
		}
		ops += rep.Summary
	}
	b.ReportMetric(ops/float64(b.N), "records/s")
}

func BenchmarkHarness_Channel(b *testing.B) {
	q := NewChannelQueue(benchCapacity, 12)
	benchHarness(b, func(o Options) (Report, error) { return Run(context.Background(), q, o) })
}

func BenchmarkHarness_OffHeapPinned(b *testing.B) {
	r := offheap.New(benchCapacity, 12)
	benchHarness(b, func(o Options) (Report, error) { return RunRing(context.Background(), r, o) })
}
