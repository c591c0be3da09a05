// -----------------------------------------------------------------------------
// pinned_test.go: Unit-tests for the dedicated PinnedConsumer/PinnedProducer
// -----------------------------------------------------------------------------
//
//  Verifies: callback delivery, FIFO hand-off between two pinned workers,
//  graceful shutdown with and without traffic, and producer exhaustion.
// -----------------------------------------------------------------------------

package pinned

import (
	"encoding/binary"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"spscring/offheap"
)

// launch spins up a PinnedConsumer and returns its stop/hot flags and done channel.
func launch(r *offheap.Ring, fn func([]byte)) (stop, hot *uint32, done chan struct{}) {
	stop = new(uint32)
	hot = new(uint32)
	done = make(chan struct{})
	PinnedConsumer(-1, r, stop, hot, fn, done)
	return
}

func TestPinnedConsumerDeliversItem(t *testing.T) {
	runtime.GOMAXPROCS(max(2, runtime.GOMAXPROCS(0)))
	r := offheap.New(8, 4)
	var got atomic.Uint32

	stop, _, done := launch(r, func(p []byte) { got.Store(binary.LittleEndian.Uint32(p)) })

	if !r.Offer([]byte{7, 0, 0, 0}) {
		t.Fatal("offer failed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for got.Load() == 0 && time.Now().Before(deadline) {
		runtime.Gosched()
	}

	atomic.StoreUint32(stop, 1)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for consumer exit")
	}
	if got.Load() != 7 {
		t.Fatalf("handler saw %d, want 7", got.Load())
	}
	if !r.IsEmpty() {
		t.Fatal("consumer did not release the slot")
	}
}

func TestPinnedConsumerStopsNoWork(t *testing.T) {
	r := offheap.New(4, 4)
	stop, _, done := launch(r, func([]byte) {})
	atomic.StoreUint32(stop, 1)
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("consumer did not exit after stop")
	}
}

func TestPinnedProducerConsumerFIFO(t *testing.T) {
	const n = 100_000
	runtime.GOMAXPROCS(max(2, runtime.GOMAXPROCS(0)))
	r := offheap.New(256, 8)
	stop, hot := new(uint32), new(uint32)

	var next uint64
	prodDone := make(chan struct{})
	PinnedProducer(-1, r, stop, hot, func(p []byte) bool {
		if next == n {
			return false
		}
		next++
		binary.LittleEndian.PutUint64(p, next)
		return true
	}, prodDone)

	var received, bad atomic.Uint64
	consDone := make(chan struct{})
	var expect uint64
	PinnedConsumer(-1, r, stop, hot, func(p []byte) {
		expect++
		if binary.LittleEndian.Uint64(p) != expect {
			bad.Add(1)
		}
		received.Add(1)
	}, consDone)

	deadline := time.Now().Add(20 * time.Second)
	for received.Load() < n && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	<-prodDone
	if atomic.LoadUint32(hot) != 0 {
		t.Fatal("producer left hot set after exhausting its source")
	}
	atomic.StoreUint32(stop, 1)
	<-consDone

	if received.Load() != n {
		t.Fatalf("received %d, want %d", received.Load(), n)
	}
	if bad.Load() != 0 {
		t.Fatalf("%d records out of order", bad.Load())
	}
}

func TestPinnedProducerStopsWhenFull(t *testing.T) {
	r := offheap.New(4, 4)
	stop, hot := new(uint32), new(uint32)
	done := make(chan struct{})
	PinnedProducer(-1, r, stop, hot, func(p []byte) bool { return true }, done)

	deadline := time.Now().Add(2 * time.Second)
	for r.Size() < r.Capacity() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if r.Size() != r.Capacity() {
		t.Fatalf("Size = %d, want full ring", r.Size())
	}
	atomic.StoreUint32(stop, 1)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("producer did not exit on stop while ring full")
	}
}

func TestPinnedPairOnOneCPU(t *testing.T) {
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(1))

	const n = 20_000
	r := offheap.New(64, 8)
	stop, hot := new(uint32), new(uint32)

	var next uint64
	prodDone := make(chan struct{})
	var received atomic.Uint64
	consDone := make(chan struct{})

	start := time.Now()
	PinnedConsumer(-1, r, stop, hot, func([]byte) { received.Add(1) }, consDone)
	PinnedProducer(-1, r, stop, hot, func(p []byte) bool {
		if next == n {
			return false
		}
		next++
		binary.LittleEndian.PutUint64(p, next)
		return true
	}, prodDone)

	deadline := start.Add(10 * time.Second)
	for received.Load() < n && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	elapsed := time.Since(start)
	atomic.StoreUint32(stop, 1)
	<-prodDone
	<-consDone

	if received.Load() != n {
		t.Fatalf("received %d of %d on one P", received.Load(), n)
	}
	if elapsed > 5*time.Second {
		t.Fatalf("%d records took %v on one P", n, elapsed)
	}
}
