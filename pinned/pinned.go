// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ CORE-PINNED RING WORKERS
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Component: Dedicated-core producer and consumer loops for offheap rings
//
// Description:
//   Each worker locks its goroutine to an OS thread, pins that thread to a core and then
//   drives one side of a ring. The consumer adapts its polling to traffic: hot-spin while
//   records keep arriving or the producer holds the hot flag, relaxed spin once idle.
//   Either way it yields the P every spinBudget empty polls.
//
// hot flag contract:
//     Producer             Consumer
//     --------             ------------------------------
//     Store 1  ─────────▶  read (stay hot-spin)
//     ...write records…
//     Store 0  ◀─ consumer never writes
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package pinned

import (
	"runtime"
	"sync/atomic"
	"time"

	"spscring/backoff"
	"spscring/offheap"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CONFIGURATION CONSTANTS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

const (
	// hotWindow keeps the consumer hot-spinning after the last record.
	hotWindow = 5 * time.Second

	// spinBudget is the number of empty polls between scheduler yields, and
	// between PAUSE hints once cold.
	spinBudget = 224
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// PINNED CONSUMER
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// PinnedConsumer drains r on a goroutine bound to core until *stop is set.
//
// handler receives the payload window of each record; the slot is released
// as soon as handler returns, so handler must copy anything it keeps.
// done is closed when the goroutine exits. A negative core skips pinning.
func PinnedConsumer(
	core int,
	r *offheap.Ring,
	stop *uint32,
	hot *uint32,
	handler func([]byte),
	done chan<- struct{},
) {
	go func() {
		runtime.LockOSThread()
		setAffinity(core)
		defer func() {
			runtime.UnlockOSThread()
			close(done)
		}()

		var miss int
		lastHit := time.Now()

		for {
			if atomic.LoadUint32(stop) != 0 {
				return
			}

			if off := r.ReadAcquire(); off != offheap.NotReady {
				handler(r.Payload(off))
				r.ReadRelease(off)
				miss = 0
				lastHit = time.Now()
				continue
			}

			if miss++; miss < spinBudget {
				continue
			}
			miss = 0

			// Stay hot while the producer says so or traffic was recent.
			// The yield lets a producer sharing this P publish.
			if atomic.LoadUint32(hot) == 1 || time.Since(lastHit) <= hotWindow {
				runtime.Gosched()
				continue
			}
			backoff.Relax()
			runtime.Gosched()
		}
	}()
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// PINNED PRODUCER
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// PinnedProducer fills r on a goroutine bound to core.
//
// fill writes one record into the payload window it is given and returns
// false when the source is exhausted; that slot is then left unpublished.
// The producer holds *hot at 1 while running and clears it on exit. It also
// exits when *stop is set. done is closed on exit.
func PinnedProducer(
	core int,
	r *offheap.Ring,
	stop *uint32,
	hot *uint32,
	fill func([]byte) bool,
	done chan<- struct{},
) {
	go func() {
		runtime.LockOSThread()
		setAffinity(core)
		atomic.StoreUint32(hot, 1)
		defer func() {
			atomic.StoreUint32(hot, 0)
			runtime.UnlockOSThread()
			close(done)
		}()

		spin := backoff.NewSpinner()
		for {
			if atomic.LoadUint32(stop) != 0 {
				return
			}

			off := r.WriteAcquire()
			if off == offheap.NotReady {
				spin.Idle()
				continue
			}
			spin.Reset()

			if !fill(r.Payload(off)) {
				return
			}
			r.WriteRelease(off)
		}
	}()
}
