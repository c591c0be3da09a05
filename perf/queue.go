// ════════════════════════════════════════════════════════════════════════════════════════════════
// Benchmark Queue Adapters
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Component: Uniform copy-in/copy-out view over the queues the harness measures
//
// Description:
//   The harness only needs non-blocking offer/poll of fixed-width records. RingQueue exposes
//   the offheap ring through its copying wrappers; SeqQueue is the on-heap ticketed ring;
//   ChannelQueue is the idiomatic Go baseline (buffered channel plus a free list so steady
//   state never allocates).
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package perf

import (
	"spscring/offheap"
	"spscring/seqring"
)

// Queue is a non-blocking bounded SPSC queue of fixed-width records.
type Queue interface {
	// Offer copies p in. False means full; retry later.
	Offer(p []byte) bool
	// Poll copies the oldest record into dst. False means empty.
	Poll(dst []byte) bool
	// Name labels the implementation in reports and stored results.
	Name() string
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// OFFHEAP RING
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// RingQueue adapts an offheap ring to Queue.
type RingQueue struct {
	*offheap.Ring
}

// Name implements Queue.
func (RingQueue) Name() string { return "offheap" }

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// TICKETED HEAP RING
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// SeqQueue adapts a seqring ring to Queue.
type SeqQueue struct {
	*seqring.Ring
}

// Offer implements Queue.
func (q SeqQueue) Offer(p []byte) bool { return q.Push(p) }

// Poll implements Queue.
func (q SeqQueue) Poll(dst []byte) bool { return q.Pop(dst) }

// Name implements Queue.
func (SeqQueue) Name() string { return "seqring" }

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CHANNEL BASELINE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// ChannelQueue is a buffered channel of preallocated record buffers.
type ChannelQueue struct {
	full chan []byte
	free chan []byte
}

// NewChannelQueue returns a channel queue holding up to capacity records of
// messageSize bytes.
func NewChannelQueue(capacity, messageSize int) *ChannelQueue {
	q := &ChannelQueue{
		full: make(chan []byte, capacity),
		free: make(chan []byte, capacity),
	}
	slab := make([]byte, capacity*messageSize)
	for i := 0; i < capacity; i++ {
		q.free <- slab[i*messageSize : (i+1)*messageSize : (i+1)*messageSize]
	}
	return q
}

// Offer implements Queue.
func (q *ChannelQueue) Offer(p []byte) bool {
	var b []byte
	select {
	case b = <-q.free:
	default:
		return false
	}
	n := copy(b, p)
	clear(b[n:])
	q.full <- b // never blocks: free and full share one budget
	return true
}

// Poll implements Queue.
func (q *ChannelQueue) Poll(dst []byte) bool {
	select {
	case b := <-q.full:
		copy(dst, b)
		q.free <- b
		return true
	default:
		return false
	}
}

// Len returns the number of queued records.
func (q *ChannelQueue) Len() int { return len(q.full) }

// Name implements Queue.
func (*ChannelQueue) Name() string { return "channel" }
