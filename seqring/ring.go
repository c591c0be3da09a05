// ring.go: Ticketed single-producer/single-consumer ring of fixed-width records (on-heap)
//
// Heap-resident counterpart of the offheap ring, kept as a measurement baseline.
//
// Assumptions:
//   - Single writer, single reader (SPSC).
//   - Every record is exactly width bytes; shorter input is zero-padded.
//   - Capacity is power-of-two and fixed at construction.
//
// Protocol:
//   - Slot i starts with ticket i.
//   - Producer at tail t owns the slot while its ticket == t, publishes t+1.
//   - Consumer at head h owns the slot while its ticket == h+1, frees it
//     with h+size so the producer finds it one lap later.
//
// Unlike the offheap ring there is no look-ahead: the producer checks one
// ticket per push.

package seqring

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"spscring/backoff"
)

type slot struct {
	seq uint64 // ticket for cursor sync
	val []byte // width bytes inside the shared slab
}

type Ring struct {
	_    cpu.CacheLinePad // consumer head isolation
	head uint64

	_    cpu.CacheLinePad // producer tail isolation
	tail uint64

	_ cpu.CacheLinePad

	mask  uint64
	step  uint64
	width int
	buf   []slot
}

// New constructs a ring of size slots holding width-byte records.
// Panics if size is not a positive power of two or width is not positive.
func New(size, width int) *Ring {
	if size <= 0 || size&(size-1) != 0 {
		panic("seqring: size must be >0 and power of two")
	}
	if width <= 0 {
		panic("seqring: width must be >0")
	}
	r := &Ring{
		mask:  uint64(size - 1),
		step:  uint64(size),
		width: width,
		buf:   make([]slot, size),
	}
	slab := make([]byte, size*width)
	for i := range r.buf {
		r.buf[i].seq = uint64(i)
		r.buf[i].val = slab[i*width : (i+1)*width : (i+1)*width]
	}
	return r
}

// Push copies val into the next slot. Returns false if the queue is full.
//
//go:nosplit
func (r *Ring) Push(val []byte) bool {
	t := r.tail
	s := &r.buf[t&r.mask]
	if atomic.LoadUint64(&s.seq) != t {
		return false
	}
	n := copy(s.val, val)
	clear(s.val[n:])
	atomic.StoreUint64(&s.seq, t+1)
	r.tail = t + 1
	return true
}

// Pop copies the oldest record into dst and frees its slot.
// Returns false if the queue is empty.
//
//go:nosplit
func (r *Ring) Pop(dst []byte) bool {
	h := r.head
	s := &r.buf[h&r.mask]
	if atomic.LoadUint64(&s.seq) != h+1 {
		return false
	}
	copy(dst, s.val)
	atomic.StoreUint64(&s.seq, h+r.step)
	r.head = h + 1
	return true
}

// PopWait waits until a record is available and copies it into dst.
// It spins briefly, then yields, then parks, so a producer sharing the
// same CPU still gets to run.
func (r *Ring) PopWait(dst []byte) {
	spin := backoff.NewSpinner()
	for !r.Pop(dst) {
		spin.Idle()
	}
}

// Len returns the capacity in slots.
func (r *Ring) Len() int { return len(r.buf) }

// Width returns the record width in bytes.
func (r *Ring) Width() int { return r.width }
