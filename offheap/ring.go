// ============================================================================
// OFF-HEAP FIXED-SIZE SPSC RING BUFFER
// ============================================================================
//
// Lock-free single-producer/single-consumer ring of fixed-width records laid
// out directly in a raw byte region. The region is either a private Go
// allocation (New) or an externally owned block such as a memory-mapped file
// shared by two processes (Attach).
//
// Protocol:
//   - Producer: WriteAcquire → write payload at offset → WriteRelease
//   - Consumer: ReadAcquire → read payload at offset → ReadRelease
//   - A slot is owned by the consumer exactly while its marker is non-zero.
//
// Memory ordering:
//   - Own index and look-ahead cache: plain loads, the owner is the only writer
//   - Occupancy markers: acquire loads, release stores
//   - Index publication: release stores (read only by Size/IsEmpty)
//   - No CAS, no fences, no locks
//
// Full detection:
//   - The producer never reads the consumer index. It probes the marker
//     lookAheadStep slots ahead and, when that slot is free, knows every
//     slot up to it is free as well. The probe cost is amortised over
//     lookAheadStep writes.
//
// Safety model:
//   - ⚠️  Exactly one producer and one consumer. Not enforced.
//   - Offsets are only valid between the matching acquire and release.
//   - NotReady is a plain "try again"; retry policy belongs to the caller.

package offheap

import (
	"unsafe"

	"spscring/constants"
	"spscring/utils"
)

// ============================================================================
// CORE DATA STRUCTURES
// ============================================================================

// Ring is one view over a ring region. All fields are immutable after
// construction; the mutable state lives inside the region.
type Ring struct {
	buf  []byte         // aligned window over the region, len == RequiredSize
	base unsafe.Pointer // &buf[0], cache-line aligned

	consumerIndex  *uint64 // +0 lines, consumer-owned
	producerIndex  *uint64 // +2 lines, producer-owned
	lookAheadCache *uint64 // +2 lines + 8, producer-private

	mask          uint64 // capacity - 1
	slotSize      uint64 // payload + gap + marker
	markerOffset  uint64 // marker position inside a slot
	lookAheadStep uint64 // probe distance, <= capacity/4

	capacity    int
	messageSize int
	roles       Role
}

// ============================================================================
// CONSTRUCTORS
// ============================================================================

// New allocates a process-private ring that owns its region and plays every
// role. capacity is rounded up to a power of two.
//
// Panics on non-positive capacity or messageSize, or on invalid options:
// these are configuration bugs, not runtime conditions.
func New(capacity, messageSize int, opts ...Option) *Ring {
	if capacity <= 0 || capacity > MaxCapacity {
		panic(ErrInvalidCapacity)
	}
	if messageSize <= 0 {
		panic(ErrInvalidMessageSize)
	}
	size, ok := layoutSize(capacity, messageSize)
	if !ok {
		panic(ErrRegionTooSmall)
	}
	// One spare line lets Attach align the base regardless of where the
	// allocator put the backing array.
	region := make([]byte, size+constants.CacheLineSize)
	r, err := Attach(region, capacity, messageSize, Producer|Consumer|Init, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Attach builds a view over an externally supplied region.
//
// The view starts at the first cache-line boundary inside region. roles
// selects which side(s) this view plays; Init zeroes the state owned by the
// requested sides plus every occupancy marker and must be passed by exactly
// one view, before any other view touches the ring.
//
// The region must stay mapped at a fixed address for the lifetime of the view.
func Attach(region []byte, capacity, messageSize int, roles Role, opts ...Option) (*Ring, error) {
	switch {
	case capacity <= 0, capacity > MaxCapacity:
		return nil, ErrInvalidCapacity
	case messageSize <= 0:
		return nil, ErrInvalidMessageSize
	case roles&^roleMask != 0, roles&(Producer|Consumer) == 0:
		return nil, ErrInvalidRoles
	}

	capacity = utils.RoundUpPow2(capacity)
	step, err := resolveLookAhead(capacity, opts)
	if err != nil {
		return nil, err
	}

	// No region can hold a layout that overflows an int.
	size, ok := layoutSize(capacity, messageSize)
	if !ok || len(region) < size {
		return nil, ErrRegionTooSmall
	}
	pad := utils.AlignPad(unsafe.Pointer(&region[0]), constants.CacheLineSize)
	if len(region)-pad < size {
		return nil, ErrRegionTooSmall
	}
	buf := region[pad : pad+size : pad+size]
	base := unsafe.Pointer(&buf[0])

	slotSize := SlotSize(messageSize)
	r := &Ring{
		buf:            buf,
		base:           base,
		consumerIndex:  (*uint64)(unsafe.Add(base, constants.ConsumerIndexOffset)),
		producerIndex:  (*uint64)(unsafe.Add(base, constants.ProducerIndexOffset)),
		lookAheadCache: (*uint64)(unsafe.Add(base, constants.LookAheadCacheOffset)),
		mask:           uint64(capacity - 1),
		slotSize:       uint64(slotSize),
		markerOffset:   uint64(slotSize - constants.MarkerSize),
		lookAheadStep:  uint64(step),
		capacity:       capacity,
		messageSize:    messageSize,
		roles:          roles,
	}
	r.initialize()
	return r, nil
}

// initialize zeroes the state owned by the roles carrying Init.
// Plain stores: the region is not yet visible to the other side. Shared
// regions publish it through the segment ready flag, private rings through
// goroutine start.
func (r *Ring) initialize() {
	if r.roles.Has(Producer | Init) {
		*r.lookAheadCache = 0
		*r.producerIndex = 0
	}
	if r.roles.Has(Consumer | Init) {
		*r.consumerIndex = 0
	}
	if r.roles.Has(Init) {
		for i := 0; i < r.capacity; i++ {
			*r.marker(r.offsetForIndex(uint64(i))) = markerEmpty
		}
	}
}

// ============================================================================
// PRODUCER OPERATIONS
// ============================================================================

// WriteAcquire returns the offset of the next writable slot, or NotReady when
// the ring is full. The caller fills Payload(offset) and then calls
// WriteRelease(offset). Calling it twice without a release returns the same
// slot.
//
//go:nosplit
func (r *Ring) WriteAcquire() int {
	producerIndex := *r.producerIndex
	offset := r.offsetForIndex(producerIndex)

	// Fast path: already proven free by an earlier probe.
	if producerIndex < *r.lookAheadCache {
		return offset
	}

	// Probe lookAheadStep slots ahead. Free there means free up to there,
	// because the consumer releases in order.
	lookAhead := producerIndex + r.lookAheadStep
	if loadAcquireUint32(r.marker(r.offsetForIndex(lookAhead))) == markerEmpty {
		*r.lookAheadCache = lookAhead
		return offset
	}

	// The window ahead is busy; the current slot may still be free. Without
	// this check the ring would report full lookAheadStep slots early.
	if loadAcquireUint32(r.marker(offset)) != markerEmpty {
		return NotReady
	}
	return offset
}

// WriteRelease publishes the slot obtained from WriteAcquire.
//
//go:nosplit
func (r *Ring) WriteRelease(offset int) {
	producerIndex := *r.producerIndex
	storeReleaseUint32(r.marker(offset), markerOccupied)
	storeReleaseUint64(r.producerIndex, producerIndex+1)
}

// ============================================================================
// CONSUMER OPERATIONS
// ============================================================================

// ReadAcquire returns the offset of the next readable slot, or NotReady when
// the ring is empty. Only the slot marker is consulted.
//
//go:nosplit
func (r *Ring) ReadAcquire() int {
	offset := r.offsetForIndex(*r.consumerIndex)
	if loadAcquireUint32(r.marker(offset)) == markerEmpty {
		return NotReady
	}
	return offset
}

// ReadRelease frees the slot obtained from ReadAcquire.
//
//go:nosplit
func (r *Ring) ReadRelease(offset int) {
	consumerIndex := *r.consumerIndex
	storeReleaseUint32(r.marker(offset), markerEmpty)
	storeReleaseUint64(r.consumerIndex, consumerIndex+1)
}

// ============================================================================
// COPYING WRAPPERS
// ============================================================================

// Offer copies p into the next free slot and publishes it. p is truncated to
// MessageSize; a shorter p is zero-padded. Returns false when full.
func (r *Ring) Offer(p []byte) bool {
	offset := r.WriteAcquire()
	if offset == NotReady {
		return false
	}
	slot := r.Payload(offset)
	n := copy(slot, p)
	clear(slot[n:])
	r.WriteRelease(offset)
	return true
}

// Poll copies the oldest record into dst and frees its slot. Returns false
// when empty.
func (r *Ring) Poll(dst []byte) bool {
	offset := r.ReadAcquire()
	if offset == NotReady {
		return false
	}
	copy(dst, r.Payload(offset))
	r.ReadRelease(offset)
	return true
}

// ============================================================================
// PAYLOAD ACCESS
// ============================================================================

// Payload returns the payload window of the slot at offset.
func (r *Ring) Payload(offset int) []byte {
	return r.buf[offset : offset+r.messageSize : offset+r.messageSize]
}

// PutUint64 stores v little-endian as the word-th 64-bit word of the payload.
func (r *Ring) PutUint64(offset, word int, v uint64) {
	utils.Store64(r.Payload(offset)[word*8:], v)
}

// Uint64 loads the word-th little-endian 64-bit word of the payload.
func (r *Ring) Uint64(offset, word int) uint64 {
	return utils.Load64(r.Payload(offset)[word*8:])
}

// ============================================================================
// INTROSPECTION
// ============================================================================

// Size returns the number of published, unreleased records. Both indices
// are loaded independently, so the result is only a snapshot: the consumer
// may pass the producer index read first, which reports as 0.
func (r *Ring) Size() int {
	n := int64(loadAcquireUint64(r.producerIndex) - loadAcquireUint64(r.consumerIndex))
	return int(max(n, 0))
}

// IsEmpty reports whether both indices were equal at the time of the loads.
func (r *Ring) IsEmpty() bool {
	return loadAcquireUint64(r.producerIndex) == loadAcquireUint64(r.consumerIndex)
}

// Capacity returns the number of slots (a power of two).
func (r *Ring) Capacity() int { return r.capacity }

// MessageSize returns the payload width of a slot.
func (r *Ring) MessageSize() int { return r.messageSize }

// SlotSize returns the stride between consecutive slots.
func (r *Ring) SlotSize() int { return int(r.slotSize) }

// LookAheadStep returns the producer probe distance.
func (r *Ring) LookAheadStep() int { return int(r.lookAheadStep) }

// Roles returns the capability set of this view.
func (r *Ring) Roles() Role { return r.roles }

// Bytes returns the aligned ring window, header included.
func (r *Ring) Bytes() []byte { return r.buf }

// ============================================================================
// ADDRESS ARITHMETIC
// ============================================================================

//go:nosplit
//go:inline
func (r *Ring) offsetForIndex(index uint64) int {
	return constants.HeaderSize + int((index&r.mask)*r.slotSize)
}

//go:nosplit
//go:inline
func (r *Ring) marker(offset int) *uint32 {
	return (*uint32)(unsafe.Add(r.base, uint64(offset)+r.markerOffset))
}
