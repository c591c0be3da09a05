// ============================================================================
// RING LAYOUT, ROLES & CONSTRUCTION OPTIONS
// ============================================================================
//
// Binary layout of one ring (offsets relative to the cache-line aligned base):
//
//	+0 lines            consumer index (8B), rest of line padded
//	+1 line             pad
//	+2 lines            producer index (8B)
//	+2 lines + 8        look-ahead cache (8B), rest of line padded
//	+3 lines            pad
//	+4 lines            slot array: capacity × slotSize
//
// Slot layout:
//
//	[0, messageSize)            caller payload
//	[alignUp(messageSize, 4))   alignment gap, 0–3 bytes
//	[slotSize-4, slotSize)      occupancy marker (uint32, 0 = empty)
//
// The header is identical for every view of a region, so a producer view and
// a consumer view in different processes agree on every address.

package offheap

import (
	"errors"
	"math"
	"math/bits"

	"spscring/constants"
	"spscring/utils"
)

// NotReady is returned by WriteAcquire when the ring is full and by
// ReadAcquire when it is empty. It can never be a slot offset because the
// slot array starts after the header.
const NotReady = 0

// MaxCapacity is the largest capacity whose power-of-two rounding still fits
// in an int.
const MaxCapacity = 1 << (bits.UintSize - 2)

// maxLayout bounds a ring layout so callers may add alignment slack and
// outer headers without overflowing.
const maxLayout = math.MaxInt >> 1

const (
	markerEmpty    uint32 = 0
	markerOccupied uint32 = 1
)

// ============================================================================
// ROLES
// ============================================================================

// Role is the capability set a view holds over a ring region.
type Role uint8

const (
	// Producer views may call WriteAcquire/WriteRelease.
	Producer Role = 1 << iota
	// Consumer views may call ReadAcquire/ReadRelease.
	Consumer
	// Init zeroes the state owned by the other roles in the mask, plus every
	// occupancy marker. Exactly one view of a region may carry it.
	Init

	roleMask = Producer | Consumer | Init
)

// Has reports whether every bit of x is set in r.
func (r Role) Has(x Role) bool { return r&x == x }

// String renders the mask as "producer|consumer|init".
func (r Role) String() string {
	if r == 0 {
		return "none"
	}
	s := ""
	add := func(name string) {
		if s != "" {
			s += "|"
		}
		s += name
	}
	if r.Has(Producer) {
		add("producer")
	}
	if r.Has(Consumer) {
		add("consumer")
	}
	if r.Has(Init) {
		add("init")
	}
	if r&^roleMask != 0 {
		add("unknown(" + utils.Itoa(int(r&^roleMask)) + ")")
	}
	return s
}

// ============================================================================
// ERRORS
// ============================================================================

var (
	ErrInvalidCapacity      = errors.New("offheap: capacity must be in [1, MaxCapacity]")
	ErrInvalidMessageSize   = errors.New("offheap: message size must be > 0")
	ErrInvalidRoles         = errors.New("offheap: role mask must own producer and/or consumer and carry no unknown bits")
	ErrInvalidLookAheadStep = errors.New("offheap: look-ahead step must be >= 0")
	ErrRegionTooSmall       = errors.New("offheap: region too small for ring layout")
)

// ============================================================================
// SIZING
// ============================================================================

// SlotSize returns the stride of one slot for the given payload width.
//
//go:nosplit
//go:inline
func SlotSize(messageSize int) int {
	return utils.AlignUp(messageSize, constants.MarkerSize) + constants.MarkerSize
}

// RequiredSize returns the number of bytes a ring occupies once aligned:
// the four-line header plus roundUpPow2(capacity) slots, or -1 when the
// layout does not fit in half the address space.
// Attach needs up to CacheLineSize-1 extra bytes when the region itself is
// not cache-line aligned.
func RequiredSize(capacity, messageSize int) int {
	if n, ok := layoutSize(capacity, messageSize); ok {
		return n
	}
	return -1
}

// layoutSize is RequiredSize with explicit overflow reporting.
func layoutSize(capacity, messageSize int) (int, bool) {
	if capacity <= 0 || capacity > MaxCapacity || messageSize <= 0 || messageSize > maxLayout {
		return 0, false
	}
	hi, lo := bits.Mul(uint(utils.RoundUpPow2(capacity)), uint(SlotSize(messageSize)))
	if hi != 0 || lo > maxLayout-constants.HeaderSize {
		return 0, false
	}
	return constants.HeaderSize + int(lo), true
}

// ============================================================================
// OPTIONS
// ============================================================================

type options struct {
	maxLookAhead int
	lookAhead    int
	exact        bool // lookAhead set explicitly
}

// Option tunes ring construction.
type Option func(*options)

// WithMaxLookAheadStep overrides the ceiling applied to capacity/4.
func WithMaxLookAheadStep(n int) Option {
	return func(o *options) { o.maxLookAhead = n }
}

// WithLookAheadStep requests an exact look-ahead step. It is still clamped to
// capacity/4 so the probe never laps the consumer.
func WithLookAheadStep(n int) Option {
	return func(o *options) { o.lookAhead, o.exact = n, true }
}

// resolveLookAhead returns the producer probe distance for a rounded capacity.
func resolveLookAhead(capacity int, opts []Option) (int, error) {
	o := options{maxLookAhead: constants.MaxLookAheadStep}
	for _, fn := range opts {
		fn(&o)
	}
	if o.maxLookAhead < 0 || (o.exact && o.lookAhead < 0) {
		return 0, ErrInvalidLookAheadStep
	}
	if o.exact {
		return min(o.lookAhead, capacity/4), nil
	}
	return min(capacity/4, o.maxLookAhead), nil
}
