// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: constants.go: Ring geometry, harness defaults & segment format
//
// Purpose:
//   - Fixes the binary layout constants shared by every view of a ring.
//   - Provides defaults for the look-ahead ceiling and the throughput harness.
//   - Describes the on-disk segment header used for cross-process rings.
//
// Notes:
//   - CacheLineSize is part of the wire layout, not a hardware probe. Two
//     processes attaching the same segment must agree on it.
//   - Harness defaults mirror the classic 50M-message / 20-run measurement.
//
// ⚠️ No runtime logic here, all values must be compile-time resolvable
// ─────────────────────────────────────────────────────────────────────────────

package constants

// ───────────────────────────── Ring Layout ──────────────────────────────────

const (
	// CacheLineSize is the isolation unit of the ring header.
	// Each index lives on its own line with a full pad line behind it so the
	// adjacent-line prefetcher never drags producer and consumer state together.
	CacheLineSize = 64

	// HeaderLines is the number of cache lines reserved ahead of the slot array:
	// consumer index, pad, producer index + look-ahead cache, pad.
	HeaderLines = 4

	// HeaderSize is the byte offset of the first slot.
	HeaderSize = HeaderLines * CacheLineSize

	// ConsumerIndexOffset locates the consumer index inside the header.
	ConsumerIndexOffset = 0

	// ProducerIndexOffset locates the producer index inside the header.
	ProducerIndexOffset = 2 * CacheLineSize

	// LookAheadCacheOffset sits directly behind the producer index; both are
	// producer-written so sharing a line costs nothing.
	LookAheadCacheOffset = ProducerIndexOffset + 8

	// MarkerSize is the width of the per-slot occupancy marker.
	// A 32-bit word gets a real release store on every target.
	MarkerSize = 4
)

// ───────────────────────────── Look-Ahead ───────────────────────────────────

const (
	// MaxLookAheadStep caps how far ahead the producer probes for free slots.
	// Bounds the staleness of a "false full" and keeps the probe inside the
	// physical array for very large rings.
	MaxLookAheadStep = 4096
)

// ──────────────────────────── Harness Defaults ──────────────────────────────

const (
	// DefaultCapacity is the ring capacity used by the throughput harness (32 Ki).
	DefaultCapacity = 32 * 1024

	// DefaultMessageSize is the payload width of one benchmark record.
	// One 64-bit sequence word plus a 32-bit tag.
	DefaultMessageSize = 12

	// DefaultReps is the number of records pushed through the ring per run.
	DefaultReps = 50 * 1000 * 1000

	// DefaultRuns is the number of measured runs per invocation.
	DefaultRuns = 20

	// DefaultTail is how many trailing runs are averaged for the summary.
	// Earlier runs are treated as JIT/cache warm-up.
	DefaultTail = 10

	// DefaultResultsDB is the SQLite file receiving run history.
	DefaultResultsDB = "spscring_results.db"
)

// ──────────────────────────── Segment Format ────────────────────────────────

const (
	// SegmentMagic identifies a shared ring segment file.
	SegmentMagic = "SPSCRING"

	// SegmentVersion is bumped whenever the header or ring layout changes.
	SegmentVersion = uint32(1)

	// SegmentHeaderSize keeps the ring region cache-line aligned behind the
	// segment header (two full lines).
	SegmentHeaderSize = 2 * CacheLineSize

	// DefaultSegmentDir is preferred for segment files when it exists.
	DefaultSegmentDir = "/dev/shm"

	// DefaultSegmentName is the file name used by the produce/consume modes.
	DefaultSegmentName = "spscring.seg"
)
