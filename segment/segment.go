// ============================================================================
// SHARED-MEMORY RING SEGMENTS
// ============================================================================
//
// A segment is a regular file (normally under /dev/shm) mapped MAP_SHARED by
// two processes. It carries a small header followed by one offheap ring:
//
//	+0    magic "SPSCRING" (8B)
//	+8    format version (u32)
//	+12   capacity (u32, already a power of two)
//	+16   message size (u32)
//	+20   look-ahead step (u32)
//	+24   ready flag (u32, release-stored by the creator after Init)
//	+28   closed flag (u32, set by the producer once it has finished)
//	+32   producer PID (u32)
//	+36   consumer PID (u32)
//	+128  ring region, offheap layout
//
// Handshake:
//   - Create zeroes the ring with the Init role, then publishes ready = 1.
//   - Open waits for ready before attaching and never initialises.
//   - The ring itself never learns about either step.

package segment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync/atomic"
	"unsafe"

	"spscring/backoff"
	"spscring/constants"
	"spscring/offheap"
	"spscring/utils"
)

// maxCapacity is the largest capacity whose rounded value fits the u32
// header word.
const maxCapacity = 1 << 31

// Header field offsets.
const (
	offMagic     = 0
	offVersion   = 8
	offCapacity  = 12
	offMsgSize   = 16
	offLookAhead = 20
	offReady     = 24
	offClosed    = 28
	offProducer  = 32
	offConsumer  = 36
)

var (
	ErrUnsupported = errors.New("segment: shared-memory segments are not supported on this platform")
	ErrBadMagic    = errors.New("segment: file is not a ring segment")
	ErrBadVersion  = errors.New("segment: unsupported segment version")
	ErrTruncated   = errors.New("segment: file smaller than its declared layout")
	ErrInitRole    = errors.New("segment: only Create may initialise a ring")
)

// Segment is one process's mapping of a segment file.
type Segment struct {
	path  string
	file  *os.File
	data  []byte
	ring  *offheap.Ring
	roles offheap.Role
}

// Create makes a new segment file at path, sizes it for the ring, zeroes
// the ring state and publishes it. The file must not exist. roles names the
// side(s) this process plays; Init is added implicitly.
func Create(path string, capacity, messageSize int, roles offheap.Role, opts ...offheap.Option) (*Segment, error) {
	roles &^= offheap.Init
	// Geometry is published as u32 header words.
	if capacity <= 0 || uint64(capacity) > maxCapacity {
		return nil, offheap.ErrInvalidCapacity
	}
	if messageSize <= 0 || uint64(messageSize) > math.MaxUint32 {
		return nil, offheap.ErrInvalidMessageSize
	}
	need := offheap.RequiredSize(capacity, messageSize)
	if need < 0 {
		return nil, offheap.ErrRegionTooSmall
	}
	size := constants.SegmentHeaderSize + need

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("segment: create %s: %w", path, err)
	}
	cleanup := func() {
		f.Close()
		os.Remove(path)
	}

	if err := resize(f, size); err != nil {
		cleanup()
		return nil, fmt.Errorf("segment: resize %s: %w", path, err)
	}
	data, err := mapFile(f, size)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("segment: map %s: %w", path, err)
	}

	r, err := offheap.Attach(data[constants.SegmentHeaderSize:], capacity, messageSize, roles|offheap.Init, opts...)
	if err != nil {
		unmap(data)
		cleanup()
		return nil, err
	}

	s := &Segment{path: path, file: f, data: data, ring: r, roles: roles}
	copy(data[offMagic:offMagic+8], constants.SegmentMagic)
	s.store(offVersion, constants.SegmentVersion)
	s.store(offCapacity, uint32(r.Capacity()))
	s.store(offMsgSize, uint32(r.MessageSize()))
	s.store(offLookAhead, uint32(r.LookAheadStep()))
	s.claimPIDs()

	// Everything above must be visible before a peer sees ready.
	s.store(offReady, 1)
	return s, nil
}

// Open attaches to a segment created by another process. It waits, bounded
// by ctx, for the file to appear and for the creator to publish ready.
// roles must not include Init.
func Open(ctx context.Context, path string, roles offheap.Role) (*Segment, error) {
	if roles.Has(offheap.Init) {
		return nil, ErrInitRole
	}

	var (
		f    *os.File
		data []byte
		err  error
	)
	spin := backoff.NewSpinner()
	wait := spin.Until(ctx, func() bool {
		if f == nil {
			if f, err = os.OpenFile(path, os.O_RDWR, 0); err != nil {
				f, err = nil, nil
				return false
			}
		}
		if data == nil {
			st, serr := f.Stat()
			if serr != nil {
				err = serr
				return true
			}
			if st.Size() < constants.SegmentHeaderSize {
				return false
			}
			if data, err = mapFile(f, int(st.Size())); err != nil {
				return true
			}
		}
		return atomic.LoadUint32(field(data, offReady)) == 1
	})
	if err == nil && wait != nil {
		err = fmt.Errorf("segment: waiting for %s: %w", path, wait)
	}
	if err != nil {
		if data != nil {
			unmap(data)
		}
		if f != nil {
			f.Close()
		}
		return nil, err
	}

	s := &Segment{path: path, file: f, data: data, roles: roles}
	if err := s.attach(); err != nil {
		unmap(data)
		f.Close()
		return nil, err
	}
	s.claimPIDs()
	return s, nil
}

// attach validates the published header and builds the ring view.
func (s *Segment) attach() error {
	if string(s.data[offMagic:offMagic+8]) != constants.SegmentMagic {
		return ErrBadMagic
	}
	if v := s.load(offVersion); v != constants.SegmentVersion {
		return fmt.Errorf("%w: %d", ErrBadVersion, v)
	}
	capacity := int(s.load(offCapacity))
	msgSize := int(s.load(offMsgSize))
	// A layout that overflows can never be backed by the file.
	need := offheap.RequiredSize(capacity, msgSize)
	if capacity <= 0 || msgSize <= 0 || need < 0 ||
		len(s.data)-constants.SegmentHeaderSize < need {
		return fmt.Errorf("%w: capacity %d, message size %d, %d bytes mapped",
			ErrTruncated, capacity, msgSize, len(s.data))
	}
	r, err := offheap.Attach(s.data[constants.SegmentHeaderSize:], capacity, msgSize, s.roles,
		offheap.WithLookAheadStep(int(s.load(offLookAhead))))
	if errors.Is(err, offheap.ErrRegionTooSmall) {
		return fmt.Errorf("%w: %w", ErrTruncated, err)
	}
	if err != nil {
		return err
	}
	s.ring = r
	return nil
}

// ============================================================================
// ACCESSORS
// ============================================================================

// Ring returns this process's view of the shared ring.
func (s *Segment) Ring() *offheap.Ring { return s.ring }

// Path returns the segment file path.
func (s *Segment) Path() string { return s.path }

// ProducerPID returns the PID recorded by the producer side, 0 if none.
func (s *Segment) ProducerPID() int { return int(s.load(offProducer)) }

// ConsumerPID returns the PID recorded by the consumer side, 0 if none.
func (s *Segment) ConsumerPID() int { return int(s.load(offConsumer)) }

// MarkClosed tells the peer that the producer has published its last record.
func (s *Segment) MarkClosed() { s.store(offClosed, 1) }

// Closed reports whether the producer has called MarkClosed.
func (s *Segment) Closed() bool { return s.load(offClosed) != 0 }

// Close clears this process's PID slots and releases the mapping. The
// file stays in place; call Unlink to remove it.
func (s *Segment) Close() error {
	if s.data == nil {
		return nil
	}
	pid := uint32(os.Getpid())
	if s.roles.Has(offheap.Producer) {
		atomic.CompareAndSwapUint32(field(s.data, offProducer), pid, 0)
	}
	if s.roles.Has(offheap.Consumer) {
		atomic.CompareAndSwapUint32(field(s.data, offConsumer), pid, 0)
	}
	s.ring = nil
	err := unmap(s.data)
	s.data = nil
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("segment: close %s: %w", s.path, err)
	}
	return nil
}

// Unlink removes the segment file. Existing mappings stay valid.
func (s *Segment) Unlink() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("segment: unlink %s: %w", s.path, err)
	}
	return nil
}

// DefaultPath returns the segment path for name, preferring /dev/shm when
// present and falling back to the temp directory.
func DefaultPath(name string) string {
	if st, err := os.Stat(constants.DefaultSegmentDir); err == nil && st.IsDir() {
		return constants.DefaultSegmentDir + "/" + name
	}
	return os.TempDir() + string(os.PathSeparator) + name
}

// ============================================================================
// HEADER HELPERS
// ============================================================================

func (s *Segment) claimPIDs() {
	pid := uint32(os.Getpid())
	if s.roles.Has(offheap.Producer) {
		s.store(offProducer, pid)
	}
	if s.roles.Has(offheap.Consumer) {
		s.store(offConsumer, pid)
	}
}

func (s *Segment) load(off int) uint32 { return atomic.LoadUint32(field(s.data, off)) }

func (s *Segment) store(off int, v uint32) { atomic.StoreUint32(field(s.data, off), v) }

// field returns the header word at off; the mapping is page aligned.
//
//go:nosplit
//go:inline
func field(data []byte, off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&data[off]))
}

// describe renders a one-line summary for logs.
func (s *Segment) describe() string {
	return s.path + " cap=" + utils.Itoa(int(s.load(offCapacity))) +
		" msg=" + utils.Itoa(int(s.load(offMsgSize))) +
		" step=" + utils.Itoa(int(s.load(offLookAhead)))
}

// String implements fmt.Stringer.
func (s *Segment) String() string {
	if s.data == nil {
		return s.path + " (closed)"
	}
	return s.describe()
}
