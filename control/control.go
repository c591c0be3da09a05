// control.go: Global control flags and activity management for ring workers
// ============================================================================
// SYSTEM CONTROL ORCHESTRATION
// ============================================================================
//
// Lightweight process-wide signalling shared by pinned producers and
// consumers: a hot flag telling consumers to keep hot-spinning and a stop
// flag requesting graceful shutdown.
//
// Architecture overview:
//   • hot and stop live on separate cache lines (x/sys/cpu padding)
//   • Producers call SignalActivity on every burst
//   • One worker calls PollCooldown from its idle path to clear hot
//   • Shutdown flips stop; every worker exits on its next poll
//
// Threading model:
//   • All flag accesses are atomic; Flags hands out raw pointers so pinned
//     loops can poll without a call per iteration

package control

import (
	"sync/atomic"
	"time"

	"golang.org/x/sys/cpu"
)

// ============================================================================
// GLOBAL STATE MANAGEMENT
// ============================================================================

type flags struct {
	_    cpu.CacheLinePad
	hot  uint32 // 1 = producer active
	_    cpu.CacheLinePad
	stop uint32 // 1 = shutdown requested
	_    cpu.CacheLinePad
	last int64 // UnixNano of last SignalActivity
	_    cpu.CacheLinePad
}

var (
	state flags

	// cooldownNs is the idle period after which hot is cleared.
	cooldownNs = int64(1 * time.Second)
)

// ============================================================================
// ACTIVITY SIGNALING
// ============================================================================

// SignalActivity marks the system hot and stamps the activity time.
func SignalActivity() {
	atomic.StoreInt64(&state.last, time.Now().UnixNano())
	atomic.StoreUint32(&state.hot, 1)
}

// ForceHot sets the hot flag without touching the activity stamp.
func ForceHot() {
	atomic.StoreUint32(&state.hot, 1)
}

// ============================================================================
// COOLDOWN MANAGEMENT
// ============================================================================

// PollCooldown clears hot once no activity has been signalled for the
// cooldown period. Call it from one worker's idle path only.
func PollCooldown() {
	if atomic.LoadUint32(&state.hot) == 1 &&
		time.Now().UnixNano()-atomic.LoadInt64(&state.last) > cooldownNs {
		atomic.StoreUint32(&state.hot, 0)
	}
}

// SetCooldown changes the idle period used by PollCooldown.
func SetCooldown(d time.Duration) {
	cooldownNs = int64(d)
}

// ============================================================================
// SYSTEM SHUTDOWN
// ============================================================================

// Shutdown requests every worker polling the stop flag to exit.
func Shutdown() {
	atomic.StoreUint32(&state.stop, 1)
}

// Stopping reports whether Shutdown has been called.
func Stopping() bool {
	return atomic.LoadUint32(&state.stop) != 0
}

// Hot reports the current activity flag.
func Hot() bool {
	return atomic.LoadUint32(&state.hot) != 0
}

// Reset clears every flag. Intended for tests and for re-running a harness
// within one process.
func Reset() {
	atomic.StoreUint32(&state.hot, 0)
	atomic.StoreUint32(&state.stop, 0)
	atomic.StoreInt64(&state.last, 0)
}

// ============================================================================
// FLAG ACCESS
// ============================================================================

// Flags returns pointers to the global (stop, hot) flags for pinned workers.
// Access them with sync/atomic only.
func Flags() (*uint32, *uint32) {
	return &state.stop, &state.hot
}
