// ════════════════════════════════════════════════════════════════════════════════════════════════
// Adaptive Retry Policy for NotReady
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Component: Caller-side backoff for ring producers and consumers
//
// Description:
//   The ring never blocks; every NotReady is handed back to the caller. Spinner is the
//   policy most callers want: a short PAUSE-spin while the peer is likely mid-write, then
//   scheduler yields, then short sleeps once the peer is clearly idle.
//
// Phases:
//   - Spin:  Relax() per miss, up to SpinLimit misses
//   - Yield: runtime.Gosched() per miss, up to YieldLimit further misses
//   - Park:  time.Sleep(Sleep) per miss until Reset
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package backoff

import (
	"context"
	"runtime"
	"time"
)

const (
	// DefaultSpinLimit is the number of PAUSE-spins before yielding.
	DefaultSpinLimit = 256
	// DefaultYieldLimit is the number of Gosched calls before parking.
	DefaultYieldLimit = 64
	// DefaultSleep is the park interval once the peer looks idle.
	DefaultSleep = 50 * time.Microsecond
)

// Spinner tracks consecutive misses for one side of a ring. Not safe for
// concurrent use; give each goroutine its own.
type Spinner struct {
	SpinLimit  int
	YieldLimit int
	Sleep      time.Duration

	misses int
}

// NewSpinner returns a Spinner with the default phase limits.
func NewSpinner() *Spinner {
	return &Spinner{
		SpinLimit:  DefaultSpinLimit,
		YieldLimit: DefaultYieldLimit,
		Sleep:      DefaultSleep,
	}
}

// Idle records one miss and waits according to the current phase.
func (s *Spinner) Idle() {
	s.misses++
	switch {
	case s.misses <= s.SpinLimit:
		Relax()
	case s.misses <= s.SpinLimit+s.YieldLimit:
		runtime.Gosched()
	default:
		time.Sleep(s.Sleep)
	}
}

// Reset drops back to the spin phase after progress.
func (s *Spinner) Reset() { s.misses = 0 }

// Misses returns the number of consecutive misses since the last Reset.
func (s *Spinner) Misses() int { return s.misses }

// Until polls cond, idling between attempts, until it returns true or ctx is
// done. The spinner is reset on success.
func (s *Spinner) Until(ctx context.Context, cond func() bool) error {
	for !cond() {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Idle()
	}
	s.Reset()
	return nil
}
