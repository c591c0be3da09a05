// ════════════════════════════════════════════════════════════════════════════════════════════════
// Throughput Harness
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Component: Repeated producer → consumer transfer runs with ops/sec reporting
//
// Description:
//   Each run pushes Reps records from a producer goroutine to a consumer and measures the
//   wall time until the consumer has seen the last one. Runs repeat Runs times; the summary
//   averages only the last Tail runs; early runs pay for cold caches and page faults.
//
// Paths:
//   - Run:     any Queue through copying Offer/Poll, goroutines, Spinner backoff
//   - RunRing: offheap ring through acquire/release on pinned workers, zero copy
//
// Verification:
//   With Verify set every record carries its 1-based sequence number in the first eight
//   bytes. The consumer checks order and both sides fold every record into a SHA3 digest.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package perf

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"spscring/backoff"
	"spscring/digest"
	"spscring/offheap"
	"spscring/pinned"
	"spscring/utils"
)

// testValue fills unverified records.
const testValue = 777

var (
	ErrOutOfOrder     = errors.New("perf: record received out of order")
	ErrDigestMismatch = errors.New("perf: producer and consumer digests differ")
	ErrInvalidOptions = errors.New("perf: invalid options")
)

// Options controls one harness invocation.
type Options struct {
	Reps        int
	Runs        int
	Tail        int
	MessageSize int
	Verify      bool

	// Cores for RunRing; negative leaves scheduling to the OS.
	ProducerCore int
	ConsumerCore int

	// OnRun, when set, is called after every completed run.
	OnRun func(RunResult)
}

// RunResult is one measured run.
type RunResult struct {
	Index     int
	Elapsed   time.Duration
	OpsPerSec float64
	Digest    string
}

// Report is the outcome of all runs.
type Report struct {
	Queue   string
	Runs    []RunResult
	Summary float64 // mean ops/sec over the last Tail runs
}

// SummaryLine renders the report in the comma-separated summary format.
func (r Report) SummaryLine() string {
	return "summary,QueuePerfTest," + r.Queue + "," + utils.Itoa(int(r.Summary))
}

// Line renders one run for progress output.
func (r RunResult) Line(queue string) string {
	return utils.Itoa(r.Index) + " - ops/sec=" + utils.Itoa(int(r.OpsPerSec)) + " - " + queue
}

func (o Options) validate(messageSize int) error {
	switch {
	case o.Reps <= 0, o.Runs <= 0, o.Tail <= 0, o.Tail > o.Runs:
		return fmt.Errorf("%w: reps=%d runs=%d tail=%d", ErrInvalidOptions, o.Reps, o.Runs, o.Tail)
	case messageSize <= 0:
		return fmt.Errorf("%w: message size %d", ErrInvalidOptions, messageSize)
	case o.Verify && messageSize < 8:
		return fmt.Errorf("%w: verify needs 8-byte records", ErrInvalidOptions)
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// GENERIC QUEUE PATH
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Run measures q over opts.Runs runs, collecting garbage before each. It stops early with ctx's error when
// ctx is cancelled.
func Run(ctx context.Context, q Queue, opts Options) (Report, error) {
	if err := opts.validate(opts.MessageSize); err != nil {
		return Report{}, err
	}
	rep := Report{Queue: q.Name()}
	for i := 0; i < opts.Runs; i++ {
		runtime.GC()
		res, err := queueRun(ctx, q, opts)
		if err != nil {
			return rep, err
		}
		res.Index = i
		rep.Runs = append(rep.Runs, res)
		if opts.OnRun != nil {
			opts.OnRun(res)
		}
	}
	rep.Summary = summarise(rep.Runs, opts.Tail)
	return rep, nil
}

func queueRun(ctx context.Context, q Queue, opts Options) (RunResult, error) {
	var (
		stop     atomic.Bool
		sent     *digest.Stream
		received *digest.Stream
	)
	if opts.Verify {
		sent, received = digest.New(), digest.New()
	}

	start := time.Now()
	prodDone := make(chan struct{})
	go func() {
		defer close(prodDone)
		buf := make([]byte, opts.MessageSize)
		spin := backoff.NewSpinner()
		for i := 1; i <= opts.Reps; i++ {
			StampRecord(buf, uint64(i), opts.Verify)
			if sent != nil {
				sent.Add(buf)
			}
			for !q.Offer(buf) {
				if stop.Load() {
					return
				}
				spin.Idle()
			}
			spin.Reset()
		}
	}()

	err := drain(ctx, q, opts, received)
	if err != nil {
		stop.Store(true)
	}
	<-prodDone
	if err != nil {
		return RunResult{}, err
	}
	return finish(start, opts.Reps, sent, received)
}

func drain(ctx context.Context, q Queue, opts Options, received *digest.Stream) error {
	dst := make([]byte, opts.MessageSize)
	spin := backoff.NewSpinner()
	for next := uint64(1); next <= uint64(opts.Reps); {
		if !q.Poll(dst) {
			// Context checks stay on the idle path.
			if spin.Misses()&63 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			spin.Idle()
			continue
		}
		spin.Reset()
		if received != nil {
			if utils.Load64(dst) != next {
				return fmt.Errorf("%w: got %d, want %d", ErrOutOfOrder, utils.Load64(dst), next)
			}
			received.Add(dst)
		}
		next++
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// ZERO-COPY PINNED PATH
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// RunRing measures r with pinned workers writing and reading records in
// place. The ring must be empty and owned by this process in both roles.
func RunRing(ctx context.Context, r *offheap.Ring, opts Options) (Report, error) {
	if err := opts.validate(r.MessageSize()); err != nil {
		return Report{}, err
	}
	opts.MessageSize = r.MessageSize()
	rep := Report{Queue: RingQueue{r}.Name()}
	for i := 0; i < opts.Runs; i++ {
		runtime.GC()
		res, err := ringRun(ctx, r, opts)
		if err != nil {
			return rep, err
		}
		res.Index = i
		rep.Runs = append(rep.Runs, res)
		if opts.OnRun != nil {
			opts.OnRun(res)
		}
	}
	rep.Summary = summarise(rep.Runs, opts.Tail)
	return rep, nil
}

func ringRun(ctx context.Context, r *offheap.Ring, opts Options) (RunResult, error) {
	var (
		stop, hot uint32
		produced  uint64
		consumed  uint64
		bad       atomic.Value // first ordering error
		sent      *digest.Stream
		received  *digest.Stream
	)
	if opts.Verify {
		sent, received = digest.New(), digest.New()
	}
	reps := uint64(opts.Reps)

	start := time.Now()
	prodDone := make(chan struct{})
	consDone := make(chan struct{})

	pinned.PinnedConsumer(opts.ConsumerCore, r, &stop, &hot, func(p []byte) {
		consumed++
		if received != nil {
			if utils.Load64(p) != consumed && bad.Load() == nil {
				bad.Store(fmt.Errorf("%w: got %d, want %d", ErrOutOfOrder, utils.Load64(p), consumed))
			}
			received.Add(p)
		}
		if consumed == reps {
			atomic.StoreUint32(&stop, 1)
		}
	}, consDone)

	pinned.PinnedProducer(opts.ProducerCore, r, &stop, &hot, func(p []byte) bool {
		if produced == reps {
			return false
		}
		produced++
		StampRecord(p, produced, opts.Verify)
		if sent != nil {
			sent.Add(p)
		}
		return true
	}, prodDone)

	select {
	case <-consDone:
	case <-ctx.Done():
		atomic.StoreUint32(&stop, 1)
		<-consDone
	}
	<-prodDone

	if err := ctx.Err(); err != nil {
		return RunResult{}, err
	}
	if v := bad.Load(); v != nil {
		return RunResult{}, v.(error)
	}
	return finish(start, opts.Reps, sent, received)
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// HELPERS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// StampRecord fills p for sequence seq. Verified records carry seq in the
// first eight bytes followed by its low byte repeated; unverified records
// carry a fixed marker value.
func StampRecord(p []byte, seq uint64, verify bool) {
	if verify {
		utils.Store64(p, seq)
		for i := 8; i < len(p); i++ {
			p[i] = byte(seq)
		}
		return
	}
	p[0] = byte(testValue & 0xff)
	if len(p) > 1 {
		p[1] = byte(testValue >> 8)
	}
}

func finish(start time.Time, reps int, sent, received *digest.Stream) (RunResult, error) {
	elapsed := time.Since(start)
	res := RunResult{
		Elapsed:   elapsed,
		OpsPerSec: float64(reps) * float64(time.Second) / float64(max(elapsed, 1)),
	}
	if sent != nil {
		if sent.Sum() != received.Sum() {
			return res, ErrDigestMismatch
		}
		res.Digest = received.Hex()
	}
	return res, nil
}

// summarise averages the ops/sec of the last tail runs.
func summarise(runs []RunResult, tail int) float64 {
	if tail > len(runs) {
		tail = len(runs)
	}
	if tail == 0 {
		return 0
	}
	var sum float64
	for _, r := range runs[len(runs)-tail:] {
		sum += r.OpsPerSec
	}
	return sum / float64(tail)
}
