// ════════════════════════════════════════════════════════════════════════════════════════════════
// Off-Heap SPSC Ring - Main Entry Point
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Component: Throughput harness and two-process transfer driver
//
// Description:
//   inproc   producer and consumer in one process, repeated timed runs, history in SQLite
//   produce  creates a shared segment, initialises the ring and streams Reps records
//   consume  attaches to the producer's segment and drains it until the producer closes
//
// Architecture:
//   - Phase 1: configuration (defaults, JSON file, flags)
//   - Phase 2: heap cleanup before anything is timed
//   - Phase 3: pinned transfer with coordinated shutdown on SIGINT/SIGTERM
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	rtdebug "runtime/debug"
	"syscall"
	"time"

	"spscring/config"
	"spscring/constants"
	"spscring/control"
	"spscring/debug"
	"spscring/digest"
	"spscring/offheap"
	"spscring/perf"
	"spscring/pinned"
	"spscring/results"
	"spscring/segment"
	"spscring/seqring"
	"spscring/utils"
)

// errIncomplete reports a transfer that ended before Reps records.
var errIncomplete = errors.New("transfer ended early")

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// MAIN ORCHESTRATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func main() {
	// PHASE 1: configuration
	cfg, err := loadConfig(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		debug.DropError("CONFIG", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	// PHASE 2: start from a compact heap
	runtime.GC()
	rtdebug.FreeOSMemory()

	// PHASE 3: transfer
	switch cfg.Mode {
	case config.ModeInProc:
		err = runInProc(ctx, cfg)
	case config.ModeProduce:
		err = runProducer(ctx, cfg)
	case config.ModeConsume:
		err = runConsumer(ctx, cfg)
	}
	if err != nil {
		debug.DropError(cfg.Mode, err)
		os.Exit(1)
	}
}

// lookAheadOptions maps the configured step onto ring options.
func lookAheadOptions(cfg config.Config) []offheap.Option {
	if cfg.LookAheadStep == config.AutoLookAhead {
		return nil
	}
	return []offheap.Option{offheap.WithLookAheadStep(cfg.LookAheadStep)}
}

func segmentPath(cfg config.Config) string {
	if cfg.SegmentPath != "" {
		return cfg.SegmentPath
	}
	return segment.DefaultPath(constants.DefaultSegmentName)
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// IN-PROCESS HARNESS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func runInProc(ctx context.Context, cfg config.Config) error {
	opts := perf.Options{
		Reps:         cfg.Reps,
		Runs:         cfg.Runs,
		Tail:         cfg.Tail,
		MessageSize:  cfg.MessageSize,
		Verify:       cfg.Verify,
		ProducerCore: cfg.ProducerCore,
		ConsumerCore: cfg.ConsumerCore,
	}

	var (
		rep      perf.Report
		err      error
		capacity = cfg.Capacity
		step     = cfg.LookAheadStep
	)
	switch cfg.Queue {
	case config.QueueOffHeap:
		r := offheap.New(cfg.Capacity, cfg.MessageSize, lookAheadOptions(cfg)...)
		capacity, step = r.Capacity(), r.LookAheadStep()
		utils.PrintInfo("capacity:" + utils.Itoa(capacity) + " reps:" + utils.Itoa(cfg.Reps) +
			" lookahead:" + utils.Itoa(step) + "\n")
		opts.OnRun = func(res perf.RunResult) { utils.PrintInfo(res.Line(config.QueueOffHeap) + "\n") }
		rep, err = perf.RunRing(ctx, r, opts)
	case config.QueueSeqRing:
		sr := seqring.New(utils.RoundUpPow2(cfg.Capacity), cfg.MessageSize)
		capacity = sr.Len()
		utils.PrintInfo("capacity:" + utils.Itoa(capacity) + " reps:" + utils.Itoa(cfg.Reps) + "\n")
		opts.OnRun = func(res perf.RunResult) { utils.PrintInfo(res.Line(config.QueueSeqRing) + "\n") }
		rep, err = perf.Run(ctx, perf.SeqQueue{Ring: sr}, opts)
	case config.QueueChannel:
		utils.PrintInfo("capacity:" + utils.Itoa(capacity) + " reps:" + utils.Itoa(cfg.Reps) + "\n")
		opts.OnRun = func(res perf.RunResult) { utils.PrintInfo(res.Line(config.QueueChannel) + "\n") }
		rep, err = perf.Run(ctx, perf.NewChannelQueue(cfg.Capacity, cfg.MessageSize), opts)
	}
	if err != nil {
		return err
	}
	utils.PrintInfo(rep.SummaryLine() + "\n")

	if cfg.ResultsDB == "" {
		return nil
	}
	store, err := results.Open(cfg.ResultsDB)
	if err != nil {
		return err
	}
	defer store.Close()

	now := time.Now()
	runs := make([]results.Run, len(rep.Runs))
	for i, res := range rep.Runs {
		runs[i] = results.Run{
			Queue:         rep.Queue,
			Capacity:      capacity,
			MessageSize:   cfg.MessageSize,
			LookAheadStep: step,
			Reps:          cfg.Reps,
			RunIndex:      res.Index,
			Elapsed:       res.Elapsed,
			OpsPerSec:     res.OpsPerSec,
			Digest:        res.Digest,
			StartedAt:     now,
		}
	}
	if err := store.RecordAll(ctx, runs); err != nil {
		return err
	}
	debug.DropMessage("RESULTS", utils.Itoa(len(runs))+" runs recorded in "+cfg.ResultsDB)

	if cfg.ExportPath == "" {
		return nil
	}
	return exportSummaries(ctx, store, cfg.ExportPath)
}

func exportSummaries(ctx context.Context, store *results.Store, path string) error {
	summaries, err := store.Summaries(ctx, "")
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := results.ExportJSON(f, summaries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// TWO-PROCESS TRANSFER
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func runProducer(ctx context.Context, cfg config.Config) error {
	path := segmentPath(cfg)
	seg, err := segment.Create(path, cfg.Capacity, cfg.MessageSize, offheap.Producer, lookAheadOptions(cfg)...)
	if err != nil {
		return err
	}
	defer seg.Close()
	debug.DropMessage("SEGMENT", "created "+seg.String())

	var sent *digest.Stream
	if cfg.Verify {
		sent = digest.New()
	}
	reps := uint64(cfg.Reps)
	var seq uint64

	stop, hot := control.Flags()
	done := make(chan struct{})
	start := time.Now()
	pinned.PinnedProducer(cfg.ProducerCore, seg.Ring(), stop, hot, func(p []byte) bool {
		if seq == reps {
			return false
		}
		seq++
		perf.StampRecord(p, seq, cfg.Verify)
		if sent != nil {
			sent.Add(p)
		}
		return true
	}, done)

	waitOrShutdown(ctx, done)
	elapsed := time.Since(start)
	// Published after the last WriteRelease so a drained consumer can exit.
	seg.MarkClosed()

	report("PRODUCED", seq, elapsed, sent)
	if seq != reps {
		return fmt.Errorf("%w: %d of %d records", errIncomplete, seq, reps)
	}
	return nil
}

func runConsumer(ctx context.Context, cfg config.Config) error {
	openCtx, cancelOpen := context.WithTimeout(ctx, cfg.OpenTimeout())
	seg, err := segment.Open(openCtx, segmentPath(cfg), offheap.Consumer)
	cancelOpen()
	if err != nil {
		return err
	}
	defer seg.Unlink()
	defer seg.Close()
	debug.DropMessage("SEGMENT", "attached "+seg.String()+" producer pid "+utils.Itoa(seg.ProducerPID()))

	var (
		received *digest.Stream
		count    uint64
		orderErr error
	)
	if cfg.Verify {
		received = digest.New()
	}

	r := seg.Ring()
	stop, hot := control.Flags()
	done := make(chan struct{})
	start := time.Now()
	pinned.PinnedConsumer(cfg.ConsumerCore, r, stop, hot, func(p []byte) {
		count++
		if received != nil {
			if utils.Load64(p) != count && orderErr == nil {
				orderErr = fmt.Errorf("%w: record %d carries %d", perf.ErrOutOfOrder, count, utils.Load64(p))
			}
			received.Add(p)
		}
	}, done)

	// Keep the consumer hot while records flow; stop once the producer has
	// closed and everything it published is released.
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	cancelled := ctx.Done()
	for running := true; running; {
		select {
		case <-done:
			running = false
		case <-cancelled:
			control.Shutdown()
			cancelled = nil
		case <-tick.C:
			switch {
			case seg.Closed() && r.IsEmpty():
				control.Shutdown()
			case r.Size() > 0:
				control.SignalActivity()
			default:
				control.PollCooldown()
			}
		}
	}

	report("CONSUMED", count, time.Since(start), received)
	if orderErr != nil {
		return orderErr
	}
	if count != uint64(cfg.Reps) {
		return fmt.Errorf("%w: %d of %d records", errIncomplete, count, cfg.Reps)
	}
	return nil
}

// waitOrShutdown blocks until done closes, turning ctx cancellation into a
// stop request for the pinned workers.
func waitOrShutdown(ctx context.Context, done <-chan struct{}) {
	select {
	case <-done:
	case <-ctx.Done():
		control.Shutdown()
		<-done
	}
}

func report(tag string, n uint64, elapsed time.Duration, d *digest.Stream) {
	ops := float64(n) * float64(time.Second) / float64(max(elapsed, 1))
	msg := utils.Itoa(int(n)) + " records in " + elapsed.String() + ", " + utils.Itoa(int(ops)) + " ops/sec"
	if d != nil {
		msg += ", sha3 " + d.Hex()
	}
	debug.DropMessage(tag, msg)
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SYSTEM LIFECYCLE MANAGEMENT
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// setupSignalHandling turns SIGINT/SIGTERM into a stop request for pinned
// workers and cancellation of ctx-bound waits. A second signal exits.
func setupSignalHandling(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		debug.DropMessage("SIGNAL", "Received interrupt, shutting down...")
		control.Shutdown()
		cancel()

		<-sigChan
		debug.DropMessage("SIGNAL", "Second interrupt, exiting")
		os.Exit(130)
	}()
}
