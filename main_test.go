package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sugawarayuuta/sonnet"

	"spscring/config"
	"spscring/constants"
	"spscring/control"
	"spscring/offheap"
	"spscring/results"
	"spscring/segment"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(nil, io.Discard)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg != config.Default() {
		t.Fatalf("got %+v, want defaults", cfg)
	}
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	if err := os.WriteFile(path, []byte(`{"queue":"channel","capacity":64,"runs":4,"tail":2}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig([]string{"-config", path, "-capacity", "256", "-verify"}, io.Discard)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Queue != config.QueueChannel || cfg.Runs != 4 {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.Capacity != 256 || !cfg.Verify {
		t.Fatalf("flags did not win: %+v", cfg)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := loadConfig([]string{"-h"}, io.Discard); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("-h: err = %v", err)
	}
	if _, err := loadConfig([]string{"-nope"}, io.Discard); err == nil {
		t.Fatal("unknown flag accepted")
	}
	if _, err := loadConfig([]string{"-tail", "30"}, io.Discard); !errors.Is(err, config.ErrInvalidValue) {
		t.Fatalf("tail > runs: err = %v", err)
	}
}

func TestLookAheadOptions(t *testing.T) {
	cfg := config.Default()
	if lookAheadOptions(cfg) != nil {
		t.Fatal("auto look-ahead should add no options")
	}
	cfg.LookAheadStep = 3
	r := offheap.New(64, 8, lookAheadOptions(cfg)...)
	if r.LookAheadStep() != 3 {
		t.Fatalf("LookAheadStep = %d", r.LookAheadStep())
	}
}

func TestRunInProcRecordsAndExports(t *testing.T) {
	dir := t.TempDir()
	for _, queue := range []string{config.QueueOffHeap, config.QueueSeqRing, config.QueueChannel} {
		cfg := config.Default()
		cfg.Queue = queue
		cfg.Capacity = 128
		cfg.Reps = 5_000
		cfg.Runs = 2
		cfg.Tail = 1
		cfg.MessageSize = 16
		cfg.Verify = true
		cfg.ResultsDB = filepath.Join(dir, "runs.db")
		cfg.ExportPath = filepath.Join(dir, "summary.json")

		if err := runInProc(context.Background(), cfg); err != nil {
			t.Fatalf("%s: %v", queue, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	if err != nil {
		t.Fatal(err)
	}
	var got []results.Summary
	if err := sonnet.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(got) != 3 || got[0].Queue != "channel" || got[1].Queue != "offheap" || got[2].Queue != "seqring" || got[1].Runs != 2 {
		t.Fatalf("summaries = %+v", got)
	}
}

func TestProduceConsumeOverSegment(t *testing.T) {
	if testing.Short() {
		t.Skip("two-sided transfer")
	}
	shm, err := segment.Create(filepath.Join(t.TempDir(), "support"), 1, 1, offheap.Producer)
	if errors.Is(err, segment.ErrUnsupported) {
		t.Skip("no shared-memory segments on this platform")
	}
	if err != nil {
		t.Fatal(err)
	}
	shm.Close()
	control.Reset()
	t.Cleanup(control.Reset)

	cfg := config.Default()
	cfg.Capacity = 64
	cfg.MessageSize = 16
	cfg.Reps = 20_000
	cfg.Verify = true
	cfg.OpenTimeoutMs = 5_000
	cfg.SegmentPath = filepath.Join(t.TempDir(), constants.DefaultSegmentName)

	// The producer blocks once the ring is full, so the consumer must already
	// be waiting for the segment.
	consErr := make(chan error, 1)
	go func() { consErr <- runConsumer(context.Background(), cfg) }()

	if err := runProducer(context.Background(), cfg); err != nil {
		t.Fatalf("producer: %v", err)
	}
	if err := <-consErr; err != nil {
		t.Fatalf("consumer: %v", err)
	}
	if _, err := os.Stat(cfg.SegmentPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("consumer did not unlink the segment")
	}
}
