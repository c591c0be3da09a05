// ============================================================================
// HARNESS CONFIGURATION
// ============================================================================
//
// Run parameters for the throughput harness and the two-process modes.
// Values come from constants, then an optional JSON file, then CLI flags
// bound by main. Validate is called once the layers are merged.

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"spscring/constants"
)

// Modes understood by main.
const (
	ModeInProc  = "inproc"
	ModeProduce = "produce"
	ModeConsume = "consume"
)

// Queue implementations selectable for the in-process harness.
const (
	QueueOffHeap = "offheap"
	QueueSeqRing = "seqring"
	QueueChannel = "channel"
)

// AutoLookAhead leaves the probe distance to the ring (capacity/4, capped).
const AutoLookAhead = -1

var (
	ErrInvalidMode  = errors.New("config: mode must be inproc, produce or consume")
	ErrInvalidQueue = errors.New("config: queue must be offheap, seqring or channel")
	ErrInvalidValue = errors.New("config: value out of range")
)

// Config is the merged run configuration.
type Config struct {
	Mode  string `json:"mode"`
	Queue string `json:"queue"`

	Capacity      int `json:"capacity"`
	MessageSize   int `json:"message_size"`
	LookAheadStep int `json:"look_ahead_step"`

	Reps int `json:"reps"`
	Runs int `json:"runs"`
	Tail int `json:"tail"`

	// Verify fingerprints every record on both sides.
	Verify bool `json:"verify"`

	// Negative cores leave scheduling to the OS.
	ProducerCore int `json:"producer_core"`
	ConsumerCore int `json:"consumer_core"`

	SegmentPath   string `json:"segment_path"`
	OpenTimeoutMs int    `json:"open_timeout_ms"`
	ResultsDB     string `json:"results_db"`
	ExportPath    string `json:"export_path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Mode:          ModeInProc,
		Queue:         QueueOffHeap,
		Capacity:      constants.DefaultCapacity,
		MessageSize:   constants.DefaultMessageSize,
		LookAheadStep: AutoLookAhead,
		Reps:          constants.DefaultReps,
		Runs:          constants.DefaultRuns,
		Tail:          constants.DefaultTail,
		ProducerCore:  -1,
		ConsumerCore:  -1,
		OpenTimeoutMs: 30_000,
		ResultsDB:     constants.DefaultResultsDB,
	}
}

// Load overlays the JSON file at path onto Default and validates the result.
// Keys missing from the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := sonnet.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Save writes cfg as JSON to path.
func (c Config) Save(path string) error {
	data, err := sonnet.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Validate checks ranges and cross-field constraints.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeInProc, ModeProduce, ModeConsume:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}
	switch c.Queue {
	case QueueOffHeap, QueueSeqRing, QueueChannel:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidQueue, c.Queue)
	}

	switch {
	case c.Capacity <= 0:
		return fmt.Errorf("%w: capacity %d", ErrInvalidValue, c.Capacity)
	case c.MessageSize <= 0:
		return fmt.Errorf("%w: message_size %d", ErrInvalidValue, c.MessageSize)
	case c.LookAheadStep < AutoLookAhead:
		return fmt.Errorf("%w: look_ahead_step %d", ErrInvalidValue, c.LookAheadStep)
	case c.Reps <= 0:
		return fmt.Errorf("%w: reps %d", ErrInvalidValue, c.Reps)
	case c.Runs <= 0:
		return fmt.Errorf("%w: runs %d", ErrInvalidValue, c.Runs)
	case c.Tail <= 0 || c.Tail > c.Runs:
		return fmt.Errorf("%w: tail %d with %d runs", ErrInvalidValue, c.Tail, c.Runs)
	case c.OpenTimeoutMs <= 0:
		return fmt.Errorf("%w: open_timeout_ms %d", ErrInvalidValue, c.OpenTimeoutMs)
	}
	if c.Verify && c.MessageSize < 8 {
		return fmt.Errorf("%w: verify needs message_size >= 8 for the sequence number", ErrInvalidValue)
	}
	return nil
}

// OpenTimeout returns OpenTimeoutMs as a duration.
func (c Config) OpenTimeout() time.Duration {
	return time.Duration(c.OpenTimeoutMs) * time.Millisecond
}
