// ─────────────────────────────────────────────────────────────────────────────
// cli.go: command-line layer over config.Config
//
// Precedence: built-in defaults < -config JSON file < explicit flags.
// ─────────────────────────────────────────────────────────────────────────────

package main

import (
	"flag"
	"io"

	"spscring/config"
)

// bindFlags parses args into cfg and returns the -config path, if any.
func bindFlags(args []string, cfg *config.Config, out io.Writer) (string, error) {
	fs := flag.NewFlagSet("spscring", flag.ContinueOnError)
	fs.SetOutput(out)

	path := fs.String("config", "", "JSON config file applied before flags")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "inproc | produce | consume")
	fs.StringVar(&cfg.Queue, "queue", cfg.Queue, "inproc queue: offheap | seqring | channel")
	fs.IntVar(&cfg.Capacity, "capacity", cfg.Capacity, "ring capacity (rounded up to a power of two)")
	fs.IntVar(&cfg.MessageSize, "msg", cfg.MessageSize, "record payload width in bytes")
	fs.IntVar(&cfg.LookAheadStep, "lookahead", cfg.LookAheadStep, "producer look-ahead step, -1 = capacity/4 capped")
	fs.IntVar(&cfg.Reps, "reps", cfg.Reps, "records per run")
	fs.IntVar(&cfg.Runs, "runs", cfg.Runs, "measured runs")
	fs.IntVar(&cfg.Tail, "tail", cfg.Tail, "trailing runs averaged into the summary")
	fs.BoolVar(&cfg.Verify, "verify", cfg.Verify, "sequence-check and digest every record")
	fs.IntVar(&cfg.ProducerCore, "pcore", cfg.ProducerCore, "producer CPU, -1 = unpinned")
	fs.IntVar(&cfg.ConsumerCore, "ccore", cfg.ConsumerCore, "consumer CPU, -1 = unpinned")
	fs.StringVar(&cfg.SegmentPath, "segment", cfg.SegmentPath, "shared segment file for produce/consume")
	fs.IntVar(&cfg.OpenTimeoutMs, "open-timeout", cfg.OpenTimeoutMs, "consumer wait for the producer, ms")
	fs.StringVar(&cfg.ResultsDB, "db", cfg.ResultsDB, "SQLite run history, empty disables")
	fs.StringVar(&cfg.ExportPath, "export", cfg.ExportPath, "write JSON summaries here after inproc runs")

	err := fs.Parse(args)
	return *path, err
}

// loadConfig merges defaults, the optional file and flags, then validates.
func loadConfig(args []string, out io.Writer) (config.Config, error) {
	cfg := config.Default()
	path, err := bindFlags(args, &cfg, out)
	if err != nil {
		return cfg, err
	}
	if path != "" {
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
		// Flags win over the file.
		if _, err = bindFlags(args, &cfg, out); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}
