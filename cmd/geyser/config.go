package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full configuration of one simulated transfer.
// It is read from an optional TOML file,
// and then any flags set on the command line take precedence.
type Config struct {
	Input  string `toml:"input"`
	Output string `toml:"output"`

	BlockSize   int     `toml:"block_size"`
	Seed        uint32  `toml:"seed"`
	ParityRatio float32 `toml:"parity_ratio"`

	// Probability that the simulated channel drops a packet,
	// and the seed for its drop decisions.
	DropRate    float64 `toml:"drop_rate"`
	ChannelSeed uint64  `toml:"channel_seed"`

	Interval      duration `toml:"interval"`
	MaxTicks      uint64   `toml:"max_ticks"`
	MaxOverhead   float64  `toml:"max_overhead"`
	ProgressEvery uint64   `toml:"progress_every"`

	LogLevel string `toml:"log_level"`
}

// duration is a time.Duration written as a string such as "80ms".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func defaultConfig() Config {
	return Config{
		BlockSize:     1000,
		Seed:          10,
		MaxOverhead:   20,
		ProgressEvery: 100,
		LogLevel:      "info",
	}
}

// loadConfig parses the command line arguments
// (not including the program name) into a Config.
func loadConfig(args []string) (Config, error) {
	fs := flag.NewFlagSet("geyser", flag.ContinueOnError)

	configPath := fs.String("config", "", "path to a TOML configuration file")

	var f struct {
		in, out, logLevel string

		blockSize int
		seed      uint64

		parity, dropRate, maxOverhead float64
		channelSeed                   uint64

		interval           time.Duration
		maxTicks, progress uint64
	}
	fs.StringVar(&f.in, "in", "", "file to transfer")
	fs.StringVar(&f.out, "out", "", "where to write the reconstructed file")
	fs.IntVar(&f.blockSize, "block-size", 0, "bytes per block")
	fs.Uint64Var(&f.seed, "seed", 0, "seed for neighbor selection")
	fs.Float64Var(&f.parity, "parity", 0, "ratio of Reed-Solomon parity blocks to source blocks")
	fs.Float64Var(&f.dropRate, "drop", 0, "probability of dropping each packet")
	fs.Uint64Var(&f.channelSeed, "channel-seed", 0, "seed for packet drops")
	fs.DurationVar(&f.interval, "interval", 0, "delay between ticks")
	fs.Uint64Var(&f.maxTicks, "max-ticks", 0, "give up after this many ticks (0 for no limit)")
	fs.Float64Var(&f.maxOverhead, "max-overhead", 0, "give up after sending this multiple of the file size (0 for no limit)")
	fs.Uint64Var(&f.progress, "progress-every", 0, "ticks between progress reports")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn, or error")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	cfg := defaultConfig()
	if *configPath != "" {
		md, err := toml.DecodeFile(*configPath, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", *configPath, err)
		}
		if und := md.Undecoded(); len(und) > 0 {
			return Config{}, fmt.Errorf("unknown keys in config file %s: %v", *configPath, und)
		}
	}

	var flagErr error
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "in":
			cfg.Input = f.in
		case "out":
			cfg.Output = f.out
		case "block-size":
			cfg.BlockSize = f.blockSize
		case "seed":
			if f.seed > math.MaxUint32 {
				flagErr = errors.Join(flagErr, fmt.Errorf("seed %d does not fit in 32 bits", f.seed))
			}
			cfg.Seed = uint32(f.seed)
		case "parity":
			cfg.ParityRatio = float32(f.parity)
		case "drop":
			cfg.DropRate = f.dropRate
		case "channel-seed":
			cfg.ChannelSeed = f.channelSeed
		case "interval":
			cfg.Interval.Duration = f.interval
		case "max-ticks":
			cfg.MaxTicks = f.maxTicks
		case "max-overhead":
			cfg.MaxOverhead = f.maxOverhead
		case "progress-every":
			cfg.ProgressEvery = f.progress
		case "log-level":
			cfg.LogLevel = f.logLevel
		}
	})
	if flagErr != nil {
		return Config{}, flagErr
	}

	if cfg.Input == "" {
		return Config{}, errors.New("no input file given (use -in or the input key)")
	}
	if cfg.Output == "" {
		cfg.Output = cfg.Input + ".out"
	}
	if _, err := cfg.level(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return l, nil
}
