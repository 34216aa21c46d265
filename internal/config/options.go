// Package config defines the settings Open validates and builds its
// managers from, and can load them from a YAML file, in the style used
// throughout the example corpus for resource/options files (yaml struct
// tags over a plain Go struct, decoded with gopkg.in/yaml.v3). Open itself
// does not read a YAML file: it fills Options from tinysql.Options over
// Default().
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/SimonWaldherr/tinySQL/internal/buffer"
	"gopkg.in/yaml.v3"
)

// DirectIOMode selects buffered or direct I/O for data files. The WAL is
// always buffered regardless of this setting.
type DirectIOMode string

const (
	Buffered DirectIOMode = "buffered"
	Direct   DirectIOMode = "direct"
)

// Options enumerates every setting Database.Open consumes.
type Options struct {
	PageSize          int          `yaml:"page_size"`
	BufferCount       int          `yaml:"buffer_count"`
	ReplacementPolicy string       `yaml:"replacement_policy"` // "clock", "sieve", "lru"
	LockTimeoutMS     int          `yaml:"lock_timeout_ms"`
	BufferTimeoutMS   int          `yaml:"buffer_timeout_ms"`
	FsyncOnCommit     bool         `yaml:"fsync_on_commit"`
	DirectIO          DirectIOMode `yaml:"direct_io"`
	LogFilename       string       `yaml:"log_filename"`
}

// Default returns the options a fresh database is created with absent an
// on-disk config file.
func Default() Options {
	return Options{
		PageSize:          4096,
		BufferCount:       64,
		ReplacementPolicy: "clock",
		LockTimeoutMS:     10_000,
		BufferTimeoutMS:   10_000,
		FsyncOnCommit:     true,
		DirectIO:          Buffered,
		LogFilename:       "simpledb.log",
	}
}

// Load reads and parses a YAML options file, filling in defaults for any
// field the file omits.
func Load(path string) (Options, error) {
	opts := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	// Decode over the defaults so an omitted field keeps its default
	// rather than being zeroed.
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Validate rejects settings Database.Open cannot act on.
func (o Options) Validate() error {
	if o.PageSize <= 0 {
		return fmt.Errorf("config: page_size must be positive, got %d", o.PageSize)
	}
	if o.BufferCount <= 0 {
		return fmt.Errorf("config: buffer_count must be positive, got %d", o.BufferCount)
	}
	if o.LockTimeoutMS < 0 || o.BufferTimeoutMS < 0 {
		return fmt.Errorf("config: timeouts must be >= 0")
	}
	switch o.ReplacementPolicy {
	case "", "clock", "sieve", "lru":
	default:
		return fmt.Errorf("config: unknown replacement_policy %q", o.ReplacementPolicy)
	}
	switch o.DirectIO {
	case "", Buffered, Direct:
	default:
		return fmt.Errorf("config: unknown direct_io %q", o.DirectIO)
	}
	return nil
}

// LockTimeout returns LockTimeoutMS as a time.Duration.
func (o Options) LockTimeout() time.Duration {
	return time.Duration(o.LockTimeoutMS) * time.Millisecond
}

// BufferTimeout returns BufferTimeoutMS as a time.Duration.
func (o Options) BufferTimeout() time.Duration {
	return time.Duration(o.BufferTimeoutMS) * time.Millisecond
}

// Policy maps the YAML replacement_policy string to buffer.PolicyKind.
func (o Options) Policy() buffer.PolicyKind {
	switch o.ReplacementPolicy {
	case "sieve":
		return buffer.PolicySieve
	case "lru":
		return buffer.PolicyLRU
	default:
		return buffer.PolicyClock
	}
}
