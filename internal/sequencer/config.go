package sequencer

import (
	"fmt"
	"time"
)

// Default configuration values, in the spirit of tsdb/config.go's
// Default* constants.
const (
	// DefaultWindowSize is the out-of-order tolerance, in timestamp units,
	// applied when no window size is configured.
	DefaultWindowSize = uint64(60)

	// DefaultShardCount is the number of independent shard locks guarding
	// run append, a power of two as required by §4.8.
	DefaultShardCount = 256

	// DefaultSpinBudget is the number of test-and-set attempts a shard
	// lock makes before falling back to sleeping.
	DefaultSpinBudget = 1000

	// DefaultMaxBackoff caps the linear sleep backoff a shard lock falls
	// back to under contention.
	DefaultMaxBackoff = 10 * time.Millisecond
)

// Config holds the sequencer's immutable-after-construction parameters.
// It is decoded from TOML in the idiom of cmd/influxd/run/config.go:
// toml struct tags, a NewConfig constructor with sane defaults, and a
// Validate method called once at startup.
type Config struct {
	// WindowSize is the maximum out-of-order tolerance, in timestamp
	// units. Must be strictly positive.
	WindowSize uint64 `toml:"window-size"`

	// ShardCount is the number of entries in the run-lock array. Must be
	// a power of two.
	ShardCount int `toml:"shard-count"`

	// SpinBudget is the number of busy-wait attempts a shard lock makes
	// before sleeping.
	SpinBudget int `toml:"spin-budget"`

	// MaxBackoff caps the shard lock's linear sleep backoff.
	MaxBackoff Duration `toml:"max-backoff"`
}

// Duration is a TOML wrapper type for time.Duration, in the idiom of
// cmd/influxd/config.go's Duration: BurntSushi/toml has no duration type
// of its own, so decoding "10ms"-style values requires a local
// UnmarshalText/MarshalText pair.
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalText parses a TOML value into a duration value.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		return nil
	}
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// MarshalText converts a duration to a string for encoding toml.
func (d Duration) MarshalText() (text []byte, err error) {
	return []byte(d.String()), nil
}

// NewConfig returns a Config populated with the package defaults.
func NewConfig() Config {
	return Config{
		WindowSize: DefaultWindowSize,
		ShardCount: DefaultShardCount,
		SpinBudget: DefaultSpinBudget,
		MaxBackoff: Duration(DefaultMaxBackoff),
	}
}

// Validate checks the configuration against the invariants §3 and §6
// require of a newly-constructed Sequencer.
func (c Config) Validate() error {
	if c.WindowSize == 0 {
		return ErrInvalidWindowSize
	}
	if c.ShardCount <= 0 || c.ShardCount&(c.ShardCount-1) != 0 {
		return ErrInvalidShardCount
	}
	if c.SpinBudget < 0 {
		return fmt.Errorf("sequencer: spin budget must not be negative")
	}
	if c.MaxBackoff < 0 {
		return fmt.Errorf("sequencer: max backoff must not be negative")
	}
	return nil
}
