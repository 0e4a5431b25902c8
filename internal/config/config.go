package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/presage-dev/presage/internal/errors"
)

// ConfigFileName is the name of the configuration file.
const ConfigFileName = "presage.json"

// Config is the complete presage.json configuration.
type Config struct {
	// Server contains HTTP and websocket server settings.
	Server ServerConfig `json:"server,omitempty"`

	// Store contains forecasting-store settings.
	Store StoreConfig `json:"store,omitempty"`

	// Intent contains intent-estimation defaults handed to clients.
	Intent IntentConfig `json:"intent,omitempty"`

	// Snapshot contains pattern snapshot persistence settings.
	Snapshot SnapshotConfig `json:"snapshot,omitempty"`

	// Log contains logging settings.
	Log LogConfig `json:"log,omitempty"`
}

// ServerConfig contains server settings.
type ServerConfig struct {
	// Addr is the listen address (default ":8420").
	Addr string `json:"addr,omitempty"`

	// MaxDiffConcurrency bounds simultaneous reconciliations
	// (default 16).
	MaxDiffConcurrency int `json:"maxDiffConcurrency,omitempty"`

	// PatchHistory is how many recent patch batches a session retains
	// for replay (default 64).
	PatchHistory int `json:"patchHistory,omitempty"`
}

// StoreConfig contains forecasting-store settings.
type StoreConfig struct {
	// MaxBytes is the memory ceiling for learned patterns in bytes
	// (default 100MB).
	MaxBytes int64 `json:"maxBytes,omitempty"`

	// MinConfidence is the serving floor (default 0.7).
	MinConfidence float64 `json:"minConfidence,omitempty"`

	// DeterministicSeed is the initial confidence for single-key scalar
	// changes (default 0.9).
	DeterministicSeed float64 `json:"deterministicSeed,omitempty"`

	// ProbabilisticSeed is the initial confidence for everything else
	// (default 0.5).
	ProbabilisticSeed float64 `json:"probabilisticSeed,omitempty"`

	// EvictionPolicy is one of "lru", "lfu", "oldest" (default "lru").
	EvictionPolicy string `json:"evictionPolicy,omitempty"`

	// Shards is the number of independently locked maps (default 16).
	Shards int `json:"shards,omitempty"`
}

// IntentConfig contains intent-engine defaults.
type IntentConfig struct {
	// ArmThreshold is the minimum confidence before a prediction is
	// requested (default 0.7).
	ArmThreshold float64 `json:"armThreshold,omitempty"`

	// PiggybackThreshold enables piggybacked related requests
	// (default 0.9).
	PiggybackThreshold float64 `json:"piggybackThreshold,omitempty"`

	// LeadTimeMs is the prediction lead window in milliseconds
	// (default 400).
	LeadTimeMs int `json:"leadTimeMs,omitempty"`

	// WindowSize is the signal ring capacity (default 16).
	WindowSize int `json:"windowSize,omitempty"`
}

// SnapshotConfig contains pattern persistence settings. Empty bucket
// disables snapshots.
type SnapshotConfig struct {
	// Bucket is the S3 bucket holding pattern snapshots.
	Bucket string `json:"bucket,omitempty"`

	// Key is the object key (default "presage/patterns.json").
	Key string `json:"key,omitempty"`

	// IntervalSeconds is how often the store is snapshotted
	// (default 300).
	IntervalSeconds int `json:"intervalSeconds,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error" (default "info").
	Level string `json:"level,omitempty"`

	// Format is "text" or "json" (default "text").
	Format string `json:"format,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads and validates a configuration file. A missing file is not
// an error: defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigFileName
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, errors.New("E050").Wrap(err)
	}

	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.New("E050").
			WithDetail("%s is not valid JSON", path).
			Wrap(err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8420"
	}
	if c.Server.MaxDiffConcurrency <= 0 {
		c.Server.MaxDiffConcurrency = 16
	}
	if c.Server.PatchHistory <= 0 {
		c.Server.PatchHistory = 64
	}

	if c.Store.MaxBytes <= 0 {
		c.Store.MaxBytes = 100 * 1024 * 1024
	}
	if c.Store.MinConfidence == 0 {
		c.Store.MinConfidence = 0.7
	}
	if c.Store.DeterministicSeed == 0 {
		c.Store.DeterministicSeed = 0.9
	}
	if c.Store.ProbabilisticSeed == 0 {
		c.Store.ProbabilisticSeed = 0.5
	}
	if c.Store.EvictionPolicy == "" {
		c.Store.EvictionPolicy = "lru"
	}
	if c.Store.Shards <= 0 {
		c.Store.Shards = 16
	}

	if c.Intent.ArmThreshold == 0 {
		c.Intent.ArmThreshold = 0.7
	}
	if c.Intent.PiggybackThreshold == 0 {
		c.Intent.PiggybackThreshold = 0.9
	}
	if c.Intent.LeadTimeMs <= 0 {
		c.Intent.LeadTimeMs = 400
	}
	if c.Intent.WindowSize <= 0 {
		c.Intent.WindowSize = 16
	}

	if c.Snapshot.Key == "" {
		c.Snapshot.Key = "presage/patterns.json"
	}
	if c.Snapshot.IntervalSeconds <= 0 {
		c.Snapshot.IntervalSeconds = 300
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks value ranges after defaults are applied.
func (c *Config) Validate() error {
	switch c.Store.EvictionPolicy {
	case "lru", "lfu", "oldest":
	default:
		return errors.New("E051").WithDetail("got %q", c.Store.EvictionPolicy)
	}

	for name, v := range map[string]float64{
		"store.minConfidence":       c.Store.MinConfidence,
		"store.deterministicSeed":   c.Store.DeterministicSeed,
		"store.probabilisticSeed":   c.Store.ProbabilisticSeed,
		"intent.armThreshold":       c.Intent.ArmThreshold,
		"intent.piggybackThreshold": c.Intent.PiggybackThreshold,
	} {
		if v < 0 || v > 1 {
			return errors.New("E050").WithDetail("%s = %v, must be in [0,1]", name, v)
		}
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New("E050").WithDetail("log.format = %q, must be text or json", c.Log.Format)
	}
	return nil
}

// LeadTime returns the intent lead window as a duration.
func (c *Config) LeadTime() time.Duration {
	return time.Duration(c.Intent.LeadTimeMs) * time.Millisecond
}

// SnapshotInterval returns the snapshot cadence as a duration.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.Snapshot.IntervalSeconds) * time.Second
}

// Logger builds a slog.Logger from the log settings.
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	switch c.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
