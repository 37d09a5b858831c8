// Package config loads the daemon's startup configuration.
//
// All fields are pointers so a partial JSON file only overrides what it
// names; the Get* accessors supply fallback defaults. Configuration is read
// once at startup and immutable afterwards.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Defaults applied when a field is absent from the config file.
const (
	DefaultListen          = ":10001"
	DefaultBridgeURL       = "http://localhost:10002"
	DefaultDBPath          = "simd.db"
	DefaultDirtyMarkerPath = "/tmp/simd_dirty"
	DefaultPollInterval    = time.Millisecond

	// Drift thresholds, matching the simulator's historical tolerances:
	// distance in engine units, yaw in degrees.
	DefaultDirtyEpsilonDist   = 5.0
	DefaultDirtyEpsilonYawDeg = 5.0
)

// Config is the daemon's startup configuration.
type Config struct {
	// Listen is the control-surface listen address, e.g. ":10001".
	Listen *string `json:"listen,omitempty"`
	// BridgeURL is the base URL of the engine bridge process.
	BridgeURL *string `json:"bridge_url,omitempty"`
	// DBPath is the sqlite session/event store path.
	DBPath *string `json:"db_path,omitempty"`
	// DirtyMarkerPath is where the drift sentinel file is created.
	DirtyMarkerPath *string `json:"dirty_marker_path,omitempty"`
	// PollInterval is the scheduler's outer-loop poll period, as a duration
	// string like "1ms".
	PollInterval *string `json:"poll_interval,omitempty"`

	DirtyEpsilonDist   *float64 `json:"dirty_epsilon_dist,omitempty"`
	DirtyEpsilonYawDeg *float64 `json:"dirty_epsilon_yaw_deg,omitempty"`
}

// Load reads a Config from a JSON file. Fields omitted from the file retain
// their defaults, so partial configs are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.PollInterval != nil {
		d, err := time.ParseDuration(*c.PollInterval)
		if err != nil {
			return fmt.Errorf("poll_interval %q is not a duration: %w", *c.PollInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("poll_interval must be positive, got %v", d)
		}
	}
	if c.DirtyEpsilonDist != nil && *c.DirtyEpsilonDist <= 0 {
		return fmt.Errorf("dirty_epsilon_dist must be positive, got %v", *c.DirtyEpsilonDist)
	}
	if c.DirtyEpsilonYawDeg != nil && *c.DirtyEpsilonYawDeg <= 0 {
		return fmt.Errorf("dirty_epsilon_yaw_deg must be positive, got %v", *c.DirtyEpsilonYawDeg)
	}
	if c.Listen != nil && *c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	return nil
}

// GetListen returns the control-surface listen address.
func (c *Config) GetListen() string {
	if c.Listen != nil {
		return *c.Listen
	}
	return DefaultListen
}

// GetBridgeURL returns the engine bridge base URL.
func (c *Config) GetBridgeURL() string {
	if c.BridgeURL != nil {
		return *c.BridgeURL
	}
	return DefaultBridgeURL
}

// GetDBPath returns the sqlite store path.
func (c *Config) GetDBPath() string {
	if c.DBPath != nil {
		return *c.DBPath
	}
	return DefaultDBPath
}

// GetDirtyMarkerPath returns the drift sentinel file path.
func (c *Config) GetDirtyMarkerPath() string {
	if c.DirtyMarkerPath != nil {
		return *c.DirtyMarkerPath
	}
	return DefaultDirtyMarkerPath
}

// GetPollInterval returns the scheduler poll period. Validate has already
// checked the duration parses, so parse errors here fall back to the default.
func (c *Config) GetPollInterval() time.Duration {
	if c.PollInterval != nil {
		if d, err := time.ParseDuration(*c.PollInterval); err == nil {
			return d
		}
	}
	return DefaultPollInterval
}

// GetDirtyEpsilonDist returns the planar drift threshold in engine units.
func (c *Config) GetDirtyEpsilonDist() float64 {
	if c.DirtyEpsilonDist != nil {
		return *c.DirtyEpsilonDist
	}
	return DefaultDirtyEpsilonDist
}

// GetDirtyEpsilonYawDeg returns the yaw drift threshold in degrees.
func (c *Config) GetDirtyEpsilonYawDeg() float64 {
	if c.DirtyEpsilonYawDeg != nil {
		return *c.DirtyEpsilonYawDeg
	}
	return DefaultDirtyEpsilonYawDeg
}
