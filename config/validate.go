package config

import (
	"fmt"
	"strings"

	"github.com/gogpu/framepipe/event"
	"github.com/gogpu/framepipe/snapshot"
)

// MaxDimension bounds the window size.
const MaxDimension = 16384

var validBackends = map[string]bool{
	"":    true,
	"hal": true,
	"sim": true,
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// Validate checks the config and returns every problem found.
func (c *Config) Validate() []error {
	var errs []error

	if c.Width <= 0 || c.Width > MaxDimension {
		errs = append(errs, fmt.Errorf("width %d is outside 1..%d", c.Width, MaxDimension))
	}
	if c.Height <= 0 || c.Height > MaxDimension {
		errs = append(errs, fmt.Errorf("height %d is outside 1..%d", c.Height, MaxDimension))
	}
	if !validBackends[strings.ToLower(c.Backend)] {
		errs = append(errs, fmt.Errorf("backend %q must be hal or sim", c.Backend))
	}

	keys := map[string]string{
		"pause_key":    c.PauseKey,
		"quit_key":     c.QuitKey,
		"snapshot_key": c.SnapshotKey,
	}
	seen := map[event.Key]string{}
	for _, name := range []string{"pause_key", "quit_key", "snapshot_key"} {
		k, err := event.ParseKey(keys[name])
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if k.Digit() >= 0 {
			errs = append(errs, fmt.Errorf("%s %q collides with the kernel selection keys", name, keys[name]))
		}
		if other, dup := seen[k]; dup {
			errs = append(errs, fmt.Errorf("%s and %s are both bound to %q", other, name, keys[name]))
		}
		seen[k] = name
	}

	if _, err := snapshot.ParseFormat(c.SnapshotFormat); err != nil {
		errs = append(errs, fmt.Errorf("snapshot_format: %w", err))
	}
	if c.SyncInterval < 0 || c.SyncInterval > 4 {
		errs = append(errs, fmt.Errorf("sync_interval %d is outside 0..4", c.SyncInterval))
	}
	if c.FenceTimeout <= 0 {
		errs = append(errs, fmt.Errorf("fence_timeout %v must be positive", c.FenceTimeout))
	}
	if c.StatusInterval <= 0 {
		errs = append(errs, fmt.Errorf("status_interval %v must be positive", c.StatusInterval))
	}
	if c.GPULatency < 0 {
		errs = append(errs, fmt.Errorf("gpu_latency %v must not be negative", c.GPULatency))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	return errs
}

// Keys returns the parsed key bindings. Call Validate first.
func (c *Config) Keys() (pause, quit, snap event.Key) {
	pause, _ = event.ParseKey(c.PauseKey)
	quit, _ = event.ParseKey(c.QuitKey)
	snap, _ = event.ParseKey(c.SnapshotKey)
	return pause, quit, snap
}
