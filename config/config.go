// Package config loads the framepipe configuration from a YAML file, the
// environment (FRAMEPIPE_*) and command-line flags bound by the caller.
package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. FRAMEPIPE_WIDTH.
const EnvPrefix = "FRAMEPIPE"

// Config holds the settings of the framepipe command. Durations accept
// Go duration strings such as "5s".
type Config struct {
	Title          string        `mapstructure:"title"`
	Width          int           `mapstructure:"width"`
	Height         int           `mapstructure:"height"`
	Backend        string        `mapstructure:"backend"`
	Kernel         string        `mapstructure:"kernel"`
	PauseKey       string        `mapstructure:"pause_key"`
	QuitKey        string        `mapstructure:"quit_key"`
	SnapshotKey    string        `mapstructure:"snapshot_key"`
	SnapshotDir    string        `mapstructure:"snapshot_dir"`
	SnapshotFormat string        `mapstructure:"snapshot_format"`
	SyncInterval   int           `mapstructure:"sync_interval"`
	FenceTimeout   time.Duration `mapstructure:"fence_timeout"`
	StatusInterval time.Duration `mapstructure:"status_interval"`
	LogLevel       string        `mapstructure:"log_level"`
	GPULatency     time.Duration `mapstructure:"gpu_latency"`
}

// Default returns the built-in configuration: a 1280x720 window rendering
// the plasma kernel with vsync.
func Default() *Config {
	return &Config{
		Title:          "framepipe",
		Width:          1280,
		Height:         720,
		Kernel:         "plasma",
		PauseKey:       "p",
		QuitKey:        "escape",
		SnapshotKey:    "f12",
		SnapshotDir:    ".",
		SnapshotFormat: "png",
		SyncInterval:   1,
		FenceTimeout:   5 * time.Second,
		StatusInterval: time.Second,
		LogLevel:       "info",
	}
}

// setDefaults registers every key so environment overrides reach Unmarshal
// even when no config file mentions them.
func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("title", c.Title)
	v.SetDefault("width", c.Width)
	v.SetDefault("height", c.Height)
	v.SetDefault("backend", c.Backend)
	v.SetDefault("kernel", c.Kernel)
	v.SetDefault("pause_key", c.PauseKey)
	v.SetDefault("quit_key", c.QuitKey)
	v.SetDefault("snapshot_key", c.SnapshotKey)
	v.SetDefault("snapshot_dir", c.SnapshotDir)
	v.SetDefault("snapshot_format", c.SnapshotFormat)
	v.SetDefault("sync_interval", c.SyncInterval)
	v.SetDefault("fence_timeout", c.FenceTimeout)
	v.SetDefault("status_interval", c.StatusInterval)
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("gpu_latency", c.GPULatency)
}

// Load reads the configuration into v. If cfgFile is empty, framepipe.yaml
// is looked up in the user config directory and the working directory; a
// missing file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	cfg := Default()
	setDefaults(v, cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("framepipe")
		v.SetConfigType("yaml")
		if dir := configDir(); dir != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Level returns the slog level named by LogLevel, Info if unknown.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "framepipe")
}
