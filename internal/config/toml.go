// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Practice PracticeConfig `toml:"practice"`
	Stats    StatsConfig    `toml:"stats"`
	Tracker  TrackerConfig  `toml:"tracker"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
}

// PracticeConfig maps practice-related settings.
type PracticeConfig struct {
	Lang           *string  `toml:"lang"`
	Words          *int     `toml:"words"`
	CapsPct        *float64 `toml:"caps"`
	PunctPct       *float64 `toml:"punct"`
	PunctSet       *string  `toml:"punct-set"`
	FocusWeak      *bool    `toml:"focus-weak"`
	WeakTop        *int     `toml:"weak-top"`
	WeakFactor     *float64 `toml:"weak-factor"`
	WeakWindow     *int     `toml:"weak-window"`
	TextFile       *string  `toml:"text-file"`
	LiveIntervalMs *int     `toml:"live-interval-ms"`
}

// StatsConfig maps report settings.
type StatsConfig struct {
	CurveWindow *int `toml:"curve-window"`
	Bigrams     *int `toml:"bigrams"`
}

// TrackerConfig maps activity tracker settings.
type TrackerConfig struct {
	IdleTimeoutSeconds      *float64 `toml:"idle-timeout"`
	Extensions              []string `toml:"extensions"`
	SnapshotIntervalSeconds *int     `toml:"snapshot-interval"`
}

// ServerConfig maps REST service settings.
type ServerConfig struct {
	Addr      *string  `toml:"addr"`
	RateLimit *float64 `toml:"rate"`
	RateBurst *int     `toml:"burst"`
}

// LogConfig maps log file settings.
type LogConfig struct {
	Level      *string `toml:"level"`
	MaxSizeMB  *int    `toml:"max-size-mb"`
	MaxBackups *int    `toml:"max-backups"`
	MaxAgeDays *int    `toml:"max-age-days"`
	Compress   *bool   `toml:"compress"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
