// Package config loads application configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// AnalysisConfig tunes the per-file analysis pipeline.
type AnalysisConfig struct {
	// MaxScanLines caps how deep the identity extractor scans.
	MaxScanLines int `mapstructure:"max_scan_lines"`

	// Lookback is the repeat-expansion ring buffer size.
	Lookback int `mapstructure:"lookback"`

	// CascadeMaxGap is the error-cascade clustering gap.
	CascadeMaxGap time.Duration `mapstructure:"cascade_max_gap"`
}

// WatchConfig tunes the drop-directory agent.
type WatchConfig struct {
	// Dir is the directory to watch for journal files.
	Dir string `mapstructure:"dir"`

	// Pattern is the journal file name glob.
	Pattern string `mapstructure:"pattern"`

	// Settle is how long a file must be quiet before ingestion.
	Settle time.Duration `mapstructure:"settle"`
}

// Config is the complete application configuration.
type Config struct {
	// DatabasePath locates the SQLite database.
	DatabasePath string `mapstructure:"database_path"`

	Analysis AnalysisConfig `mapstructure:"analysis"`
	Watch    WatchConfig    `mapstructure:"watch"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Load reads configuration from path. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JRNLYZER")
	v.AutomaticEnv()

	v.SetDefault("database_path", "jrnlyzer.db")
	v.SetDefault("analysis.max_scan_lines", 5000)
	v.SetDefault("analysis.lookback", 20)
	v.SetDefault("analysis.cascade_max_gap", "5s")
	v.SetDefault("watch.pattern", "jrnl*.txt")
	v.SetDefault("watch.settle", "2s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Analysis.Lookback <= 0 {
		return nil, fmt.Errorf("analysis.lookback must be positive")
	}
	if cfg.Analysis.MaxScanLines <= 0 {
		return nil, fmt.Errorf("analysis.max_scan_lines must be positive")
	}

	return &cfg, nil
}
