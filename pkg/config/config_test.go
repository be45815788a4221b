package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Analysis.Lookback != 20 {
		t.Errorf("Lookback = %d, want 20", cfg.Analysis.Lookback)
	}
	if cfg.Analysis.MaxScanLines != 5000 {
		t.Errorf("MaxScanLines = %d, want 5000", cfg.Analysis.MaxScanLines)
	}
	if cfg.Analysis.CascadeMaxGap != 5*time.Second {
		t.Errorf("CascadeMaxGap = %v, want 5s", cfg.Analysis.CascadeMaxGap)
	}
	if cfg.Watch.Pattern != "jrnl*.txt" {
		t.Errorf("Pattern = %q", cfg.Watch.Pattern)
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
database_path: /data/lanes.db
analysis:
  lookback: 50
  cascade_max_gap: 10s
watch:
  dir: /drop
log_level: debug
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabasePath != "/data/lanes.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.Analysis.Lookback != 50 {
		t.Errorf("Lookback = %d, want 50", cfg.Analysis.Lookback)
	}
	if cfg.Analysis.CascadeMaxGap != 10*time.Second {
		t.Errorf("CascadeMaxGap = %v, want 10s", cfg.Analysis.CascadeMaxGap)
	}
	// Unset fields keep their defaults.
	if cfg.Analysis.MaxScanLines != 5000 {
		t.Errorf("MaxScanLines = %d, want default 5000", cfg.Analysis.MaxScanLines)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	content := "analysis:\n  lookback: -1\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for negative lookback")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
