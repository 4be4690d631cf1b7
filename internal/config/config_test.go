package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Without any file or environment the defaults apply
func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Port != 8008 {
		t.Errorf("port = %d, want 8008", cfg.Port)
	}
	if cfg.ServerURL != "http://localhost:8008" {
		t.Errorf("server url = %q", cfg.ServerURL)
	}
	if cfg.RefreshInterval != 3*time.Second {
		t.Errorf("refresh interval = %s, want 3s", cfg.RefreshInterval)
	}
	if cfg.DBPath == "" || cfg.CacheDir == "" {
		t.Error("paths not defaulted")
	}
}

// Environment variables override defaults
func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("KLUSJES_PORT", "9100")
	t.Setenv("KLUSJES_SERVER_URL", "http://chores.local:9100")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Port != 9100 {
		t.Errorf("port = %d, want 9100", cfg.Port)
	}
	if cfg.ServerURL != "http://chores.local:9100" {
		t.Errorf("server url = %q", cfg.ServerURL)
	}
}

// An explicit config file overrides defaults and missing files error out
func TestLoad_ExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "klusjes.yaml")
	content := "port: 9200\nserver_url: http://pi.local:9200\nrefresh_interval: 10s\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Port != 9200 || cfg.ServerURL != "http://pi.local:9200" {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.RefreshInterval != 10*time.Second {
		t.Errorf("refresh interval = %s, want 10s", cfg.RefreshInterval)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}
