package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	d, err := cfg.Sandbox.CPUTimeoutDuration()
	if err != nil {
		t.Fatalf("default cpu timeout: %v", err)
	}
	if d != 30*time.Second {
		t.Errorf("default cpu timeout = %v, want 30s", d)
	}
	if got := cfg.Sandbox.MemoryLimitBytes(); got != 100*1024*1024 {
		t.Errorf("default memory limit = %d, want 100 MiB", got)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope", "config.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Transpile.StdlibMode != "native" {
		t.Errorf("expected default stdlib mode, got %q", cfg.Transpile.StdlibMode)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".mlpy", "config.yaml")
	cfg := DefaultConfig()
	cfg.Transpile.Strict = false
	cfg.Sandbox.MemoryLimitMB = 64
	cfg.Cache.MaxEntries = 7
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Transpile.Strict {
		t.Error("strict=false did not survive the round trip")
	}
	if loaded.Sandbox.MemoryLimitMB != 64 {
		t.Errorf("memory_limit_mb = %d, want 64", loaded.Sandbox.MemoryLimitMB)
	}
	if loaded.Cache.MaxEntries != 7 {
		t.Errorf("max_entries = %d, want 7", loaded.Cache.MaxEntries)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad stdlib mode", func(c *Config) { c.Transpile.StdlibMode = "emulated" }},
		{"unparseable cpu timeout", func(c *Config) { c.Sandbox.CPUTimeout = "fast" }},
		{"zero cpu timeout", func(c *Config) { c.Sandbox.CPUTimeout = "0s" }},
		{"zero memory limit", func(c *Config) { c.Sandbox.MemoryLimitMB = 0 }},
		{"bad compile ttl", func(c *Config) { c.Cache.CompileTTL = "soon" }},
		{"zero cache entries", func(c *Config) { c.Cache.MaxEntries = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestDisabledCacheSkipsValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Enabled = false
	cfg.Cache.CompileTTL = "garbage"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled cache should not be validated: %v", err)
	}
}
