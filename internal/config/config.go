// Package config holds mlpy's YAML-backed configuration: logging toggles,
// transpile defaults, sandbox resource limits, and cache settings. The
// file lives at .mlpy/config.yaml under the workspace root; a missing file
// yields defaults, and MLPY_* environment variables override individual
// fields after loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/duns-scotus/mlpy/internal/logging"
)

// Config holds all mlpy configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Logging toggles for the categorized file logger
	Logging LoggingConfig `yaml:"logging"`

	// Transpile defaults (strictness, stdlib mode, import policy)
	Transpile TranspileConfig `yaml:"transpile"`

	// Sandbox resource limits
	Sandbox SandboxConfig `yaml:"sandbox"`

	// Compilation/execution cache settings
	Cache CacheConfig `yaml:"cache"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "mlpy",
		Version: "1.0.0",

		Logging: LoggingConfig{
			DebugMode:  false,
			Level:      "info",
			JSONFormat: false,
		},

		Transpile: TranspileConfig{
			StdlibMode:            "native",
			Strict:                true,
			StrictArith:           false,
			AllowedImportPrefixes: []string{"stdlib/"},
		},

		Sandbox: SandboxConfig{
			CPUTimeout:     "30s",
			MemoryLimitMB:  100,
			NetworkAllowed: false,
		},

		Cache: CacheConfig{
			Enabled:    true,
			Path:       filepath.Join(".mlpy", "cache.db"),
			CompileTTL: "1h",
			ExecuteTTL: "10m",
			MaxEntries: 256,
		},
	}
}

// DefaultPath returns the conventional config location for a workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".mlpy", "config.yaml")
}

// Load reads the config from path, falling back to defaults if the file
// does not exist. Environment overrides are applied in either case.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	logging.Get(logging.CategoryBoot).Debug("config loaded from %s", path)
	return cfg, nil
}

// Save writes the config as YAML, creating the parent directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks every section; the first failure wins.
func (c *Config) Validate() error {
	if err := c.Transpile.Validate(); err != nil {
		return err
	}
	if err := c.Sandbox.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	return nil
}

// applyEnvOverrides applies MLPY_<SECTION>_<FIELD> environment variables
// on top of whatever Load read. Only fields that make sense to flip per
// invocation are exposed; structural fields (import prefixes, file globs)
// stay file-only.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MLPY_LOGGING_DEBUG_MODE"); v != "" {
		c.Logging.DebugMode = isTruthy(v)
	}
	if v := os.Getenv("MLPY_LOGGING_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MLPY_LOGGING_JSON_FORMAT"); v != "" {
		c.Logging.JSONFormat = isTruthy(v)
	}
	if v := os.Getenv("MLPY_TRANSPILE_STDLIB_MODE"); v != "" {
		c.Transpile.StdlibMode = v
	}
	if v := os.Getenv("MLPY_TRANSPILE_STRICT"); v != "" {
		c.Transpile.Strict = isTruthy(v)
	}
	if v := os.Getenv("MLPY_TRANSPILE_STRICT_ARITH"); v != "" {
		c.Transpile.StrictArith = isTruthy(v)
	}
	if v := os.Getenv("MLPY_SANDBOX_CPU_TIMEOUT"); v != "" {
		c.Sandbox.CPUTimeout = v
	}
	if v := os.Getenv("MLPY_SANDBOX_MEMORY_LIMIT_MB"); v != "" {
		var mb int
		if _, err := fmt.Sscanf(v, "%d", &mb); err == nil && mb > 0 {
			c.Sandbox.MemoryLimitMB = mb
		}
	}
	if v := os.Getenv("MLPY_SANDBOX_NETWORK_ALLOWED"); v != "" {
		c.Sandbox.NetworkAllowed = isTruthy(v)
	}
	if v := os.Getenv("MLPY_CACHE_ENABLED"); v != "" {
		c.Cache.Enabled = isTruthy(v)
	}
	if v := os.Getenv("MLPY_CACHE_PATH"); v != "" {
		c.Cache.Path = v
	}
}

func isTruthy(v string) bool {
	switch v {
	case "1", "true", "TRUE", "True", "yes", "on":
		return true
	}
	return false
}
