package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_Sandbox(t *testing.T) {
	t.Run("MLPY_SANDBOX_CPU_TIMEOUT replaces the configured value", func(t *testing.T) {
		t.Setenv("MLPY_SANDBOX_CPU_TIMEOUT", "2s")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "2s", cfg.Sandbox.CPUTimeout)
	})

	t.Run("MLPY_SANDBOX_MEMORY_LIMIT_MB parses as an integer", func(t *testing.T) {
		t.Setenv("MLPY_SANDBOX_MEMORY_LIMIT_MB", "48")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, 48, cfg.Sandbox.MemoryLimitMB)
	})

	t.Run("non-numeric memory limit is ignored", func(t *testing.T) {
		t.Setenv("MLPY_SANDBOX_MEMORY_LIMIT_MB", "lots")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, 100, cfg.Sandbox.MemoryLimitMB)
	})

	t.Run("MLPY_SANDBOX_NETWORK_ALLOWED accepts truthy spellings", func(t *testing.T) {
		for _, v := range []string{"1", "true", "yes", "on"} {
			t.Setenv("MLPY_SANDBOX_NETWORK_ALLOWED", v)
			cfg := DefaultConfig()
			cfg.applyEnvOverrides()
			assert.True(t, cfg.Sandbox.NetworkAllowed, "spelling %q", v)
		}
	})
}

func TestEnvOverrides_TranspileAndCache(t *testing.T) {
	t.Run("MLPY_TRANSPILE_STRICT=0 disables strict mode", func(t *testing.T) {
		t.Setenv("MLPY_TRANSPILE_STRICT", "0")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.False(t, cfg.Transpile.Strict)
	})

	t.Run("MLPY_TRANSPILE_STDLIB_MODE overrides", func(t *testing.T) {
		t.Setenv("MLPY_TRANSPILE_STDLIB_MODE", "host")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "host", cfg.Transpile.StdlibMode)
	})

	t.Run("MLPY_CACHE_ENABLED and MLPY_CACHE_PATH", func(t *testing.T) {
		t.Setenv("MLPY_CACHE_ENABLED", "false")
		t.Setenv("MLPY_CACHE_PATH", "/tmp/alt-cache.db")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.False(t, cfg.Cache.Enabled)
		assert.Equal(t, "/tmp/alt-cache.db", cfg.Cache.Path)
	})

	t.Run("unset variables leave the file values alone", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Transpile.StdlibMode = "host"
		cfg.applyEnvOverrides()

		assert.Equal(t, "host", cfg.Transpile.StdlibMode)
	})
}

func TestEnvOverrides_Logging(t *testing.T) {
	t.Setenv("MLPY_LOGGING_DEBUG_MODE", "true")
	t.Setenv("MLPY_LOGGING_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.True(t, cfg.Logging.DebugMode)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
