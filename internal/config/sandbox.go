package config

import (
	"fmt"
	"time"
)

// SandboxConfig holds the resource limits a sandboxed run starts from
// before per-invocation flags are applied.
type SandboxConfig struct {
	// CPUTimeout is a duration string ("30s", "500ms").
	CPUTimeout string `yaml:"cpu_timeout"`

	// MemoryLimitMB caps the run's observed heap growth.
	MemoryLimitMB int `yaml:"memory_limit_mb"`

	// NetworkAllowed enables network access for bridge modules that
	// perform it. Off by default.
	NetworkAllowed bool `yaml:"network_allowed"`

	// FileAccessGlobs lists the file path patterns a run may touch;
	// empty means no ambient file access beyond what capability blocks
	// grant themselves.
	FileAccessGlobs []string `yaml:"file_access_globs"`
}

// CPUTimeoutDuration parses the configured timeout.
func (s SandboxConfig) CPUTimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(s.CPUTimeout)
	if err != nil {
		return 0, fmt.Errorf("sandbox.cpu_timeout: %w", err)
	}
	return d, nil
}

// MemoryLimitBytes converts the configured MB cap to bytes.
func (s SandboxConfig) MemoryLimitBytes() uint64 {
	return uint64(s.MemoryLimitMB) * 1024 * 1024
}

// Validate checks the sandbox section.
func (s SandboxConfig) Validate() error {
	d, err := s.CPUTimeoutDuration()
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("sandbox.cpu_timeout must be positive, got %q", s.CPUTimeout)
	}
	if s.MemoryLimitMB < 1 {
		return fmt.Errorf("sandbox.memory_limit_mb must be >= 1, got %d", s.MemoryLimitMB)
	}
	return nil
}
