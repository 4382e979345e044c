package config

import (
	"fmt"
	"time"
)

// CacheConfig controls the compilation and execution caches. Both are
// optional and off the critical path; disabling them only costs repeat
// work.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path is the sqlite index file, relative to the workspace root
	// unless absolute.
	Path string `yaml:"path"`

	// CompileTTL bounds how long a source-hash-keyed generated-code
	// entry stays valid; a duration string.
	CompileTTL string `yaml:"compile_ttl"`

	// ExecuteTTL bounds how long a code+input-keyed ExecutionResult
	// stays valid; a duration string.
	ExecuteTTL string `yaml:"execute_ttl"`

	// MaxEntries caps each cache's in-memory entry count; the least
	// recently used entry is evicted past it.
	MaxEntries int `yaml:"max_entries"`
}

// CompileTTLDuration parses the compile-cache TTL.
func (c CacheConfig) CompileTTLDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.CompileTTL)
	if err != nil {
		return 0, fmt.Errorf("cache.compile_ttl: %w", err)
	}
	return d, nil
}

// ExecuteTTLDuration parses the execution-cache TTL.
func (c CacheConfig) ExecuteTTLDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.ExecuteTTL)
	if err != nil {
		return 0, fmt.Errorf("cache.execute_ttl: %w", err)
	}
	return d, nil
}

// Validate checks the cache section. A disabled cache is always valid.
func (c CacheConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if _, err := c.CompileTTLDuration(); err != nil {
		return err
	}
	if _, err := c.ExecuteTTLDuration(); err != nil {
		return err
	}
	if c.MaxEntries < 1 {
		return fmt.Errorf("cache.max_entries must be >= 1, got %d", c.MaxEntries)
	}
	return nil
}
