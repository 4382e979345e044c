package config

import "fmt"

// TranspileConfig holds the defaults the transpile and run subcommands
// start from before their own flags are applied.
type TranspileConfig struct {
	// StdlibMode selects how recognized stdlib imports are emitted:
	// "native" binds them to the built-in bridge modules, "host" defers
	// resolution to the host environment's module loader.
	StdlibMode string `yaml:"stdlib_mode"`

	// Strict treats any critical or high analyzer issue as a hard
	// failure; permissive mode surfaces them as warnings and proceeds.
	Strict bool `yaml:"strict"`

	// StrictArith makes `number + string` a typed runtime error instead
	// of coercing the number to a string.
	StrictArith bool `yaml:"strict_arith"`

	// AllowedImportPrefixes restricts user-module import paths; an empty
	// list permits any path not already recognized as stdlib.
	AllowedImportPrefixes []string `yaml:"allowed_import_prefixes"`
}

// Validate checks the transpile section.
func (t TranspileConfig) Validate() error {
	switch t.StdlibMode {
	case "native", "host":
		return nil
	default:
		return fmt.Errorf("transpile.stdlib_mode must be \"native\" or \"host\", got %q", t.StdlibMode)
	}
}
