package config

// LoggingConfig mirrors internal/logging's own config shape (that package
// keeps a private copy to avoid importing this one). The CLI threads
// these fields into logging.Initialize at startup.
type LoggingConfig struct {
	// DebugMode gates all file logging under .mlpy/logs/.
	DebugMode bool `yaml:"debug_mode"`

	// Level is "debug", "info", "warn", or "error".
	Level string `yaml:"level"`

	// JSONFormat switches log lines to StructuredLogEntry JSON.
	JSONFormat bool `yaml:"json_format"`

	// Categories toggles individual subsystems; a category absent from
	// the map is enabled whenever DebugMode is.
	Categories map[string]bool `yaml:"categories"`
}
