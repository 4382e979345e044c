// Package logging provides config-driven categorized file-based logging for
// the mlpy transpiler. Logs are written to .mlpy/logs/ with a separate file
// per category. Logging is controlled by debug_mode in .mlpy/config.yaml -
// when false, no logs are written.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot       Category = "boot"       // process startup
	CategoryLexer      Category = "lexer"      // tokenization
	CategoryParser     Category = "parser"     // grammar/AST construction
	CategoryRegistry   Category = "registry"   // safe-attribute registry
	CategoryAnalyzer   Category = "analyzer"   // security analysis pipeline
	CategoryCapability Category = "capability" // capability tokens/contexts
	CategoryCodegen    Category = "codegen"    // code generation
	CategoryBridge     Category = "bridge"     // bridge module registration
	CategorySandbox    Category = "sandbox"    // sandboxed execution
	CategoryCache      Category = "cache"      // compile/execute caches
	CategoryCLI        Category = "cli"        // command-line surface
)

// loggingConfig mirrors the relevant parts of config.LoggingConfig to avoid
// an import cycle with the config package.
type loggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode" json:"debug_mode"`
	Categories map[string]bool `yaml:"categories" json:"categories"`
	Level      string          `yaml:"level" json:"level"`
	JSONFormat bool            `yaml:"json_format" json:"json_format"`
}

// StructuredLogEntry is a JSON log record suitable for machine consumption.
type StructuredLogEntry struct {
	Timestamp int64                  `json:"ts"`
	Category  string                 `json:"cat"`
	Level     string                 `json:"lvl"`
	Message   string                 `json:"msg"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger wraps a standard logger with category and file output.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers      = make(map[Category]*Logger)
	loggersMu    sync.RWMutex
	logsDir      string
	workspace    string
	cfg          loggingConfig
	configMu     sync.RWMutex
	logLevel     int // 0=debug, 1=info, 2=warn, 3=error
)

const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Initialize sets up the logging directory for a workspace root.
// debugMode and categories normally come from the loaded config.Config.
func Initialize(ws string, debugMode bool, level string, jsonFormat bool, categories map[string]bool) error {
	if ws == "" {
		return fmt.Errorf("workspace path required")
	}

	configMu.Lock()
	workspace = ws
	logsDir = filepath.Join(workspace, ".mlpy", "logs")
	cfg = loggingConfig{DebugMode: debugMode, Level: level, JSONFormat: jsonFormat, Categories: categories}
	switch level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	configMu.Unlock()

	if !debugMode {
		return nil
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== mlpy logging initialized ===")
	boot.Info("workspace: %s", workspace)
	boot.Info("log level: %s", level)
	return nil
}

// IsDebugMode reports whether debug logging is enabled.
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return cfg.DebugMode
}

// IsCategoryEnabled reports whether a given category should emit log lines.
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if !cfg.DebugMode {
		return false
	}
	if cfg.Categories == nil {
		return true
	}
	enabled, exists := cfg.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category. When the
// category is disabled, a no-op logger is returned so call sites never need
// to guard their own log calls.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	configMu.RLock()
	dir := logsDir
	configMu.RUnlock()
	if dir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", date, category)
	logPath := filepath.Join(dir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

func (l *Logger) logJSON(level, msg string) {
	entry := StructuredLogEntry{
		Timestamp: time.Now().UnixMilli(),
		Category:  string(l.category),
		Level:     level,
		Message:   msg,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("[%s] %s", level, msg)
		return
	}
	l.logger.Printf("%s", data)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelDebug {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if cfg.JSONFormat {
		l.logJSON("debug", msg)
	} else {
		l.logger.Printf("[DEBUG] %s", msg)
	}
}

func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelInfo {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if cfg.JSONFormat {
		l.logJSON("info", msg)
	} else {
		l.logger.Printf("[INFO] %s", msg)
	}
}

func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelWarn {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if cfg.JSONFormat {
		l.logJSON("warn", msg)
	} else {
		l.logger.Printf("[WARN] %s", msg)
	}
}

func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if cfg.JSONFormat {
		l.logJSON("error", msg)
	} else {
		l.logger.Printf("[ERROR] %s", msg)
	}
}

// StructuredLog writes a log entry with arbitrary structured fields.
func (l *Logger) StructuredLog(level, msg string, fields map[string]interface{}) {
	if l.logger == nil {
		return
	}
	entry := StructuredLogEntry{
		Timestamp: time.Now().UnixMilli(),
		Category:  string(l.category),
		Level:     level,
		Message:   msg,
		Fields:    fields,
	}
	if cfg.JSONFormat {
		if data, err := json.Marshal(entry); err == nil {
			l.logger.Printf("%s", data)
			return
		}
	}
	l.logger.Printf("[%s] %s | fields=%v", level, msg, fields)
}

// CloseAll closes all open log files. Call at shutdown.
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// Timer measures the duration of an operation and logs it on Stop.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}

// --- convenience wrappers, one pair per category ---

func LexerDebug(format string, args ...interface{})      { Get(CategoryLexer).Debug(format, args...) }
func ParserDebug(format string, args ...interface{})     { Get(CategoryParser).Debug(format, args...) }
func ParserError(format string, args ...interface{})     { Get(CategoryParser).Error(format, args...) }
func RegistryDebug(format string, args ...interface{})   { Get(CategoryRegistry).Debug(format, args...) }
func AnalyzerDebug(format string, args ...interface{})   { Get(CategoryAnalyzer).Debug(format, args...) }
func AnalyzerInfo(format string, args ...interface{})    { Get(CategoryAnalyzer).Info(format, args...) }
func CapabilityDebug(format string, args ...interface{}) { Get(CategoryCapability).Debug(format, args...) }
func CapabilityWarn(format string, args ...interface{})  { Get(CategoryCapability).Warn(format, args...) }
func CodegenDebug(format string, args ...interface{})    { Get(CategoryCodegen).Debug(format, args...) }
func CodegenError(format string, args ...interface{})    { Get(CategoryCodegen).Error(format, args...) }
func BridgeDebug(format string, args ...interface{})     { Get(CategoryBridge).Debug(format, args...) }
func SandboxDebug(format string, args ...interface{})    { Get(CategorySandbox).Debug(format, args...) }
func SandboxWarn(format string, args ...interface{})     { Get(CategorySandbox).Warn(format, args...) }
func SandboxError(format string, args ...interface{})    { Get(CategorySandbox).Error(format, args...) }
func CacheDebug(format string, args ...interface{})      { Get(CategoryCache).Debug(format, args...) }
func CLIInfo(format string, args ...interface{})         { Get(CategoryCLI).Info(format, args...) }
