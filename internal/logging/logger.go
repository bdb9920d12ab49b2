// Package logging provides config-driven categorized file-based logging for eduattend.
// Logs are written to the configured log directory with one file per category.
// Logging is controlled by logging.debug_mode - when false, no logs are written,
// which keeps the terminal UI free of stray output.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"eduattend/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup, config loading
	CategoryConfig    Category = "config"    // Config reloads
	CategorySession   Category = "session"   // Chat session lifecycle, streaming
	CategoryTransport Category = "transport" // Backend HTTP/WebSocket calls
	CategoryHealth    Category = "health"    // Connectivity probes
	CategoryArtifact  Category = "artifact"  // Artifact detection and download
	CategoryDates     Category = "dates"     // Date-context heuristics
	CategoryDispatch  Category = "dispatch"  // Suggested questions, parameter forms
	CategoryUI        Category = "ui"        // TUI events
)

// Logger wraps a zap sugared logger bound to one category.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	cfg       config.LoggingConfig
	cfgMu     sync.RWMutex
	level     = zapcore.InfoLevel
)

// Initialize applies the logging configuration. Existing category loggers are
// closed so that subsequent Get calls pick up the new settings.
func Initialize(lc config.LoggingConfig) error {
	CloseAll()

	lvl := zapcore.InfoLevel
	if lc.Level != "" {
		if err := lvl.UnmarshalText([]byte(lc.Level)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", lc.Level, err)
		}
	}

	cfgMu.Lock()
	cfg = lc
	level = lvl
	cfgMu.Unlock()

	if !lc.DebugMode {
		return nil
	}

	if lc.Dir == "" {
		return fmt.Errorf("logging.dir required when debug_mode is enabled")
	}
	if err := os.MkdirAll(lc.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== eduattend logging initialized ===")
	boot.Info("Logs directory: %s", lc.Dir)
	boot.Info("Log level: %s", lvl)
	return nil
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return cfg.DebugMode
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *Logger {
	cfgMu.RLock()
	lc := cfg
	lvl := level
	cfgMu.RUnlock()

	if !lc.IsCategoryEnabled(string(category)) || lc.Dir == "" {
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
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
	logPath := filepath.Join(lc.Dir, fmt.Sprintf("%s_%s.log", date, category))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if lc.Format == "console" {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(file), lvl)
	l := &Logger{
		category: category,
		file:     file,
		sugar:    zap.New(core).Sugar().With("cat", string(category)),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// CloseAll flushes and closes all open log files.
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for cat, l := range loggers {
		_ = l.sugar.Sync()
		if l.file != nil {
			l.file.Close()
		}
		delete(loggers, cat)
	}
}

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

func Session(format string, args ...interface{}) {
	Get(CategorySession).Info(format, args...)
}

func SessionDebug(format string, args ...interface{}) {
	Get(CategorySession).Debug(format, args...)
}

func Transport(format string, args ...interface{}) {
	Get(CategoryTransport).Info(format, args...)
}

func TransportDebug(format string, args ...interface{}) {
	Get(CategoryTransport).Debug(format, args...)
}

func Health(format string, args ...interface{}) {
	Get(CategoryHealth).Info(format, args...)
}

func Artifact(format string, args ...interface{}) {
	Get(CategoryArtifact).Info(format, args...)
}

func Dispatch(format string, args ...interface{}) {
	Get(CategoryDispatch).Info(format, args...)
}

func DispatchWarn(format string, args ...interface{}) {
	Get(CategoryDispatch).Warn(format, args...)
}
