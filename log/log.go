// Package log provides structured logging for the merkle context store. It
// wraps Go's log/slog with conveniences such as per-subsystem child loggers,
// shaped around this store's own subsystems (engine, backing store, action
// replay, CLI) rather than a bare free-text module name.
package log

import (
	"fmt"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with store-specific context.
type Logger struct {
	inner *slog.Logger
}

// defaultLogger is the process-wide logger used by the package-level
// convenience functions.
var defaultLogger *Logger

func init() {
	defaultLogger = New(slog.LevelInfo)
}

// New creates a Logger that writes JSON to stderr at the given level.
func New(level slog.Level) *Logger {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{inner: slog.New(h)}
}

// NewWithHandler creates a Logger backed by the supplied slog.Handler. This
// is useful for testing or for writing to a custom destination.
func NewWithHandler(h slog.Handler) *Logger {
	return &Logger{inner: slog.New(h)}
}

// SetDefault replaces the package-level default logger.
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// Default returns the current package-level default logger.
func Default() *Logger {
	return defaultLogger
}

// Subsystem names one of the store's own components, so the "module"
// attribute stamped on every log line comes from a fixed vocabulary instead
// of ad hoc strings scattered across the engine, the backing stores, the
// action applier, and the CLI.
type Subsystem string

const (
	// SubsystemEngine is the in-memory staging/commit engine (merkle.Engine).
	SubsystemEngine Subsystem = "engine"
	// SubsystemStore is a backing store.Store implementation.
	SubsystemStore Subsystem = "store"
	// SubsystemAction is the action-stream applier.
	SubsystemAction Subsystem = "action"
	// SubsystemCLI is the merklectl command-line driver.
	SubsystemCLI Subsystem = "cli"
)

// Module returns a child logger with an additional "module" attribute. This
// is the primary way subsystems obtain their own contextual logger. Prefer
// Of over Module when the subsystem is one of the named Subsystem
// constants; Module remains for names outside that vocabulary. A specific
// store backend is named with Backend instead.
func (l *Logger) Module(name string) *Logger {
	return &Logger{inner: l.inner.With("module", name)}
}

// Of returns a child logger scoped to one of the store's named subsystems.
func (l *Logger) Of(s Subsystem) *Logger {
	return l.Module(string(s))
}

// Backend returns a child logger with an additional "backend" attribute,
// for the store subsystem's case of fronting more than one concrete
// store.Store implementation (pebble on disk, an in-memory cache in front
// of it) under the same "module":"store" scope.
func (l *Logger) Backend(name string) *Logger {
	return &Logger{inner: l.inner.With("backend", name)}
}

// With returns a child logger with additional key-value context.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{inner: l.inner.With(args...)}
}

// Debug logs at LevelDebug.
func (l *Logger) Debug(msg string, args ...any) { l.inner.Debug(msg, args...) }

// Info logs at LevelInfo.
func (l *Logger) Info(msg string, args ...any) { l.inner.Info(msg, args...) }

// Warn logs at LevelWarn.
func (l *Logger) Warn(msg string, args ...any) { l.inner.Warn(msg, args...) }

// Error logs at LevelError.
func (l *Logger) Error(msg string, args ...any) { l.inner.Error(msg, args...) }

// ---------------------------------------------------------------------------
// Package-level convenience functions -- delegate to defaultLogger.
// ---------------------------------------------------------------------------

// Debug logs at LevelDebug using the default logger.
func Debug(msg string, args ...any) { defaultLogger.Debug(msg, args...) }

// Info logs at LevelInfo using the default logger.
func Info(msg string, args ...any) { defaultLogger.Info(msg, args...) }

// Warn logs at LevelWarn using the default logger.
func Warn(msg string, args ...any) { defaultLogger.Warn(msg, args...) }

// Error logs at LevelError using the default logger.
func Error(msg string, args ...any) { defaultLogger.Error(msg, args...) }

// Module returns a child of the default logger with an additional "module"
// attribute. Packages typically call this once at init time to obtain
// their own package-level logger: var logger = log.Module("mypackage").
func Module(name string) *Logger { return defaultLogger.Module(name) }

// Of returns a child of the default logger scoped to one of the store's
// named subsystems: var logger = log.Of(log.SubsystemEngine).
func Of(s Subsystem) *Logger { return defaultLogger.Of(s) }

// ShortHash truncates a content hash's string form to its leading 8 hex
// characters, the form used in log lines where the full 64-character hash
// would only add noise (e.g. one entry among many swept into a commit).
// Error messages and anything a caller might need to look up verbatim
// should still use the full String() form.
func ShortHash(h fmt.Stringer) string {
	s := h.String()
	if len(s) <= 8 {
		return s
	}
	return s[:8]
}
