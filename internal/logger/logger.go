// Package logger provides levelled logging for chatlogs.
// Warnings and errors are always written. Debug and info messages are
// written only in verbose mode, enabled by the --verbose flag, to show
// what the pipeline is doing.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Level is a log severity.
type Level int

// Log levels, least severe first.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the level's tag.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name such as "debug" or "warn".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelWarn, fmt.Errorf("unknown log level %q", s)
	}
}

var (
	mu      sync.RWMutex
	level             = LevelWarn
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	if v {
		level = LevelDebug
	} else {
		level = LevelWarn
	}
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return level <= LevelInfo
}

// SetLevel sets the minimum level written.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func logf(l Level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if l >= level {
		fmt.Fprintf(output, "["+l.String()+"] "+format+"\n", args...)
	}
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	logf(LevelDebug, format, args...)
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	logf(LevelInfo, format, args...)
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	logf(LevelWarn, format, args...)
}

// Error prints an error message.
func Error(format string, args ...any) {
	logf(LevelError, format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if level <= LevelInfo {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}
