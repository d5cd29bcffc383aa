// Package logger provides the process-wide leveled logger.
// Info, Warn and Error are always written; Debug only in verbose mode.
package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	base              = newLogger(output, verbose)
)

func newLogger(w io.Writer, v bool) *slog.Logger {
	level := slog.LevelInfo
	if v {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// SetVerbose enables or disables debug output.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	base = newLogger(output, verbose)
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the destination writer. Defaults to os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	base = newLogger(output, verbose)
}

// L returns the current logger.
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Debug logs msg with key/value attributes when verbose mode is enabled.
func Debug(msg string, args ...any) { L().Debug(msg, args...) }

// Info logs msg with key/value attributes.
func Info(msg string, args ...any) { L().Info(msg, args...) }

// Warn logs msg with key/value attributes.
func Warn(msg string, args ...any) { L().Warn(msg, args...) }

// Error logs msg with key/value attributes.
func Error(msg string, args ...any) { L().Error(msg, args...) }
