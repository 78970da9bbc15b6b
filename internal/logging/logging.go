// Package logging provides structured logging for all astgrep-mcp binaries.
// Output always goes to stderr: the MCP stdio transport owns stdout, and a
// single stray log line there corrupts the JSON-RPC stream.
package logging

import (
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	defaultLogger *log.Logger
	once          sync.Once
)

// Default returns the process-wide logger, creating it on first use.
// The level is controlled by the ASTGREP_MCP_LOG environment variable
// (debug, info, warn, error); unset or unrecognized values mean info.
func Default() *log.Logger {
	once.Do(func() {
		level := log.InfoLevel
		if raw := os.Getenv("ASTGREP_MCP_LOG"); raw != "" {
			if parsed, err := log.ParseLevel(raw); err == nil {
				level = parsed
			}
		}
		defaultLogger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			Level:           level,
		})
	})
	return defaultLogger
}

// Debug logs a debug message with optional key/value pairs.
func Debug(msg string, keyvals ...interface{}) {
	Default().Debug(msg, keyvals...)
}

// Info logs an informational message with optional key/value pairs.
func Info(msg string, keyvals ...interface{}) {
	Default().Info(msg, keyvals...)
}

// Warn logs a warning with optional key/value pairs.
func Warn(msg string, keyvals ...interface{}) {
	Default().Warn(msg, keyvals...)
}

// Error logs an error with optional key/value pairs.
func Error(msg string, keyvals ...interface{}) {
	Default().Error(msg, keyvals...)
}

// WithPrefix returns a sub-logger tagged with the given component prefix.
func WithPrefix(prefix string) *log.Logger {
	return Default().WithPrefix(prefix)
}
