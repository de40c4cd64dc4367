package logger

import (
	"io"
	"log"
	"os"
	"sync/atomic"
)

var (
	debugEnabled atomic.Bool
	infoLogger   *log.Logger
	errorLogger  *log.Logger
	debugLogger  *log.Logger
)

func init() {
	SetOutput(os.Stderr)
}

// SetOutput redirects all log levels to w (tests point this at a buffer).
func SetOutput(w io.Writer) {
	infoLogger = log.New(w, "", log.LstdFlags)
	errorLogger = log.New(w, "[ERROR] ", log.LstdFlags)
	debugLogger = log.New(w, "[DEBUG] ", log.LstdFlags)
}

// SetDebug enables or disables debug logging
func SetDebug(enabled bool) {
	debugEnabled.Store(enabled)
}

// DebugEnabled reports whether debug output is on.
func DebugEnabled() bool {
	return debugEnabled.Load()
}

// Info logs an informational message
func Info(format string, args ...interface{}) {
	infoLogger.Printf(format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	errorLogger.Printf(format, args...)
}

// Debug logs a debug message if debug logging is enabled
func Debug(format string, args ...interface{}) {
	if debugEnabled.Load() {
		debugLogger.Printf(format, args...)
	}
}

// Fatal logs an error message and exits with status 1
func Fatal(format string, args ...interface{}) {
	errorLogger.Printf(format, args...)
	os.Exit(1)
}

// Scope is a component-tagged view over the package loggers. Every message
// is prefixed with "<name>: " so interleaved output from the event loop,
// the fetcher and the location provider stays attributable.
type Scope struct {
	prefix string
}

// For returns a Scope for the named component.
func For(name string) Scope {
	return Scope{prefix: name + ": "}
}

func (s Scope) Info(format string, args ...interface{}) {
	Info(s.prefix+format, args...)
}

func (s Scope) Error(format string, args ...interface{}) {
	Error(s.prefix+format, args...)
}

func (s Scope) Debug(format string, args ...interface{}) {
	Debug(s.prefix+format, args...)
}
