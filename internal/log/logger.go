// SPDX-License-Identifier: MIT
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// currentLevel holds the current global log level atomically.
var currentLevel atomic.Uint32

// output is the standard logger every Logger writes through, configured to
// show date and time with microseconds.
var output = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)

func init() {
	SetLevel(LevelInfo)
}

// SetOutput redirects every logger, for example away from a terminal that
// is busy drawing a full-screen display.
func SetOutput(w io.Writer) {
	output.SetOutput(w)
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

func shouldLog(level LogLevel) bool {
	return level >= GetLevel()
}

// Logger writes leveled messages tagged with the name of the component that
// produced them. All loggers share the global level.
type Logger struct {
	prefix string
}

// New returns a Logger whose lines are tagged with component.
func New(component string) *Logger {
	if component == "" {
		return &Logger{}
	}
	return &Logger{prefix: component + ": "}
}

var std = &Logger{}

func (l *Logger) logf(level LogLevel, format string, v ...any) {
	if !shouldLog(level) {
		return
	}
	// WARN and INFO carry an extra space so messages line up with the
	// five-letter levels.
	pad := " "
	if len(level.String()) == 4 {
		pad = "  "
	}
	output.Printf("[%s]%s%s%s", level, pad, l.prefix, fmt.Sprintf(format, v...))
}

// Debugf logs a formatted debug message if the level is appropriate.
func (l *Logger) Debugf(format string, v ...any) { l.logf(LevelDebug, format, v...) }

// Infof logs a formatted info message if the level is appropriate.
func (l *Logger) Infof(format string, v ...any) { l.logf(LevelInfo, format, v...) }

// Warnf logs a formatted warning message if the level is appropriate.
func (l *Logger) Warnf(format string, v ...any) { l.logf(LevelWarn, format, v...) }

// Errorf logs a formatted error message if the level is appropriate.
func (l *Logger) Errorf(format string, v ...any) { l.logf(LevelError, format, v...) }

// Fatalf logs a formatted fatal message and exits the application.
// Fatal messages are always logged regardless of the current level.
func (l *Logger) Fatalf(format string, v ...any) {
	output.Fatalf("[%s] %s%s", LevelFatal, l.prefix, fmt.Sprintf(format, v...))
}

// Debugf logs a formatted debug message on the untagged logger.
func Debugf(format string, v ...any) { std.logf(LevelDebug, format, v...) }

// Infof logs a formatted info message on the untagged logger.
func Infof(format string, v ...any) { std.logf(LevelInfo, format, v...) }

// Warnf logs a formatted warning message on the untagged logger.
func Warnf(format string, v ...any) { std.logf(LevelWarn, format, v...) }

// Errorf logs a formatted error message on the untagged logger.
func Errorf(format string, v ...any) { std.logf(LevelError, format, v...) }

// Fatalf logs a formatted fatal message and exits the application.
func Fatalf(format string, v ...any) { std.Fatalf(format, v...) }

// Throttle decides whether the nth occurrence of a repeating error should be
// logged: the first one, then every interval-th one.
type Throttle struct {
	count    atomic.Uint64
	interval uint64
}

// NewThrottle returns a Throttle that lets the first event and every
// interval-th event through.
func NewThrottle(interval uint64) *Throttle {
	if interval == 0 {
		interval = 1
	}
	return &Throttle{interval: interval}
}

// Allow records one occurrence and reports whether it should be logged along
// with the running total.
func (t *Throttle) Allow() (bool, uint64) {
	n := t.count.Add(1)
	return n == 1 || n%t.interval == 0, n
}

// Reset clears the occurrence counter, typically after a success.
func (t *Throttle) Reset() {
	t.count.Store(0)
}
