// Package obs provides the per-subsystem prefixed loggers shared by every
// helixdrive component, in place of a structured-logging dependency.
package obs

import (
	"io"
	"log"
	"os"
	"sync/atomic"
)

// Level gates which calls reach the underlying std logger, in ascending
// severity order.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a -log-level flag value to a Level, defaulting to
// LevelInfo for an unrecognized string.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

var level atomic.Int32

// SetLevel changes the process-wide minimum level every Logger honors.
func SetLevel(l Level) {
	level.Store(int32(l))
}

// Logger wraps the standard library logger with a fixed subsystem tag.
type Logger struct {
	std *log.Logger
}

var output io.Writer = os.Stderr

// SetOutput redirects every subsequently created Logger. Intended for tests.
func SetOutput(w io.Writer) {
	output = w
}

// New returns a logger tagged with the given subsystem name, e.g. "engine".
func New(subsystem string) *Logger {
	return &Logger{std: log.New(output, "["+subsystem+"] ", log.LstdFlags)}
}

func (l *Logger) enabled(want Level) bool { return want >= Level(level.Load()) }

func (l *Logger) Debugf(format string, args ...any) {
	if l.enabled(LevelDebug) {
		l.std.Printf(format, args...)
	}
}
func (l *Logger) Infof(format string, args ...any) {
	if l.enabled(LevelInfo) {
		l.std.Printf(format, args...)
	}
}
func (l *Logger) Warnf(format string, args ...any) {
	if l.enabled(LevelWarn) {
		l.std.Printf("WARN "+format, args...)
	}
}
func (l *Logger) Errorf(format string, args ...any) {
	if l.enabled(LevelError) {
		l.std.Printf("ERROR "+format, args...)
	}
}
