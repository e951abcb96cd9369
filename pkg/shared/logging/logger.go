package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level represents log level
type Level int

const (
	// LevelDebug is for debug messages
	LevelDebug Level = iota
	// LevelInfo is for informational messages
	LevelInfo
	// LevelWarn is for warning messages
	LevelWarn
	// LevelError is for error messages
	LevelError
	// LevelFatal is for fatal error messages
	LevelFatal
)

// String returns the string representation of the log level
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
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelFatal:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel parses a string into a Level. Unknown values map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Logger is the interface for logging.
// args are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
	WithModule(module string) Logger
}

// SimpleLogger is the zerolog-backed Logger implementation
type SimpleLogger struct {
	module string
	level  Level
	zl     zerolog.Logger
}

// NewSimpleLogger creates a console logger writing to stdout.
// Colors are only used when enabled and stdout is a terminal.
func NewSimpleLogger(module string, level Level, useColors bool) *SimpleLogger {
	return NewSimpleLoggerWithWriter(module, level, useColors && checkTTY(), os.Stdout)
}

// NewSimpleLoggerWithWriter creates a console logger writing to w
func NewSimpleLoggerWithWriter(module string, level Level, useColors bool, w io.Writer) *SimpleLogger {
	console := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    !useColors,
		TimeFormat: time.RFC3339,
	}

	return &SimpleLogger{
		module: module,
		level:  level,
		zl:     zerolog.New(console).Level(level.zerolog()).With().Timestamp().Logger(),
	}
}

// checkTTY checks if stdout is a terminal
func checkTTY() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

func (l *SimpleLogger) log(level Level, msg string, args ...interface{}) {
	if level < l.level {
		return
	}

	event := l.zl.WithLevel(level.zerolog())
	if l.module != "" {
		event = event.Str("module", l.module)
	}
	for i := 0; i+1 < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		switch v := args[i+1].(type) {
		case error:
			event = event.AnErr(key, v)
		case string:
			event = event.Str(key, v)
		case fmt.Stringer:
			event = event.Stringer(key, v)
		default:
			event = event.Interface(key, v)
		}
	}
	event.Msg(msg)

	if level == LevelFatal {
		os.Exit(1)
	}
}

// Debug logs a debug message
func (l *SimpleLogger) Debug(msg string, args ...interface{}) {
	l.log(LevelDebug, msg, args...)
}

// Info logs an informational message
func (l *SimpleLogger) Info(msg string, args ...interface{}) {
	l.log(LevelInfo, msg, args...)
}

// Warn logs a warning message
func (l *SimpleLogger) Warn(msg string, args ...interface{}) {
	l.log(LevelWarn, msg, args...)
}

// Error logs an error message
func (l *SimpleLogger) Error(msg string, args ...interface{}) {
	l.log(LevelError, msg, args...)
}

// Fatal logs a fatal error message and exits
func (l *SimpleLogger) Fatal(msg string, args ...interface{}) {
	l.log(LevelFatal, msg, args...)
}

// WithModule returns a logger sharing the same output under a nested module
// name joined with "/" (e.g. "main/proxy").
func (l *SimpleLogger) WithModule(module string) Logger {
	name := module
	if l.module != "" {
		name = l.module + "/" + module
	}
	return &SimpleLogger{
		module: name,
		level:  l.level,
		zl:     l.zl,
	}
}
