// Package logging provides a leveled logger with plain, color, and JSON
// output modes. Subcommands log through the package-level functions; the
// logger is configured once by Initialize during command startup.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

// OutputType represents the output format for logs.
type OutputType int

// Output types for different log formats.
const (
	PlainOutput OutputType = iota
	ColorOutput
	JSONOutput
)

// Log levels ordered from least to most severe for numeric comparison.
const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger writes leveled messages to the console.
type Logger struct {
	mu            sync.Mutex
	Level         slog.Level
	OutputType    OutputType
	Quiet         bool
	Verbose       bool
	ConsoleWriter io.Writer
	StdoutWriter  io.Writer
}

// New creates a Logger with the given level and defaults for everything else.
func New(level slog.Level) *Logger {
	return &Logger{
		Level:         level,
		OutputType:    PlainOutput,
		ConsoleWriter: os.Stderr,
		StdoutWriter:  os.Stdout,
	}
}

// NewWithOptions creates a fully configured Logger.
func NewWithOptions(levelStr, format string, quiet, verbose bool) *Logger {
	level := DetermineLogLevel(levelStr)

	outputType := PlainOutput
	switch format {
	case "json":
		outputType = JSONOutput
	case "color":
		outputType = ColorOutput
	case "text", "plain":
		outputType = PlainOutput
	}

	// Verbose implies at least debug level.
	if verbose && level > slog.LevelDebug {
		level = slog.LevelDebug
	}

	return &Logger{
		Level:         level,
		OutputType:    outputType,
		Quiet:         quiet,
		Verbose:       verbose,
		ConsoleWriter: os.Stderr,
		StdoutWriter:  os.Stdout,
	}
}

// formatMessage applies the colored level prefix for color output and leaves
// plain output untouched.
func (l *Logger) formatMessage(level LogLevel, message string, args ...interface{}) string {
	formattedMsg := fmt.Sprintf(message, args...)

	if l.OutputType != ColorOutput {
		return formattedMsg
	}

	switch level {
	case DebugLevel:
		return color.HiBlackString("[DEBUG] %s", formattedMsg)
	case InfoLevel:
		return color.HiGreenString("[INFO] %s", formattedMsg)
	case WarnLevel:
		return color.HiYellowString("[WARN] %s", formattedMsg)
	case ErrorLevel:
		return color.HiRedString("[ERROR] %s", formattedMsg)
	default:
		return formattedMsg
	}
}

// shouldShowLocked reports whether a message at level should be written.
// Callers must hold l.mu.
func (l *Logger) shouldShowLocked(level LogLevel) bool {
	if l.Quiet {
		return level == ErrorLevel
	}
	if l.Verbose {
		return true
	}
	return slogLevel(level) >= l.Level
}

// slogLevel maps a LogLevel onto the slog scale used for threshold checks.
func slogLevel(level LogLevel) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) log(level LogLevel, message string, args ...interface{}) {
	formattedMsg := l.formatMessage(level, message, args...)
	timestamp := time.Now().Format("2006-01-02 15:04:05")

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.shouldShowLocked(level) || l.ConsoleWriter == nil {
		return
	}

	if l.OutputType == JSONOutput {
		entry := map[string]string{
			"time":    timestamp,
			"level":   level.String(),
			"message": formattedMsg,
		}
		if data, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(l.ConsoleWriter, string(data))
			return
		}
	}

	if _, err := fmt.Fprintf(l.ConsoleWriter, "[%s] %s\n", timestamp, formattedMsg); err != nil {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", timestamp, formattedMsg)
	}
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(InfoLevel, format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WarnLevel, format, args...)
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DebugLevel, format, args...)
}

// Error logs an error message. It accepts either an error, a format string,
// or any other value as the first argument.
func (l *Logger) Error(firstArg interface{}, args ...interface{}) {
	switch v := firstArg.(type) {
	case error:
		if len(args) == 0 {
			l.log(ErrorLevel, "%s", v.Error())
		} else {
			l.log(ErrorLevel, v.Error(), args...)
		}
	case string:
		l.log(ErrorLevel, v, args...)
	default:
		l.log(ErrorLevel, "%v", v)
	}
}

// Output sends data to stdout, JSON-encoded when the logger is in JSON mode.
func (l *Logger) Output(data interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.StdoutWriter
	if w == nil {
		w = os.Stdout
	}

	switch l.OutputType {
	case JSONOutput:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(data); err != nil {
			fmt.Fprintf(os.Stderr, "failed to encode JSON output: %v\n", err)
		}
	default:
		fmt.Fprintln(w, data)
	}
}

// DetermineLogLevel converts a string to a slog.Level, defaulting to info.
func DetermineLogLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Package-level default logger.
var (
	defaultMu     sync.RWMutex
	defaultLogger = New(slog.LevelInfo)
)

// Initialize configures the package-level logger. Safe to call more than
// once; the last call wins.
func Initialize(levelStr, format string, quiet, verbose bool) {
	l := NewWithOptions(levelStr, format, quiet, verbose)
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Default returns the package-level logger.
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// Info logs an informational message through the default logger.
func Info(format string, args ...interface{}) { Default().Info(format, args...) }

// Warn logs a warning message through the default logger.
func Warn(format string, args ...interface{}) { Default().Warn(format, args...) }

// Debug logs a debug message through the default logger.
func Debug(format string, args ...interface{}) { Default().Debug(format, args...) }

// Error logs an error message through the default logger.
func Error(firstArg interface{}, args ...interface{}) { Default().Error(firstArg, args...) }

// Output sends data to stdout through the default logger.
func Output(data interface{}) { Default().Output(data) }
