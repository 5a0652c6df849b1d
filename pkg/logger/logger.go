// Package logger provides leveled, structured logging for simctl.
// Log lines are plain text with key=value fields, suitable for both
// interactive CLI use and redirected output.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the level name
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name (case-insensitive). "WARNING" is accepted
// as an alias for WARN. Unknown names return INFO and an error.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level: %s", s)
	}
}

// Config contains logger construction options
type Config struct {
	Level  LogLevel
	Output io.Writer
	Format string
	Mode   string
}

// Logger is a leveled logger with persistent key=value fields.
// WithField/WithFields/WithMode derive new loggers sharing the same output.
type Logger struct {
	mu     sync.Mutex
	level  LogLevel
	mode   string
	fields map[string]interface{}
	output io.Writer
	format string
}

// New creates a logger with INFO level writing to stdout
func New() *Logger {
	return &Logger{
		level:  INFO,
		fields: make(map[string]interface{}),
		output: os.Stdout,
		format: "text",
	}
}

// NewWithConfig creates a logger from the given config
func NewWithConfig(config Config) *Logger {
	l := New()
	l.level = config.Level
	l.mode = config.Mode
	if config.Output != nil {
		l.output = config.Output
	}
	if config.Format != "" {
		l.format = config.Format
	}
	return l
}

// SetLevel changes the minimum level that will be logged
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current minimum level
func (l *Logger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetMode sets the mode tag included in every line
func (l *Logger) SetMode(mode string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mode = mode
}

// GetMode returns the current mode tag
func (l *Logger) GetMode() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mode
}

// IsDebugEnabled reports whether DEBUG messages would be logged
func (l *Logger) IsDebugEnabled() bool { return l.GetLevel() <= DEBUG }

// IsInfoEnabled reports whether INFO messages would be logged
func (l *Logger) IsInfoEnabled() bool { return l.GetLevel() <= INFO }

// WithFields returns a new logger with the given key/value pairs attached.
// A trailing key with no value is dropped.
func (l *Logger) WithFields(keysAndValues ...interface{}) *Logger {
	derived := l.clone()
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keysAndValues[i])
		}
		derived.fields[key] = keysAndValues[i+1]
	}
	return derived
}

// WithField returns a new logger with a single field attached
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(key, value)
}

// WithMode returns a new logger with the given mode, preserving fields
func (l *Logger) WithMode(mode string) *Logger {
	derived := l.clone()
	derived.mode = mode
	return derived
}

func (l *Logger) clone() *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	fields := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	return &Logger{
		level:  l.level,
		mode:   l.mode,
		fields: fields,
		output: l.output,
		format: l.format,
	}
}

// Debug logs at DEBUG level
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.log(DEBUG, msg, keysAndValues...)
}

// Info logs at INFO level
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.log(INFO, msg, keysAndValues...)
}

// Warn logs at WARN level
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.log(WARN, msg, keysAndValues...)
}

// Error logs at ERROR level
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.log(ERROR, msg, keysAndValues...)
}

func (l *Logger) log(level LogLevel, msg string, keysAndValues ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02T15:04:05.000Z07:00"))
	b.WriteString(" [")
	b.WriteString(level.String())
	b.WriteString("]")
	if l.mode != "" {
		b.WriteString(" [")
		b.WriteString(l.mode)
		b.WriteString("]")
	}
	b.WriteString(" ")
	b.WriteString(msg)

	for k, v := range l.fields {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(formatValue(v))
	}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keysAndValues[i])
		}
		b.WriteString(" ")
		b.WriteString(key)
		b.WriteString("=")
		b.WriteString(formatValue(keysAndValues[i+1]))
	}
	b.WriteString("\n")

	_, _ = io.WriteString(l.output, b.String())
}

// formatValue renders a field value for key=value output. Strings containing
// spaces and errors are quoted so lines stay parseable.
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "<nil>"
	case string:
		if strings.ContainsAny(v, " \t") {
			return fmt.Sprintf("%q", v)
		}
		return v
	case error:
		return fmt.Sprintf("%q", v.Error())
	case time.Duration:
		return v.String()
	case fmt.Stringer:
		s := v.String()
		if strings.ContainsAny(s, " \t") {
			return fmt.Sprintf("%q", s)
		}
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Global logger used by package-level helpers
var (
	globalMu sync.Mutex
	global   = New()
)

// SetGlobalMode sets the mode tag on the global logger
func SetGlobalMode(mode string) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global.SetMode(mode)
}

// SetLevel sets the minimum level on the global logger
func SetLevel(level LogLevel) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global.SetLevel(level)
}

// Debug logs at DEBUG level on the global logger
func Debug(msg string, keysAndValues ...interface{}) { global.Debug(msg, keysAndValues...) }

// Info logs at INFO level on the global logger
func Info(msg string, keysAndValues ...interface{}) { global.Info(msg, keysAndValues...) }

// Warn logs at WARN level on the global logger
func Warn(msg string, keysAndValues ...interface{}) { global.Warn(msg, keysAndValues...) }

// Error logs at ERROR level on the global logger
func Error(msg string, keysAndValues ...interface{}) { global.Error(msg, keysAndValues...) }

// WithFields derives a logger from the global logger with fields attached
func WithFields(keysAndValues ...interface{}) *Logger { return global.WithFields(keysAndValues...) }

// WithField derives a logger from the global logger with a single field
func WithField(key string, value interface{}) *Logger { return global.WithField(key, value) }

// WithMode derives a logger from the global logger with the given mode
func WithMode(mode string) *Logger { return global.WithMode(mode) }
