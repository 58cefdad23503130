package observability

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// LogLevel represents log severity
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

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
	default:
		return "UNKNOWN"
	}
}

// Logger is a structured key=value logger. A nil *Logger is valid and
// discards everything, which keeps construction optional in tests.
type Logger struct {
	stdLogger *log.Logger
	minLevel  LogLevel
	fields    []field
	service   string
}

type field struct {
	key   string
	value interface{}
}

// NewLogger creates a new structured logger writing to stdout.
func NewLogger(service string, minLevel LogLevel) *Logger {
	return &Logger{
		stdLogger: log.New(os.Stdout, "", 0),
		minLevel:  minLevel,
		service:   service,
	}
}

// NewLoggerFromEnv creates a logger with the level taken from LOG_LEVEL.
func NewLoggerFromEnv(service string) *Logger {
	level := LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = LevelDebug
	case "warn":
		level = LevelWarn
	case "error":
		level = LevelError
	}
	return NewLogger(service, level)
}

// SetOutput sets the output destination
func (l *Logger) SetOutput(w io.Writer) {
	if l == nil {
		return
	}
	l.stdLogger = log.New(w, "", 0)
}

// WithField returns a new logger with the field added
func (l *Logger) WithField(key string, value interface{}) *Logger {
	if l == nil {
		return nil
	}
	fields := make([]field, len(l.fields), len(l.fields)+1)
	copy(fields, l.fields)
	fields = append(fields, field{key, value})

	return &Logger{
		stdLogger: l.stdLogger,
		minLevel:  l.minLevel,
		fields:    fields,
		service:   l.service,
	}
}

func (l *Logger) logLine(level LogLevel, msg string, keysAndValues []interface{}) {
	if l == nil || level < l.minLevel {
		return
	}

	var b strings.Builder
	b.WriteString(time.Now().UTC().Format(time.RFC3339))
	b.WriteString(" ")
	b.WriteString(level.String())
	b.WriteString(" ")
	b.WriteString(msg)
	if l.service != "" {
		fmt.Fprintf(&b, " service=%s", l.service)
	}
	for _, f := range l.fields {
		fmt.Fprintf(&b, " %s=%v", f.key, f.value)
	}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	l.stdLogger.Println(b.String())
}

// Debug logs at debug level with optional key-value pairs.
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.logLine(LevelDebug, msg, keysAndValues)
}

// Info logs at info level with optional key-value pairs.
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.logLine(LevelInfo, msg, keysAndValues)
}

// Warn logs at warn level with optional key-value pairs.
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.logLine(LevelWarn, msg, keysAndValues)
}

// Error logs at error level with optional key-value pairs.
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.logLine(LevelError, msg, keysAndValues)
}
