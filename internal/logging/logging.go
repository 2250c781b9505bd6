package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel string

const (
	// DebugLevel for debug messages
	DebugLevel LogLevel = "debug"
	// InfoLevel for informational messages
	InfoLevel LogLevel = "info"
	// WarnLevel for warning messages
	WarnLevel LogLevel = "warn"
	// ErrorLevel for error messages
	ErrorLevel LogLevel = "error"
)

var logLevelPriority = map[LogLevel]int{
	DebugLevel: 0,
	InfoLevel:  1,
	WarnLevel:  2,
	ErrorLevel: 3,
}

// ParseLevel maps a config string to a level.
func ParseLevel(s string) (LogLevel, error) {
	lvl := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	if lvl == "warning" {
		lvl = WarnLevel
	}
	if _, ok := logLevelPriority[lvl]; !ok {
		return InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}

// Format represents the output format for logs
type Format string

const (
	// JSONFormat outputs logs as JSON
	JSONFormat Format = "json"
	// HumanFormat outputs logs in human-readable format
	HumanFormat Format = "human"
)

// Config holds logger configuration
type Config struct {
	Format Format
	Level  LogLevel
	Output io.Writer // Optional, defaults to stderr
}

// Logger provides structured logging. Loggers derived with With share the
// parent's writer and lock.
type Logger struct {
	config Config
	writer io.Writer
	mu     *sync.Mutex
	base   map[string]interface{}
}

// NewLogger creates a new logger with the given configuration
func NewLogger(config Config) *Logger {
	writer := config.Output
	if writer == nil {
		writer = os.Stderr
	}
	if config.Level == "" {
		config.Level = InfoLevel
	}

	return &Logger{
		config: config,
		writer: writer,
		mu:     &sync.Mutex{},
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return NewLogger(Config{Level: ErrorLevel, Output: io.Discard})
}

// With returns a logger that adds fields to every entry.
func (l *Logger) With(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.base)+len(fields))
	for k, v := range l.base {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	child := *l
	child.base = merged
	return &child
}

// Enabled reports whether messages at level are written.
func (l *Logger) Enabled(level LogLevel) bool {
	return l.shouldLog(level)
}

// logEntry represents a single log entry
type logEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func (l *Logger) shouldLog(level LogLevel) bool {
	configPriority := logLevelPriority[l.config.Level]
	messagePriority := logLevelPriority[level]
	return messagePriority >= configPriority
}

func (l *Logger) log(level LogLevel, message string, fields map[string]interface{}) {
	if l == nil || !l.shouldLog(level) {
		return
	}

	var all map[string]interface{}
	if len(l.base)+len(fields) > 0 {
		all = make(map[string]interface{}, len(l.base)+len(fields))
		for k, v := range l.base {
			all[k] = v
		}
		for k, v := range fields {
			// errors marshal to {} in JSON
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			all[k] = v
		}
	}
	fields = all

	entry := logEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     string(level),
		Message:   message,
		Fields:    fields,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.config.Format == JSONFormat {
		l.logJSON(entry)
	} else {
		l.logHuman(entry)
	}
}

func (l *Logger) logJSON(entry logEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to marshal log entry: %v\n", err)
		return
	}
	_, _ = fmt.Fprintln(l.writer, string(data))
}

func (l *Logger) logHuman(entry logEntry) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", entry.Timestamp, entry.Level, entry.Message)

	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" |")
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, " %s=%v", k, entry.Fields[k])
		}
	}
	b.WriteByte('\n')
	_, _ = io.WriteString(l.writer, b.String())
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.log(DebugLevel, message, fields)
}

// Info logs an info message
func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.log(InfoLevel, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.log(WarnLevel, message, fields)
}

// Error logs an error message
func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.log(ErrorLevel, message, fields)
}
