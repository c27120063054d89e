package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Logger is a deliberately small, framework-agnostic logging interface.
// Keep implementations outside the packages that consume it so any logger
// can be swapped in.
type Logger interface {
	// Debug logs a debug-level message.
	Debug(msg string, fields ...Field)

	// Info logs an informational message.
	Info(msg string, fields ...Field)

	// Warn logs a warning.
	Warn(msg string, fields ...Field)

	// Error logs an error.
	Error(msg string, fields ...Field)

	// With returns a child logger with persistent fields.
	With(fields ...Field) Logger
}

// Field is a simple key/value pair for structured logging fields.
type Field struct {
	Key   string
	Value interface{}
}

// Level is a log severity threshold. Messages above the configured level
// are dropped.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// ParseLevel maps a LOG_LEVEL-style string (case-insensitive) to a Level.
// Unknown values default to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LevelError
	case "warn", "warning":
		return LevelWarn
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// StdoutLogger is a small structured logger. It implements Logger and prints
// JSON lines to stdout, dropping entries above its level threshold.
type StdoutLogger struct {
	component string
	level     Level
}

// NewStdoutLogger creates a StdoutLogger at LevelInfo. component is optional
// and is included on every entry.
func NewStdoutLogger(component string) *StdoutLogger {
	return &StdoutLogger{component: component, level: LevelInfo}
}

// NewStdoutLoggerAt creates a StdoutLogger with an explicit level threshold.
func NewStdoutLoggerAt(component string, level Level) *StdoutLogger {
	return &StdoutLogger{component: component, level: level}
}

func (s *StdoutLogger) log(level Level, name string, msg string, fields ...Field) {
	if level > s.level {
		return
	}

	type outEntry struct {
		Level     string         `json:"level"`
		Msg       string         `json:"msg"`
		Component string         `json:"component,omitempty"`
		Time      string         `json:"time"`
		Fields    map[string]any `json:"fields,omitempty"`
	}
	m := make(map[string]any)
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	entry := outEntry{
		Level:     name,
		Msg:       msg,
		Component: s.component,
		Time:      time.Now().UTC().Format(time.RFC3339),
		Fields:    m,
	}
	enc, err := json.Marshal(entry)
	if err != nil {
		// Fallback simple formatting to stdout if JSON marshal fails
		fmt.Fprintf(os.Stdout, "%s %s %v\n", name, msg, m)
		return
	}
	fmt.Fprintln(os.Stdout, string(enc))
}

func (s *StdoutLogger) Debug(msg string, fields ...Field) {
	s.log(LevelDebug, "debug", msg, fields...)
}

func (s *StdoutLogger) Info(msg string, fields ...Field) {
	s.log(LevelInfo, "info", msg, fields...)
}

func (s *StdoutLogger) Warn(msg string, fields ...Field) {
	s.log(LevelWarn, "warn", msg, fields...)
}

func (s *StdoutLogger) Error(msg string, fields ...Field) {
	s.log(LevelError, "error", msg, fields...)
}

func (s *StdoutLogger) With(fields ...Field) Logger {
	child := &StdoutLogger{component: s.component, level: s.level}
	// If fields include a component key, prefer that as the component name
	for _, f := range fields {
		if f.Key == "component" {
			if str, ok := f.Value.(string); ok {
				child.component = str
			}
		}
	}
	return child
}
