// Package memory provides a logger that records entries for inspection in
// tests.
package memory

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/butter-bot-machines/slskconf/pkg/logging"
)

// Logger implements logging.Logger with in-memory storage. Loggers derived
// through With and WithGroup record into the same store.
type Logger struct {
	store  *store
	attrs  []interface{}
	groups []string
}

type store struct {
	mu      sync.RWMutex
	level   logging.Level
	output  io.Writer
	entries []LogEntry
}

// LogEntry represents a stored log entry
type LogEntry struct {
	Time    time.Time
	Level   logging.Level
	Message string
	Args    []interface{}
	Attrs   []interface{}
	Groups  []string
}

// Value returns the value logged under key, searching call arguments before
// logger attributes
func (e LogEntry) Value(key string) (interface{}, bool) {
	for _, kv := range [][]interface{}{e.Args, e.Attrs} {
		for i := 0; i+1 < len(kv); i += 2 {
			if k, ok := kv[i].(string); ok && k == key {
				return kv[i+1], true
			}
		}
	}
	return nil, false
}

// NewLogger creates a memory logger. Output may be nil.
func NewLogger(level logging.Level, output io.Writer) *Logger {
	return &Logger{store: &store{level: level, output: output}}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log(logging.LevelDebug, msg, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...interface{}) {
	l.log(logging.LevelInfo, msg, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log(logging.LevelWarn, msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...interface{}) {
	l.log(logging.LevelError, msg, args...)
}

// With returns a new logger with additional attributes
func (l *Logger) With(args ...interface{}) logging.Logger {
	if len(args)%2 != 0 {
		args = append(args, "MISSING_VALUE")
	}
	attrs := make([]interface{}, 0, len(l.attrs)+len(args))
	attrs = append(append(attrs, l.attrs...), args...)
	return &Logger{store: l.store, attrs: attrs, groups: l.groups}
}

// WithGroup returns a new logger with an additional group
func (l *Logger) WithGroup(name string) logging.Logger {
	groups := append(append([]string{}, l.groups...), name)
	return &Logger{store: l.store, attrs: l.attrs, groups: groups}
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level logging.Level) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	l.store.level = level
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() logging.Level {
	l.store.mu.RLock()
	defer l.store.mu.RUnlock()
	return l.store.level
}

// SetOutput sets the output writer
func (l *Logger) SetOutput(w io.Writer) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	l.store.output = w
}

// GetOutput returns the current output writer
func (l *Logger) GetOutput() io.Writer {
	l.store.mu.RLock()
	defer l.store.mu.RUnlock()
	return l.store.output
}

// GetEntries returns a copy of all stored entries
func (l *Logger) GetEntries() []LogEntry {
	l.store.mu.RLock()
	defer l.store.mu.RUnlock()
	return append([]LogEntry(nil), l.store.entries...)
}

// Find returns the entries of the given level whose message contains substr
func (l *Logger) Find(level logging.Level, substr string) []LogEntry {
	var out []LogEntry
	for _, e := range l.GetEntries() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops the recorded entries
func (l *Logger) Reset() {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	l.store.entries = nil
}

func (l *Logger) log(level logging.Level, msg string, args ...interface{}) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()

	if level < l.store.level {
		return
	}

	entry := LogEntry{
		Time:    time.Now(),
		Level:   level,
		Message: msg,
		Args:    args,
		Attrs:   append([]interface{}{}, l.attrs...),
		Groups:  append([]string{}, l.groups...),
	}
	l.store.entries = append(l.store.entries, entry)

	if l.store.output == nil {
		return
	}
	// TIME [LEVEL] [GROUP1][GROUP2]... MESSAGE key1=value1 key2=value2 ...
	var b strings.Builder
	b.WriteString(entry.Time.Format("2006-01-02T15:04:05.000"))
	fmt.Fprintf(&b, " [%s] ", level)
	for _, g := range l.groups {
		fmt.Fprintf(&b, "[%s]", g)
	}
	b.WriteString(msg)
	for _, kv := range [][]interface{}{l.attrs, args} {
		for i := 0; i+1 < len(kv); i += 2 {
			fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
		}
	}
	b.WriteByte('\n')
	io.WriteString(l.store.output, b.String())
}
