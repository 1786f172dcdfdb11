package slog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/butter-bot-machines/slskconf/pkg/logging"
)

// LoggerWrapper wraps slog.Logger to implement logging.Logger. Loggers
// derived through With and WithGroup share the level with their parent.
type LoggerWrapper struct {
	*slog.Logger
	state *state
	// derive replays With and WithGroup calls on a rebuilt handler
	derive []func(*slog.Logger) *slog.Logger
}

type state struct {
	mu     sync.RWMutex
	level  logging.Level
	lv     *slog.LevelVar
	output io.Writer
	format logging.Format
	source bool
}

// NewLogger creates a JSON logger with the given level and output
func NewLogger(level logging.Level, output io.Writer) logging.Logger {
	return New(level, logging.FormatJSON, output, false)
}

// New creates a logger writing in the given format. A nil output selects
// os.Stderr.
func New(level logging.Level, format logging.Format, output io.Writer, addSource bool) *LoggerWrapper {
	if output == nil {
		output = os.Stderr
	}
	st := &state{level: level, lv: new(slog.LevelVar), output: output, format: format, source: addSource}
	st.lv.Set(logging.SlogLevel(level))
	l := &LoggerWrapper{state: st}
	l.rebuild()
	return l
}

func (l *LoggerWrapper) rebuild() {
	l.state.mu.RLock()
	h := logging.NewHandler(&logging.Options{
		Level:     l.state.lv,
		AddSource: l.state.source,
		Output:    l.state.output,
		Format:    l.state.format,
	})
	l.state.mu.RUnlock()
	logger := slog.New(h)
	for _, fn := range l.derive {
		logger = fn(logger)
	}
	l.Logger = logger
}

// GetLevel returns the current log level
func (l *LoggerWrapper) GetLevel() logging.Level {
	l.state.mu.RLock()
	defer l.state.mu.RUnlock()
	return l.state.level
}

// SetLevel sets the log level
func (l *LoggerWrapper) SetLevel(level logging.Level) {
	l.state.mu.Lock()
	l.state.level = level
	l.state.mu.Unlock()
	l.state.lv.Set(logging.SlogLevel(level))
}

// GetOutput returns the current output writer
func (l *LoggerWrapper) GetOutput() io.Writer {
	l.state.mu.RLock()
	defer l.state.mu.RUnlock()
	return l.state.output
}

// SetOutput redirects this logger. Derived loggers created earlier keep
// their handler.
func (l *LoggerWrapper) SetOutput(w io.Writer) {
	l.state.mu.Lock()
	l.state.output = w
	l.state.mu.Unlock()
	l.rebuild()
}

// With returns a new logger with the given attributes
func (l *LoggerWrapper) With(args ...interface{}) logging.Logger {
	attrs := toAttrs(args)
	fn := func(s *slog.Logger) *slog.Logger { return s.With(attrs...) }
	return &LoggerWrapper{
		Logger: fn(l.Logger),
		state:  l.state,
		derive: append(append([]func(*slog.Logger) *slog.Logger{}, l.derive...), fn),
	}
}

// WithGroup returns a new logger with the given group
func (l *LoggerWrapper) WithGroup(name string) logging.Logger {
	fn := func(s *slog.Logger) *slog.Logger { return s.WithGroup(name) }
	return &LoggerWrapper{
		Logger: fn(l.Logger),
		state:  l.state,
		derive: append(append([]func(*slog.Logger) *slog.Logger{}, l.derive...), fn),
	}
}

// Debug logs a debug message
func (l *LoggerWrapper) Debug(msg string, args ...interface{}) {
	l.log(slog.LevelDebug, msg, args...)
}

// Info logs an info message
func (l *LoggerWrapper) Info(msg string, args ...interface{}) {
	l.log(slog.LevelInfo, msg, args...)
}

// Warn logs a warning message
func (l *LoggerWrapper) Warn(msg string, args ...interface{}) {
	l.log(slog.LevelWarn, msg, args...)
}

// Error logs an error message
func (l *LoggerWrapper) Error(msg string, args ...interface{}) {
	l.log(slog.LevelError, msg, args...)
}

func (l *LoggerWrapper) log(level slog.Level, msg string, args ...interface{}) {
	attrs := make([]slog.Attr, 0, len(args)/2+1)
	for _, a := range toAttrs(args) {
		attrs = append(attrs, a.(slog.Attr))
	}
	l.Logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// toAttrs pairs up key/value arguments. A missing trailing value is
// reported as MISSING_VALUE; non-string keys are formatted.
func toAttrs(args []interface{}) []any {
	if len(args)%2 != 0 {
		args = append(args, "MISSING_VALUE")
	}
	attrs := make([]any, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return attrs
}
