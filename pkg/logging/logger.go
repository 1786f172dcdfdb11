package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Options configures a handler
type Options struct {
	// Level is the minimum level to log; a LevelVar allows changing it later
	Level slog.Leveler
	// AddSource adds the file and line of the call, shortened to the base name
	AddSource bool
	// Output defaults to os.Stderr
	Output io.Writer
	Format Format
}

// SlogLevel converts a level to its slog equivalent
func SlogLevel(level Level) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewHandler builds a text or JSON handler
func NewHandler(opts *Options) slog.Handler {
	if opts == nil {
		opts = &Options{}
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: opts.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey && len(groups) == 0 {
				if src, ok := a.Value.Any().(*slog.Source); ok {
					src.File = filepath.Base(src.File)
				}
			}
			return a
		},
	}
	if opts.Format == FormatJSON {
		return slog.NewJSONHandler(out, handlerOpts)
	}
	return slog.NewTextHandler(out, handlerOpts)
}
