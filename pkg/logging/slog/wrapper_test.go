package slog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/butter-bot-machines/slskconf/pkg/logging"
	"github.com/butter-bot-machines/slskconf/pkg/logging/slog/internal/testutil"
)

func TestLoggerWrapper_Levels(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := NewLogger(logging.LevelInfo, buf)

	tests := []struct {
		name    string
		logFunc func(string, ...interface{})
		want    bool
	}{
		{"Debug below Info", logger.Debug, false},
		{"Info at Info", logger.Info, true},
		{"Warn above Info", logger.Warn, true},
		{"Error above Info", logger.Error, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc("test message")

			if got := buf.Len() > 0; got != tt.want {
				t.Errorf("Message logged = %v, want %v", got, tt.want)
			}
			if tt.want {
				entry := testutil.ParseLogEntry(t, buf.String())
				if entry.Message != "test message" {
					t.Errorf("Message = %v, want 'test message'", entry.Message)
				}
			}
		})
	}
}

func TestLoggerWrapper_Attributes(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := NewLogger(logging.LevelInfo, buf)

	t.Run("With Attributes", func(t *testing.T) {
		logger := logger.With("section", "server", "count", 42)
		buf.Reset()

		logger.Info("test message")
		entry := testutil.ParseLogEntry(t, buf.String())

		if entry.Attrs["section"] != "server" {
			t.Errorf("Attribute section = %v, want 'server'", entry.Attrs["section"])
		}
		if entry.Attrs["count"] != float64(42) { // JSON numbers are float64
			t.Errorf("Attribute count = %v, want 42", entry.Attrs["count"])
		}
	})

	t.Run("Odd Attributes", func(t *testing.T) {
		buf.Reset()
		logger.Info("test message", "option")
		entry := testutil.ParseLogEntry(t, buf.String())

		if entry.Attrs["option"] != "MISSING_VALUE" {
			t.Errorf("Missing value = %v, want 'MISSING_VALUE'", entry.Attrs["option"])
		}
	})

	t.Run("Non-string Key", func(t *testing.T) {
		buf.Reset()
		logger.Info("test message", 7, "seven")
		entry := testutil.ParseLogEntry(t, buf.String())

		if entry.Attrs["7"] != "seven" {
			t.Errorf("Got attrs %v", entry.Attrs)
		}
	})
}

func TestLoggerWrapper_Groups(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := NewLogger(logging.LevelInfo, buf)

	logger.WithGroup("settings").With("section", "ui").Info("test message", "option", "x")

	entry := testutil.ParseLogEntry(t, buf.String())
	group, ok := entry.Attrs["settings"].(map[string]interface{})
	if !ok {
		t.Fatalf("Group not found in output: %s", buf.String())
	}
	if group["section"] != "ui" || group["option"] != "x" {
		t.Errorf("Got group %v", group)
	}
}

func TestLoggerWrapper_Output(t *testing.T) {
	buf1 := new(bytes.Buffer)
	logger := NewLogger(logging.LevelInfo, buf1)
	derived := logger.With("k", "v")

	buf2 := new(bytes.Buffer)
	logger.SetOutput(buf2)
	buf1.Reset()

	logger.Info("test message")
	if buf1.Len() > 0 {
		t.Error("Expected no output in buffer1")
	}
	if buf2.Len() == 0 {
		t.Error("Expected output in buffer2")
	}
	if logger.GetOutput() != buf2 {
		t.Error("GetOutput should return the new writer")
	}

	derived.Info("derived")
	if !strings.Contains(buf1.String(), "derived") {
		t.Error("Derived logger should keep its handler")
	}
}

func TestLoggerWrapper_LevelControl(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := NewLogger(logging.LevelInfo, buf)
	derived := logger.With("k", "v")

	logger.SetLevel(logging.LevelError)
	logger.Info("info message")
	derived.Warn("warn message")
	if buf.Len() > 0 {
		t.Errorf("Nothing below Error should be logged, got %s", buf.String())
	}

	derived.Error("error message")
	if buf.Len() == 0 {
		t.Error("Error message should be logged at Error level")
	}
	if got := derived.GetLevel(); got != logging.LevelError {
		t.Errorf("GetLevel() = %v, want Error", got)
	}
}

func TestLoggerWrapper_TextFormat(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := New(logging.LevelDebug, logging.FormatText, buf, false)

	logger.Debug("reading settings", "path", "/tmp/config")
	out := buf.String()
	if !strings.Contains(out, "level=DEBUG") || !strings.Contains(out, "path=/tmp/config") {
		t.Errorf("Unexpected text output: %s", out)
	}
}

func TestLoggerWrapper_Initialization(t *testing.T) {
	t.Run("Nil Output", func(t *testing.T) {
		logger := NewLogger(logging.LevelInfo, nil)
		if logger.GetOutput() == nil {
			t.Error("Output should default to stderr")
		}
	})

	t.Run("Level Names", func(t *testing.T) {
		buf := new(bytes.Buffer)
		logger := NewLogger(logging.LevelDebug, buf)
		logger.Debug("a")
		logger.Info("b")
		logger.Warn("c")
		logger.Error("d")

		want := []string{"DEBUG", "INFO", "WARN", "ERROR"}
		entries := testutil.ParseLogEntries(t, buf.String())
		if len(entries) != len(want) {
			t.Fatalf("Got %d entries, want %d", len(entries), len(want))
		}
		for i, e := range entries {
			if e.Level != want[i] {
				t.Errorf("Level = %v, want %v", e.Level, want[i])
			}
		}
	})
}
