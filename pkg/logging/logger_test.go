package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLogLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(NewHandler(&Options{
		Level:  slog.LevelInfo,
		Output: buf,
	}))

	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Error("Debug message was logged when level is Info")
	}

	buf.Reset()
	logger.Info("info message")
	if !strings.Contains(buf.String(), "info message") {
		t.Error("Info message was not logged correctly")
	}
}

func TestLevelVar(t *testing.T) {
	buf := &bytes.Buffer{}
	lv := new(slog.LevelVar)
	lv.Set(slog.LevelError)
	logger := slog.New(NewHandler(&Options{Level: lv, Output: buf}))

	logger.Warn("hidden")
	lv.Set(slog.LevelWarn)
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("Unexpected output: %s", buf.String())
	}
}

func TestStructuredLogging(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(NewHandler(&Options{
		Level:  slog.LevelDebug,
		Output: buf,
	}))

	logger.WithGroup("settings").With("section", "server").Info("unknown config option", "option", "bogus")

	output := buf.String()
	for _, want := range []string{"settings.section=server", "settings.option=bogus", `msg="unknown config option"`} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %s in %s", want, output)
		}
	}
}

func TestJSONFormatting(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(NewHandler(&Options{
		Output:    buf,
		Format:    FormatJSON,
		AddSource: true,
	}))

	logger.With("key", "value").Info("test message")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}
	if entry["msg"] != "test message" {
		t.Error("Message not correctly encoded in JSON")
	}
	if entry["key"] != "value" {
		t.Error("Attributes not correctly encoded in JSON")
	}
	source, ok := entry["source"].(map[string]interface{})
	if !ok {
		t.Fatal("Source location not included in log")
	}
	if strings.Contains(source["file"].(string), "/") {
		t.Error("Source path is not shortened")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v", tt.in, err)
			}
			if err != nil && !errors.Is(err, ErrInvalidLevel) {
				t.Errorf("Error %v should wrap ErrInvalidLevel", err)
			}
			if got != tt.want {
				t.Errorf("Got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("Got %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("Got %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("Got %v, want ErrInvalidFormat", err)
	}
}

func TestSlogLevel(t *testing.T) {
	if SlogLevel(LevelWarn) != slog.LevelWarn || SlogLevel(Level(42)) != slog.LevelInfo {
		t.Error("Unexpected level conversion")
	}
}
