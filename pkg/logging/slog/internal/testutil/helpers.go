package testutil

import (
	"encoding/json"
	"strings"
	"testing"
)

// LogEntry represents a parsed JSON log entry
type LogEntry struct {
	Time    string
	Level   string
	Message string
	Attrs   map[string]interface{}
}

// ParseLogEntry parses a JSON log entry from a string
func ParseLogEntry(t *testing.T, line string) LogEntry {
	t.Helper()

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		t.Fatalf("Failed to parse log entry: %v", err)
	}

	entry := LogEntry{Attrs: make(map[string]interface{})}
	for k, v := range raw {
		switch k {
		case "time":
			entry.Time, _ = v.(string)
		case "level":
			entry.Level, _ = v.(string)
		case "msg":
			entry.Message, _ = v.(string)
		default:
			entry.Attrs[k] = v
		}
	}
	return entry
}

// ParseLogEntries parses one entry per non-empty line
func ParseLogEntries(t *testing.T, output string) []LogEntry {
	t.Helper()
	var out []LogEntry
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, ParseLogEntry(t, line))
		}
	}
	return out
}
