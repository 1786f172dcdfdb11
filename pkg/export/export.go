// Package export renders a settings snapshot in a structured format.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/butter-bot-machines/slskconf/pkg/value"
)

// Format selects the output syntax
type Format string

const (
	YAML Format = "yaml"
	TOML Format = "toml"
	JSON Format = "json"
)

// Formats lists every supported format
var Formats = []Format{YAML, TOML, JSON}

// ParseFormat resolves a format name, ignoring case
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Write renders snapshot to w. TOML has no null, so None values are left
// out of TOML output.
func Write(w io.Writer, snapshot map[string]map[string]value.Value, format Format) error {
	switch format {
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(native(snapshot, false)); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case TOML:
		enc := toml.NewEncoder(w)
		if err := enc.Encode(native(snapshot, true)); err != nil {
			return fmt.Errorf("encode toml: %w", err)
		}
		return nil
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(native(snapshot, false)); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unknown export format %q", format)
}

func native(snapshot map[string]map[string]value.Value, dropNone bool) map[string]map[string]any {
	out := make(map[string]map[string]any, len(snapshot))
	for section, options := range snapshot {
		m := make(map[string]any, len(options))
		for name, v := range options {
			n := v.ToNative()
			if dropNone {
				var ok bool
				if n, ok = withoutNil(n); !ok {
					continue
				}
			}
			m[name] = n
		}
		out[section] = m
	}
	return out
}

// withoutNil removes nil from nested lists and maps. It reports false when
// x itself is nil.
func withoutNil(x any) (any, bool) {
	switch t := x.(type) {
	case nil:
		return nil, false
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			if item, ok := withoutNil(item); ok {
				out = append(out, item)
			}
		}
		return out, true
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			if item, ok := withoutNil(item); ok {
				out[k] = item
			}
		}
		return out, true
	}
	return x, true
}
