package export

import (
	"bytes"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/butter-bot-machines/slskconf/pkg/value"
)

func sample() map[string]map[string]value.Value {
	return map[string]map[string]value.Value{
		"server": {
			"server":   value.MustParse("('server.slsknet.org', 2242)"),
			"login":    value.Text("me"),
			"autoaway": value.Int(15),
			"upnp":     value.Bool(true),
			"away":     value.None(),
		},
		"words": {
			"censored": value.List(value.Text("a"), value.None()),
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"yaml", YAML, false},
		{"TOML", TOML, false},
		{" json ", JSON, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sample(), YAML); err != nil {
		t.Fatal(err)
	}
	var got map[string]map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Output is not yaml: %v\n%s", err, buf.String())
	}
	server := got["server"]
	if server["login"] != "me" || server["autoaway"] != 15 || server["upnp"] != true {
		t.Errorf("Got %v", server)
	}
	if v, ok := server["away"]; !ok || v != nil {
		t.Errorf("None should be null, got %v", v)
	}
	if !reflect.DeepEqual(server["server"], []any{"server.slsknet.org", 2242}) {
		t.Errorf("Got server %v", server["server"])
	}
}

func TestWriteTOMLOmitsNone(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sample(), TOML); err != nil {
		t.Fatal(err)
	}
	var got map[string]map[string]any
	if err := toml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Output is not toml: %v\n%s", err, buf.String())
	}
	server := got["server"]
	if _, ok := server["away"]; ok {
		t.Error("None should be omitted")
	}
	if server["autoaway"] != int64(15) {
		t.Errorf("Got autoaway %v (%T)", server["autoaway"], server["autoaway"])
	}
	if !reflect.DeepEqual(got["words"]["censored"], []any{"a"}) {
		t.Errorf("Got censored %v", got["words"]["censored"])
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sample(), JSON); err != nil {
		t.Fatal(err)
	}
	var got map[string]map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Output is not json: %v\n%s", err, buf.String())
	}
	if got["server"]["autoaway"] != float64(15) {
		t.Errorf("Got autoaway %v", got["server"]["autoaway"])
	}
	if !reflect.DeepEqual(got["words"]["censored"], []any{"a", nil}) {
		t.Errorf("Got censored %v", got["words"]["censored"])
	}
}

func TestWriteUnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, sample(), Format("ini")); err == nil {
		t.Error("Expected error")
	}
}
