package pickle

import (
	"bytes"
	"errors"
	"math"
	"testing"

	perrors "github.com/butter-bot-machines/slskconf/pkg/errors"
	"github.com/butter-bot-machines/slskconf/pkg/value"
)

func TestUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want value.Value
	}{
		{
			name: "protocol 2 dict with memo",
			data: []byte("\x80\x02}q\x00X\x02\x00\x00\x00npq\x01X\x0c\x00\x00\x00/now playingq\x02s."),
			want: value.Mapping(map[string]value.Value{"np": value.Text("/now playing")}),
		},
		{
			name: "protocol 4 framed dict",
			data: []byte("\x80\x04\x95\n\x00\x00\x00\x00\x00\x00\x00}\x94\x8c\x01a\x94K\x01s."),
			want: value.Mapping(map[string]value.Value{"a": value.Int(1)}),
		},
		{
			name: "protocol 0 list",
			data: []byte("(lp0\nI1\naS'a'\np1\na."),
			want: value.List(value.Int(1), value.Text("a")),
		},
		{
			name: "protocol 0 booleans and unicode",
			data: []byte("(I01\nI00\nVcaf\\u00e9\ntp0\n."),
			want: value.Pair(value.Bool(true), value.Bool(false), value.Text("café")),
		},
		{
			name: "shared reference",
			data: []byte("\x80\x02]q\x00h\x00\x86q\x01."),
			want: value.Pair(value.List(), value.List()),
		},
		{
			name: "frozenset",
			data: []byte("\x80\x04(K\x01K\x02\x91."),
			want: value.Ints(1, 2),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Unmarshal(tt.data)
			if err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestUnmarshalForbidden(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"global and reduce", []byte("cos\nsystem\n(S'echo hi'\ntR.")},
		{"stack global", []byte("\x80\x04\x95\x00\x00\x00\x00\x00\x00\x00\x00\x8c\x02os\x94\x8c\x06system\x94\x93.")},
		{"reduce", []byte("\x80\x02N)R.")},
		{"build", []byte("\x80\x02}}b.")},
		{"new object", []byte("\x80\x02N)\x81.")},
		{"persistent id", []byte("\x80\x02K\x01Q.")},
		{"extension", []byte("\x80\x02\x82\x01.")},
		{"instance", []byte("(ios\nsystem\n.")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.data)
			if !errors.Is(err, ErrForbidden) {
				t.Errorf("Got %v, want ErrForbidden", err)
			}
			if !perrors.IsType(err, perrors.SecurityError) {
				t.Errorf("Got %v, want SecurityError", err)
			}
		})
	}
}

func TestUnmarshalMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"missing stop", []byte("\x80\x02N")},
		{"truncated string", []byte("\x80\x02X\x10\x00\x00\x00abc.")},
		{"recursive list", []byte("\x80\x02]q\x00h\x00a.")},
		{"unknown memo", []byte("\x80\x02h\x05.")},
		{"future protocol", []byte("\x80\x09N.")},
		{"list key", []byte("\x80\x02}]K\x01s.")},
		{"append to int", []byte("\x80\x02K\x01K\x02a.")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.data)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Got %v, want ErrMalformed", err)
			}
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	values := []value.Value{
		value.None(),
		value.Bool(true),
		value.Int(0),
		value.Int(-1),
		value.Int(255),
		value.Int(65535),
		value.Int(math.MaxInt32 + 1),
		value.Int(1 << 40),
		value.Int(-1 << 40),
		value.Int(math.MinInt64),
		value.Float(2.5),
		value.Text(""),
		value.Text("日本語 text"),
		value.List(),
		value.Pair(),
		value.Pair(value.Int(1)),
		value.Pair(value.Int(1), value.Int(2), value.Int(3), value.Int(4), value.Int(5)),
		value.Mapping(nil),
		value.List(
			value.List(value.Text("user"), value.Text("file.mp3"), value.Text("/downloads"), value.Text("Queued"),
				value.Int(1234), value.Int(0), value.None()),
		),
		value.Mapping(map[string]value.Value{
			"np":   value.Text("/now playing"),
			"deep": value.Mapping(map[string]value.Value{"x": value.Pair(value.Bool(false), value.None())}),
		}),
	}

	for _, v := range values {
		t.Run(v.String(), func(t *testing.T) {
			data := Encode(v)
			if !bytes.HasPrefix(data, []byte{0x80, Protocol}) {
				t.Errorf("Missing protocol header: %x", data[:2])
			}
			got, err := Unmarshal(data)
			if err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if !got.Equal(v) {
				t.Errorf("Got %s, want %s", got, v)
			}
		})
	}
}

func TestDecodeReader(t *testing.T) {
	var buf bytes.Buffer
	want := value.Strings("a", "b")
	if err := Write(&buf, want); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("Got %s, want %s", got, want)
	}
}

// sharedLists builds a stream of nested lists where each level holds two
// memo references to the level below.
func sharedLists(levels int) []byte {
	data := []byte("\x80\x02]q\x00")
	for i := 1; i <= levels; i++ {
		data = append(data, '(', 'h', byte(i-1), 'h', byte(i-1), 'l', 'q', byte(i))
	}
	return append(data, '.')
}

func TestUnmarshalSharedReferences(t *testing.T) {
	got, err := Unmarshal(sharedLists(2))
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	empty := value.List()
	inner := value.List(empty, empty)
	want := value.List(inner, inner)
	if !got.Equal(want) {
		t.Errorf("Got %s, want %s", got, want)
	}
}

func TestUnmarshalLimits(t *testing.T) {
	t.Run("expansion", func(t *testing.T) {
		data := sharedLists(40)
		if len(data) > 400 {
			t.Fatalf("Stream is %d bytes", len(data))
		}
		if _, err := Unmarshal(data); !errors.Is(err, ErrMalformed) {
			t.Errorf("Got %v, want ErrMalformed", err)
		}
	})

	t.Run("depth", func(t *testing.T) {
		data := []byte("\x80\x02")
		for i := 0; i < MaxDepth+1; i++ {
			data = append(data, ']')
		}
		for i := 0; i < MaxDepth; i++ {
			data = append(data, 'a')
		}
		data = append(data, '.')
		if _, err := Unmarshal(data); !errors.Is(err, ErrMalformed) {
			t.Errorf("Got %v, want ErrMalformed", err)
		}
	})
}
