package schema

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/butter-bot-machines/slskconf/pkg/value"
)

func TestDefaults(t *testing.T) {
	r := Defaults("/data", "/home/user")

	t.Run("sections in declaration order", func(t *testing.T) {
		want := []string{"server", "transfers", "userinfo", "words", "logging", "privatechat", "columns",
			"searches", "ui", "private_rooms", "urls", "interests", "ticker", "players", "notifications", "plugins"}
		got := r.Sections()
		if len(got) != len(want) {
			t.Fatalf("Got %d sections, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("Section %d = %s, want %s", i, got[i], want[i])
			}
		}
	})

	t.Run("structured defaults", func(t *testing.T) {
		o, ok := r.Lookup("server", "server")
		if !ok {
			t.Fatal("server.server not registered")
		}
		want := value.Pair(value.Text("server.slsknet.org"), value.Int(2242))
		if !o.Default.Equal(want) {
			t.Errorf("Got %s, want %s", o.Default, want)
		}
		if o.Kind != value.KindPair || o.RawText || !o.Required {
			t.Errorf("Unexpected attributes: %+v", o)
		}
	})

	t.Run("path defaults", func(t *testing.T) {
		tests := []struct {
			section, option, want string
		}{
			{"transfers", "incompletedir", filepath.Join("/data", "incompletefiles")},
			{"transfers", "downloaddir", filepath.Join("/home/user", "nicotine-downloads")},
			{"logging", "roomlogsdir", filepath.Join("/data", "logs", "rooms")},
		}
		for _, tt := range tests {
			o, _ := r.Lookup(tt.section, tt.option)
			if got, _ := o.Default.Text(); got != tt.want {
				t.Errorf("%s.%s = %q, want %q", tt.section, tt.option, got, tt.want)
			}
		}
	})

	t.Run("download filter pattern", func(t *testing.T) {
		o, _ := r.Lookup("transfers", "downloadfilters")
		last, _ := o.Default.Index(4)
		pattern, _ := last.Index(0)
		want := `albumart(_{........-....-....-....-............}_)?(_?(large|small))?\.jpg`
		if got, _ := pattern.Text(); got != want {
			t.Errorf("Got %q, want %q", got, want)
		}
	})

	t.Run("raw text options", func(t *testing.T) {
		raw := [][2]string{
			{"server", "login"}, {"server", "passw"}, {"transfers", "customban"},
			{"userinfo", "descr"}, {"logging", "log_timestamp"}, {"ui", "chatme"},
			{"ui", "maximized"}, {"words", "censorfill"}, {"players", "default"},
		}
		for _, k := range raw {
			o, ok := r.Lookup(k[0], k[1])
			if !ok || !o.RawText {
				t.Errorf("%s.%s should be raw text", k[0], k[1])
			}
		}
		structured := [][2]string{{"ui", "modes_order"}, {"ui", "width"}, {"words", "autoreplaced"}, {"transfers", "geoblockcc"}}
		for _, k := range structured {
			if o, _ := r.Lookup(k[0], k[1]); o.RawText {
				t.Errorf("%s.%s should be structured", k[0], k[1])
			}
		}
	})

	t.Run("external options", func(t *testing.T) {
		count := 0
		for _, o := range r.Section("transfers") {
			if o.External {
				count++
			}
		}
		if count != 11 {
			t.Errorf("Got %d external options, want 11", count)
		}
	})

	t.Run("may be empty", func(t *testing.T) {
		if o, _ := r.Lookup("userinfo", "pic"); !o.MayBeEmpty {
			t.Error("userinfo.pic should tolerate empty")
		}
		if o, _ := r.Lookup("server", "autoreply"); !o.MayBeEmpty {
			t.Error("server.autoreply should tolerate empty")
		}
		if o, _ := r.Lookup("server", "login"); o.MayBeEmpty {
			t.Error("server.login should not tolerate empty")
		}
	})

	t.Run("defaults round trip through literal syntax", func(t *testing.T) {
		for _, s := range r.Sections() {
			for _, o := range r.Section(s) {
				if o.RawText {
					continue
				}
				got, err := value.Parse(value.Format(o.Default))
				if err != nil || !got.Equal(o.Default) {
					t.Errorf("%s.%s: round trip = %s, %v", s, o.Name, got, err)
				}
			}
		}
	})
}

func TestRegistry(t *testing.T) {
	r := Defaults(t.TempDir(), t.TempDir())

	t.Run("tolerates", func(t *testing.T) {
		tests := []struct {
			section, option string
			want            bool
		}{
			{"searches", "filter", true},
			{"plugins", "anything", true},
			{"server", "bogus", false},
			{"nosuch", "filter", false},
		}
		for _, tt := range tests {
			if got := r.Tolerates(tt.section, tt.option); got != tt.want {
				t.Errorf("Tolerates(%s, %s) = %v, want %v", tt.section, tt.option, got, tt.want)
			}
		}
	})

	t.Run("check", func(t *testing.T) {
		if _, err := r.Check("nosuch", "x", value.None()); !errors.Is(err, ErrUnknownSection) {
			t.Errorf("Got %v, want ErrUnknownSection", err)
		}
		if _, err := r.Check("server", "x", value.None()); !errors.Is(err, ErrUnknownOption) {
			t.Errorf("Got %v, want ErrUnknownOption", err)
		}
		if _, err := r.Check("server", "login", value.Int(1)); !errors.Is(err, ErrKindMismatch) {
			t.Errorf("Got %v, want ErrKindMismatch", err)
		}
		if _, err := r.Check("server", "firewalled", value.Bool(true)); err != nil {
			t.Errorf("Boolean for a numeric flag should pass: %v", err)
		}
		if _, err := r.Check("server", "portrange", value.Ints(1, 2)); err != nil {
			t.Errorf("List for a pair should pass: %v", err)
		}
		if _, err := r.Check("plugins", "np_format", value.Text("x")); err != nil {
			t.Errorf("Tolerated option should pass: %v", err)
		}
	})

	t.Run("duplicate registration", func(t *testing.T) {
		err := r.Register(Option{Section: "server", Name: "login", Default: value.Text("")})
		if !errors.Is(err, ErrDuplicateOption) {
			t.Errorf("Got %v, want ErrDuplicateOption", err)
		}
	})

	t.Run("values are copies", func(t *testing.T) {
		vals := r.Values()
		vals["server"]["login"] = value.Text("changed")
		if o, _ := r.Lookup("server", "login"); !o.Default.Equal(value.Text("")) {
			t.Errorf("Registry default mutated: %s", o.Default)
		}
	})
}
