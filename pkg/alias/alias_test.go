package alias

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/butter-bot-machines/slskconf/pkg/pickle"
)

func TestAdd(t *testing.T) {
	tests := []struct {
		name    string
		start   Set
		input   string
		want    string
		changed bool
	}{
		{"define", Set{}, "np /now playing", "Alias np: /now playing\n", true},
		{"replace", Set{"np": "old"}, "np new", "Alias np: new\n", true},
		{"lookup", Set{"np": "/now"}, "np", "Alias np: /now\n", false},
		{"missing", Set{}, "np", "No such alias (np)\n", false},
		{"reserved alias", Set{}, "alias x", "I will not alias that!\n", false},
		{"reserved unalias", Set{}, "unalias x", "I will not alias that!\n", false},
		{"list", Set{"b": "2", "a": "1"}, "", "\nAliases:\na: 1\nb: 2\n\n", false},
		{"list empty", Set{}, "", "\nAliases:\n\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := tt.start.Add(tt.input)
			if got != tt.want {
				t.Errorf("Got %q, want %q", got, tt.want)
			}
			if changed != tt.changed {
				t.Errorf("Changed = %v, want %v", changed, tt.changed)
			}
		})
	}
}

func TestRemove(t *testing.T) {
	s := Set{"np": "/now playing"}

	msg, changed := s.Remove("np")
	if msg != "Removed alias np: /now playing\n" || !changed {
		t.Errorf("Got %q, %v", msg, changed)
	}
	if _, ok := s["np"]; ok {
		t.Error("Alias still present")
	}

	msg, changed = s.Remove("np")
	if msg != "No such alias (np)\n" || changed {
		t.Errorf("Got %q, %v", msg, changed)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.alias")
	want := Set{"np": "/now playing", "w": "/whois"}
	if err := want.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Got mode %v, want 0600", info.Mode().Perm())
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Alias %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestLoadRejectsCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.alias")
	if err := os.WriteFile(path, []byte("cos\nsystem\n(S'touch /tmp/pwned'\ntR."), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, pickle.ErrForbidden) {
		t.Errorf("Got %v, want ErrForbidden", err)
	}
}

func TestLoadRejectsNonText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.alias")
	if err := os.WriteFile(path, []byte("\x80\x02}X\x01\x00\x00\x00aK\x01s."), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for non-text expansion")
	}
}
