package backup

import (
	"archive/tar"
	stdbzip2 "compress/bzip2"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func mockClock() *clock.Mock {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local))
	return clk
}

func readArchive(t *testing.T, path string) map[string]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	out := make(map[string]string)
	tr := tar.NewReader(stdbzip2.NewReader(f))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Reading archive: %v", err)
		}
		b, err := io.ReadAll(tr)
		if err != nil {
			t.Fatal(err)
		}
		out[hdr.Name] = string(b)
	}
	return out
}

func TestName(t *testing.T) {
	clk := mockClock()
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"default", "", "/cfg/config backup 2024-03-09 14:05:07.tar.bz2"},
		{"suffix added", "/tmp/b", "/tmp/b.tar.bz2"},
		{"suffix kept", "/tmp/b.tar.bz2", "/tmp/b.tar.bz2"},
		{"other extension", "/tmp/b.tar", "/tmp/b.tar.tar.bz2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Name("/cfg/config", tt.filename, clk); got != tt.want {
				t.Errorf("Got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, "config")
	if err := os.WriteFile(settings, []byte("[server]\nlogin = 'me'\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(settings+".alias", []byte("alias data"), 0600); err != nil {
		t.Fatal(err)
	}

	name, err := Write(settings, "", mockClock())
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !strings.HasSuffix(name, "config backup 2024-03-09 14:05:07.tar.bz2") {
		t.Errorf("Unexpected archive name %q", name)
	}

	members := readArchive(t, name)
	if got := members[MemberName(settings)]; got != "[server]\nlogin = 'me'\n" {
		t.Errorf("Settings member = %q", got)
	}
	if got := members[MemberName(settings+".alias")]; got != "alias data" {
		t.Errorf("Alias member = %q", got)
	}
	for m := range members {
		if strings.HasPrefix(m, "/") {
			t.Errorf("Member %q should be relative", m)
		}
	}
}

func TestWriteWithoutAliasFile(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, "config")
	if err := os.WriteFile(settings, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	name, err := Write(settings, filepath.Join(dir, "mine"), mockClock())
	if err != nil {
		t.Fatal(err)
	}
	if name != filepath.Join(dir, "mine.tar.bz2") {
		t.Errorf("Got %q", name)
	}
	if members := readArchive(t, name); len(members) != 1 {
		t.Errorf("Got %d members, want 1", len(members))
	}
}

func TestWriteRefusesExistingArchive(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, "config")
	if err := os.WriteFile(settings, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "b.tar.bz2")
	if err := os.WriteFile(target, []byte("keep me"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := Write(settings, target, mockClock())
	if !errors.Is(err, ErrExists) {
		t.Fatalf("Got %v, want ErrExists", err)
	}
	if !strings.Contains(err.Error(), target) {
		t.Errorf("Error %q should name the archive", err)
	}
	if b, _ := os.ReadFile(target); string(b) != "keep me" {
		t.Error("Existing archive was modified")
	}
}

func TestWriteMissingSettings(t *testing.T) {
	dir := t.TempDir()
	name, err := Write(filepath.Join(dir, "config"), "", mockClock())
	if !errors.Is(err, ErrMissingSettings) {
		t.Fatalf("Got %v, want ErrMissingSettings", err)
	}
	if _, err := os.Stat(name); !os.IsNotExist(err) {
		t.Error("No archive should be created")
	}
}
