package concrete

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/butter-bot-machines/slskconf/pkg/logging"
	"github.com/butter-bot-machines/slskconf/pkg/logging/memory"
	"github.com/butter-bot-machines/slskconf/pkg/watcher"
)

func expectCall(t *testing.T, calls <-chan string, want string) {
	t.Helper()
	select {
	case got := <-calls:
		if got != want {
			t.Errorf("Got call %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for %q", want)
	}
}

func expectNoCall(t *testing.T, calls <-chan string) {
	t.Helper()
	select {
	case got := <-calls:
		t.Errorf("Unexpected call %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebouncer(t *testing.T) {
	t.Run("coalesces a burst", func(t *testing.T) {
		mock := clock.NewMock()
		d := newDebouncer(100*time.Millisecond, time.Second, mock)
		defer d.Stop()
		calls := make(chan string, 4)

		d.Debounce("k", func() { calls <- "first" })
		mock.Add(50 * time.Millisecond)
		d.Debounce("k", func() { calls <- "second" })
		mock.Add(99 * time.Millisecond)
		expectNoCall(t, calls)

		mock.Add(time.Millisecond)
		expectCall(t, calls, "second")
		expectNoCall(t, calls)
	})

	t.Run("honours max delay", func(t *testing.T) {
		mock := clock.NewMock()
		d := newDebouncer(100*time.Millisecond, 250*time.Millisecond, mock)
		defer d.Stop()
		calls := make(chan string, 4)

		for i := 0; i < 3; i++ {
			d.Debounce("k", func() { calls <- "burst" })
			mock.Add(90 * time.Millisecond)
		}
		// events at 0, 90 and 180; the clock is now at 270
		expectCall(t, calls, "burst")
	})

	t.Run("keys are independent", func(t *testing.T) {
		mock := clock.NewMock()
		d := newDebouncer(100*time.Millisecond, 0, mock)
		defer d.Stop()
		calls := make(chan string, 4)

		d.Debounce("a", func() { calls <- "a" })
		mock.Add(60 * time.Millisecond)
		d.Debounce("b", func() { calls <- "b" })
		mock.Add(40 * time.Millisecond)
		expectCall(t, calls, "a")
		mock.Add(60 * time.Millisecond)
		expectCall(t, calls, "b")
	})

	t.Run("stop cancels pending calls", func(t *testing.T) {
		mock := clock.NewMock()
		d := newDebouncer(100*time.Millisecond, time.Second, mock)
		calls := make(chan string, 4)

		d.Debounce("k", func() { calls <- "k" })
		d.Stop()
		d.Stop()
		d.Debounce("k", func() { calls <- "late" })
		mock.Add(time.Second)
		expectNoCall(t, calls)
	})

	t.Run("stop waits for running calls", func(t *testing.T) {
		mock := clock.NewMock()
		d := newDebouncer(100*time.Millisecond, 0, mock)
		started := make(chan string, 1)
		release := make(chan struct{})

		d.Debounce("k", func() {
			started <- "k"
			<-release
		})
		mock.Add(100 * time.Millisecond)
		expectCall(t, started, "k")

		stopped := make(chan struct{})
		go func() {
			d.Stop()
			close(stopped)
		}()
		select {
		case <-stopped:
			t.Fatal("Stop returned while a call was running")
		case <-time.After(50 * time.Millisecond):
		}

		close(release)
		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			t.Fatal("Stop did not return after the call finished")
		}
	})
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")
	if err := os.WriteFile(path, []byte("[server]\n"), 0600); err != nil {
		t.Fatalf("Failed to create settings file: %v", err)
	}

	calls := make(chan string, 10)
	log := memory.NewLogger(logging.LevelDebug, nil)
	handler := watcher.HandlerFunc(func(p string) error {
		calls <- p
		return errors.New("reload failed")
	})
	w, err := NewWatcher(path, handler, Options{
		Debounce: 20 * time.Millisecond,
		MaxDelay: 200 * time.Millisecond,
		Logger:   log,
	})
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer w.Stop()

	t.Run("other files are ignored", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "config.alias"), []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
		expectNoCall(t, calls)
	})

	t.Run("file modification", func(t *testing.T) {
		if err := os.WriteFile(path, []byte("[server]\nlogin = me\n"), 0600); err != nil {
			t.Fatal(err)
		}
		expectCall(t, calls, path)
	})

	t.Run("file replacement", func(t *testing.T) {
		tmp := path + ".new"
		if err := os.WriteFile(tmp, []byte("[server]\nlogin = you\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if err := os.Rename(tmp, path); err != nil {
			t.Fatal(err)
		}
		expectCall(t, calls, path)
	})

	deadline := time.Now().Add(time.Second)
	for len(log.Find(logging.LevelError, "failed to handle settings change")) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if len(log.Find(logging.LevelError, "failed to handle settings change")) == 0 {
		t.Error("Handler error was not logged")
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Second Stop failed: %v", err)
	}
}

func TestNewWatcherErrors(t *testing.T) {
	handler := watcher.HandlerFunc(func(string) error { return nil })
	tests := []struct {
		name    string
		path    string
		handler watcher.EventHandler
	}{
		{"empty path", "", handler},
		{"nil handler", filepath.Join(t.TempDir(), "config"), nil},
		{"missing directory", filepath.Join(t.TempDir(), "missing", "config"), handler},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewWatcher(tt.path, tt.handler, Options{Logger: memory.NewLogger(logging.LevelDebug, nil)})
			if err == nil {
				w.Stop()
				t.Error("Expected error")
			}
		})
	}
}
