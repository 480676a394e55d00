package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func startWatcher(t *testing.T, path string, debounce time.Duration, opts ...WatcherOption[Runtime]) *Watcher[Runtime] {
	t.Helper()
	opts = append(opts, WithDebounce[Runtime](debounce))
	w := NewConfigWatcher(path, LoadRuntime, newTestLogger(), opts...)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("watcher.Stop failed: %v", err)
		}
	})
	// Wait for watcher to initialize
	time.Sleep(100 * time.Millisecond)
	return w
}

func TestConfigWatcher_ReloadsTransformDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "[transform]\nrotation = 0\n")

	received := make(chan Runtime, 1)
	w := NewConfigWatcher(path, LoadRuntime, newTestLogger(), WithDebounce[Runtime](50*time.Millisecond))
	w.OnReload(func(rt Runtime) { received <- rt })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	time.Sleep(100 * time.Millisecond)

	writeConfig(t, path, "[transform]\nrotation = 90\nflip_vertical = true\n\n[logging]\nlevel = \"debug\"\n")

	select {
	case rt := <-received:
		if rt.Transform.Rotation != 90 || !rt.Transform.FlipVertical {
			t.Errorf("transform = %+v, want rotation 90 with vertical flip", rt.Transform)
		}
		if rt.Logging.Level != "debug" {
			t.Errorf("logging level = %q, want debug", rt.Logging.Level)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
}

func TestConfigWatcher_RenameOverSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, "[transform]\nrotation = 0\n")

	received := make(chan Runtime, 4)
	w := startWatcher(t, path, 50*time.Millisecond)
	w.OnReload(func(rt Runtime) { received <- rt })

	tmp := filepath.Join(dir, ".config.toml.swp")
	writeConfig(t, tmp, "[transform]\nrotation = 270\n")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case rt := <-received:
		if rt.Transform.Rotation != 270 {
			t.Errorf("rotation = %d, want 270", rt.Transform.Rotation)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload after rename")
	}
}

func TestConfigWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, "")

	var count atomic.Int32
	w := startWatcher(t, path, 50*time.Millisecond)
	w.OnReload(func(Runtime) { count.Add(1) })

	writeConfig(t, filepath.Join(dir, "other.toml"), "[transform]\nrotation = 90\n")
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("expected 0 reloads for sibling file, got %d", got)
	}
}

func TestConfigWatcher_MultipleHandlers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "")

	var count atomic.Int32
	var mu sync.Mutex
	var seen []Runtime

	w := startWatcher(t, path, 50*time.Millisecond)
	for range 3 {
		w.OnReload(func(rt Runtime) {
			count.Add(1)
			mu.Lock()
			seen = append(seen, rt)
			mu.Unlock()
		})
	}

	writeConfig(t, path, "[transform]\nflip_horizontal = true\n")
	time.Sleep(300 * time.Millisecond)

	if got := count.Load(); got != 3 {
		t.Errorf("expected 3 handlers called, got %d", got)
	}
	mu.Lock()
	defer mu.Unlock()
	for i, rt := range seen {
		if !rt.Transform.FlipHorizontal {
			t.Errorf("handler %d got wrong config: %+v", i, rt)
		}
	}
}

func TestConfigWatcher_Unsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "")

	var count1, count2 atomic.Int32
	w := startWatcher(t, path, 50*time.Millisecond)
	w.OnReload(func(Runtime) { count1.Add(1) })
	unsub := w.OnReload(func(Runtime) { count2.Add(1) })

	writeConfig(t, path, "[transform]\nrotation = 90\n")
	time.Sleep(250 * time.Millisecond)
	unsub()
	writeConfig(t, path, "[transform]\nrotation = 180\n")
	time.Sleep(250 * time.Millisecond)

	if got := count1.Load(); got != 2 {
		t.Errorf("handler1: expected 2 calls, got %d", got)
	}
	if got := count2.Load(); got != 1 {
		t.Errorf("handler2: expected 1 call, got %d", got)
	}
}

func TestConfigWatcher_ErrorHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "")

	errs := make(chan error, 1)
	reloads := make(chan Runtime, 1)
	w := startWatcher(t, path, 50*time.Millisecond, WithErrorHandler[Runtime](func(err error) {
		errs <- err
	}))
	w.OnReload(func(rt Runtime) { reloads <- rt })

	writeConfig(t, path, "invalid toml [[[")

	select {
	case <-errs:
	case <-reloads:
		t.Fatal("reload handler should not be called on error")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestConfigWatcher_Debounce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "")

	var count, last atomic.Int32
	w := startWatcher(t, path, 200*time.Millisecond)
	w.OnReload(func(rt Runtime) {
		count.Add(1)
		last.Store(int32(rt.Transform.Rotation))
	})

	for i := 1; i <= 5; i++ {
		writeConfig(t, path, fmt.Sprintf("[transform]\nrotation = %d\n", i*10))
		time.Sleep(50 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("expected 1 debounced call, got %d", got)
	}
	if got := last.Load(); got != 50 {
		t.Errorf("expected final rotation 50, got %d", got)
	}
}

func TestConfigWatcher_Stop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "")

	var count atomic.Int32
	w := NewConfigWatcher(path, LoadRuntime, newTestLogger(), WithDebounce[Runtime](50*time.Millisecond))
	w.OnReload(func(Runtime) { count.Add(1) })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, path, "[transform]\nrotation = 90\n")
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("expected 0 calls after stop, got %d", got)
	}
	if w.Path() != path {
		t.Errorf("Path() = %q, want %q", w.Path(), path)
	}
}
