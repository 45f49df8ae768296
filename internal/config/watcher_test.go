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

	"github.com/pelletier/go-toml/v2"
)

// watchedConfig is the minimal document the watcher tests reload.
type watchedConfig struct {
	Name  string `toml:"name"`
	Value int    `toml:"value"`
}

func loadWatchedConfig(path string) (watchedConfig, error) {
	var cfg watchedConfig
	data, err := os.ReadFile(path)
	if err == nil {
		err = toml.Unmarshal(data, &cfg)
	}
	return cfg, err
}

// newTestLogger keeps watcher noise out of test output; only errors
// surface.
func newTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelError}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// rewriteConfig overwrites a config file in place.
func rewriteConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// startWatcher starts w, registers its shutdown, and waits for the
// inotify watch to arm before the test writes to the file.
func startWatcher(t *testing.T, w *Watcher[watchedConfig]) {
	t.Helper()
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("watcher.Stop failed: %v", err)
		}
	})
	time.Sleep(100 * time.Millisecond)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "name = \"initial\"\nvalue = 1\n")

	received := make(chan watchedConfig, 1)
	w := NewConfigWatcher(path, loadWatchedConfig, newTestLogger(),
		WithDebounce[watchedConfig](50*time.Millisecond))
	w.OnReload(func(cfg watchedConfig) {
		received <- cfg
	})
	startWatcher(t, w)

	rewriteConfig(t, path, "name = \"updated\"\nvalue = 42\n")

	select {
	case cfg := <-received:
		if cfg.Name != "updated" || cfg.Value != 42 {
			t.Errorf("got %+v, want name=updated value=42", cfg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}

func TestWatcherLoadsFreshOnEachChange(t *testing.T) {
	path := writeConfig(t, "value = 1\n")

	var loads atomic.Int32
	counting := func(p string) (watchedConfig, error) {
		loads.Add(1)
		return loadWatchedConfig(p)
	}

	received := make(chan watchedConfig, 10)
	w := NewConfigWatcher(path, counting, newTestLogger(),
		WithDebounce[watchedConfig](50*time.Millisecond))
	w.OnReload(func(cfg watchedConfig) {
		received <- cfg
	})
	startWatcher(t, w)

	rewriteConfig(t, path, "value = 10\n")
	<-received

	time.Sleep(100 * time.Millisecond)
	rewriteConfig(t, path, "value = 20\n")
	cfg := <-received

	if cfg.Value != 20 {
		t.Errorf("value = %d, want 20", cfg.Value)
	}
	if got := loads.Load(); got < 2 {
		t.Errorf("loader ran %d times, want at least 2", got)
	}
}

func TestWatcherNotifiesEveryHandler(t *testing.T) {
	path := writeConfig(t, "name = \"test\"\nvalue = 1\n")

	var mu sync.Mutex
	var seen []watchedConfig

	w := NewConfigWatcher(path, loadWatchedConfig, newTestLogger(),
		WithDebounce[watchedConfig](50*time.Millisecond))
	for n := 0; n < 3; n++ {
		w.OnReload(func(cfg watchedConfig) {
			mu.Lock()
			seen = append(seen, cfg)
			mu.Unlock()
		})
	}
	startWatcher(t, w)

	rewriteConfig(t, path, "name = \"new\"\nvalue = 2\n")
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("%d handler calls, want 3", len(seen))
	}
	// Every handler sees the same snapshot.
	for i, cfg := range seen {
		if cfg.Name != "new" || cfg.Value != 2 {
			t.Errorf("handler %d got %+v", i, cfg)
		}
	}
}

func TestWatcherUnsubscribe(t *testing.T) {
	path := writeConfig(t, "value = 1\n")

	var keptValue, removedValue, removedCalls atomic.Int32
	w := NewConfigWatcher(path, loadWatchedConfig, newTestLogger(),
		WithDebounce[watchedConfig](50*time.Millisecond))
	w.OnReload(func(cfg watchedConfig) {
		keptValue.Store(int32(cfg.Value))
	})
	unsub := w.OnReload(func(cfg watchedConfig) {
		removedValue.Store(int32(cfg.Value))
		removedCalls.Add(1)
	})
	startWatcher(t, w)

	rewriteConfig(t, path, "value = 10\n")
	time.Sleep(200 * time.Millisecond)

	unsub()

	rewriteConfig(t, path, "value = 20\n")
	time.Sleep(200 * time.Millisecond)

	if got := keptValue.Load(); got != 20 {
		t.Errorf("kept handler saw %d, want 20", got)
	}
	if got := removedCalls.Load(); got != 1 {
		t.Errorf("removed handler ran %d times, want 1", got)
	}
	if got := removedValue.Load(); got != 10 {
		t.Errorf("removed handler saw %d, want 10", got)
	}
}

func TestWatcherErrorHandler(t *testing.T) {
	path := writeConfig(t, "name = \"valid\"\nvalue = 1\n")

	errs := make(chan error, 1)
	reloads := make(chan watchedConfig, 1)

	w := NewConfigWatcher(
		path,
		loadWatchedConfig,
		newTestLogger(),
		WithDebounce[watchedConfig](50*time.Millisecond),
		WithErrorHandler[watchedConfig](func(err error) {
			errs <- err
		}),
	)
	w.OnReload(func(cfg watchedConfig) {
		reloads <- cfg
	})
	startWatcher(t, w)

	rewriteConfig(t, path, "invalid toml [[[")

	select {
	case <-errs:
	case <-reloads:
		t.Fatal("reload handler ran on a parse error")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	path := writeConfig(t, "value = 0\n")

	var calls, last atomic.Int32
	w := NewConfigWatcher(path, loadWatchedConfig, newTestLogger(),
		WithDebounce[watchedConfig](200*time.Millisecond))
	w.OnReload(func(cfg watchedConfig) {
		calls.Add(1)
		last.Store(int32(cfg.Value))
	})
	startWatcher(t, w)

	// Five writes inside one debounce window collapse to one reload.
	for i := 1; i <= 5; i++ {
		rewriteConfig(t, path, fmt.Sprintf("value = %d\n", i))
		time.Sleep(50 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("%d reloads for the burst, want 1", got)
	}
	if got := last.Load(); got != 5 {
		t.Errorf("final value %d, want 5", got)
	}
}

func TestWatcherConcurrentSubscribe(t *testing.T) {
	path := writeConfig(t, "name = \"test\"\n")

	w := NewConfigWatcher(path, loadWatchedConfig, newTestLogger(),
		WithDebounce[watchedConfig](10*time.Millisecond))
	startWatcher(t, w)

	var wg sync.WaitGroup
	for n := 0; n < 100; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := w.OnReload(func(_ watchedConfig) {})
			time.Sleep(time.Millisecond)
			unsub()
		}()
	}

	// Keep reloads flowing while handlers come and go.
	for i := 0; i < 10; i++ {
		rewriteConfig(t, path, fmt.Sprintf("value = %d\n", i))
		time.Sleep(20 * time.Millisecond)
	}
	wg.Wait()
}

func TestWatcherSurvivesAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	rewriteConfig(t, path, "value = 1\n")

	received := make(chan watchedConfig, 1)
	w := NewConfigWatcher(path, loadWatchedConfig, newTestLogger(),
		WithDebounce[watchedConfig](50*time.Millisecond))
	w.OnReload(func(cfg watchedConfig) {
		received <- cfg
	})
	startWatcher(t, w)

	// Save the way atomic writers do: temp file, then rename over the
	// target.
	tmp := filepath.Join(dir, "config.toml.tmp")
	rewriteConfig(t, tmp, "value = 7\n")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if cfg.Value != 7 {
			t.Errorf("value = %d, want 7", cfg.Value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload after rename")
	}

	// The watch must survive the replacement: a plain write afterwards
	// still reloads.
	rewriteConfig(t, path, "value = 8\n")
	select {
	case cfg := <-received:
		if cfg.Value != 8 {
			t.Errorf("value = %d, want 8", cfg.Value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload after rewatch")
	}
}

func TestWatcherStop(t *testing.T) {
	path := writeConfig(t, "value = 1\n")

	var calls atomic.Int32
	w := NewConfigWatcher(path, loadWatchedConfig, newTestLogger(),
		WithDebounce[watchedConfig](50*time.Millisecond))
	w.OnReload(func(_ watchedConfig) {
		calls.Add(1)
	})

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}
	// A second Stop is a no-op.
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop returned %v", err)
	}

	rewriteConfig(t, path, "value = 99\n")
	time.Sleep(200 * time.Millisecond)

	if got := calls.Load(); got != 0 {
		t.Errorf("%d reloads after Stop, want 0", got)
	}
}
