package config

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadOps are the file events that should trigger a reload. Editors
// and provisioning tools variously write in place, create fresh, or
// rename a temp file over the target.
const reloadOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

// Watcher watches one configuration file and calls typed handlers when
// it changes. The file is parsed fresh on every change, never cached.
type Watcher[T any] struct {
	path     string
	debounce time.Duration
	load     func(path string) (T, error)
	onError  func(error)
	logger   *slog.Logger

	mu       sync.Mutex
	handlers map[int]func(T)
	nextID   int

	fs       *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption[T any] func(*Watcher[T])

// WithDebounce sets how long the watcher waits after the last file
// event before reloading. Default is 1500ms.
func WithDebounce[T any](d time.Duration) WatcherOption[T] {
	return func(w *Watcher[T]) {
		w.debounce = d
	}
}

// WithErrorHandler sets a callback for load failures. Without one,
// failures are only logged.
func WithErrorHandler[T any](handler func(error)) WatcherOption[T] {
	return func(w *Watcher[T]) {
		w.onError = handler
	}
}

// NewConfigWatcher builds a watcher for path. The load function runs
// on every change so handlers always see the current file contents.
func NewConfigWatcher[T any](
	path string,
	load func(path string) (T, error),
	logger *slog.Logger,
	opts ...WatcherOption[T],
) *Watcher[T] {
	w := &Watcher[T]{
		path:     path,
		debounce: 1500 * time.Millisecond,
		load:     load,
		handlers: make(map[int]func(T)),
		logger:   logger,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OnReload registers a handler for config changes and returns a
// function that removes it again.
func (w *Watcher[T]) OnReload(handler func(T)) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.handlers[id] = handler
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.handlers, id)
		w.mu.Unlock()
	}
}

// Start begins watching the file.
func (w *Watcher[T]) Start() error {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if addErr := fs.Add(w.path); addErr != nil {
		fs.Close()
		return addErr
	}
	w.fs = fs

	w.logger.Info("Config watcher started", "path", w.path, "debounce", w.debounce)
	go w.run()
	return nil
}

// Stop shuts the watcher down. Safe to call more than once.
func (w *Watcher[T]) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		if w.fs != nil {
			err = w.fs.Close()
		}
	})
	return err
}

func (w *Watcher[T]) run() {
	// The debounce timer starts disarmed. File events arm it, and the
	// reload fires one interval after the burst ends.
	debounce := time.NewTimer(w.debounce)
	disarm(debounce)
	defer debounce.Stop()

	for {
		select {
		case <-w.done:
			w.logger.Debug("Config watcher stopped")
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&reloadOps == 0 {
				continue
			}

			// Atomic savers write a temp file and rename it over the
			// target; the watch stays on the dead inode. Re-arm it on
			// the path before the debounce fires.
			if event.Op&(fsnotify.Rename|fsnotify.Remove) != 0 {
				if addErr := w.fs.Add(w.path); addErr != nil {
					w.logger.Warn("Failed to re-watch replaced file", "error", addErr)
					continue
				}
			}

			w.logger.Debug("Config file change detected", "op", event.Op.String())
			disarm(debounce)
			debounce.Reset(w.debounce)

		case <-debounce.C:
			w.logger.Info("Config file changed, loading and notifying handlers")
			w.reload()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", "error", err)
		}
	}
}

// disarm stops a timer and clears any expiry already in its channel,
// so a following Reset arms it cleanly.
func disarm(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

// reload parses the file and hands the result to every handler. All
// handlers observe the same snapshot.
func (w *Watcher[T]) reload() {
	cfg, err := w.load(w.path)
	if err != nil {
		w.logger.Warn("Failed to load config", "error", err)
		if w.onError != nil {
			w.onError(err)
		}
		return
	}

	w.mu.Lock()
	handlers := make([]func(T), 0, len(w.handlers))
	for _, h := range w.handlers {
		handlers = append(handlers, h)
	}
	w.mu.Unlock()

	for _, handler := range handlers {
		handler(cfg)
	}
}
