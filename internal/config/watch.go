package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/dapviz/internal/config/loader"
	"github.com/dshills/dapviz/internal/logging"
)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 100 * time.Millisecond

// ChangeHandler receives a reloaded config and the dot paths that changed.
type ChangeHandler func(cfg Config, changed []string)

// Watcher reloads a config file whenever it changes on disk.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	handler  ChangeHandler
	debounce time.Duration
	environ  func() []string
	logger   *slog.Logger

	mu      sync.Mutex
	current Config

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatchLogger sets the logger for reload failures.
func WithWatchLogger(l *slog.Logger) WatchOption {
	return func(w *Watcher) {
		w.logger = l
	}
}

// WithEnviron fixes the environment applied on every reload.
func WithEnviron(env []string) WatchOption {
	return func(w *Watcher) {
		w.environ = func() []string { return env }
	}
}

// Watch starts watching path. initial is the config already in use; the
// handler only runs when a reload produces different settings. A file that
// fails to load or validate is logged and the current config is kept.
func Watch(path string, initial Config, handler ChangeHandler, opts ...WatchOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// The directory is watched so atomic rename-on-save is seen.
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:     abs,
		fsw:      fsw,
		handler:  handler,
		debounce: DefaultDebounce,
		environ:  os.Environ,
		current:  initial,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logging.WithComponent(w.logger, "config")

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Current returns the most recently applied config.
func (w *Watcher) Current() Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "path", w.path, "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadWith(w.path, w.environ())
	if err != nil {
		w.logger.Warn("config reload failed, keeping current settings", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	changed := loader.ChangedPaths(w.current.Map(), cfg.Map())
	if len(changed) > 0 {
		w.current = cfg
	}
	w.mu.Unlock()

	if len(changed) == 0 {
		return
	}
	w.logger.Info("config reloaded", "path", w.path, "changed", changed)
	if w.handler != nil {
		w.handler(cfg, changed)
	}
}
