package settingsfile

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kingrea/character-lock/internal/lock"
)

const defaultDebounce = 200 * time.Millisecond

// Logger records reload activity. It matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

// Watcher re-applies the settings file to a store whenever it changes. The
// file's overrides are layered on Base, so deleting a key falls back to the
// preset value rather than keeping the last one.
type Watcher struct {
	path     string
	base     lock.Settings
	store    *lock.Store
	logger   Logger
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// WatcherOption customizes Watcher construction.
type WatcherOption func(*Watcher)

// WithLogger injects a logger for reload messages.
func WithLogger(l Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = l
	}
}

// WithDebounce overrides the quiet period before a reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher prepares a watcher for path. base supplies values for keys the file leaves out.
func NewWatcher(path string, base lock.Settings, store *lock.Store, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		path:     filepath.Clean(path),
		base:     base,
		store:    store,
		debounce: defaultDebounce,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Reload reads the file once and updates the store. A missing file is a no-op.
func (w *Watcher) Reload() error {
	overrides, ok, err := Load(w.path)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	w.store.Update(overrides.ApplyTo(w.base))
	w.logf("settingsfile: applied %s", w.path)
	return nil
}

// Start watches the file's directory. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("settingsfile: new watcher: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return fmt.Errorf("settingsfile: watch %s: %w", dir, err)
	}
	w.watcher = fw
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true
	go w.run(ctx, fw, w.stopCh, w.doneCh)
	w.logf("settingsfile: watching %s", w.path)
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stopCh, doneCh, fw := w.stopCh, w.doneCh, w.watcher
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
	if err := fw.Close(); err != nil {
		w.logf("settingsfile: close watcher: %v", err)
	}
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	if ctx == nil {
		ctx = context.Background()
	}
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := w.Reload(); err != nil {
				w.logf("settingsfile: reload failed, keeping previous settings: %v", err)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logf("settingsfile: watch error: %v", err)
		}
	}
}

func (w *Watcher) logf(format string, args ...any) {
	if w.logger == nil {
		return
	}
	w.logger.Printf(format, args...)
}
