package cache

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeFunc is called with the freshly loaded mapping after the cache file changes.
type ChangeFunc func(entries map[string]string)

// Watcher keeps an in-memory copy of the cache that follows out-of-band edits
// to the backing file, such as a precompute run or a manual override made by
// another process.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu        sync.RWMutex
	current   map[string]string
	listeners []ChangeFunc
}

// NewWatcher loads the current mapping and starts watching the cache's directory.
// The directory is watched rather than the file because Save replaces the file by rename.
func NewWatcher(store *Store) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(store.Path())); err != nil {
		fw.Close() //nolint:errcheck
		return nil, err
	}

	w := &Watcher{
		store:    store,
		watcher:  fw,
		debounce: 200 * time.Millisecond,
	}
	w.reload()
	return w, nil
}

// OnChange registers a callback invoked after each successful reload.
func (w *Watcher) OnChange(fn ChangeFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Current returns a copy of the most recently loaded mapping. It is empty when
// no cache has been written yet.
func (w *Watcher) Current() map[string]string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.current == nil {
		return map[string]string{}
	}
	return maps.Clone(w.current)
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	target := filepath.Clean(w.store.Path())

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
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
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
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("cache watcher error", "path", target, "error", err)
		}
	}
}

// Reload re-reads the cache file now instead of waiting for the file event.
// Writers in the same process call it so their own reads see the write.
func (w *Watcher) Reload() {
	w.reload()
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) reload() {
	entries, err := w.store.Load()
	switch {
	case errors.Is(err, ErrNotFound):
		entries = map[string]string{}
	case err != nil:
		// Keep serving the last good mapping.
		slog.Warn("cache reload failed", "path", w.store.Path(), "error", err)
		return
	}

	w.mu.Lock()
	w.current = entries
	listeners := make([]ChangeFunc, len(w.listeners))
	copy(listeners, w.listeners)
	w.mu.Unlock()

	slog.Debug("cache reloaded", "path", w.store.Path(), "keys", len(entries))
	for _, fn := range listeners {
		fn(maps.Clone(entries))
	}
}
