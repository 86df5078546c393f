// Copyright © 2024 The ELPS authors

package registry

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/luthersystems/cljsym/parser"
)

// DefaultDebounce is how long Watch waits for a burst of file events to
// settle before re-indexing.
const DefaultDebounce = 100 * time.Millisecond

// WatchOption configures Watch.
type WatchOption func(*watcher)

// WithDebounce sets the settle delay of Watch.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *watcher) { w.debounce = d }
}

// OnReindex is called by Watch after each batch of changed paths has been
// applied to the registry.
func OnReindex(fn func(paths []string)) WatchOption {
	return func(w *watcher) { w.onReindex = fn }
}

type watcher struct {
	r         *Registry
	root      string
	fsw       *fsnotify.Watcher
	debounce  time.Duration
	onReindex func([]string)

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	flush   chan struct{}
}

// Watch keeps the registry current with the source files under root until
// ctx is done.  Written and created files are re-indexed; removed and
// renamed ones are dropped.
func (r *Registry) Watch(ctx context.Context, root string, opts ...WatchOption) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()
	w := &watcher{
		r:        r,
		root:     root,
		fsw:      fsw,
		debounce: DefaultDebounce,
		pending:  make(map[string]struct{}),
		flush:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := w.addRecursive(root); err != nil {
		return err
	}
	r.log.Debug().Str("root", root).Msg("watching workspace")
	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.event(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			r.log.Error().Err(err).Msg("watcher error")
		case <-w.flush:
			w.apply(ctx)
		}
	}
}

func (w *watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(w.root, path)
		if path != w.root && (shouldSkipDir(d.Name()) || w.r.excluded(rel)) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *watcher) event(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				w.r.log.Warn().Err(err).Str("path", ev.Name).Msg("failed to watch new directory")
				return
			}
			// Files written before the watch was added produce no events.
			paths, _ := w.r.sourceFiles(ev.Name)
			for _, p := range paths {
				w.schedule(p)
			}
			return
		}
	}
	if !parser.IsSource(ev.Name) {
		return
	}
	if rel, err := filepath.Rel(w.root, ev.Name); err == nil && w.r.excluded(rel) {
		return
	}
	if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.schedule(ev.Name)
	}
}

func (w *watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.flush <- struct{}{}:
		default:
		}
	})
}

func (w *watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// apply re-indexes the pending paths.  A path that no longer exists is
// removed from the registry.
func (w *watcher) apply(ctx context.Context) {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()
	sort.Strings(paths)

	for _, p := range paths {
		err := w.r.AddFile(ctx, p)
		if errors.Is(err, os.ErrNotExist) {
			err = w.r.Remove(ctx, p)
		}
		if err != nil {
			w.r.log.Warn().Err(err).Str("file", p).Msg("re-indexing failed")
			continue
		}
		w.r.log.Debug().Str("file", p).Msg("re-indexed")
	}
	if w.onReindex != nil {
		w.onReindex(paths)
	}
}
