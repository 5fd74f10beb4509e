// Package filewatch implements the file watcher: a toggled Watch(path,
// recursive) installs fsnotify watches on a directory tree, and
// FileChanged(path, when) filters installed on top fire an event when a
// watched entry matches the exact path and change kind. The created/
// written/removed classification is taken from the fsnotify.Op
// Create/Write/Remove bits.
package filewatch

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/songokas/hvents/internal/logger"
	"github.com/songokas/hvents/pkg/models"
)

// Fire is called once per watched entry whose change kind matches an
// installed FileChanged filter.
type Fire func(eventName string, data models.Data, metadata map[string]string)

type changeFilter struct {
	eventName string
	when      string
}

// Watcher wraps a single fsnotify.Watcher with directory refcounting (so
// overlapping recursive watches share the underlying fsnotify entries) and
// a path-keyed filter table for FileChanged.
type Watcher struct {
	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	refcount map[string]int
	roots    map[string][]string
	filters  map[string][]changeFilter
	fire     Fire
}

func New(fire Fire) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:      fsw,
		refcount: make(map[string]int),
		roots:    make(map[string][]string),
		filters:  make(map[string][]changeFilter),
		fire:     fire,
	}, nil
}

// Start installs a watch on path, walking its subtree when recursive is
// set. Calling Start again on an already-watched root is a no-op, which
// keeps repeated Start/Stop toggling idempotent.
func (w *Watcher) Start(path string, recursive bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.roots[path]; exists {
		return nil
	}

	dirs := []string{path}
	if recursive {
		dirs = dirs[:0]
		err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				dirs = append(dirs, p)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	for _, d := range dirs {
		if w.refcount[d] == 0 {
			if err := w.fsw.Add(d); err != nil {
				return err
			}
		}
		w.refcount[d]++
	}
	w.roots[path] = dirs
	logger.L().Info("file watch started", "path", path, "recursive", recursive, "dirs", len(dirs))
	return nil
}

// Stop removes the watch previously installed by Start for path.
func (w *Watcher) Stop(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	dirs, ok := w.roots[path]
	if !ok {
		return nil
	}
	for _, d := range dirs {
		w.refcount[d]--
		if w.refcount[d] <= 0 {
			delete(w.refcount, d)
			if err := w.fsw.Remove(d); err != nil {
				logger.L().Warn("file watch remove failed", "path", d, "error", err)
			}
		}
	}
	delete(w.roots, path)
	logger.L().Info("file watch stopped", "path", path)
	return nil
}

// AddFilter registers eventName to fire whenever path's change kind
// matches when ("created", "written", or "removed").
func (w *Watcher) AddFilter(eventName, path, when string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.filters[path] = append(w.filters[path], changeFilter{eventName: eventName, when: when})
}

// Run pumps fsnotify events until ctx is cancelled or the underlying
// watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.L().Error("file watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	when := classify(ev.Op)
	if when == "" {
		return
	}

	w.mu.Lock()
	filters := append([]changeFilter(nil), w.filters[ev.Name]...)
	w.mu.Unlock()

	for _, f := range filters {
		if f.when != when {
			continue
		}
		logger.L().Debug("file changed matched", "path", ev.Name, "when", when, "event", f.eventName)
		w.fire(f.eventName, models.TextData(ev.Name), map[string]string{"path": ev.Name, "when": when})
	}
}

func classify(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "created"
	case op&fsnotify.Write != 0:
		return "written"
	case op&fsnotify.Remove != 0:
		return "removed"
	default:
		return ""
	}
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
