package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
	"github.com/custodia-labs/sercha-vision/internal/logger"
)

// watchSettle is how long a file must stay unchanged before it is uploaded.
var watchSettle = 2 * time.Second

type uploadFunc func(ctx context.Context, path string) error

// fileStamp identifies one version of a file on disk.
type fileStamp struct {
	size    int64
	modTime time.Time
}

// uploadWatcher uploads files that appear under a directory tree.
type uploadWatcher struct {
	root    string
	pattern string
	upload  uploadFunc
	settle  time.Duration

	mu       sync.Mutex
	pending  map[string]time.Time
	uploaded map[string]fileStamp
}

func newUploadWatcher(root, pattern string, upload uploadFunc) (*uploadWatcher, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, domain.ValidationError("include", fmt.Sprintf("invalid pattern %q", pattern))
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, domain.ValidationError("watch", root+" is not a directory")
	}
	return &uploadWatcher{
		root:     root,
		pattern:  pattern,
		upload:   upload,
		settle:   watchSettle,
		pending:  make(map[string]time.Time),
		uploaded: make(map[string]fileStamp),
	}, nil
}

// matches reports whether path, relative to the watch root, is selected.
func (w *uploadWatcher) matches(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	ok, err := doublestar.Match(w.pattern, filepath.ToSlash(rel))
	return err == nil && ok
}

// Run watches until ctx is cancelled.
func (w *uploadWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := w.addTree(watcher, w.root); err != nil {
		return err
	}

	ticker := time.NewTicker(w.settle / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(watcher, ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watch error: %v", err)
		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

func (w *uploadWatcher) addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func (w *uploadWatcher) handleEvent(watcher *fsnotify.Watcher, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	info, err := os.Stat(ev.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if ev.Has(fsnotify.Create) {
			if err := w.addTree(watcher, ev.Name); err != nil {
				logger.Warn("Watch %s: %v", ev.Name, err)
			}
		}
		return
	}
	if !w.matches(ev.Name) {
		return
	}
	w.touch(ev.Name, time.Now())
}

// touch marks path as changed at t, deferring its upload.
func (w *uploadWatcher) touch(path string, t time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = t
}

// flush uploads pending files that have been quiet for the settle period.
func (w *uploadWatcher) flush(ctx context.Context, now time.Time) {
	for _, path := range w.due(now) {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		stamp := fileStamp{size: info.Size(), modTime: info.ModTime()}

		w.mu.Lock()
		prev, seen := w.uploaded[path]
		w.mu.Unlock()
		if seen && prev.size == stamp.size && prev.modTime.Equal(stamp.modTime) {
			continue
		}

		if err := w.upload(ctx, path); err != nil {
			logger.Error("Upload %s: %v", path, err)
			continue
		}
		w.mu.Lock()
		w.uploaded[path] = stamp
		w.mu.Unlock()
	}
}

func (w *uploadWatcher) due(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var ready []string
	for path, t := range w.pending {
		if now.Sub(t) >= w.settle {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	return ready
}
