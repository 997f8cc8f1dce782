// Package watch re-exports source files when they change on disk.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/axmesh/internal/convert"
	"github.com/Faultbox/axmesh/internal/logger"
)

// ErrClosed is returned when adding paths to a stopped watcher.
var ErrClosed = errors.New("watcher already closed")

// Converter converts one source file.
type Converter interface {
	File(src string) (convert.Result, error)
}

// Watcher watches directory trees and converts changed sources after a
// quiet period. Conversions run serially on the Run goroutine.
type Watcher struct {
	conv     Converter
	debounce time.Duration
	fsnotify *fsnotify.Watcher
	log      *zap.Logger
	closed   chan struct{}
	queued   chan string

	// OnResult, if set, is called after every conversion attempt.
	OnResult func(convert.Result, error)
}

// New creates a watcher. Nothing is watched until Add is called.
func New(conv Converter, debounce time.Duration) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		conv:     conv,
		debounce: debounce,
		fsnotify: fsWatch,
		log:      logger.Named("watch"),
		closed:   make(chan struct{}),
		queued:   make(chan string, 64),
	}, nil
}

// Add starts watching root and every directory below it.
func (w *Watcher) Add(root string) error {
	select {
	case <-w.closed:
		return ErrClosed
	default:
	}
	return w.watchRecursive(root, false)
}

// watchRecursive adds every directory under root. With queue set, sources
// already present are queued for conversion; a directory created while
// watching may receive files before its watch is in place.
func (w *Watcher) watchRecursive(root string, queue bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			w.log.Debug("Watching", zap.String("dir", path))
			return w.fsnotify.Add(path)
		}
		if queue && convert.IsSource(path) {
			select {
			case w.queued <- path:
			default:
				w.log.Warn("Queue full, dropping", zap.String("path", path))
			}
		}
		return nil
	})
}

// Run processes file events until ctx is cancelled. It closes the watcher
// on return and must be called once.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		close(w.closed)
		w.fsnotify.Close()
	}()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	var fire <-chan time.Time

	schedule := func(path string) {
		pending[path] = struct{}{}
		timer.Reset(w.debounce)
		fire = timer.C
	}

	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return nil
			}
			if e.Op&fsnotify.Create != 0 {
				if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
					if err := w.watchRecursive(e.Name, true); err != nil {
						w.log.Warn("Failed to watch new directory", zap.String("dir", e.Name), zap.Error(err))
					}
					continue
				}
			}
			if !convert.IsSource(e.Name) {
				continue
			}
			switch {
			case e.Op&(fsnotify.Create|fsnotify.Write) != 0:
				schedule(e.Name)
			case e.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				delete(pending, e.Name)
			}

		case path := <-w.queued:
			schedule(path)

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return nil
			}
			w.log.Error("Watch error", zap.Error(err))

		case <-fire:
			fire = nil
			w.flush(pending)

		case <-ctx.Done():
			w.log.Debug("Watch stopped")
			return nil
		}
	}
}

// flush converts every pending source in path order.
func (w *Watcher) flush(pending map[string]struct{}) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
		delete(pending, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		res, err := w.conv.File(p)
		if err != nil {
			w.log.Error("Conversion failed", zap.String("source", p), zap.Error(err))
		}
		if w.OnResult != nil {
			w.OnResult(res, err)
		}
	}
}
