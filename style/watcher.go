package style

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/streamweave/stylist/cache"
	"github.com/streamweave/stylist/theme"
)

// Watcher reloads the theme library and invalidates the style cache when
// the themes file changes on disk.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Watch starts watching path. Editors commonly replace files by rename, so
// the watch is on the containing directory with events filtered to path.
func Watch(ctx context.Context, path string, lib *theme.Library, mgr *Manager, log cache.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{watcher: fsw, done: make(chan struct{})}
	go w.run(ctx, abs, lib, mgr, log)
	return w, nil
}

func (w *Watcher) run(ctx context.Context, path string, lib *theme.Library, mgr *Manager, log cache.Logger) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := lib.Reload(path); err != nil {
				log.Warnf("style: themes file changed but reload failed: %v", err)
				continue
			}
			log.Debugf("style: themes file changed, reloaded %d themes", lib.Len())
			mgr.Invalidate(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warnf("style: watch error: %v", err)
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
