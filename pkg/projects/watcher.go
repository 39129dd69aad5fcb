package projects

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/geoserve/confgen/pkg/observability"
)

// Watcher invalidates cached project metadata when files in the metadata
// directory change on disk.
type Watcher struct {
	watcher *fsnotify.Watcher
	cache   *CachingProvider
	logger  *observability.Logger
	done    chan struct{}
}

// NewWatcher starts watching dir and invalidating cache entries for
// changed theme files. Close the watcher to stop.
func NewWatcher(dir string, cache *CachingProvider, logger *observability.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{
		watcher: fsw,
		cache:   cache,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if !strings.HasSuffix(name, ".json") {
				continue
			}
			theme := strings.TrimSuffix(name, ".json")
			w.cache.Invalidate(theme)
			w.logger.WithField("theme", theme).Debug("invalidated cached project metadata")
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("project metadata watcher error")
		}
	}
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
