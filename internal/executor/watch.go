package executor

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/daydemir/gass/internal/logging"
)

// WatchPlan signals on the returned channel whenever a phase document in
// dir is written, created or renamed into place. Signals coalesce: a
// pending signal is not duplicated. Call stop to release the watcher.
func WatchPlan(dir string, logger *logging.Logger) (wake <-chan struct{}, stop func() error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	ch := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !relevant(ev) {
					continue
				}
				select {
				case ch <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("plan watcher error", "error", err)
			}
		}
	}()
	return ch, watcher.Close, nil
}

func relevant(ev fsnotify.Event) bool {
	name := filepath.Base(ev.Name)
	if !strings.HasSuffix(name, ".json") {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}
