package config

import (
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the configuration when the file changes on disk, so edits
// made by external tools take effect without restarting the daemon. Events
// are debounced: editors typically produce several writes per save.
type Watcher struct {
	mgr     *Manager
	watcher *fsnotify.Watcher
	done    chan struct{}
}

const reloadDebounce = 250 * time.Millisecond

// NewWatcher starts watching the manager's config file directory.
func NewWatcher(mgr *Manager) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file: saves that rename a temp file over
	// the config would otherwise drop the watch.
	if err := fw.Add(filepath.Dir(mgr.Path())); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{mgr: mgr, watcher: fw, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

// Stop ends the watch.
func (w *Watcher) Stop() {
	close(w.done)
	w.watcher.Close()
}

func (w *Watcher) loop() {
	var timer *time.Timer
	target := filepath.Clean(w.mgr.Path())

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Config: watcher error: %v", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (w *Watcher) reload() {
	if err := w.mgr.Load(); err != nil {
		log.Printf("Config: reload failed: %v", err)
		return
	}
	log.Printf("Config: reloaded from %s", w.mgr.Path())
}
