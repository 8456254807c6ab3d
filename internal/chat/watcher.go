package chat

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bethropolis/spanedit/internal/event"
	"github.com/bethropolis/spanedit/internal/logger"
	"github.com/bethropolis/spanedit/internal/utils"
)

// DefaultSettle is how long a chat file must stay quiet before it is re-read.
const DefaultSettle = 200 * time.Millisecond

// Watcher reloads a chat file when another program changes it and
// dispatches TypeMessageEdited for every message whose content changed.
// Writes made by the store itself are recognised and ignored.
type Watcher struct {
	store  Reloadable
	events *event.Manager
	settle time.Duration

	fsWatcher *fsnotify.Watcher
	debouncer utils.Debouncer

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewWatcher creates a watcher for store. A settle of zero uses DefaultSettle.
func NewWatcher(store Reloadable, events *event.Manager, settle time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Watcher{
		store:     store,
		events:    events,
		settle:    settle,
		fsWatcher: fsWatcher,
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching. The file's directory is watched so that atomic
// replacements by rename are seen.
func (w *Watcher) Start() error {
	if err := w.fsWatcher.Add(filepath.Dir(w.store.Path())); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.loop()
	logger.DebugTagf("watcher", "Watching %s", w.store.Path())
	return nil
}

// Stop shuts the watcher down. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		w.debouncer.Stop()
		err = w.fsWatcher.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	target := filepath.Clean(w.store.Path())

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.debouncer.Debounce(w.settle, w.check)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("Chat watcher: %v", err)
		}
	}
}

// check re-reads the file once it has settled.
func (w *Watcher) check() {
	select {
	case <-w.done:
		return
	default:
	}

	data, err := os.ReadFile(w.store.Path())
	if err != nil {
		logger.DebugTagf("watcher", "Skipping check: %v", err)
		return
	}
	if w.store.OwnWrite(data) {
		return
	}

	changed, err := w.store.Reload()
	if err != nil {
		logger.Warnf("Chat watcher: reload failed: %v", err)
		return
	}
	if len(changed) == 0 || w.events == nil {
		return
	}
	logger.Infof("Chat file changed externally: %d message(s) edited", len(changed))
	for _, id := range changed {
		w.events.Dispatch(event.TypeMessageEdited, event.MessageData{MessageID: id})
	}
}
