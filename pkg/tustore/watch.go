package tustore

import (
	"path/filepath"

	fsnotify "gopkg.in/fsnotify.v1"

	"github.com/Celtoys/clReflect-sub006/pkg/textdb"
)

// Watcher keeps a store in sync with the text databases in a directory.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	onChange func(path string)
	done     chan struct{}
}

// Watch imports every text database written or created in dir and drops
// the ones removed or renamed away. onChange, if not nil, runs after each
// change that reached the store.
func (s *Store) Watch(dir string, onChange func(path string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{
		store:    s,
		watcher:  fsw,
		onChange: onChange,
		done:     make(chan struct{}),
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
			w.handleChange(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.store.log.Printf("WARNING: watch: %v", err)
		}
	}
}

// handleChange applies one event to the store and reports whether the
// store changed.
func (w *Watcher) handleChange(event fsnotify.Event) bool {
	// ignore if hidden
	if filepath.Base(event.Name)[0] == '.' {
		return false
	}
	path := filepath.Clean(event.Name)

	changed := false
	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if !textdb.IsTextDatabaseFile(path) {
			return false
		}
		var err error
		changed, err = w.store.Import(path)
		if err != nil {
			w.store.log.Printf("WARNING: failed to import %s: %v", path, err)
			return false
		}
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if err := w.store.Remove(path); err != nil {
			if err != ErrNotFound {
				w.store.log.Printf("WARNING: failed to remove %s: %v", path, err)
			}
			return false
		}
		w.store.log.Printf("removed %s", path)
		changed = true
	}
	if changed && w.onChange != nil {
		w.onChange(path)
	}
	return changed
}

// Close stops watching and waits for the event loop to finish.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
