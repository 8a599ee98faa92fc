/*
watch.go - External change detection

PURPOSE:
  Notices when something other than this process edits the ledger file, so
  cached snapshots can be marked stale. The file is hand-editable on
  purpose; external edits are normal, not an error.

MECHANICS:
  The watcher monitors the parent directory rather than the file itself.
  Atomic saves (ours and most editors') replace the file by rename, which
  would silently detach a watch on the old inode. Events are debounced so
  an editor's write burst produces one callback.

SEE ALSO:
  - index.go: snapshots the callback should invalidate
*/
package journal

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of file events into one callback.
const DefaultDebounce = 250 * time.Millisecond

// Watcher invokes a callback when the ledger file changes on disk. The
// callback must be idempotent; it can fire for this process's own writes
// as well as external ones.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func()
	fsw      *fsnotify.Watcher

	mu      sync.Mutex
	pending *time.Timer
	closed  bool
}

// WatchFile starts watching the ledger at path. Pass debounce <= 0 for the
// default window.
func WatchFile(path string, debounce time.Duration, onChange func()) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving ledger path %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:     abs,
		debounce: debounce,
		onChange: onChange,
		fsw:      fsw,
	}
	go w.loop()
	return w, nil
}

// Close stops the watcher and cancels any pending callback.
func (w *Watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.bump()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("ledger watcher: %v", err)
		}
	}
}

// bump schedules the callback one debounce window from now, replacing any
// earlier schedule.
func (w *Watcher) bump() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, w.onChange)
}
