package watchset

import (
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// sink receives raw events from watch handles. Each call carries the
// generation the handle was created for so stale deliveries can be dropped.
type sink interface {
	rawEvent(gen uint64, path string)
	rawError(gen uint64, path string, err error)
}

// handle is one OS-level subscription for one watched file.
type handle interface {
	// Close unsubscribes and releases the subscription. It never waits for
	// an in-flight delivery to the sink.
	Close() error
	// Backend names the mechanism ("fsnotify" or "polling").
	Backend() string
}

// fsnotifyHandle watches the file's directory and forwards write events
// for the file name only.
type fsnotifyHandle struct {
	file   watchedFile
	gen    uint64
	fsw    *fsnotify.Watcher
	sink   sink
	closed atomic.Bool
}

// newFsnotifyHandle creates and starts a native watch for one file.
func newFsnotifyHandle(f watchedFile, gen uint64, s sink) (*fsnotifyHandle, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(f.Dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch directory %s: %w", f.Dir, err)
	}

	h := &fsnotifyHandle{
		file: f,
		gen:  gen,
		fsw:  fsw,
		sink: s,
	}
	go h.pump(fsw.Events, fsw.Errors)
	return h, nil
}

// pump forwards events until the fsnotify channels are closed.
func (h *fsnotifyHandle) pump(events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if h.closed.Load() || !h.matches(event) {
				continue
			}
			h.sink.rawEvent(h.gen, h.file.Path)
		case err, ok := <-errs:
			if !ok {
				return
			}
			if h.closed.Load() {
				continue
			}
			h.sink.rawError(h.gen, h.file.Path, err)
		}
	}
}

// matches keeps content writes to the watched file name.
func (h *fsnotifyHandle) matches(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) {
		return false
	}
	return filepath.Clean(event.Name) == h.file.Path
}

// Close unsubscribes first, then releases the OS watch.
func (h *fsnotifyHandle) Close() error {
	if h.closed.Swap(true) {
		return nil
	}
	return h.fsw.Close()
}

// Backend implements handle.
func (h *fsnotifyHandle) Backend() string {
	return "fsnotify"
}
