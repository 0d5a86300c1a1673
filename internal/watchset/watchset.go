package watchset

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	werrors "github.com/Aman-CERP/watchset/internal/errors"
)

// Set watches a replaceable set of files and delivers one notification per
// coalesced burst of writes to a single subscriber.
//
// All methods are safe for concurrent use, including from inside the
// notification callback.
type Set struct {
	opts   Options
	logger *slog.Logger
	errors chan error

	mu         sync.Mutex
	handles    map[string]handle
	state      State
	generation uint64
	handler    Handler
	window     *coalescer

	// openNative creates the native watch for one file.
	openNative func(f watchedFile, gen uint64, s sink) (handle, error)

	// deliverMu keeps notifications from overlapping. Only the dispatch
	// path takes it, so reconfiguring from a callback cannot deadlock.
	deliverMu sync.Mutex

	rawEvents     atomic.Uint64
	staleEvents   atomic.Uint64
	notifications atomic.Uint64
	droppedErrors atomic.Uint64
}

// Ensure Set delivers raw events to itself.
var _ sink = (*Set)(nil)

// New creates an idle set with the given options.
func New(opts Options) *Set {
	opts = opts.WithDefaults()
	return &Set{
		opts:    opts,
		logger:  opts.Logger.With(slog.String("component", "watchset")),
		errors:  make(chan error, opts.ErrorBufferSize),
		handles: make(map[string]handle),
		window:  newCoalescer(opts.DebounceWindow),

		openNative: openFsnotify,
	}
}

func openFsnotify(f watchedFile, gen uint64, s sink) (handle, error) {
	h, err := newFsnotifyHandle(f, gen, s)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// SetWatchedFiles replaces the whole watched set with paths.
//
// Every active watch is released before any new watch is created. Paths are
// de-duplicated; an empty slice clears the set. Paths that cannot be watched
// are skipped and reported in the returned diagnostics, which are also sent
// to Errors. The call never fails as a whole.
func (s *Set) SetWatchedFiles(paths []string) werrors.Diagnostics {
	files, diags := resolve(paths)

	s.mu.Lock()
	s.teardownLocked()

	if len(paths) == 0 {
		s.state = Idle
		s.mu.Unlock()
		s.logger.Debug("watch set cleared")
		return nil
	}

	s.state = Watching
	gen := s.generation
	for _, f := range files {
		h, werr := s.createHandle(f, gen)
		if werr != nil {
			diags = append(diags, werr)
			continue
		}
		s.handles[f.Path] = h
	}
	active := len(s.handles)
	s.mu.Unlock()

	s.logger.Debug("watch set replaced",
		slog.Uint64("generation", gen),
		slog.Int("requested", len(paths)),
		slog.Int("active", active),
		slog.Int("diagnostics", len(diags)))

	for _, d := range diags {
		s.report(d)
	}
	return diags
}

// Clear stops watching every file but keeps the subscriber.
func (s *Set) Clear() {
	s.SetWatchedFiles(nil)
}

// createHandle opens a native watch, falling back to polling if enabled.
// Must be called with lock held.
func (s *Set) createHandle(f watchedFile, gen uint64) (handle, *werrors.WatchError) {
	h, err := s.openNative(f, gen, s)
	if err == nil {
		return h, nil
	}
	if !s.opts.PollFallback {
		return nil, werrors.WatchCreationFailed(f.Path, err)
	}

	s.logger.Warn("native watch unavailable, polling",
		slog.String("path", f.Path),
		slog.String("error", err.Error()),
		slog.Duration("interval", s.opts.PollInterval))
	return newPollingHandle(f, gen, s.opts.PollInterval, s), nil
}

// teardownLocked releases every handle, discards the pending window and
// starts a new generation. Must be called with lock held.
func (s *Set) teardownLocked() {
	for path, h := range s.handles {
		if err := h.Close(); err != nil {
			s.logger.Warn("failed to release watch",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}
	s.handles = make(map[string]handle)
	s.window.reset()
	s.generation++
}

// OnChange registers fn as the single subscriber, replacing any previous
// one. fn runs on a background goroutine. A nil fn unsubscribes.
func (s *Set) OnChange(fn func()) {
	if fn == nil {
		s.OnNotify(nil)
		return
	}
	s.OnNotify(func(ChangeNotification) { fn() })
}

// OnNotify registers fn as the single subscriber, replacing any previous
// one. Unlike OnChange, fn receives the paths written during the window.
func (s *Set) OnNotify(fn Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = fn
}

// Stop releases every watch and unsubscribes. Safe to call multiple times.
// Pending windows are cancelled, so no new delivery is decided after Stop
// returns. A delivery already decided (its handler taken) may still run or
// complete afterwards; Stop never waits for it.
func (s *Set) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Idle && len(s.handles) == 0 && s.handler == nil {
		return
	}

	s.teardownLocked()
	s.handler = nil
	s.state = Idle
	s.logger.Debug("watch set stopped", slog.Uint64("generation", s.generation))
}

// rawEvent feeds a write from a handle into the coalescing window.
func (s *Set) rawEvent(gen uint64, path string) {
	s.rawEvents.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.state != Watching {
		s.staleEvents.Add(1)
		return
	}
	s.window.add(path, func(seq uint64) {
		s.flush(gen, seq)
	})
}

// rawError reports a runtime error from a handle of the current generation.
func (s *Set) rawError(gen uint64, path string, err error) {
	s.mu.Lock()
	current := gen == s.generation
	s.mu.Unlock()

	if !current {
		return
	}
	s.report(werrors.New(werrors.ErrCodeWatchRuntime, err.Error(), err).WithPath(path))
}

// flush delivers the pending batch once the window armed by seq elapses.
func (s *Set) flush(gen, seq uint64) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	paths, ok := s.window.take(seq)
	handler := s.handler
	if !ok || handler == nil {
		s.mu.Unlock()
		return
	}
	s.notifications.Add(1)
	s.mu.Unlock()

	handler(ChangeNotification{
		Paths:      paths,
		Generation: gen,
		Timestamp:  time.Now(),
	})
}

// report logs a diagnostic and offers it to the error channel.
func (s *Set) report(werr *werrors.WatchError) {
	s.logger.Warn("watch diagnostic", werrors.FormatForLog(werr)...)

	select {
	case s.errors <- werr:
	default:
		count := s.droppedErrors.Add(1)
		s.logger.Warn("error buffer full, dropping diagnostic",
			slog.String("path", werr.Path),
			slog.Uint64("total_dropped", count))
	}
}

// Errors returns the channel of non-fatal diagnostics. The channel is never
// closed because a stopped set can be reused.
func (s *Set) Errors() <-chan error {
	return s.errors
}

// WatchedFiles returns the paths with an active handle, sorted.
func (s *Set) WatchedFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, 0, len(s.handles))
	for p := range s.handles {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Backends returns the watch mechanism used for each active path.
func (s *Set) Backends() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.handles))
	for p, h := range s.handles {
		out[p] = h.Backend()
	}
	return out
}

// Len returns the number of active handles.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// State returns the current lifecycle state.
func (s *Set) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Generation returns the current handle generation.
func (s *Set) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Pending reports whether a coalescing window is open.
func (s *Set) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window.armed()
}

// Stats returns a snapshot of the set's counters.
func (s *Set) Stats() Stats {
	return Stats{
		RawEvents:     s.rawEvents.Load(),
		StaleEvents:   s.staleEvents.Load(),
		Notifications: s.notifications.Load(),
		DroppedErrors: s.droppedErrors.Load(),
	}
}
