package watchset

import (
	"log/slog"
	"time"
)

// State is the lifecycle state of a Set.
type State int

const (
	// Idle means no files are being watched.
	Idle State = iota
	// Watching means the last SetWatchedFiles call asked for at least one
	// file. The set may hold fewer handles than requested.
	Watching
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Watching:
		return "WATCHING"
	default:
		return "UNKNOWN"
	}
}

// ChangeNotification is delivered once per coalesced burst of writes.
// Consumers should treat it as "something changed" and re-validate their
// state: a notification from a replaced generation can still be in flight
// when SetWatchedFiles returns.
type ChangeNotification struct {
	// Paths are the watched files written during the window, sorted.
	Paths []string

	// Generation is the watch set generation the writes belong to.
	Generation uint64

	// Timestamp is when the window closed.
	Timestamp time.Time
}

// Handler receives change notifications.
type Handler func(ChangeNotification)

// Stats reports counters for a Set.
type Stats struct {
	// RawEvents is the number of write events received from watch handles.
	RawEvents uint64
	// StaleEvents is the number of raw events discarded because they
	// belonged to a generation that had already been replaced.
	StaleEvents uint64
	// Notifications is the number of notifications delivered.
	Notifications uint64
	// DroppedErrors is the number of diagnostics not delivered because the
	// error channel was full.
	DroppedErrors uint64
}

// Options configures a Set.
type Options struct {
	// DebounceWindow is the time to wait after the last write before
	// delivering a notification.
	// Default: 200ms
	DebounceWindow time.Duration

	// PollFallback enables polling for files whose native watch cannot be
	// created. When false such files are reported and skipped.
	PollFallback bool

	// PollInterval is the interval for polling handles.
	// Default: 1s
	PollInterval time.Duration

	// ErrorBufferSize is the size of the error channel buffer.
	// Default: 64
	ErrorBufferSize int

	// Logger receives diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns the default watch set options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  200 * time.Millisecond,
		PollFallback:    false,
		PollInterval:    time.Second,
		ErrorBufferSize: 64,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.ErrorBufferSize <= 0 {
		o.ErrorBufferSize = defaults.ErrorBufferSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
