package watchset

import (
	"sort"
	"time"
)

// coalescer merges writes from every watched file into one pending batch.
// Each add re-arms a single shared timer; only the timer armed last may
// flush. It is not safe for concurrent use: the owning Set serializes access.
type coalescer struct {
	window  time.Duration
	pending map[string]struct{}
	timer   *time.Timer
	seq     uint64
}

func newCoalescer(window time.Duration) *coalescer {
	return &coalescer{
		window:  window,
		pending: make(map[string]struct{}),
	}
}

// add records a write and restarts the window. flush is called with the
// sequence number of the arming; stale firings are rejected by take.
func (c *coalescer) add(path string, flush func(seq uint64)) {
	c.pending[path] = struct{}{}

	if c.timer != nil {
		c.timer.Stop()
	}
	c.seq++
	seq := c.seq
	c.timer = time.AfterFunc(c.window, func() {
		flush(seq)
	})
}

// take returns the pending paths, sorted, if seq is the latest arming.
func (c *coalescer) take(seq uint64) ([]string, bool) {
	if seq != c.seq || len(c.pending) == 0 {
		return nil, false
	}

	paths := make([]string, 0, len(c.pending))
	for p := range c.pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	c.pending = make(map[string]struct{})
	c.timer = nil
	return paths, true
}

// reset cancels the window and discards pending writes.
func (c *coalescer) reset() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.seq++
	c.pending = make(map[string]struct{})
}

// armed reports whether a window is open.
func (c *coalescer) armed() bool {
	return len(c.pending) > 0
}
