package watchset

import (
	"os"
	"sync"
	"time"
)

// pollingHandle watches a single file by periodically comparing its
// modification time and size. Used as a fallback when a native watch
// cannot be created.
type pollingHandle struct {
	file     watchedFile
	gen      uint64
	interval time.Duration
	sink     sink
	last     fileSnapshot
	stopCh   chan struct{}
	once     sync.Once
}

type fileSnapshot struct {
	exists  bool
	modTime time.Time
	size    int64
}

func snapshot(path string) fileSnapshot {
	info, err := os.Stat(path)
	if err != nil {
		return fileSnapshot{}
	}
	return fileSnapshot{
		exists:  true,
		modTime: info.ModTime(),
		size:    info.Size(),
	}
}

// newPollingHandle records the baseline state and starts polling.
func newPollingHandle(f watchedFile, gen uint64, interval time.Duration, s sink) *pollingHandle {
	p := &pollingHandle{
		file:     f,
		gen:      gen,
		interval: interval,
		sink:     s,
		last:     snapshot(f.Path),
		stopCh:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *pollingHandle) run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			if p.detectChange() {
				select {
				case <-p.stopCh:
					return
				default:
				}
				p.sink.rawEvent(p.gen, p.file.Path)
			}
		}
	}
}

// detectChange compares the current state with the previous one.
// Removal is recorded but not reported; a file that reappears with
// content counts as written.
func (p *pollingHandle) detectChange() bool {
	cur := snapshot(p.file.Path)
	prev := p.last
	p.last = cur

	if !cur.exists {
		return false
	}
	if !prev.exists {
		return cur.size > 0
	}
	return !cur.modTime.Equal(prev.modTime) || cur.size != prev.size
}

// Close stops the polling goroutine without waiting for it.
func (p *pollingHandle) Close() error {
	p.once.Do(func() { close(p.stopCh) })
	return nil
}

// Backend implements handle.
func (p *pollingHandle) Backend() string {
	return "polling"
}
