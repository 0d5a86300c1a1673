// Package output prints watchset events for humans or as JSON lines.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	werrors "github.com/Aman-CERP/watchset/internal/errors"
	"github.com/Aman-CERP/watchset/internal/watchset"
)

// Format selects how events are rendered.
type Format int

const (
	// FormatText renders one readable line per event.
	FormatText Format = iota
	// FormatJSON renders one JSON object per line.
	FormatJSON
)

// Writer prints events. Safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	out    io.Writer
	format Format
}

// New creates a Writer with an explicit format.
func New(out io.Writer, format Format) *Writer {
	return &Writer{out: out, format: format}
}

// Auto creates a Writer that prints text to terminals and JSON otherwise.
func Auto(out io.Writer) *Writer {
	if IsTTY(out) {
		return New(out, FormatText)
	}
	return New(out, FormatJSON)
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// Format returns the writer's format.
func (w *Writer) Format() Format {
	return w.format
}

// record is the JSON line layout shared by all events.
type record struct {
	Event      string    `json:"event"`
	Time       time.Time `json:"time"`
	Generation uint64    `json:"generation,omitempty"`
	Paths      []string  `json:"paths,omitempty"`
	Path       string    `json:"path,omitempty"`
	Backend    string    `json:"backend,omitempty"`
	Code       string    `json:"code,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// Changed prints a change notification.
func (w *Writer) Changed(n watchset.ChangeNotification) {
	w.emit(record{
		Event:      "changed",
		Time:       n.Timestamp,
		Generation: n.Generation,
		Paths:      n.Paths,
	}, func() string {
		return "changed: " + strings.Join(n.Paths, ", ")
	})
}

// Watching prints an active watch.
func (w *Writer) Watching(path, backend string) {
	w.emit(record{
		Event:   "watching",
		Time:    time.Now(),
		Path:    path,
		Backend: backend,
	}, func() string {
		return fmt.Sprintf("watching: %s (%s)", path, backend)
	})
}

// Diagnostic prints a non-fatal error.
func (w *Writer) Diagnostic(err error) {
	rec := record{Event: "diagnostic", Time: time.Now(), Message: err.Error()}
	if we, ok := err.(*werrors.WatchError); ok {
		rec.Code = we.Code
		rec.Path = we.Path
		rec.Message = we.Message
	}
	w.emit(rec, func() string {
		return strings.TrimRight(werrors.FormatForCLI(err), "\n")
	})
}

// Status prints a free-form status line.
func (w *Writer) Status(msg string) {
	w.emit(record{Event: "status", Time: time.Now(), Message: msg}, func() string {
		return msg
	})
}

// emit renders rec as JSON or text. Errors from writing are ignored for
// console output.
func (w *Writer) emit(rec record, text func() string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.format == FormatJSON {
		data, err := json.Marshal(rec)
		if err != nil {
			return
		}
		_, _ = fmt.Fprintf(w.out, "%s\n", data)
		return
	}
	_, _ = fmt.Fprintln(w.out, text())
}
