package format

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"pkt.systems/modelsync/schema"
)

const clearLine = "\r\033[K"

// LineRenderer writes rendered progress lines to w. With overwrite enabled,
// transient lines replace each other in place instead of scrolling.
type LineRenderer struct {
	mu        sync.Mutex
	w         io.Writer
	renderer  *PlainRenderer
	overwrite bool
	pending   bool
	err       error
}

// NewLineRenderer returns a renderer writing to w.
func NewLineRenderer(w io.Writer, overwrite bool) *LineRenderer {
	return &LineRenderer{w: w, renderer: NewPlainRenderer(), overwrite: overwrite}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// OnProgress renders one event.
func (r *LineRenderer) OnProgress(event schema.ProgressEvent) {
	lines := r.renderer.FormatEvent(event)
	if len(lines) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, line := range lines {
		r.write(line)
	}
}

// Close terminates a pending in-place line.
func (r *LineRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending {
		r.writeString("\n")
		r.pending = false
	}
	return r.err
}

// Err returns the first write error.
func (r *LineRenderer) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *LineRenderer) write(line Line) {
	if !r.overwrite {
		r.writeString(line.Text + "\n")
		return
	}
	if line.Transient {
		r.writeString(clearLine + line.Text)
		r.pending = true
		return
	}
	if r.pending {
		r.writeString("\n")
		r.pending = false
	}
	r.writeString(line.Text + "\n")
}

func (r *LineRenderer) writeString(s string) {
	if r.err != nil {
		return
	}
	if _, err := io.WriteString(r.w, s); err != nil {
		r.err = err
	}
}

// JSONWriter writes every event as one JSON object per line.
type JSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
	err error
}

// NewJSONWriter returns a JSON-lines writer.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{enc: json.NewEncoder(w)}
}

// OnProgress encodes one event.
func (j *JSONWriter) OnProgress(event schema.ProgressEvent) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return
	}
	j.err = j.enc.Encode(event)
}

// Encode writes an arbitrary value, such as a final report, as one line.
func (j *JSONWriter) Encode(v any) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.err = j.enc.Encode(v)
	return j.err
}

// Err returns the first encode error.
func (j *JSONWriter) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}
