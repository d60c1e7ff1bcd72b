package trace

import (
	"io"
	"sync"
)

// StreamTracer writes every accepted event straight to its writer. Write
// errors are swallowed: tracing must never fail a lowering.
type StreamTracer struct {
	mu     sync.Mutex
	w      io.Writer
	level  Level
	format Format
	sep    []byte // written before each event after the first (chrome commas)
	wrote  bool
}

// NewStreamTracer creates a stream tracer over w. For the chrome format it
// owns the surrounding JSON array, so w must not be shared mid-run.
func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	t := &StreamTracer{w: w, level: level, format: format}
	if format == FormatChrome {
		t.sep = []byte(",\n")
		_, _ = w.Write([]byte("{\"traceEvents\":[\n"))
	}
	return t
}

// Emit formats and writes one event.
func (t *StreamTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) && ev.Kind != KindHeartbeat {
		return
	}
	data := FormatEvent(ev, t.format)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.wrote && t.sep != nil {
		_, _ = t.w.Write(t.sep)
	}
	t.wrote = true
	_, _ = t.w.Write(data)
}

// Flush forwards to the writer when it buffers.
func (t *StreamTracer) Flush() error {
	if f, ok := t.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close terminates the chrome array, flushes, and closes a closable writer.
func (t *StreamTracer) Close() error {
	t.mu.Lock()
	if t.format == FormatChrome {
		_, _ = t.w.Write([]byte("\n]}\n"))
	}
	t.mu.Unlock()

	if err := t.Flush(); err != nil {
		return err
	}
	if c, ok := t.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Level returns the configured level.
func (t *StreamTracer) Level() Level { return t.level }

// Enabled reports whether events are being written.
func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }
