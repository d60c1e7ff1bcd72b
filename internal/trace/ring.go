package trace

import (
	"io"
	"sync"
)

// RingTracer keeps the last N events in memory. Its job is the post-mortem:
// when a lowering hangs or crashes, the ring holds the final window of
// activity without having streamed anything to disk.
type RingTracer struct {
	mu    sync.RWMutex
	buf   []Event
	next  int // next write slot
	count int // events stored, caps at len(buf)
	level Level
}

// NewRingTracer creates a ring holding up to capacity events.
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &RingTracer{buf: make([]Event, capacity), level: level}
}

// Emit stores the event, overwriting the oldest once the ring is full.
// Heartbeats bypass the level filter so a dump always shows liveness.
func (t *RingTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) && ev.Kind != KindHeartbeat {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf[t.next] = *ev
	t.next = (t.next + 1) % len(t.buf)
	if t.count < len(t.buf) {
		t.count++
	}
}

// Snapshot copies the stored events out in emission order.
func (t *RingTracer) Snapshot() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Event, t.count)
	if t.count < len(t.buf) {
		copy(out, t.buf[:t.count])
		return out
	}
	n := copy(out, t.buf[t.next:])
	copy(out[n:], t.buf[:t.next])
	return out
}

// Dump renders the stored window to w.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	events := t.Snapshot()
	for i := range events {
		if _, err := w.Write(FormatEvent(&events[i], format)); err != nil {
			return err
		}
	}
	return nil
}

// Flush is a no-op; the ring lives in memory.
func (t *RingTracer) Flush() error { return nil }

// Close is a no-op.
func (t *RingTracer) Close() error { return nil }

// Level returns the configured level.
func (t *RingTracer) Level() Level { return t.level }

// Enabled reports whether events are being stored.
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
