package trace

import (
	"fmt"
	"sync"
	"time"
)

// Heartbeat emits a periodic liveness event. A batch whose heartbeats keep
// arriving while no span ends is stuck, not slow — usually a scenario whose
// lowering loops, since each file is lowered on exactly one lane.
type Heartbeat struct {
	tracer   Tracer
	interval time.Duration
	done     chan struct{}
	stop     sync.Once
	finished sync.WaitGroup
}

// StartHeartbeat launches the pulse goroutine. Returns nil when tracing is
// off or the interval is non-positive; Stop tolerates a nil receiver.
func StartHeartbeat(tracer Tracer, interval time.Duration) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{
		tracer:   tracer,
		interval: interval,
		done:     make(chan struct{}),
	}
	h.finished.Add(1)
	go h.loop()
	return h
}

func (h *Heartbeat) loop() {
	defer h.finished.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for beat := uint64(1); ; beat++ {
		select {
		case <-ticker.C:
			h.tracer.Emit(&Event{
				Time:   time.Now(),
				Seq:    NextSeq(),
				Kind:   KindHeartbeat,
				Scope:  ScopeDriver,
				Name:   "heartbeat",
				Detail: fmt.Sprintf("#%d", beat),
			})
		case <-h.done:
			return
		}
	}
}

// Stop ends the pulse and waits for the goroutine to exit. Idempotent.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.stop.Do(func() { close(h.done) })
	h.finished.Wait()
}
