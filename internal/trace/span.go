package trace

import (
	"sync/atomic"
	"time"
)

var (
	globalSeq   atomic.Uint64
	globalSpans atomic.Uint64
)

// NextSeq returns the next global sequence number. Sequence order is the
// only total order across lanes; timestamps from different lanes may tie.
func NextSeq() uint64 { return globalSeq.Add(1) }

// NextSpanID returns a fresh span ID, unique across the whole run.
func NextSpanID() uint64 { return globalSpans.Add(1) }

// Link ties an event into the span tree. Parent is the enclosing span (0 at
// the root); Lane is the batch slot of the scenario file being lowered, so a
// parallel run can be untangled per file.
type Link struct {
	Parent uint64
	Lane   int
}

// Span is one timed region of the run: a scenario, a function definition.
type Span struct {
	tracer  Tracer
	id      uint64
	link    Link
	scope   Scope
	name    string
	started time.Time
}

// Begin opens a span and emits its begin event. Returns a muted span when
// the tracer is off or the scope is filtered out, so callers never branch.
func Begin(t Tracer, scope Scope, name string, link Link) *Span {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return &Span{tracer: Nop}
	}

	s := &Span{
		tracer:  t,
		id:      NextSpanID(),
		link:    link,
		scope:   scope,
		name:    name,
		started: time.Now(),
	}
	t.Emit(&Event{
		Time:     s.started,
		Seq:      NextSeq(),
		Kind:     KindSpanBegin,
		Scope:    scope,
		SpanID:   s.id,
		ParentID: link.Parent,
		Lane:     link.Lane,
		Name:     name,
	})
	return s
}

// End closes the span and returns how long it was open. Safe on nil and on
// muted spans.
func (s *Span) End(detail string) time.Duration {
	if s == nil || s.tracer == nil || !s.tracer.Enabled() {
		return 0
	}
	dur := time.Since(s.started)
	s.tracer.Emit(&Event{
		Time:     time.Now(),
		Seq:      NextSeq(),
		Kind:     KindSpanEnd,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.link.Parent,
		Lane:     s.link.Lane,
		Name:     s.name,
		Detail:   detail,
	})
	return dur
}

// ID returns the span ID, 0 for nil or muted spans.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}

// Link returns the link children should carry: this span as parent, same
// lane. A nil or muted span yields a root link.
func (s *Span) Link() Link {
	if s == nil {
		return Link{}
	}
	return Link{Parent: s.id, Lane: s.link.Lane}
}

// Point emits an instant event, e.g. one emitted call site.
func Point(t Tracer, scope Scope, name, detail string, link Link) {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return
	}
	t.Emit(&Event{
		Time:     time.Now(),
		Seq:      NextSeq(),
		Kind:     KindPoint,
		Scope:    scope,
		ParentID: link.Parent,
		Lane:     link.Lane,
		Name:     name,
		Detail:   detail,
	})
}
