package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	// KindSpanBegin marks the start of a logical operation.
	KindSpanBegin Kind = iota + 1
	// KindSpanEnd marks the end of a logical operation.
	KindSpanEnd
	// KindPoint represents an instant event.
	KindPoint
	// KindHeartbeat is a periodic liveness signal.
	KindHeartbeat
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Scope indicates the granularity level of the event.
// Lower numeric values represent higher-level/coarser events.
type Scope uint8

const (
	// ScopeDriver represents top-level driver operations (highest level).
	ScopeDriver Scope = iota + 1
	// ScopeModule represents per-scenario lowering.
	ScopeModule
	// ScopeFunc represents per-function arranging and definition.
	ScopeFunc
	// ScopeCall represents individual call emission (most detailed).
	ScopeCall
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeDriver:
		return "driver"
	case ScopeModule:
		return "module"
	case ScopeFunc:
		return "func"
	case ScopeCall:
		return "call"
	default:
		return "unknown"
	}
}

// Event is a single trace record. Events from one lane are ordered among
// themselves; Seq gives the total order across lanes.
type Event struct {
	Time     time.Time // wall-clock timestamp
	Seq      uint64    // global sequence number (monotonic)
	Kind     Kind      // event kind
	Scope    Scope     // granularity level
	SpanID   uint64    // unique span identifier
	ParentID uint64    // parent span (0 if root)
	Lane     int       // batch slot of the scenario file (0 when serial)
	Name     string    // e.g., "lower", "define f", "call @printf"
	Detail   string    // optional detail message
}
