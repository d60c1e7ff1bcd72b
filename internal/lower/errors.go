package lower

import (
	"fmt"

	"karst/internal/source"
)

// Fault is an internal consistency violation: the lowering was handed state
// a correct front-end never produces. A fault aborts the current function
// or call entirely; there is nothing to retry.
type Fault struct {
	Msg  string
	Span source.Span
}

func (e *Fault) Error() string {
	return "lower: fault: " + e.Msg
}

func faultf(span source.Span, format string, args ...any) error {
	return &Fault{Msg: fmt.Sprintf(format, args...), Span: span}
}

// Unimplemented marks an ABI corner that is deliberately not modeled. Each
// corner fails at the exact point it would be needed; a plausible-looking
// default lowering would silently break the binary interface.
type Unimplemented struct {
	Feature string
	Span    source.Span
}

func (e *Unimplemented) Error() string {
	return "lower: unimplemented: " + e.Feature
}

func unimplementedf(span source.Span, format string, args ...any) error {
	return &Unimplemented{Feature: fmt.Sprintf(format, args...), Span: span}
}
