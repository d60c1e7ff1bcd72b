package lower

import (
	"fmt"

	"karst/internal/abi"
	"karst/internal/decl"
	"karst/internal/kir"
	"karst/internal/source"
	"karst/internal/trace"
)

// Personality selects the exception personality model of the unit. It
// decides whether calls inside cleanup scopes still need unwind edges.
type Personality uint8

const (
	// PersonalityItanium unwinds through cleanups.
	PersonalityItanium Personality = iota
	// PersonalityMSVC terminates the program when an exception escapes a
	// cleanup outside try/catch, so such calls need no unwind edge.
	PersonalityMSVC
	// PersonalitySEH is structured exception handling; its asynchronous
	// exceptions make every call a potential throw.
	PersonalitySEH
)

func (p Personality) String() string {
	switch p {
	case PersonalityItanium:
		return "itanium"
	case PersonalityMSVC:
		return "msvc"
	case PersonalitySEH:
		return "seh"
	default:
		return fmt.Sprintf("Personality(%d)", p)
	}
}

// ScopeKind classifies entries of a function's lexical scope stack.
type ScopeKind uint8

const (
	ScopeNormal ScopeKind = iota
	ScopeCleanup
	ScopeTry
	ScopeSEHTry
)

type scopeEntry struct {
	kind ScopeKind
	try  *kir.Region     // body region of an open try
	exit kir.InsertPoint // where emission resumes after the try
}

// FnState tracks one function body being emitted: the machine FuncOp, the
// builder positioned inside it, the parameter and return slots, and the
// lexical scope stack the call emitter consults for unwind targets.
type FnState struct {
	Ref decl.Ref
	FI  *abi.FuncInfo
	Op  *kir.FuncOp
	B   *kir.Builder

	RetSlot    kir.Value   // invalid for void returns
	ParamSlots []kir.Value // one local per canonical argument

	scopes []scopeEntry
	sp     *trace.Span
}

// PushScope opens a plain lexical scope. Cleanup and SEH-try kinds change
// unwind decisions; try scopes use EnterTry instead.
func (fs *FnState) PushScope(kind ScopeKind) {
	fs.scopes = append(fs.scopes, scopeEntry{kind: kind})
}

// PopScope closes the innermost scope opened by PushScope.
func (fs *FnState) PopScope() {
	if len(fs.scopes) == 0 {
		return
	}
	fs.scopes = fs.scopes[:len(fs.scopes)-1]
}

// EnterTry opens a source-level try: the op lands at the current point,
// its handler resumes the unwind, and emission continues inside the body.
func (fs *FnState) EnterTry(span source.Span) {
	body, handler := fs.B.CreateTry(span, false)
	exit := fs.B.InsertionPoint()
	fs.B.SetInsertionPoint(handler.Entry())
	fs.B.CreateResume(span)
	fs.B.SetInsertionPoint(body.Entry())
	fs.scopes = append(fs.scopes, scopeEntry{kind: ScopeTry, try: body, exit: exit})
}

// ExitTry yields out of the innermost scope, which must be a try, and
// resumes emission after the op.
func (fs *FnState) ExitTry(span source.Span) {
	n := len(fs.scopes)
	if n == 0 || fs.scopes[n-1].kind != ScopeTry {
		return
	}
	entry := fs.scopes[n-1]
	fs.scopes = fs.scopes[:n-1]
	fs.B.CreateYield(span)
	fs.B.Restore(entry.exit)
}

// closestTry returns the body region of the innermost enclosing try, or
// nil when no source-level try is open.
func (fs *FnState) closestTry() *kir.Region {
	for i := len(fs.scopes) - 1; i >= 0; i-- {
		if fs.scopes[i].kind == ScopeTry {
			return fs.scopes[i].try
		}
	}
	return nil
}

// innermostScope returns the kind of the innermost open scope.
func (fs *FnState) innermostScope() ScopeKind {
	if len(fs.scopes) == 0 {
		return ScopeNormal
	}
	return fs.scopes[len(fs.scopes)-1].kind
}

// inSEHTry reports whether any enclosing scope is an SEH try.
func (fs *FnState) inSEHTry() bool {
	for _, s := range fs.scopes {
		if s.kind == ScopeSEHTry {
			return true
		}
	}
	return false
}

func (fs *FnState) spanLink() trace.Link {
	if fs == nil {
		return trace.Link{}
	}
	return fs.sp.Link()
}
