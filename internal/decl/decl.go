// Package decl models the declarations the lowering layer consumes: free
// functions, instance methods, and constructor/destructor variants, together
// with the declaration attributes that influence ABI shape.
package decl

import (
	"fmt"

	"karst/internal/source"
	"karst/internal/types"
)

// FuncKind is the closed set of declaration shapes.
type FuncKind uint8

const (
	KindFree FuncKind = iota
	KindMethod
	KindCtor
	KindDtor
)

func (k FuncKind) String() string {
	switch k {
	case KindFree:
		return "free"
	case KindMethod:
		return "method"
	case KindCtor:
		return "ctor"
	case KindDtor:
		return "dtor"
	default:
		return fmt.Sprintf("FuncKind(%d)", k)
	}
}

// StructorKind selects the constructor/destructor variant being lowered.
// Deleting applies to destructors only.
type StructorKind uint8

const (
	StructorComplete StructorKind = iota
	StructorBase
	StructorDeleting
)

func (k StructorKind) String() string {
	switch k {
	case StructorComplete:
		return "complete"
	case StructorBase:
		return "base"
	case StructorDeleting:
		return "deleting"
	default:
		return fmt.Sprintf("StructorKind(%d)", k)
	}
}

// PassObjectSize marks a parameter that carries its runtime object size as a
// synthetic companion argument. Kind is the builtin object-size flavor (0-3).
type PassObjectSize struct {
	Kind    uint8
	Dynamic bool
}

// Param is one formal parameter of a declaration.
type Param struct {
	Name       string
	Type       types.TypeID
	NonNull    bool
	NoEscape   bool
	ObjectSize *PassObjectSize
}

// Inherited marks a constructor that inherits from a base class constructor.
type Inherited struct {
	ConstructsVirtualBase bool
}

// Func is one function declaration. Methods and structors set Parent to the
// enclosing record type; MethodAddrSpace carries the method qualifier's
// address space (its cv part never reaches the receiver type).
type Func struct {
	Name            string
	Kind            FuncKind
	Type            types.TypeID // fn_proto or fn_noproto
	Parent          types.TypeID // record type for methods/structors
	MethodAddrSpace types.AddrSpace
	Virtual         bool
	VTableSlot      uint32 // vtable index for virtual dispatch
	Variadic        bool
	Params          []Param
	Attrs           AttrList
	Inherited       *Inherited // inheriting constructor, nil otherwise
	Span            source.Span
}

// IsInstance reports whether the declaration takes an implicit receiver.
func (f *Func) IsInstance() bool {
	if f == nil {
		return false
	}
	switch f.Kind {
	case KindMethod, KindCtor, KindDtor:
		return true
	default:
		return false
	}
}

// IsStructor reports whether the declaration is a constructor or destructor.
func (f *Func) IsStructor() bool {
	if f == nil {
		return false
	}
	return f.Kind == KindCtor || f.Kind == KindDtor
}

// IsVirtualMethod reports whether calls through the declaration dispatch
// virtually.
func (f *Func) IsVirtualMethod() bool {
	return f != nil && f.Virtual && f.IsInstance()
}

// NumParams returns the number of formal parameters.
func (f *Func) NumParams() int {
	if f == nil {
		return 0
	}
	return len(f.Params)
}

// Ref identifies one lowerable entity: a declaration plus the structor
// variant when the declaration is a constructor or destructor.
type Ref struct {
	Fn      *Func
	Variant StructorKind
}

// FreeRef wraps a plain declaration.
func FreeRef(fn *Func) Ref {
	return Ref{Fn: fn}
}

// StructorRef selects a variant of a constructor or destructor.
func StructorRef(fn *Func, variant StructorKind) Ref {
	return Ref{Fn: fn, Variant: variant}
}

func (r Ref) String() string {
	if r.Fn == nil {
		return "<nil>"
	}
	if r.Fn.IsStructor() {
		return fmt.Sprintf("%s[%s]", r.Fn.Name, r.Variant)
	}
	return r.Fn.Name
}
