package kir

import (
	"fmt"

	"karst/internal/source"
)

// OpKind enumerates op kinds in KIR.
type OpKind uint8

const (
	// OpAlloca reserves a stack slot and yields its address.
	OpAlloca OpKind = iota
	// OpLoad reads a value through an address.
	OpLoad
	// OpStore writes a value through an address.
	OpStore
	// OpCast converts a value to another type.
	OpCast
	// OpConstInt yields an integer constant.
	OpConstInt
	// OpConstFloat yields a floating-point constant.
	OpConstFloat
	// OpUndef yields an undefined value of a type.
	OpUndef
	// OpGetGlobal yields the address of a module-level symbol.
	OpGetGlobal
	// OpCall is a call with no unwind edge.
	OpCall
	// OpTryCall is a call threaded through the enclosing try scope.
	OpTryCall
	// OpTry scopes calls that may unwind; its handler region catches.
	OpTry
	// OpYield terminates a nested region and resumes after its parent op.
	OpYield
	// OpResume terminates a handler region by continuing the unwind.
	OpResume
	// OpReturn terminates a function body.
	OpReturn
	// OpVAArg fetches the next variadic argument from a va_list address.
	OpVAArg
	// OpVTableFn loads a virtual function pointer from an object's vtable.
	OpVTableFn
	// OpAssertNonNull traps at runtime when the operand is null.
	OpAssertNonNull
)

func (k OpKind) String() string {
	switch k {
	case OpAlloca:
		return "kir.alloca"
	case OpLoad:
		return "kir.load"
	case OpStore:
		return "kir.store"
	case OpCast:
		return "kir.cast"
	case OpConstInt, OpConstFloat:
		return "kir.const"
	case OpUndef:
		return "kir.undef"
	case OpGetGlobal:
		return "kir.get_global"
	case OpCall:
		return "kir.call"
	case OpTryCall:
		return "kir.try_call"
	case OpTry:
		return "kir.try"
	case OpYield:
		return "kir.yield"
	case OpResume:
		return "kir.resume"
	case OpReturn:
		return "kir.return"
	case OpVAArg:
		return "kir.va_arg"
	case OpVTableFn:
		return "kir.vtable_fn"
	case OpAssertNonNull:
		return "kir.assert_nonnull"
	default:
		return fmt.Sprintf("OpKind(%d)", k)
	}
}

// Op represents one KIR op. Result and Type are set for value-producing ops.
type Op struct {
	Kind   OpKind
	Result ValueID
	Type   TypeID
	Span   source.Span

	Alloca        AllocaOp
	Load          LoadOp
	Store         StoreOp
	Cast          CastOp
	ConstInt      ConstIntOp
	ConstFloat    ConstFloatOp
	GetGlobal     GetGlobalOp
	Call          CallOp
	Try           TryOp
	Return        ReturnOp
	VAArg         VAArgOp
	VTableFn      VTableFnOp
	AssertNonNull AssertNonNullOp
}

// AllocaOp reserves a stack slot for one value of Elem.
type AllocaOp struct {
	Elem  TypeID
	Name  string
	Align uint32
}

// LoadOp reads through Addr.
type LoadOp struct {
	Addr  ValueID
	Align uint32
}

// StoreOp writes Val through Addr.
type StoreOp struct {
	Val   ValueID
	Addr  ValueID
	Align uint32
}

// CastKind distinguishes cast flavors.
type CastKind uint8

const (
	// CastBitcast reinterprets bits; source and destination widths match.
	CastBitcast CastKind = iota
	// CastIntegral converts between integer types.
	CastIntegral
	// CastFloating converts between floating-point types.
	CastFloating
	// CastBoolToInt widens a bool into an integer.
	CastBoolToInt
)

func (k CastKind) String() string {
	switch k {
	case CastBitcast:
		return "bitcast"
	case CastIntegral:
		return "integral"
	case CastFloating:
		return "floating"
	case CastBoolToInt:
		return "bool_to_int"
	default:
		return fmt.Sprintf("CastKind(%d)", k)
	}
}

// CastOp converts Val; the destination type sits on the op's Type.
type CastOp struct {
	CastKind CastKind
	Val      ValueID
}

// ConstIntOp yields an integer constant; bits beyond the type width are zero.
type ConstIntOp struct {
	Value uint64
}

// ConstFloatOp yields a floating-point constant.
type ConstFloatOp struct {
	Value float64
}

// GetGlobalOp yields the address of the named module-level symbol.
type GetGlobalOp struct {
	Name string
}

// CalleeKind distinguishes call target types.
type CalleeKind uint8

const (
	// CalleeDirect targets a named symbol.
	CalleeDirect CalleeKind = iota
	// CalleeIndirect targets a function-pointer value.
	CalleeIndirect
)

// Callee represents a call target.
type Callee struct {
	Kind  CalleeKind
	Name  string
	Value ValueID
}

// DirectCallee targets the named symbol.
func DirectCallee(name string) Callee {
	return Callee{Kind: CalleeDirect, Name: name}
}

// IndirectCallee targets a function-pointer value.
func IndirectCallee(v ValueID) Callee {
	return Callee{Kind: CalleeIndirect, Value: v}
}

// CallOp carries the operands and ABI properties of a call site. The same
// payload backs OpCall and OpTryCall.
type CallOp struct {
	Callee     Callee
	Args       []ValueID
	CC         CallingConv
	SideEffect SideEffect
	Attrs      AttrSet
}

// TryOp scopes calls that may unwind. A synthetic try was created by the
// lowering itself; its handler does nothing but resume.
type TryOp struct {
	Synthetic bool
	Body      *Region
	Handler   *Region
}

// ReturnOp terminates a function body, optionally yielding a value.
type ReturnOp struct {
	HasValue bool
	Value    ValueID
}

// VAArgOp fetches the next variadic argument; the fetched type sits on the
// op's Type.
type VAArgOp struct {
	List ValueID
}

// VTableFnOp loads the function pointer stored at virtual slot Slot of the
// object's vtable.
type VTableFnOp struct {
	Object ValueID
	Slot   uint32
}

// AssertNonNullOp traps when Val is null.
type AssertNonNullOp struct {
	Val ValueID
}

// IsTerminator reports whether the op ends its block.
func (op *Op) IsTerminator() bool {
	if op == nil {
		return false
	}
	switch op.Kind {
	case OpReturn, OpYield, OpResume:
		return true
	default:
		return false
	}
}
