package decl

import (
	"fmt"
	"slices"
)

// AttrKind enumerates declaration attributes that influence the lowered
// call or function shape.
type AttrKind uint8

const (
	AttrNoThrow AttrKind = iota
	AttrNoReturn
	AttrConst
	AttrPure
	AttrNoAlias
	AttrNoBuiltin
	AttrNoMerge
	AttrNoInline
	AttrAlwaysInline
	AttrConvergent
	AttrOffloadKernel
)

func (k AttrKind) String() string {
	switch k {
	case AttrNoThrow:
		return "nothrow"
	case AttrNoReturn:
		return "noreturn"
	case AttrConst:
		return "const"
	case AttrPure:
		return "pure"
	case AttrNoAlias:
		return "noalias"
	case AttrNoBuiltin:
		return "nobuiltin"
	case AttrNoMerge:
		return "nomerge"
	case AttrNoInline:
		return "noinline"
	case AttrAlwaysInline:
		return "always_inline"
	case AttrConvergent:
		return "convergent"
	case AttrOffloadKernel:
		return "offload_kernel"
	default:
		return fmt.Sprintf("AttrKind(%d)", k)
	}
}

// AttrList is the ordered attribute set of one declaration.
type AttrList []AttrKind

// Has reports whether the attribute is present.
func (l AttrList) Has(kind AttrKind) bool {
	return slices.Contains(l, kind)
}

// With returns a list that also carries kind, without duplicating it.
func (l AttrList) With(kind AttrKind) AttrList {
	if l.Has(kind) {
		return l
	}
	out := make(AttrList, 0, len(l)+1)
	out = append(out, l...)
	out = append(out, kind)
	return out
}
