package types

import (
	"fmt"
	"slices"

	"fortio.org/safecast"
)

// CallConv enumerates source-level calling conventions. The zero value is
// the platform default convention.
type CallConv uint8

const (
	CallConvDefault CallConv = iota
	CallConvStd
	CallConvFast
	CallConvThis
	CallConvVector
	CallConvRegCall
	CallConvWin64
	CallConvSysV64
	CallConvDeviceKernel
)

func (c CallConv) String() string {
	switch c {
	case CallConvDefault:
		return "default"
	case CallConvStd:
		return "std"
	case CallConvFast:
		return "fast"
	case CallConvThis:
		return "this"
	case CallConvVector:
		return "vector"
	case CallConvRegCall:
		return "regcall"
	case CallConvWin64:
		return "win64"
	case CallConvSysV64:
		return "sysv64"
	case CallConvDeviceKernel:
		return "device_kernel"
	default:
		return fmt.Sprintf("CallConv(%d)", c)
	}
}

// ExceptSpec classifies a prototype's exception specification.
type ExceptSpec uint8

const (
	// ExceptNone means no specification was written: the function may throw.
	ExceptNone ExceptSpec = iota
	// ExceptNoThrow means the specification is statically known empty.
	ExceptNoThrow
	// ExceptThrow means an explicit specification that permits throwing.
	ExceptThrow
	// ExceptUnresolved means the specification is still being computed
	// (instantiation pending). It must never be treated as non-throwing.
	ExceptUnresolved
)

// IsNothrow reports whether the specification statically forbids throwing.
func (e ExceptSpec) IsNothrow() bool {
	return e == ExceptNoThrow
}

// IsUnresolved reports whether the specification has not been computed yet.
func (e ExceptSpec) IsUnresolved() bool {
	return e == ExceptUnresolved
}

// ExtInfo carries the ABI-relevant bits of a function type beyond its
// parameter and return types.
type ExtInfo struct {
	CC                CallConv
	NoReturn          bool
	ProducesResult    bool // callee hands back an already-retained value
	NoCallerSavedRegs bool
	NoCfCheck         bool
	HasRegParm        bool
	RegParm           uint8
}

// ExtParamInfo is per-parameter extended info on a prototyped function type.
type ExtParamInfo struct {
	HasPassObjectSize bool
	NoEscape          bool
}

// IsZero reports whether no extended info is set.
func (e ExtParamInfo) IsZero() bool {
	return e == ExtParamInfo{}
}

// FnInfo stores metadata for function types. For unprototyped functions only
// Ret and Ext are meaningful.
type FnInfo struct {
	Ret       TypeID
	Params    []TypeID
	Variadic  bool
	Ext       ExtInfo
	Except    ExceptSpec
	ExtParams []ExtParamInfo // empty, or one entry per formal parameter
}

func (fi *FnInfo) equal(other *FnInfo) bool {
	return fi.Ret == other.Ret &&
		fi.Variadic == other.Variadic &&
		fi.Ext == other.Ext &&
		fi.Except == other.Except &&
		slices.Equal(fi.Params, other.Params) &&
		slices.Equal(fi.ExtParams, other.ExtParams)
}

// RegisterFnProto creates or finds a prototyped function type.
func (in *Interner) RegisterFnProto(info FnInfo) TypeID {
	if len(info.ExtParams) != 0 && len(info.ExtParams) != len(info.Params) {
		panic("types: ext param info length mismatch")
	}
	if id, ok := in.findFn(KindFnProto, &info); ok {
		return id
	}
	slot := in.appendFnInfo(info)
	return in.internRaw(Type{Kind: KindFnProto, Payload: slot})
}

// RegisterFnNoProto creates or finds an unprototyped function type: a return
// type and ext info, with the parameter list unknown.
func (in *Interner) RegisterFnNoProto(ret TypeID, ext ExtInfo) TypeID {
	info := FnInfo{Ret: ret, Ext: ext}
	if id, ok := in.findFn(KindFnNoProto, &info); ok {
		return id
	}
	slot := in.appendFnInfo(info)
	return in.internRaw(Type{Kind: KindFnNoProto, Payload: slot})
}

// FnInfo retrieves function type metadata by TypeID.
func (in *Interner) FnInfo(id TypeID) (*FnInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || !tt.IsFn() {
		return nil, false
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.fns) {
		return nil, false
	}
	return &in.fns[tt.Payload], true
}

func (in *Interner) findFn(kind Kind, info *FnInfo) (TypeID, bool) {
	if in == nil {
		return NoTypeID, false
	}
	for id := TypeID(1); int(id) < len(in.types); id++ {
		tt := in.types[id]
		if tt.Kind != kind {
			continue
		}
		if tt.Payload == 0 || int(tt.Payload) >= len(in.fns) {
			continue
		}
		if in.fns[tt.Payload].equal(info) {
			return id, true
		}
	}
	return NoTypeID, false
}

func (in *Interner) appendFnInfo(info FnInfo) uint32 {
	in.fns = append(in.fns, FnInfo{
		Ret:       info.Ret,
		Params:    slices.Clone(info.Params),
		Variadic:  info.Variadic,
		Ext:       info.Ext,
		Except:    info.Except,
		ExtParams: slices.Clone(info.ExtParams),
	})
	slot, err := safecast.Conv[uint32](len(in.fns) - 1)
	if err != nil {
		panic(fmt.Errorf("fn info overflow: %w", err))
	}
	return slot
}
