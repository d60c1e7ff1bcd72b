package kir

import (
	"fmt"
	"slices"

	"fortio.org/safecast"
)

// FnTy stores metadata for machine function types. Functions that return
// nothing use the void builtin as Ret.
type FnTy struct {
	Ret      TypeID
	Params   []TypeID
	Variadic bool
}

// RegisterFn creates or finds a machine function type.
func (in *Interner) RegisterFn(ret TypeID, params []TypeID, variadic bool) TypeID {
	if in != nil {
		for id := TypeID(1); int(id) < len(in.types); id++ {
			tt := in.types[id]
			if tt.Kind != KindFn {
				continue
			}
			if tt.Payload == 0 || int(tt.Payload) >= len(in.fns) {
				continue
			}
			info := in.fns[tt.Payload]
			if info.Ret == ret && info.Variadic == variadic && slices.Equal(info.Params, params) {
				return id
			}
		}
	}
	slot := in.appendFnTy(FnTy{
		Ret:      ret,
		Params:   slices.Clone(params),
		Variadic: variadic,
	})
	return in.internRaw(Type{Kind: KindFn, Payload: slot})
}

// FnTy retrieves machine function type metadata by TypeID.
func (in *Interner) FnTy(id TypeID) (*FnTy, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindFn {
		return nil, false
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.fns) {
		return nil, false
	}
	return &in.fns[tt.Payload], true
}

func (in *Interner) appendFnTy(info FnTy) uint32 {
	in.fns = append(in.fns, FnTy{
		Ret:      info.Ret,
		Params:   slices.Clone(info.Params),
		Variadic: info.Variadic,
	})
	slot, err := safecast.Conv[uint32](len(in.fns) - 1)
	if err != nil {
		panic(fmt.Errorf("fn type overflow: %w", err))
	}
	return slot
}
