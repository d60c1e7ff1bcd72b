// Package testkit holds invariant checkers shared by tests: structural
// validation of arranged descriptors and of lowered function bodies.
package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"karst/internal/abi"
	"karst/internal/kir"
	"karst/internal/source"
	"karst/internal/types"
)

// CheckDescriptor runs a minimal set of descriptor invariants:
// 1) the return and every argument type resolve in the interner
// 2) no argument is void
// 3) ExtParams is empty or parallel to Args
// 4) the required prefix never exceeds the argument count
// 5) an instance method leads with a pointer receiver
func CheckDescriptor(in *types.Interner, fi *abi.FuncInfo) error {
	if in == nil || fi == nil {
		return fmt.Errorf("nil interner or descriptor")
	}
	if _, ok := in.Lookup(fi.Ret); !ok {
		return fmt.Errorf("return type %d does not resolve", fi.Ret)
	}
	for i, a := range fi.Args {
		t, ok := in.Lookup(a)
		if !ok {
			return fmt.Errorf("arg %d type %d does not resolve", i, a)
		}
		if t.Kind == types.KindVoid {
			return fmt.Errorf("arg %d is void", i)
		}
	}
	if len(fi.ExtParams) != 0 && len(fi.ExtParams) != len(fi.Args) {
		return fmt.Errorf("ext params length %d does not match %d args", len(fi.ExtParams), len(fi.Args))
	}
	if fi.NumRequiredArgs() > fi.NumArgs() {
		return fmt.Errorf("required prefix %d exceeds %d args", fi.NumRequiredArgs(), fi.NumArgs())
	}
	if fi.InstanceMethod {
		if fi.NumArgs() == 0 {
			return fmt.Errorf("instance method without a receiver argument")
		}
		t, _ := in.Lookup(fi.Args[0])
		if t.Kind != types.KindPointer {
			return fmt.Errorf("instance receiver is %v, not a pointer", t.Kind)
		}
	}
	if !fi.HasRegParm && fi.RegParm != 0 {
		return fmt.Errorf("regparm %d set without the flag", fi.RegParm)
	}
	return nil
}

// CheckFuncOp runs well-formedness invariants on one lowered definition:
// 1) the function span points at the scenario file and stays in bounds
// 2) every op span stays within the file content
// 3) every operand is defined before use, walking nested regions in order
// 4) the entry block ends in a terminator
func CheckFuncOp(f *kir.FuncOp, sf *source.File) error {
	if f == nil || sf == nil {
		return fmt.Errorf("nil function or file")
	}
	if f.IsDeclaration() {
		return nil
	}
	lenContent, err := safecast.Conv[uint32](len(sf.Content))
	if err != nil {
		return fmt.Errorf("len content overflow: %w", err)
	}
	if f.Span.File != sf.ID {
		return fmt.Errorf("%s: span points at file id %d, want %d", f.Name, f.Span.File, sf.ID)
	}
	if f.Span.End > lenContent {
		return fmt.Errorf("%s: span end beyond content: %d > %d", f.Name, f.Span.End, lenContent)
	}

	defined := make(map[kir.ValueID]bool, len(f.Params)+8)
	for i, p := range f.Params {
		if p == kir.NoValueID {
			return fmt.Errorf("%s: param %d has no value", f.Name, i)
		}
		defined[p] = true
	}
	if err := checkRegion(f, f.Body, sf, lenContent, defined); err != nil {
		return err
	}
	if entry := f.Body.Entry(); entry == nil || !entry.Terminated() {
		return fmt.Errorf("%s: entry block is not terminated", f.Name)
	}
	return nil
}

func checkRegion(f *kir.FuncOp, r *kir.Region, sf *source.File, lenContent uint32, defined map[kir.ValueID]bool) error {
	if r == nil {
		return nil
	}
	for _, bb := range r.Blocks {
		for i := range bb.Ops {
			op := &bb.Ops[i]
			if op.Span.File != sf.ID {
				return fmt.Errorf("%s: %s span points at file id %d, want %d", f.Name, op.Kind, op.Span.File, sf.ID)
			}
			if op.Span.End > lenContent {
				return fmt.Errorf("%s: %s span end beyond content: %d > %d", f.Name, op.Kind, op.Span.End, lenContent)
			}
			for _, v := range operands(op) {
				if v == kir.NoValueID {
					return fmt.Errorf("%s: %s has a missing operand", f.Name, op.Kind)
				}
				if !defined[v] {
					return fmt.Errorf("%s: %s uses %%v%d before definition", f.Name, op.Kind, v)
				}
			}
			if op.Kind == kir.OpTry {
				if err := checkRegion(f, op.Try.Body, sf, lenContent, defined); err != nil {
					return err
				}
				if err := checkRegion(f, op.Try.Handler, sf, lenContent, defined); err != nil {
					return err
				}
			}
			if op.Result != kir.NoValueID {
				defined[op.Result] = true
			}
		}
	}
	return nil
}

func operands(op *kir.Op) []kir.ValueID {
	switch op.Kind {
	case kir.OpLoad:
		return []kir.ValueID{op.Load.Addr}
	case kir.OpStore:
		return []kir.ValueID{op.Store.Val, op.Store.Addr}
	case kir.OpCast:
		return []kir.ValueID{op.Cast.Val}
	case kir.OpCall, kir.OpTryCall:
		ids := append([]kir.ValueID(nil), op.Call.Args...)
		if op.Call.Callee.Kind == kir.CalleeIndirect {
			ids = append(ids, op.Call.Callee.Value)
		}
		return ids
	case kir.OpReturn:
		if op.Return.HasValue {
			return []kir.ValueID{op.Return.Value}
		}
		return nil
	case kir.OpVAArg:
		return []kir.ValueID{op.VAArg.List}
	case kir.OpVTableFn:
		return []kir.ValueID{op.VTableFn.Object}
	case kir.OpAssertNonNull:
		return []kir.ValueID{op.AssertNonNull.Val}
	default:
		return nil
	}
}
