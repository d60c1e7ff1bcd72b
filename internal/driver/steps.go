package driver

import (
	"fmt"

	"karst/internal/abi"
	"karst/internal/decl"
	"karst/internal/kir"
	"karst/internal/lower"
	"karst/internal/types"
)

// binding is one named value inside a body being emitted. Exactly one of
// scalar/addr is valid; param is the canonical argument index when the
// binding names a spilled formal, -1 otherwise.
type binding struct {
	scalar kir.Value
	addr   kir.Value
	ty     types.TypeID
	param  int
}

type bodyState struct {
	p    *program
	fs   *lower.FnState
	vars map[string]binding
}

func (p *program) runBody(ref decl.Ref, spec *ScenarioFunc) error {
	fs, err := p.gen.DefineFn(ref)
	if err != nil {
		return err
	}
	st := &bodyState{p: p, fs: fs, vars: make(map[string]binding)}
	st.bindParams()
	for i := range spec.Body {
		if err := st.step(&spec.Body[i]); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, spec.Body[i].Op, err)
		}
	}
	return p.gen.FinishFn(fs, p.span)
}

// bindParams names the spilled parameter slots so steps can reference
// formals by their declared names.
func (st *bodyState) bindParams() {
	names := make(map[kir.ValueID]string)
	for i := range st.fs.Op.Body.Entry().Ops {
		op := &st.fs.Op.Body.Entry().Ops[i]
		if op.Kind == kir.OpAlloca {
			names[op.Result] = op.Alloca.Name
		}
	}
	for i, slot := range st.fs.ParamSlots {
		name := names[slot.ID]
		if name == "" {
			continue
		}
		st.vars[name] = binding{addr: slot, ty: st.fs.FI.Args[i], param: i}
	}
}

func (st *bodyState) resolve(name string) (binding, error) {
	b, ok := st.vars[name]
	if !ok {
		return binding{}, fmt.Errorf("unknown value %q", name)
	}
	return b, nil
}

// bind names a freshly produced value. Rebinding shadows; scenarios may
// reuse a name deliberately.
func (st *bodyState) bind(name string, b binding) {
	if name == "" {
		return
	}
	b.param = -1
	st.vars[name] = b
}

func (st *bodyState) step(s *ScenarioStep) error {
	switch s.Op {
	case "const":
		return st.emitConst(s)
	case "const_float":
		return st.emitConstFloat(s)
	case "undef":
		return st.emitUndef(s)
	case "local":
		return st.emitLocal(s)
	case "addr_of":
		return st.emitAddrOf(s)
	case "call":
		return st.emitCall(s)
	case "va_arg":
		return st.emitVAArg(s)
	case "runtime_call":
		return st.emitRuntimeCall(s)
	case "try":
		st.fs.EnterTry(st.p.span)
		return nil
	case "end_try":
		st.fs.ExitTry(st.p.span)
		return nil
	case "cleanup":
		st.fs.PushScope(lower.ScopeCleanup)
		return nil
	case "end_cleanup":
		st.fs.PopScope()
		return nil
	case "return":
		return st.emitReturn(s)
	default:
		return fmt.Errorf("unknown step op %q", s.Op)
	}
}

func (st *bodyState) emitConst(s *ScenarioStep) error {
	ty, err := st.p.resolveType(s.Type)
	if err != nil {
		return err
	}
	mt, err := st.p.gen.MachineType(ty)
	if err != nil {
		return err
	}
	v := st.fs.B.CreateConstInt(st.p.span, mt, uint64(s.Value))
	st.bind(s.Name, binding{scalar: v, ty: ty})
	return nil
}

func (st *bodyState) emitConstFloat(s *ScenarioStep) error {
	ty, err := st.p.resolveType(s.Type)
	if err != nil {
		return err
	}
	mt, err := st.p.gen.MachineType(ty)
	if err != nil {
		return err
	}
	v := st.fs.B.CreateConstFloat(st.p.span, mt, s.Float)
	st.bind(s.Name, binding{scalar: v, ty: ty})
	return nil
}

func (st *bodyState) emitUndef(s *ScenarioStep) error {
	ty, err := st.p.resolveType(s.Type)
	if err != nil {
		return err
	}
	mt, err := st.p.gen.MachineType(ty)
	if err != nil {
		return err
	}
	v := st.fs.B.CreateUndef(st.p.span, mt)
	st.bind(s.Name, binding{scalar: v, ty: ty})
	return nil
}

func (st *bodyState) emitLocal(s *ScenarioStep) error {
	ty, err := st.p.resolveType(s.Type)
	if err != nil {
		return err
	}
	addr, err := st.p.gen.EmitLocal(st.fs, s.Name, ty, st.p.span)
	if err != nil {
		return err
	}
	st.bind(s.Name, binding{addr: addr, ty: ty})
	return nil
}

func (st *bodyState) emitAddrOf(s *ScenarioStep) error {
	if len(s.Args) != 1 {
		return fmt.Errorf("addr_of takes exactly one source value")
	}
	b, err := st.resolve(s.Args[0])
	if err != nil {
		return err
	}
	if !b.addr.Valid() {
		return fmt.Errorf("%q has no address", s.Args[0])
	}
	ptrTy := st.p.in.Intern(types.MakePointer(b.ty))
	st.bind(s.Name, binding{scalar: b.addr, ty: ptrTy})
	return nil
}

// argEmitter turns a binding into the sequence-point emitter the call
// materializer drives. Spilled formals reload through the forwarding path
// so aggregate params keep their slot address.
func (st *bodyState) argEmitter(b binding) lower.ArgEmitter {
	if b.param >= 0 {
		idx := b.param
		return func(l *lower.CallArgList) error {
			return st.p.gen.ForwardParamArg(st.fs, l, idx, st.p.span)
		}
	}
	if b.addr.Valid() {
		return func(l *lower.CallArgList) error {
			l.AddAddressable(b.addr, b.ty)
			return nil
		}
	}
	return func(l *lower.CallArgList) error {
		l.Add(lower.ScalarRV(b.scalar), b.ty)
		return nil
	}
}

func (st *bodyState) emitCall(s *ScenarioStep) error {
	callee, ok := st.p.decls[s.Callee]
	if !ok {
		return fmt.Errorf("unknown callee %q", s.Callee)
	}
	implicit := 0
	if callee.IsInstance() {
		implicit = 1
	}
	inputs := make([]lower.ArgInput, len(s.Args))
	for j, name := range s.Args {
		b, err := st.resolve(name)
		if err != nil {
			return err
		}
		in := lower.ArgInput{Ty: b.ty, Emit: st.argEmitter(b)}
		if fi := j - implicit; fi >= 0 && fi < len(callee.Params) {
			in.Param = &callee.Params[fi]
		}
		inputs[j] = in
	}
	list, err := st.p.gen.EmitCallArgs(st.fs, inputs, st.p.span)
	if err != nil {
		return err
	}

	ref := decl.FreeRef(callee)
	var fi *abi.FuncInfo
	switch callee.Kind {
	case decl.KindCtor:
		variant, verr := parseVariant(s.Variant)
		if verr != nil {
			return verr
		}
		ref = decl.StructorRef(callee, variant)
		fi, err = st.p.gen.ArrangeCtorCall(list.ArgTypes(), ref, 0, 0, true)
	case decl.KindDtor:
		variant, verr := parseVariant(s.Variant)
		if verr != nil {
			return verr
		}
		ref = decl.StructorRef(callee, variant)
		fi, err = st.p.gen.ArrangeRef(ref)
	case decl.KindMethod:
		required := abi.AllArgs()
		if info, infoOK := st.p.in.FnInfo(callee.Type); infoOK && info.Variadic {
			required = abi.ForPrototypePlus(info, 1)
		}
		fi, err = st.p.gen.ArrangeMethodCall(list.ArgTypes(), callee.Type, required, 0)
	default:
		fi, err = st.p.gen.ArrangeFreeFnCall(list.ArgTypes(), callee.Type, false)
	}
	if err != nil {
		return err
	}

	target := lower.DirectCallee(ref)
	if s.Virtual {
		target = lower.VirtualCallee(callee)
	}
	rv, err := st.p.gen.EmitCall(st.fs, fi, target, list, lower.CallOpts{}, st.p.span)
	if err != nil {
		return err
	}
	if s.Name != "" {
		info, infoOK := st.p.in.FnInfo(callee.Type)
		if !infoOK {
			return fmt.Errorf("callee %q has no function type", s.Callee)
		}
		switch {
		case rv.Aggregate:
			st.bind(s.Name, binding{addr: rv.V, ty: info.Ret})
		case rv.V.Valid():
			st.bind(s.Name, binding{scalar: rv.V, ty: info.Ret})
		default:
			return fmt.Errorf("call to %q produces no value to name", s.Callee)
		}
	}
	return nil
}

func (st *bodyState) emitVAArg(s *ScenarioStep) error {
	b, err := st.resolve(s.List)
	if err != nil {
		return err
	}
	list := b.scalar
	if b.addr.Valid() {
		list = b.addr
	}
	ty, err := st.p.resolveType(s.Type)
	if err != nil {
		return err
	}
	v, err := st.p.gen.EmitVAArg(st.fs, list, ty, st.p.span)
	if err != nil {
		return err
	}
	st.bind(s.Name, binding{scalar: v, ty: ty})
	return nil
}

func (st *bodyState) emitRuntimeCall(s *ScenarioStep) error {
	args := make([]kir.Value, len(s.Args))
	for i, name := range s.Args {
		b, err := st.resolve(name)
		if err != nil {
			return err
		}
		if b.addr.Valid() {
			args[i] = b.addr
		} else {
			args[i] = b.scalar
		}
	}
	ret := st.p.gen.Module.Types.Builtins().Void
	var srcTy types.TypeID
	if s.Type != "" {
		ty, err := st.p.resolveType(s.Type)
		if err != nil {
			return err
		}
		mt, err := st.p.gen.MachineType(ty)
		if err != nil {
			return err
		}
		ret = mt
		srcTy = ty
	}
	v := st.p.gen.EmitRuntimeCall(st.fs, s.Callee, args, ret, st.p.span)
	if v.Valid() {
		st.bind(s.Name, binding{scalar: v, ty: srcTy})
	}
	return nil
}

func (st *bodyState) emitReturn(s *ScenarioStep) error {
	if len(s.Args) == 0 {
		return nil // void; the epilogue emits the terminator
	}
	b, err := st.resolve(s.Args[0])
	if err != nil {
		return err
	}
	rv, err := st.returnValue(b)
	if err != nil {
		return err
	}
	return st.p.gen.StoreRetValue(st.fs, rv, st.p.span)
}

func (st *bodyState) returnValue(b binding) (lower.ReturnValue, error) {
	if b.param >= 0 {
		scratch := &lower.CallArgList{}
		if err := st.p.gen.ForwardParamArg(st.fs, scratch, b.param, st.p.span); err != nil {
			return lower.ReturnValue{}, err
		}
		arg := scratch.Args[0]
		if arg.RV.Aggregate {
			return lower.ReturnValue{V: arg.RV.Addr, Aggregate: true}, nil
		}
		return lower.ReturnValue{V: arg.RV.Scalar}, nil
	}
	if b.addr.Valid() {
		return lower.ReturnValue{V: b.addr, Aggregate: true}, nil
	}
	return lower.ReturnValue{V: b.scalar}, nil
}
