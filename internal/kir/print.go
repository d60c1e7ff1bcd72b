package kir

import (
	"fmt"
	"strconv"
	"strings"
)

// PrintModule renders the module in the deterministic textual form golden
// tests compare against.
func PrintModule(m *Module) string {
	p := &printer{types: m.Types}
	p.buf.WriteString("module {\n")
	for _, f := range m.Funcs {
		p.printFunc(f, 1)
	}
	p.buf.WriteString("}\n")
	return p.buf.String()
}

// PrintFunc renders a single function at top level.
func PrintFunc(types *Interner, f *FuncOp) string {
	p := &printer{types: types}
	p.printFunc(f, 0)
	return p.buf.String()
}

type printer struct {
	types *Interner
	fn    *FuncOp
	buf   strings.Builder
}

func (p *printer) indent(depth int) {
	for range depth {
		p.buf.WriteString("  ")
	}
}

func (p *printer) valueName(id ValueID) string {
	if id == NoValueID {
		return "%?"
	}
	return fmt.Sprintf("%%%d", id-1)
}

// TypeString renders one machine type.
func TypeString(types *Interner, id TypeID) string {
	p := &printer{types: types}
	return p.typeString(id)
}

func (p *printer) typeString(id TypeID) string {
	tt, ok := p.types.Lookup(id)
	if !ok {
		return "!invalid"
	}
	switch tt.Kind {
	case KindVoid:
		return "!void"
	case KindBool:
		return "!bool"
	case KindInt:
		sign := "u"
		if tt.Signed {
			sign = "s"
		}
		return fmt.Sprintf("!%s%di", sign, tt.Width)
	case KindFloat:
		return fmt.Sprintf("!f%d", tt.Width)
	case KindPointer:
		return "!ptr<" + p.typeString(tt.Elem) + ">"
	case KindArray:
		return fmt.Sprintf("!arr<%s x %d>", p.typeString(tt.Elem), tt.Count)
	case KindRecord:
		info, ok := p.types.RecordInfo(id)
		if !ok {
			return "!rec_invalid"
		}
		if info.Name != "" {
			return "!rec_" + info.Name
		}
		fields := make([]string, 0, len(info.Fields))
		for _, f := range info.Fields {
			fields = append(fields, p.typeString(f))
		}
		return "!rec<" + strings.Join(fields, ", ") + ">"
	case KindFn:
		info, ok := p.types.FnTy(id)
		if !ok {
			return "!fn_invalid"
		}
		params := make([]string, 0, len(info.Params)+1)
		for _, param := range info.Params {
			params = append(params, p.typeString(param))
		}
		if info.Variadic {
			params = append(params, "...")
		}
		return fmt.Sprintf("!fn<(%s) -> %s>", strings.Join(params, ", "), p.typeString(info.Ret))
	default:
		return "!invalid"
	}
}

func (p *printer) funcSuffix(cc CallingConv, attrs AttrSet) string {
	var out strings.Builder
	if cc != CallingConvC {
		fmt.Fprintf(&out, " cc(%s)", cc)
	}
	if !attrs.IsEmpty() {
		fmt.Fprintf(&out, " attrs(%s)", attrs)
	}
	return out.String()
}

func (p *printer) printFunc(f *FuncOp, depth int) {
	if f == nil {
		return
	}
	p.fn = f
	p.indent(depth)
	if f.IsDeclaration() {
		fmt.Fprintf(&p.buf, "kir.func @%s : %s%s\n", f.Name, p.typeString(f.Type), p.funcSuffix(f.CC, f.Attrs))
		return
	}
	info, ok := p.types.FnTy(f.Type)
	if !ok {
		fmt.Fprintf(&p.buf, "kir.func @%s : !fn_invalid\n", f.Name)
		return
	}
	params := make([]string, 0, len(f.Params)+1)
	for i, v := range f.Params {
		part := fmt.Sprintf("%s: %s", p.valueName(v), p.typeString(f.ValueType(v)))
		if i < len(f.ArgExt) && f.ArgExt[i] != ExtNone {
			part += " " + f.ArgExt[i].String()
		}
		params = append(params, part)
	}
	if info.Variadic {
		params = append(params, "...")
	}
	ret := p.typeString(info.Ret)
	if f.RetExt != ExtNone {
		ret += " " + f.RetExt.String()
	}
	fmt.Fprintf(&p.buf, "kir.func @%s(%s) -> %s%s {\n", f.Name, strings.Join(params, ", "), ret, p.funcSuffix(f.CC, f.Attrs))
	p.printRegion(f.Body, depth+1)
	p.indent(depth)
	p.buf.WriteString("}\n")
}

func (p *printer) printRegion(r *Region, depth int) {
	if r == nil {
		return
	}
	for i, bb := range r.Blocks {
		if i > 0 {
			p.indent(depth - 1)
			fmt.Fprintf(&p.buf, " ^bb%d:\n", i)
		}
		for j := range bb.Ops {
			p.printOp(&bb.Ops[j], depth)
		}
	}
}

func (p *printer) printOp(op *Op, depth int) {
	p.indent(depth)
	switch op.Kind {
	case OpAlloca:
		fmt.Fprintf(&p.buf, "%s = kir.alloca %s%s : %s\n",
			p.valueName(op.Result), p.typeString(op.Alloca.Elem),
			allocaBracket(op.Alloca.Name, op.Alloca.Align), p.typeString(op.Type))
	case OpLoad:
		fmt.Fprintf(&p.buf, "%s = kir.load %s%s : %s -> %s\n",
			p.valueName(op.Result), p.valueName(op.Load.Addr), alignBracket(op.Load.Align),
			p.typeString(p.fn.ValueType(op.Load.Addr)), p.typeString(op.Type))
	case OpStore:
		fmt.Fprintf(&p.buf, "kir.store %s, %s%s : %s\n",
			p.valueName(op.Store.Val), p.valueName(op.Store.Addr), alignBracket(op.Store.Align),
			p.typeString(p.fn.ValueType(op.Store.Val)))
	case OpCast:
		fmt.Fprintf(&p.buf, "%s = kir.cast %s %s : %s -> %s\n",
			p.valueName(op.Result), op.Cast.CastKind, p.valueName(op.Cast.Val),
			p.typeString(p.fn.ValueType(op.Cast.Val)), p.typeString(op.Type))
	case OpConstInt:
		p.printConstInt(op)
	case OpConstFloat:
		fmt.Fprintf(&p.buf, "%s = kir.const %s : %s\n",
			p.valueName(op.Result), strconv.FormatFloat(op.ConstFloat.Value, 'g', -1, 64),
			p.typeString(op.Type))
	case OpUndef:
		fmt.Fprintf(&p.buf, "%s = kir.undef : %s\n", p.valueName(op.Result), p.typeString(op.Type))
	case OpGetGlobal:
		fmt.Fprintf(&p.buf, "%s = kir.get_global @%s : %s\n",
			p.valueName(op.Result), op.GetGlobal.Name, p.typeString(op.Type))
	case OpCall, OpTryCall:
		p.printCall(op)
	case OpTry:
		if op.Try.Synthetic {
			p.buf.WriteString("kir.try synthetic {\n")
		} else {
			p.buf.WriteString("kir.try {\n")
		}
		p.printRegion(op.Try.Body, depth+1)
		p.indent(depth)
		p.buf.WriteString("} handler {\n")
		p.printRegion(op.Try.Handler, depth+1)
		p.indent(depth)
		p.buf.WriteString("}\n")
	case OpYield:
		p.buf.WriteString("kir.yield\n")
	case OpResume:
		p.buf.WriteString("kir.resume\n")
	case OpReturn:
		if op.Return.HasValue {
			fmt.Fprintf(&p.buf, "kir.return %s : %s\n",
				p.valueName(op.Return.Value), p.typeString(p.fn.ValueType(op.Return.Value)))
		} else {
			p.buf.WriteString("kir.return\n")
		}
	case OpVAArg:
		fmt.Fprintf(&p.buf, "%s = kir.va_arg %s : %s\n",
			p.valueName(op.Result), p.valueName(op.VAArg.List), p.typeString(op.Type))
	case OpVTableFn:
		fmt.Fprintf(&p.buf, "%s = kir.vtable_fn %s[%d] : %s\n",
			p.valueName(op.Result), p.valueName(op.VTableFn.Object), op.VTableFn.Slot,
			p.typeString(op.Type))
	case OpAssertNonNull:
		fmt.Fprintf(&p.buf, "kir.assert_nonnull %s : %s\n",
			p.valueName(op.AssertNonNull.Val), p.typeString(p.fn.ValueType(op.AssertNonNull.Val)))
	default:
		fmt.Fprintf(&p.buf, "<unknown op %d>\n", op.Kind)
	}
}

func (p *printer) printConstInt(op *Op) {
	tt, _ := p.types.Lookup(op.Type)
	if tt.Signed {
		fmt.Fprintf(&p.buf, "%s = kir.const %d : %s\n",
			p.valueName(op.Result), int64(op.ConstInt.Value), p.typeString(op.Type))
		return
	}
	fmt.Fprintf(&p.buf, "%s = kir.const %d : %s\n",
		p.valueName(op.Result), op.ConstInt.Value, p.typeString(op.Type))
}

func (p *printer) printCall(op *Op) {
	name := op.Kind.String()
	target := ""
	switch op.Call.Callee.Kind {
	case CalleeDirect:
		target = "@" + op.Call.Callee.Name
	case CalleeIndirect:
		target = p.valueName(op.Call.Callee.Value)
	}
	args := make([]string, 0, len(op.Call.Args))
	argTypes := make([]string, 0, len(op.Call.Args))
	for _, a := range op.Call.Args {
		args = append(args, p.valueName(a))
		argTypes = append(argTypes, p.typeString(p.fn.ValueType(a)))
	}
	retTy := "!void"
	if op.Result != NoValueID {
		fmt.Fprintf(&p.buf, "%s = ", p.valueName(op.Result))
		retTy = p.typeString(op.Type)
	}
	fmt.Fprintf(&p.buf, "%s %s(%s) : (%s) -> %s", name, target,
		strings.Join(args, ", "), strings.Join(argTypes, ", "), retTy)
	if op.Call.CC != CallingConvC {
		fmt.Fprintf(&p.buf, " cc(%s)", op.Call.CC)
	}
	if op.Call.SideEffect != SideEffectAll {
		fmt.Fprintf(&p.buf, " se(%s)", op.Call.SideEffect)
	}
	if !op.Call.Attrs.IsEmpty() {
		fmt.Fprintf(&p.buf, " attrs(%s)", op.Call.Attrs)
	}
	p.buf.WriteString("\n")
}

func allocaBracket(name string, align uint32) string {
	switch {
	case name != "" && align != 0:
		return fmt.Sprintf(" [%q, align %d]", name, align)
	case name != "":
		return fmt.Sprintf(" [%q]", name)
	case align != 0:
		return fmt.Sprintf(" [align %d]", align)
	default:
		return ""
	}
}

func alignBracket(align uint32) string {
	if align == 0 {
		return ""
	}
	return fmt.Sprintf(" [align %d]", align)
}
