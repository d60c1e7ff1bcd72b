package driver

import (
	"fmt"
	"strings"

	"karst/internal/types"
)

// FuncInfoTable renders the arranged descriptor of every declared symbol,
// one line each, in declaration order. The table is the --emit=funcinfo
// surface: canonical argument types after implicit receivers and
// object-size expansion, the required prefix, and the final convention.
func (l *Lowered) FuncInfoTable() string {
	var b strings.Builder
	for i, ref := range l.refs {
		fi, err := l.Gen.ArrangeRef(ref)
		if err != nil {
			fmt.Fprintf(&b, "fn %s : <error: %v>\n", l.Funcs[i], err)
			continue
		}
		args := make([]string, 0, fi.NumArgs()+1)
		for _, a := range fi.Args {
			args = append(args, typeName(l.Gen.Types, a))
		}
		if fi.IsVariadic() {
			args = append(args, "...")
		}
		fmt.Fprintf(&b, "fn %s : (%s) -> %s", l.Funcs[i], strings.Join(args, ", "), typeName(l.Gen.Types, fi.Ret))
		if fi.CC != types.CallConvDefault {
			fmt.Fprintf(&b, " cc=%s", fi.CC)
		}
		if fi.IsVariadic() {
			fmt.Fprintf(&b, " required=%d", fi.NumRequiredArgs())
		}
		if fi.InstanceMethod {
			b.WriteString(" instance")
		}
		if fi.NoReturn {
			b.WriteString(" noreturn")
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// typeName renders a source type for the descriptor table.
func typeName(in *types.Interner, id types.TypeID) string {
	t, ok := in.Lookup(id)
	if !ok {
		return fmt.Sprintf("type#%d", id)
	}
	switch t.Kind {
	case types.KindVoid:
		return "void"
	case types.KindBool:
		return "bool"
	case types.KindInt:
		if t.Signed {
			return fmt.Sprintf("i%d", t.Width)
		}
		return fmt.Sprintf("u%d", t.Width)
	case types.KindFloat:
		return fmt.Sprintf("f%d", t.Width)
	case types.KindPointer:
		return "*" + typeName(in, t.Elem)
	case types.KindArray:
		return fmt.Sprintf("[%d]%s", t.Count, typeName(in, t.Elem))
	case types.KindRecord:
		if info, ok := in.RecordInfo(id); ok && info.Name != "" {
			return info.Name
		}
		return "record"
	case types.KindFnProto, types.KindFnNoProto:
		return "fn"
	default:
		return t.Kind.String()
	}
}
