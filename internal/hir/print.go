package hir

import (
	"fmt"
	"strings"
)

func (o Operand) String() string {
	switch o.Kind {
	case OperandHole:
		return "?"
	default:
		return o.Name
	}
}

func formatDest(d Dest) string {
	s := d.Name
	if d.Type != TypeUnknown {
		s += ": " + d.Type.String()
	}
	if d.Tag.Specified() {
		s += " " + d.Tag.String()
	}
	return s
}

func formatDests(ds []Dest) string {
	parts := make([]string, len(ds))
	for i := range ds {
		parts[i] = formatDest(ds[i])
	}
	return strings.Join(parts, ", ")
}

func formatOperands(os []Operand) string {
	parts := make([]string, len(os))
	for i := range os {
		parts[i] = os[i].String()
	}
	return strings.Join(parts, ", ")
}

func (in *Instr) String() string {
	switch in.Kind {
	case InstrDecl:
		kw := "let"
		if in.Decl.Mutable {
			kw = "var"
		}
		if in.Decl.Rhs.Kind == OperandHole && in.Decl.Mutable {
			return fmt.Sprintf("%s %s", kw, formatDest(in.Decl.Dest))
		}
		return fmt.Sprintf("%s %s = %s", kw, formatDest(in.Decl.Dest), in.Decl.Rhs)
	case InstrStore:
		return fmt.Sprintf("%s <- %s", formatDest(in.Store.Dest), in.Store.Rhs)
	case InstrLoad:
		return fmt.Sprintf("%s = *%s", formatDest(in.Load.Dest), in.Load.Src)
	case InstrOp:
		return fmt.Sprintf("%s = %s(%s)", formatDests(in.Op.Dests), in.Op.Name, formatOperands(in.Op.Args))
	case InstrPhi:
		parts := make([]string, len(in.Phi.Inputs))
		for i, p := range in.Phi.Inputs {
			parts[i] = fmt.Sprintf("%s: %s", p.Pred, p.Name)
		}
		return fmt.Sprintf("%s = phi(%s)", in.Phi.Dest, strings.Join(parts, ", "))
	case InstrInAnnot, InstrOutAnnot:
		parts := make([]string, len(in.Annot.Annots))
		for i, a := range in.Annot.Annots {
			parts[i] = a.Name + " " + a.Tag.String()
		}
		return fmt.Sprintf("@%s {%s}", in.Kind, strings.Join(parts, "; "))
	case InstrEncode:
		return fmt.Sprintf("%s = encode(%s)", formatDest(in.Encode.Encoder), strings.Join(in.Encode.Fences, ", "))
	case InstrSubmit:
		return fmt.Sprintf("%s = submit(%s)", formatDest(in.Submit.Dest), in.Submit.Src)
	case InstrSync:
		return fmt.Sprintf("%s = sync(%s; %s)", formatDests(in.Sync.Dests), in.Sync.Fence, strings.Join(in.Sync.Srcs, ", "))
	case InstrHole:
		return fmt.Sprintf("%s = ???", formatDests(in.Hole.Dests))
	default:
		return in.Kind.String()
	}
}

func (t *Terminator) String() string {
	switch t.Kind {
	case TermReturn:
		return fmt.Sprintf("return %s -> [%s]", strings.Join(t.Return.Values, ", "), formatDests(t.Return.Dests))
	case TermFinalReturn:
		return "final_return " + strings.Join(t.FinalReturn.Values, ", ")
	case TermSelect:
		return "select " + t.Select.Guard
	case TermCall:
		return fmt.Sprintf("[%s] = call %s(%s)", formatDests(t.Call.Dests), t.Call.Callee, strings.Join(t.Call.Args, ", "))
	default:
		return t.Kind.String()
	}
}
