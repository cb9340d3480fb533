package hir

import "hlsched/internal/source"

type TermKind uint8

const (
	// TermNone falls through to the block's single successor.
	TermNone TermKind = iota
	// TermNext jumps to the continuation.
	TermNext
	// TermReturn yields values to the enclosing scope's destinations.
	TermReturn
	// TermFinalReturn returns from the function; only the final block has it.
	TermFinalReturn
	// TermSelect branches on a guard.
	TermSelect
	// TermCall calls another scheduling function and continues in the next block.
	TermCall
)

func (k TermKind) String() string {
	switch k {
	case TermNone:
		return "none"
	case TermNext:
		return "next"
	case TermReturn:
		return "return"
	case TermFinalReturn:
		return "final_return"
	case TermSelect:
		return "select"
	case TermCall:
		return "call"
	default:
		return "?"
	}
}

type Terminator struct {
	Kind TermKind
	Span source.Span

	Return      ReturnTerm
	FinalReturn FinalReturnTerm
	Select      SelectTerm
	Call        CallTerm
}

type ReturnTerm struct {
	Dests  []Dest
	Values []string
}

type FinalReturnTerm struct {
	Values []string
}

type SelectTerm struct {
	Guard string
	Dests []Dest // variables assigned by both branches, for `let x = if ...`
	Tag   TripleTag
}

type CallTerm struct {
	Dests  []Dest
	Callee string
	Args   []string
	Tag    TripleTag // tags of the call's result tuple
}

// Clone returns a deep copy of t.
func (t *Terminator) Clone() Terminator {
	c := *t
	c.Return.Dests = cloneDests(t.Return.Dests)
	c.Return.Values = append([]string(nil), t.Return.Values...)
	c.FinalReturn.Values = append([]string(nil), t.FinalReturn.Values...)
	c.Select.Dests = cloneDests(t.Select.Dests)
	c.Call.Dests = cloneDests(t.Call.Dests)
	c.Call.Args = append([]string(nil), t.Call.Args...)
	return c
}

func (t *Terminator) Uses() []string {
	switch t.Kind {
	case TermReturn:
		return append([]string(nil), t.Return.Values...)
	case TermFinalReturn:
		return append([]string(nil), t.FinalReturn.Values...)
	case TermSelect:
		return []string{t.Select.Guard}
	case TermCall:
		return append([]string(nil), t.Call.Args...)
	default:
		return nil
	}
}

func (t *Terminator) Defs() []string {
	switch t.Kind {
	case TermReturn:
		return destNames(t.Return.Dests)
	case TermCall:
		return destNames(t.Call.Dests)
	default:
		return nil
	}
}

func (t *Terminator) RenameUses(f func(string) string) {
	switch t.Kind {
	case TermReturn:
		renameAll(t.Return.Values, f)
	case TermFinalReturn:
		renameAll(t.FinalReturn.Values, f)
	case TermSelect:
		t.Select.Guard = f(t.Select.Guard)
	case TermCall:
		renameAll(t.Call.Args, f)
	}
}

func (t *Terminator) RenameDefs(f func(string) string) {
	switch t.Kind {
	case TermReturn:
		renameDests(t.Return.Dests, f)
	case TermCall:
		renameDests(t.Call.Dests, f)
	}
}
