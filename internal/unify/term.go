package unify

import (
	"strconv"
	"strings"
)

// Kind is the head symbol family of a structural term.
type Kind uint8

const (
	KindCall Kind = iota
	KindExtract
	KindBinop
	KindSelect
	KindLiteral
	KindInput
	KindOutput
)

func (k Kind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindExtract:
		return "extract"
	case KindBinop:
		return "binop"
	case KindSelect:
		return "select"
	case KindLiteral:
		return "lit"
	case KindInput:
		return "input"
	case KindOutput:
		return "output"
	default:
		return "?"
	}
}

// Term is a structural constraint over meta-variables. Two terms can only
// be unified when Kind, Name, Index and arity agree.
type Term struct {
	Kind  Kind
	Name  string // callee, operator, literal text, or input/output name
	Index int    // extracted tuple position
	Args  []string
}

func Call(fn string, args ...string) Term {
	return Term{Kind: KindCall, Name: fn, Args: args}
}

func Extract(tuple string, i int) Term {
	return Term{Kind: KindExtract, Index: i, Args: []string{tuple}}
}

func Binop(op, lhs, rhs string) Term {
	return Term{Kind: KindBinop, Name: op, Args: []string{lhs, rhs}}
}

func Select(guard, ifTrue, ifFalse string) Term {
	return Term{Kind: KindSelect, Args: []string{guard, ifTrue, ifFalse}}
}

func Literal(text string) Term {
	return Term{Kind: KindLiteral, Name: text}
}

func Input(name string) Term {
	return Term{Kind: KindInput, Name: name}
}

func Output(name string) Term {
	return Term{Kind: KindOutput, Name: name}
}

// AlphaEquiv reports whether t and o have the same shape up to renaming of
// their arguments.
func (t Term) AlphaEquiv(o Term) bool {
	return t.head() == o.head() && len(t.Args) == len(o.Args)
}

type head struct {
	kind  Kind
	name  string
	index int
}

func (t Term) head() head {
	return head{kind: t.Kind, name: t.Name, index: t.Index}
}

func (h head) String() string {
	switch h.kind {
	case KindExtract:
		return "extract." + strconv.Itoa(h.index)
	case KindSelect:
		return "select"
	default:
		return h.kind.String() + " " + h.name
	}
}

func (t Term) String() string {
	if len(t.Args) == 0 {
		return t.head().String()
	}
	return t.head().String() + "(" + strings.Join(t.Args, ", ") + ")"
}

const (
	// ClassSigil prefixes spec node classes.
	ClassSigil = "$"
	// TempSigil prefixes temporaries minted by the environment.
	TempSigil = "%"
)

// Class returns the meta-variable naming spec node name.
func Class(name string) string { return ClassSigil + name }

// IsClass reports whether v names a spec node class.
func IsClass(v string) bool { return strings.HasPrefix(v, ClassSigil) }

// IsTemp reports whether v is a temporary.
func IsTemp(v string) bool { return strings.HasPrefix(v, TempSigil) }
