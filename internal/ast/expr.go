package ast

import (
	"hlsched/internal/hir"
	"hlsched/internal/source"
)

type ExprKind uint8

const (
	ExprVar ExprKind = iota
	ExprInt
	ExprFloat
	ExprBool
	// ExprHole is `?`, a value left for synthesis.
	ExprHole
	// ExprLoad reads through a mutable variable: `*x`.
	ExprLoad
	ExprBinary
	ExprUnary
	// ExprCall calls an extern or a scheduling function. Which one is decided
	// when blocks are built.
	ExprCall
)

func (k ExprKind) String() string {
	switch k {
	case ExprVar:
		return "var"
	case ExprInt:
		return "int"
	case ExprFloat:
		return "float"
	case ExprBool:
		return "bool"
	case ExprHole:
		return "hole"
	case ExprLoad:
		return "load"
	case ExprBinary:
		return "binary"
	case ExprUnary:
		return "unary"
	case ExprCall:
		return "call"
	default:
		return "?"
	}
}

// Expr is a scheduling expression. Name holds the variable, the literal
// text, the operator mnemonic or the callee, depending on Kind.
type Expr struct {
	Kind ExprKind
	Span source.Span
	Name string
	Args []Expr
	Tag  hir.TripleTag // tags of a call's result tuple
}

// IsAtom reports whether e is a leaf that fits in an operand.
func (e *Expr) IsAtom() bool {
	switch e.Kind {
	case ExprVar, ExprInt, ExprFloat, ExprBool, ExprHole:
		return true
	default:
		return false
	}
}

// Operand converts an atom. It must only be called when IsAtom holds.
func (e *Expr) Operand() hir.Operand {
	var kind hir.OperandKind
	switch e.Kind {
	case ExprInt:
		kind = hir.OperandInt
	case ExprFloat:
		kind = hir.OperandFloat
	case ExprBool:
		kind = hir.OperandBool
	case ExprHole:
		kind = hir.OperandHole
	default:
		kind = hir.OperandVar
	}
	return hir.Operand{Kind: kind, Name: e.Name, Tag: e.Tag}
}

// Operands converts a list of atoms.
func Operands(es []Expr) []hir.Operand {
	res := make([]hir.Operand, len(es))
	for i := range es {
		res[i] = es[i].Operand()
	}
	return res
}

// VarNames returns the names of a list of variable expressions.
func VarNames(es []Expr) []string {
	res := make([]string, len(es))
	for i := range es {
		res[i] = es[i].Name
	}
	return res
}

func (e Expr) String() string {
	switch e.Kind {
	case ExprHole:
		return "?"
	case ExprLoad:
		return "*" + e.Name
	case ExprBinary:
		if len(e.Args) == 2 {
			return "(" + e.Args[0].String() + " " + e.Name + " " + e.Args[1].String() + ")"
		}
	case ExprUnary:
		if len(e.Args) == 1 {
			return e.Name + e.Args[0].String()
		}
	case ExprCall:
		s := e.Name + "("
		for i := range e.Args {
			if i > 0 {
				s += ", "
			}
			s += e.Args[i].String()
		}
		return s + ")"
	}
	return e.Name
}
