package ast

import (
	"fmt"
	"strconv"

	"hlsched/internal/diag"
	"hlsched/internal/hir"
	"hlsched/internal/source"
)

// TempPrefix starts the names of temporaries introduced by Flatten.
const TempPrefix = "_tmp"

// FlattenError reports a statement that cannot be flattened.
type FlattenError struct {
	Code diag.Code
	Span source.Span
	Msg  string
}

func (e *FlattenError) Error() string {
	return e.Code.ID() + ": " + e.Msg
}

// Flatten removes nested blocks and leaves `if` as the only structured
// statement. A sequence over a block becomes the block's body followed by a
// declaration of the returned values; a sequence over an `if` keeps the `if`
// with flattened branches.
//
// Nested operands are hoisted into temporaries. Call arguments, guards and
// returned values must be variables, so literals there are hoisted too.
// After flattening every expression is an atom, a load, an operator over
// atoms or a call over variables.
func Flatten(body []Stmt) ([]Stmt, error) {
	f := &flattener{}
	return f.stmts(body)
}

type flattener struct {
	tmp int
}

func (f *flattener) stmts(body []Stmt) ([]Stmt, error) {
	res := make([]Stmt, 0, len(body))
	var err error
	for i := range body {
		res, err = f.stmt(res, body[i])
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (f *flattener) stmt(res []Stmt, s Stmt) ([]Stmt, error) {
	switch s.Kind {
	case StmtBlock:
		inner, err := f.stmts(s.Block)
		if err != nil {
			return nil, err
		}
		return append(res, inner...), nil
	case StmtIf:
		return f.ifStmt(res, s)
	case StmtSeq:
		return f.seq(res, s)
	case StmtDecl:
		return f.decl(res, s)
	case StmtAssign:
		res, s.Assign.Expr = f.hoist(res, s.Assign.Expr, false)
	case StmtCall:
		res, s.Call.Args = f.hoistAll(res, s.Call.Args, true)
	case StmtReturn:
		res, s.Return.Values = f.hoistAll(res, s.Return.Values, true)
	}
	return append(res, s), nil
}

func (f *flattener) ifStmt(res []Stmt, s Stmt) ([]Stmt, error) {
	var err error
	res, s.If.Guard = f.hoist(res, s.If.Guard, true)
	if s.If.Then, err = f.stmts(s.If.Then); err != nil {
		return nil, err
	}
	if s.If.Else, err = f.stmts(s.If.Else); err != nil {
		return nil, err
	}
	return append(res, s), nil
}

func (f *flattener) seq(res []Stmt, s Stmt) ([]Stmt, error) {
	inner := s.Seq.Inner
	if inner == nil {
		return nil, &FlattenError{Code: diag.FlatBadSeq, Span: s.Span, Msg: "sequence without a body"}
	}
	switch inner.Kind {
	case StmtBlock:
		body := inner.Block
		if len(body) == 0 || body[len(body)-1].Kind != StmtReturn {
			return nil, &FlattenError{
				Code: diag.FlatEmptySeqBlock,
				Span: s.Span,
				Msg:  fmt.Sprintf("block assigned to %s does not end in a return", destList(s.Seq.Dests)),
			}
		}
		prefix, err := f.stmts(body[:len(body)-1])
		if err != nil {
			return nil, err
		}
		res = append(res, prefix...)
		ret := body[len(body)-1]
		values := ret.Return.Values
		switch {
		case len(values) == len(s.Seq.Dests):
			for i := range values {
				d := Stmt{Kind: StmtDecl, Span: ret.Span}
				d.Decl = DeclStmt{Dests: s.Seq.Dests[i : i+1], Expr: values[i], Mutable: s.Seq.Mutable}
				if res, err = f.decl(res, d); err != nil {
					return nil, err
				}
			}
			return res, nil
		case len(values) == 1:
			d := Stmt{Kind: StmtDecl, Span: ret.Span}
			d.Decl = DeclStmt{Dests: s.Seq.Dests, Expr: values[0], Mutable: s.Seq.Mutable}
			return f.decl(res, d)
		default:
			return nil, &FlattenError{
				Code: diag.FlatBadReturn,
				Span: ret.Span,
				Msg:  fmt.Sprintf("block returns %d values but %d are bound", len(values), len(s.Seq.Dests)),
			}
		}
	case StmtIf:
		sub, err := f.ifStmt(nil, *inner)
		if err != nil {
			return nil, err
		}
		// everything before the last statement is the hoisted guard
		res = append(res, sub[:len(sub)-1]...)
		flat := sub[len(sub)-1]
		s.Seq.Inner = &flat
		return append(res, s), nil
	default:
		return nil, &FlattenError{
			Code: diag.FlatBadSeq,
			Span: s.Span,
			Msg:  fmt.Sprintf("sequence over %s statement", inner.Kind),
		}
	}
}

func (f *flattener) decl(res []Stmt, s Stmt) ([]Stmt, error) {
	e := &s.Decl.Expr
	switch e.Kind {
	case ExprBinary, ExprUnary:
		res, e.Args = f.hoistAll(res, e.Args, false)
		fallthrough
	case ExprVar, ExprInt, ExprFloat, ExprBool, ExprHole, ExprLoad:
		if len(s.Decl.Dests) != 1 {
			return nil, &FlattenError{
				Code: diag.FlatArity,
				Span: s.Span,
				Msg:  fmt.Sprintf("%s yields one value but binds %s", e, destList(s.Decl.Dests)),
			}
		}
	case ExprCall:
		res, e.Args = f.hoistAll(res, e.Args, true)
	}
	return append(res, s), nil
}

// hoist moves e into a temporary unless it already is an atom. With
// varOnly, literals are hoisted as well.
func (f *flattener) hoist(res []Stmt, e Expr, varOnly bool) ([]Stmt, Expr) {
	if e.Kind == ExprVar || (!varOnly && e.IsAtom()) {
		return res, e
	}
	name := TempPrefix + strconv.Itoa(f.tmp)
	f.tmp++
	d := Let(name, e)
	d.Span = e.Span
	// decl only fails on arity, and a temporary binds exactly one name
	res, _ = f.decl(res, d)
	return res, Expr{Kind: ExprVar, Span: e.Span, Name: name}
}

func (f *flattener) hoistAll(res []Stmt, es []Expr, varOnly bool) ([]Stmt, []Expr) {
	out := make([]Expr, len(es))
	for i := range es {
		res, out[i] = f.hoist(res, es[i], varOnly)
	}
	return res, out
}

func destList(ds []hir.Dest) string {
	s := ""
	for i := range ds {
		if i > 0 {
			s += ", "
		}
		s += ds[i].Name
	}
	return s
}
