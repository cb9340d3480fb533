package ast

import (
	"hlsched/internal/hir"
	"hlsched/internal/source"
)

type StmtKind uint8

const (
	// StmtDecl binds destinations: `let x = e` or `var x = e`.
	StmtDecl StmtKind = iota
	// StmtAssign stores into a mutable variable.
	StmtAssign
	// StmtCall is a call whose results are discarded.
	StmtCall
	StmtIf
	// StmtBlock is a nested `{ ... }`; flattening splices it away.
	StmtBlock
	// StmtSeq binds destinations to the result of a nested block or if.
	StmtSeq
	StmtReturn
	StmtInAnnot
	StmtOutAnnot
	StmtEncode
	StmtSubmit
	StmtSync
	StmtHole
)

func (k StmtKind) String() string {
	switch k {
	case StmtDecl:
		return "let"
	case StmtAssign:
		return "assign"
	case StmtCall:
		return "call"
	case StmtIf:
		return "if"
	case StmtBlock:
		return "block"
	case StmtSeq:
		return "seq"
	case StmtReturn:
		return "return"
	case StmtInAnnot:
		return "in"
	case StmtOutAnnot:
		return "out"
	case StmtEncode:
		return "encode"
	case StmtSubmit:
		return "submit"
	case StmtSync:
		return "sync"
	case StmtHole:
		return "hole"
	default:
		return "?"
	}
}

// Stmt is a scheduling statement. Only the payload matching Kind is used.
type Stmt struct {
	Kind StmtKind
	Span source.Span

	Decl   DeclStmt
	Assign AssignStmt
	Call   CallStmt
	If     IfStmt
	Block  []Stmt
	Seq    SeqStmt
	Return ReturnStmt
	Annot  []hir.Annot
	Encode hir.EncodeInstr
	Submit hir.SubmitInstr
	Sync   hir.SyncInstr
	Hole   hir.HoleInstr
}

type DeclStmt struct {
	Dests   []hir.Dest
	Expr    Expr // ExprHole for `var x;`
	Mutable bool
}

type AssignStmt struct {
	Dest hir.Dest
	Expr Expr
}

type CallStmt struct {
	Callee string
	Args   []Expr
	Tag    hir.TripleTag
}

type IfStmt struct {
	Guard Expr
	Then  []Stmt
	Else  []Stmt
	Tag   hir.TripleTag
}

type SeqStmt struct {
	Dests   []hir.Dest
	Inner   *Stmt // StmtBlock or StmtIf
	Mutable bool
}

type ReturnStmt struct {
	Values []Expr
}

// Func is one scheduling function as handed to the middle-end.
type Func struct {
	Name    string
	Span    source.Span
	Params  []hir.Dest
	Results []hir.Dest
	// Specs names the spec funclet implemented in each sort, indexed by hir.Sort.
	Specs [3]string
	Body  []Stmt
}
