package cfg

import (
	"fmt"

	"hlsched/internal/ast"
	"hlsched/internal/diag"
	"hlsched/internal/hir"
)

// lowerStmt converts a body statement into one instruction. Calls to
// scheduling functions and structured statements are handled by the builder.
func lowerStmt(s *ast.Stmt) (hir.Instr, error) {
	in := hir.Instr{Span: s.Span}
	switch s.Kind {
	case ast.StmtDecl:
		e := &s.Decl.Expr
		switch e.Kind {
		case ast.ExprLoad:
			if err := singleDest(s); err != nil {
				return hir.Instr{}, err
			}
			in.Kind = hir.InstrLoad
			in.Load = hir.LoadInstr{Dest: s.Decl.Dests[0], Src: e.Name}
		case ast.ExprBinary, ast.ExprUnary, ast.ExprCall:
			if !atoms(e.Args) {
				return hir.Instr{}, unflattened(s)
			}
			kind := hir.OpExtern
			switch e.Kind {
			case ast.ExprBinary:
				kind = hir.OpBinary
			case ast.ExprUnary:
				kind = hir.OpUnary
			}
			in.Kind = hir.InstrOp
			in.Op = hir.OpInstr{Dests: cloneDests(s.Decl.Dests), Kind: kind, Name: e.Name, Args: ast.Operands(e.Args)}
		default:
			if err := singleDest(s); err != nil {
				return hir.Instr{}, err
			}
			in.Kind = hir.InstrDecl
			in.Decl = hir.DeclInstr{Dest: s.Decl.Dests[0], Rhs: e.Operand(), Mutable: s.Decl.Mutable}
		}
	case ast.StmtAssign:
		if !s.Assign.Expr.IsAtom() {
			return hir.Instr{}, unflattened(s)
		}
		in.Kind = hir.InstrStore
		in.Store = hir.StoreInstr{Dest: s.Assign.Dest, Rhs: s.Assign.Expr.Operand()}
	case ast.StmtCall:
		in.Kind = hir.InstrOp
		in.Op = hir.OpInstr{Kind: hir.OpExtern, Name: s.Call.Callee, Args: ast.Operands(s.Call.Args)}
	case ast.StmtInAnnot, ast.StmtOutAnnot:
		in.Kind = hir.InstrInAnnot
		if s.Kind == ast.StmtOutAnnot {
			in.Kind = hir.InstrOutAnnot
		}
		in.Annot = hir.AnnotInstr{Annots: append([]hir.Annot(nil), s.Annot...)}
	case ast.StmtEncode:
		in.Kind = hir.InstrEncode
		in.Encode = s.Encode
		in.Encode.Fences = append([]string(nil), s.Encode.Fences...)
	case ast.StmtSubmit:
		in.Kind = hir.InstrSubmit
		in.Submit = s.Submit
	case ast.StmtSync:
		in.Kind = hir.InstrSync
		in.Sync = s.Sync
		in.Sync.Dests = cloneDests(s.Sync.Dests)
		in.Sync.Srcs = append([]string(nil), s.Sync.Srcs...)
	case ast.StmtHole:
		in.Kind = hir.InstrHole
		in.Hole = hir.HoleInstr{Dests: cloneDests(s.Hole.Dests)}
	default:
		return hir.Instr{}, unflattened(s)
	}
	return in, nil
}

func singleDest(s *ast.Stmt) error {
	if len(s.Decl.Dests) == 1 {
		return nil
	}
	return &ast.FlattenError{
		Code: diag.FlatArity,
		Span: s.Span,
		Msg:  fmt.Sprintf("%s binds %d variables", s.Decl.Expr, len(s.Decl.Dests)),
	}
}

func atoms(es []ast.Expr) bool {
	for i := range es {
		if !es[i].IsAtom() {
			return false
		}
	}
	return true
}
