package ast

import "hlsched/internal/hir"

// Helpers for building statement trees by hand.

func V(name string) Expr { return Expr{Kind: ExprVar, Name: name} }

func Int(text string) Expr { return Expr{Kind: ExprInt, Name: text} }

func Bool(v bool) Expr {
	if v {
		return Expr{Kind: ExprBool, Name: "true"}
	}
	return Expr{Kind: ExprBool, Name: "false"}
}

func Bin(op string, a, b Expr) Expr { return Expr{Kind: ExprBinary, Name: op, Args: []Expr{a, b}} }

func Call(callee string, args ...Expr) Expr { return Expr{Kind: ExprCall, Name: callee, Args: args} }

func Let(name string, e Expr) Stmt {
	return Stmt{Kind: StmtDecl, Decl: DeclStmt{Dests: []hir.Dest{{Name: name}}, Expr: e}}
}

func LetN(names []string, e Expr) Stmt {
	ds := make([]hir.Dest, len(names))
	for i, n := range names {
		ds[i] = hir.Dest{Name: n}
	}
	return Stmt{Kind: StmtDecl, Decl: DeclStmt{Dests: ds, Expr: e}}
}

func VarDecl(name string, e Expr) Stmt {
	return Stmt{Kind: StmtDecl, Decl: DeclStmt{Dests: []hir.Dest{{Name: name}}, Expr: e, Mutable: true}}
}

func Assign(name string, e Expr) Stmt {
	return Stmt{Kind: StmtAssign, Assign: AssignStmt{Dest: hir.Dest{Name: name}, Expr: e}}
}

func If(guard Expr, then, els []Stmt) Stmt {
	return Stmt{Kind: StmtIf, If: IfStmt{Guard: guard, Then: then, Else: els}}
}

func Block(body ...Stmt) Stmt { return Stmt{Kind: StmtBlock, Block: body} }

func Seq(names []string, inner Stmt) Stmt {
	ds := make([]hir.Dest, len(names))
	for i, n := range names {
		ds[i] = hir.Dest{Name: n}
	}
	return Stmt{Kind: StmtSeq, Seq: SeqStmt{Dests: ds, Inner: &inner}}
}

func Return(values ...Expr) Stmt {
	return Stmt{Kind: StmtReturn, Return: ReturnStmt{Values: values}}
}

func CallStmtOf(callee string, args ...Expr) Stmt {
	return Stmt{Kind: StmtCall, Call: CallStmt{Callee: callee, Args: args}}
}
