package driver

import (
	"maps"
	"slices"

	"gopkg.in/yaml.v3"

	"hlsched/internal/ast"
	"hlsched/internal/diag"
	"hlsched/internal/hir"
)

// stmtKeys are the keys that select a statement kind. A statement mapping
// holds exactly one of them plus its operand keys.
var stmtKeys = []string{
	"let", "var", "set", "call", "if", "block", "return",
	"in", "out", "encode", "submit", "sync", "hole",
}

func (l *loader) stmts(n *yaml.Node) []ast.Stmt {
	items := l.seq(n)
	res := make([]ast.Stmt, 0, len(items))
	for _, it := range items {
		if s, ok := l.stmt(it); ok {
			res = append(res, s)
		}
	}
	return res
}

func (l *loader) stmt(n *yaml.Node) (ast.Stmt, bool) {
	fields := make(map[string][2]*yaml.Node)
	kind := ""
	l.fields(n, func(key string, k, v *yaml.Node) {
		fields[key] = [2]*yaml.Node{k, v}
		if slices.Contains(stmtKeys, key) {
			if kind != "" {
				l.fail(diag.LoadUnknownStmt, k, "statement is both %s and %s", kind, key)
			}
			kind = key
		}
	})
	if kind == "" {
		l.fail(diag.LoadUnknownStmt, n, "statement has none of the keys %v", stmtKeys)
		return ast.Stmt{}, false
	}
	get := func(key string) *yaml.Node {
		return fields[key][1]
	}
	used := map[string]bool{kind: true}
	opt := func(key string) *yaml.Node {
		used[key] = true
		return get(key)
	}
	head := get(kind)
	s := ast.Stmt{Span: l.span(fields[kind][0])}
	switch kind {
	case "let", "var":
		dests := l.dests(head, true)
		if do := opt("do"); do != nil {
			inner, ok := l.stmt(do)
			if !ok {
				return ast.Stmt{}, false
			}
			s.Kind = ast.StmtSeq
			s.Seq = ast.SeqStmt{Dests: dests, Inner: &inner, Mutable: kind == "var"}
			break
		}
		e := ast.Expr{Kind: ast.ExprHole, Span: s.Span}
		if en := opt("expr"); en != nil {
			e = l.expr(en)
		} else if kind == "let" {
			l.fail(diag.LoadInvalidYAML, head, "let needs expr or do")
		}
		if tn := opt("tag"); tn != nil {
			e.Tag = l.tag(tn)
		}
		s.Kind = ast.StmtDecl
		s.Decl = ast.DeclStmt{Dests: dests, Expr: e, Mutable: kind == "var"}
	case "set":
		s.Kind = ast.StmtAssign
		s.Assign = ast.AssignStmt{Dest: l.dest(head, true), Expr: l.required(n, "expr", opt)}
	case "call":
		s.Kind = ast.StmtCall
		s.Call = ast.CallStmt{Callee: l.name(head)}
		if an := opt("args"); an != nil {
			s.Call.Args = l.exprs(an)
		}
		if tn := opt("tag"); tn != nil {
			s.Call.Tag = l.tag(tn)
		}
	case "if":
		s.Kind = ast.StmtIf
		s.If = ast.IfStmt{Guard: l.expr(head)}
		if tn := opt("then"); tn != nil {
			s.If.Then = l.stmts(tn)
		}
		if en := opt("else"); en != nil {
			s.If.Else = l.stmts(en)
		}
		if tn := opt("tag"); tn != nil {
			s.If.Tag = l.tag(tn)
		}
	case "block":
		s.Kind = ast.StmtBlock
		s.Block = l.stmts(head)
	case "return":
		s.Kind = ast.StmtReturn
		s.Return = ast.ReturnStmt{Values: l.exprs(head)}
	case "in", "out":
		s.Kind = ast.StmtInAnnot
		if kind == "out" {
			s.Kind = ast.StmtOutAnnot
		}
		l.fields(head, func(name string, _, v *yaml.Node) {
			s.Annot = append(s.Annot, hir.Annot{Name: ident(name), Tag: l.tag(v)})
		})
	case "encode":
		s.Kind = ast.StmtEncode
		s.Encode = hir.EncodeInstr{Encoder: l.dest(head, true)}
		if fn := opt("fences"); fn != nil {
			s.Encode.Fences = l.names(fn)
		}
		if tn := opt("tag"); tn != nil {
			s.Encode.Tag = l.tag(tn)
		}
	case "submit":
		s.Kind = ast.StmtSubmit
		s.Submit = hir.SubmitInstr{Dest: l.dest(head, true)}
		if src := opt("src"); src != nil {
			s.Submit.Src = l.name(src)
		} else {
			l.fail(diag.LoadInvalidYAML, n, "submit needs src")
		}
	case "sync":
		s.Kind = ast.StmtSync
		s.Sync = hir.SyncInstr{Fence: l.name(head)}
		if dn := opt("dests"); dn != nil {
			s.Sync.Dests = l.dests(dn, true)
		}
		if sn := opt("srcs"); sn != nil {
			s.Sync.Srcs = l.names(sn)
		}
		if len(s.Sync.Dests) != len(s.Sync.Srcs) {
			l.fail(diag.LoadInvalidYAML, n, "sync copies %d sources into %d variables", len(s.Sync.Srcs), len(s.Sync.Dests))
		}
		if tn := opt("tag"); tn != nil {
			s.Sync.Tag = l.tag(tn)
		}
	case "hole":
		s.Kind = ast.StmtHole
		s.Hole = hir.HoleInstr{Dests: l.dests(head, true)}
	}
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		if !used[key] {
			l.fail(diag.LoadInvalidYAML, fields[key][0], "unexpected key %q in %s statement", key, kind)
		}
	}
	return s, true
}

func (l *loader) required(n *yaml.Node, key string, opt func(string) *yaml.Node) ast.Expr {
	v := opt(key)
	if v == nil {
		l.fail(diag.LoadInvalidYAML, n, "missing %s", key)
		return ast.Expr{Kind: ast.ExprHole, Span: l.span(n)}
	}
	return l.expr(v)
}

func (l *loader) expr(n *yaml.Node) ast.Expr {
	sp := l.span(n)
	e, err := parseExpr(l.scalar(n), sp)
	if err != nil {
		l.fail(diag.LoadInvalidYAML, n, "%v", err)
		return ast.Expr{Kind: ast.ExprHole, Span: sp}
	}
	return e
}

func (l *loader) exprs(n *yaml.Node) []ast.Expr {
	items := l.seq(n)
	res := make([]ast.Expr, 0, len(items))
	for _, it := range items {
		res = append(res, l.expr(it))
	}
	return res
}
