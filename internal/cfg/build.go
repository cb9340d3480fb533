package cfg

import (
	"fmt"

	"hlsched/internal/ast"
	"hlsched/internal/diag"
	"hlsched/internal/hir"
	"hlsched/internal/source"
)

// Build lowers a flattened statement list into a control-flow graph.
//
// results describes the function's return values; they become the
// variables _out0.._outN read by the final block. isExtern tells extern
// functions, which stay inline operations, from scheduling functions, which
// end their block with a call terminator. A nil isExtern treats every callee
// as a scheduling function.
//
// Blocks are numbered in creation order starting at hir.StartBlock. The
// branches of an `if` are built breadth-first after the rest of the
// enclosing list, so a block's continuation always has a smaller id than
// the blocks of its branches.
func Build(body []ast.Stmt, results []hir.Dest, isExtern func(string) bool) (*Graph, error) {
	if isExtern == nil {
		isExtern = func(string) bool { return false }
	}
	b := &builder{
		next:     hir.StartBlock,
		blocks:   make(map[hir.BlockID]*hir.Block),
		edges:    make(map[hir.BlockID]Edge),
		isExtern: isExtern,
	}

	rets := make([]hir.Dest, len(results))
	outs := make([]string, len(results))
	for i, r := range results {
		rets[i] = hir.Dest{Name: hir.RetName(i), Type: r.Type, Tag: r.Tag}
		outs[i] = rets[i].Name
	}
	var lastSpan source.Span
	if len(body) > 0 {
		lastSpan = body[len(body)-1].Span
	}
	b.blocks[hir.FinalBlock] = &hir.Block{
		ID:   hir.FinalBlock,
		Term: hir.Terminator{Kind: hir.TermFinalReturn, Span: lastSpan, FinalReturn: hir.FinalReturnTerm{Values: outs}},
		Join: hir.NoBlockID,
		Span: lastSpan,
	}
	b.edges[hir.FinalBlock] = Edge{Kind: EdgeNone}

	top := scope{join: Next(hir.FinalBlock), ret: Next(hir.FinalBlock), rets: rets}
	if _, err := b.makeBlocks(body, top); err != nil {
		return nil, err
	}

	n := int(b.next)
	blocks := make([]*hir.Block, n)
	edges := make([]Edge, n)
	for id, blk := range b.blocks {
		blocks[id] = blk
		edges[id] = b.edges[id]
	}
	g := New(blocks, edges)
	g.RemoveUnreachable()
	return g, nil
}

type builder struct {
	next     hir.BlockID
	blocks   map[hir.BlockID]*hir.Block
	edges    map[hir.BlockID]Edge
	isExtern func(string) bool
}

// scope says where control goes when a statement list ends and where a
// return goes, together with the variables a return writes.
type scope struct {
	join Edge
	ret  Edge
	rets []hir.Dest
}

// pending is an `if` whose branches are built after the current list.
type pending struct {
	parent hir.BlockID
	join   hir.BlockID
	then   []ast.Stmt
	els    []ast.Stmt
	ret    Edge
	rets   []hir.Dest
}

func (b *builder) makeBlocks(stmts []ast.Stmt, sc scope) (hir.BlockID, error) {
	root := b.next
	var (
		acc      []hir.Instr
		children []pending
		lastSpan source.Span
	)
	endsWithReturn := len(stmts) > 0 && stmts[len(stmts)-1].Kind == ast.StmtReturn
	for i := range stmts {
		s := &stmts[i]
		lastSpan = s.Span
		switch s.Kind {
		case ast.StmtReturn:
			term := hir.Terminator{
				Kind:   hir.TermReturn,
				Span:   s.Span,
				Return: hir.ReturnTerm{Dests: cloneDests(sc.rets), Values: ast.VarNames(s.Return.Values)},
			}
			id := b.close(&acc, term)
			b.edges[id] = sc.ret
		case ast.StmtIf:
			// a trailing if whose returns would leave through this list's
			// own exit gets a join of its own, so every merge has two inputs
			own := i == len(stmts)-1 && sc.join == sc.ret
			c, err := b.branch(&acc, s, &s.If, sc, nil, own)
			if err != nil {
				return 0, err
			}
			children = append(children, c)
		case ast.StmtSeq:
			if s.Seq.Inner == nil || s.Seq.Inner.Kind != ast.StmtIf {
				return 0, unflattened(s)
			}
			c, err := b.branch(&acc, s, &s.Seq.Inner.If, sc, s.Seq.Dests, true)
			if err != nil {
				return 0, err
			}
			c.rets = s.Seq.Dests
			children = append(children, c)
			// the continuation is where the branches meet
			var annots []hir.Annot
			for _, d := range s.Seq.Dests {
				if d.Tag.Specified() {
					annots = append(annots, hir.Annot{Name: d.Name, Tag: d.Tag})
				}
			}
			if len(annots) > 0 {
				acc = append(acc, hir.Instr{Kind: hir.InstrInAnnot, Span: s.Span, Annot: hir.AnnotInstr{Annots: annots}})
			}
		case ast.StmtDecl:
			if e := &s.Decl.Expr; e.Kind == ast.ExprCall && !b.isExtern(e.Name) {
				b.call(&acc, s.Span, s.Decl.Dests, e)
				continue
			}
			in, err := lowerStmt(s)
			if err != nil {
				return 0, err
			}
			acc = append(acc, in)
		case ast.StmtCall:
			if !b.isExtern(s.Call.Callee) {
				e := ast.Expr{Kind: ast.ExprCall, Span: s.Span, Name: s.Call.Callee, Args: s.Call.Args, Tag: s.Call.Tag}
				b.call(&acc, s.Span, nil, &e)
				continue
			}
			in, err := lowerStmt(s)
			if err != nil {
				return 0, err
			}
			acc = append(acc, in)
		default:
			in, err := lowerStmt(s)
			if err != nil {
				return 0, err
			}
			acc = append(acc, in)
		}
	}
	if len(acc) > 0 || !endsWithReturn {
		id := b.close(&acc, hir.Terminator{Kind: hir.TermNone, Span: lastSpan})
		b.edges[id] = sc.join
	}

	for _, c := range children {
		child := scope{join: Next(c.join), ret: c.ret, rets: c.rets}
		t, err := b.makeBlocks(c.then, child)
		if err != nil {
			return 0, err
		}
		f, err := b.makeBlocks(c.els, child)
		if err != nil {
			return 0, err
		}
		b.edges[c.parent] = Select(t, f)
	}
	return root, nil
}

// close turns the accumulated instructions into a block ending in term.
func (b *builder) close(acc *[]hir.Instr, term hir.Terminator) hir.BlockID {
	id := b.next
	span := term.Span
	for i := range *acc {
		span = span.Cover((*acc)[i].Span)
	}
	b.blocks[id] = &hir.Block{ID: id, Instrs: *acc, Term: term, Join: hir.NoBlockID, Span: span}
	*acc = nil
	b.next++
	return id
}

// branch closes the current block with a select. Returns in the branches
// write the enclosing scope's destinations and leave through its return
// edge, unless join is set: then they continue at the block after the
// select. A sequence replaces the destinations with its own.
func (b *builder) branch(acc *[]hir.Instr, s *ast.Stmt, ifs *ast.IfStmt, sc scope, dests []hir.Dest, join bool) (pending, error) {
	if ifs.Guard.Kind != ast.ExprVar {
		return pending{}, unflattened(s)
	}
	term := hir.Terminator{
		Kind:   hir.TermSelect,
		Span:   s.Span,
		Select: hir.SelectTerm{Guard: ifs.Guard.Name, Dests: cloneDests(dests), Tag: ifs.Tag},
	}
	id := b.close(acc, term)
	c := pending{parent: id, join: b.next, then: ifs.Then, els: ifs.Else, ret: sc.ret, rets: sc.rets}
	if join {
		c.ret = Next(b.next)
	}
	return c, nil
}

// call closes the current block with a call to a scheduling function that
// continues in the next block.
func (b *builder) call(acc *[]hir.Instr, span source.Span, dests []hir.Dest, e *ast.Expr) {
	id := b.next
	b.edges[id] = Next(id + 1)
	b.close(acc, hir.Terminator{
		Kind: hir.TermCall,
		Span: span,
		Call: hir.CallTerm{Dests: cloneDests(dests), Callee: e.Name, Args: ast.VarNames(e.Args), Tag: e.Tag},
	})
}

func cloneDests(ds []hir.Dest) []hir.Dest {
	if ds == nil {
		return nil
	}
	return append([]hir.Dest(nil), ds...)
}

func unflattened(s *ast.Stmt) error {
	return &ast.FlattenError{
		Code: diag.FlatUnflattened,
		Span: s.Span,
		Msg:  fmt.Sprintf("%s statement reached block construction unflattened", s.Kind),
	}
}
