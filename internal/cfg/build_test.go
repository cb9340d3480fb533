package cfg_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"hlsched/internal/ast"
	"hlsched/internal/cfg"
	"hlsched/internal/hir"
)

func mustBuild(t *testing.T, body []ast.Stmt, nres int, externs ...string) *cfg.Graph {
	t.Helper()
	flat, err := ast.Flatten(body)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	results := make([]hir.Dest, nres)
	isExtern := func(name string) bool {
		for _, e := range externs {
			if e == name {
				return true
			}
		}
		return false
	}
	g, err := cfg.Build(flat, results, isExtern)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v\n%s", err, g)
	}
	return g
}

func edges(g *cfg.Graph) map[hir.BlockID]cfg.Edge {
	res := make(map[hir.BlockID]cfg.Edge)
	for _, id := range g.IDs() {
		res[id] = g.Edge(id)
	}
	return res
}

// if x { if x { let y = 2 } else { let x = 4 } } else { let x = 3 }
// x = 5; return x;
func nestedIfBody() []ast.Stmt {
	return []ast.Stmt{
		ast.If(ast.V("x"),
			[]ast.Stmt{
				ast.If(ast.V("x"),
					[]ast.Stmt{ast.Let("y", ast.Int("2"))},
					[]ast.Stmt{ast.Let("x", ast.Int("4"))},
				),
			},
			[]ast.Stmt{ast.Let("x", ast.Int("3"))},
		),
		ast.Assign("x", ast.Int("5")),
		ast.Return(ast.V("x")),
	}
}

func TestBuildNestedIfShape(t *testing.T) {
	g := mustBuild(t, nestedIfBody(), 1)

	want := map[hir.BlockID]cfg.Edge{
		0: {Kind: cfg.EdgeNone},
		1: cfg.Select(3, 7),
		2: cfg.Next(0),
		3: cfg.Select(5, 6),
		4: cfg.Next(2),
		5: cfg.Next(4),
		6: cfg.Next(4),
		7: cfg.Next(2),
	}
	if diff := cmp.Diff(want, edges(g)); diff != "" {
		t.Fatalf("edges mismatch (-want +got):\n%s", diff)
	}

	ret := g.Block(2)
	if ret.Term.Kind != hir.TermReturn {
		t.Fatalf("bb2 ends in %s, want return", ret.Term.Kind)
	}
	if diff := cmp.Diff([]string{"x"}, ret.Term.Return.Values); diff != "" {
		t.Errorf("return values (-want +got):\n%s", diff)
	}
	if got := ret.Term.Return.Dests[0].Name; got != "_out0" {
		t.Errorf("return writes %s, want _out0", got)
	}
	if len(ret.Instrs) != 1 || ret.Instrs[0].Kind != hir.InstrStore {
		t.Errorf("bb2 instructions: %v", ret.Instrs)
	}
	if diff := cmp.Diff([]string{"_out0"}, g.Block(hir.FinalBlock).Term.FinalReturn.Values); diff != "" {
		t.Errorf("final return (-want +got):\n%s", diff)
	}
}

func TestBuildContinuations(t *testing.T) {
	g := mustBuild(t, nestedIfBody(), 1)

	joins := map[hir.BlockID]hir.BlockID{}
	for _, id := range g.IDs() {
		if j, ok := g.Continuation(id); ok {
			joins[id] = j
		}
	}
	wantJoins := map[hir.BlockID]hir.BlockID{1: 2, 2: 0, 3: 4, 4: 2, 5: 4, 6: 4, 7: 2}
	if diff := cmp.Diff(wantJoins, joins); diff != "" {
		t.Errorf("continuations (-want +got):\n%s", diff)
	}

	for blk, want := range map[hir.BlockID]hir.BlockID{2: 1, 4: 3, 0: 2} {
		got, ok := g.Pretinuation(blk)
		if !ok || got != want {
			t.Errorf("Pretinuation(%s) = %s, %v; want %s", blk, got, ok, want)
		}
	}
	if _, ok := g.Pretinuation(hir.StartBlock); ok {
		t.Errorf("start block has a pretinuation")
	}
}

func TestBuildReachesAndTopo(t *testing.T) {
	g := mustBuild(t, nestedIfBody(), 1)

	if !g.Reaches(3, 0) || !g.Reaches(5, 5) {
		t.Errorf("expected 3 to reach 0 and 5 to reach itself")
	}
	if g.Reaches(5, 6) || g.Reaches(7, 3) {
		t.Errorf("sibling branches must not reach each other")
	}
	want := []hir.BlockID{1, 3, 5, 6, 4, 7, 2, 0}
	if diff := cmp.Diff(want, g.TopoOrder()); diff != "" {
		t.Errorf("topo order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]hir.BlockID{4, 7}, g.Predecessors(2)); diff != "" {
		t.Errorf("preds of bb2 (-want +got):\n%s", diff)
	}
}

func TestBuildBranchesReturnThroughJoin(t *testing.T) {
	body := []ast.Stmt{
		ast.If(ast.V("c"),
			[]ast.Stmt{ast.Return(ast.V("a"))},
			[]ast.Stmt{ast.Return(ast.V("b"))},
		),
	}
	g := mustBuild(t, body, 1)

	want := map[hir.BlockID]cfg.Edge{
		0: {Kind: cfg.EdgeNone},
		1: cfg.Select(3, 4),
		2: cfg.Next(0),
		3: cfg.Next(2),
		4: cfg.Next(2),
	}
	if diff := cmp.Diff(want, edges(g)); diff != "" {
		t.Fatalf("edges mismatch (-want +got):\n%s", diff)
	}
	if g.Block(2).Term.Kind != hir.TermNone || len(g.Block(2).Instrs) != 0 {
		t.Errorf("join block should be an empty fall-through, got %s", g.Block(2).Term.Kind)
	}
	for _, id := range []hir.BlockID{3, 4} {
		if got := g.Block(id).Term.Return.Dests[0].Name; got != "_out0" {
			t.Errorf("%s returns into %s", id, got)
		}
	}
	if got := g.ContinuationOutputBlock(1); got != 2 {
		t.Errorf("ContinuationOutputBlock(bb1) = %s, want bb2", got)
	}
}

func TestBuildEarlyReturnSkipsJoin(t *testing.T) {
	body := []ast.Stmt{
		ast.If(ast.V("c"),
			[]ast.Stmt{ast.Return(ast.V("a"))},
			nil,
		),
		ast.Return(ast.V("b")),
	}
	g := mustBuild(t, body, 1)

	want := map[hir.BlockID]cfg.Edge{
		0: {Kind: cfg.EdgeNone},
		1: cfg.Select(3, 4),
		2: cfg.Next(0),
		3: cfg.Next(0),
		4: cfg.Next(2),
	}
	if diff := cmp.Diff(want, edges(g)); diff != "" {
		t.Fatalf("edges mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildEmptyBranchesKeepBlocks(t *testing.T) {
	body := []ast.Stmt{
		ast.If(ast.V("c"), nil, nil),
		ast.Return(ast.V("c")),
	}
	g := mustBuild(t, body, 1)
	want := map[hir.BlockID]cfg.Edge{
		0: {Kind: cfg.EdgeNone},
		1: cfg.Select(3, 4),
		2: cfg.Next(0),
		3: cfg.Next(2),
		4: cfg.Next(2),
	}
	if diff := cmp.Diff(want, edges(g)); diff != "" {
		t.Fatalf("edges mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildCallsSplitBlocks(t *testing.T) {
	body := []ast.Stmt{
		ast.Let("a", ast.Call("f", ast.V("x"))),
		ast.Let("b", ast.Call("ext", ast.V("a"))),
		ast.CallStmtOf("g", ast.V("b")),
	}
	g := mustBuild(t, body, 0, "ext")

	want := map[hir.BlockID]cfg.Edge{
		0: {Kind: cfg.EdgeNone},
		1: cfg.Next(2),
		2: cfg.Next(3),
		3: cfg.Next(0),
	}
	if diff := cmp.Diff(want, edges(g)); diff != "" {
		t.Fatalf("edges mismatch (-want +got):\n%s", diff)
	}
	call := g.Block(1).Term
	if call.Kind != hir.TermCall || call.Call.Callee != "f" || call.Call.Dests[0].Name != "a" {
		t.Errorf("bb1 terminator = %s", call.String())
	}
	ops := g.Block(2).Instrs
	if len(ops) != 1 || ops[0].Kind != hir.InstrOp || ops[0].Op.Kind != hir.OpExtern {
		t.Errorf("extern call not kept inline: %v", ops)
	}
	if g.Block(2).Term.Kind != hir.TermCall {
		t.Errorf("bb2 should end in the call to g")
	}
	if g.Block(3).Term.Kind != hir.TermNone {
		t.Errorf("trailing block after a call should fall through")
	}
}

func TestBuildSeqOfIf(t *testing.T) {
	tagged := hir.TripleTag{Value: hir.Tag{Quot: hir.QuotNode, Node: "r"}}
	seq := ast.Seq([]string{"r"}, ast.If(ast.V("g"),
		[]ast.Stmt{ast.Return(ast.V("a"))},
		[]ast.Stmt{ast.Return(ast.V("b"))},
	))
	seq.Seq.Dests[0].Tag = tagged
	body := []ast.Stmt{seq, ast.Return(ast.V("r"))}
	g := mustBuild(t, body, 1)

	want := map[hir.BlockID]cfg.Edge{
		0: {Kind: cfg.EdgeNone},
		1: cfg.Select(3, 4),
		2: cfg.Next(0),
		3: cfg.Next(2),
		4: cfg.Next(2),
	}
	if diff := cmp.Diff(want, edges(g)); diff != "" {
		t.Fatalf("edges mismatch (-want +got):\n%s", diff)
	}
	sel := g.Block(1).Term.Select
	if len(sel.Dests) != 1 || sel.Dests[0].Name != "r" {
		t.Errorf("select dests = %v", sel.Dests)
	}
	for _, id := range []hir.BlockID{3, 4} {
		if got := g.Block(id).Term.Return.Dests[0].Name; got != "r" {
			t.Errorf("%s returns into %s, want r", id, got)
		}
	}
	head := g.Block(2).Instrs
	if len(head) == 0 || head[0].Kind != hir.InstrInAnnot || head[0].Annot.Annots[0].Tag != tagged {
		t.Errorf("continuation lacks in-edge annotation: %v", head)
	}
}

// let x = if c { a } else { if d { b } else { e } }; return x;
func TestBuildNestedIfInSeqJoinsTwice(t *testing.T) {
	seq := ast.Seq([]string{"x"}, ast.If(ast.V("c"),
		[]ast.Stmt{ast.Return(ast.V("a"))},
		[]ast.Stmt{ast.If(ast.V("d"),
			[]ast.Stmt{ast.Return(ast.V("b"))},
			[]ast.Stmt{ast.Return(ast.V("e"))},
		)},
	))
	g := mustBuild(t, []ast.Stmt{seq, ast.Return(ast.V("x"))}, 1)

	want := map[hir.BlockID]cfg.Edge{
		0: {Kind: cfg.EdgeNone},
		1: cfg.Select(3, 4),
		2: cfg.Next(0),
		3: cfg.Next(2),
		4: cfg.Select(6, 7),
		5: cfg.Next(2),
		6: cfg.Next(5),
		7: cfg.Next(5),
	}
	if diff := cmp.Diff(want, edges(g)); diff != "" {
		t.Fatalf("edges mismatch (-want +got):\n%s", diff)
	}
	for _, id := range []hir.BlockID{3, 6, 7} {
		if got := g.Block(id).Term.Return.Dests[0].Name; got != "x" {
			t.Errorf("%s returns into %s, want x", id, got)
		}
	}
	if diff := cmp.Diff([]hir.BlockID{3, 5}, g.Predecessors(2)); diff != "" {
		t.Errorf("preds of bb2 (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]hir.BlockID{6, 7}, g.Predecessors(5)); diff != "" {
		t.Errorf("preds of bb5 (-want +got):\n%s", diff)
	}
	for blk, want := range map[hir.BlockID]hir.BlockID{2: 1, 5: 4} {
		got, ok := g.Pretinuation(blk)
		if !ok || got != want {
			t.Errorf("Pretinuation(%s) = %s, %v; want %s", blk, got, ok, want)
		}
	}
}
