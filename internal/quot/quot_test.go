package quot_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"hlsched/internal/ast"
	"hlsched/internal/cfg"
	"hlsched/internal/dataflow"
	"hlsched/internal/diag"
	"hlsched/internal/hir"
	"hlsched/internal/quot"
	"hlsched/internal/spec"
	"hlsched/internal/ssa"
	"hlsched/internal/unify"
)

func build(t *testing.T, body []ast.Stmt, results []hir.Dest, externs ...string) *cfg.Graph {
	t.Helper()
	flat, err := ast.Flatten(body)
	require.NoError(t, err)
	isExtern := func(name string) bool {
		for _, e := range externs {
			if e == name {
				return true
			}
		}
		return false
	}
	g, err := cfg.Build(flat, results, isExtern)
	require.NoError(t, err)
	return g
}

func ssaForm(t *testing.T, body []ast.Stmt, results []hir.Dest, externs ...string) *cfg.Graph {
	t.Helper()
	g := build(t, body, results, externs...)
	return ssa.Form(g, dataflow.Liveness(g))
}

func specs(t *testing.T, fs ...*spec.Funclet) *spec.Set {
	t.Helper()
	s, err := spec.NewSet(fs...)
	require.NoError(t, err)
	return s
}

func inputs(names ...string) []spec.Param {
	ps := make([]spec.Param, len(names))
	for i, n := range names {
		ps[i] = spec.Param{Name: n, Type: hir.TypeInt}
	}
	return ps
}

func intParams(names ...string) []hir.Dest {
	ds := make([]hir.Dest, len(names))
	for i, n := range names {
		ds[i] = hir.Dest{Name: n, Type: hir.TypeInt}
	}
	return ds
}

func valueFunc(specName string, params ...string) *quot.Func {
	fn := &quot.Func{Name: "main", Params: intParams(params...)}
	fn.Specs[hir.SortValue] = specName
	return fn
}

func callFoo(nodes ...string) *spec.Funclet {
	f := &spec.Funclet{Name: "val", Sort: hir.SortValue, Inputs: inputs("a", "b")}
	for _, n := range nodes {
		f.Nodes = append(f.Nodes, spec.Node{Name: n, Term: unify.Call("foo", "a", "b")})
	}
	return f
}

func fooBody(tag hir.TripleTag) []ast.Stmt {
	let := ast.Let("v", ast.Call("foo", ast.V("x"), ast.V("y")))
	let.Decl.Dests[0].Tag = tag
	return []ast.Stmt{let}
}

func TestValueUniqueMatch(t *testing.T) {
	ctx := &quot.Context{Specs: specs(t, callFoo("f"))}
	fn := valueFunc("val", "x", "y")
	g := ssaForm(t, fooBody(hir.TripleTag{}), nil, "foo")
	rep := quot.NewReport()

	require.NoError(t, quot.Value(ctx, fn, g, rep))

	op := g.Block(hir.StartBlock).Instrs[0]
	require.Equal(t, hir.InstrOp, op.Kind)
	require.Equal(t, hir.Tag{Quot: hir.QuotNode, Node: "f"}, op.Op.Dests[0].Tag.Value)
	require.Equal(t, hir.Tag{Quot: hir.QuotInput, Node: "a"}, fn.Params[0].Tag.Value)
	require.Equal(t, hir.Tag{Quot: hir.QuotInput, Node: "b"}, fn.Params[1].Tag.Value)
	require.Empty(t, rep.Undetermined)
}

func TestValueAmbiguousMatch(t *testing.T) {
	ctx := &quot.Context{Specs: specs(t, callFoo("g1", "g2"))}

	g := ssaForm(t, fooBody(hir.TripleTag{}), nil, "foo")
	require.NoError(t, quot.Value(ctx, valueFunc("val", "x", "y"), g, quot.NewReport()))
	require.False(t, g.Block(hir.StartBlock).Instrs[0].Op.Dests[0].Tag.Value.Specified())

	// an annotation settles it
	tag := hir.TripleTag{Value: hir.Tag{Node: "g2"}}
	g = ssaForm(t, fooBody(tag), nil, "foo")
	require.NoError(t, quot.Value(ctx, valueFunc("val", "x", "y"), g, quot.NewReport()))
	require.Equal(t, hir.Tag{Quot: hir.QuotNode, Node: "g2"}, g.Block(hir.StartBlock).Instrs[0].Op.Dests[0].Tag.Value)
}

func TestValueReportsDemandedUnknowns(t *testing.T) {
	ctx := &quot.Context{Specs: specs(t, callFoo("g1", "g2"))}
	results := []hir.Dest{{Type: hir.TypeInt, Tag: hir.TripleTag{Value: hir.Tag{Quot: hir.QuotNone}}}}
	body := append(fooBody(hir.TripleTag{}), ast.Return(ast.V("v")))
	fn := valueFunc("val", "x", "y")
	fn.Results = results
	g := ssaForm(t, body, results, "foo")
	rep := quot.NewReport()

	require.NoError(t, quot.Value(ctx, fn, g, rep))
	require.Len(t, rep.Undetermined, 1)
	require.Equal(t, "v", rep.Undetermined[0].Name)
	require.Equal(t, hir.SortValue, rep.Undetermined[0].Sort)
	require.Equal(t, hir.StartBlock, rep.Undetermined[0].Block)

	bag := diag.NewBag(10)
	rep.Emit(&diag.BagReporter{Bag: bag})
	require.Len(t, bag.Items(), 1)
	require.Equal(t, diag.QuotUndetermined, bag.Items()[0].Code)
}

func TestValueUnknownNode(t *testing.T) {
	ctx := &quot.Context{Specs: specs(t, callFoo("f"))}
	g := ssaForm(t, fooBody(hir.TripleTag{Value: hir.Tag{Node: "nope"}}), nil, "foo")

	err := quot.Value(ctx, valueFunc("val", "x", "y"), g, quot.NewReport())
	var qe *quot.Error
	require.ErrorAs(t, err, &qe)
	require.Equal(t, diag.QuotUnknownNode, qe.Code)
}

func TestValueConflict(t *testing.T) {
	ctx := &quot.Context{Specs: specs(t, callFoo("f"))}
	// f is foo(a, b), not foo(b, a)
	fn := valueFunc("val", "x", "y")
	fn.Params[0].Tag.Value.Node = "b"
	fn.Params[1].Tag.Value.Node = "a"
	g := ssaForm(t, fooBody(hir.TripleTag{Value: hir.Tag{Node: "f"}}), nil, "foo")

	err := quot.Value(ctx, fn, g, quot.NewReport())
	var qe *quot.Error
	require.ErrorAs(t, err, &qe)
	require.Equal(t, diag.QuotConflict, qe.Code)
	require.ErrorIs(t, err, unify.ErrConflict)
}

func TestValueUnknownSpec(t *testing.T) {
	ctx := &quot.Context{Specs: specs(t, callFoo("f"))}
	g := ssaForm(t, fooBody(hir.TripleTag{}), nil, "foo")

	err := quot.Value(ctx, valueFunc("missing", "x", "y"), g, quot.NewReport())
	var qe *quot.Error
	require.ErrorAs(t, err, &qe)
	require.Equal(t, diag.LoadUnknownSpec, qe.Code)

	// no spec of the sort: nothing to do
	require.NoError(t, quot.Value(ctx, valueFunc("", "x", "y"), g, quot.NewReport()))
}

// var x = 0; if c { x = a } else { x = b }; return x;
func TestValueSelectPhi(t *testing.T) {
	sel := &spec.Funclet{
		Name:    "sel",
		Sort:    hir.SortValue,
		Inputs:  inputs("c", "a", "b"),
		Nodes:   []spec.Node{{Name: "s", Term: unify.Select("c", "a", "b")}},
		Outputs: []string{"s"},
	}
	ctx := &quot.Context{Specs: specs(t, sel)}
	results := []hir.Dest{{Type: hir.TypeInt}}
	fn := valueFunc("sel", "c", "a", "b")
	fn.Results = results
	body := []ast.Stmt{
		ast.VarDecl("x", ast.Int("0")),
		ast.If(ast.V("c"),
			[]ast.Stmt{ast.Assign("x", ast.V("a"))},
			[]ast.Stmt{ast.Assign("x", ast.V("b"))},
		),
		ast.Return(ast.V("x")),
	}
	g := ssaForm(t, body, results)
	rep := quot.NewReport()

	require.NoError(t, quot.Value(ctx, fn, g, rep))
	join := g.Block(2).Instrs
	require.GreaterOrEqual(t, len(join), 2)
	require.Equal(t, hir.InstrInAnnot, join[0].Kind)
	require.Equal(t, hir.InstrPhi, join[1].Kind)
	require.Equal(t, join[1].Phi.Dest, join[0].Annot.Annots[0].Name)
	require.Equal(t, hir.Tag{Quot: hir.QuotNode, Node: "s"}, join[0].Annot.Annots[0].Tag.Value)
	require.Equal(t, hir.Tag{Quot: hir.QuotNode, Node: "s"}, fn.Results[0].Tag.Value)
	require.Empty(t, rep.Undetermined)

	// the annotation survives deforming under the original name
	back := ssa.Deform(g)
	require.Equal(t, "x", back.Block(2).Instrs[0].Annot.Annots[0].Name)
}

func timelineSpec(outputs ...string) *spec.Funclet {
	return &spec.Funclet{
		Name:   "tl",
		Sort:   hir.SortTimeline,
		Inputs: []spec.Param{{Name: "e0", Type: hir.TypeEvent}},
		Nodes: []spec.Node{
			{Name: "enc", Term: unify.Call(quot.EncodeEvent, "e0")},
			{Name: "e1", Term: unify.Extract("enc", 0)},
			{Name: "r", Term: unify.Extract("enc", 1)},
			{Name: "f", Term: unify.Call(quot.SubmitEvent, "r")},
			{Name: "s", Term: unify.Call(quot.SyncEvent, "e1", "f")},
		},
		Outputs: outputs,
	}
}

// encode r; f = submit r; sync f;
func encodeSubmitSync() []ast.Stmt {
	return []ast.Stmt{
		{Kind: ast.StmtEncode, Encode: hir.EncodeInstr{Encoder: hir.Dest{Name: "r", Type: hir.TypeEncoder}}},
		{Kind: ast.StmtSubmit, Submit: hir.SubmitInstr{Dest: hir.Dest{Name: "f", Type: hir.TypeFence}, Src: "r"}},
		{Kind: ast.StmtSync, Sync: hir.SyncInstr{Fence: "f"}},
	}
}

func timelineFunc(params ...hir.Dest) *quot.Func {
	fn := &quot.Func{Name: "main", Params: params}
	fn.Specs[hir.SortTimeline] = "tl"
	return fn
}

func TestTimelineEvents(t *testing.T) {
	ctx := &quot.Context{Specs: specs(t, timelineSpec("s"))}
	g := build(t, encodeSubmitSync(), nil)
	rep := quot.NewReport()

	require.NoError(t, quot.Timeline(ctx, timelineFunc(), g, rep))

	node := func(n string) hir.Tag { return hir.Tag{Quot: hir.QuotNode, Node: n} }
	require.Equal(t, quot.Events{In: hir.Tag{Quot: hir.QuotInput, Node: "e0"}, Out: node("s")}, rep.Events[hir.StartBlock])
	require.Equal(t, quot.Events{In: node("s"), Out: node("s")}, rep.Events[hir.FinalBlock])
	require.Empty(t, rep.Undetermined)

	instrs := g.Block(hir.StartBlock).Instrs
	require.Len(t, instrs, 4)
	require.Equal(t, hir.InstrInAnnot, instrs[0].Kind)
	require.Equal(t, hir.AnnotInput, instrs[0].Annot.Annots[0].Name)
	require.Equal(t, node("r"), instrs[1].Encode.Encoder.Tag.Timeline)
	require.Equal(t, node("enc"), instrs[1].Encode.Tag.Timeline)
	require.Equal(t, node("f"), instrs[2].Submit.Dest.Tag.Timeline)
	require.Equal(t, node("s"), instrs[3].Sync.Tag.Timeline)
}

// if c { encode r; f = submit r; sync f } else {}
func mergeBody() []ast.Stmt {
	return []ast.Stmt{ast.If(ast.V("c"), encodeSubmitSync(), nil)}
}

func TestTimelineMergeMismatch(t *testing.T) {
	ctx := &quot.Context{Specs: specs(t, timelineSpec("e0"))}
	g := build(t, mergeBody(), nil)
	c := hir.Dest{Name: "c", Type: hir.TypeBool}

	err := quot.Timeline(ctx, timelineFunc(c), g, quot.NewReport())
	var qe *quot.Error
	require.ErrorAs(t, err, &qe)
	require.Equal(t, diag.QuotTimelineMerge, qe.Code)
	require.True(t, errors.Is(err, unify.ErrConflict))
}

func TestTimelineMergeWarn(t *testing.T) {
	ctx := &quot.Context{
		Specs:   specs(t, timelineSpec("e0")),
		Options: quot.Options{TimelineMerge: quot.MergeWarn},
	}
	g := build(t, mergeBody(), nil)
	c := hir.Dest{Name: "c", Type: hir.TypeBool}
	rep := quot.NewReport()

	require.NoError(t, quot.Timeline(ctx, timelineFunc(c), g, rep))
	require.Len(t, rep.Warnings, 1)
	require.Equal(t, diag.QuotTimelineMerge, rep.Warnings[0].Code)
	// the join keeps the event of the first path
	require.Equal(t, "e0", rep.Events[2].In.Node)
}

func TestSpatialEqualities(t *testing.T) {
	sp := &spec.Funclet{
		Name:    "space",
		Sort:    hir.SortSpatial,
		Inputs:  []spec.Param{{Name: "buf", Type: hir.TypeBuffer}},
		Outputs: []string{"buf"},
	}
	ctx := &quot.Context{Specs: specs(t, sp)}
	results := []hir.Dest{{Type: hir.TypeBuffer}}
	fn := &quot.Func{Name: "main", Params: []hir.Dest{{Name: "b", Type: hir.TypeBuffer}}, Results: results}
	fn.Specs[hir.SortSpatial] = "space"
	g := build(t, []ast.Stmt{ast.Let("alias", ast.V("b")), ast.Return(ast.V("alias"))}, results)
	rep := quot.NewReport()

	require.NoError(t, quot.Spatial(ctx, fn, g, rep))
	require.Equal(t, hir.Tag{Quot: hir.QuotInput, Node: "buf"}, fn.Params[0].Tag.Spatial)
	decl := g.Block(hir.StartBlock).Instrs[0]
	require.Equal(t, hir.Tag{Quot: hir.QuotInput, Node: "buf"}, decl.Decl.Dest.Tag.Spatial)
	require.Equal(t, hir.Tag{Quot: hir.QuotNode, Node: "buf"}, fn.Results[0].Tag.Spatial)
	require.Empty(t, rep.Undetermined)
}

func TestParseMergePolicy(t *testing.T) {
	p, err := quot.ParseMergePolicy("warn")
	require.NoError(t, err)
	require.Equal(t, quot.MergeWarn, p)
	p, err = quot.ParseMergePolicy("")
	require.NoError(t, err)
	require.Equal(t, quot.MergeError, p)
	_, err = quot.ParseMergePolicy("ignore")
	require.Error(t, err)
}
