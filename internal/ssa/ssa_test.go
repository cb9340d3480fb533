package ssa_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"hlsched/internal/ast"
	"hlsched/internal/cfg"
	"hlsched/internal/dataflow"
	"hlsched/internal/diag"
	"hlsched/internal/hir"
	"hlsched/internal/ssa"
)

// 1:select(3,7) 2:->0 3:select(5,6) 4:->2 5:->4 6:->4 7:->2
func nestedIf(t *testing.T) *cfg.Graph {
	t.Helper()
	body := []ast.Stmt{
		ast.If(ast.V("x"),
			[]ast.Stmt{ast.If(ast.V("x"),
				[]ast.Stmt{ast.Let("y", ast.Int("2"))},
				[]ast.Stmt{ast.Let("x", ast.Int("4"))},
			)},
			[]ast.Stmt{ast.Let("x", ast.Int("3"))},
		),
		ast.Assign("x", ast.Int("5")),
		ast.Return(ast.V("x")),
	}
	g, err := cfg.Build(body, make([]hir.Dest, 1), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func listing(b *hir.Block) []string {
	res := make([]string, 0, len(b.Instrs)+1)
	for i := range b.Instrs {
		res = append(res, b.Instrs[i].String())
	}
	return append(res, b.Term.String())
}

func TestFormPlacesPhis(t *testing.T) {
	g := nestedIf(t)
	s := ssa.Form(g, dataflow.Liveness(g))

	tests := []struct {
		block hir.BlockID
		want  []string
	}{
		{1, []string{"select x"}},
		{2, []string{"x.0 = phi(bb4: x.2, bb7: x.4)", "x.1 <- 5", "return x.1 -> [_out0.0]"}},
		{0, []string{"final_return _out0.0"}},
		{4, []string{"x.2 = phi(bb5: x, bb6: x.3)", "none"}},
		{5, []string{"let y.0 = 2", "none"}},
		{6, []string{"let x.3 = 4", "none"}},
		{7, []string{"let x.4 = 3", "none"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, listing(s.Block(tt.block))); diff != "" {
			t.Errorf("%s (-want +got):\n%s", tt.block, diff)
		}
	}
	if err := s.Validate(); err != nil {
		t.Errorf("SSA graph fails validation: %v", err)
	}
}

func TestFormDefinesOnce(t *testing.T) {
	g := nestedIf(t)
	s := ssa.Form(g, dataflow.Liveness(g))
	seen := map[string]hir.BlockID{}
	for _, id := range s.IDs() {
		b := s.Block(id)
		for _, n := range b.Nodes() {
			names := n.Defs()
			if in, ok := n.(*hir.Instr); ok {
				names = append(names, in.Writes()...)
			}
			for _, d := range names {
				if prev, dup := seen[d]; dup {
					t.Errorf("%s defined in %s and %s", d, prev, id)
				}
				seen[d] = id
			}
		}
	}
}

func TestCheckAcceptsForm(t *testing.T) {
	g := nestedIf(t)
	if err := ssa.Check(ssa.Form(g, dataflow.Liveness(g))); err != nil {
		t.Errorf("Check: %v", err)
	}
}

func TestCheckRejectsSharedName(t *testing.T) {
	g := nestedIf(t)
	s := ssa.Form(g, dataflow.Liveness(g))
	// bb5 and bb6 both define x.3, and bb2 reads it after they meet
	s.Block(5).Instrs[0].Decl.Dest.Name = "x.3"
	s.Block(2).Term.Return.Values[0] = "x.3"

	err := ssa.Check(s)
	if err == nil {
		t.Fatal("Check accepted a name defined twice")
	}
	var ve *cfg.ValidationError
	if !errors.As(err, &ve) || ve.Code != diag.CFGInvalid {
		t.Fatalf("Check error = %v, want a CFGInvalid validation error", err)
	}
	for _, want := range []string{"x.3 is also defined in [bb5]", "read of x.3 is reached by definitions in [bb5 bb6]"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Check error %q lacks %q", err, want)
		}
	}
}

func TestCheckRejectsUnreachedRead(t *testing.T) {
	g := nestedIf(t)
	s := ssa.Form(g, dataflow.Liveness(g))
	// x.3 lives in bb6, which never flows into bb7
	s.Block(7).Instrs[0].Decl.Rhs = hir.Var("x.3")

	err := ssa.Check(s)
	if err == nil || !strings.Contains(err.Error(), "bb7: read of x.3 is not reached by its definition") {
		t.Errorf("Check error = %v", err)
	}
}

func TestFormLeavesInputUntouched(t *testing.T) {
	g := nestedIf(t)
	before := g.String()
	_ = ssa.Form(g, dataflow.Liveness(g))
	if diff := cmp.Diff(before, g.String()); diff != "" {
		t.Errorf("Form mutated its input (-want +got):\n%s", diff)
	}
}

func TestRoundTrip(t *testing.T) {
	g := nestedIf(t)
	back := ssa.Deform(ssa.Form(g, dataflow.Liveness(g)))
	if diff := cmp.Diff(g.String(), back.String()); diff != "" {
		t.Errorf("deform(form(g)) differs (-want +got):\n%s", diff)
	}
}

func TestOriginalName(t *testing.T) {
	tests := map[string]string{
		"x.0":     "x",
		"x.12":    "x",
		"x":       "x",
		"x.":      "x.",
		"x.y":     "x.y",
		"a.1.2":   "a.1",
		"_out0.3": "_out0",
	}
	for in, want := range tests {
		if got := ssa.OriginalName(in); got != want {
			t.Errorf("OriginalName(%q) = %q, want %q", in, got, want)
		}
	}
}
