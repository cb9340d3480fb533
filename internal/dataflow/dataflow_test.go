package dataflow_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"hlsched/internal/ast"
	"hlsched/internal/cfg"
	"hlsched/internal/dataflow"
	"hlsched/internal/hir"
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

func liveTable(g *cfg.Graph, f *dataflow.Facts[dataflow.LiveVars]) (in, out map[hir.BlockID][]string) {
	in = map[hir.BlockID][]string{}
	out = map[hir.BlockID][]string{}
	for _, id := range g.IDs() {
		in[id] = f.In(id).Names()
		out[id] = f.Out(id).Names()
	}
	return in, out
}

func TestLiveness(t *testing.T) {
	g := nestedIf(t)
	in, out := liveTable(g, dataflow.Liveness(g))

	wantIn := map[hir.BlockID][]string{
		0: {"_out0"},
		1: {"x"},
		2: {"x"},
		3: {"x"},
		4: {"x"},
		5: {"x"},
		6: {},
		7: {},
	}
	wantOut := map[hir.BlockID][]string{
		0: {},
		1: {"x"},
		2: {"_out0"},
		3: {"x"},
		4: {"x"},
		5: {"x"},
		6: {"x"},
		7: {"x"},
	}
	if diff := cmp.Diff(wantIn, in); diff != "" {
		t.Errorf("live-in (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantOut, out); diff != "" {
		t.Errorf("live-out (-want +got):\n%s", diff)
	}
}

func TestLivenessIsFixpoint(t *testing.T) {
	g := nestedIf(t)
	facts := dataflow.Liveness(g)

	again := dataflow.Liveness(g)
	in1, out1 := liveTable(g, facts)
	in2, out2 := liveTable(g, again)
	if diff := cmp.Diff(in1, in2); diff != "" {
		t.Errorf("second run changed live-in:\n%s", diff)
	}
	if diff := cmp.Diff(out1, out2); diff != "" {
		t.Errorf("second run changed live-out:\n%s", diff)
	}

	for _, id := range g.IDs() {
		// applying the block to its own exit fact reproduces its entry fact
		if got := dataflow.Apply(g, dataflow.Backward, id, facts.Out(id)); !got.Equal(facts.In(id)) {
			t.Errorf("%s: transfer of out %v gives %v, recorded in %v", id, facts.Out(id).Names(), got.Names(), facts.In(id).Names())
		}
		// the exit fact is the meet of the successors' entry facts
		meet := dataflow.NewLiveVars()
		for _, s := range g.Successors(id) {
			meet = meet.Meet(facts.In(s))
		}
		if !meet.Equal(facts.Out(id)) {
			t.Errorf("%s: out %v is not the meet %v", id, facts.Out(id).Names(), meet.Names())
		}
	}
}

func TestReachingDefs(t *testing.T) {
	g := nestedIf(t)
	facts := dataflow.Reaching(g)

	in2 := facts.In(2)
	if diff := cmp.Diff([]hir.BlockID{6, 7}, in2.Defs("x")); diff != "" {
		t.Errorf("defs of x entering bb2 (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]hir.BlockID{5}, in2.Defs("y")); diff != "" {
		t.Errorf("defs of y entering bb2 (-want +got):\n%s", diff)
	}
	out2 := facts.Out(2)
	if diff := cmp.Diff([]hir.BlockID{2}, out2.Defs("x")); diff != "" {
		t.Errorf("the store in bb2 must kill earlier defs (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"_out0", "x", "y"}, out2.Vars()); diff != "" {
		t.Errorf("vars leaving bb2 (-want +got):\n%s", diff)
	}
}

func TestTransformVisitsPredecessorsFirst(t *testing.T) {
	g := nestedIf(t)
	var order []hir.BlockID
	_, err := dataflow.Transform(g, dataflow.Forward, dataflow.NewLiveVars(),
		func(id hir.BlockID, in dataflow.LiveVars) (dataflow.LiveVars, error) {
			order = append(order, id)
			return in.Meet(dataflow.NewLiveVars(id.String())), nil
		})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	want := []hir.BlockID{1, 3, 7, 5, 6, 4, 2, 0}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("visit order (-want +got):\n%s", diff)
	}
}

func TestTransformMeetsFeeders(t *testing.T) {
	g := nestedIf(t)
	facts, err := dataflow.Transform(g, dataflow.Forward, dataflow.NewLiveVars(),
		func(id hir.BlockID, in dataflow.LiveVars) (dataflow.LiveVars, error) {
			return in.Meet(dataflow.NewLiveVars(id.String())), nil
		})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	// every block sees the labels of all blocks on any path to it
	want := []string{"bb1", "bb3", "bb4", "bb5", "bb6", "bb7"}
	if diff := cmp.Diff(want, facts.In(2).Names()); diff != "" {
		t.Errorf("in(bb2) (-want +got):\n%s", diff)
	}
}

func TestTransformStopsOnError(t *testing.T) {
	g := nestedIf(t)
	boom := errors.New("boom")
	var visited []hir.BlockID
	_, err := dataflow.Transform(g, dataflow.Forward, dataflow.NewLiveVars(),
		func(id hir.BlockID, in dataflow.LiveVars) (dataflow.LiveVars, error) {
			visited = append(visited, id)
			if id == 3 {
				return in, boom
			}
			return in, nil
		})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if diff := cmp.Diff([]hir.BlockID{1, 3}, visited); diff != "" {
		t.Errorf("visited (-want +got):\n%s", diff)
	}
}
