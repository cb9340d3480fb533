package cfg_test

import (
	"errors"
	"strings"
	"testing"

	"hlsched/internal/cfg"
	"hlsched/internal/diag"
	"hlsched/internal/hir"
)

func block(id hir.BlockID, kind hir.TermKind) *hir.Block {
	return &hir.Block{ID: id, Term: hir.Terminator{Kind: kind}, Join: hir.NoBlockID}
}

func TestValidateDetectsViolations(t *testing.T) {
	blocks := []*hir.Block{
		block(0, hir.TermFinalReturn),
		block(1, hir.TermSelect),
		block(2, hir.TermNone),
		block(3, hir.TermNone),
	}
	edges := []cfg.Edge{
		{Kind: cfg.EdgeNone},
		cfg.Next(2), // select terminator with a next edge
		cfg.Next(9), // dangling target
		cfg.Next(0), // unreachable
	}
	blocks[2].Instrs = []hir.Instr{{
		Kind: hir.InstrPhi,
		Phi:  hir.PhiInstr{Dest: "x.0", Orig: "x", Inputs: []hir.PhiInput{{Pred: 3, Name: "x.1"}}},
	}}
	g := cfg.New(blocks, edges)

	err := g.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	msg := err.Error()
	for _, frag := range []string{"missing block bb9", "select terminator", "not reachable", "not a predecessor"} {
		if !strings.Contains(msg, frag) {
			t.Errorf("missing %q in:\n%s", frag, msg)
		}
	}

	codes := map[diag.Code]bool{}
	var walk func(error)
	walk = func(e error) {
		var ve *cfg.ValidationError
		if errors.As(e, &ve) {
			codes[ve.Code] = true
		}
		if j, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range j.Unwrap() {
				walk(inner)
			}
		}
	}
	walk(err)
	for _, c := range []diag.Code{diag.CFGInvalid, diag.CFGUnreachable, diag.CFGBadPhi} {
		if !codes[c] {
			t.Errorf("no violation with code %s", c.ID())
		}
	}
}

func TestValidateAcceptsBuiltGraph(t *testing.T) {
	g := mustBuild(t, nestedIfBody(), 1)
	if err := g.Clone().Validate(); err != nil {
		t.Fatalf("clone fails validation: %v", err)
	}
}

func TestRemoveUnreachable(t *testing.T) {
	blocks := []*hir.Block{
		block(0, hir.TermFinalReturn),
		block(1, hir.TermNone),
		block(2, hir.TermNone),
		block(3, hir.TermNone),
	}
	edges := []cfg.Edge{{Kind: cfg.EdgeNone}, cfg.Next(0), cfg.Next(3), cfg.Next(0)}
	g := cfg.New(blocks, edges)
	removed := g.RemoveUnreachable()
	if len(removed) != 2 || removed[0] != 2 || removed[1] != 3 {
		t.Fatalf("removed %v, want [bb2 bb3]", removed)
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate after removal: %v", err)
	}
	if preds := g.Predecessors(0); len(preds) != 1 || preds[0] != 1 {
		t.Errorf("preds of final = %v", preds)
	}
}
