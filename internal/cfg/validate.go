package cfg

import (
	"errors"
	"fmt"
	"slices"

	"hlsched/internal/diag"
	"hlsched/internal/hir"
)

// ValidationError is one violated graph invariant.
type ValidationError struct {
	Code  diag.Code
	Block hir.BlockID
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Block, e.Msg)
}

// Validate checks the graph invariants and returns every violation joined
// with errors.Join, or nil.
func (g *Graph) Validate() error {
	var errs []error
	bad := func(code diag.Code, id hir.BlockID, format string, args ...any) {
		errs = append(errs, &ValidationError{Code: code, Block: id, Msg: fmt.Sprintf(format, args...)})
	}

	if !g.Has(hir.FinalBlock) {
		bad(diag.CFGInvalid, hir.FinalBlock, "final block missing")
	} else {
		if g.Edges[hir.FinalBlock].Kind != EdgeNone {
			bad(diag.CFGInvalid, hir.FinalBlock, "final block has successors")
		}
		if g.Blocks[hir.FinalBlock].Term.Kind != hir.TermFinalReturn {
			bad(diag.CFGInvalid, hir.FinalBlock, "final block ends in %s", g.Blocks[hir.FinalBlock].Term.Kind)
		}
	}
	if !g.Has(hir.StartBlock) {
		bad(diag.CFGInvalid, hir.StartBlock, "start block missing")
	} else if len(g.Predecessors(hir.StartBlock)) > 0 {
		bad(diag.CFGInvalid, hir.StartBlock, "start block has predecessors %v", g.Predecessors(hir.StartBlock))
	}
	if len(g.Edges) != len(g.Blocks) {
		bad(diag.CFGInvalid, hir.NoBlockID, "%d edge slots for %d blocks", len(g.Edges), len(g.Blocks))
		return errors.Join(errs...)
	}

	want := make([][]hir.BlockID, len(g.Blocks))
	for _, id := range g.IDs() {
		b := g.Blocks[id]
		if b.ID != id {
			bad(diag.CFGInvalid, id, "block stored in slot %d claims id %d", id, b.ID)
		}
		e := g.Edges[id]
		for _, s := range e.Targets() {
			if !g.Has(s) {
				bad(diag.CFGInvalid, id, "edge to missing block %s", s)
				continue
			}
			want[s] = append(want[s], id)
		}
		if id != hir.FinalBlock && e.Kind == EdgeNone {
			bad(diag.CFGInvalid, id, "block has no successor")
		}
		if (b.Term.Kind == hir.TermSelect) != (e.Kind == EdgeSelect) {
			bad(diag.CFGInvalid, id, "%s terminator with %s edge", b.Term.Kind, e)
		}
		if id != hir.StartBlock && !g.Reaches(hir.StartBlock, id) {
			bad(diag.CFGUnreachable, id, "block is not reachable from %s", hir.StartBlock)
		}
		for i := range b.Instrs {
			if b.Instrs[i].Kind == hir.InstrPhi {
				g.validatePhi(id, &b.Instrs[i].Phi, bad)
			}
		}
	}
	for _, id := range g.IDs() {
		slices.Sort(want[id])
		if !slices.Equal(want[id], g.Predecessors(id)) {
			bad(diag.CFGInvalid, id, "predecessors %v are not the transpose %v", g.Predecessors(id), want[id])
		}
	}
	return errors.Join(errs...)
}

func (g *Graph) validatePhi(id hir.BlockID, phi *hir.PhiInstr, bad func(diag.Code, hir.BlockID, string, ...any)) {
	preds := g.Predecessors(id)
	for _, in := range phi.Inputs {
		if !slices.Contains(preds, in.Pred) {
			bad(diag.CFGBadPhi, id, "phi %s has input from %s, which is not a predecessor", phi.Dest, in.Pred)
		}
	}
}
