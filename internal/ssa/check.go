package ssa

import (
	"errors"
	"fmt"
	"slices"

	"hlsched/internal/cfg"
	"hlsched/internal/dataflow"
	"hlsched/internal/diag"
	"hlsched/internal/hir"
)

// Check verifies that g is in single-assignment form: every name is
// defined in one block, and every read of a defined name, phi inputs at the
// end of their predecessor included, is reached by exactly one definition.
// Names never defined, such as parameters, are not checked. Violations are
// returned joined with errors.Join, or nil.
func Check(g *cfg.Graph) error {
	var errs []error
	bad := func(code diag.Code, id hir.BlockID, format string, args ...any) {
		errs = append(errs, &cfg.ValidationError{Code: code, Block: id, Msg: fmt.Sprintf(format, args...)})
	}

	defs := definitions(g)
	names := make([]string, 0, len(defs))
	for v := range defs {
		names = append(names, v)
	}
	slices.Sort(names)
	for _, v := range names {
		if ids := defs[v]; len(ids) > 1 {
			bad(diag.CFGInvalid, ids[1], "%s is also defined in %v", v, ids[:1])
		}
	}

	facts := dataflow.Reaching(g)
	reached := func(code diag.Code, id hir.BlockID, reach dataflow.ReachingDefs, name string) {
		if _, ok := defs[name]; !ok {
			return
		}
		switch ds := reach.Defs(name); len(ds) {
		case 1:
		case 0:
			bad(code, id, "read of %s is not reached by its definition", name)
		default:
			bad(code, id, "read of %s is reached by definitions in %v", name, ds)
		}
	}
	for _, id := range g.IDs() {
		b := g.Block(id)
		reach := facts.In(id)
		for i := range b.Instrs {
			in := &b.Instrs[i]
			if in.Kind == hir.InstrPhi {
				for _, input := range in.Phi.Inputs {
					reached(diag.CFGBadPhi, input.Pred, facts.Out(input.Pred), input.Name)
				}
			} else {
				writes := in.Writes()
				for _, u := range in.Uses() {
					if !slices.Contains(writes, u) {
						reached(diag.CFGInvalid, id, reach, u)
					}
				}
			}
			reach = reach.Transfer(in, id)
		}
		for _, u := range b.Term.Uses() {
			reached(diag.CFGInvalid, id, reach, u)
		}
	}
	return errors.Join(errs...)
}
