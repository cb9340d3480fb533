package quot

import (
	"hlsched/internal/cfg"
	"hlsched/internal/hir"
	"hlsched/internal/ssa"
	"hlsched/internal/unify"
)

// Value deduces value quotients on the SSA graph g and fills the tags of g
// and fn in place. A phi whose inputs come one from each branch of its
// split block becomes a select on the split's guard; the deduced tag of a
// phi is kept as an annotation in front of it so that it survives
// deforming.
func Value(ctx *Context, fn *Func, g *cfg.Graph, rep *Report) error {
	p, err := newPass(ctx, fn, g, hir.SortValue, rep)
	if p == nil || err != nil {
		return err
	}
	v := &valuePass{pass: p, selects: make(map[hir.BlockID][]string)}
	return v.run()
}

type valuePass struct {
	*pass
	selects map[hir.BlockID][]string // split block -> phi dests deduced as selects
}

func (v *valuePass) run() error {
	if err := v.bindParams(); err != nil {
		return err
	}
	for _, id := range v.g.IDs() {
		b := v.g.Block(id)
		for i := range b.Instrs {
			if err := v.instr(id, &b.Instrs[i]); err != nil {
				return err
			}
		}
		if err := v.term(id, &b.Term); err != nil {
			return err
		}
	}
	if err := v.resolve(); err != nil {
		return err
	}
	v.fillGraph()
	v.fillSelects()
	v.annotatePhis()
	v.fillIO()
	v.reportUndetermined()
	return nil
}

func (v *valuePass) instr(id hir.BlockID, in *hir.Instr) error {
	switch in.Kind {
	case hir.InstrDecl:
		return v.assign(in.Decl.Dest, in.Decl.Rhs, in.Span)
	case hir.InstrStore:
		return v.assign(in.Store.Dest, in.Store.Rhs, in.Span)
	case hir.InstrLoad:
		return v.load(&in.Load, in.Span)
	case hir.InstrOp:
		return v.op(in)
	case hir.InstrPhi:
		return v.phi(id, in)
	case hir.InstrInAnnot, hir.InstrOutAnnot:
		return v.annots(in)
	case hir.InstrSync:
		return v.syncCopies(in)
	}
	return nil
}

func (v *valuePass) op(in *hir.Instr) error {
	op := &in.Op
	ds := v.tracked(op.Dests)
	if len(ds) == 0 {
		return nil
	}
	args := make([]string, len(op.Args))
	for i, a := range op.Args {
		name, err := v.operand(a, in.Span)
		if err != nil {
			return err
		}
		args[i] = name
	}
	if op.Kind != hir.OpBinary {
		_, err := v.call(op.Dests, hir.TripleTag{}, op.Name, args, in.Span)
		return err
	}
	if len(op.Dests) != 1 || len(args) != 2 {
		return v.invariant(in.Span, "binary %s with %d results and %d operands", op.Name, len(op.Dests), len(args))
	}
	d := ds[0]
	if err := v.annot(d.Name, d.Tag, in.Span); err != nil {
		return err
	}
	return v.constrain(d.Name, d.Tag, unify.Binop(op.Name, args[0], args[1]), in.Span)
}

// phi turns a two-way merge into a select on the guard of the block that
// split control. Merges with several inputs on one side stay unconstrained.
func (v *valuePass) phi(id hir.BlockID, in *hir.Instr) error {
	phi := &in.Phi
	if !v.tracks(phi.Dest) {
		return nil
	}
	split, ok := v.g.Pretinuation(id)
	if !ok {
		return v.invariant(in.Span, "phi %s in %s has no split block", phi.Dest, id)
	}
	sel := &v.g.Block(split).Term
	e := v.g.Edge(split)
	if sel.Kind != hir.TermSelect || e.Kind != cfg.EdgeSelect {
		return v.invariant(in.Span, "phi %s in %s: %s does not end in a select", phi.Dest, id, split)
	}
	var onTrue, onFalse []string
	for _, input := range phi.Inputs {
		t, f := v.g.Reaches(e.True, input.Pred), v.g.Reaches(e.False, input.Pred)
		switch {
		case t && !f:
			onTrue = append(onTrue, input.Name)
		case f && !t:
			onFalse = append(onFalse, input.Name)
		default:
			return v.invariant(in.Span, "phi %s: input from %s is on both or neither branch of %s", phi.Dest, input.Pred, split)
		}
	}
	if len(onTrue) != 1 || len(onFalse) != 1 {
		return nil
	}
	v.selects[split] = append(v.selects[split], phi.Dest)
	return v.constrain(phi.Dest, hir.TripleTag{}, unify.Select(sel.Select.Guard, onTrue[0], onFalse[0]), in.Span)
}

func (v *valuePass) term(id hir.BlockID, t *hir.Terminator) error {
	switch t.Kind {
	case hir.TermCall:
		return v.callTerm(id, t)
	case hir.TermReturn:
		return v.returns(t)
	case hir.TermFinalReturn:
		return v.bindResults(t.FinalReturn.Values, t.Span)
	}
	return nil
}

// fillSelects copies the quotient of each select phi onto the select
// terminator that produced it.
func (v *valuePass) fillSelects() {
	for split, phis := range v.selects {
		t := &v.g.Block(split).Term
		for _, phi := range phis {
			orig := ssa.OriginalName(phi)
			for i := range t.Select.Dests {
				d := &t.Select.Dests[i]
				if ssa.OriginalName(d.Name) == orig {
					v.fillTag(phi, d.Tag.Get(v.sort), split)
				}
			}
			if len(phis) == 1 {
				v.fillTag(phi, t.Select.Tag.Get(v.sort), split)
			}
		}
	}
}

func (v *valuePass) annotatePhis() {
	for _, id := range v.g.IDs() {
		b := v.g.Block(id)
		var out []hir.Instr
		changed := false
		for i := range b.Instrs {
			in := &b.Instrs[i]
			if in.Kind == hir.InstrPhi && v.tracks(in.Phi.Dest) {
				var tag hir.TripleTag
				v.fillTag(in.Phi.Dest, &tag.Value, id)
				if tag.Specified() {
					out = append(out, hir.Instr{
						Kind:  hir.InstrInAnnot,
						Span:  in.Span,
						Annot: hir.AnnotInstr{Annots: []hir.Annot{{Name: in.Phi.Dest, Tag: tag}}},
					})
					changed = true
				}
			}
			out = append(out, *in)
		}
		if changed {
			b.Instrs = out
		}
	}
}
