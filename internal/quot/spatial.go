package quot

import (
	"hlsched/internal/cfg"
	"hlsched/internal/hir"
)

// Spatial deduces spatial quotients. Storage only flows through copies,
// loads, returns and calls, so the pass is pure equality propagation plus
// the callee's spatial spec at call sites. Stores do not move storage and
// only contribute their annotations.
func Spatial(ctx *Context, fn *Func, g *cfg.Graph, rep *Report) error {
	p, err := newPass(ctx, fn, g, hir.SortSpatial, rep)
	if p == nil || err != nil {
		return err
	}
	if err := p.bindParams(); err != nil {
		return err
	}
	for _, id := range g.IDs() {
		b := g.Block(id)
		for i := range b.Instrs {
			if err := p.spatialInstr(&b.Instrs[i]); err != nil {
				return err
			}
		}
		t := &b.Term
		switch t.Kind {
		case hir.TermCall:
			err = p.callTerm(id, t)
		case hir.TermReturn:
			err = p.returns(t)
		case hir.TermFinalReturn:
			err = p.bindResults(t.FinalReturn.Values, t.Span)
		}
		if err != nil {
			return err
		}
	}
	if err := p.resolve(); err != nil {
		return err
	}
	p.fillGraph()
	p.fillIO()
	p.reportUndetermined()
	return nil
}

func (p *pass) spatialInstr(in *hir.Instr) error {
	switch in.Kind {
	case hir.InstrDecl:
		return p.assign(in.Decl.Dest, in.Decl.Rhs, in.Span)
	case hir.InstrLoad:
		return p.load(&in.Load, in.Span)
	case hir.InstrInAnnot, hir.InstrOutAnnot:
		return p.annots(in)
	case hir.InstrSync:
		return p.syncCopies(in)
	case hir.InstrStore:
		if p.tracks(in.Store.Dest.Name) {
			return p.annot(in.Store.Dest.Name, in.Store.Dest.Tag, in.Span)
		}
	case hir.InstrOp:
		for _, d := range p.tracked(in.Op.Dests) {
			if err := p.annot(d.Name, d.Tag, in.Span); err != nil {
				return err
			}
		}
	}
	return nil
}
