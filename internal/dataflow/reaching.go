package dataflow

import (
	"maps"
	"slices"

	"hlsched/internal/cfg"
	"hlsched/internal/hir"
)

// ReachingDefs maps each variable to the blocks whose last definition of
// it may reach the current point. Stores through a reference count as
// definitions.
type ReachingDefs struct {
	defs map[string][]hir.BlockID
}

func NewReachingDefs() ReachingDefs {
	return ReachingDefs{defs: make(map[string][]hir.BlockID)}
}

// Defs returns the defining blocks of name, ascending.
func (r ReachingDefs) Defs(name string) []hir.BlockID {
	return r.defs[name]
}

// Vars returns every variable with a reaching definition, sorted.
func (r ReachingDefs) Vars() []string {
	res := make([]string, 0, len(r.defs))
	for k := range r.defs {
		res = append(res, k)
	}
	slices.Sort(res)
	return res
}

// Meet unions the definition sites of every variable.
func (r ReachingDefs) Meet(o ReachingDefs) ReachingDefs {
	res := ReachingDefs{defs: make(map[string][]hir.BlockID, len(r.defs)+len(o.defs))}
	for k, v := range r.defs {
		res.defs[k] = v
	}
	for k, v := range o.defs {
		merged := slices.Concat(res.defs[k], v)
		slices.Sort(merged)
		res.defs[k] = slices.Compact(merged)
	}
	return res
}

// Transfer replaces the definition sites of everything n defines.
func (r ReachingDefs) Transfer(n hir.Node, block hir.BlockID) ReachingDefs {
	defs := n.Defs()
	if in, ok := n.(*hir.Instr); ok {
		defs = append(defs, in.Writes()...)
	}
	if len(defs) == 0 {
		return r
	}
	res := ReachingDefs{defs: maps.Clone(r.defs)}
	if res.defs == nil {
		res.defs = make(map[string][]hir.BlockID)
	}
	for _, d := range defs {
		res.defs[d] = []hir.BlockID{block}
	}
	return res
}

func (r ReachingDefs) Equal(o ReachingDefs) bool {
	return maps.EqualFunc(r.defs, o.defs, func(a, b []hir.BlockID) bool { return slices.Equal(a, b) })
}

// Reaching runs ReachingDefs forward from the start block.
func Reaching(g *cfg.Graph) *Facts[ReachingDefs] {
	return Analyze(g, Forward, NewReachingDefs())
}
