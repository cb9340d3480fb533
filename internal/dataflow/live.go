package dataflow

import (
	"maps"
	"slices"

	"hlsched/internal/cfg"
	"hlsched/internal/hir"
)

// LiveVars is the set of variables that may still be read.
type LiveVars struct {
	vars map[string]struct{}
}

func NewLiveVars(names ...string) LiveVars {
	l := LiveVars{vars: make(map[string]struct{}, len(names))}
	for _, n := range names {
		l.vars[n] = struct{}{}
	}
	return l
}

func (l LiveVars) Has(name string) bool {
	_, ok := l.vars[name]
	return ok
}

func (l LiveVars) Len() int { return len(l.vars) }

// Names returns the live variables sorted.
func (l LiveVars) Names() []string {
	res := make([]string, 0, len(l.vars))
	for k := range l.vars {
		res = append(res, k)
	}
	slices.Sort(res)
	return res
}

// Meet is set union.
func (l LiveVars) Meet(o LiveVars) LiveVars {
	res := LiveVars{vars: make(map[string]struct{}, len(l.vars)+len(o.vars))}
	maps.Copy(res.vars, l.vars)
	maps.Copy(res.vars, o.vars)
	return res
}

// Transfer kills the node's definitions, then adds its uses.
func (l LiveVars) Transfer(n hir.Node, _ hir.BlockID) LiveVars {
	res := LiveVars{vars: maps.Clone(l.vars)}
	if res.vars == nil {
		res.vars = make(map[string]struct{})
	}
	for _, d := range n.Defs() {
		delete(res.vars, d)
	}
	for _, u := range n.Uses() {
		res.vars[u] = struct{}{}
	}
	return res
}

func (l LiveVars) Equal(o LiveVars) bool {
	if len(l.vars) != len(o.vars) {
		return false
	}
	for k := range l.vars {
		if _, ok := o.vars[k]; !ok {
			return false
		}
	}
	return true
}

// Liveness runs LiveVars backward from the final block.
func Liveness(g *cfg.Graph) *Facts[LiveVars] {
	return Analyze(g, Backward, NewLiveVars())
}
