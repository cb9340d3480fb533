// Package dataflow is a worklist fixpoint solver over control-flow graphs,
// parameterized by a fact lattice and a direction.
package dataflow

import (
	"hlsched/internal/cfg"
	"hlsched/internal/hir"
)

// Fact is a lattice element. Meet must be commutative and idempotent, and
// Transfer monotone; the solver does not check either. Implementations are
// values: Meet and Transfer return new facts and leave the receiver intact.
type Fact[F any] interface {
	Meet(other F) F
	// Transfer applies one instruction or terminator of block.
	Transfer(n hir.Node, block hir.BlockID) F
	Equal(other F) bool
}

// Facts holds the solution per block.
type Facts[F any] struct {
	input   []F
	output  []F
	forward bool
}

func newFacts[F any](n int, top F, forward bool) *Facts[F] {
	f := &Facts[F]{input: make([]F, n), output: make([]F, n), forward: forward}
	for i := 0; i < n; i++ {
		f.input[i] = top
		f.output[i] = top
	}
	return f
}

func (f *Facts[F]) valid(id hir.BlockID) bool {
	return id >= 0 && int(id) < len(f.input)
}

// In is the fact at block entry.
func (f *Facts[F]) In(id hir.BlockID) F {
	var zero F
	if !f.valid(id) {
		return zero
	}
	if f.forward {
		return f.input[id]
	}
	return f.output[id]
}

// Out is the fact at block exit.
func (f *Facts[F]) Out(id hir.BlockID) F {
	var zero F
	if !f.valid(id) {
		return zero
	}
	if f.forward {
		return f.output[id]
	}
	return f.input[id]
}

// Analyze solves the dataflow problem seeded with top. Every block input
// starts at top; a popped block folds Transfer over its nodes and, when its
// output changed, meets the output into each neighbor's input and pushes
// the neighbor.
func Analyze[F Fact[F]](g *cfg.Graph, dir Direction, top F) *Facts[F] {
	facts := newFacts(g.Len(), top, dir.IsForward())
	done := make([]bool, g.Len())
	root := dir.Root(g)
	if !g.Has(root) {
		return facts
	}
	stack := []hir.BlockID{root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		out := Apply(g, dir, cur, facts.input[cur])
		if done[cur] && out.Equal(facts.output[cur]) {
			continue
		}
		done[cur] = true
		facts.output[cur] = out
		for _, nb := range dir.Neighbors(g, cur) {
			if !g.Has(nb) {
				continue
			}
			facts.input[nb] = facts.input[nb].Meet(out)
			stack = append(stack, nb)
		}
	}
	return facts
}

// Apply folds Transfer over the nodes of one block in direction order.
func Apply[F Fact[F]](g *cfg.Graph, dir Direction, id hir.BlockID, in F) F {
	b := g.Block(id)
	if b == nil {
		return in
	}
	for _, n := range dir.Order(b.Nodes()) {
		in = in.Transfer(n, id)
	}
	return in
}
