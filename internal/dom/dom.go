// Package dom computes dominator trees and dominance frontiers over a
// control-flow graph.
package dom

import (
	"slices"

	"hlsched/internal/cfg"
	"hlsched/internal/hir"
)

// Tree is the dominator tree of one graph value. It goes stale when the
// graph's edges change.
type Tree struct {
	g         *cfg.Graph
	doms      []cfg.BlockSet // blocks dominating the key, itself included
	dominated []cfg.BlockSet // blocks the key dominates, itself included
	idom      []hir.BlockID
	children  [][]hir.BlockID
}

// Compute runs the iterative dataflow formulation: every block starts
// dominated by all blocks, then each block's set becomes itself plus the
// intersection of its predecessors' sets, until nothing changes.
func Compute(g *cfg.Graph) *Tree {
	n := g.Len()
	ids := g.IDs()
	all := cfg.NewBlockSet(n)
	for _, id := range ids {
		all.Add(id)
	}

	t := &Tree{
		g:         g,
		doms:      make([]cfg.BlockSet, n),
		dominated: make([]cfg.BlockSet, n),
		idom:      make([]hir.BlockID, n),
		children:  make([][]hir.BlockID, n),
	}
	for _, id := range ids {
		if id == hir.StartBlock {
			t.doms[id] = cfg.NewBlockSet(n)
			t.doms[id].Add(id)
		} else {
			t.doms[id] = all.Clone()
		}
	}

	order := g.TopoOrder()
	for changed := true; changed; {
		changed = false
		for _, id := range order {
			if id == hir.StartBlock {
				continue
			}
			next := cfg.NewBlockSet(n)
			first := true
			for _, p := range g.Predecessors(id) {
				if !g.Has(p) {
					continue
				}
				if first {
					next = t.doms[p].Clone()
					first = false
				} else {
					next.Intersect(t.doms[p])
				}
			}
			next.Add(id)
			if !next.Equal(t.doms[id]) {
				t.doms[id] = next
				changed = true
			}
		}
	}

	for _, id := range ids {
		t.dominated[id] = cfg.NewBlockSet(n)
	}
	for i := range t.idom {
		t.idom[i] = hir.NoBlockID
	}
	for _, b := range ids {
		size := t.doms[b].Len()
		for _, a := range t.doms[b].IDs() {
			t.dominated[a].Add(b)
			// the closest strict dominator is dominated by all the others
			if a != b && t.doms[a].Len() == size-1 {
				t.idom[b] = a
			}
		}
	}
	for _, b := range ids {
		if p := t.idom[b]; p != hir.NoBlockID {
			t.children[p] = append(t.children[p], b)
		}
	}
	return t
}

func (t *Tree) valid(id hir.BlockID) bool {
	return id >= 0 && int(id) < len(t.doms) && t.g.Has(id)
}

// Dominates reports whether every path from the start block to b passes
// through a. A block dominates itself.
func (t *Tree) Dominates(a, b hir.BlockID) bool {
	return t.valid(b) && t.doms[b].Has(a)
}

func (t *Tree) StrictlyDominates(a, b hir.BlockID) bool {
	return a != b && t.Dominates(a, b)
}

// IDom returns the immediate dominator of b.
func (t *Tree) IDom(b hir.BlockID) (hir.BlockID, bool) {
	if !t.valid(b) || t.idom[b] == hir.NoBlockID {
		return hir.NoBlockID, false
	}
	return t.idom[b], true
}

// Children returns the blocks immediately dominated by b, ascending.
func (t *Tree) Children(b hir.BlockID) []hir.BlockID {
	if !t.valid(b) {
		return nil
	}
	return t.children[b]
}

// Dominated returns the blocks b dominates, b included.
func (t *Tree) Dominated(b hir.BlockID) []hir.BlockID {
	if !t.valid(b) {
		return nil
	}
	return t.dominated[b].IDs()
}

// Preorder walks the tree depth-first from the start block, visiting
// children in ascending order.
func (t *Tree) Preorder() []hir.BlockID {
	if !t.valid(hir.StartBlock) {
		return nil
	}
	var res []hir.BlockID
	stack := []hir.BlockID{hir.StartBlock}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		res = append(res, cur)
		kids := t.children[cur]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return res
}

// Frontier returns the successors of blocks dominated by b (b inclusive)
// that b does not strictly dominate, ascending.
func (t *Tree) Frontier(b hir.BlockID) []hir.BlockID {
	if !t.valid(b) {
		return nil
	}
	res := cfg.NewBlockSet(len(t.doms))
	for _, d := range t.dominated[b].IDs() {
		for _, s := range t.g.Successors(d) {
			if t.g.Has(s) && !t.StrictlyDominates(b, s) {
				res.Add(s)
			}
		}
	}
	return res.IDs()
}

// IteratedFrontier returns the closure of the frontier over a set of
// blocks: the frontier blocks are added to the set until it stops growing.
func (t *Tree) IteratedFrontier(blocks []hir.BlockID) []hir.BlockID {
	res := cfg.NewBlockSet(len(t.doms))
	work := slices.Clone(blocks)
	seen := cfg.NewBlockSet(len(t.doms))
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]
		if seen.Has(cur) {
			continue
		}
		seen.Add(cur)
		for _, f := range t.Frontier(cur) {
			if !res.Has(f) {
				res.Add(f)
				work = append(work, f)
			}
		}
	}
	return res.IDs()
}
