package cfg

import (
	"slices"

	"hlsched/internal/hir"
)

// Graph is a control-flow graph stored as arenas indexed by block id.
// Deleted blocks leave nil slots. The predecessor lists, transitive
// successor sets and pretinuations are derived by Recompute and must be
// refreshed after any structural change.
type Graph struct {
	Blocks []*hir.Block
	Edges  []Edge

	preds  [][]hir.BlockID
	reach  []BlockSet
	pretin []hir.BlockID
}

// New builds a graph from arenas and computes the derived data.
// Block ids must match their slot.
func New(blocks []*hir.Block, edges []Edge) *Graph {
	g := &Graph{Blocks: blocks, Edges: edges}
	if len(g.Edges) < len(g.Blocks) {
		g.Edges = append(g.Edges, make([]Edge, len(g.Blocks)-len(g.Edges))...)
	}
	g.Recompute()
	return g
}

// Len is the number of block slots, deleted ones included.
func (g *Graph) Len() int { return len(g.Blocks) }

// Has reports whether id names a live block.
func (g *Graph) Has(id hir.BlockID) bool {
	return id >= 0 && int(id) < len(g.Blocks) && g.Blocks[id] != nil
}

// Block returns the block with the given id, or nil.
func (g *Graph) Block(id hir.BlockID) *hir.Block {
	if !g.Has(id) {
		return nil
	}
	return g.Blocks[id]
}

// IDs lists live block ids in ascending order.
func (g *Graph) IDs() []hir.BlockID {
	res := make([]hir.BlockID, 0, len(g.Blocks))
	for i, b := range g.Blocks {
		if b != nil {
			res = append(res, hir.BlockID(i)) //nolint:gosec // G115: bounded by arena length
		}
	}
	return res
}

// Edge returns the outgoing edge of id.
func (g *Graph) Edge(id hir.BlockID) Edge {
	if !g.Has(id) {
		return Edge{}
	}
	return g.Edges[id]
}

// Successors returns the distinct immediate successors of id.
func (g *Graph) Successors(id hir.BlockID) []hir.BlockID {
	return g.Edge(id).Targets()
}

// Predecessors returns the immediate predecessors of id, ascending.
func (g *Graph) Predecessors(id hir.BlockID) []hir.BlockID {
	if id < 0 || int(id) >= len(g.preds) {
		return nil
	}
	return g.preds[id]
}

// Reaches reports whether b is reachable from a. A block reaches itself.
func (g *Graph) Reaches(a, b hir.BlockID) bool {
	if a < 0 || int(a) >= len(g.reach) {
		return false
	}
	return g.reach[a].Has(b)
}

// Pretinuation returns the block whose continuation id is: the nearest
// block that every path into id passes through.
func (g *Graph) Pretinuation(id hir.BlockID) (hir.BlockID, bool) {
	if id < 0 || int(id) >= len(g.pretin) || g.pretin[id] == hir.NoBlockID {
		return hir.NoBlockID, false
	}
	return g.pretin[id], true
}

// Continuation returns the join block of id.
func (g *Graph) Continuation(id hir.BlockID) (hir.BlockID, bool) {
	b := g.Block(id)
	if b == nil || b.Join == hir.NoBlockID {
		return hir.NoBlockID, false
	}
	return b.Join, true
}

// ContinuationOutputBlock returns the block holding the values a block
// produces once its structured subtree completes: the continuation chain
// is followed through calls, selects and returns into the final block.
func (g *Graph) ContinuationOutputBlock(id hir.BlockID) hir.BlockID {
	for {
		b := g.Block(id)
		if b == nil || id == hir.FinalBlock || b.Join == hir.NoBlockID {
			return id
		}
		switch b.Term.Kind {
		case hir.TermCall, hir.TermSelect:
			id = b.Join
		case hir.TermReturn:
			if e := g.Edges[id]; e.Kind != EdgeNext || e.To != hir.FinalBlock {
				return id
			}
			id = b.Join
		default:
			return id
		}
	}
}

// Recompute rebuilds predecessors, reachability, continuations and
// pretinuations from the forward edges.
func (g *Graph) Recompute() {
	g.transpose()
	g.computeReach()
	g.computeMergePoints()
}

func (g *Graph) transpose() {
	g.preds = make([][]hir.BlockID, len(g.Blocks))
	for _, id := range g.IDs() {
		for _, s := range g.Edges[id].Targets() {
			if s >= 0 && int(s) < len(g.preds) {
				g.preds[s] = append(g.preds[s], id)
			}
		}
	}
	for i := range g.preds {
		slices.Sort(g.preds[i])
	}
}

func (g *Graph) computeReach() {
	n := len(g.Blocks)
	g.reach = make([]BlockSet, n)
	ids := g.IDs()
	for _, id := range ids {
		g.reach[id] = NewBlockSet(n)
		g.reach[id].Add(id)
	}
	for changed := true; changed; {
		changed = false
		for i := len(ids) - 1; i >= 0; i-- {
			id := ids[i]
			for _, s := range g.Successors(id) {
				if g.Has(s) && g.reach[id].Union(g.reach[s]) {
					changed = true
				}
			}
		}
	}
}

// computeMergePoints sets every block's Join to the nearest block common to
// all of its successors' reachable sets, and the pretinuations to the same
// thing computed over predecessors.
func (g *Graph) computeMergePoints() {
	n := len(g.Blocks)
	ids := g.IDs()
	back := make([]BlockSet, n)
	for _, id := range ids {
		back[id] = NewBlockSet(n)
	}
	for _, a := range ids {
		for _, b := range g.reach[a].IDs() {
			back[b].Add(a)
		}
	}

	for _, id := range ids {
		g.Blocks[id].Join = g.nearestCommon(id, g.Successors, g.reach)
	}
	g.pretin = make([]hir.BlockID, n)
	for i := range g.pretin {
		g.pretin[i] = hir.NoBlockID
	}
	for _, id := range ids {
		g.pretin[id] = g.nearestCommon(id, g.Predecessors, back)
	}
}

func (g *Graph) nearestCommon(id hir.BlockID, next func(hir.BlockID) []hir.BlockID, closure []BlockSet) hir.BlockID {
	adj := next(id)
	if len(adj) == 0 {
		return hir.NoBlockID
	}
	var common BlockSet
	first := true
	for _, a := range adj {
		if !g.Has(a) {
			continue
		}
		if first {
			common = closure[a].Clone()
			first = false
		} else {
			common.Intersect(closure[a])
		}
	}
	dist := g.distances(id, next)
	best, bestDist := hir.NoBlockID, -1
	for _, c := range common.IDs() {
		d := dist[c]
		if d < 0 {
			continue
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// distances runs a BFS from start and returns hop counts, -1 if unreached.
func (g *Graph) distances(start hir.BlockID, next func(hir.BlockID) []hir.BlockID) []int {
	dist := make([]int, len(g.Blocks))
	for i := range dist {
		dist[i] = -1
	}
	dist[start] = 0
	queue := []hir.BlockID{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, s := range next(cur) {
			if g.Has(s) && dist[s] < 0 {
				dist[s] = dist[cur] + 1
				queue = append(queue, s)
			}
		}
	}
	return dist
}

// TopoOrder lists live blocks with every block after all of its
// predecessors, smallest id first among ready blocks. Blocks on a cycle are
// appended in id order.
func (g *Graph) TopoOrder() []hir.BlockID {
	ids := g.IDs()
	indeg := make([]int, len(g.Blocks))
	for _, id := range ids {
		for _, p := range g.Predecessors(id) {
			if g.Has(p) {
				indeg[id]++
			}
		}
	}
	res := make([]hir.BlockID, 0, len(ids))
	done := make([]bool, len(g.Blocks))
	var ready []hir.BlockID
	for _, id := range ids {
		if indeg[id] == 0 {
			ready = append(ready, id)
		}
	}
	for len(ready) > 0 {
		slices.Sort(ready)
		cur := ready[0]
		ready = ready[1:]
		res = append(res, cur)
		done[cur] = true
		for _, s := range g.Successors(cur) {
			if !g.Has(s) {
				continue
			}
			indeg[s]--
			if indeg[s] == 0 {
				ready = append(ready, s)
			}
		}
	}
	for _, id := range ids {
		if !done[id] {
			res = append(res, id)
		}
	}
	return res
}

// Clone returns a deep copy of g. Derived data is shared until the next
// Recompute on either graph, which always allocates afresh.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		Blocks: make([]*hir.Block, len(g.Blocks)),
		Edges:  append([]Edge(nil), g.Edges...),
		preds:  g.preds,
		reach:  g.reach,
		pretin: g.pretin,
	}
	for i, b := range g.Blocks {
		c.Blocks[i] = b.Clone()
	}
	return c
}

// RemoveUnreachable deletes every block not reachable from the start block
// and refreshes the derived data.
func (g *Graph) RemoveUnreachable() []hir.BlockID {
	seen := NewBlockSet(len(g.Blocks))
	stack := []hir.BlockID{hir.StartBlock}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !g.Has(cur) || seen.Has(cur) {
			continue
		}
		seen.Add(cur)
		stack = append(stack, g.Successors(cur)...)
	}
	var removed []hir.BlockID
	for _, id := range g.IDs() {
		if !seen.Has(id) {
			g.Blocks[id] = nil
			g.Edges[id] = Edge{}
			removed = append(removed, id)
		}
	}
	g.Recompute()
	return removed
}
