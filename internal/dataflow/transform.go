package dataflow

import (
	"hlsched/internal/cfg"
	"hlsched/internal/hir"
)

// Visitor handles one block during Transform. It receives the meet of the
// outputs of the block's already visited feeders, may rewrite the block,
// and returns the block's output.
type Visitor[F any] func(id hir.BlockID, in F) (F, error)

// Transform visits every block reachable from the root exactly once, in
// breadth-first order where a block waits until all of its feeders were
// visited. If a cycle leaves no block ready, the oldest queued block goes
// next. A visitor error stops the walk and is returned as is.
func Transform[F Fact[F]](g *cfg.Graph, dir Direction, top F, visit Visitor[F]) (*Facts[F], error) {
	facts := newFacts(g.Len(), top, dir.IsForward())
	root := dir.Root(g)
	if !g.Has(root) {
		return facts, nil
	}
	visited := cfg.NewBlockSet(g.Len())
	queued := cfg.NewBlockSet(g.Len())
	queue := []hir.BlockID{root}
	queued.Add(root)

	ready := func(id hir.BlockID) bool {
		for _, f := range dir.Feeders(g, id) {
			if g.Has(f) && !visited.Has(f) {
				return false
			}
		}
		return true
	}

	for len(queue) > 0 {
		pick := 0
		for i, id := range queue {
			if ready(id) {
				pick = i
				break
			}
		}
		cur := queue[pick]
		queue = append(queue[:pick], queue[pick+1:]...)

		in, seen := top, false
		for _, f := range dir.Feeders(g, cur) {
			if !visited.Has(f) {
				continue
			}
			if !seen {
				in, seen = facts.output[f], true
			} else {
				in = in.Meet(facts.output[f])
			}
		}
		facts.input[cur] = in
		out, err := visit(cur, in)
		if err != nil {
			return facts, err
		}
		facts.output[cur] = out
		visited.Add(cur)

		for _, nb := range dir.Neighbors(g, cur) {
			if g.Has(nb) && !queued.Has(nb) {
				queued.Add(nb)
				queue = append(queue, nb)
			}
		}
	}
	return facts, nil
}
