package dataflow

import (
	"slices"

	"hlsched/internal/cfg"
	"hlsched/internal/hir"
)

// Direction decides which way facts travel through the graph.
type Direction interface {
	// Root is the block the analysis is seeded from.
	Root(g *cfg.Graph) hir.BlockID
	// Neighbors are the blocks that receive id's output.
	Neighbors(g *cfg.Graph, id hir.BlockID) []hir.BlockID
	// Feeders are the blocks whose outputs flow into id.
	Feeders(g *cfg.Graph, id hir.BlockID) []hir.BlockID
	// Order returns a block's nodes in the order transfer visits them.
	Order(nodes []hir.Node) []hir.Node
	// IsForward tells whether an analysis input is the block entry.
	IsForward() bool
}

type forward struct{}

type backward struct{}

var (
	// Forward follows edges from the start block.
	Forward Direction = forward{}
	// Backward follows the transpose from the final block.
	Backward Direction = backward{}
)

func (forward) Root(*cfg.Graph) hir.BlockID { return hir.StartBlock }

func (forward) Neighbors(g *cfg.Graph, id hir.BlockID) []hir.BlockID { return g.Successors(id) }

func (forward) Feeders(g *cfg.Graph, id hir.BlockID) []hir.BlockID { return g.Predecessors(id) }

func (forward) Order(nodes []hir.Node) []hir.Node { return nodes }

func (forward) IsForward() bool { return true }

func (forward) String() string { return "forward" }

func (backward) Root(*cfg.Graph) hir.BlockID { return hir.FinalBlock }

func (backward) Neighbors(g *cfg.Graph, id hir.BlockID) []hir.BlockID { return g.Predecessors(id) }

func (backward) Feeders(g *cfg.Graph, id hir.BlockID) []hir.BlockID { return g.Successors(id) }

func (backward) Order(nodes []hir.Node) []hir.Node {
	res := slices.Clone(nodes)
	slices.Reverse(res)
	return res
}

func (backward) IsForward() bool { return false }

func (backward) String() string { return "backward" }
