package hir

import "hlsched/internal/source"

// Block is a basic block: straight-line instructions and one terminator.
type Block struct {
	ID     BlockID
	Instrs []Instr
	Term   Terminator
	// Join is the continuation that receives control once this block's
	// structured subtree completes, or NoBlockID.
	Join BlockID
	Span source.Span
}

// Clone returns a deep copy of b.
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	c := &Block{ID: b.ID, Join: b.Join, Span: b.Span, Term: b.Term.Clone()}
	if b.Instrs != nil {
		c.Instrs = make([]Instr, len(b.Instrs))
		for i := range b.Instrs {
			c.Instrs[i] = b.Instrs[i].Clone()
		}
	}
	return c
}

// Node is an instruction or a terminator as seen by analyses.
type Node interface {
	Uses() []string
	Defs() []string
}

var (
	_ Node = (*Instr)(nil)
	_ Node = (*Terminator)(nil)
)

// Nodes returns the block's instructions followed by its terminator.
func (b *Block) Nodes() []Node {
	res := make([]Node, 0, len(b.Instrs)+1)
	for i := range b.Instrs {
		res = append(res, &b.Instrs[i])
	}
	return append(res, &b.Term)
}
