package cfg

import (
	"fmt"

	"hlsched/internal/hir"
)

type EdgeKind uint8

const (
	// EdgeNone has no successor. Only the final block has it.
	EdgeNone EdgeKind = iota
	// EdgeNext continues unconditionally at To.
	EdgeNext
	// EdgeSelect branches to True or False.
	EdgeSelect
)

// Edge is the outgoing control of one block.
type Edge struct {
	Kind  EdgeKind
	To    hir.BlockID
	True  hir.BlockID
	False hir.BlockID
}

func Next(to hir.BlockID) Edge { return Edge{Kind: EdgeNext, To: to} }

func Select(t, f hir.BlockID) Edge { return Edge{Kind: EdgeSelect, True: t, False: f} }

// Targets returns the distinct successors in true/false order.
func (e Edge) Targets() []hir.BlockID {
	switch e.Kind {
	case EdgeNext:
		return []hir.BlockID{e.To}
	case EdgeSelect:
		if e.True == e.False {
			return []hir.BlockID{e.True}
		}
		return []hir.BlockID{e.True, e.False}
	default:
		return nil
	}
}

func (e Edge) String() string {
	switch e.Kind {
	case EdgeNext:
		return "next " + e.To.String()
	case EdgeSelect:
		return fmt.Sprintf("select %s, %s", e.True, e.False)
	default:
		return "none"
	}
}
