package cfg

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes a readable listing of every live block.
func (g *Graph) Dump(w io.Writer) error {
	for _, id := range g.IDs() {
		b := g.Blocks[id]
		head := fmt.Sprintf("%s:", id)
		if preds := g.Predecessors(id); len(preds) > 0 {
			parts := make([]string, len(preds))
			for i, p := range preds {
				parts[i] = p.String()
			}
			head += " ; preds " + strings.Join(parts, ", ")
		}
		if _, err := fmt.Fprintln(w, head); err != nil {
			return err
		}
		for i := range b.Instrs {
			if _, err := fmt.Fprintf(w, "    %s\n", b.Instrs[i].String()); err != nil {
				return err
			}
		}
		line := "    " + b.Term.String() + " -> " + g.Edges[id].String()
		if join, ok := g.Continuation(id); ok {
			line += " ; join " + join.String()
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) String() string {
	var sb strings.Builder
	_ = g.Dump(&sb)
	return sb.String()
}
