// Package ssa converts a control-flow graph into single-assignment form and
// back.
package ssa

import (
	"slices"
	"strconv"
	"strings"

	"hlsched/internal/cfg"
	"hlsched/internal/dataflow"
	"hlsched/internal/dom"
	"hlsched/internal/hir"
)

// Form returns a copy of g in SSA form; g is left untouched. live must be
// the liveness solution of g.
//
// Every variable defined in some block (stores through a reference count as
// definitions) gets a phi in each block of the iterated dominance frontier
// of its definitions, with one input per predecessor where the variable is
// live on exit. Names are then rewritten in dominator-tree preorder: reads
// take the name in scope, definitions mint `name.k` with a counter per
// original name starting at 0. Variables never defined, such as parameters,
// keep their names.
func Form(g *cfg.Graph, live *dataflow.Facts[dataflow.LiveVars]) *cfg.Graph {
	out := g.Clone()
	tree := dom.Compute(out)
	insertPhis(out, tree, live)
	r := &renamer{g: out, tree: tree, latest: make(map[string]int)}
	r.rename(hir.StartBlock, make(map[string]int))
	return out
}

// Deform returns a copy of g with phis removed and generation suffixes
// stripped from every name.
func Deform(g *cfg.Graph) *cfg.Graph {
	out := g.Clone()
	for _, id := range out.IDs() {
		b := out.Blocks[id]
		kept := b.Instrs[:0]
		for i := range b.Instrs {
			in := b.Instrs[i]
			if in.Kind == hir.InstrPhi {
				continue
			}
			in.RenameUses(OriginalName)
			in.RenameWrites(OriginalName)
			in.RenameDefs(OriginalName)
			kept = append(kept, in)
		}
		b.Instrs = kept
		b.Term.RenameUses(OriginalName)
		b.Term.RenameDefs(OriginalName)
	}
	return out
}

// OriginalName strips a trailing `.k` generation suffix.
func OriginalName(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return name
	}
	for _, c := range name[i+1:] {
		if c < '0' || c > '9' {
			return name
		}
	}
	return name[:i]
}

// Version returns the SSA name of generation k of name.
func Version(name string, k int) string {
	return name + "." + strconv.Itoa(k)
}

// definitions maps each variable to the blocks defining it, ascending.
func definitions(g *cfg.Graph) map[string][]hir.BlockID {
	res := make(map[string][]hir.BlockID)
	add := func(name string, id hir.BlockID) {
		ids := res[name]
		if len(ids) == 0 || ids[len(ids)-1] != id {
			res[name] = append(ids, id)
		}
	}
	for _, id := range g.IDs() {
		b := g.Blocks[id]
		for i := range b.Instrs {
			for _, d := range b.Instrs[i].Defs() {
				add(d, id)
			}
			for _, w := range b.Instrs[i].Writes() {
				add(w, id)
			}
		}
		for _, d := range b.Term.Defs() {
			add(d, id)
		}
	}
	return res
}

func insertPhis(g *cfg.Graph, tree *dom.Tree, live *dataflow.Facts[dataflow.LiveVars]) {
	defs := definitions(g)
	vars := make([]string, 0, len(defs))
	for v := range defs {
		vars = append(vars, v)
	}
	slices.Sort(vars)
	for _, v := range vars {
		work := slices.Clone(defs[v])
		for len(work) > 0 {
			cur := work[len(work)-1]
			work = work[:len(work)-1]
			for _, f := range tree.Frontier(cur) {
				if addPhi(g, f, v, live) {
					work = append(work, f)
				}
			}
		}
	}
}

// addPhi places a phi for v at the head of block unless one exists or no
// predecessor has v live on exit.
func addPhi(g *cfg.Graph, block hir.BlockID, v string, live *dataflow.Facts[dataflow.LiveVars]) bool {
	var inputs []hir.PhiInput
	for _, p := range g.Predecessors(block) {
		if live.Out(p).Has(v) {
			inputs = append(inputs, hir.PhiInput{Pred: p, Name: v})
		}
	}
	if len(inputs) == 0 {
		return false
	}
	b := g.Blocks[block]
	n := 0
	for n < len(b.Instrs) && b.Instrs[n].Kind == hir.InstrPhi {
		if b.Instrs[n].Phi.Orig == v {
			return false
		}
		n++
	}
	phi := hir.Instr{
		Kind: hir.InstrPhi,
		Span: b.Span,
		Phi:  hir.PhiInstr{Dest: v, Orig: v, Inputs: inputs},
	}
	b.Instrs = slices.Insert(b.Instrs, n, phi)
	return true
}

type renamer struct {
	g      *cfg.Graph
	tree   *dom.Tree
	latest map[string]int
}

func (r *renamer) def(cur map[string]int) func(string) string {
	return func(name string) string {
		k, ok := r.latest[name]
		if ok {
			k++
		}
		r.latest[name] = k
		cur[name] = k
		return Version(name, k)
	}
}

func use(cur map[string]int) func(string) string {
	return func(name string) string {
		if k, ok := cur[name]; ok {
			return Version(name, k)
		}
		return name
	}
}

func (r *renamer) rename(id hir.BlockID, cur map[string]int) {
	b := r.g.Block(id)
	if b == nil {
		return
	}
	for i := range b.Instrs {
		in := &b.Instrs[i]
		in.RenameUses(use(cur))
		in.RenameWrites(r.def(cur))
		in.RenameDefs(r.def(cur))
	}
	b.Term.RenameUses(use(cur))
	b.Term.RenameDefs(r.def(cur))

	for _, s := range r.g.Successors(id) {
		sb := r.g.Block(s)
		if sb == nil {
			continue
		}
		for i := range sb.Instrs {
			phi := &sb.Instrs[i].Phi
			if sb.Instrs[i].Kind != hir.InstrPhi {
				continue
			}
			for j := range phi.Inputs {
				if phi.Inputs[j].Pred == id {
					phi.Inputs[j].Name = use(cur)(phi.Orig)
				}
			}
		}
	}

	for _, child := range r.tree.Children(id) {
		next := make(map[string]int, len(cur))
		for k, v := range cur {
			next[k] = v
		}
		r.rename(child, next)
	}
}
