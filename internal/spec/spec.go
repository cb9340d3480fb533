// Package spec models the value, timeline and spatial spec funclets that
// schedules implement, and turns each into a seeded unification
// environment.
package spec

import (
	"errors"
	"fmt"
	"slices"

	"hlsched/internal/diag"
	"hlsched/internal/hir"
	"hlsched/internal/source"
	"hlsched/internal/unify"
)

// Param is a spec input.
type Param struct {
	Name string
	Type hir.Type
	Span source.Span
}

// Node is a named spec node. Term arguments name other nodes or inputs.
type Node struct {
	Name string
	Term unify.Term
	Span source.Span
}

// Funclet is one spec function. For timeline specs the first input and the
// first output are the implicit events.
type Funclet struct {
	Name    string
	Sort    hir.Sort
	Inputs  []Param
	Outputs []string
	Nodes   []Node
	Span    source.Span
}

// Error is a malformed funclet.
type Error struct {
	Code diag.Code
	Span source.Span
	Msg  string
}

func (e *Error) Error() string {
	return e.Code.ID() + ": " + e.Msg
}

// Trivial reports whether the funclet only forwards its inputs.
func (f *Funclet) Trivial() bool {
	return len(f.Nodes) == 0
}

// Has reports whether name is a node or input of f.
func (f *Funclet) Has(name string) bool {
	if slices.ContainsFunc(f.Inputs, func(p Param) bool { return p.Name == name }) {
		return true
	}
	return slices.ContainsFunc(f.Nodes, func(n Node) bool { return n.Name == name })
}

// Validate reports duplicate names, references to undefined nodes and
// unknown outputs.
func (f *Funclet) Validate() error {
	var errs []error
	bad := func(code diag.Code, sp source.Span, format string, args ...any) {
		errs = append(errs, &Error{Code: code, Span: sp, Msg: fmt.Sprintf("%s: ", f.Name) + fmt.Sprintf(format, args...)})
	}
	defined := make(map[string]struct{}, len(f.Inputs)+len(f.Nodes))
	define := func(name string, sp source.Span) {
		if _, dup := defined[name]; dup {
			bad(diag.LoadDuplicateName, sp, "duplicate node %s", name)
		}
		defined[name] = struct{}{}
	}
	for _, p := range f.Inputs {
		define(p.Name, p.Span)
	}
	for _, n := range f.Nodes {
		define(n.Name, n.Span)
	}
	for _, n := range f.Nodes {
		for _, a := range n.Term.Args {
			if _, ok := defined[a]; !ok {
				bad(diag.LoadBadTerm, n.Span, "node %s uses undefined %s", n.Name, a)
			}
		}
		if n.Term.Kind == unify.KindExtract && len(n.Term.Args) != 1 {
			bad(diag.LoadBadTerm, n.Span, "extract %s takes one tuple", n.Name)
		}
	}
	for _, o := range f.Outputs {
		if _, ok := defined[o]; !ok {
			bad(diag.LoadBadTerm, f.Span, "returns undefined %s", o)
		}
	}
	if f.Sort == hir.SortTimeline && (len(f.Inputs) == 0 || len(f.Outputs) == 0) {
		bad(diag.LoadBadTerm, f.Span, "timeline spec needs an input and an output event")
	}
	return errors.Join(errs...)
}

// Seed builds the environment of f: its inputs, every node shape in the
// structural registry and its outputs.
func (f *Funclet) Seed() (*unify.Env, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	env := unify.NewEnv()
	names := make([]string, len(f.Inputs))
	for i, p := range f.Inputs {
		names[i] = p.Name
	}
	if err := env.SetInputs(names...); err != nil {
		return nil, err
	}
	for _, n := range f.Nodes {
		t := n.Term
		t.Args = make([]string, len(n.Term.Args))
		for i, a := range n.Term.Args {
			t.Args[i] = unify.Class(a)
		}
		if err := env.AddClassConstraint(n.Name, t); err != nil {
			return nil, &Error{Code: diag.QuotConflict, Span: n.Span, Msg: fmt.Sprintf("%s: %v", f.Name, err)}
		}
	}
	env.SetOutputs(f.Outputs...)
	return env, nil
}
