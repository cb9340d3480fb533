package spec

import (
	"errors"
	"fmt"
	"slices"

	"hlsched/internal/diag"
	"hlsched/internal/unify"
)

// Set holds every funclet of a program with its seed. Seeds are built once
// and handed out as clones, so a Set is safe for concurrent readers.
type Set struct {
	funclets map[string]*Funclet
	seeds    map[string]*unify.Env
}

// NewSet validates and seeds fs. Errors of every funclet are joined.
func NewSet(fs ...*Funclet) (*Set, error) {
	s := &Set{
		funclets: make(map[string]*Funclet, len(fs)),
		seeds:    make(map[string]*unify.Env, len(fs)),
	}
	var errs []error
	for _, f := range fs {
		if _, dup := s.funclets[f.Name]; dup {
			errs = append(errs, &Error{Code: diag.LoadDuplicateName, Span: f.Span, Msg: "duplicate spec " + f.Name})
			continue
		}
		s.funclets[f.Name] = f
		env, err := f.Seed()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.seeds[f.Name] = env
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}

// Lookup returns the funclet called name.
func (s *Set) Lookup(name string) (*Funclet, bool) {
	f, ok := s.funclets[name]
	return f, ok
}

// Env returns a fresh copy of the seed of name.
func (s *Set) Env(name string) (*unify.Env, error) {
	seed, ok := s.seeds[name]
	if !ok {
		return nil, fmt.Errorf("unknown spec %q", name)
	}
	return seed.Clone(), nil
}

// Names lists the funclets in ascending order.
func (s *Set) Names() []string {
	res := make([]string, 0, len(s.funclets))
	for n := range s.funclets {
		res = append(res, n)
	}
	slices.Sort(res)
	return res
}
