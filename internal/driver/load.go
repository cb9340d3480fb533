package driver

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"fortio.org/safecast"
	"gopkg.in/yaml.v3"

	"hlsched/internal/ast"
	"hlsched/internal/diag"
	"hlsched/internal/hir"
	"hlsched/internal/quot"
	"hlsched/internal/source"
	"hlsched/internal/spec"
	"hlsched/internal/unify"
)

// Program is a loaded input document.
type Program struct {
	Path    string
	File    source.FileID
	Hash    [32]byte
	Externs []string
	Specs   *spec.Set
	Funcs   []*ast.Func
}

// LoadError is a malformed part of the input document.
type LoadError struct {
	Code diag.Code
	Span source.Span
	Msg  string
}

func (e *LoadError) Error() string {
	return e.Code.ID() + ": " + e.Msg
}

// Load reads path into fs and decodes it.
func Load(fs *source.FileSet, path string) (*Program, error) {
	id, err := fs.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(fs, id)
}

// Parse decodes the document stored as file id. Every problem found is
// returned, joined with errors.Join; the program is nil when there is any.
func Parse(fs *source.FileSet, id source.FileID) (*Program, error) {
	f := fs.Get(id)
	if f == nil {
		return nil, fmt.Errorf("unknown file %d", id)
	}
	var doc yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(f.Content))
	if err := dec.Decode(&doc); err != nil {
		return nil, &LoadError{Code: diag.LoadInvalidYAML, Span: source.Span{File: id}, Msg: err.Error()}
	}
	l := &loader{fs: fs, file: id}
	prog := &Program{Path: f.Path, File: id, Hash: f.Hash}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) == 1 {
		root = root.Content[0]
	}
	var funclets []*spec.Funclet
	l.fields(root, func(key string, k, v *yaml.Node) {
		switch key {
		case "externs":
			prog.Externs = l.names(v)
		case "specs":
			for _, n := range l.seq(v) {
				if fn := l.funclet(n); fn != nil {
					funclets = append(funclets, fn)
				}
			}
		case "funcs":
			for _, n := range l.seq(v) {
				if fn := l.fn(n); fn != nil {
					prog.Funcs = append(prog.Funcs, fn)
				}
			}
		default:
			l.fail(diag.LoadInvalidYAML, k, "unknown top-level key %q", key)
		}
	})
	l.checkFuncs(prog)
	if len(l.errs) > 0 {
		return nil, errors.Join(l.errs...)
	}
	set, err := spec.NewSet(funclets...)
	if err != nil {
		return nil, err
	}
	prog.Specs = set
	if err := l.checkSpecRefs(prog); err != nil {
		return nil, err
	}
	return prog, nil
}

// Context builds the deduction context shared by every function.
func (p *Program) Context(opts quot.Options) *quot.Context {
	callees := make(map[string]quot.Callee, len(p.Externs)+len(p.Funcs))
	for _, e := range p.Externs {
		callees[e] = quot.Callee{Extern: true}
	}
	for _, fn := range p.Funcs {
		callees[fn.Name] = quot.Callee{Specs: fn.Specs}
	}
	return &quot.Context{Specs: p.Specs, Callees: callees, Options: opts}
}

// IsExtern reports whether name is declared extern.
func (p *Program) IsExtern(name string) bool {
	return slices.Contains(p.Externs, name)
}

// Func returns the function called name.
func (p *Program) Func(name string) (*ast.Func, bool) {
	for _, fn := range p.Funcs {
		if fn.Name == name {
			return fn, true
		}
	}
	return nil, false
}

type loader struct {
	fs   *source.FileSet
	file source.FileID
	errs []error
}

func (l *loader) span(n *yaml.Node) source.Span {
	if n == nil {
		return source.Span{File: l.file}
	}
	line, errL := safecast.Conv[uint32](n.Line)
	col, errC := safecast.Conv[uint32](n.Column)
	if errL != nil || errC != nil {
		return source.Span{File: l.file}
	}
	width := uint32(1)
	if n.Kind == yaml.ScalarNode && n.Value != "" {
		if w, err := safecast.Conv[uint32](len(n.Value)); err == nil {
			width = w
		}
	}
	return l.fs.SpanAt(l.file, source.LineCol{Line: line, Col: col}, width)
}

func (l *loader) fail(code diag.Code, n *yaml.Node, format string, args ...any) {
	l.errs = append(l.errs, &LoadError{Code: code, Span: l.span(n), Msg: fmt.Sprintf(format, args...)})
}

// fields visits the pairs of a mapping in document order.
func (l *loader) fields(n *yaml.Node, visit func(key string, k, v *yaml.Node)) {
	n = deref(n)
	if n.Kind != yaml.MappingNode {
		l.fail(diag.LoadInvalidYAML, n, "expected a mapping")
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		visit(n.Content[i].Value, n.Content[i], n.Content[i+1])
	}
}

// seq returns the items of a sequence. A scalar or a mapping counts as a
// one-item list.
func (l *loader) seq(n *yaml.Node) []*yaml.Node {
	n = deref(n)
	switch n.Kind {
	case yaml.SequenceNode:
		return n.Content
	case yaml.MappingNode:
		return []*yaml.Node{n}
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil
		}
		return []*yaml.Node{n}
	default:
		l.fail(diag.LoadInvalidYAML, n, "expected a list")
		return nil
	}
}

func (l *loader) scalar(n *yaml.Node) string {
	n = deref(n)
	if n.Kind != yaml.ScalarNode {
		l.fail(diag.LoadInvalidYAML, n, "expected a scalar")
		return ""
	}
	return n.Value
}

func (l *loader) name(n *yaml.Node) string {
	s := ident(l.scalar(n))
	if s == "" {
		l.fail(diag.LoadInvalidYAML, n, "empty name")
	}
	return s
}

func (l *loader) names(n *yaml.Node) []string {
	items := l.seq(n)
	res := make([]string, 0, len(items))
	for _, it := range items {
		res = append(res, l.name(it))
	}
	return res
}

func deref(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func (l *loader) typ(n *yaml.Node) hir.Type {
	t, err := hir.ParseType(l.scalar(n))
	if err != nil {
		l.fail(diag.LoadBadType, n, "%v", err)
	}
	return t
}

// tag reads a mapping from sort to tag string.
func (l *loader) tag(n *yaml.Node) hir.TripleTag {
	var tt hir.TripleTag
	l.fields(n, func(key string, k, v *yaml.Node) {
		s, err := hir.ParseSort(key)
		if err != nil {
			l.fail(diag.LoadBadTag, k, "%v", err)
			return
		}
		t, err := hir.ParseTag(l.scalar(v))
		if err != nil {
			l.fail(diag.LoadBadTag, v, "%v", err)
			return
		}
		*tt.Get(s) = t
	})
	return tt
}

// dest reads `x` or `{name: x, type: i64, tag: {value: node(a)}}`.
func (l *loader) dest(n *yaml.Node, named bool) hir.Dest {
	n = deref(n)
	if n.Kind == yaml.ScalarNode {
		return hir.Dest{Name: l.name(n)}
	}
	var d hir.Dest
	l.fields(n, func(key string, k, v *yaml.Node) {
		switch key {
		case "name":
			d.Name = l.name(v)
		case "type":
			d.Type = l.typ(v)
		case "tag":
			d.Tag = l.tag(v)
		default:
			l.fail(diag.LoadInvalidYAML, k, "unknown variable key %q", key)
		}
	})
	if named && d.Name == "" {
		l.fail(diag.LoadInvalidYAML, n, "variable without a name")
	}
	return d
}

func (l *loader) dests(n *yaml.Node, named bool) []hir.Dest {
	items := l.seq(n)
	res := make([]hir.Dest, 0, len(items))
	for _, it := range items {
		res = append(res, l.dest(it, named))
	}
	return res
}

func (l *loader) funclet(n *yaml.Node) *spec.Funclet {
	f := &spec.Funclet{Span: l.span(n)}
	sorted := false
	l.fields(n, func(key string, k, v *yaml.Node) {
		switch key {
		case "name":
			f.Name = l.name(v)
		case "sort":
			s, err := hir.ParseSort(l.scalar(v))
			if err != nil {
				l.fail(diag.LoadInvalidYAML, v, "%v", err)
			}
			f.Sort, sorted = s, true
		case "inputs":
			for _, d := range l.dests(v, true) {
				f.Inputs = append(f.Inputs, spec.Param{Name: d.Name, Type: d.Type, Span: l.span(v)})
			}
		case "outputs":
			f.Outputs = l.names(v)
		case "nodes":
			for _, it := range l.seq(v) {
				l.fields(it, func(name string, nk, nv *yaml.Node) {
					t, err := parseTerm(l.scalar(nv))
					if err != nil {
						l.fail(diag.LoadBadTerm, nv, "node %s: %v", name, err)
						return
					}
					f.Nodes = append(f.Nodes, spec.Node{Name: ident(name), Term: t, Span: l.span(nk)})
				})
			}
		default:
			l.fail(diag.LoadInvalidYAML, k, "unknown spec key %q", key)
		}
	})
	if f.Name == "" || !sorted {
		l.fail(diag.LoadInvalidYAML, n, "spec needs a name and a sort")
		return nil
	}
	return f
}

// parseTerm reads `call f a b`, `extract t 0`, `binop add a b`,
// `select g a b` and `lit 1`.
func parseTerm(s string) (unify.Term, error) {
	fs := strings.Fields(s)
	if len(fs) == 0 {
		return unify.Term{}, errors.New("empty term")
	}
	args := make([]string, 0, len(fs))
	for _, a := range fs[1:] {
		args = append(args, ident(a))
	}
	arity := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s takes %d operands, got %d", fs[0], n, len(args))
		}
		return nil
	}
	switch fs[0] {
	case "call":
		if len(args) == 0 {
			return unify.Term{}, errors.New("call without a callee")
		}
		return unify.Call(args[0], args[1:]...), nil
	case "extract":
		if err := arity(2); err != nil {
			return unify.Term{}, err
		}
		i, err := strconv.Atoi(args[1])
		if err != nil || i < 0 {
			return unify.Term{}, fmt.Errorf("bad extract index %q", args[1])
		}
		return unify.Extract(args[0], i), nil
	case "binop":
		if err := arity(3); err != nil {
			return unify.Term{}, err
		}
		return unify.Binop(args[0], args[1], args[2]), nil
	case "select":
		if err := arity(3); err != nil {
			return unify.Term{}, err
		}
		return unify.Select(args[0], args[1], args[2]), nil
	case "lit":
		if err := arity(1); err != nil {
			return unify.Term{}, err
		}
		return unify.Literal(fs[1]), nil
	default:
		return unify.Term{}, fmt.Errorf("unknown term %q", fs[0])
	}
}

func (l *loader) fn(n *yaml.Node) *ast.Func {
	fn := &ast.Func{Span: l.span(n)}
	l.fields(n, func(key string, k, v *yaml.Node) {
		switch key {
		case "name":
			fn.Name = l.name(v)
		case "specs":
			l.fields(v, func(sk string, kk, sv *yaml.Node) {
				s, err := hir.ParseSort(sk)
				if err != nil {
					l.fail(diag.LoadInvalidYAML, kk, "%v", err)
					return
				}
				fn.Specs[s] = l.name(sv)
			})
		case "params":
			fn.Params = l.dests(v, true)
		case "results":
			fn.Results = l.dests(v, false)
		case "body":
			fn.Body = l.stmts(v)
		default:
			l.fail(diag.LoadInvalidYAML, k, "unknown function key %q", key)
		}
	})
	if fn.Name == "" {
		l.fail(diag.LoadInvalidYAML, n, "function without a name")
		return nil
	}
	return fn
}

func (l *loader) checkFuncs(p *Program) {
	seen := make(map[string]struct{}, len(p.Funcs)+len(p.Externs))
	for _, e := range p.Externs {
		seen[e] = struct{}{}
	}
	for _, fn := range p.Funcs {
		if _, dup := seen[fn.Name]; dup {
			l.errs = append(l.errs, &LoadError{Code: diag.LoadDuplicateName, Span: fn.Span, Msg: "duplicate function " + fn.Name})
		}
		seen[fn.Name] = struct{}{}
	}
}

func (l *loader) checkSpecRefs(p *Program) error {
	var errs []error
	for _, fn := range p.Funcs {
		for _, s := range hir.Sorts {
			name := fn.Specs[s]
			if name == "" {
				continue
			}
			f, ok := p.Specs.Lookup(name)
			switch {
			case !ok:
				errs = append(errs, &LoadError{Code: diag.LoadUnknownSpec, Span: fn.Span,
					Msg: fmt.Sprintf("%s: unknown %s spec %s", fn.Name, s, name)})
			case f.Sort != s:
				errs = append(errs, &LoadError{Code: diag.LoadUnknownSpec, Span: fn.Span,
					Msg: fmt.Sprintf("%s: spec %s is a %s spec, not %s", fn.Name, name, f.Sort, s)})
			}
		}
	}
	return errors.Join(errs...)
}

// ReportLoadErrors adds the problems carried by an error from Load or
// Parse to bag. It returns false when err holds something other than
// document problems, such as an unreadable file.
func ReportLoadErrors(bag *diag.Bag, err error) bool {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		all := true
		for _, e := range joined.Unwrap() {
			all = ReportLoadErrors(bag, e) && all
		}
		return all
	}
	var (
		loadErr *LoadError
		specErr *spec.Error
	)
	switch {
	case errors.As(err, &loadErr):
		bag.Add(diag.NewError(loadErr.Code, loadErr.Span, loadErr.Msg))
	case errors.As(err, &specErr):
		bag.Add(diag.NewError(specErr.Code, specErr.Span, specErr.Msg))
	default:
		return false
	}
	return true
}
