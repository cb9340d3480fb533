package quot

import (
	"fmt"
	"slices"
	"strings"

	"hlsched/internal/cfg"
	"hlsched/internal/diag"
	"hlsched/internal/hir"
	"hlsched/internal/source"
	"hlsched/internal/spec"
	"hlsched/internal/ssa"
	"hlsched/internal/unify"
)

type site struct {
	block hir.BlockID
	span  source.Span
}

// pass is the state shared by the three deductions: one function, one
// sort, one environment.
type pass struct {
	ctx  *Context
	fn   *Func
	g    *cfg.Graph
	sort hir.Sort
	spec *spec.Funclet
	env  *unify.Env
	rep  *Report

	types  map[string]hir.Type // keyed by original name
	sites  map[string]site
	deps   map[string][]string
	roots  []string
	opaque map[string]bool
	tuples map[hir.BlockID]string // result of the block's call terminator
}

// newPass returns nil when fn has no spec of this sort.
func newPass(ctx *Context, fn *Func, g *cfg.Graph, sort hir.Sort, rep *Report) (*pass, error) {
	name := fn.Specs[sort]
	if name == "" {
		return nil, nil
	}
	unknown := func(format string, args ...any) error {
		return &Error{Code: diag.LoadUnknownSpec, Sort: sort, Span: fn.Span, Msg: fmt.Sprintf(format, args...)}
	}
	if ctx.Specs == nil {
		return nil, unknown("%s names spec %s but no specs are loaded", fn.Name, name)
	}
	f, ok := ctx.Specs.Lookup(name)
	if !ok {
		return nil, unknown("%s names unknown spec %s", fn.Name, name)
	}
	if f.Sort != sort {
		return nil, unknown("%s uses %s spec %s as its %s spec", fn.Name, f.Sort, name, sort)
	}
	env, err := ctx.Specs.Env(name)
	if err != nil {
		return nil, &Error{Code: diag.LoadUnknownSpec, Sort: sort, Span: fn.Span, Msg: fn.Name, Err: err}
	}
	if rep.Events == nil {
		rep.Events = make(map[hir.BlockID]Events)
	}
	p := &pass{
		ctx:    ctx,
		fn:     fn,
		g:      g,
		sort:   sort,
		spec:   f,
		env:    env,
		rep:    rep,
		types:  make(map[string]hir.Type),
		sites:  make(map[string]site),
		deps:   make(map[string][]string),
		opaque: make(map[string]bool),
		tuples: make(map[hir.BlockID]string),
	}
	p.overrideParams()
	p.scan()
	return p, nil
}

// overrideParams applies annotations at the head of the start block to the
// parameters they name.
func (p *pass) overrideParams() {
	b := p.g.Block(hir.StartBlock)
	if b == nil {
		return
	}
	for _, in := range b.Instrs {
		if in.Kind != hir.InstrInAnnot {
			continue
		}
		for _, a := range in.Annot.Annots {
			for i := range p.fn.Params {
				if p.fn.Params[i].Name == a.Name {
					p.fn.Params[i].Tag.Override(a.Tag)
				}
			}
		}
	}
}

// scan records types, definition sites and the dependence edges used to
// decide which unresolved variables matter.
func (p *pass) scan() {
	note := func(d hir.Dest) {
		p.addType(d.Name, d.Type)
		if d.Tag.At(p.sort).Quot == hir.QuotNone {
			p.opaque[d.Name] = true
		}
	}
	for _, d := range p.fn.Params {
		note(d)
		p.sites[d.Name] = site{hir.StartBlock, p.fn.Span}
	}
	for i, d := range p.fn.Results {
		d.Name = hir.RetName(i)
		note(d)
	}
	for _, id := range p.g.IDs() {
		b := p.g.Block(id)
		for i := range b.Instrs {
			in := &b.Instrs[i]
			if in.Kind != hir.InstrInAnnot && in.Kind != hir.InstrOutAnnot {
				in.DestTags(func(name string, typ hir.Type, tag *hir.TripleTag) {
					note(hir.Dest{Name: name, Type: typ, Tag: *tag})
				})
			}
			uses := in.Uses()
			if in.Kind == hir.InstrPhi {
				for _, pi := range in.Phi.Inputs {
					uses = append(uses, pi.Name)
				}
			}
			for _, d := range append(in.Defs(), in.Writes()...) {
				p.define(d, site{id, in.Span}, uses)
			}
		}
		t := &b.Term
		for _, d := range termDests(t) {
			note(d)
		}
		for _, d := range t.Defs() {
			p.define(d, site{id, t.Span}, t.Uses())
		}
		if t.Kind == hir.TermFinalReturn {
			p.roots = append(p.roots, t.FinalReturn.Values...)
		}
	}
}

func termDests(t *hir.Terminator) []hir.Dest {
	switch t.Kind {
	case hir.TermReturn:
		return t.Return.Dests
	case hir.TermCall:
		return t.Call.Dests
	case hir.TermSelect:
		return t.Select.Dests
	default:
		return nil
	}
}

func (p *pass) addType(name string, typ hir.Type) {
	key := ssa.OriginalName(name)
	if typ != hir.TypeUnknown && p.types[key] == hir.TypeUnknown {
		p.types[key] = typ
	}
}

func (p *pass) define(name string, s site, uses []string) {
	if _, ok := p.sites[name]; !ok {
		p.sites[name] = s
	}
	for _, u := range uses {
		if u != name {
			p.deps[name] = append(p.deps[name], u)
		}
	}
}

// tracks reports whether name takes part in this sort. Timeline deduction
// only looks at fences, encoders and events; the other sorts look at
// everything else, untyped variables included.
func (p *pass) tracks(name string) bool {
	if name == hir.AnnotInput || name == hir.AnnotOutput || unify.IsTemp(name) {
		return false
	}
	t := p.types[ssa.OriginalName(name)]
	if p.sort == hir.SortTimeline {
		return t.Timeline()
	}
	return t.InSort(p.sort)
}

func (p *pass) tracked(ds []hir.Dest) []hir.Dest {
	var res []hir.Dest
	for _, d := range ds {
		if p.tracks(d.Name) {
			res = append(res, d)
		}
	}
	return res
}

func display(name string) string {
	if unify.IsTemp(name) {
		return name
	}
	return ssa.OriginalName(name)
}

func (p *pass) errorf(code diag.Code, sp source.Span, err error, format string, args ...any) *Error {
	return &Error{Code: code, Sort: p.sort, Span: sp, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (p *pass) conflict(sp source.Span, err error, format string, args ...any) error {
	return p.errorf(diag.QuotConflict, sp, err, format, args...)
}

func (p *pass) invariant(sp source.Span, format string, args ...any) error {
	return p.errorf(diag.QuotInvariant, sp, ErrInvariant, format, args...)
}

// annot applies an explicit node in tag to name.
func (p *pass) annot(name string, tag hir.TripleTag, sp source.Span) error {
	t := tag.At(p.sort)
	if t.Quot == hir.QuotNone || t.Node == "" {
		return nil
	}
	if !p.spec.Has(t.Node) {
		return p.errorf(diag.QuotUnknownNode, sp, nil, "%s is annotated with %s, which %s does not define", display(name), t.Node, p.spec.Name)
	}
	return p.nodeEq(name, t.Node, sp)
}

func (p *pass) nodeEq(name, class string, sp source.Span) error {
	if err := p.env.AddNodeEquality(name, class); err != nil {
		return p.conflict(sp, err, "%s cannot implement %s", display(name), class)
	}
	return nil
}

func (p *pass) equate(a, b string, sp source.Span) error {
	if err := p.env.AddVarEquality(a, b); err != nil {
		return p.conflict(sp, err, "%s and %s must agree", display(a), display(b))
	}
	return nil
}

// constrain adds the structural constraint t on name. An annotation that
// names a node of a different shape wins and the constraint is dropped.
func (p *pass) constrain(name string, tag hir.TripleTag, t unify.Term, sp source.Span) error {
	at := tag.At(p.sort)
	if at.Quot == hir.QuotNone {
		return nil
	}
	if at.Node != "" {
		if st, ok := p.env.SpecTerm(at.Node); ok && !st.AlphaEquiv(t) {
			return nil
		}
	}
	if err := p.env.AddConstraint(name, t); err != nil {
		return p.conflict(sp, err, "%s = %s", display(name), t)
	}
	return nil
}

// operand returns the meta-variable standing for o. Literals and holes get
// temporaries; only value deduction knows what a literal is.
func (p *pass) operand(o hir.Operand, sp source.Span) (string, error) {
	switch o.Kind {
	case hir.OperandVar:
		return o.Name, p.annot(o.Name, o.Tag, sp)
	case hir.OperandHole:
		return p.env.NewTemp(), nil
	default:
		tmp := p.env.NewTemp()
		if p.sort != hir.SortValue {
			return tmp, nil
		}
		return tmp, p.constrain(tmp, o.Tag, unify.Literal(o.Name), sp)
	}
}

// call constrains the results of fn(args). A single result is the call
// itself; several results are extractions from a tuple temporary. It
// returns the meta-variable of the whole result.
func (p *pass) call(dests []hir.Dest, tag hir.TripleTag, fn string, args []string, sp source.Span) (string, error) {
	ds := p.tracked(dests)
	for _, d := range ds {
		if err := p.annot(d.Name, d.Tag, sp); err != nil {
			return "", err
		}
	}
	if len(dests) == 1 && len(ds) == 1 {
		return ds[0].Name, p.constrain(ds[0].Name, ds[0].Tag, unify.Call(fn, args...), sp)
	}
	tuple := p.env.NewTemp()
	if err := p.annot(tuple, tag, sp); err != nil {
		return "", err
	}
	if err := p.constrain(tuple, tag, unify.Call(fn, args...), sp); err != nil {
		return "", err
	}
	for i, d := range ds {
		if err := p.constrain(d.Name, d.Tag, unify.Extract(tuple, i), sp); err != nil {
			return "", err
		}
	}
	return tuple, nil
}

func (p *pass) calleeSpec(name string, sp source.Span) (string, error) {
	c, ok := p.ctx.Callees[name]
	if !ok {
		return "", p.errorf(diag.LoadUnknownSpec, sp, nil, "call to unknown function %s", name)
	}
	return c.Specs[p.sort], nil
}

// callTerm constrains a call terminator against the callee's spec.
func (p *pass) callTerm(id hir.BlockID, t *hir.Terminator) error {
	c := &t.Call
	name, err := p.calleeSpec(c.Callee, t.Span)
	if err != nil || name == "" {
		return err
	}
	var args []string
	for _, a := range c.Args {
		if p.tracks(a) {
			args = append(args, a)
		}
	}
	tuple, err := p.call(c.Dests, c.Tag, name, args, t.Span)
	if err != nil {
		return err
	}
	p.tuples[id] = tuple
	return nil
}

// assign handles declarations and stores of a plain operand.
func (p *pass) assign(dest hir.Dest, rhs hir.Operand, sp source.Span) error {
	if !p.tracks(dest.Name) || dest.Tag.At(p.sort).Quot == hir.QuotNone {
		return nil
	}
	if err := p.annot(dest.Name, dest.Tag, sp); err != nil {
		return err
	}
	switch rhs.Kind {
	case hir.OperandVar:
		if err := p.annot(rhs.Name, rhs.Tag, sp); err != nil {
			return err
		}
		return p.equate(dest.Name, rhs.Name, sp)
	case hir.OperandHole:
		return nil
	default:
		if p.sort != hir.SortValue {
			return nil
		}
		return p.constrain(dest.Name, dest.Tag, unify.Literal(rhs.Name), sp)
	}
}

func (p *pass) load(l *hir.LoadInstr, sp source.Span) error {
	if !p.tracks(l.Dest.Name) || l.Dest.Tag.At(p.sort).Quot == hir.QuotNone {
		return nil
	}
	if err := p.annot(l.Dest.Name, l.Dest.Tag, sp); err != nil {
		return err
	}
	return p.equate(l.Dest.Name, l.Src, sp)
}

func (p *pass) annots(in *hir.Instr) error {
	for _, a := range in.Annot.Annots {
		if !p.tracks(a.Name) {
			continue
		}
		if err := p.annot(a.Name, a.Tag, in.Span); err != nil {
			return err
		}
	}
	return nil
}

// syncCopies equates every value copied out by a sync with its source.
func (p *pass) syncCopies(in *hir.Instr) error {
	s := &in.Sync
	for i, d := range s.Dests {
		if i >= len(s.Srcs) || !p.tracks(d.Name) || d.Tag.At(p.sort).Quot == hir.QuotNone {
			continue
		}
		if err := p.annot(d.Name, d.Tag, in.Span); err != nil {
			return err
		}
		if err := p.equate(d.Name, s.Srcs[i], in.Span); err != nil {
			return err
		}
	}
	return nil
}

func (p *pass) returns(t *hir.Terminator) error {
	r := &t.Return
	for i, d := range r.Dests {
		if i >= len(r.Values) || !p.tracks(d.Name) || d.Tag.At(p.sort).Quot == hir.QuotNone {
			continue
		}
		if err := p.annot(d.Name, d.Tag, t.Span); err != nil {
			return err
		}
		if err := p.equate(d.Name, r.Values[i], t.Span); err != nil {
			return err
		}
	}
	return nil
}

// positional drops the implicit event of timeline specs.
func (p *pass) positional(names []string) []string {
	if p.sort == hir.SortTimeline && len(names) > 0 {
		return names[1:]
	}
	return names
}

// bindParams identifies each parameter with the spec input at the same
// position, unless its tag says otherwise.
func (p *pass) bindParams() error {
	inputs := p.positional(p.env.Inputs())
	pos := 0
	for _, d := range p.fn.Params {
		if !p.tracks(d.Name) {
			continue
		}
		i := pos
		pos++
		t := d.Tag.At(p.sort)
		var err error
		switch {
		case t.Quot == hir.QuotNone:
		case t.Node != "":
			err = p.annot(d.Name, d.Tag, p.fn.Span)
		case i < len(inputs):
			err = p.nodeEq(d.Name, inputs[i], p.fn.Span)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// bindResults identifies the returned values with the spec outputs.
func (p *pass) bindResults(values []string, sp source.Span) error {
	outputs := p.positional(p.env.Outputs())
	pos := 0
	for i, v := range values {
		if !p.tracks(v) {
			continue
		}
		j := pos
		pos++
		var tag hir.TripleTag
		if i < len(p.fn.Results) {
			tag = p.fn.Results[i].Tag
		}
		t := tag.At(p.sort)
		var err error
		switch {
		case t.Quot == hir.QuotNone:
		case t.Node != "":
			err = p.annot(v, tag, sp)
		case j < len(outputs):
			err = p.nodeEq(v, outputs[j], sp)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *pass) fill(name string, tag *hir.TripleTag, block hir.BlockID) {
	if p.tracks(name) {
		p.fillTag(name, tag.Get(p.sort), block)
	}
}

// fillTag completes t with the node deduced for name. Explicit fields are
// kept.
func (p *pass) fillTag(name string, t *hir.Tag, block hir.BlockID) {
	if t.Quot == hir.QuotNone {
		return
	}
	node, ok := p.env.NodeName(name)
	if !ok {
		return
	}
	if t.Node == "" {
		t.Node = node
	}
	if t.Quot == hir.QuotUnknown {
		t.Quot = hir.QuotNode
		if block == hir.StartBlock && p.env.IsInput(node) {
			t.Quot = hir.QuotInput
		}
	}
}

func (p *pass) fillGraph() {
	for _, id := range p.g.IDs() {
		b := p.g.Block(id)
		for i := range b.Instrs {
			b.Instrs[i].DestTags(func(name string, _ hir.Type, tag *hir.TripleTag) {
				p.fill(name, tag, id)
			})
		}
		t := &b.Term
		switch t.Kind {
		case hir.TermReturn:
			for i := range t.Return.Dests {
				p.fill(t.Return.Dests[i].Name, &t.Return.Dests[i].Tag, id)
			}
		case hir.TermCall:
			for i := range t.Call.Dests {
				p.fill(t.Call.Dests[i].Name, &t.Call.Dests[i].Tag, id)
			}
			if tuple, ok := p.tuples[id]; ok {
				p.fillTag(tuple, t.Call.Tag.Get(p.sort), id)
			}
		}
	}
}

func (p *pass) fillIO() {
	for i := range p.fn.Params {
		d := &p.fn.Params[i]
		p.fill(d.Name, &d.Tag, hir.StartBlock)
	}
	final := p.g.Block(hir.FinalBlock)
	if final == nil {
		return
	}
	values := final.Term.FinalReturn.Values
	for i := range p.fn.Results {
		if i < len(values) {
			p.fill(values[i], &p.fn.Results[i].Tag, hir.FinalBlock)
		}
	}
}

// reportUndetermined lists the unresolved variables some return value
// depends on, once per original name.
func (p *pass) reportUndetermined() {
	seen := make(map[string]bool)
	stack := slices.Clone(p.roots)
	var names []string
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		names = append(names, n)
		stack = append(stack, p.deps[n]...)
	}
	slices.Sort(names)

	reported := make(map[string]bool)
	for _, n := range names {
		if !p.tracks(n) || p.opaque[n] || strings.HasPrefix(n, hir.RetVar) {
			continue
		}
		if _, ok := p.env.NodeName(n); ok {
			continue
		}
		shown := display(n)
		if reported[shown] {
			continue
		}
		reported[shown] = true
		s, ok := p.sites[n]
		if !ok {
			s = site{hir.StartBlock, p.fn.Span}
		}
		p.rep.Undetermined = append(p.rep.Undetermined, Undetermined{Name: shown, Sort: p.sort, Block: s.block, Span: s.span})
	}
}

func (p *pass) resolve() error {
	if err := p.env.Resolve(); err != nil {
		return p.conflict(p.fn.Span, err, "resolving %s", p.fn.Name)
	}
	return nil
}
