// Package unify is the equality unification engine behind quotient
// deduction. Meta-variables live in an index arena with union by rank and
// path compression. Spec nodes are named classes; schedule variables join
// them either explicitly or through unique structural matches.
package unify

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"fortio.org/safecast"
)

// NodeID indexes the node arena.
type NodeID int32

type node struct {
	parent NodeID
	rank   uint8
	class  string // spec node name, without sigil
	term   bool
	head   head
	args   []NodeID
}

type undo struct {
	id    NodeID
	saved node
	name  string // non-empty: a name binding to drop
}

type specNode struct {
	class string
	term  Term
}

type pending struct {
	name string
	term Term
}

// Env is one quotient environment: the arena, the name table and the
// registry of spec node shapes. The zero value is not usable; call NewEnv.
type Env struct {
	nodes []node
	names map[string]NodeID
	temps int

	recording bool
	trail     []undo

	specs   []specNode
	inputs  []string
	outputs []string
	pending []pending
}

func NewEnv() *Env {
	return &Env{names: make(map[string]NodeID)}
}

// Clone returns an independent copy of e.
func (e *Env) Clone() *Env {
	c := &Env{
		nodes:   make([]node, len(e.nodes)),
		names:   maps.Clone(e.names),
		temps:   e.temps,
		specs:   slices.Clone(e.specs),
		inputs:  slices.Clone(e.inputs),
		outputs: slices.Clone(e.outputs),
		pending: slices.Clone(e.pending),
	}
	for i := range e.nodes {
		c.nodes[i] = e.nodes[i]
		c.nodes[i].args = slices.Clone(e.nodes[i].args)
	}
	return c
}

// Has reports whether name was ever mentioned in e.
func (e *Env) Has(name string) bool {
	_, ok := e.names[name]
	return ok
}

// NewTemp mints a fresh temporary meta-variable.
func (e *Env) NewTemp() string {
	name := TempSigil + strconv.Itoa(e.temps)
	e.temps++
	e.lookup(name)
	return name
}

// AddClass declares the spec node class name.
func (e *Env) AddClass(name string) {
	e.classNode(name)
}

// AddClassConstraint declares spec node name with shape t and records it in
// the structural registry.
func (e *Env) AddClassConstraint(name string, t Term) error {
	err := e.atomically(func() error {
		return e.unify(e.classNode(name), e.termNode(t))
	})
	if err != nil {
		return fmt.Errorf("spec node %s: %w", name, err)
	}
	e.specs = append(e.specs, specNode{class: name, term: t})
	return nil
}

// SetInputs declares the spec inputs, in order.
func (e *Env) SetInputs(names ...string) error {
	for _, n := range names {
		if err := e.AddClassConstraint(n, Input(n)); err != nil {
			return err
		}
	}
	e.inputs = append(e.inputs[:0], names...)
	return nil
}

// SetOutputs declares the spec nodes returned by the spec, in order.
func (e *Env) SetOutputs(names ...string) {
	for _, n := range names {
		e.classNode(n)
	}
	e.outputs = append(e.outputs[:0], names...)
}

func (e *Env) Inputs() []string  { return slices.Clone(e.inputs) }
func (e *Env) Outputs() []string { return slices.Clone(e.outputs) }

// IsInput reports whether class is one of the spec inputs.
func (e *Env) IsInput(class string) bool {
	return slices.Contains(e.inputs, class)
}

// SpecTerm returns the shape recorded for spec node class.
func (e *Env) SpecTerm(class string) (Term, bool) {
	for _, s := range e.specs {
		if s.class == class {
			return s.term, true
		}
	}
	return Term{}, false
}

// AddConstraint unifies name with a fresh instance of t, then tries to
// identify name with the single spec node whose shape matches.
func (e *Env) AddConstraint(name string, t Term) error {
	err := e.atomically(func() error {
		return e.unify(e.lookup(name), e.termNode(t))
	})
	if err != nil {
		return err
	}
	e.pending = append(e.pending, pending{name: name, term: t})
	_, err = e.deduce(name, t)
	return err
}

// AddVarEquality unifies a and b.
func (e *Env) AddVarEquality(a, b string) error {
	return e.atomically(func() error {
		return e.unify(e.lookup(a), e.lookup(b))
	})
}

// AddNodeEquality identifies name with spec node class.
func (e *Env) AddNodeEquality(name, class string) error {
	return e.atomically(func() error {
		return e.unify(e.lookup(name), e.classNode(class))
	})
}

// NodeName returns the spec node name is known to implement.
func (e *Env) NodeName(name string) (string, bool) {
	id, ok := e.names[name]
	if !ok {
		return "", false
	}
	c := e.nodes[e.find(id)].class
	return c, c != ""
}

// Equal reports whether a and b are in the same class.
func (e *Env) Equal(a, b string) bool {
	ia, okA := e.names[a]
	ib, okB := e.names[b]
	return okA && okB && e.find(ia) == e.find(ib)
}

// Resolve retries structural identification for every constrained
// variable still unnamed until nothing changes.
func (e *Env) Resolve() error {
	for {
		changed := false
		for _, p := range e.pending {
			ok, err := e.deduce(p.name, p.term)
			if err != nil {
				return err
			}
			changed = changed || ok
		}
		if !changed {
			return nil
		}
	}
}

// Matches returns the spec nodes whose recorded shape is compatible with t
// given what is currently known about t's arguments. Compatibility is
// decided by a trial unification that is always undone, so arguments are
// compared all the way down rather than by their class alone.
func (e *Env) Matches(t Term) []string {
	var res []string
	for _, s := range e.specs {
		if !s.term.AlphaEquiv(t) {
			continue
		}
		err := e.trial(func() error {
			return e.unify(e.termNode(t), e.classNode(s.class))
		})
		if err == nil {
			res = append(res, s.class)
		}
	}
	return res
}

// deduce identifies name with the unique match for t, if any. It reports
// whether a new identification was made.
func (e *Env) deduce(name string, t Term) (bool, error) {
	if _, ok := e.NodeName(name); ok {
		return false, nil
	}
	m := e.Matches(t)
	if len(m) != 1 {
		return false, nil
	}
	if err := e.AddNodeEquality(name, m[0]); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Env) newNode(n node) NodeID {
	id, err := safecast.Conv[int32](len(e.nodes))
	if err != nil {
		panic(fmt.Errorf("unify: node arena overflow: %w", err))
	}
	n.parent = NodeID(id)
	e.nodes = append(e.nodes, n)
	return NodeID(id)
}

func (e *Env) bind(name string, id NodeID) {
	e.names[name] = id
	if e.recording {
		e.trail = append(e.trail, undo{name: name})
	}
}

func (e *Env) lookup(name string) NodeID {
	if id, ok := e.names[name]; ok {
		return id
	}
	if IsClass(name) {
		return e.classNode(name[len(ClassSigil):])
	}
	id := e.newNode(node{})
	e.bind(name, id)
	return id
}

func (e *Env) classNode(class string) NodeID {
	name := Class(class)
	if id, ok := e.names[name]; ok {
		return id
	}
	id := e.newNode(node{class: class})
	e.bind(name, id)
	return id
}

func (e *Env) termNode(t Term) NodeID {
	args := make([]NodeID, len(t.Args))
	for i, a := range t.Args {
		args[i] = e.lookup(a)
	}
	return e.newNode(node{term: true, head: t.head(), args: args})
}

func (e *Env) save(id NodeID) {
	if e.recording {
		e.trail = append(e.trail, undo{id: id, saved: e.nodes[id]})
	}
}

func (e *Env) find(id NodeID) NodeID {
	root := id
	for e.nodes[root].parent != root {
		root = e.nodes[root].parent
	}
	for id != root {
		next := e.nodes[id].parent
		if next != root {
			e.save(id)
			e.nodes[id].parent = root
		}
		id = next
	}
	return root
}

// atomically runs f and undoes every arena change if it fails.
func (e *Env) atomically(f func() error) error {
	return e.transact(f, false)
}

// trial runs f and undoes every arena change whatever the outcome.
func (e *Env) trial(f func() error) error {
	return e.transact(f, true)
}

func (e *Env) transact(f func() error, always bool) error {
	size, temps := len(e.nodes), e.temps
	e.recording = true
	e.trail = e.trail[:0]
	err := f()
	e.recording = false
	if err != nil || always {
		for i := len(e.trail) - 1; i >= 0; i-- {
			u := e.trail[i]
			if u.name != "" {
				delete(e.names, u.name)
				continue
			}
			if int(u.id) < size {
				e.nodes[u.id] = u.saved
			}
		}
		e.nodes = e.nodes[:size]
		e.temps = temps
	}
	e.trail = e.trail[:0]
	return err
}

func (e *Env) describe(id NodeID) string {
	n := e.nodes[id]
	switch {
	case n.class != "":
		return Class(n.class)
	case n.term:
		return n.head.String() + "/" + strconv.Itoa(len(n.args))
	default:
		return "_"
	}
}

func (e *Env) unify(a, b NodeID) error {
	ra, rb := e.find(a), e.find(b)
	if ra == rb {
		return nil
	}
	na, nb := e.nodes[ra], e.nodes[rb]
	if na.class != "" && nb.class != "" && na.class != nb.class {
		return &ConflictError{Left: e.describe(ra), Right: e.describe(rb), Reason: "distinct spec nodes"}
	}
	if na.term && nb.term && (na.head != nb.head || len(na.args) != len(nb.args)) {
		return &ConflictError{Left: e.describe(ra), Right: e.describe(rb), Reason: "different shapes"}
	}

	// the root keeps the structure
	root, child := ra, rb
	switch {
	case nb.term && !na.term:
		root, child = rb, ra
	case na.term == nb.term && na.rank < nb.rank:
		root, child = rb, ra
	}
	e.save(root)
	e.save(child)
	r := &e.nodes[root]
	e.nodes[child].parent = root
	if r.class == "" {
		r.class = e.nodes[child].class
	}
	if r.rank == e.nodes[child].rank {
		r.rank++
	} else if r.rank < e.nodes[child].rank {
		r.rank = e.nodes[child].rank
	}

	if na.term && nb.term {
		for i := range na.args {
			if err := e.unify(na.args[i], nb.args[i]); err != nil {
				return err
			}
		}
	}
	return nil
}
