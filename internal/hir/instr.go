package hir

import "hlsched/internal/source"

// InstrKind enumerates body instructions. Terminators are a separate type.
type InstrKind uint8

const (
	// InstrDecl binds a fresh variable: `let x = rhs` or `var x = rhs`.
	InstrDecl InstrKind = iota
	// InstrStore writes through a mutable variable: `x = rhs`.
	InstrStore
	// InstrLoad reads a mutable variable into a fresh one.
	InstrLoad
	// InstrOp applies a built-in operator or an extern function.
	InstrOp
	// InstrPhi selects a value by incoming edge. Only present in SSA form.
	InstrPhi
	// InstrInAnnot annotates the variables live on entry.
	InstrInAnnot
	// InstrOutAnnot annotates the variables live on exit.
	InstrOutAnnot
	// InstrEncode begins a device encoding, defining an encoder.
	InstrEncode
	// InstrSubmit submits an encoder, defining a fence.
	InstrSubmit
	// InstrSync waits on a fence and copies device results out.
	InstrSync
	// InstrHole leaves its destinations for later synthesis.
	InstrHole
)

func (k InstrKind) String() string {
	switch k {
	case InstrDecl:
		return "decl"
	case InstrStore:
		return "store"
	case InstrLoad:
		return "load"
	case InstrOp:
		return "op"
	case InstrPhi:
		return "phi"
	case InstrInAnnot:
		return "in"
	case InstrOutAnnot:
		return "out"
	case InstrEncode:
		return "encode"
	case InstrSubmit:
		return "submit"
	case InstrSync:
		return "sync"
	case InstrHole:
		return "hole"
	default:
		return "?"
	}
}

// Instr is a body instruction. Only the payload matching Kind is meaningful.
type Instr struct {
	Kind InstrKind
	Span source.Span

	Decl   DeclInstr
	Store  StoreInstr
	Load   LoadInstr
	Op     OpInstr
	Phi    PhiInstr
	Annot  AnnotInstr
	Encode EncodeInstr
	Submit SubmitInstr
	Sync   SyncInstr
	Hole   HoleInstr
}

// Dest is a defined variable together with its declared type and tags.
type Dest struct {
	Name string
	Type Type
	Tag  TripleTag
}

// OperandKind tells variables, literals and holes apart.
type OperandKind uint8

const (
	OperandVar OperandKind = iota
	OperandInt
	OperandFloat
	OperandBool
	OperandHole
)

// Operand is a leaf term: a variable, a literal or a hole.
type Operand struct {
	Kind OperandKind
	Name string // variable name, or literal text
	Tag  TripleTag
}

// Var builds a variable operand.
func Var(name string) Operand { return Operand{Kind: OperandVar, Name: name} }

// IsVar reports whether o names a variable.
func (o Operand) IsVar() bool { return o.Kind == OperandVar }

type DeclInstr struct {
	Dest    Dest
	Rhs     Operand // OperandHole for `var x;`
	Mutable bool
}

type StoreInstr struct {
	Dest Dest // Dest.Name is the stored-to variable
	Rhs  Operand
}

type LoadInstr struct {
	Dest Dest
	Src  string
}

// OpKind distinguishes built-in operators from extern calls.
type OpKind uint8

const (
	OpBinary OpKind = iota
	OpUnary
	OpExtern
)

type OpInstr struct {
	Dests []Dest
	Kind  OpKind
	Name  string // operator mnemonic ("add", "neg") or extern function name
	Args  []Operand
}

// PhiInput is the incoming value from one predecessor.
type PhiInput struct {
	Pred BlockID
	Name string
}

type PhiInstr struct {
	Dest   string
	Orig   string // name before renaming
	Inputs []PhiInput
}

// Input returns the incoming name for pred.
func (p *PhiInstr) Input(pred BlockID) (string, bool) {
	for _, in := range p.Inputs {
		if in.Pred == pred {
			return in.Name, true
		}
	}
	return "", false
}

// Annot names a variable and the tags asserted for it. The names "input"
// and "output" stand for the implicit timeline events of the block.
type Annot struct {
	Name string
	Tag  TripleTag
}

const (
	AnnotInput  = "input"
	AnnotOutput = "output"
)

type AnnotInstr struct {
	Annots []Annot
}

type EncodeInstr struct {
	Encoder Dest
	Fences  []string // fences active when encoding begins
	Tag     TripleTag
}

type SubmitInstr struct {
	Dest Dest // fence
	Src  string
}

type SyncInstr struct {
	Fence string
	Dests []Dest
	Srcs  []string // Srcs[i] is copied into Dests[i]
	Tag   TripleTag
}

type HoleInstr struct {
	Dests []Dest
}

// Clone returns a deep copy of in.
func (in *Instr) Clone() Instr {
	c := *in
	c.Op.Dests = cloneDests(in.Op.Dests)
	c.Op.Args = append([]Operand(nil), in.Op.Args...)
	c.Phi.Inputs = append([]PhiInput(nil), in.Phi.Inputs...)
	c.Annot.Annots = append([]Annot(nil), in.Annot.Annots...)
	c.Encode.Fences = append([]string(nil), in.Encode.Fences...)
	c.Sync.Dests = cloneDests(in.Sync.Dests)
	c.Sync.Srcs = append([]string(nil), in.Sync.Srcs...)
	c.Hole.Dests = cloneDests(in.Hole.Dests)
	return c
}

func cloneDests(ds []Dest) []Dest {
	if ds == nil {
		return nil
	}
	return append([]Dest(nil), ds...)
}

// Uses returns the variables read by in, in operand order.
func (in *Instr) Uses() []string {
	var res []string
	add := func(o Operand) {
		if o.IsVar() {
			res = append(res, o.Name)
		}
	}
	switch in.Kind {
	case InstrDecl:
		add(in.Decl.Rhs)
	case InstrStore:
		add(in.Store.Rhs)
		// a store through a reference keeps the reference live
		res = append(res, in.Store.Dest.Name)
	case InstrLoad:
		res = append(res, in.Load.Src)
	case InstrOp:
		for _, a := range in.Op.Args {
			add(a)
		}
	case InstrEncode:
		res = append(res, in.Encode.Fences...)
	case InstrSubmit:
		res = append(res, in.Submit.Src)
	case InstrSync:
		res = append(res, in.Sync.Fence)
		res = append(res, in.Sync.Srcs...)
	}
	return res
}

// Defs returns the variables bound by in.
func (in *Instr) Defs() []string {
	switch in.Kind {
	case InstrDecl:
		return []string{in.Decl.Dest.Name}
	case InstrLoad:
		return []string{in.Load.Dest.Name}
	case InstrOp:
		return destNames(in.Op.Dests)
	case InstrPhi:
		return []string{in.Phi.Dest}
	case InstrEncode:
		return []string{in.Encode.Encoder.Name}
	case InstrSubmit:
		return []string{in.Submit.Dest.Name}
	case InstrSync:
		return destNames(in.Sync.Dests)
	case InstrHole:
		return destNames(in.Hole.Dests)
	default:
		return nil
	}
}

// Writes returns the variables written through a reference. They are not
// definitions for liveness, but SSA renaming treats them as new versions.
func (in *Instr) Writes() []string {
	if in.Kind == InstrStore {
		return []string{in.Store.Dest.Name}
	}
	return nil
}

func destNames(ds []Dest) []string {
	res := make([]string, len(ds))
	for i := range ds {
		res[i] = ds[i].Name
	}
	return res
}

// RenameUses rewrites every read variable. Annotation subjects count as
// reads here even though they are not liveness uses.
func (in *Instr) RenameUses(f func(string) string) {
	ren := func(o *Operand) {
		if o.IsVar() {
			o.Name = f(o.Name)
		}
	}
	switch in.Kind {
	case InstrDecl:
		ren(&in.Decl.Rhs)
	case InstrStore:
		ren(&in.Store.Rhs)
	case InstrLoad:
		in.Load.Src = f(in.Load.Src)
	case InstrOp:
		for i := range in.Op.Args {
			ren(&in.Op.Args[i])
		}
	case InstrInAnnot, InstrOutAnnot:
		for i := range in.Annot.Annots {
			a := &in.Annot.Annots[i]
			if a.Name != AnnotInput && a.Name != AnnotOutput {
				a.Name = f(a.Name)
			}
		}
	case InstrEncode:
		renameAll(in.Encode.Fences, f)
	case InstrSubmit:
		in.Submit.Src = f(in.Submit.Src)
	case InstrSync:
		in.Sync.Fence = f(in.Sync.Fence)
		renameAll(in.Sync.Srcs, f)
	}
}

// RenameWrites rewrites the variables returned by Writes.
func (in *Instr) RenameWrites(f func(string) string) {
	if in.Kind == InstrStore {
		in.Store.Dest.Name = f(in.Store.Dest.Name)
	}
}

// RenameDefs rewrites every defined variable.
func (in *Instr) RenameDefs(f func(string) string) {
	switch in.Kind {
	case InstrDecl:
		in.Decl.Dest.Name = f(in.Decl.Dest.Name)
	case InstrLoad:
		in.Load.Dest.Name = f(in.Load.Dest.Name)
	case InstrOp:
		renameDests(in.Op.Dests, f)
	case InstrPhi:
		in.Phi.Dest = f(in.Phi.Dest)
	case InstrEncode:
		in.Encode.Encoder.Name = f(in.Encode.Encoder.Name)
	case InstrSubmit:
		in.Submit.Dest.Name = f(in.Submit.Dest.Name)
	case InstrSync:
		renameDests(in.Sync.Dests, f)
	case InstrHole:
		renameDests(in.Hole.Dests, f)
	}
}

func renameAll(names []string, f func(string) string) {
	for i := range names {
		names[i] = f(names[i])
	}
}

func renameDests(ds []Dest, f func(string) string) {
	for i := range ds {
		ds[i].Name = f(ds[i].Name)
	}
}

// DestTags visits every tagged destination of in, with its declared type.
func (in *Instr) DestTags(visit func(name string, typ Type, tag *TripleTag)) {
	each := func(ds []Dest) {
		for i := range ds {
			visit(ds[i].Name, ds[i].Type, &ds[i].Tag)
		}
	}
	switch in.Kind {
	case InstrDecl:
		visit(in.Decl.Dest.Name, in.Decl.Dest.Type, &in.Decl.Dest.Tag)
	case InstrStore:
		visit(in.Store.Dest.Name, in.Store.Dest.Type, &in.Store.Dest.Tag)
	case InstrLoad:
		visit(in.Load.Dest.Name, in.Load.Dest.Type, &in.Load.Dest.Tag)
	case InstrOp:
		each(in.Op.Dests)
	case InstrEncode:
		visit(in.Encode.Encoder.Name, in.Encode.Encoder.Type, &in.Encode.Encoder.Tag)
	case InstrSubmit:
		visit(in.Submit.Dest.Name, in.Submit.Dest.Type, &in.Submit.Dest.Tag)
	case InstrSync:
		each(in.Sync.Dests)
	case InstrHole:
		each(in.Hole.Dests)
	case InstrInAnnot, InstrOutAnnot:
		for i := range in.Annot.Annots {
			a := &in.Annot.Annots[i]
			visit(a.Name, TypeUnknown, &a.Tag)
		}
	}
}
