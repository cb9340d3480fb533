package quot

import (
	"slices"
	"strconv"

	"hlsched/internal/cfg"
	"hlsched/internal/dataflow"
	"hlsched/internal/diag"
	"hlsched/internal/hir"
	"hlsched/internal/unify"
)

// Names of the builtin event transitions. Timeline specs describe encoding,
// submission and synchronization with call nodes of these names.
const (
	EncodeEvent = "encode_event"
	SubmitEvent = "submit_event"
	SyncEvent   = "sync_event"
)

// events is the set of event locations reaching a block.
type events struct {
	locs []int
}

func (e events) Meet(o events) events {
	locs := append(slices.Clone(e.locs), o.locs...)
	slices.Sort(locs)
	return events{locs: slices.Compact(locs)}
}

func (e events) Transfer(hir.Node, hir.BlockID) events { return e }

func (e events) Equal(o events) bool { return slices.Equal(e.locs, o.locs) }

func loc(i int) string { return "_loc" + strconv.Itoa(i) }

type instrKey struct {
	block hir.BlockID
	index int
}

type timelinePass struct {
	*pass
	next    int
	in, out map[hir.BlockID]int
	inputs  map[hir.BlockID][]hir.TripleTag // event annotations waiting for a block's entry
	outputs map[hir.BlockID][]hir.TripleTag // and for a block's exit
	holes   [][2]int
	results map[instrKey]string // encode tuples and events after syncs
}

// Timeline deduces timeline quotients on the deformed graph g. The current
// event is threaded through the blocks in dataflow order: encoding,
// syncing and timeline-specified calls advance it, and paths that meet
// must agree on it. Each block gets an annotation with its entry and exit
// events.
func Timeline(ctx *Context, fn *Func, g *cfg.Graph, rep *Report) error {
	p, err := newPass(ctx, fn, g, hir.SortTimeline, rep)
	if p == nil || err != nil {
		return err
	}
	t := &timelinePass{
		pass:    p,
		in:      make(map[hir.BlockID]int),
		out:     make(map[hir.BlockID]int),
		inputs:  make(map[hir.BlockID][]hir.TripleTag),
		outputs: make(map[hir.BlockID][]hir.TripleTag),
		results: make(map[instrKey]string),
	}
	return t.run()
}

func (t *timelinePass) fresh() int {
	n := t.next
	t.next++
	return n
}

func (t *timelinePass) run() error {
	start := t.fresh()
	if err := t.nodeEq(loc(start), t.startEvent(), t.fn.Span); err != nil {
		return err
	}
	if err := t.bindParams(); err != nil {
		return err
	}
	if _, err := dataflow.Transform(t.g, dataflow.Forward, events{}, t.visit); err != nil {
		return err
	}
	if err := t.resolve(); err != nil {
		return err
	}
	// a hole that nothing pinned down leaves the event as it was
	for _, h := range t.holes {
		if _, ok := t.env.NodeName(loc(h[1])); !ok {
			if err := t.equate(loc(h[1]), loc(h[0]), t.fn.Span); err != nil {
				return err
			}
		}
	}
	if err := t.resolve(); err != nil {
		return err
	}
	t.fillGraph()
	t.fillResults()
	t.recordEvents()
	t.fillIO()
	t.reportUndetermined()
	return nil
}

// startEvent is the node of the event on entry: the spec's first input,
// unless the start block annotates its input.
func (t *timelinePass) startEvent() string {
	if b := t.g.Block(hir.StartBlock); b != nil {
		for _, in := range b.Instrs {
			if in.Kind != hir.InstrInAnnot {
				continue
			}
			for _, a := range in.Annot.Annots {
				if a.Name == hir.AnnotInput && a.Tag.Timeline.Node != "" && t.spec.Has(a.Tag.Timeline.Node) {
					return a.Tag.Timeline.Node
				}
			}
		}
	}
	return t.env.Inputs()[0]
}

func (t *timelinePass) visit(id hir.BlockID, in events) (events, error) {
	b := t.g.Block(id)
	cur := 0
	if len(in.locs) > 0 {
		cur = in.locs[0]
		for _, other := range in.locs[1:] {
			if err := t.merge(id, cur, other); err != nil {
				return events{}, err
			}
		}
	}
	t.in[id] = cur
	for _, tag := range t.inputs[id] {
		if err := t.annot(loc(cur), tag, b.Span); err != nil {
			return events{}, err
		}
	}
	for i := range b.Instrs {
		next, err := t.instr(id, i, cur)
		if err != nil {
			return events{}, err
		}
		cur = next
	}
	cur, err := t.term(id, &b.Term, cur)
	if err != nil {
		return events{}, err
	}
	t.out[id] = cur
	for _, tag := range t.outputs[id] {
		if err := t.annot(loc(cur), tag, b.Term.Span); err != nil {
			return events{}, err
		}
	}
	return events{locs: []int{cur}}, nil
}

func (t *timelinePass) merge(id hir.BlockID, a, b int) error {
	err := t.env.AddVarEquality(loc(a), loc(b))
	if err == nil {
		return nil
	}
	e := t.errorf(diag.QuotTimelineMerge, t.g.Block(id).Span, err, "paths into %s disagree on the current event", id)
	if t.ctx.Options.TimelineMerge == MergeWarn {
		t.rep.Warnings = append(t.rep.Warnings, e)
		return nil
	}
	return e
}

func (t *timelinePass) instr(id hir.BlockID, i, cur int) (int, error) {
	in := &t.g.Block(id).Instrs[i]
	switch in.Kind {
	case hir.InstrInAnnot, hir.InstrOutAnnot:
		return cur, t.eventAnnots(id, in)
	case hir.InstrDecl:
		return cur, t.assign(in.Decl.Dest, in.Decl.Rhs, in.Span)
	case hir.InstrStore:
		return cur, t.assign(in.Store.Dest, in.Store.Rhs, in.Span)
	case hir.InstrLoad:
		return cur, t.load(&in.Load, in.Span)
	case hir.InstrEncode:
		return t.encode(id, i, cur)
	case hir.InstrSubmit:
		s := &in.Submit
		if !t.tracks(s.Dest.Name) {
			return cur, nil
		}
		if err := t.annot(s.Dest.Name, s.Dest.Tag, in.Span); err != nil {
			return cur, err
		}
		return cur, t.constrain(s.Dest.Name, s.Dest.Tag, unify.Call(SubmitEvent, s.Src), in.Span)
	case hir.InstrSync:
		s := &in.Sync
		next := t.fresh()
		if err := t.annot(loc(next), s.Tag, in.Span); err != nil {
			return cur, err
		}
		if err := t.constrain(loc(next), s.Tag, unify.Call(SyncEvent, loc(cur), s.Fence), in.Span); err != nil {
			return cur, err
		}
		t.results[instrKey{id, i}] = loc(next)
		return next, t.syncCopies(in)
	case hir.InstrHole:
		next := t.fresh()
		t.holes = append(t.holes, [2]int{cur, next})
		return next, nil
	}
	return cur, nil
}

// eventAnnots handles annotations of variables and of the implicit input
// and output events. An entry annotation's output is the exit of the
// enclosing structured region; an exit annotation's input is the entry of
// the successors.
func (t *timelinePass) eventAnnots(id hir.BlockID, in *hir.Instr) error {
	for _, a := range in.Annot.Annots {
		var err error
		switch {
		case a.Name == hir.AnnotInput && in.Kind == hir.InstrInAnnot:
			err = t.annot(loc(t.in[id]), a.Tag, in.Span)
		case a.Name == hir.AnnotInput:
			for _, s := range t.g.Successors(id) {
				t.inputs[s] = append(t.inputs[s], a.Tag)
			}
		case a.Name == hir.AnnotOutput && in.Kind == hir.InstrInAnnot:
			target := t.g.ContinuationOutputBlock(id)
			t.outputs[target] = append(t.outputs[target], a.Tag)
		case a.Name == hir.AnnotOutput:
			t.outputs[id] = append(t.outputs[id], a.Tag)
		case t.tracks(a.Name):
			err = t.annot(a.Name, a.Tag, in.Span)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// encode: (event', encoder) = encode_event(event, fences...).
func (t *timelinePass) encode(id hir.BlockID, i, cur int) (int, error) {
	in := &t.g.Block(id).Instrs[i]
	enc := &in.Encode
	args := append([]string{loc(cur)}, enc.Fences...)
	tuple := t.env.NewTemp()
	if err := t.annot(tuple, enc.Tag, in.Span); err != nil {
		return cur, err
	}
	if err := t.constrain(tuple, enc.Tag, unify.Call(EncodeEvent, args...), in.Span); err != nil {
		return cur, err
	}
	t.results[instrKey{id, i}] = tuple
	next := t.fresh()
	if err := t.constrain(loc(next), hir.TripleTag{}, unify.Extract(tuple, 0), in.Span); err != nil {
		return cur, err
	}
	if d := enc.Encoder; t.tracks(d.Name) {
		if err := t.annot(d.Name, d.Tag, in.Span); err != nil {
			return cur, err
		}
		if err := t.constrain(d.Name, d.Tag, unify.Extract(tuple, 1), in.Span); err != nil {
			return cur, err
		}
	}
	return next, nil
}

func (t *timelinePass) term(id hir.BlockID, term *hir.Terminator, cur int) (int, error) {
	switch term.Kind {
	case hir.TermCall:
		return t.call(id, term, cur)
	case hir.TermReturn:
		return cur, t.returns(term)
	case hir.TermFinalReturn:
		if !t.annotatedOutput(id) {
			if outs := t.env.Outputs(); len(outs) > 0 {
				if err := t.nodeEq(loc(cur), outs[0], term.Span); err != nil {
					return cur, err
				}
			}
		}
		return cur, t.bindResults(term.FinalReturn.Values, term.Span)
	}
	return cur, nil
}

// call: (event', results...) = spec(event, args...).
func (t *timelinePass) call(id hir.BlockID, term *hir.Terminator, cur int) (int, error) {
	c := &term.Call
	name, err := t.calleeSpec(c.Callee, term.Span)
	if err != nil || name == "" {
		return cur, err
	}
	args := []string{loc(cur)}
	for _, a := range c.Args {
		if t.tracks(a) {
			args = append(args, a)
		}
	}
	tuple := t.env.NewTemp()
	if err := t.annot(tuple, c.Tag, term.Span); err != nil {
		return cur, err
	}
	if err := t.constrain(tuple, c.Tag, unify.Call(name, args...), term.Span); err != nil {
		return cur, err
	}
	t.tuples[id] = tuple
	next := t.fresh()
	if err := t.constrain(loc(next), hir.TripleTag{}, unify.Extract(tuple, 0), term.Span); err != nil {
		return cur, err
	}
	for i, d := range t.tracked(c.Dests) {
		if err := t.annot(d.Name, d.Tag, term.Span); err != nil {
			return cur, err
		}
		if err := t.constrain(d.Name, d.Tag, unify.Extract(tuple, i+1), term.Span); err != nil {
			return cur, err
		}
	}
	return next, nil
}

func (t *timelinePass) annotatedOutput(id hir.BlockID) bool {
	return slices.ContainsFunc(t.outputs[id], func(tag hir.TripleTag) bool {
		return tag.Timeline.Node != ""
	})
}

func (t *timelinePass) fillResults() {
	for k, name := range t.results {
		in := &t.g.Block(k.block).Instrs[k.index]
		switch in.Kind {
		case hir.InstrEncode:
			t.fillTag(name, &in.Encode.Tag.Timeline, k.block)
		case hir.InstrSync:
			t.fillTag(name, &in.Sync.Tag.Timeline, k.block)
		}
	}
}

// recordEvents reports the entry and exit event of every visited block and
// prepends them to the block as an annotation.
func (t *timelinePass) recordEvents() {
	for _, id := range t.g.IDs() {
		inLoc, ok := t.in[id]
		if !ok {
			continue
		}
		outLoc, ok := t.out[t.g.ContinuationOutputBlock(id)]
		if !ok {
			outLoc = t.out[id]
		}
		b := t.g.Block(id)
		var ev Events
		t.fillTag(loc(inLoc), &ev.In, id)
		if n, ok := t.env.NodeName(loc(outLoc)); ok {
			ev.Out = hir.Tag{Quot: hir.QuotNode, Node: n}
		}
		if !t.spec.Trivial() {
			for _, side := range []struct {
				name string
				tag  hir.Tag
			}{{hir.AnnotInput, ev.In}, {hir.AnnotOutput, ev.Out}} {
				if side.tag.Node == "" {
					t.rep.Undetermined = append(t.rep.Undetermined, Undetermined{Name: side.name, Sort: t.sort, Block: id, Span: b.Span})
				}
			}
		}
		t.rep.Events[id] = ev
		if ev.In.Node == "" && ev.Out.Node == "" {
			continue
		}
		head := hir.Instr{Kind: hir.InstrInAnnot, Span: b.Span, Annot: hir.AnnotInstr{Annots: []hir.Annot{
			{Name: hir.AnnotInput, Tag: hir.TripleTag{Timeline: ev.In}},
			{Name: hir.AnnotOutput, Tag: hir.TripleTag{Timeline: ev.Out}},
		}}}
		b.Instrs = slices.Insert(b.Instrs, 0, head)
	}
}
