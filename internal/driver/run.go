// Package driver loads scheduling programs and runs the middle-end over
// each of their functions: flattening, graph construction, SSA and the
// three quotient deductions.
package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"hlsched/internal/ast"
	"hlsched/internal/cfg"
	"hlsched/internal/dataflow"
	"hlsched/internal/diag"
	"hlsched/internal/hir"
	"hlsched/internal/observ"
	"hlsched/internal/quot"
	"hlsched/internal/source"
	"hlsched/internal/spec"
	"hlsched/internal/ssa"
	"hlsched/internal/trace"
)

// Stage names, in pipeline order.
const (
	StageFlatten  = "flatten"
	StageCFG      = "cfg"
	StageSSA      = "ssa"
	StageValue    = "value"
	StageDeform   = "deform"
	StageTimeline = "timeline"
	StageSpatial  = "spatial"
)

// Stages lists every stage in pipeline order.
var Stages = []string{StageFlatten, StageCFG, StageSSA, StageValue, StageDeform, StageTimeline, StageSpatial}

type Options struct {
	Jobs int
	// Skip turns deduction off per sort, indexed by hir.Sort.
	Skip           [3]bool
	Merge          quot.MergePolicy
	MaxDiagnostics int
	Cache          *Cache
	Observer       Observer
}

func (o *Options) enabled(s hir.Sort) bool {
	return !o.Skip[s]
}

// Result is the outcome for one function. Graph is the deformed graph with
// every deduced tag filled in; it is nil when flattening or graph
// construction failed.
type Result struct {
	Func    string
	Graph   *cfg.Graph
	Params  []hir.Dest
	Results []hir.Dest
	Events  map[hir.BlockID]quot.Events
	Bag     *diag.Bag
	Timing  observ.Report
	Cached  bool
}

// Failed reports whether the function produced an error diagnostic.
func (r *Result) Failed() bool {
	return r.Bag.HasErrors()
}

// Run compiles every function of prog, up to opts.Jobs at a time, and
// returns the results in program order. Errors of a single function end up
// in its bag; Run only fails when ctx is canceled.
func Run(ctx context.Context, prog *Program, opts Options) ([]*Result, error) {
	ctx, span := trace.Start(ctx, trace.ScopeDriver, "run")
	defer span.End(fmt.Sprintf("%d funcs", len(prog.Funcs)))

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	if opts.MaxDiagnostics <= 0 {
		opts.MaxDiagnostics = 100
	}
	qctx := prog.Context(quot.Options{TimelineMerge: opts.Merge})
	results := make([]*Result, len(prog.Funcs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(prog.Funcs))))
	for i, fn := range prog.Funcs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = canceled(fn, opts.MaxDiagnostics)
				return err
			}
			results[i] = runFunc(gctx, prog, qctx, fn, &opts)
			return gctx.Err()
		})
	}
	err := g.Wait()
	for i, fn := range prog.Funcs {
		if results[i] == nil {
			results[i] = canceled(fn, opts.MaxDiagnostics)
		}
	}
	return results, err
}

func canceled(fn *ast.Func, maxDiags int) *Result {
	res := &Result{Func: fn.Name, Bag: diag.NewBag(maxDiags)}
	diag.ReportError(&diag.BagReporter{Bag: res.Bag}, diag.DrvCanceled, fn.Span, fn.Name+": canceled").Emit()
	return res
}

// funcRun carries the state of one function through the stages.
type funcRun struct {
	ctx   context.Context
	prog  *Program
	qctx  *quot.Context
	ast   *ast.Func
	fn    *quot.Func
	opts  *Options
	res   *Result
	rep   diag.Reporter
	timer *observ.Timer
}

func runFunc(ctx context.Context, prog *Program, qctx *quot.Context, fn *ast.Func, opts *Options) *Result {
	ctx, span := trace.Start(ctx, trace.ScopeFunc, "func:"+fn.Name)
	key := cacheKey(prog, fn.Name, opts)
	var readErr error
	if opts.Cache != nil {
		cached, ok, err := opts.Cache.get(key, opts.MaxDiagnostics)
		if ok {
			opts.notify(StageEvent{Func: fn.Name, Status: StageCached})
			span.End("cached")
			return cached
		}
		readErr = err
	}

	r := &funcRun{
		ctx:  ctx,
		prog: prog,
		qctx: qctx,
		ast:  fn,
		fn: &quot.Func{
			Name:    fn.Name,
			Span:    fn.Span,
			Params:  slices.Clone(fn.Params),
			Results: slices.Clone(fn.Results),
			Specs:   fn.Specs,
		},
		opts:  opts,
		timer: observ.NewTimer(),
	}
	r.res = &Result{Func: fn.Name, Bag: diag.NewBag(opts.MaxDiagnostics)}
	// both SSA versions of a variable can carry the same complaint
	r.rep = diag.NewDedupReporter(&diag.BagReporter{Bag: r.res.Bag})
	if readErr != nil {
		// a broken entry only costs a recompute
		diag.ReportWarning(r.rep, diag.DrvCacheRead, fn.Span,
			fmt.Sprintf("%s: cache read failed: %v", fn.Name, readErr)).Emit()
	}
	res := r.run()
	res.Timing = r.timer.Report()
	span.WithExtra("diags", fmt.Sprint(res.Bag.Len())).End(r.timer.Summary())

	if opts.Cache != nil && ctx.Err() == nil {
		if err := opts.Cache.put(key, res); err != nil {
			diag.ReportWarning(r.rep, diag.DrvCacheWrite, fn.Span,
				fmt.Sprintf("%s: cache write failed: %v", fn.Name, err)).Emit()
		}
	}
	return res
}

func (r *funcRun) run() *Result {
	rep := quot.NewReport()
	defer func() {
		rep.Emit(r.rep)
		r.res.Params = r.fn.Params
		r.res.Results = r.fn.Results
		r.res.Events = rep.Events
	}()

	var flat []ast.Stmt
	if !r.stage(StageFlatten, func() (err error) {
		flat, err = ast.Flatten(r.ast.Body)
		return err
	}) {
		return r.res
	}
	var g *cfg.Graph
	if !r.stage(StageCFG, func() (err error) {
		g, err = cfg.Build(flat, r.ast.Results, r.prog.IsExtern)
		if err != nil {
			return err
		}
		return g.Validate()
	}) {
		return r.res
	}
	r.res.Graph = g

	var sg *cfg.Graph
	if !r.stage(StageSSA, func() error {
		sg = ssa.Form(g, dataflow.Liveness(g))
		if err := sg.Validate(); err != nil {
			return err
		}
		return ssa.Check(sg)
	}) {
		return r.res
	}
	if r.opts.enabled(hir.SortValue) && !r.stage(StageValue, func() error {
		return quot.Value(r.qctx, r.fn, sg, rep)
	}) {
		return r.res
	}
	if !r.stage(StageDeform, func() error {
		g = ssa.Deform(sg)
		r.res.Graph = g
		return nil
	}) {
		return r.res
	}
	if r.opts.enabled(hir.SortTimeline) && !r.stage(StageTimeline, func() error {
		return quot.Timeline(r.qctx, r.fn, g, rep)
	}) {
		return r.res
	}
	if r.opts.enabled(hir.SortSpatial) {
		r.stage(StageSpatial, func() error {
			return quot.Spatial(r.qctx, r.fn, g, rep)
		})
	}
	return r.res
}

// stage runs one step and reports its error. It returns false when the
// pipeline must stop.
func (r *funcRun) stage(name string, step func() error) bool {
	if err := r.ctx.Err(); err != nil {
		diag.ReportError(r.rep, diag.DrvCanceled, r.ast.Span, fmt.Sprintf("%s: canceled before %s", r.ast.Name, name)).Emit()
		return false
	}
	_, span := trace.Start(r.ctx, trace.ScopePass, name)
	idx := r.timer.Begin(name)
	r.opts.notify(StageEvent{Func: r.ast.Name, Stage: name, Status: StageStart})
	start := time.Now()

	err := step()

	r.timer.End(idx, "")
	status := StageEnd
	detail := "ok"
	if err != nil {
		status, detail = StageFailed, err.Error()
		r.report(err)
	}
	span.End(detail)
	r.opts.notify(StageEvent{Func: r.ast.Name, Stage: name, Status: status, Elapsed: time.Since(start)})
	return err == nil
}

// report turns err into diagnostics, one per joined error.
func (r *funcRun) report(err error) {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			r.report(e)
		}
		return
	}
	code, sp := diag.QuotInvariant, r.ast.Span
	var (
		flatErr *ast.FlattenError
		valErr  *cfg.ValidationError
		quotErr *quot.Error
		specErr *spec.Error
		loadErr *LoadError
	)
	switch {
	case errors.As(err, &quotErr):
		code, sp = quotErr.Code, orSpan(quotErr.Span, sp)
	case errors.As(err, &flatErr):
		code, sp = flatErr.Code, orSpan(flatErr.Span, sp)
	case errors.As(err, &valErr):
		code = valErr.Code
		if g := r.res.Graph; g != nil && g.Has(valErr.Block) {
			sp = orSpan(g.Block(valErr.Block).Span, sp)
		}
	case errors.As(err, &specErr):
		code, sp = specErr.Code, orSpan(specErr.Span, sp)
	case errors.As(err, &loadErr):
		code, sp = loadErr.Code, orSpan(loadErr.Span, sp)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = diag.DrvCanceled
	}
	diag.ReportError(r.rep, code, sp, r.ast.Name+": "+err.Error()).Emit()
}

func orSpan(sp, fallback source.Span) source.Span {
	if sp == source.NoSpan {
		return fallback
	}
	return sp
}
