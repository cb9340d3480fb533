// Package trace records what the hlsched pipeline is doing.
//
// Enable it from the CLI:
//
//	hlsched check --trace=- --trace-level=detail prog.yaml
//
// Tracers:
//
//   - Nop: zero-cost when tracing is off
//   - StreamTracer: writes every event immediately (text or NDJSON)
//   - RingTracer: keeps the last N events in memory for dumping on failure
//   - MultiTracer: fans out to several tracers
//
// Levels gate scopes: phase shows driver and pass spans, detail adds one
// span per scheduling function, debug adds per-block events from the
// deduction passes.
//
// Tracers travel through the pipeline in a context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "cfg", parentID)
//	defer span.End("")
package trace
