// Package trace provides a tracing subsystem for the karst lowering
// pipeline.
//
// The trace package tracks driver runs, per-scenario lowering, and
// individual function and call emission to help diagnose slow or stuck
// lowerings.
//
// # Usage
//
// Enable tracing via command-line flags:
//
//	karst lower --trace=- --trace-level=phase calls.toml
//
// # Architecture
//
// Events land in one of three stores:
//
//   - StoreStream: immediate write to output (file/stderr)
//   - StoreRing: circular buffer for post-mortem dumps
//   - StoreBoth: both at once
//
// When tracing is off, Nop swallows everything.
//
// # Lanes
//
// The batch driver lowers one scenario file per goroutine. Each file's
// slot index is its lane; every event records the lane it came from, so a
// parallel run can be read per file (the chrome format maps lanes to
// thread tracks).
//
// # Levels and scopes
//
// Verbosity is controlled by levels:
//
//   - LevelOff: no tracing
//   - LevelError: only crash dumps
//   - LevelPhase: driver and scenario boundaries
//   - LevelDetail: per-function events
//   - LevelDebug: everything including call sites
//
// matched against event scopes ScopeDriver, ScopeModule, ScopeFunc and
// ScopeCall.
//
// # Context propagation
//
// Tracers travel through the pipeline via context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.ScopeModule, "lower calls.toml", trace.Link{Lane: slot})
//	defer span.End("")
package trace
