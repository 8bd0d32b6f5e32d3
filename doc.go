// Package conveyor provides a small, embeddable in-process work-queue that
// drives a pipeline of callbacks over a dynamically growing list of items.
//
// Conveyor is designed for host applications that accumulate work over time
// and drain it through a fixed sequence of processing stages — batching
// uploads, flushing buffered events, re-indexing dirty records — without
// introducing external infrastructure. It runs fully in Go and integrates
// cleanly into existing codebases.
//
// # Core Concepts
//
// The conveyor programming model is intentionally small:
//
//  1. Engine
//  2. Stage
//  3. PipelineBuilder
//  4. Feeder
//
// # Engine
//
// The Engine owns an item backlog, an ordered stage list, the run state, and
// the done/error reporting. Callers append items with Add (at any time,
// including while a run is executing), register stages, and trigger runs:
//
//   - Run executes a drain synchronously and returns the run's report
//   - Start triggers a fire-and-forget drain in the background
//
// A run dequeues each backlog item through the source stage (stage 0), then
// threads the last result through the remaining pipe stages, one after the
// other. When the run finalizes, the backlog is cleared wholesale and the
// removed items are handed to the done callback (or the error callback with
// positional context, if a stage failed).
//
// By default the engine is blocking: a run request made while a run is
// active is dropped rather than queued. Non-blocking engines execute every
// request but share cursor state between concurrent runs, which is only safe
// for fire-and-forget restart-from-scratch usage.
//
// There is no retry machinery. A failed stage aborts the run and the backlog
// is still cleared; callers wanting retries re-Add items from the error
// callback.
//
// # Stage
//
// A Stage is one callback in the registered pipeline. Stages come in two
// kinds, built with SourceStage and PipeStage:
//
//   - a source stage is invoked once per backlog item, and keeps re-polling
//     the backlog, so items appended mid-run are still delivered
//   - a pipe stage is invoked once per run with the previous stage's data
//
// Any stage can return a Result with Break set to end the run early.
//
// # PipelineBuilder
//
// NewPipeline provides the ergonomic, declarative API used to define
// pipelines:
//
//	pipeline := conveyor.NewPipeline("flush",
//	    func(ctx context.Context, ev Event, run int64, eng conveyor.Engine[Event]) (*conveyor.Result, error) {
//	        return &conveyor.Result{Data: ev}, nil
//	    }).
//	    Stage("upload", upload)
//	pipeline.Register(eng)
//
// # Feeder
//
// The feeder package bridges channel-producing code and an engine: it
// appends items arriving on a channel and triggers runs on a flush interval
// or batch size. It is optional; many hosts simply call Add and Start
// themselves.
//
// # Observability and history
//
// Observers receive run and stage lifecycle events; the package ships a
// log/slog observer, a metrics collector, and a composite. Every finalized
// run is also recorded in a run history (in-memory by default, SQLite via
// NewSQLiteEngine) that can be read back through Engine.History.
package conveyor
