package api

import (
	"context"
	"time"
)

// Result is the value returned by a stage callback.
//
// A nil *Result means "continue with no data". Break terminates the current
// run early: remaining stages and remaining un-polled backlog items are
// skipped for this run only (they are still removed by the end-of-run clear).
type Result struct {
	// Data is forwarded to the next pipe stage in the run.
	Data any

	// Break requests early termination of the current run.
	Break bool
}

// SourceFunc is the callback of a source stage. It is invoked once per
// backlog item, with the dequeued item, the run number, and the engine that
// is executing the run. The backlog is re-polled after every invocation, so
// items appended while the run is executing are still delivered.
type SourceFunc[T any] func(ctx context.Context, item T, run int64, eng Engine[T]) (*Result, error)

// PipeFunc is the callback of a pipe stage. It is invoked once per run with
// the previous stage's Data payload.
type PipeFunc[T any] func(ctx context.Context, data any, run int64, eng Engine[T]) (*Result, error)

// Stage is one callback in a registered pipeline. A stage is either a
// source stage (per-item) or a pipe stage (per-run), never both; use
// SourceStage and PipeStage to construct them.
type Stage[T any] struct {
	Name   string
	Source SourceFunc[T]
	Pipe   PipeFunc[T]
}

// SourceStage builds a source stage: fn is invoked once per backlog item.
func SourceStage[T any](name string, fn SourceFunc[T]) Stage[T] {
	return Stage[T]{Name: name, Source: fn}
}

// PipeStage builds a pipe stage: fn is invoked once per run with the
// previous stage's data.
func PipeStage[T any](name string, fn PipeFunc[T]) Stage[T] {
	return Stage[T]{Name: name, Pipe: fn}
}

// IsSource reports whether s is a source stage.
func (s Stage[T]) IsSource() bool {
	return s.Source != nil
}

// IsZero reports whether s carries no callback at all. A zero stage at the
// head of a RegisterStages call clears the whole pipeline.
func (s Stage[T]) IsZero() bool {
	return s.Source == nil && s.Pipe == nil
}

// PassStage returns a pipe stage that forwards its input data unchanged.
// Useful as a placeholder while sketching pipelines.
func PassStage[T any](name string) Stage[T] {
	return PipeStage[T](name, func(ctx context.Context, data any, run int64, eng Engine[T]) (*Result, error) {
		return &Result{Data: data}, nil
	})
}

// SleepStage returns a pipe stage that waits for the given duration before
// forwarding its input unchanged.
//
// It is context-aware: if the context is cancelled during the sleep, it
// returns ctx.Err and the run fails at this stage.
func SleepStage[T any](name string, d time.Duration) Stage[T] {
	return PipeStage[T](name, func(ctx context.Context, data any, run int64, eng Engine[T]) (*Result, error) {
		if d <= 0 {
			return &Result{Data: data}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d):
			return &Result{Data: data}, nil
		}
	})
}
