package api

import (
	"context"
)

// Report carries the outcome of a finalized run to the done callback and to
// callers of Engine.Run.
type Report[T any] struct {
	// Run is the number assigned to this run when it was accepted.
	Run int64

	// Items is the backlog snapshot captured by the end-of-run clear. It
	// contains every item that was still queued when the run finalized,
	// processed or not, in insertion order.
	Items []T
}

// ErrorReport carries the outcome of a failed run to the error callback.
type ErrorReport[T any] struct {
	Run   int64
	Items []T

	// ItemIndex is the backlog cursor position at the point of failure.
	ItemIndex int

	// StageIndex is the index of the stage whose callback failed.
	StageIndex int

	Err error
}

// DoneFunc is invoked exactly once per run that finalizes without a stage
// error. Each OnDone registration replaces the previous handler.
type DoneFunc[T any] func(ctx context.Context, rep Report[T], eng Engine[T])

// ErrorFunc is invoked exactly once per run that finalizes because a stage
// callback returned an error or panicked. Each OnError registration replaces
// the previous handler.
type ErrorFunc[T any] func(ctx context.Context, rep ErrorReport[T], eng Engine[T])

// Engine is an in-process work-queue that drives a registered pipeline of
// stages over a dynamically growing backlog of items.
//
// Execution is strictly sequential within a run. In blocking mode (the
// default) at most one run is active at a time and run requests made while a
// run is active are dropped. Non-blocking engines execute every request, but
// all requests share the same backlog and cursor state; that mode is only
// safe for fire-and-forget restart-from-scratch usage.
type Engine[T any] interface {
	// Add appends items to the backlog in call order. Items appended while a
	// run is executing become visible to the source stage on its next poll,
	// within the same run.
	Add(items ...T)

	// RegisterStages replaces the entire stage list. Passing no stages, or a
	// leading stage that is zero or not a source stage, clears the pipeline
	// and ignores any trailing arguments.
	RegisterStages(stages ...Stage[T])

	// Run registers stages (if any), then drains the backlog through the
	// pipeline and returns the run's report. If the engine is blocking and a
	// run is already active the call is dropped and returns (nil, nil); a
	// dropped call still replaces the stage list when stages are supplied.
	Run(ctx context.Context, stages ...Stage[T]) (*Report[T], error)

	// Start is the fire-and-forget form of Run: acceptance is decided
	// synchronously, the drain itself happens in a goroutine. Results are
	// observable through the done and error callbacks.
	Start(ctx context.Context, stages ...Stage[T])

	// Clear empties the backlog and resets the backlog cursor.
	Clear()

	// OnDone registers the done callback, replacing any previous one.
	OnDone(fn DoneFunc[T])

	// OnError registers the error callback, replacing any previous one.
	OnError(fn ErrorFunc[T])

	// Running reports whether at least one run is currently active.
	Running() bool

	// Backlog returns a copy of the current backlog contents, including
	// items already consumed by the active run but not yet cleared.
	Backlog() []T

	// CurrentItem returns the most recently dequeued backlog item, if any.
	CurrentItem() (T, bool)

	// Cursor returns the backlog cursor (next unconsumed position) and the
	// stage cursor (next stage to invoke). Both read 0 between runs.
	Cursor() (item int, stage int)

	// RunCount returns the number of runs accepted so far. The next accepted
	// run is assigned RunCount()+1.
	RunCount() int64

	// History returns records of finalized runs, oldest first.
	History(ctx context.Context, opts RunListOptions) ([]*RunRecord, error)

	// GetRun returns the record of a single finalized run by run number.
	GetRun(ctx context.Context, run int64) (*RunRecord, error)
}
