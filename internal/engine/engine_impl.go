// Package engine implements the pipeline engine: the drain state machine
// that feeds backlog items through a registered list of stages.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/petrijr/conveyor/internal/backlog"
	"github.com/petrijr/conveyor/internal/history"
	"github.com/petrijr/conveyor/pkg/api"
)

// engineImpl is the single implementation of api.Engine.
//
// All mutable state is guarded by mu. Stage callbacks are invoked with mu
// released, so a callback may call back into the engine (Add, Clear,
// accessors, even Run) without deadlocking; that is what makes live feeding
// work. The lock is re-acquired between invocations to advance the cursors.
type engineImpl[T any] struct {
	mu sync.Mutex

	queue       *backlog.Backlog[T]
	stages      []api.Stage[T]
	stageCursor int

	current    T
	hasCurrent bool

	active int   // in-flight runs; greater than 1 only in non-blocking mode
	nth    int64 // run counter, incremented per accepted run

	done api.DoneFunc[T]
	fail api.ErrorFunc[T]

	blocking bool
	observer api.Observer
	store    history.RunStore
	logger   *slog.Logger
}

// Config describes how to construct an engine.
// Only used inside this package; external callers use the helper functions.
type Config[T any] struct {
	// NonBlocking disables the drop-while-active policy: every run request
	// executes, sharing backlog and cursor state with any concurrent run.
	// Only safe for fire-and-forget restart-from-scratch usage.
	NonBlocking bool

	Observer api.Observer

	// History stores finalized run records. Defaults to an in-memory store.
	History history.RunStore

	// Logger reports contained callback panics and history write failures.
	Logger *slog.Logger
}

// New returns a blocking engine with an in-memory history store.
// External users access this via conveyor.NewEngine.
func New[T any]() api.Engine[T] {
	return NewWithConfig(Config[T]{})
}

// NewWithConfig creates a new engine using the given configuration.
func NewWithConfig[T any](cfg Config[T]) api.Engine[T] {
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	store := cfg.History
	if store == nil {
		store = history.NewMemoryStore()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &engineImpl[T]{
		queue:    backlog.New[T](),
		blocking: !cfg.NonBlocking,
		observer: obs,
		store:    store,
		logger:   logger,
	}
}

func (e *engineImpl[T]) Add(items ...T) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue.Append(items...)
}

func (e *engineImpl[T]) RegisterStages(stages ...api.Stage[T]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setStagesLocked(stages)
}

func (e *engineImpl[T]) setStagesLocked(stages []api.Stage[T]) {
	if len(stages) == 0 || !stages[0].IsSource() {
		// An empty or non-source leading stage clears the whole pipeline,
		// ignoring any trailing arguments.
		e.stages = nil
		return
	}
	e.stages = slices.Clone(stages)
}

func (e *engineImpl[T]) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue.Drain()
}

func (e *engineImpl[T]) OnDone(fn api.DoneFunc[T]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.done = fn
}

func (e *engineImpl[T]) OnError(fn api.ErrorFunc[T]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail = fn
}

func (e *engineImpl[T]) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active > 0
}

func (e *engineImpl[T]) Backlog() []T {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Snapshot()
}

func (e *engineImpl[T]) CurrentItem() (T, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current, e.hasCurrent
}

func (e *engineImpl[T]) Cursor() (item int, stage int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Cursor(), e.stageCursor
}

func (e *engineImpl[T]) RunCount() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nth
}

func (e *engineImpl[T]) History(ctx context.Context, opts api.RunListOptions) ([]*api.RunRecord, error) {
	return e.store.ListRuns(opts)
}

func (e *engineImpl[T]) GetRun(ctx context.Context, run int64) (*api.RunRecord, error) {
	rec, err := e.store.GetRun(run)
	if err != nil {
		return nil, fmt.Errorf("run %d: %w", run, err)
	}
	return rec, nil
}

func (e *engineImpl[T]) Run(ctx context.Context, stages ...api.Stage[T]) (*api.Report[T], error) {
	run, ok := e.begin(stages)
	if !ok {
		return nil, nil
	}
	return e.drain(ctx, run)
}

func (e *engineImpl[T]) Start(ctx context.Context, stages ...api.Stage[T]) {
	run, ok := e.begin(stages)
	if !ok {
		return
	}
	go func() {
		_, _ = e.drain(ctx, run)
	}()
}

// begin applies the re-entrancy policy and, for accepted runs, assigns the
// run number and resets the stage cursor.
func (e *engineImpl[T]) begin(stages []api.Stage[T]) (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(stages) > 0 {
		e.setStagesLocked(stages)
	}

	if e.blocking && e.active > 0 {
		// Dropped request. The stage-list replacement above is still visible
		// to the active run's next stage lookup; the live cursors belong to
		// that run and are left alone.
		return 0, false
	}

	e.active++
	e.nth++
	e.stageCursor = 0
	return e.nth, true
}

// drain executes one accepted run to finalization. It is the only place
// stage callbacks are invoked and it awaits each one before proceeding:
// execution within a run is strictly sequential.
func (e *engineImpl[T]) drain(ctx context.Context, run int64) (*api.Report[T], error) {
	e.observer.OnRunStart(ctx, run)
	startedAt := time.Now()

	var res api.Result
	var failErr error
	failItem, failStage := -1, -1

	e.mu.Lock()

	// A run with nothing queued performs zero stage invocations and goes
	// straight to finalization.
	if e.queue.Exhausted() {
		res.Break = true
	}

loop:
	for !res.Break && e.stageCursor < len(e.stages) {
		if err := ctx.Err(); err != nil {
			failErr = err
			failItem, failStage = e.queue.Cursor(), e.stageCursor
			break
		}

		idx := e.stageCursor
		st := e.stages[idx]
		e.stageCursor++

		if st.IsSource() {
			// One invocation per currently available backlog item. The
			// length is re-polled every iteration, so items appended during
			// an invocation are still delivered within this run.
			for !res.Break {
				item, ok := e.queue.Next()
				if !ok {
					break
				}
				e.current, e.hasCurrent = item, true
				e.mu.Unlock()
				r, err := e.invokeSource(ctx, st, idx, item, run)
				e.mu.Lock()
				if err != nil {
					failErr = err
					failItem, failStage = e.queue.Cursor(), idx
					break loop
				}
				res = normalize(r)
			}
			continue
		}

		data := res.Data
		e.mu.Unlock()
		r, err := e.invokePipe(ctx, st, idx, data, run)
		e.mu.Lock()
		if err != nil {
			failErr = err
			failItem, failStage = e.queue.Cursor(), idx
			break loop
		}
		res = normalize(r)
	}

	// Finalize. The backlog is cleared exactly once per run, strictly after
	// the run's last stage invocation; the removed items (processed or not)
	// become the run's result set.
	items := e.queue.Drain()
	e.stageCursor = 0
	e.active--
	if e.active == 0 {
		var zero T
		e.current, e.hasCurrent = zero, false
	}
	done, fail := e.done, e.fail
	e.mu.Unlock()

	finishedAt := time.Now()

	if failErr != nil {
		e.observer.OnRunFailed(ctx, run, failErr)
		e.record(ctx, run, api.StatusFailed, items, failItem, failStage, failErr, startedAt, finishedAt)
		e.invokeError(ctx, fail, api.ErrorReport[T]{
			Run:        run,
			Items:      items,
			ItemIndex:  failItem,
			StageIndex: failStage,
			Err:        failErr,
		})
		return nil, failErr
	}

	rep := api.Report[T]{Run: run, Items: items}
	e.observer.OnRunCompleted(ctx, run, len(items))
	e.record(ctx, run, api.StatusCompleted, items, -1, -1, nil, startedAt, finishedAt)
	e.invokeDone(ctx, done, rep)
	return &rep, nil
}

// normalize maps a stage's return value to the working result: a nil result
// means "continue with no data".
func normalize(r *api.Result) api.Result {
	if r == nil {
		return api.Result{}
	}
	return *r
}

func (e *engineImpl[T]) invokeSource(ctx context.Context, st api.Stage[T], idx int, item T, run int64) (r *api.Result, err error) {
	start := time.Now()
	e.observer.OnStageStart(ctx, run, st.Name, idx)
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("stage %q panicked: %v", st.Name, p)
		}
		e.observer.OnStageCompleted(ctx, run, st.Name, idx, err, time.Since(start))
	}()
	return st.Source(ctx, item, run, e)
}

func (e *engineImpl[T]) invokePipe(ctx context.Context, st api.Stage[T], idx int, data any, run int64) (r *api.Result, err error) {
	start := time.Now()
	e.observer.OnStageStart(ctx, run, st.Name, idx)
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("stage %q panicked: %v", st.Name, p)
		}
		e.observer.OnStageCompleted(ctx, run, st.Name, idx, err, time.Since(start))
	}()
	return st.Pipe(ctx, data, run, e)
}

// invokeDone calls the done callback. A panic in the callback is contained
// and logged; it never propagates out of the run.
func (e *engineImpl[T]) invokeDone(ctx context.Context, fn api.DoneFunc[T], rep api.Report[T]) {
	if fn == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			e.logger.ErrorContext(ctx, "callback panicked",
				slog.String("callback", "done"),
				slog.Int64("run", rep.Run),
				slog.Any("panic", p),
			)
		}
	}()
	fn(ctx, rep, e)
}

// invokeError calls the error callback with the same containment as
// invokeDone.
func (e *engineImpl[T]) invokeError(ctx context.Context, fn api.ErrorFunc[T], rep api.ErrorReport[T]) {
	if fn == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			e.logger.ErrorContext(ctx, "callback panicked",
				slog.String("callback", "error"),
				slog.Int64("run", rep.Run),
				slog.Any("panic", p),
			)
		}
	}()
	fn(ctx, rep, e)
}

// record writes the run's history entry. History failures are logged, never
// surfaced: reporting to the caller already happened through the callbacks.
func (e *engineImpl[T]) record(ctx context.Context, run int64, status api.Status, items []T, itemIdx, stageIdx int, runErr error, startedAt, finishedAt time.Time) {
	encoded, err := history.EncodeItems(items)
	if err != nil {
		e.logger.WarnContext(ctx, "history: encoding item snapshot failed",
			slog.Int64("run", run),
			slog.Any("error", err),
		)
		encoded = nil
	}

	errStr := ""
	if runErr != nil {
		errStr = runErr.Error()
	}

	rec := &api.RunRecord{
		Run:        run,
		Status:     status,
		ItemCount:  len(items),
		Items:      encoded,
		ItemIndex:  itemIdx,
		StageIndex: stageIdx,
		Error:      errStr,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}

	if err := e.store.SaveRun(rec); err != nil {
		e.logger.WarnContext(ctx, "history: saving run record failed",
			slog.Int64("run", run),
			slog.Any("error", err),
		)
	}
}
