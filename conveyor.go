package conveyor

import (
	"context"
	"database/sql"
	"time"

	"github.com/petrijr/conveyor/internal/engine"
	"github.com/petrijr/conveyor/internal/history"
	"github.com/petrijr/conveyor/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Engine[T any]      = api.Engine[T]
	Stage[T any]       = api.Stage[T]
	Result             = api.Result
	SourceFunc[T any]  = api.SourceFunc[T]
	PipeFunc[T any]    = api.PipeFunc[T]
	Report[T any]      = api.Report[T]
	ErrorReport[T any] = api.ErrorReport[T]
	DoneFunc[T any]    = api.DoneFunc[T]
	ErrorFunc[T any]   = api.ErrorFunc[T]

	Status         = api.Status
	RunRecord      = api.RunRecord
	RunListOptions = api.RunListOptions

	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver
)

// Re-export common observer helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
)

// ErrRunNotFound is returned by Engine.GetRun when no record exists for a
// run number.
var ErrRunNotFound = api.ErrRunNotFound

// Re-export run statuses for convenience.

const (
	StatusCompleted = api.StatusCompleted
	StatusFailed    = api.StatusFailed
)

// Stage constructors
// These forward to pkg/api so pipelines can be built without extra imports.

// SourceStage builds a source stage: fn is invoked once per backlog item.
func SourceStage[T any](name string, fn SourceFunc[T]) Stage[T] {
	return api.SourceStage(name, fn)
}

// PipeStage builds a pipe stage: fn is invoked once per run with the
// previous stage's data.
func PipeStage[T any](name string, fn PipeFunc[T]) Stage[T] {
	return api.PipeStage(name, fn)
}

// PassStage returns a pipe stage that forwards its input data unchanged.
func PassStage[T any](name string) Stage[T] {
	return api.PassStage[T](name)
}

// SleepStage returns a context-aware pipe stage that waits for d before
// forwarding its input unchanged.
func SleepStage[T any](name string, d time.Duration) Stage[T] {
	return api.SleepStage[T](name, d)
}

// Engine constructors
// These wrap the internal/engine package so external callers
// never need to import internal packages.

// NewEngine returns a blocking engine with an in-memory run history.
func NewEngine[T any]() Engine[T] {
	return engine.New[T]()
}

// NewEngineWithObserver returns a blocking engine with the given Observer.
func NewEngineWithObserver[T any](obs Observer) Engine[T] {
	return engine.NewWithConfig(engine.Config[T]{Observer: obs})
}

// NewNonBlockingEngine returns an engine whose run requests all execute
// instead of being dropped while a run is active. Concurrent runs share the
// same backlog and cursor state; use it only for fire-and-forget
// restart-from-scratch triggering.
func NewNonBlockingEngine[T any]() Engine[T] {
	return engine.NewWithConfig(engine.Config[T]{NonBlocking: true})
}

// NewSQLiteEngine returns a blocking engine that records run history in a
// SQLite database. The backlog itself stays in memory.
func NewSQLiteEngine[T any](db *sql.DB) (Engine[T], error) {
	store, err := history.NewSQLiteStore(db)
	if err != nil {
		return nil, err
	}
	return engine.NewWithConfig(engine.Config[T]{History: store}), nil
}

// NewSQLiteEngineWithObserver returns a SQLite-history engine with the given
// Observer.
func NewSQLiteEngineWithObserver[T any](db *sql.DB, obs Observer) (Engine[T], error) {
	store, err := history.NewSQLiteStore(db)
	if err != nil {
		return nil, err
	}
	return engine.NewWithConfig(engine.Config[T]{History: store, Observer: obs}), nil
}

// Convenience helpers that just forward to the underlying Engine.

// Run drains the engine's backlog through its pipeline and waits for the
// run to finalize.
func Run[T any](ctx context.Context, eng Engine[T], stages ...Stage[T]) (*Report[T], error) {
	return eng.Run(ctx, stages...)
}

// Start triggers a fire-and-forget run.
func Start[T any](ctx context.Context, eng Engine[T], stages ...Stage[T]) {
	eng.Start(ctx, stages...)
}

// History lists finalized run records.
func History[T any](ctx context.Context, eng Engine[T], opts RunListOptions) ([]*RunRecord, error) {
	return eng.History(ctx, opts)
}

// DecodeItems decodes the item snapshot stored in a RunRecord back into the
// engine's item type.
func DecodeItems[T any](data []byte) ([]T, error) {
	return history.DecodeItems[T](data)
}
