package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives callbacks from the pipeline engine for logging and metrics.
//
// Implementations should be fast and non-blocking; heavy work should be done
// asynchronously so as not to delay the drain loop.
type Observer interface {
	// OnRunStart is called once when a run request is accepted, before any
	// stage is invoked.
	OnRunStart(ctx context.Context, run int64)

	// OnRunCompleted is called when a run finalizes without a stage error.
	// items is the number of items captured by the end-of-run clear.
	OnRunCompleted(ctx context.Context, run int64, items int)

	// OnRunFailed is called when a run finalizes because a stage callback
	// returned an error or panicked.
	OnRunFailed(ctx context.Context, run int64, err error)

	// OnStageStart is called before invoking a stage callback. A source
	// stage reports once per dequeued item.
	OnStageStart(ctx context.Context, run int64, stageName string, stageIndex int)

	// OnStageCompleted is called after a stage callback returns, for both
	// successes and failures (err != nil).
	OnStageCompleted(ctx context.Context, run int64, stageName string, stageIndex int, err error, duration time.Duration)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnRunStart(ctx context.Context, run int64)                  {}
func (NoopObserver) OnRunCompleted(ctx context.Context, run int64, items int)   {}
func (NoopObserver) OnRunFailed(ctx context.Context, run int64, err error)      {}
func (NoopObserver) OnStageStart(ctx context.Context, run int64, name string, idx int) {
}
func (NoopObserver) OnStageCompleted(ctx context.Context, run int64, name string, idx int, err error, d time.Duration) {
}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnRunStart(ctx context.Context, run int64) {
	for _, o := range c.observers {
		o.OnRunStart(ctx, run)
	}
}

func (c *CompositeObserver) OnRunCompleted(ctx context.Context, run int64, items int) {
	for _, o := range c.observers {
		o.OnRunCompleted(ctx, run, items)
	}
}

func (c *CompositeObserver) OnRunFailed(ctx context.Context, run int64, err error) {
	for _, o := range c.observers {
		o.OnRunFailed(ctx, run, err)
	}
}

func (c *CompositeObserver) OnStageStart(ctx context.Context, run int64, name string, idx int) {
	for _, o := range c.observers {
		o.OnStageStart(ctx, run, name, idx)
	}
}

func (c *CompositeObserver) OnStageCompleted(ctx context.Context, run int64, name string, idx int, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnStageCompleted(ctx, run, name, idx, err, d)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs run / stage lifecycle
// events using the provided slog.Logger. If logger is nil, slog.Default()
// is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnRunStart(ctx context.Context, run int64) {
	o.Logger.InfoContext(ctx, "run_start",
		slog.Int64("run", run),
	)
}

func (o *LoggingObserver) OnRunCompleted(ctx context.Context, run int64, items int) {
	o.Logger.InfoContext(ctx, "run_completed",
		slog.Int64("run", run),
		slog.Int("items", items),
	)
}

func (o *LoggingObserver) OnRunFailed(ctx context.Context, run int64, err error) {
	o.Logger.ErrorContext(ctx, "run_failed",
		slog.Int64("run", run),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnStageStart(ctx context.Context, run int64, name string, idx int) {
	o.Logger.DebugContext(ctx, "stage_start",
		slog.Int64("run", run),
		slog.String("stage", name),
		slog.Int("stage_index", idx),
	)
}

func (o *LoggingObserver) OnStageCompleted(ctx context.Context, run int64, name string, idx int, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "stage_completed",
		slog.Int64("run", run),
		slog.String("stage", name),
		slog.Int("stage_index", idx),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

// BasicMetrics collects simple counters and aggregate stage durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	runsStarted        atomic.Int64
	runsCompleted      atomic.Int64
	runsFailed         atomic.Int64
	itemsDrained       atomic.Int64
	stagesCompleted    atomic.Int64
	totalStageDuration atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	RunsStarted   int64
	RunsCompleted int64
	RunsFailed    int64
	ActiveRuns    int64

	ItemsDrained     int64
	StagesCompleted  int64
	AvgStageDuration time.Duration
}

func (m *BasicMetrics) OnRunStart(ctx context.Context, run int64) {
	m.runsStarted.Add(1)
}

func (m *BasicMetrics) OnRunCompleted(ctx context.Context, run int64, items int) {
	m.runsCompleted.Add(1)
	m.itemsDrained.Add(int64(items))
}

func (m *BasicMetrics) OnRunFailed(ctx context.Context, run int64, err error) {
	m.runsFailed.Add(1)
}

func (m *BasicMetrics) OnStageCompleted(ctx context.Context, run int64, name string, idx int, err error, d time.Duration) {
	// Only count successful invocations for average duration.
	if err == nil {
		m.stagesCompleted.Add(1)
		m.totalStageDuration.Add(d.Nanoseconds())
	}
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	started := m.runsStarted.Load()
	completed := m.runsCompleted.Load()
	failed := m.runsFailed.Load()
	stages := m.stagesCompleted.Load()
	totalNs := m.totalStageDuration.Load()

	var avg time.Duration
	if stages > 0 {
		avg = time.Duration(totalNs / stages)
	}

	return BasicMetricsSnapshot{
		RunsStarted:      started,
		RunsCompleted:    completed,
		RunsFailed:       failed,
		ActiveRuns:       started - completed - failed,
		ItemsDrained:     m.itemsDrained.Load(),
		StagesCompleted:  stages,
		AvgStageDuration: avg,
	}
}
