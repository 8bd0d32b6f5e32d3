package conveyor

import (
	"slices"
	"time"

	"github.com/petrijr/conveyor/pkg/api"
)

// PipelineBuilder provides a fluent API for defining pipelines:
//
//	pipeline := conveyor.NewPipeline("collect", collect).
//	    Stage("transform", transform).
//	    Stage("publish", publish)
//
//	pipeline.Register(engine)
//
//	rep, err := conveyor.Run(ctx, engine)
type PipelineBuilder[T any] struct {
	stages []Stage[T]
}

// NewPipeline creates a new pipeline builder whose source stage (invoked
// once per backlog item) has the given name and callback.
func NewPipeline[T any](sourceName string, fn SourceFunc[T]) *PipelineBuilder[T] {
	return &PipelineBuilder[T]{
		stages: []Stage[T]{api.SourceStage(sourceName, fn)},
	}
}

// Stage appends a pipe stage, invoked once per run with the previous
// stage's data.
func (b *PipelineBuilder[T]) Stage(name string, fn PipeFunc[T]) *PipelineBuilder[T] {
	b.stages = append(b.stages, api.PipeStage(name, fn))
	return b
}

// Pass appends a pipe stage that forwards its data unchanged.
func (b *PipelineBuilder[T]) Pass(name string) *PipelineBuilder[T] {
	b.stages = append(b.stages, api.PassStage[T](name))
	return b
}

// Sleep appends a context-aware pipe stage that waits for d before
// forwarding its data unchanged.
func (b *PipelineBuilder[T]) Sleep(name string, d time.Duration) *PipelineBuilder[T] {
	b.stages = append(b.stages, api.SleepStage[T](name, d))
	return b
}

// Stages returns a copy of the built stage list.
func (b *PipelineBuilder[T]) Stages() []Stage[T] {
	return slices.Clone(b.stages)
}

// Register replaces eng's stage list with the built pipeline.
func (b *PipelineBuilder[T]) Register(eng Engine[T]) {
	eng.RegisterStages(b.stages...)
}
