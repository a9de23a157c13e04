// Package pipeline provides ordered stage composition: a Pipeline runs
// each of its Stages in order over the same item list, aborting on the
// first StageProcessingError. A Pipeline is itself a Stage (and therefore
// a Component), so pipelines nest — exactly what pkg/splitter's child
// pipelines rely on.
package pipeline

import (
	"context"
	"fmt"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/component"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/stage"
)

// Pipeline holds an ordered list of stages and runs them in sequence.
type Pipeline[T meta.Copyable[T]] struct {
	base   *component.Base
	stages []stage.Stage[T]
}

// New constructs a Pipeline with the given id and stages, in execution
// order.
func New[T meta.Copyable[T]](id string, stages ...stage.Stage[T]) *Pipeline[T] {
	b := component.NewBase(true)
	_ = b.SetID(id)
	return &Pipeline[T]{base: b, stages: stages}
}

// ID returns the pipeline's identifier.
func (p *Pipeline[T]) ID() string { return p.base.ID() }

// Kind reports the component kind, used in ComponentInfo and tracing when
// a Pipeline is nested as a stage.
func (p *Pipeline[T]) Kind() string { return "pipeline.Pipeline" }

// Stages returns the pipeline's stages in execution order. The returned
// slice must not be mutated.
func (p *Pipeline[T]) Stages() []stage.Stage[T] { return p.stages }

// Initialize initializes the pipeline itself and then every stage, in
// order. If any stage fails to initialize, earlier ones remain
// initialized — callers that want all-or-nothing semantics should call
// Destroy on failure.
func (p *Pipeline[T]) Initialize() error {
	if err := p.base.Initialize(); err != nil {
		return err
	}
	for _, s := range p.stages {
		if err := s.Initialize(); err != nil {
			return fmt.Errorf("pipeline %q: stage %q: %w", p.ID(), s.ID(), err)
		}
	}
	return nil
}

// Destroy destroys every stage and then the pipeline itself. It is
// idempotent, like every component's Destroy.
func (p *Pipeline[T]) Destroy() {
	for _, s := range p.stages {
		s.Destroy()
	}
	p.base.Destroy()
}

// Execute runs every stage in order over items, returning the list that
// results after the last stage. A failing stage aborts the pipeline; the
// returned error decorates the stage's own error with the pipeline id and
// the stage's position.
func (p *Pipeline[T]) Execute(ctx context.Context, items []*meta.Item[T]) ([]*meta.Item[T], error) {
	if err := p.base.CheckRunPreconditions("Execute"); err != nil {
		return nil, err
	}

	current := items
	for i, s := range p.stages {
		out, err := s.Execute(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q: stage %d (%s): %w", p.ID(), i, s.ID(), err)
		}
		current = out
	}
	return current, nil
}

var _ stage.Stage[copyableStub] = (*Pipeline[copyableStub])(nil)

// copyableStub only exists to let the compiler check, at build time, that
// *Pipeline[T] satisfies stage.Stage[T] for any T — it is never
// instantiated.
type copyableStub struct{}

func (copyableStub) DeepCopy() copyableStub { return copyableStub{} }
