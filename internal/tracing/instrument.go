package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/stage"
)

// Traced wraps a Stage so each Execute call opens a span covering the
// same entry-to-exit window a stage's ComponentInfo records, closing it
// with an error status on failure.
type Traced[T meta.Copyable[T]] struct {
	inner  stage.Stage[T]
	tracer oteltrace.Tracer
}

// Instrument wraps inner to produce a span per Execute call via tracer.
func Instrument[T meta.Copyable[T]](tracer oteltrace.Tracer, inner stage.Stage[T]) *Traced[T] {
	return &Traced[T]{inner: inner, tracer: tracer}
}

func (s *Traced[T]) ID() string        { return s.inner.ID() }
func (s *Traced[T]) Kind() string      { return s.inner.Kind() }
func (s *Traced[T]) Initialize() error { return s.inner.Initialize() }
func (s *Traced[T]) Destroy()          { s.inner.Destroy() }

func (s *Traced[T]) Execute(ctx context.Context, items []*meta.Item[T]) ([]*meta.Item[T], error) {
	ctx, span := s.tracer.Start(ctx, s.inner.ID(),
		oteltrace.WithAttributes(
			attribute.String("stage.kind", s.inner.Kind()),
			attribute.Int("stage.item_count", len(items)),
		))
	defer span.End()

	out, err := s.inner.Execute(ctx, items)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}
