package metrics

import (
	"context"
	"time"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/stage"
)

// Instrumented wraps a Stage so every Execute call records
// ItemsProcessedTotal, ItemsFailedTotal, and StageDuration under the
// given pipeline name, the way a dispatcher records per-worker metrics
// around each batch it processes.
type Instrumented[T meta.Copyable[T]] struct {
	inner    stage.Stage[T]
	pipeline string
}

// Instrument wraps inner for metrics recording under pipeline.
func Instrument[T meta.Copyable[T]](pipeline string, inner stage.Stage[T]) *Instrumented[T] {
	return &Instrumented[T]{inner: inner, pipeline: pipeline}
}

func (s *Instrumented[T]) ID() string        { return s.inner.ID() }
func (s *Instrumented[T]) Kind() string      { return s.inner.Kind() }
func (s *Instrumented[T]) Initialize() error { return s.inner.Initialize() }
func (s *Instrumented[T]) Destroy()          { s.inner.Destroy() }

func (s *Instrumented[T]) Execute(ctx context.Context, items []*meta.Item[T]) ([]*meta.Item[T], error) {
	start := time.Now()
	ItemsProcessedTotal.WithLabelValues(s.pipeline, s.inner.ID(), s.inner.Kind()).Add(float64(len(items)))

	out, err := s.inner.Execute(ctx, items)

	StageDuration.WithLabelValues(s.pipeline, s.inner.ID(), s.inner.Kind()).Observe(time.Since(start).Seconds())
	if err != nil {
		ItemsFailedTotal.WithLabelValues(s.pipeline, s.inner.ID(), s.inner.Kind()).Inc()
	}
	return out, err
}
