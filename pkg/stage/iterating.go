package stage

import (
	"context"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/component"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/identify"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
)

// IteratingFunc is called once per item, in list order. Returning an error
// stops the stage: items after the failing one are never visited.
type IteratingFunc[T meta.Copyable[T]] func(ctx context.Context, item *meta.Item[T]) error

// Iterating wraps an IteratingFunc as a Stage. No items are added or
// removed; it is a convenience over General for the common "transform
// each item in place" shape.
type Iterating[T meta.Copyable[T]] struct {
	base     *component.Base
	kind     string
	fn       IteratingFunc[T]
	identify identify.Strategy[T]
}

// NewIterating constructs an Iterating stage. identifier is used only to
// label the item being processed when a failure needs to report which one
// it was; it may be nil, in which case ProcessingError.ItemIdent is left
// empty.
func NewIterating[T meta.Copyable[T]](id string, kind string, fn IteratingFunc[T], identifier identify.Strategy[T]) *Iterating[T] {
	if kind == "" {
		kind = "stage.Iterating"
	}
	b := component.NewBase(true)
	_ = b.SetID(id)
	return &Iterating[T]{base: b, kind: kind, fn: fn, identify: identifier}
}

func (s *Iterating[T]) ID() string        { return s.base.ID() }
func (s *Iterating[T]) Kind() string      { return s.kind }
func (s *Iterating[T]) Initialize() error { return s.base.Initialize() }
func (s *Iterating[T]) Destroy()          { s.base.Destroy() }

func (s *Iterating[T]) Execute(ctx context.Context, items []*meta.Item[T]) ([]*meta.Item[T], error) {
	return Bracket(s.base, s.kind, items, func(entry []*meta.Item[T]) (RunResult[T], error) {
		for _, it := range entry {
			if err := s.fn(ctx, it); err != nil {
				ident := ""
				if s.identify != nil {
					ident = s.identify.Label(it)
				}
				// Nothing has been removed by this shape; every item,
				// including the ones never reached, is still "present".
				return RunResult[T]{Items: entry, FailedOn: ident}, err
			}
		}
		return RunResult[T]{Items: entry}, nil
	})
}
