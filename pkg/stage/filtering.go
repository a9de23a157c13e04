package stage

import (
	"context"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/component"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/identify"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
)

// FilteringFunc decides whether an item survives. Returning (false, nil)
// removes the item without error; returning a non-nil error aborts the
// stage the same way Iterating does.
type FilteringFunc[T meta.Copyable[T]] func(ctx context.Context, item *meta.Item[T]) (keep bool, err error)

// Filtering wraps a FilteringFunc as a Stage.
type Filtering[T meta.Copyable[T]] struct {
	base     *component.Base
	kind     string
	fn       FilteringFunc[T]
	identify identify.Strategy[T]
}

// NewFiltering constructs a Filtering stage.
func NewFiltering[T meta.Copyable[T]](id string, kind string, fn FilteringFunc[T], identifier identify.Strategy[T]) *Filtering[T] {
	if kind == "" {
		kind = "stage.Filtering"
	}
	b := component.NewBase(true)
	_ = b.SetID(id)
	return &Filtering[T]{base: b, kind: kind, fn: fn, identify: identifier}
}

func (s *Filtering[T]) ID() string        { return s.base.ID() }
func (s *Filtering[T]) Kind() string      { return s.kind }
func (s *Filtering[T]) Initialize() error { return s.base.Initialize() }
func (s *Filtering[T]) Destroy()          { s.base.Destroy() }

func (s *Filtering[T]) Execute(ctx context.Context, items []*meta.Item[T]) ([]*meta.Item[T], error) {
	return Bracket(s.base, s.kind, items, func(entry []*meta.Item[T]) (RunResult[T], error) {
		kept := make([]*meta.Item[T], 0, len(entry))
		for _, it := range entry {
			keep, err := s.fn(ctx, it)
			if err != nil {
				ident := ""
				if s.identify != nil {
					ident = s.identify.Label(it)
				}
				// kept so far, the item that failed, and every item not
				// yet visited are still present; anything already
				// dropped is not.
				stillPresent := append(append(append([]*meta.Item[T]{}, kept...), it), remaining(entry, it)...)
				return RunResult[T]{Items: stillPresent, FailedOn: ident}, err
			}
			if keep {
				kept = append(kept, it)
			}
		}
		return RunResult[T]{Items: kept}, nil
	})
}

// remaining returns the items in entry strictly after the one matching
// cur (by pointer identity), preserving order.
func remaining[T meta.Copyable[T]](entry []*meta.Item[T], cur *meta.Item[T]) []*meta.Item[T] {
	for i, it := range entry {
		if it == cur {
			if i+1 >= len(entry) {
				return nil
			}
			return entry[i+1:]
		}
	}
	return nil
}
