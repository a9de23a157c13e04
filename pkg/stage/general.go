package stage

import (
	"context"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/component"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
)

// GeneralFunc is the full-access per-run callback for a General stage: it
// may add, remove, reorder, or replace items, returning the list that
// should flow downstream. If it returns an error, the returned items slice
// (which may be nil or partial) is taken as "items still present" for the
// purpose of ErrorStatus recording — items the function had already
// dropped before failing do not receive one.
type GeneralFunc[T meta.Copyable[T]] func(ctx context.Context, items []*meta.Item[T]) ([]*meta.Item[T], error)

// General wraps a GeneralFunc as a Stage, handling lifecycle and the
// ComponentInfo/ErrorStatus bracket.
type General[T meta.Copyable[T]] struct {
	base *component.Base
	kind string
	fn   GeneralFunc[T]
}

// NewGeneral constructs a General stage with the given id and callback.
// kind defaults to "stage.General" when empty.
func NewGeneral[T meta.Copyable[T]](id string, kind string, fn GeneralFunc[T]) *General[T] {
	if kind == "" {
		kind = "stage.General"
	}
	b := component.NewBase(true)
	_ = b.SetID(id)
	return &General[T]{base: b, kind: kind, fn: fn}
}

func (g *General[T]) ID() string       { return g.base.ID() }
func (g *General[T]) Kind() string     { return g.kind }
func (g *General[T]) Initialize() error { return g.base.Initialize() }
func (g *General[T]) Destroy()         { g.base.Destroy() }

// Execute runs the wrapped GeneralFunc inside the standard bracket.
func (g *General[T]) Execute(ctx context.Context, items []*meta.Item[T]) ([]*meta.Item[T], error) {
	return Bracket(g.base, g.kind, items, func(entry []*meta.Item[T]) (RunResult[T], error) {
		out, err := g.fn(ctx, entry)
		if err != nil {
			return RunResult[T]{Items: out}, err
		}
		return RunResult[T]{Items: out}, nil
	})
}
