// Package assemble provides a worked-example General stage that wraps a
// list of entity-fragment items into one aggregate item — an
// EntitiesDescriptor assembly step left out of the core itself but
// useful to build on the core's own public seams (Stage, Item,
// ComponentInfo), the way a log processor exercises its dispatcher.
package assemble

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/stage"
)

// Combine merges the payloads of entity items into one aggregate
// payload. The resulting payload need not reuse any input payload's
// memory; Copyable semantics are the aggregator's problem, not
// assemble's.
type Combine[T meta.Copyable[T]] func(entities []T) (T, error)

// NewStage builds a General stage that replaces its entire input list
// with a single item carrying the combined payload. Every ItemID found
// on any input item is copied onto the aggregate (an aggregate is
// identified by the union of what it aggregates); ComponentInfo and
// status history of the fragments are not carried forward, since they
// describe processing of the fragment, not the aggregate. An aggregate
// that ends up with no ItemID at all (combine produced a payload from
// zero or from unidentified fragments) is assigned a fresh
// github.com/google/uuid value so downstream identification strategies
// always have something to label it with.
func NewStage[T meta.Copyable[T]](id string, combine Combine[T]) *stage.General[T] {
	return stage.NewGeneral[T](id, "stage.Assemble", func(ctx context.Context, items []*meta.Item[T]) ([]*meta.Item[T], error) {
		if len(items) == 0 {
			return items, nil
		}
		payloads := make([]T, len(items))
		for i, it := range items {
			payloads[i] = it.Payload()
		}
		combined, err := combine(payloads)
		if err != nil {
			return items, fmt.Errorf("assemble: combine: %w", err)
		}

		aggregate := meta.NewItem(combined)
		for _, it := range items {
			for _, id := range it.IDs() {
				aggregate.AddID(id)
			}
		}
		if len(aggregate.IDs()) == 0 {
			aggregate.AddID(meta.MustItemID(uuid.NewString()))
		}
		return []*meta.Item[T]{aggregate}, nil
	})
}
