package serialize

import (
	"context"
	"errors"
	"fmt"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/identify"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/stage"
)

// NewStage builds an Iterating stage that, for each item, computes a
// Destination via strategy, opens its stream, serializes the item with
// item, and closes the destination — converting open/write/close failures
// into a StageProcessingError decorated with the item's identifier.
func NewStage[T meta.Copyable[T]](id string, strategy DestinationStrategy[T], item ItemSerializer[T], identifier identify.Strategy[T]) *stage.Iterating[T] {
	return stage.NewIterating[T](id, "stage.Serializing", func(ctx context.Context, it *meta.Item[T]) error {
		dest, err := strategy.GetDestination(it)
		if err != nil {
			if errors.Is(err, ErrNoItemID) {
				return fmt.Errorf("serialize: cannot choose a destination: %w", err)
			}
			return err
		}
		w, err := dest.OpenStream()
		if err != nil {
			return err
		}
		if err := item.Serialize(it, w); err != nil {
			_ = dest.Close()
			return err
		}
		return dest.Close()
	}, identifier)
}
