package signing

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/identify"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/stage"
)

// DurationObserver receives the wall-clock time spent signing one item.
// internal/metrics wires SigningDuration.Observe in here; NewExecStage
// itself stays free of any metrics import.
type DurationObserver func(time.Duration)

// NewExecStage builds the Stage this package's Stage[T] actually runs as
// in a pipeline: one Signer snapshot per Execute call, then every item
// signed independently and, since per-item work shares no mutable state
// outside the item, concurrently via errgroup. On success each
// item gets an InfoStatus recording the reference URI that was signed;
// on the first per-item failure the whole stage aborts. observe, if
// non-nil, is called once per item with the time spent in SignElement,
// win or lose.
func NewExecStage[T meta.Copyable[T]](id string, signingStage *Stage[T], identifier identify.Strategy[T], observe DurationObserver) *stage.General[T] {
	return stage.NewGeneral[T](id, "stage.Signing", func(ctx context.Context, items []*meta.Item[T]) ([]*meta.Item[T], error) {
		signer, err := NewSigner(signingStage)
		if err != nil {
			return items, err
		}

		group, _ := errgroup.WithContext(ctx)
		for _, it := range items {
			it := it
			group.Go(func() error {
				start := time.Now()
				sig, err := signer.SignElement(it.Payload())
				if observe != nil {
					observe(time.Since(start))
				}
				if err != nil {
					label := ""
					if identifier != nil {
						label = identifier.Label(it)
					}
					if label != "" {
						return fmt.Errorf("item %q: %w", label, err)
					}
					return err
				}
				it.Metadata().Add(meta.NewInfoStatus(id, fmt.Sprintf("signed reference %q", refOrWhole(sig.ReferenceURI))))
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return items, err
		}
		return items, nil
	})
}

func refOrWhole(uri string) string {
	if uri == "" {
		return "(whole document)"
	}
	return uri
}
