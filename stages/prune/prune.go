// Package prune is a worked-example validating stage built directly on
// pkg/traversal: it walks an item's element tree pre-order and removes
// every child element whose name is on a configured blocklist, the
// generic removal/tag use case the traversal substrate exists for.
package prune

import (
	"context"
	"fmt"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/identify"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/stage"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/traversal"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/validate"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/xmlpayload"
)

// NewStage builds an Iterating stage that removes any child element
// named in blockedNames from wherever it appears in an item's tree.
// Removal is queued on the traversal Context instead of mutating a
// parent's children while walk is still descending into them; the queue
// drains once Run finishes, via Context.End. An item that had anything
// pruned gets a WarningStatus naming the count.
func NewStage(id string, blockedNames []string, identifier identify.Strategy[*xmlpayload.Element]) *stage.Iterating[*xmlpayload.Element] {
	blocked := make(map[string]bool, len(blockedNames))
	for _, n := range blockedNames {
		blocked[n] = true
	}

	return stage.NewIterating[*xmlpayload.Element](id, "stage.Prune", func(ctx context.Context, item *meta.Item[*xmlpayload.Element]) error {
		removed := 0
		trav := traversal.New(nil, nil, visitor(blocked, &removed))
		trav.Run(xmlpayload.NewTree(item.Payload()))

		if removed > 0 {
			validate.RecordWarning(item, id, fmt.Sprintf("pruned %d disallowed element(s)", removed))
		}
		return nil
	}, identifier)
}

// visitor inspects a node's own children (rather than the node itself)
// so it can queue their removal from the right parent slice. removed is
// shared across the whole walk of one item.
func visitor(blocked map[string]bool, removed *int) traversal.Visit {
	return func(n traversal.Node, ctx *traversal.Context) {
		el, ok := n.(*xmlpayload.Element)
		if !ok {
			return
		}
		for _, child := range el.Children {
			if !blocked[child.Name] {
				continue
			}
			parent, doomed := el, child
			ctx.Defer(func() { parent.Children = removeChild(parent.Children, doomed) })
			*removed++
		}
	}
}

func removeChild(children []*xmlpayload.Element, target *xmlpayload.Element) []*xmlpayload.Element {
	out := make([]*xmlpayload.Element, 0, len(children))
	for _, c := range children {
		if c != target {
			out = append(out, c)
		}
	}
	return out
}
