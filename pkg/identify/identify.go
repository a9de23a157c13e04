// Package identify provides ItemIdentificationStrategy implementations:
// human-readable labels for items, used in log lines and status messages.
package identify

import (
	"fmt"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
)

// DefaultPlaceholder is used when an item carries no usable identifying
// information.
const DefaultPlaceholder = "unidentified"

// Strategy computes a label for an item.
type Strategy[T meta.Copyable[T]] interface {
	Label(item *meta.Item[T]) string
}

// PartsFunc extracts the basic and optional extra components a Composite
// strategy renders. A nil basic means "no basic value available" (the
// placeholder is substituted); a nil extra means "omit the extra part".
type PartsFunc[T meta.Copyable[T]] func(item *meta.Item[T]) (basic *string, extra *string)

// Composite renders "basic" alone when extra is absent, or
// "basic (extra)" when both are present. The first-id strategy (below) is
// the degenerate case with no extra.
type Composite[T meta.Copyable[T]] struct {
	placeholder string
	parts       PartsFunc[T]
}

// NewComposite builds a Composite strategy. An empty placeholder defaults
// to DefaultPlaceholder.
func NewComposite[T meta.Copyable[T]](placeholder string, parts PartsFunc[T]) *Composite[T] {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	return &Composite[T]{placeholder: placeholder, parts: parts}
}

// Label implements Strategy.
func (c *Composite[T]) Label(item *meta.Item[T]) string {
	basic, extra := c.parts(item)
	b := c.placeholder
	if basic != nil && *basic != "" {
		b = *basic
	}
	if extra != nil && *extra != "" {
		return fmt.Sprintf("%s (%s)", b, *extra)
	}
	return b
}

// NewFirstID returns a strategy that labels an item with the first
// ItemID's value, falling back to placeholder (DefaultPlaceholder if
// empty) when the item has none.
func NewFirstID[T meta.Copyable[T]](placeholder string) *Composite[T] {
	return NewComposite[T](placeholder, func(item *meta.Item[T]) (*string, *string) {
		ids := item.IDs()
		if len(ids) == 0 {
			return nil, nil
		}
		v := ids[0].Value()
		return &v, nil
	})
}
