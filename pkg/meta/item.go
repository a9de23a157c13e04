package meta

// Copyable is satisfied by any payload type that knows how to produce an
// independent deep copy of itself. Item[T] requires its payload type to
// implement Copyable[T] so that Item.Copy() can honor a fan-out's
// deep-copy requirement without the core needing to know anything about
// the concrete payload shape (XML element tree, JSON document, or
// anything else a collaborator plugs in).
type Copyable[T any] interface {
	DeepCopy() T
}

// Item is a mutable container of one payload plus an ItemMetadata
// multimap. Items are not required to be thread-safe for mutation;
// concurrent stages are expected to operate on disjoint copies (see
// pkg/splitter).
type Item[T Copyable[T]] struct {
	payload  T
	metadata *Multimap
}

// NewItem wraps a payload in a fresh Item with empty metadata.
func NewItem[T Copyable[T]](payload T) *Item[T] {
	return &Item[T]{payload: payload, metadata: NewMultimap()}
}

// Payload returns the item's current payload.
func (i *Item[T]) Payload() T { return i.payload }

// SetPayload replaces the item's payload in place. The previous payload is
// discarded; metadata is untouched.
func (i *Item[T]) SetPayload(p T) { i.payload = p }

// Metadata returns the item's metadata multimap. Callers use meta.All and
// the typed constructors in this package to read and write it.
func (i *Item[T]) Metadata() *Multimap { return i.metadata }

// Copy produces an independent item: the payload is deep-copied via the
// payload type's DeepCopy method, and the metadata multimap is copied
// (its structure only — the immutable values themselves are shared by
// reference with the original).
func (i *Item[T]) Copy() *Item[T] {
	return &Item[T]{
		payload:  i.payload.DeepCopy(),
		metadata: i.metadata.Copy(),
	}
}

// IDs is a convenience for meta.All[ItemID](item.Metadata()).
func (i *Item[T]) IDs() []ItemID {
	return All[ItemID](i.metadata)
}

// AddID attaches one more ItemID to the item.
func (i *Item[T]) AddID(id ItemID) {
	i.metadata.Add(id)
}
