// Package meta defines the Item/ItemMetadata data model that every stage in
// the aggregator reads and writes: a payload-carrying Item, a type-indexed
// multimap of immutable side-channel facts attached to it (ItemMetadata),
// the status taxonomy stages use to record findings, item identifiers, and
// the timing record stages attach on entry and exit.
//
// None of the types here know anything about XML or SAML; they are the
// generic substrate the stage/pipeline framework and the XML-specific
// stages are both built on.
package meta

import (
	"reflect"
	"sync"
)

// ItemMetadata is the marker interface for anything that can be attached to
// an Item's metadata multimap. Values are immutable once attached — with
// the sole, deliberate exception of ComponentInfo's completion stamp, which
// has to follow a stage's entry/exit bracket (see ComponentInfo for why).
//
// The interface is unexported-method sealed: only types declared in this
// package (and generated via embedding metadataMarker) satisfy it, so
// callers cannot accidentally attach an arbitrary value and bypass the
// known-kinds typed constructors.
type ItemMetadata interface {
	isItemMetadata()
}

type metadataMarker struct{}

func (metadataMarker) isItemMetadata() {}

// Multimap is an ordered, type-indexed collection of ItemMetadata values.
// Values are never removed and never overwritten in place — status
// findings accumulate monotonically (see pkg/meta status types) and every
// other kind is simply appended. Multimap is safe for concurrent readers;
// writes are expected from the single stage currently holding the owning
// Item at any given time.
type Multimap struct {
	mu     sync.RWMutex
	order  []ItemMetadata
	byType map[reflect.Type][]ItemMetadata
}

// NewMultimap returns an empty Multimap.
func NewMultimap() *Multimap {
	return &Multimap{byType: make(map[reflect.Type][]ItemMetadata)}
}

// Add appends a value. A value is never stored twice under the same
// concrete type key: each call to Add appends exactly one entry, so
// callers that want "at most once" semantics for a kind must check first
// with All or a typed accessor.
func (m *Multimap) Add(v ItemMetadata) {
	if v == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t := reflect.TypeOf(v)
	m.byType[t] = append(m.byType[t], v)
	m.order = append(m.order, v)
}

// All returns every stored value assignable to K, in insertion order. When
// K is a concrete metadata type (e.g. ItemId) this is an O(1) index
// lookup. When K is an interface supertype (e.g. StatusMetadata) every
// stored value is checked against it, so that a value's presence under its
// concrete type is sufficient to find it by any of K's ancestors.
func All[K ItemMetadata](m *Multimap) []K {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kt := reflect.TypeOf((*K)(nil)).Elem()
	if kt.Kind() != reflect.Interface {
		vals := m.byType[kt]
		out := make([]K, 0, len(vals))
		for _, v := range vals {
			out = append(out, v.(K))
		}
		return out
	}

	var out []K
	for _, v := range m.order {
		if k, ok := v.(K); ok {
			out = append(out, k)
		}
	}
	return out
}

// Len returns the total number of metadata values of any kind.
func (m *Multimap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Copy returns an independent Multimap containing the same (identity-equal)
// immutable values as m, in the same order. Mutating the copy's structure
// (adding new values) never affects m, and vice versa.
func (m *Multimap) Copy() *Multimap {
	m.mu.RLock()
	defer m.mu.RUnlock()

	nm := &Multimap{
		order:  append([]ItemMetadata(nil), m.order...),
		byType: make(map[reflect.Type][]ItemMetadata, len(m.byType)),
	}
	for t, vals := range m.byType {
		nm.byType[t] = append([]ItemMetadata(nil), vals...)
	}
	return nm
}
