package splitter

import (
	"github.com/cespare/xxhash/v2"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
)

// MergeStrategy combines a splitter's child pipeline outputs (sources, in
// child-index order) onto target. Implementations must be deterministic
// for deterministic inputs: they consume sources strictly in the order
// supplied, regardless of which child pipeline happened to finish first.
type MergeStrategy[T meta.Copyable[T]] interface {
	Merge(target []*meta.Item[T], sources [][]*meta.Item[T]) []*meta.Item[T]
}

// SimpleConcat appends each source to target in order. Duplicates are
// possible; this is the right choice when a splitter's children are known
// to produce disjoint item sets, or when dedup is handled elsewhere.
type SimpleConcat[T meta.Copyable[T]] struct{}

// Merge implements MergeStrategy.
func (SimpleConcat[T]) Merge(target []*meta.Item[T], sources [][]*meta.Item[T]) []*meta.Item[T] {
	out := append([]*meta.Item[T]{}, target...)
	for _, src := range sources {
		out = append(out, src...)
	}
	return out
}

// idSet is a small open membership set keyed by a fast 64-bit hash of the
// trimmed ItemID string, since the deduplicating merge is on the hot path
// of every splitter join and the set can grow to the size of a full
// metadata aggregate. Each hash bucket keeps the strings themselves, so
// membership is decided by string equality even when two IDs collide.
type idSet struct {
	seen map[uint64][]string
}

func newIDSet() *idSet { return &idSet{seen: make(map[uint64][]string)} }

func (s *idSet) has(v string) bool {
	for _, e := range s.seen[xxhash.Sum64String(v)] {
		if e == v {
			return true
		}
	}
	return false
}

func (s *idSet) add(v string) {
	if !s.has(v) {
		h := xxhash.Sum64String(v)
		s.seen[h] = append(s.seen[h], v)
	}
}

// DeduplicatingByID performs stable, order-preserving deduplication biased
// toward earlier sources:
//
//  1. Seed the membership set with every ItemID already present on an
//     item in target.
//  2. For each source, in order, for each item in that source, in order:
//     an item with no ItemIDs is always admitted; otherwise it is
//     admitted iff none of its ItemIDs are already in the set, and on
//     admission every one of its ItemIDs is added to the set.
type DeduplicatingByID[T meta.Copyable[T]] struct{}

// Merge implements MergeStrategy.
func (DeduplicatingByID[T]) Merge(target []*meta.Item[T], sources [][]*meta.Item[T]) []*meta.Item[T] {
	seen := newIDSet()
	for _, it := range target {
		for _, id := range it.IDs() {
			seen.add(id.Value())
		}
	}

	out := append([]*meta.Item[T]{}, target...)
	for _, src := range sources {
		for _, it := range src {
			ids := it.IDs()
			if len(ids) == 0 {
				out = append(out, it)
				continue
			}
			admit := true
			for _, id := range ids {
				if seen.has(id.Value()) {
					admit = false
					break
				}
			}
			if admit {
				out = append(out, it)
				for _, id := range ids {
					seen.add(id.Value())
				}
			}
		}
	}
	return out
}
