// Package splitter implements fan-out/fan-in: a Splitter stage copies its
// input to N independent child pipelines, runs them concurrently, and
// merges their outputs back into a single list via a
// pluggable MergeStrategy.
package splitter

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/component"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/stage"
)

// ChildObserver is called once per child, after it finishes, with its id
// and the wall-clock time spent in Execute. internal/metrics wires
// SplitterChildDuration.Observe in here; the package itself stays free of
// any metrics import.
type ChildObserver func(childID string, d time.Duration)

// CollectionFactory builds the initial (typically empty) collection each
// child pipeline's input is copied into. The default returns nil, i.e. an
// empty slice grown by append.
type CollectionFactory[T meta.Copyable[T]] func() []*meta.Item[T]

func defaultFactory[T meta.Copyable[T]]() []*meta.Item[T] { return nil }

// Splitter is a Stage that fans out to child pipelines and merges their
// results. It runs child pipelines concurrently using errgroup: all
// children are launched, the splitter waits for every one, and on the
// first child failure the shared context is cancelled so well-behaved
// children can stop early — but the splitter still waits for all of them
// before surfacing that first error.
type Splitter[T meta.Copyable[T]] struct {
	base           *component.Base
	children       []stage.Stage[T]
	merge          MergeStrategy[T]
	factory        CollectionFactory[T]
	startWithInput bool
	observe        ChildObserver
}

// Option configures a Splitter at construction time.
type Option[T meta.Copyable[T]] func(*Splitter[T])

// WithCollectionFactory overrides the default empty-slice factory used to
// build each child's input collection.
func WithCollectionFactory[T meta.Copyable[T]](f CollectionFactory[T]) Option[T] {
	return func(s *Splitter[T]) { s.factory = f }
}

// WithStartWithInput makes the merge target begin as a copy of the
// splitter's own input list instead of empty. Most pipelines leave this
// off, starting merge from an empty target.
func WithStartWithInput[T meta.Copyable[T]](v bool) Option[T] {
	return func(s *Splitter[T]) { s.startWithInput = v }
}

// WithChildObserver registers a ChildObserver invoked once per child
// after every Execute call, win or lose.
func WithChildObserver[T meta.Copyable[T]](o ChildObserver) Option[T] {
	return func(s *Splitter[T]) { s.observe = o }
}

// New constructs a Splitter stage with N child pipelines (N may be zero,
// in which case merge is invoked with no sources) and a merge strategy.
func New[T meta.Copyable[T]](id string, children []stage.Stage[T], merge MergeStrategy[T], opts ...Option[T]) *Splitter[T] {
	b := component.NewBase(true)
	_ = b.SetID(id)
	s := &Splitter[T]{base: b, children: children, merge: merge, factory: defaultFactory[T]}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Splitter[T]) ID() string    { return s.base.ID() }
func (s *Splitter[T]) Kind() string  { return "stage.Splitter" }

// Initialize initializes the splitter and then every child pipeline.
func (s *Splitter[T]) Initialize() error {
	if err := s.base.Initialize(); err != nil {
		return err
	}
	for _, c := range s.children {
		if err := c.Initialize(); err != nil {
			return err
		}
	}
	return nil
}

// Destroy destroys every child pipeline and then the splitter itself.
func (s *Splitter[T]) Destroy() {
	for _, c := range s.children {
		c.Destroy()
	}
	s.base.Destroy()
}

// Execute fans out items to every child, waits for all of them, and
// merges their results. Item copies handed to a child are independent of
// the originals and of every other child's copies: mutating one is
// never visible anywhere else.
func (s *Splitter[T]) Execute(ctx context.Context, items []*meta.Item[T]) ([]*meta.Item[T], error) {
	return stage.Bracket(s.base, s.Kind(), items, func(entry []*meta.Item[T]) (stage.RunResult[T], error) {
		n := len(s.children)
		childInputs := make([][]*meta.Item[T], n)
		for i := range childInputs {
			coll := s.factory()
			for _, it := range entry {
				coll = append(coll, it.Copy())
			}
			childInputs[i] = coll
		}

		results := make([][]*meta.Item[T], n)
		group, gctx := errgroup.WithContext(ctx)
		for i, child := range s.children {
			i, child := i, child
			group.Go(func() error {
				childStart := time.Now()
				out, err := child.Execute(gctx, childInputs[i])
				if s.observe != nil {
					s.observe(child.ID(), time.Since(childStart))
				}
				if err != nil {
					return err
				}
				results[i] = out
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			// The splitter's own input items were never mutated (only
			// deep copies were sent to children), so all of them remain
			// present.
			return stage.RunResult[T]{Items: entry}, err
		}

		var target []*meta.Item[T]
		if s.startWithInput {
			target = append(target, entry...)
		}
		merged := s.merge.Merge(target, results)
		return stage.RunResult[T]{Items: merged}, nil
	})
}
