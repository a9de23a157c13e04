package splitter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/stage"
)

// TestMain guards against leaked goroutines from the errgroup-based fan-out
// under test: every child launched by Execute must return before the test
// that launched it does.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testPayload struct{ v string }

func (p testPayload) DeepCopy() testPayload { return testPayload{v: p.v} }

func newItem(id, v string) *meta.Item[testPayload] {
	it := meta.NewItem(testPayload{v: v})
	if id != "" {
		it.AddID(meta.MustItemID(id))
	}
	return it
}

// mutatingChild appends suffix to every item's payload it sees, letting
// tests detect whether copies leaked across children.
func mutatingChild(id, suffix string) *stage.Iterating[testPayload] {
	return stage.NewIterating[testPayload](id, "", func(ctx context.Context, item *meta.Item[testPayload]) error {
		item.SetPayload(testPayload{v: item.Payload().v + suffix})
		return nil
	}, nil)
}

func TestDeduplicatingByID_MergeExactSequence(t *testing.T) {
	target := []*meta.Item[testPayload]{newItem("x", "A")}
	sources := [][]*meta.Item[testPayload]{
		{newItem("x", "B")},
		{newItem("y", "C")},
		{newItem("", "D")},
		{newItem("y", "E")},
	}

	out := DeduplicatingByID[testPayload]{}.Merge(target, sources)

	require.Len(t, out, 3)
	assert.Equal(t, "A", out[0].Payload().v)
	assert.Equal(t, "C", out[1].Payload().v)
	assert.Equal(t, "D", out[2].Payload().v)
}

func TestSimpleConcat_MergeExactSequence(t *testing.T) {
	target := []*meta.Item[testPayload]{newItem("x", "A")}
	sources := [][]*meta.Item[testPayload]{
		{newItem("x", "B")},
		{newItem("y", "C")},
		{newItem("", "D")},
		{newItem("y", "E")},
	}

	out := SimpleConcat[testPayload]{}.Merge(target, sources)

	require.Len(t, out, 5)
	var vs []string
	for _, it := range out {
		vs = append(vs, it.Payload().v)
	}
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, vs)
}

func TestSplitter_FanOutIsolation(t *testing.T) {
	childA := mutatingChild("A", "-a")
	childB := mutatingChild("B", "-b")
	sp := New[testPayload]("split", []stage.Stage[testPayload]{childA, childB}, SimpleConcat[testPayload]{})
	require.NoError(t, sp.Initialize())

	original := newItem("", "x")
	out, err := sp.Execute(context.Background(), []*meta.Item[testPayload]{original})
	require.NoError(t, err)

	assert.Equal(t, "x", original.Payload().v, "the original pre-merge item must be untouched")

	var vs []string
	for _, it := range out {
		vs = append(vs, it.Payload().v)
	}
	assert.ElementsMatch(t, []string{"x-a", "x-b"}, vs)
}

// slowChild sleeps for delay and then appends "-"+id to every item's
// payload, so a test can tell which child produced an output item and
// assert the merge reflects child order rather than completion order.
func slowChild(id string, delay time.Duration) *stage.General[testPayload] {
	return stage.NewGeneral[testPayload](id, "", func(ctx context.Context, items []*meta.Item[testPayload]) ([]*meta.Item[testPayload], error) {
		time.Sleep(delay)
		for _, it := range items {
			it.SetPayload(testPayload{v: it.Payload().v + "-" + id})
		}
		return items, nil
	})
}

func TestSplitter_MergeOrderIsChildOrderNotCompletionOrder(t *testing.T) {
	slow := slowChild("slow", 30*time.Millisecond)
	fast := slowChild("fast", 0)
	sp := New[testPayload]("split", []stage.Stage[testPayload]{slow, fast}, SimpleConcat[testPayload]{})
	require.NoError(t, sp.Initialize())

	out, err := sp.Execute(context.Background(), []*meta.Item[testPayload]{newItem("", "x")})
	require.NoError(t, err)
	require.Len(t, out, 2)
	// Each child tags its copy of the single input item, so by child
	// order the first output item comes from "slow" and the second from
	// "fast", even though "fast" finishes first.
	assert.Equal(t, "x-slow", out[0].Payload().v)
	assert.Equal(t, "x-fast", out[1].Payload().v)
}

func TestSplitter_ChildFailurePropagatesAndWaitsForSiblings(t *testing.T) {
	var sawFast int32
	var mu sync.Mutex
	failing := stage.NewGeneral[testPayload]("boomer", "", func(ctx context.Context, items []*meta.Item[testPayload]) ([]*meta.Item[testPayload], error) {
		return nil, errors.New("boom")
	})
	fast := stage.NewGeneral[testPayload]("fast", "", func(ctx context.Context, items []*meta.Item[testPayload]) ([]*meta.Item[testPayload], error) {
		mu.Lock()
		sawFast++
		mu.Unlock()
		return items, nil
	})
	sp := New[testPayload]("split", []stage.Stage[testPayload]{failing, fast}, SimpleConcat[testPayload]{})
	require.NoError(t, sp.Initialize())

	_, err := sp.Execute(context.Background(), []*meta.Item[testPayload]{newItem("", "x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int32(1), sawFast, "sibling child still runs to completion")
}

func TestSplitter_EndToEndDedupViaPipeline(t *testing.T) {
	keepAll := func(id string) *stage.Filtering[testPayload] {
		return stage.NewFiltering[testPayload](id, "", func(ctx context.Context, item *meta.Item[testPayload]) (bool, error) {
			return true, nil
		}, nil)
	}
	childX := keepAll("X")
	childY := keepAll("Y")
	sp := New[testPayload]("split", []stage.Stage[testPayload]{childX, childY}, DeduplicatingByID[testPayload]{})
	require.NoError(t, sp.Initialize())

	shared := newItem("shared", "one")
	out, err := sp.Execute(context.Background(), []*meta.Item[testPayload]{shared})
	require.NoError(t, err)
	assert.Len(t, out, 1, "both children copy the same ID, dedup keeps only the first")
}

func TestSplitter_ChildObserverSeesEveryChild(t *testing.T) {
	childA := slowChild("A", 0)
	childB := slowChild("B", 0)
	var mu sync.Mutex
	seen := map[string]bool{}
	sp := New[testPayload]("split", []stage.Stage[testPayload]{childA, childB}, SimpleConcat[testPayload]{},
		WithChildObserver[testPayload](func(childID string, d time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			seen[childID] = true
		}))
	require.NoError(t, sp.Initialize())

	_, err := sp.Execute(context.Background(), []*meta.Item[testPayload]{newItem("", "x")})
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]bool{"A": true, "B": true}, seen)
}
