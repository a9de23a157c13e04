package assemble

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
)

type fragment struct{ entityID string }

func (f fragment) DeepCopy() fragment { return f }

type bundle struct{ entityIDs []string }

func (b bundle) DeepCopy() bundle {
	cp := make([]string, len(b.entityIDs))
	copy(cp, b.entityIDs)
	return bundle{entityIDs: cp}
}

func combineFragments(entities []fragment) (bundle, error) {
	out := bundle{}
	for _, e := range entities {
		out.entityIDs = append(out.entityIDs, e.entityID)
	}
	return out, nil
}

func TestNewStage_EmptyInputIsNoOp(t *testing.T) {
	s := NewStage[bundle]("assemble", func(entities []bundle) (bundle, error) {
		t.Fatal("combine should not be called on empty input")
		return bundle{}, nil
	})
	require.NoError(t, s.Initialize())
	defer s.Destroy()

	out, err := s.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestNewStage_CombineErrorKeepsItemsAndWraps(t *testing.T) {
	boom := errors.New("boom")
	s := NewStage[fragment]("assemble", func(entities []fragment) (fragment, error) {
		return fragment{}, boom
	})
	require.NoError(t, s.Initialize())
	defer s.Destroy()

	items := []*meta.Item[fragment]{meta.NewItem(fragment{entityID: "urn:a"})}
	out, err := s.Execute(context.Background(), items)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, out)
	assert.Len(t, meta.All[meta.ErrorStatus](items[0].Metadata()), 1, "the input item is still present and gets an ErrorStatus")
}

func TestNewStage_AggregateCarriesUnionOfInputIDs(t *testing.T) {
	idStage := NewStage[fragment]("assemble", func(entities []fragment) (fragment, error) {
		combined, err := combineFragments(entities)
		if err != nil {
			return fragment{}, err
		}
		return fragment{entityID: "aggregate:" + combined.entityIDs[0] + "+" + combined.entityIDs[1]}, nil
	})
	require.NoError(t, idStage.Initialize())
	defer idStage.Destroy()

	a := meta.NewItem(fragment{entityID: "urn:a"})
	a.AddID(meta.MustItemID("urn:a"))
	b := meta.NewItem(fragment{entityID: "urn:b"})
	b.AddID(meta.MustItemID("urn:b"))

	out, err := idStage.Execute(context.Background(), []*meta.Item[fragment]{a, b})
	require.NoError(t, err)
	require.Len(t, out, 1)

	var values []string
	for _, id := range out[0].IDs() {
		values = append(values, id.Value())
	}
	assert.ElementsMatch(t, []string{"urn:a", "urn:b"}, values)
	assert.Equal(t, "aggregate:urn:a+urn:b", out[0].Payload().entityID)
}
