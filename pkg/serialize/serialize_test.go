package serialize

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/stage"
)

type testPayload struct{ v string }

func (p testPayload) DeepCopy() testPayload { return testPayload{v: p.v} }

func TestFileStrategy_NamesDestinationFromPrefixSuffixAndItemID(t *testing.T) {
	dir := t.TempDir()
	strat, err := NewFileStrategy[testPayload](dir, "p_", ".xml", Identity)
	require.NoError(t, err)

	item := meta.NewItem(testPayload{v: "hello"})
	item.AddID(meta.MustItemID("foo"))

	dest, err := strat.GetDestination(item)
	require.NoError(t, err)

	w, err := dest.OpenStream()
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, dest.Close())

	want := filepath.Join(dir, "p_foo.xml")
	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestFileStrategy_NoItemIDIsAnError(t *testing.T) {
	dir := t.TempDir()
	strat, err := NewFileStrategy[testPayload](dir, "p_", ".xml", Identity)
	require.NoError(t, err)

	item := meta.NewItem(testPayload{v: "hello"})
	_, err = strat.GetDestination(item)
	require.ErrorIs(t, err, ErrNoItemID)
}

func TestNewStage_MissingItemIDBecomesStageProcessingError(t *testing.T) {
	dir := t.TempDir()
	strat, err := NewFileStrategy[testPayload](dir, "", "", Identity)
	require.NoError(t, err)

	itemSerializer := ItemSerializerFunc[testPayload](func(item *meta.Item[testPayload], w io.Writer) error {
		_, err := w.Write([]byte(item.Payload().v))
		return err
	})
	s := NewStage[testPayload]("publish", strat, itemSerializer, nil)
	require.NoError(t, s.Initialize())

	item := meta.NewItem(testPayload{v: "x"})
	_, err = s.Execute(context.Background(), []*meta.Item[testPayload]{item})
	require.Error(t, err)
	var pe *stage.ProcessingError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "publish", pe.StageID)
}

func TestConcatenating_WritesEachItemInOrder(t *testing.T) {
	itemSerializer := ItemSerializerFunc[testPayload](func(item *meta.Item[testPayload], w io.Writer) error {
		_, err := w.Write([]byte(item.Payload().v + ";"))
		return err
	})
	coll := Concatenating[testPayload]{Item: itemSerializer}
	items := []*meta.Item[testPayload]{
		meta.NewItem(testPayload{v: "a"}),
		meta.NewItem(testPayload{v: "b"}),
	}
	var buf bytes.Buffer
	require.NoError(t, coll.Serialize(items, &buf))
	assert.Equal(t, "a;b;", buf.String())
}
