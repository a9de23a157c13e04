package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/xmlpayload"
)

func writeXML(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoadDir_ParsesEntityIDFromAttribute(t *testing.T) {
	dir := t.TempDir()
	writeXML(t, dir, "b.xml", `<EntityDescriptor entityID="urn:b"><Extensions/></EntityDescriptor>`)
	writeXML(t, dir, "a.xml", `<EntityDescriptor entityID="urn:a"/>`)

	items, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "EntityDescriptor", items[0].Payload().Name)
	assert.Equal(t, []string{"urn:a"}, idValues(items[0]))
	assert.Equal(t, []string{"urn:b"}, idValues(items[1]))
	assert.Len(t, items[1].Payload().Children, 1)
}

func TestLoadDir_FallsBackToFileNameWhenNoEntityID(t *testing.T) {
	dir := t.TempDir()
	writeXML(t, dir, "anonymous.xml", `<EntityDescriptor/>`)

	items, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"anonymous.xml"}, idValues(items[0]))
}

func TestLoadDir_IgnoresNonXMLFiles(t *testing.T) {
	dir := t.TempDir()
	writeXML(t, dir, "a.xml", `<EntityDescriptor entityID="urn:a"/>`)
	writeXML(t, dir, "readme.txt", "not xml")

	items, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestLoadDir_MissingDirectoryIsAnError(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestNewLoaderStage_IgnoresInputAndLoadsDir(t *testing.T) {
	dir := t.TempDir()
	writeXML(t, dir, "a.xml", `<EntityDescriptor entityID="urn:a"/>`)

	s := NewLoaderStage("stage.loader", dir)
	require.NoError(t, s.Initialize())

	ignored := []*meta.Item[*xmlpayload.Element]{meta.NewItem(xmlpayload.NewElement("ignored"))}
	out, err := s.Execute(context.Background(), ignored)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"urn:a"}, idValues(out[0]))
}

func TestNewPassthroughStage_ReturnsInputUnchanged(t *testing.T) {
	s := NewPassthroughStage("stage.passthrough")
	require.NoError(t, s.Initialize())

	items := []*meta.Item[*xmlpayload.Element]{meta.NewItem(xmlpayload.NewElement("e"))}
	out, err := s.Execute(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, items, out)
}

func idValues(item *meta.Item[*xmlpayload.Element]) []string {
	out := make([]string, len(item.IDs()))
	for i, id := range item.IDs() {
		out[i] = id.Value()
	}
	return out
}
