// Package source is a worked-example loader that turns a directory of
// XML files on disk into a list of xmlpayload.Element items, giving the
// command-line driver something concrete to feed into a pipeline. The
// core itself never reads or parses XML; this is glue code sitting
// alongside stages/assemble and stages/filter.
package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/stage"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/xmlpayload"
)

// node mirrors an arbitrary XML element well enough to rebuild an
// xmlpayload.Element tree from encoding/xml's generic decode target.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []node     `xml:",any"`
}

func (n node) toElement() *xmlpayload.Element {
	el := xmlpayload.NewElement(n.XMLName.Local)
	el.Text = n.Content
	for _, a := range n.Attrs {
		el.SetAttr(a.Name.Local, a.Value)
	}
	for _, c := range n.Children {
		el.AddChild(c.toElement())
	}
	return el
}

// LoadDir parses every *.xml file directly inside dir (non-recursive,
// entries sorted by name for reproducible runs) into one item per file.
// An item's id comes from its root element's entityID attribute when
// present, falling back to the file's base name.
func LoadDir(dir string) ([]*meta.Item[*xmlpayload.Element], error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("source: read dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".xml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	items := make([]*meta.Item[*xmlpayload.Element], 0, len(names))
	for _, name := range names {
		item, err := loadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("source: %s: %w", name, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func loadFile(path string) (*meta.Item[*xmlpayload.Element], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var n node
	if err := xml.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}

	el := n.toElement()
	item := meta.NewItem(el)

	idValue := filepath.Base(path)
	if entityID, ok := el.Attr("entityID"); ok && entityID != "" {
		idValue = entityID
	}
	id, err := meta.NewItemID(idValue)
	if err != nil {
		return nil, fmt.Errorf("build item id: %w", err)
	}
	item.AddID(id)
	return item, nil
}

// NewLoaderStage builds a General stage that ignores whatever items it is
// given and returns LoadDir(dir) instead. Fanning a pipeline's current
// item list out to one of these per additional source directory, via
// pkg/splitter, is how the aggregator merges metadata gathered from
// several independent directories into a single run.
func NewLoaderStage(id, dir string) *stage.General[*xmlpayload.Element] {
	return stage.NewGeneral[*xmlpayload.Element](id, "stage.SourceLoader", func(ctx context.Context, _ []*meta.Item[*xmlpayload.Element]) ([]*meta.Item[*xmlpayload.Element], error) {
		return LoadDir(dir)
	})
}

// NewPassthroughStage builds a General stage that returns its input list
// unchanged. Used as the splitter child that carries forward the items
// already loaded from the primary source directory, alongside loader
// children for any additional directories.
func NewPassthroughStage(id string) *stage.General[*xmlpayload.Element] {
	return stage.NewGeneral[*xmlpayload.Element](id, "stage.Passthrough", func(ctx context.Context, items []*meta.Item[*xmlpayload.Element]) ([]*meta.Item[*xmlpayload.Element], error) {
		return items, nil
	})
}
