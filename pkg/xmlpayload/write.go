package xmlpayload

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
)

// WriteTo renders e and its descendants as XML text, attributes sorted by
// name for deterministic output.
func (e *Element) WriteTo(w io.Writer) error {
	return writeElement(w, e)
}

func writeElement(w io.Writer, e *Element) error {
	names := make([]string, 0, len(e.Attrs))
	for name := range e.Attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	if _, err := fmt.Fprintf(w, "<%s", e.Name); err != nil {
		return err
	}
	for _, name := range names {
		if _, err := fmt.Fprintf(w, ` %s=%q`, name, e.Attrs[name]); err != nil {
			return err
		}
	}

	if e.Text == "" && len(e.Children) == 0 {
		_, err := fmt.Fprint(w, "/>")
		return err
	}

	if _, err := fmt.Fprint(w, ">"); err != nil {
		return err
	}
	if e.Text != "" {
		if _, err := fmt.Fprint(w, e.Text); err != nil {
			return err
		}
	}
	for _, c := range e.Children {
		if err := writeElement(w, c); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "</%s>", e.Name)
	return err
}

// Canonicalize renders e deterministically (sorted attributes, stable
// child order) for use as a pkg/signing.Config.Canonicalize function.
// It is not a real XML C14N implementation, only a stand-in with the
// one property signing actually depends on: the same tree always
// produces the same bytes.
func Canonicalize(e *Element) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// IDAttribute reads e's "ID" attribute, the conventional signable-id
// attribute name, for use as a pkg/signing.Config.IDAttribute function.
func IDAttribute(e *Element) (string, bool) {
	return e.Attr("ID")
}

// Serializer adapts WriteTo to serialize.ItemSerializer[*Element].
type Serializer struct{}

// Serialize implements serialize.ItemSerializer.
func (Serializer) Serialize(item *meta.Item[*Element], w io.Writer) error {
	return item.Payload().WriteTo(w)
}
