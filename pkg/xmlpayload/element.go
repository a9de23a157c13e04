// Package xmlpayload is a minimal worked example of an external "XML
// collaborator": a DOM-like element tree that can stand in for a payload
// type T throughout pkg/meta, pkg/stage, pkg/traversal and friends. The
// core never parses or serializes XML itself; this package only supplies
// a concrete Copyable tree shape good enough to exercise and test the
// generic machinery end to end.
package xmlpayload

import "github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/traversal"

// Element is a simplified XML element: a name, an attribute map (Go map,
// unordered), text content, and ordered children.
type Element struct {
	Name     string
	Attrs    map[string]string
	Text     string
	Children []*Element
}

// NewElement constructs an Element with an empty attribute map.
func NewElement(name string) *Element {
	return &Element{Name: name, Attrs: make(map[string]string)}
}

// Attr returns an attribute's value and whether it was present.
func (e *Element) Attr(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

// SetAttr sets or replaces an attribute.
func (e *Element) SetAttr(name, value string) { e.Attrs[name] = value }

// AddChild appends a child element, preserving document order.
func (e *Element) AddChild(child *Element) { e.Children = append(e.Children, child) }

// DeepCopy returns a fully independent copy: mutating the copy's
// attributes, text, or children never affects the original.
func (e *Element) DeepCopy() *Element {
	cp := &Element{Name: e.Name, Text: e.Text, Attrs: make(map[string]string, len(e.Attrs))}
	for k, v := range e.Attrs {
		cp.Attrs[k] = v
	}
	cp.Children = make([]*Element, len(e.Children))
	for i, c := range e.Children {
		cp.Children[i] = c.DeepCopy()
	}
	return cp
}

// Tree adapts an Element's root to traversal.Tree so a pre-order
// traversal.Traversal can walk it.
type Tree struct {
	root *Element
}

// NewTree wraps root for traversal.
func NewTree(root *Element) Tree { return Tree{root: root} }

// Root implements traversal.Tree.
func (t Tree) Root() traversal.Node { return t.root }

// Children implements traversal.Tree.
func (t Tree) Children(n traversal.Node) []traversal.Node {
	el, ok := n.(*Element)
	if !ok {
		return nil
	}
	out := make([]traversal.Node, len(el.Children))
	for i, c := range el.Children {
		out[i] = c
	}
	return out
}
