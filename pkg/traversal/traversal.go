// Package traversal implements the DOM-agnostic visitor substrate that
// validating stages build on. A Traversal walks a payload's
// node tree, deciding per node whether it applies and what to do, while a
// Context carries per-run state — including a deferred-mutation queue so
// a visitor that wants to remove or replace a node does not invalidate
// the walk in progress.
package traversal

// Node is any element a Traversal can visit. For an XML payload this is
// an element in the tree; other payload shapes implement their own Node
// and Tree.
type Node interface{}

// Tree exposes the node structure a Traversal walks. Children returns a
// node's children in document order; Root returns the walk's starting
// point.
type Tree interface {
	Root() Node
	Children(n Node) []Node
}

// DeferredMutation is queued by a visitor instead of being applied
// immediately, and run in queued order by Context.End.
type DeferredMutation func()

// Context is per-run state tied to one traversal of one item. Visitors
// append to its deferred-mutation queue rather than mutating the tree
// in place.
type Context struct {
	deferred []DeferredMutation
	ended    bool
	data     map[string]any
}

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{data: make(map[string]any)}
}

// Defer appends a mutation to be applied once, at End, in the order
// Defer was called.
func (c *Context) Defer(m DeferredMutation) {
	c.deferred = append(c.deferred, m)
}

// Set stores a piece of per-run state a visitor wants to carry between
// nodes (e.g. an accumulated count, a first-seen flag).
func (c *Context) Set(key string, value any) { c.data[key] = value }

// Get retrieves per-run state previously stored with Set.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.data[key]
	return v, ok
}

// End applies every deferred mutation exactly once, in the order they
// were queued. Calling End more than once is a no-op after the first
// call.
func (c *Context) End() {
	if c.ended {
		return
	}
	c.ended = true
	for _, m := range c.deferred {
		m()
	}
}

// BuildContextFunc produces a fresh Context for one traversal; it takes
// no argument, so it does not see the item being traversed. Most Traversals can use NewContext directly; the hook exists
// so a payload-specific traversal can seed Context state (e.g. caching a
// namespace map) before the walk starts.
type BuildContextFunc func() *Context

// Applicable decides whether a node should be visited.
type Applicable func(n Node, ctx *Context) bool

// Visit performs the per-node work. It may call ctx.Defer to queue a
// mutation rather than mutating n directly.
type Visit func(n Node, ctx *Context)

// Traversal walks a Tree pre-order from its root, visiting every node for
// which Applicable returns true, then applies the context's deferred
// mutations exactly once.
type Traversal struct {
	BuildContext BuildContextFunc
	Applicable   Applicable
	Visit        Visit
}

// New constructs a Traversal. A nil buildContext defaults to NewContext.
func New(buildContext BuildContextFunc, applicable Applicable, visit Visit) *Traversal {
	if buildContext == nil {
		buildContext = NewContext
	}
	return &Traversal{BuildContext: buildContext, Applicable: applicable, Visit: visit}
}

// Run walks tree pre-order, visiting applicable nodes, then ends the
// context so any deferred mutations take effect.
func (t *Traversal) Run(tree Tree) *Context {
	ctx := t.BuildContext()
	t.walk(tree, tree.Root(), ctx)
	ctx.End()
	return ctx
}

func (t *Traversal) walk(tree Tree, n Node, ctx *Context) {
	if t.Applicable == nil || t.Applicable(n, ctx) {
		if t.Visit != nil {
			t.Visit(n, ctx)
		}
	}
	for _, child := range tree.Children(n) {
		t.walk(tree, child, ctx)
	}
}
