package meta

import (
	"sync/atomic"
	"time"
)

// ComponentInfo is a timing and provenance record a stage attaches to every
// item present at its entry, and completes on normal exit.
//
// It is the one ItemMetadata kind that is not fully immutable once
// attached: start is recorded at entry and complete is filled in at
// exit, and a fan-out splitter may have copied the item (and, with it,
// the same *ComponentInfo pointer) to child pipelines in between.
// ComponentInfo is therefore a pointer type whose completion stamp is
// written exactly once through an atomic compare-and-swap, so every copy
// that shares the instance observes the same completion instant once the
// owning stage finishes — consistent with the rule that ItemMetadata
// values are shared by reference between an item and its copies, just
// exercised on a field instead of on the whole value.
type ComponentInfo struct {
	metadataMarker
	componentID   string
	componentKind string
	start         time.Time
	complete      atomic.Pointer[time.Time]
}

// NewComponentInfo records a stage's identity and start instant. Call
// MarkComplete on normal exit.
func NewComponentInfo(componentID, componentKind string, start time.Time) *ComponentInfo {
	return &ComponentInfo{componentID: componentID, componentKind: componentKind, start: start}
}

// ComponentID returns the id of the stage (or other component) that
// attached this record.
func (c *ComponentInfo) ComponentID() string { return c.componentID }

// ComponentKind returns a short description of the component's type,
// e.g. "stage.Filtering" or "stage.Splitter".
func (c *ComponentInfo) ComponentKind() string { return c.componentKind }

// Start returns the instant the component began processing this item.
func (c *ComponentInfo) Start() time.Time { return c.start }

// Complete returns the instant the component finished processing this
// item, and whether it has been set yet. An item that was present at a
// stage's entry but for which the stage failed before reaching exit will
// have ok == false forever.
func (c *ComponentInfo) Complete() (t time.Time, ok bool) {
	p := c.complete.Load()
	if p == nil {
		return time.Time{}, false
	}
	return *p, true
}

// MarkComplete records the completion instant. Only the first call has any
// effect; later calls are no-ops, since a component completes at most
// once per item per execution.
func (c *ComponentInfo) MarkComplete(t time.Time) {
	c.complete.CompareAndSwap(nil, &t)
}
