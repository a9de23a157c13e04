// Package stage defines the Stage abstraction: a component whose Execute is
// called once per pipeline run over an ordered list of items, bracketed by
// ComponentInfo timing and, on failure, by an ErrorStatus recorded on every
// item that was still present when the failure happened.
//
// Three ready-made shapes cover the overwhelming majority of stages: a
// General stage with full access to the list (add/remove/reorder), an
// Iterating stage that visits items one at a time and stops at the first
// failure, and a Filtering stage whose per-item callback decides keep/drop.
// Each is a thin function-based adapter rather than a class hierarchy,
// collapsing template-method inheritance into an interface plus variants.
package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/component"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
)

// Stage is the contract every pipeline element satisfies. T is the payload
// type flowing through the pipeline (e.g. an XML element tree).
type Stage[T meta.Copyable[T]] interface {
	ID() string
	Kind() string
	Initialize() error
	Destroy()
	// Execute runs once over items, returning the (possibly new, possibly
	// reordered, possibly shorter or longer) list that should flow to the
	// next stage. It must not retain items beyond the call if it also
	// mutates them concurrently elsewhere.
	Execute(ctx context.Context, items []*meta.Item[T]) ([]*meta.Item[T], error)
}

// ProcessingError is returned by Execute when a stage cannot proceed. It
// carries the failing stage's id and kind and, when available, the
// identification string of the item being processed when the failure
// occurred. Pipelines decorate it further with the stage's position.
type ProcessingError struct {
	StageID   string
	StageKind string
	ItemIdent string
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.ItemIdent != "" {
		return fmt.Sprintf("stage %q (%s) failed on item %q: %v", e.StageID, e.StageKind, e.ItemIdent, e.Cause)
	}
	return fmt.Sprintf("stage %q (%s) failed: %v", e.StageID, e.StageKind, e.Cause)
}

func (e *ProcessingError) Unwrap() error { return e.Cause }

// RunResult is returned by a stage's run function so Bracket can tell, on
// failure, which of the entry items are still present in the list (and
// therefore still eligible for an ErrorStatus).
type RunResult[T meta.Copyable[T]] struct {
	Items    []*meta.Item[T]
	FailedOn string // identification string of the item being processed, if any
}

// Bracket is the one place ComponentInfo attach/complete and
// failure-time ErrorStatus recording happen. The three shapes in this
// package, and pkg/splitter's fan-out stage, all funnel through it so the
// entry/exit contract of a stage's state machine is enforced uniformly
// everywhere a Stage is implemented.
func Bracket[T meta.Copyable[T]](
	base *component.Base,
	kind string,
	items []*meta.Item[T],
	run func(entry []*meta.Item[T]) (RunResult[T], error),
) ([]*meta.Item[T], error) {
	if err := base.CheckRunPreconditions("Execute"); err != nil {
		return nil, err
	}
	id, err := base.EnsureID()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	infos := make(map[*meta.Item[T]]*meta.ComponentInfo, len(items))
	for _, it := range items {
		ci := meta.NewComponentInfo(id, kind, start)
		it.Metadata().Add(ci)
		infos[it] = ci
	}

	result, runErr := run(items)
	if runErr != nil {
		still := make(map[*meta.Item[T]]bool, len(result.Items))
		for _, it := range result.Items {
			still[it] = true
		}
		for it := range infos {
			if still[it] {
				it.Metadata().Add(meta.NewErrorStatus(id, runErr.Error()))
			}
		}
		return nil, &ProcessingError{StageID: id, StageKind: kind, ItemIdent: result.FailedOn, Cause: runErr}
	}

	complete := time.Now()
	for it, ci := range infos {
		ci.MarkComplete(complete)
	}
	return result.Items, nil
}
