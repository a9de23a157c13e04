// Package component provides the uniform initialize/destroy lifecycle shared
// by every pluggable piece of the aggregator: stages, pipelines, validators,
// serializers, destination strategies, and merge strategies.
//
// The discipline is deliberately narrow. A component moves through three
// states — uninitialized, initialized, destroyed — and every configuration
// setter is guarded so that it can only be called before initialize(). This
// lets components snapshot their configuration exactly once and then run
// lock-free (or with only coarse read locks) during execution, which matters
// most for the signing adjunct (see pkg/signing) but is cheap enough to apply
// everywhere.
package component

import (
	"fmt"
	"sync"
)

// Lifecycle state of a Component.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// UnmodifiableComponentError is returned by a setter called after
// initialize() has succeeded.
type UnmodifiableComponentError struct {
	ComponentID string
	Setter      string
}

func (e *UnmodifiableComponentError) Error() string {
	return fmt.Sprintf("component %q is initialized and unmodifiable: setter %s", e.ComponentID, e.Setter)
}

// DestroyedComponentError is returned by any operation on a component after
// destroy() has been called.
type DestroyedComponentError struct {
	ComponentID string
	Operation   string
}

func (e *DestroyedComponentError) Error() string {
	return fmt.Sprintf("component %q is destroyed: operation %s", e.ComponentID, e.Operation)
}

// InitializationError wraps a failure from doInitialize, or reports misuse
// of initialize() itself (double-initialize, missing required id).
type InitializationError struct {
	ComponentID string
	Reason      string
	Cause       error
}

func (e *InitializationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("component %q failed to initialize: %s: %v", e.ComponentID, e.Reason, e.Cause)
	}
	return fmt.Sprintf("component %q failed to initialize: %s", e.ComponentID, e.Reason)
}

func (e *InitializationError) Unwrap() error { return e.Cause }

// Initializable is implemented by components with work to do at
// initialize()/destroy() time beyond the bookkeeping Base already provides.
// DoInitialize runs exactly once, after the setter-guard window has closed.
// DoDestroy is best-effort cleanup and always runs once on a successfully
// initialized component.
type Initializable interface {
	DoInitialize() error
	DoDestroy()
}

// Base implements the component lifecycle state machine. Embed it in any
// stage, pipeline, validator, serializer, or strategy struct that needs an
// identifier and initialize/destroy semantics.
//
// Base is safe for concurrent setter calls and concurrent state
// inspection, but it does not serialize calls to Initialize/Destroy
// themselves against each other — those are expected to happen once, from
// a single owning goroutine, as part of wiring up a pipeline.
type Base struct {
	mu        sync.RWMutex
	id        string
	state     State
	requireID bool
	delegate  Initializable
}

// NewBase constructs a Base. requireID controls whether ensureId fails at
// initialize time if no id has been set; stages always require one, most
// other component kinds do not.
func NewBase(requireID bool) *Base {
	return &Base{requireID: requireID}
}

// SetDelegate wires the Initializable whose DoInitialize/DoDestroy hooks
// Base.Initialize/Destroy will call. Call this once, before Initialize.
func (b *Base) SetDelegate(d Initializable) {
	b.delegate = d
}

// ID returns the component's identifier, which may be empty if unset.
func (b *Base) ID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.id
}

// SetID is the canonical setter for a component's identifier. Like every
// other setter, it goes through CheckSetterPreconditions.
func (b *Base) SetID(id string) error {
	if err := b.CheckSetterPreconditions("SetID"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.id = id
	return nil
}

// State reports the component's current lifecycle state.
func (b *Base) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// CheckSetterPreconditions must be called, with no exceptions, at the top
// of every public setter method on a component. It fails with
// UnmodifiableComponentError once the component is initialized, and with
// DestroyedComponentError once it is destroyed.
func (b *Base) CheckSetterPreconditions(setter string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	switch b.state {
	case StateInitialized:
		return &UnmodifiableComponentError{ComponentID: b.id, Setter: setter}
	case StateDestroyed:
		return &DestroyedComponentError{ComponentID: b.id, Operation: setter}
	default:
		return nil
	}
}

// CheckRunPreconditions must be called at the top of any method that
// performs work (execute, visit, serialize, ...). It fails with
// DestroyedComponentError once destroyed; unlike setters it does not care
// whether the component is initialized yet, since some read-only helpers
// (e.g. ID()) are valid in any state. Callers that require the component to
// already be initialized should check State() explicitly.
func (b *Base) CheckRunPreconditions(operation string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.state == StateDestroyed {
		return &DestroyedComponentError{ComponentID: b.id, Operation: operation}
	}
	return nil
}

// EnsureID returns the component's id, raising InitializationError if the
// id is required and unset. Intended to be called from Initialize/
// DoInitialize.
func (b *Base) EnsureID() (string, error) {
	b.mu.RLock()
	id, required := b.id, b.requireID
	b.mu.RUnlock()
	if required && id == "" {
		return "", &InitializationError{ComponentID: id, Reason: "component id is required but unset"}
	}
	return id, nil
}

// Initialize transitions uninitialized -> initialized, running the
// delegate's DoInitialize (if any) in between. It fails if the component
// is already initialized or destroyed.
func (b *Base) Initialize() error {
	b.mu.Lock()
	switch b.state {
	case StateInitialized:
		b.mu.Unlock()
		return &InitializationError{ComponentID: b.id, Reason: "already initialized"}
	case StateDestroyed:
		b.mu.Unlock()
		return &DestroyedComponentError{ComponentID: b.id, Operation: "Initialize"}
	}
	id, required := b.id, b.requireID
	b.mu.Unlock()

	if required && id == "" {
		return &InitializationError{ComponentID: id, Reason: "component id is required but unset"}
	}

	if b.delegate != nil {
		if err := b.delegate.DoInitialize(); err != nil {
			return &InitializationError{ComponentID: id, Reason: "doInitialize failed", Cause: err}
		}
	}

	b.mu.Lock()
	b.state = StateInitialized
	b.mu.Unlock()
	return nil
}

// Destroy transitions to destroyed, running the delegate's DoDestroy (if
// any). It is idempotent: calling Destroy more than once, or calling it on
// a component that was never initialized, is a no-op after the first call.
func (b *Base) Destroy() {
	b.mu.Lock()
	if b.state == StateDestroyed {
		b.mu.Unlock()
		return
	}
	wasInitialized := b.state == StateInitialized
	b.state = StateDestroyed
	b.mu.Unlock()

	if wasInitialized && b.delegate != nil {
		b.delegate.DoDestroy()
	}
}
