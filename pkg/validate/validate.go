// Package validate provides the CONTINUE/DONE validator sequence used by
// any stage whose "validation" concept is a pluggable, ordered list of
// rules — key length checks, RSA exponent checks, blacklists, regex
// scopes, and timestamp sanity checks.
package validate

import (
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/component"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
)

// Outcome is a validator's instruction to its sequence: keep going, or
// stop evaluating further validators.
type Outcome int

const (
	// Continue lets the sequence proceed to the next validator.
	Continue Outcome = iota
	// Done stops the sequence; no further validators in it run.
	Done
)

func (o Outcome) String() string {
	if o == Done {
		return "DONE"
	}
	return "CONTINUE"
}

// Validator receives a value, the Item it came from, and a source
// identifier string (e.g. the validating stage's id, used when recording
// status), and returns whether the sequence should continue.
type Validator[V any, T meta.Copyable[T]] interface {
	Validate(value V, item *meta.Item[T], source string) (Outcome, error)
}

// Func adapts a plain function to the Validator interface.
type Func[V any, T meta.Copyable[T]] func(value V, item *meta.Item[T], source string) (Outcome, error)

// Validate implements Validator.
func (f Func[V, T]) Validate(value V, item *meta.Item[T], source string) (Outcome, error) {
	return f(value, item, source)
}

// Sequence runs its validators in insertion order, stopping at the first
// Done (or error). It is itself a component: Initialize/Destroy propagate
// to every validator that implements component lifecycle hooks.
type Sequence[V any, T meta.Copyable[T]] struct {
	base       *component.Base
	validators []Validator[V, T]
}

// NewSequence constructs a Sequence from validators in run order.
func NewSequence[V any, T meta.Copyable[T]](id string, validators ...Validator[V, T]) *Sequence[V, T] {
	b := component.NewBase(false)
	_ = b.SetID(id)
	return &Sequence[V, T]{base: b, validators: validators}
}

// ID returns the sequence's identifier, used as the source string when a
// caller doesn't supply its own.
func (s *Sequence[V, T]) ID() string { return s.base.ID() }

// Initialize initializes the sequence and every validator that is also an
// Initializable component.
func (s *Sequence[V, T]) Initialize() error {
	if err := s.base.Initialize(); err != nil {
		return err
	}
	for _, v := range s.validators {
		if init, ok := v.(interface{ Initialize() error }); ok {
			if err := init.Initialize(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Destroy destroys every validator that is a Destroyable component, then
// the sequence itself.
func (s *Sequence[V, T]) Destroy() {
	for _, v := range s.validators {
		if d, ok := v.(interface{ Destroy() }); ok {
			d.Destroy()
		}
	}
	s.base.Destroy()
}

// Run evaluates the validators in order against value, stopping at the
// first Done. It returns the final Outcome and the first error
// encountered, if any (an erroring validator also stops the sequence).
func (s *Sequence[V, T]) Run(value V, item *meta.Item[T], source string) (Outcome, error) {
	if source == "" {
		source = s.base.ID()
	}
	outcome := Continue
	for _, v := range s.validators {
		var err error
		outcome, err = v.Validate(value, item, source)
		if err != nil {
			return outcome, err
		}
		if outcome == Done {
			break
		}
	}
	return outcome, nil
}

// RecordInfo, RecordWarning, and RecordError are the standard helpers a
// Validator uses to turn a finding into ItemMetadata. Stages are
// responsible for supplying their own id as source when they want the
// status attributed to the stage rather than the sequence.
func RecordInfo[T meta.Copyable[T]](item *meta.Item[T], source, message string) {
	item.Metadata().Add(meta.NewInfoStatus(source, message))
}

func RecordWarning[T meta.Copyable[T]](item *meta.Item[T], source, message string) {
	item.Metadata().Add(meta.NewWarningStatus(source, message))
}

func RecordError[T meta.Copyable[T]](item *meta.Item[T], source, message string) {
	item.Metadata().Add(meta.NewErrorStatus(source, message))
}
