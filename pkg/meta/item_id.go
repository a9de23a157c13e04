package meta

import (
	"errors"
	"strings"
)

// ErrEmptyItemID is returned by NewItemID when the given value is empty
// after trimming.
var ErrEmptyItemID = errors.New("meta: item id must be a non-empty string")

// ItemID is one identifier an item carries; an item may carry several
// (e.g. an entityID and a registration-authority-qualified alias).
// Equality and hashing are over the trimmed string value; ordering is
// lexicographic.
type ItemID struct {
	metadataMarker
	value string
}

// NewItemID trims the input and rejects the empty string. Uniqueness
// within an aggregate is a policy concern for stages, not an invariant
// enforced here.
func NewItemID(value string) (ItemID, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return ItemID{}, ErrEmptyItemID
	}
	return ItemID{value: v}, nil
}

// MustItemID panics if value is empty after trimming. Intended for tests
// and for literal ids known at compile time.
func MustItemID(value string) ItemID {
	id, err := NewItemID(value)
	if err != nil {
		panic(err)
	}
	return id
}

// Value returns the trimmed identifier string.
func (i ItemID) Value() string { return i.value }

// String implements fmt.Stringer.
func (i ItemID) String() string { return i.value }

// Less orders ItemIDs lexicographically by their string value.
func (i ItemID) Less(other ItemID) bool { return i.value < other.value }
