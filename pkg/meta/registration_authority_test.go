package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistrationAuthority_ValueRoundTrips(t *testing.T) {
	ra := NewRegistrationAuthority("urn:federation:operator")
	assert.Equal(t, "urn:federation:operator", ra.Value())

	m := NewMultimap()
	m.Add(ra)
	got := All[RegistrationAuthority](m)
	assert.Len(t, got, 1)
	assert.Equal(t, "urn:federation:operator", got[0].Value())
}
