package component

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDelegate struct {
	initErr     error
	initCalled  bool
	destroyHits int
}

func (f *fakeDelegate) DoInitialize() error {
	f.initCalled = true
	return f.initErr
}

func (f *fakeDelegate) DoDestroy() { f.destroyHits++ }

func TestBase_SetIDFailsAfterInitialize(t *testing.T) {
	b := NewBase(false)
	require.NoError(t, b.Initialize())
	err := b.SetID("late")
	var unmodifiable *UnmodifiableComponentError
	assert.ErrorAs(t, err, &unmodifiable)
}

func TestBase_InitializeFailsWhenRequiredIDUnset(t *testing.T) {
	b := NewBase(true)
	err := b.Initialize()
	var initErr *InitializationError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, StateUninitialized, b.State())
}

func TestBase_InitializeRunsDelegate(t *testing.T) {
	b := NewBase(false)
	d := &fakeDelegate{}
	b.SetDelegate(d)
	require.NoError(t, b.Initialize())
	assert.True(t, d.initCalled)
	assert.Equal(t, StateInitialized, b.State())
}

func TestBase_InitializeWrapsDelegateError(t *testing.T) {
	b := NewBase(false)
	boom := errors.New("boom")
	b.SetDelegate(&fakeDelegate{initErr: boom})
	err := b.Initialize()
	var initErr *InitializationError
	require.ErrorAs(t, err, &initErr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateUninitialized, b.State())
}

func TestBase_DoubleInitializeFails(t *testing.T) {
	b := NewBase(false)
	require.NoError(t, b.Initialize())
	err := b.Initialize()
	var initErr *InitializationError
	assert.ErrorAs(t, err, &initErr)
}

func TestBase_DestroyRunsDelegateOnceEvenIfCalledTwice(t *testing.T) {
	b := NewBase(false)
	d := &fakeDelegate{}
	b.SetDelegate(d)
	require.NoError(t, b.Initialize())

	b.Destroy()
	b.Destroy()
	assert.Equal(t, 1, d.destroyHits)
	assert.Equal(t, StateDestroyed, b.State())
}

func TestBase_DestroyWithoutInitializeSkipsDelegate(t *testing.T) {
	b := NewBase(false)
	d := &fakeDelegate{}
	b.SetDelegate(d)
	b.Destroy()
	assert.Equal(t, 0, d.destroyHits)
}

func TestBase_CheckRunPreconditionsFailsAfterDestroy(t *testing.T) {
	b := NewBase(false)
	require.NoError(t, b.Initialize())
	b.Destroy()
	err := b.CheckRunPreconditions("Execute")
	var destroyed *DestroyedComponentError
	assert.ErrorAs(t, err, &destroyed)
}

func TestBase_EnsureIDFailsWhenRequiredAndUnset(t *testing.T) {
	b := NewBase(true)
	_, err := b.EnsureID()
	var initErr *InitializationError
	assert.ErrorAs(t, err, &initErr)
}
