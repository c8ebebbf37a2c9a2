package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapFormat(t *testing.T) {
	err := Wrap(ErrParameterUnset, "Base", "Initialize", "parameter binding")
	require.Error(t, err)
	assert.Equal(t, "Base.Initialize: parameter binding failed: required parameter not set", err.Error())
	assert.True(t, Is(err, ErrParameterUnset))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "c", "op", "a"))
	assert.NoError(t, WrapConfig(nil, "c", "op", "a"))
	assert.NoError(t, WrapBinding(nil, "c", "op", "a"))
	assert.NoError(t, WrapInterchange(nil, "c", "op", "a"))
	assert.NoError(t, WrapRegistrar(nil, "c", "op", "a"))
	assert.NoError(t, WrapRuntime(nil, "c", "op", "a"))
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		class Class
	}{
		{"config", WrapConfig(ErrParameterUnset, "Base", "Initialize", "binding"), IsConfig, ClassConfig},
		{"binding", WrapBinding(ErrStaleIdentity, "Runtime", "Resolve", "lookup"), IsBinding, ClassBinding},
		{"interchange", WrapInterchange(ErrUnsupportedLayout, "VideoBuffer", "AsTensor", "layout"), IsInterchange, ClassInterchange},
		{"registrar", WrapRegistrar(ErrReservedTypeID, "Registrar", "AllocateTID", "allocation"), IsRegistrar, ClassRegistrar},
		{"runtime", WrapRuntime(ErrConditionRetired, "Asynchronous", "SetEventState", "transition"), IsRuntime, ClassRuntime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))

			class, ok := Classify(tt.err)
			require.True(t, ok)
			assert.Equal(t, tt.class, class)
		})
	}
}

func TestClassifySentinelsWithoutWrapping(t *testing.T) {
	class, ok := Classify(fmt.Errorf("outer: %w", ErrUnsupportedDtype))
	require.True(t, ok)
	assert.Equal(t, ClassInterchange, class)

	_, ok = Classify(New("anonymous"))
	assert.False(t, ok)

	_, ok = Classify(nil)
	assert.False(t, ok)
}

func TestClassifiedErrorUnwrap(t *testing.T) {
	err := WrapRegistrar(ErrTypeIDCollision, "Registrar", "AllocateTID", "collision check")

	var ce *ClassifiedError
	require.True(t, As(err, &ce))
	assert.Equal(t, "Registrar", ce.Component)
	assert.Equal(t, "AllocateTID", ce.Operation)
	assert.True(t, Is(ce.Unwrap(), ErrTypeIDCollision))
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "config", ClassConfig.String())
	assert.Equal(t, "binding", ClassBinding.String())
	assert.Equal(t, "interchange", ClassInterchange.String())
	assert.Equal(t, "registrar", ClassRegistrar.String())
	assert.Equal(t, "runtime", ClassRuntime.String())
	assert.Equal(t, "unknown", Class(99).String())
}
