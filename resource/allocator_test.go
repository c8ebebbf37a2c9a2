package resource

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/component"
	"github.com/weftworks/weft/errors"
)

func provisionedAllocator(t *testing.T, poolSize int) *BlockAllocator {
	t.Helper()
	a := NewBlockAllocator("allocator")
	require.NoError(t, component.Configure(a))
	require.NoError(t, component.Initialize(a, map[string]any{"pool_size": poolSize}))
	require.NoError(t, a.Provision())
	return a
}

func TestAllocatorLifecycle(t *testing.T) {
	a := provisionedAllocator(t, 1024)

	block, err := a.Allocate(128, 0)
	require.NoError(t, err)
	assert.Len(t, block.Bytes(), 128)
	assert.Equal(t, 1, a.Outstanding())

	block.Release()
	assert.Equal(t, 0, a.Outstanding())
	require.NoError(t, a.Reset())
}

func TestAllocateBeforeProvisionFails(t *testing.T) {
	a := NewBlockAllocator("allocator")
	require.NoError(t, component.Configure(a))
	require.NoError(t, component.Initialize(a, map[string]any{"pool_size": 1024}))

	_, err := a.Allocate(64, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotBound)
}

func TestProvisionTwiceFails(t *testing.T) {
	a := provisionedAllocator(t, 1024)

	err := a.Provision()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAlreadyBound)
}

func TestProvisionWithoutPoolSizeFails(t *testing.T) {
	a := NewBlockAllocator("allocator")
	require.NoError(t, component.Configure(a))

	err := component.Initialize(a, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrParameterUnset)
	assert.Contains(t, err.Error(), "pool_size")
}

func TestResetWithOutstandingBlocksFails(t *testing.T) {
	a := provisionedAllocator(t, 1024)

	block, err := a.Allocate(64, 0)
	require.NoError(t, err)

	err = a.Reset()
	require.Error(t, err)

	block.Release()
	require.NoError(t, a.Reset())
}

func TestAllocatorExhaustion(t *testing.T) {
	a := provisionedAllocator(t, 64)

	_, err := a.Allocate(48, 0)
	require.NoError(t, err)

	_, err = a.Allocate(48, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrArenaExhausted)
}

func TestAllocatorConcurrentUse(t *testing.T) {
	a := provisionedAllocator(t, 64*1024)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 8; j++ {
				block, err := a.Allocate(256, 0)
				assert.NoError(t, err)
				block.Release()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, a.Outstanding())
}
