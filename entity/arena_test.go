package entity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/errors"
)

func TestArenaAllocAlignment(t *testing.T) {
	arena, err := NewArena(1024)
	require.NoError(t, err)

	first, err := arena.Alloc(3, 0)
	require.NoError(t, err)
	second, err := arena.Alloc(8, CacheLineAlignment)
	require.NoError(t, err)

	assert.Equal(t, 3, first.Size())
	assert.Equal(t, CacheLineAlignment, arena.Used()-second.Size())
	assert.Equal(t, 2, arena.Outstanding())
}

func TestArenaExhaustion(t *testing.T) {
	arena, err := NewArena(64)
	require.NoError(t, err)

	_, err = arena.Alloc(48, 0)
	require.NoError(t, err)

	_, err = arena.Alloc(32, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrArenaExhausted))
	assert.True(t, errors.IsBinding(err))
}

func TestArenaResetRequiresNoOutstandingBlocks(t *testing.T) {
	arena, err := NewArena(128)
	require.NoError(t, err)

	block, err := arena.Alloc(16, 0)
	require.NoError(t, err)

	err = arena.Reset()
	require.Error(t, err, "reset with live views must fail")

	block.Release()
	require.NoError(t, arena.Reset())
	assert.Equal(t, 0, arena.Used())
	assert.Equal(t, 128, arena.Remaining())
}

func TestBlockReleaseInvalidatesView(t *testing.T) {
	arena, err := NewArena(64)
	require.NoError(t, err)

	block, err := arena.Alloc(8, 0)
	require.NoError(t, err)
	require.NotNil(t, block.Bytes())
	assert.True(t, block.Alive())

	block.Release()
	assert.Nil(t, block.Bytes())
	assert.False(t, block.Alive())

	// Double release does not double-count.
	block.Release()
	assert.Equal(t, 0, arena.Outstanding())
}

func TestArenaConcurrentAlloc(t *testing.T) {
	arena, err := NewArena(1 << 16)
	require.NoError(t, err)

	var wg sync.WaitGroup
	blocks := make(chan *Block, 64)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 8; j++ {
				b, err := arena.Alloc(32, 0)
				if err == nil {
					blocks <- b
				}
			}
		}()
	}
	wg.Wait()
	close(blocks)

	count := 0
	for b := range blocks {
		count++
		b.Release()
	}
	assert.Equal(t, 64, count)
	assert.Equal(t, 0, arena.Outstanding())
}

func TestArenaInvalidInputs(t *testing.T) {
	_, err := NewArena(0)
	assert.Error(t, err)

	arena, err := NewArena(64)
	require.NoError(t, err)

	_, err = arena.Alloc(0, 0)
	assert.Error(t, err)

	_, err = arena.Alloc(8, 3)
	assert.Error(t, err, "non power-of-two alignment")
}
