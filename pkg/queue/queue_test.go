package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/errors"
)

func TestRingFIFOOrder(t *testing.T) {
	r, err := NewRing[int](4)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		require.NoError(t, r.Push(i))
	}
	assert.Equal(t, 3, r.Len())

	for i := 1; i <= 3; i++ {
		v, ok := r.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}

	_, ok := r.Pop()
	assert.False(t, ok, "empty queue must report not available")
}

func TestRingRejectPolicy(t *testing.T) {
	r, err := NewRing[string](1)
	require.NoError(t, err)

	require.NoError(t, r.Push("a"))
	err = r.Push("b")
	assert.True(t, errors.Is(err, errors.ErrQueueFull))

	v, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", v)
}

func TestRingDropOldest(t *testing.T) {
	var dropped []int
	r, err := NewRing[int](2,
		WithPolicy[int](DropOldest),
		WithDropCallback[int](func(v int) { dropped = append(dropped, v) }))
	require.NoError(t, err)

	require.NoError(t, r.Push(1))
	require.NoError(t, r.Push(2))
	require.NoError(t, r.Push(3))

	assert.Equal(t, []int{1}, dropped)
	v, _ := r.Pop()
	assert.Equal(t, 2, v)
	v, _ = r.Pop()
	assert.Equal(t, 3, v)
	assert.Equal(t, uint64(1), r.Stats().Dropped)
}

func TestRingDropNewest(t *testing.T) {
	r, err := NewRing[int](2, WithPolicy[int](DropNewest))
	require.NoError(t, err)

	require.NoError(t, r.Push(1))
	require.NoError(t, r.Push(2))
	require.NoError(t, r.Push(3))

	v, _ := r.Pop()
	assert.Equal(t, 1, v)
	v, _ = r.Pop()
	assert.Equal(t, 2, v)
	_, ok := r.Pop()
	assert.False(t, ok)
}

func TestRingPeekAndClear(t *testing.T) {
	r, err := NewRing[int](4)
	require.NoError(t, err)

	_, ok := r.Peek()
	assert.False(t, ok)

	require.NoError(t, r.Push(7))
	v, ok := r.Peek()
	require.True(t, ok)
	assert.Equal(t, 7, v)
	assert.Equal(t, 1, r.Len(), "peek must not remove")

	r.Clear()
	assert.Equal(t, 0, r.Len())
}

func TestRingInvalidCapacity(t *testing.T) {
	_, err := NewRing[int](0)
	assert.Error(t, err)
}

func TestRingConcurrentPushPop(t *testing.T) {
	r, err := NewRing[int](128, WithPolicy[int](DropOldest))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				_ = r.Push(base + i)
			}
		}(w * 1000)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2000; i++ {
			r.Pop()
		}
	}()
	wg.Wait()
	<-done

	stats := r.Stats()
	// Every push is accepted under DropOldest, evicting or not.
	assert.Equal(t, uint64(4000), stats.Pushed)
	// Accepted items are either popped, evicted, or still queued.
	assert.Equal(t, stats.Pushed, stats.Popped+stats.Dropped+uint64(r.Len()))
}

func TestRingDropOldestCountsEvictionAndAcceptance(t *testing.T) {
	r, err := NewRing[int](2, WithPolicy[int](DropOldest))
	require.NoError(t, err)

	require.NoError(t, r.Push(1))
	require.NoError(t, r.Push(2))
	require.NoError(t, r.Push(3))

	stats := r.Stats()
	assert.Equal(t, uint64(3), stats.Pushed)
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, 2, r.Len())

	v, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, v)
}
