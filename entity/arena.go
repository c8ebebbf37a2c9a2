package entity

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/weftworks/weft/errors"
)

// DefaultAlignment is used for allocations that don't request one.
const DefaultAlignment = 8

// CacheLineAlignment suits buffers shared between concurrent producers and
// consumers.
const CacheLineAlignment = 64

// alignUp rounds n up to the given power-of-two alignment.
func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// Arena manages a single pre-allocated byte buffer from which entity and
// tensor storage is carved with a bump allocator. The engine owns the arena;
// entities hold Blocks whose lifetime is tied to the entity handle. Reset is
// only legal once every outstanding block has been released.
type Arena struct {
	mu          sync.Mutex
	buf         []byte
	off         int
	outstanding int
}

// NewArena allocates an arena of the given total size.
func NewArena(size int) (*Arena, error) {
	if size <= 0 {
		return nil, errors.New("arena size must be positive")
	}
	return &Arena{buf: make([]byte, size)}, nil
}

// Alloc carves a block of the requested size and alignment out of the arena.
// Alignment 0 uses DefaultAlignment.
func (a *Arena) Alloc(size, align int) (*Block, error) {
	if size <= 0 {
		return nil, errors.New("allocation size must be positive")
	}
	if align == 0 {
		align = DefaultAlignment
	}
	if align&(align-1) != 0 {
		return nil, fmt.Errorf("alignment %d is not a power of two", align)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	off := alignUp(a.off, align)
	if off+size > len(a.buf) {
		return nil, errors.WrapBinding(errors.ErrArenaExhausted, "Arena", "Alloc",
			fmt.Sprintf("requested %d bytes with %d remaining", size, len(a.buf)-a.off))
	}

	a.off = off + size
	a.outstanding++
	return &Block{arena: a, off: off, size: size}, nil
}

// Reset rewinds the bump allocator. It fails while any block is outstanding,
// since a released arena invalidates every view carved from it.
func (a *Arena) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.outstanding > 0 {
		return errors.WrapBinding(
			fmt.Errorf("%d blocks still outstanding", a.outstanding),
			"Arena", "Reset", "outstanding block check")
	}
	a.off = 0
	return nil
}

// Size returns the total arena capacity in bytes.
func (a *Arena) Size() int {
	return len(a.buf)
}

// Used returns the bytes consumed by the bump allocator.
func (a *Arena) Used() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.off
}

// Remaining returns the bytes still available.
func (a *Arena) Remaining() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buf) - a.off
}

// Outstanding returns the number of live blocks.
func (a *Arena) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outstanding
}

// Block is a non-owning view into the arena. Releasing a block does not
// return its bytes to the allocator (the arena is bump-allocated) but marks
// the view dead and lets the arena be reset once no views remain.
type Block struct {
	arena    *Arena
	off      int
	size     int
	released atomic.Bool
}

// Bytes returns the live view over the block's bytes, or nil after release.
func (b *Block) Bytes() []byte {
	if b.released.Load() {
		return nil
	}
	return b.arena.buf[b.off : b.off+b.size]
}

// Size returns the block length in bytes.
func (b *Block) Size() int {
	return b.size
}

// Alive reports whether the block is still valid.
func (b *Block) Alive() bool {
	return !b.released.Load()
}

// Release marks the block dead. Safe to call more than once; only the first
// call counts.
func (b *Block) Release() {
	if b.released.CompareAndSwap(false, true) {
		b.arena.mu.Lock()
		b.arena.outstanding--
		b.arena.mu.Unlock()
	}
}
