// Package resource provides shared passive components resolved during
// initialization, currently the block allocator operators draw tensor
// storage from.
package resource

import (
	"sync"

	"github.com/weftworks/weft/component"
	"github.com/weftworks/weft/entity"
	"github.com/weftworks/weft/errors"
)

// BlockAllocator hands out aligned blocks from a fixed arena. It is a
// passive resource: the arena is sized once at Initialize and shared by
// every operator holding a handle to the allocator. Allocate and Release are
// safe to call concurrently; the arena underneath serializes them.
type BlockAllocator struct {
	*component.Base

	mu    sync.Mutex
	arena *entity.Arena
}

var _ component.Resource = (*BlockAllocator)(nil)

// NewBlockAllocator creates an unprovisioned block allocator. The arena is
// created when Provision runs, normally from the pool_size parameter during
// component initialization.
func NewBlockAllocator(name string, opts ...component.BaseOption) *BlockAllocator {
	return &BlockAllocator{Base: component.NewBase(name, opts...)}
}

// Setup declares the pool sizing parameters.
func (a *BlockAllocator) Setup(spec *component.Spec) error {
	if err := spec.Param(component.ParamDecl{
		Name:        "pool_size",
		Type:        component.TypeInt,
		Description: "arena capacity in bytes",
		Required:    true,
	}); err != nil {
		return err
	}
	return spec.Param(component.ParamDecl{
		Name:        "alignment",
		Type:        component.TypeInt,
		Description: "default block alignment in bytes",
		Default:     entity.DefaultAlignment,
	})
}

// Provision creates the backing arena from the bound parameters. It runs
// exactly once; a second call is a binding error so two operators racing to
// provision a shared allocator cannot silently swap arenas.
func (a *BlockAllocator) Provision() error {
	size, ok := component.ParamInt(a.Base, "pool_size")
	if !ok {
		return errors.WrapConfig(errors.ErrParameterUnset, a.Name(), "Provision", "pool sizing")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.arena != nil {
		return errors.WrapBinding(errors.ErrAlreadyBound, a.Name(), "Provision", "arena create")
	}
	arena, err := entity.NewArena(int(size))
	if err != nil {
		return errors.WrapConfig(err, a.Name(), "Provision", "arena create")
	}
	a.arena = arena
	return nil
}

// Allocate returns an aligned block of the requested size.
func (a *BlockAllocator) Allocate(size, align int) (*entity.Block, error) {
	a.mu.Lock()
	arena := a.arena
	a.mu.Unlock()

	if arena == nil {
		return nil, errors.WrapBinding(errors.ErrNotBound, a.Name(), "Allocate", "arena lookup")
	}
	block, err := arena.Alloc(size, align)
	if err != nil {
		return nil, errors.Wrap(err, a.Name(), "Allocate", "block grant")
	}
	return block, nil
}

// Outstanding returns the number of live blocks.
func (a *BlockAllocator) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.arena == nil {
		return 0
	}
	return a.arena.Outstanding()
}

// Reset reclaims the whole arena. It fails while any block is alive.
func (a *BlockAllocator) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.arena == nil {
		return errors.WrapBinding(errors.ErrNotBound, a.Name(), "Reset", "arena lookup")
	}
	if err := a.arena.Reset(); err != nil {
		return errors.Wrap(err, a.Name(), "Reset", "arena reclaim")
	}
	return nil
}
