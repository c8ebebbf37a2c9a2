package runtime

import (
	"fmt"
	"sync"

	"github.com/weftworks/weft/errors"
	"github.com/weftworks/weft/registrar"
)

// typeTable is the runtime's view of every registered type. It satisfies
// registrar.TypeSystem so a Registrar can publish straight into it, and
// registrar.TypeNamer for reverse lookups.
type typeTable struct {
	mu         sync.RWMutex
	byID       map[registrar.TypeID]registrar.TypeInfo
	byName     map[string]registrar.TypeID
	extensions map[registrar.TypeID][]registrar.TypeID
}

var (
	_ registrar.TypeSystem = (*typeTable)(nil)
	_ registrar.TypeNamer  = (*typeTable)(nil)
)

func newTypeTable() *typeTable {
	return &typeTable{
		byID:       make(map[registrar.TypeID]registrar.TypeInfo),
		byName:     make(map[string]registrar.TypeID),
		extensions: make(map[registrar.TypeID][]registrar.TypeID),
	}
}

// Publish installs an extension bundle. The whole bundle installs or none
// of it does.
func (t *typeTable) Publish(extension registrar.TypeInfo, members []registrar.TypeInfo) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.byID[extension.ID]; exists {
		return fmt.Errorf("%w: extension %s", errors.ErrAlreadyRegistered, extension.ID)
	}
	for _, info := range members {
		if _, exists := t.byID[info.ID]; exists {
			return fmt.Errorf("%w: %s (%s)", errors.ErrTypeIDCollision, info.ID, info.TypeName)
		}
		if _, exists := t.byName[info.TypeName]; exists {
			return fmt.Errorf("%w: name %q", errors.ErrTypeIDCollision, info.TypeName)
		}
	}

	t.byID[extension.ID] = extension
	if extension.TypeName != "" {
		t.byName[extension.TypeName] = extension.ID
	}
	ids := make([]registrar.TypeID, 0, len(members))
	for _, info := range members {
		t.byID[info.ID] = info
		t.byName[info.TypeName] = info.ID
		ids = append(ids, info.ID)
	}
	t.extensions[extension.ID] = ids
	return nil
}

// TypeName resolves an id back to its registered name.
func (t *typeTable) TypeName(id registrar.TypeID) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	info, ok := t.byID[id]
	if !ok {
		return "", false
	}
	return info.TypeName, true
}

// lookup resolves a registered type by name.
func (t *typeTable) lookup(typeName string) (registrar.TypeInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byName[typeName]
	if !ok {
		return registrar.TypeInfo{}, false
	}
	return t.byID[id], true
}

// Retract removes an extension and every type it published.
func (t *typeTable) Retract(extension registrar.TypeID) error {
	return t.unload(extension)
}

// unload removes an extension and every type it published.
func (t *typeTable) unload(extension registrar.TypeID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids, ok := t.extensions[extension]
	if !ok {
		return fmt.Errorf("%w: extension %s", errors.ErrTypeUnregistered, extension)
	}
	for _, id := range ids {
		if info, exists := t.byID[id]; exists {
			delete(t.byName, info.TypeName)
			delete(t.byID, id)
		}
	}
	if info, exists := t.byID[extension]; exists {
		delete(t.byName, info.TypeName)
	}
	delete(t.byID, extension)
	delete(t.extensions, extension)
	return nil
}

// names returns every registered type name, extensions included.
func (t *typeTable) names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.byName))
	for name := range t.byName {
		out = append(out, name)
	}
	return out
}
