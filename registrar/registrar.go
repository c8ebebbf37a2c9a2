// Package registrar builds and publishes extensions: named bundles of
// component types identified by 128-bit type ids. A Registrar accumulates an
// extension's component and data types, then registers the whole bundle with
// a type system in one step.
package registrar

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/weftworks/weft/errors"
)

// TypeID is a 128-bit type identifier. The zero value is reserved and never
// identifies a registered type.
type TypeID struct {
	Hi uint64
	Lo uint64
}

// DefaultTID is the reserved unassigned id. Passing it where an id is
// expected requests a generated one.
var DefaultTID = TypeID{}

// IsZero reports whether the id is the reserved zero id.
func (t TypeID) IsZero() bool {
	return t.Hi == 0 && t.Lo == 0
}

// String formats the id as two 16-digit hex halves.
func (t TypeID) String() string {
	return fmt.Sprintf("%016x-%016x", t.Hi, t.Lo)
}

// Kind distinguishes what a type id names.
type Kind int

const (
	// KindExtension ids name an extension bundle.
	KindExtension Kind = iota
	// KindComponent ids name a component or data type within a bundle.
	KindComponent
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindExtension:
		return "extension"
	case KindComponent:
		return "component"
	default:
		return "unknown"
	}
}

// TypeInfo describes one registered type.
type TypeInfo struct {
	ID       TypeID
	Kind     Kind
	TypeName string
	Factory  func() any
}

// TypeSystem receives a finished extension bundle. The runtime implements
// it; tests substitute fakes.
type TypeSystem interface {
	// Publish registers every type in the bundle under the extension id.
	// Implementations must reject an extension id already published.
	Publish(extension TypeInfo, members []TypeInfo) error
	// Retract unregisters a published extension and every type it
	// brought. Lookups for those types report unregistered afterward.
	Retract(extension TypeID) error
}

// TypeNamer is an optional capability of TypeSystem implementations that can
// resolve an id back to its registered name.
type TypeNamer interface {
	TypeName(id TypeID) (string, bool)
}

// Registrar accumulates one extension bundle. Safe for concurrent use; a
// bundle registers at most once, and Reset returns the registrar to empty
// for building another.
type Registrar struct {
	mu         sync.Mutex
	system     TypeSystem
	extension  TypeInfo
	members    []TypeInfo
	allocated  map[TypeID]Kind
	registered bool
}

// New creates a registrar publishing into the given type system.
func New(system TypeSystem) *Registrar {
	return &Registrar{
		system:    system,
		allocated: make(map[TypeID]Kind),
	}
}

// CreateRandomTID returns a fresh random non-zero type id, distinct from
// every id already allocated through this registrar.
func (r *Registrar) CreateRandomTID() TypeID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.randomTIDLocked()
}

func (r *Registrar) randomTIDLocked() TypeID {
	for {
		u := uuid.New()
		tid := TypeID{
			Hi: binary.BigEndian.Uint64(u[:8]),
			Lo: binary.BigEndian.Uint64(u[8:]),
		}
		if tid.IsZero() {
			continue
		}
		if _, taken := r.allocated[tid]; taken {
			continue
		}
		return tid
	}
}

// IsAllocated reports whether an id is claimed in this registrar for the
// given kind. Pure query.
func (r *Registrar) IsAllocated(id TypeID, kind Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.allocated[id]
	return ok && existing == kind
}

// AllocateTID generates a fresh id for the given kind and records it, so a
// later IsAllocated for the same id and kind reports true.
func (r *Registrar) AllocateTID(kind Kind) (TypeID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.registered {
		return TypeID{}, errors.WrapRegistrar(errors.ErrAlreadyRegistered,
			"Registrar", "AllocateTID", "id allocation")
	}
	id := r.randomTIDLocked()
	r.allocated[id] = kind
	return id, nil
}

// allocateLocked claims a caller-chosen id for the given kind. The zero id
// is reserved; an id already claimed for another kind is a kind mismatch,
// and reclaiming it for the same kind is a collision.
func (r *Registrar) allocateLocked(id TypeID, kind Kind) error {
	if id.IsZero() {
		return errors.WrapRegistrar(errors.ErrReservedTypeID, "Registrar", "AllocateTID", "id claim")
	}
	if existing, taken := r.allocated[id]; taken {
		if existing != kind {
			return errors.WrapRegistrar(
				fmt.Errorf("%w: %s already allocated as %s, requested %s",
					errors.ErrKindMismatch, id, existing, kind),
				"Registrar", "AllocateTID", "id claim")
		}
		return errors.WrapRegistrar(
			fmt.Errorf("%w: %s already allocated as %s", errors.ErrTypeIDCollision, id, existing),
			"Registrar", "AllocateTID", "id claim")
	}
	r.allocated[id] = kind
	return nil
}

// SetExtension names the bundle under construction. A zero id requests a
// generated one.
func (r *Registrar) SetExtension(id TypeID, typeName string) (TypeID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.registered {
		return TypeID{}, errors.WrapRegistrar(errors.ErrAlreadyRegistered,
			"Registrar", "SetExtension", "bundle naming")
	}
	if id.IsZero() {
		id = r.randomTIDLocked()
	}
	if err := r.allocateLocked(id, KindExtension); err != nil {
		return TypeID{}, err
	}
	r.extension = TypeInfo{ID: id, Kind: KindExtension, TypeName: typeName}
	return id, nil
}

// AddComponent adds a component type with a factory producing fresh
// instances. A zero id requests a generated one.
func (r *Registrar) AddComponent(id TypeID, typeName string, factory func() any) (TypeID, error) {
	return r.addMember(id, typeName, factory, "AddComponent")
}

// AddType adds a plain data type to the bundle. A zero id requests a
// generated one.
func (r *Registrar) AddType(id TypeID, typeName string) (TypeID, error) {
	return r.addMember(id, typeName, nil, "AddType")
}

func (r *Registrar) addMember(id TypeID, typeName string, factory func() any, op string) (TypeID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.registered {
		return TypeID{}, errors.WrapRegistrar(errors.ErrAlreadyRegistered,
			"Registrar", op, "member add")
	}
	if typeName == "" {
		return TypeID{}, errors.WrapRegistrar(errors.New("empty type name"),
			"Registrar", op, "member add")
	}
	if id.IsZero() {
		id = r.randomTIDLocked()
	}
	if err := r.allocateLocked(id, KindComponent); err != nil {
		return TypeID{}, err
	}
	r.members = append(r.members, TypeInfo{
		ID:       id,
		Kind:     KindComponent,
		TypeName: typeName,
		Factory:  factory,
	})
	return id, nil
}

// RegisterExtension publishes the accumulated bundle into the type system.
// A registrar registers at most once between Resets.
func (r *Registrar) RegisterExtension() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.registered {
		return errors.WrapRegistrar(errors.ErrAlreadyRegistered,
			"Registrar", "RegisterExtension", "bundle publish")
	}
	if r.extension.ID.IsZero() {
		return errors.WrapRegistrar(errors.New("no extension named"),
			"Registrar", "RegisterExtension", "bundle publish")
	}
	if err := r.system.Publish(r.extension, append([]TypeInfo(nil), r.members...)); err != nil {
		return errors.WrapRegistrar(err, "Registrar", "RegisterExtension", "bundle publish")
	}
	r.registered = true
	return nil
}

// Registered reports whether the bundle has been published.
func (r *Registrar) Registered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registered
}

// Reset re-targets the registrar at a new extension identity, discarding
// uncommitted registrations. A bundle already published is retracted first,
// so lookups for its types report unregistered afterward. A zero id with a
// name requests a generated one; an empty name leaves the session unnamed
// until SetExtension.
func (r *Registrar) Reset(id TypeID, typeName string) (TypeID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.registered {
		if err := r.system.Retract(r.extension.ID); err != nil {
			return TypeID{}, errors.WrapRegistrar(err, "Registrar", "Reset", "bundle retract")
		}
	}
	r.extension = TypeInfo{}
	r.members = nil
	r.allocated = make(map[TypeID]Kind)
	r.registered = false

	if typeName == "" && id.IsZero() {
		return TypeID{}, nil
	}
	if id.IsZero() {
		id = r.randomTIDLocked()
	}
	if err := r.allocateLocked(id, KindExtension); err != nil {
		return TypeID{}, err
	}
	r.extension = TypeInfo{ID: id, Kind: KindExtension, TypeName: typeName}
	return id, nil
}
