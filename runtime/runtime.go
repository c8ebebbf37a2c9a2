// Package runtime hosts components in-process: it owns the engine context
// handle, attaches and resolves components by identity, wires port
// connections, consults conditions to schedule operator ticks, and loads
// extension bundles described by manifests.
package runtime

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/weftworks/weft/component"
	"github.com/weftworks/weft/condition"
	"github.com/weftworks/weft/entity"
	"github.com/weftworks/weft/errors"
	"github.com/weftworks/weft/metric"
	"github.com/weftworks/weft/pkg/queue"
	"github.com/weftworks/weft/registrar"
)

// nextContextHandle distinguishes concurrently created runtimes. Handle zero
// stays reserved for "unbound".
var nextContextHandle atomic.Uint64

// attachment is one live component and its scheduling state.
type attachment struct {
	comp       component.Component
	identity   component.Identity
	conditions []component.Condition
	inPorts    map[string]component.EntityQueue
	outPorts   map[string]component.EntityQueue
	started    bool
}

// connection is one wired edge between two ports.
type connection struct {
	name string
	ring *queue.Ring[*entity.Entity]
}

// Pop implements component.EntityQueue.
func (c *connection) Pop() (*entity.Entity, bool) {
	return c.ring.Pop()
}

// Push implements component.EntityQueue.
func (c *connection) Push(e *entity.Entity) error {
	return c.ring.Push(e)
}

// Runtime is the in-process engine. All methods are safe for concurrent
// use.
type Runtime struct {
	handle  component.Context
	logger  *slog.Logger
	metrics *runtimeMetrics
	types   *typeTable

	mu          sync.Mutex
	nextEntity  uint64
	nextComp    uint64
	components  map[uint64]*attachment
	connections []*connection
	wake        chan struct{}
}

// Option configures a Runtime.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *metric.Registry
}

// WithLogger sets the runtime's structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics enables Prometheus instrumentation through the given
// registry.
func WithMetrics(registry *metric.Registry) Option {
	return func(o *options) { o.metrics = registry }
}

// New creates an empty runtime with a fresh context handle.
func New(opts ...Option) (*Runtime, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	metrics, err := newRuntimeMetrics(o.metrics)
	if err != nil {
		return nil, errors.WrapRuntime(err, "Runtime", "New", "metrics setup")
	}

	return &Runtime{
		handle:     component.Context(nextContextHandle.Add(1)),
		logger:     o.logger,
		metrics:    metrics,
		types:      newTypeTable(),
		components: make(map[uint64]*attachment),
		wake:       make(chan struct{}, 1),
	}, nil
}

// Context returns the runtime's engine context handle.
func (r *Runtime) Context() component.Context {
	return r.handle
}

// Registrar returns a registrar publishing into this runtime's type table.
func (r *Runtime) Registrar() *registrar.Registrar {
	return registrar.New(r.types)
}

// TypeName resolves a registered type id to its name.
func (r *Runtime) TypeName(id registrar.TypeID) (string, bool) {
	return r.types.TypeName(id)
}

// TypeNames returns every registered type name.
func (r *Runtime) TypeNames() []string {
	return r.types.names()
}

// UnloadExtension removes an extension bundle and all its types.
func (r *Runtime) UnloadExtension(id registrar.TypeID) error {
	if err := r.types.unload(id); err != nil {
		return errors.WrapRegistrar(err, "Runtime", "UnloadExtension", "type removal")
	}
	return nil
}

// NewEntity creates a detached entity owned by the caller. Payloads added
// to it move between operators by reference.
func (r *Runtime) NewEntity() *entity.Entity {
	return entity.New(nil)
}

// Attach configures, initializes, and binds a component, giving it a fresh
// identity under this runtime. The component arrives attached in the
// Initialized state; operators additionally need Start before ticking.
func (r *Runtime) Attach(c component.Component, params map[string]any) (component.Identity, error) {
	if err := component.Configure(c); err != nil {
		return component.Identity{}, err
	}
	if err := component.Initialize(c, params); err != nil {
		return component.Identity{}, err
	}

	r.mu.Lock()
	r.nextEntity++
	r.nextComp++
	id := component.Identity{
		Context:     r.handle,
		EntityID:    r.nextEntity,
		ComponentID: r.nextComp,
		Name:        c.Name(),
	}
	r.components[id.ComponentID] = &attachment{
		comp:     c,
		identity: id,
		inPorts:  make(map[string]component.EntityQueue),
		outPorts: make(map[string]component.EntityQueue),
	}
	active := len(r.components)
	r.mu.Unlock()

	if err := c.ComponentBase().Bind(id); err != nil {
		r.mu.Lock()
		delete(r.components, id.ComponentID)
		r.mu.Unlock()
		return component.Identity{}, err
	}

	r.metrics.setActive(active)
	r.logger.Debug("component attached",
		"component", id.Name, "eid", id.EntityID, "cid", id.ComponentID)
	return id, nil
}

// Resolve returns the live component an identity refers to. Identities from
// another context or from a destroyed component fail with a stale-identity
// error rather than resolving to a different component.
func (r *Runtime) Resolve(id component.Identity) (component.Component, error) {
	if id.Context != r.handle {
		return nil, errors.WrapBinding(
			fmt.Errorf("%w: foreign context", errors.ErrStaleIdentity),
			id.Name, "Resolve", "identity lookup")
	}

	r.mu.Lock()
	att, ok := r.components[id.ComponentID]
	r.mu.Unlock()
	if !ok || att.identity != id {
		return nil, errors.WrapBinding(errors.ErrStaleIdentity, id.Name, "Resolve", "identity lookup")
	}
	return att.comp, nil
}

// AttachCondition gates the identified operator with an attached condition.
// A non-nil params map runs the condition through Initialize so its bound
// parameters take effect; nil leaves it configured by its constructor.
// Asynchronous conditions get a scheduling term bound so their event
// transitions wake the scheduler.
func (r *Runtime) AttachCondition(operator component.Identity, cond component.Condition, params map[string]any) error {
	if _, err := r.Resolve(operator); err != nil {
		return err
	}
	if err := component.Configure(cond); err != nil {
		return err
	}
	if params != nil {
		if err := component.Initialize(cond, params); err != nil {
			return err
		}
	}

	r.mu.Lock()
	att := r.components[operator.ComponentID]
	att.conditions = append(att.conditions, cond)
	r.mu.Unlock()

	if async, ok := cond.(*condition.Asynchronous); ok {
		async.BindTerm(&wakeTerm{runtime: r})
	}
	return nil
}

// wakeTerm nudges the scheduler when an asynchronous condition changes
// state.
type wakeTerm struct {
	runtime *Runtime
}

func (w *wakeTerm) Notify(_ condition.EventState) {
	select {
	case w.runtime.wake <- struct{}{}:
	default:
	}
}

// DestroyComponent tears down a component and retires its identity. A
// second destroy through the same identity fails stale.
func (r *Runtime) DestroyComponent(id component.Identity) error {
	c, err := r.Resolve(id)
	if err != nil {
		return err
	}
	if err := component.Destroy(c); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.components, id.ComponentID)
	active := len(r.components)
	r.mu.Unlock()

	r.metrics.setActive(active)
	r.logger.Debug("component destroyed", "component", id.Name, "cid", id.ComponentID)
	return nil
}

// ConnectOption tunes one connection.
type ConnectOption func(*connectOptions)

type connectOptions struct {
	capacity int
	policy   queue.OverflowPolicy
}

// WithCapacity sets the connection queue depth. Default 16.
func WithCapacity(n int) ConnectOption {
	return func(o *connectOptions) { o.capacity = n }
}

// WithOverflowPolicy sets what a full connection does with new entities.
func WithOverflowPolicy(p queue.OverflowPolicy) ConnectOption {
	return func(o *connectOptions) { o.policy = p }
}

// Connect wires an output port of one operator to an input port of another
// through a bounded queue. Entities emitted on the edge are handed over by
// pointer; the queue never copies payloads.
func (r *Runtime) Connect(from component.Identity, fromPort string, to component.Identity, toPort string, opts ...ConnectOption) error {
	o := connectOptions{capacity: 16, policy: queue.Reject}
	for _, opt := range opts {
		opt(&o)
	}

	if _, err := r.Resolve(from); err != nil {
		return err
	}
	if _, err := r.Resolve(to); err != nil {
		return err
	}

	ring, err := queue.NewRing[*entity.Entity](o.capacity, queue.WithPolicy[*entity.Entity](o.policy))
	if err != nil {
		return errors.WrapRuntime(err, "Runtime", "Connect", "queue create")
	}
	conn := &connection{
		name: fmt.Sprintf("%s.%s->%s.%s", from.Name, fromPort, to.Name, toPort),
		ring: ring,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[from.ComponentID].outPorts[fromPort] = conn
	r.components[to.ComponentID].inPorts[toPort] = conn
	r.connections = append(r.connections, conn)
	return nil
}
