// Package component defines the typed component lifecycle and
// parameter-binding contract shared by operators, conditions, and resources,
// together with the per-tick I/O and execution contexts operators use to
// exchange entities with the external engine.
package component

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/weftworks/weft/errors"
)

// Context is the opaque runtime-context handle supplied by the external
// engine. The bridge never interprets its bits, only passes it through. The
// zero value means "not bound to any engine".
type Context uint64

// Identity addresses a live component inside the external engine: the
// context handle plus (entity id, component id, name). The triplet is unique
// among live components; the name is unique within its entity. Pure value
// type.
type Identity struct {
	Context     Context
	EntityID    uint64
	ComponentID uint64
	Name        string
}

// Bound reports whether the identity refers to an engine context.
func (id Identity) Bound() bool {
	return id.Context != 0
}

// String formats the identity for error messages and logs.
func (id Identity) String() string {
	return fmt.Sprintf("%s (eid=%d cid=%d)", id.Name, id.EntityID, id.ComponentID)
}

// Component is the behavior contract every specialization shares. Concrete
// components embed *Base for the lifecycle plumbing and implement Setup to
// declare their parameter schema.
type Component interface {
	Name() string
	ComponentBase() *Base
	Setup(spec *Spec) error
}

// Initializer is an optional capability: components that need to read bound
// parameter values into their own state implement it, and Initialize invokes
// OnInitialize after binding succeeds. An OnInitialize error leaves the
// component in Configured.
type Initializer interface {
	OnInitialize() error
}

// Operator is invoked once per scheduling tick. Start and Stop bracket the
// tick sequence and are the place to acquire and release expensive per-run
// resources. Tick must not block indefinitely: waits for external events go
// through an asynchronous condition, never through a blocking call inside
// Tick.
type Operator interface {
	Component
	Start(ctx context.Context) error
	Tick(ec *ExecutionContext) error
	Stop() error
}

// Condition is queried by the scheduler to decide operator eligibility.
// Check runs on a scheduler-owned thread and must return promptly.
type Condition interface {
	Component
	Check(ctx context.Context) (bool, error)
}

// Resource is a shared, passive service resolved during Initialize, such as
// an allocator. Resources expose no scheduler-visible operations; the bridge
// guarantees a resource is initialized exactly once before first use, while
// the mutual-exclusion discipline of its own methods is the resource's own
// contract.
type Resource interface {
	Component
}

// Base carries the state every component owns: its name, lifecycle state,
// parameter table, and — once attached to the engine — its Identity. Embed a
// *Base created with NewBase in each concrete component.
type Base struct {
	mu       sync.Mutex
	name     string
	state    State
	spec     *Spec
	identity Identity
	logger   *slog.Logger
}

// BaseOption configures a Base.
type BaseOption func(*Base)

// WithLogger sets the structured logger used for lifecycle events.
func WithLogger(logger *slog.Logger) BaseOption {
	return func(b *Base) { b.logger = logger }
}

// NewBase creates the shared component base.
func NewBase(name string, opts ...BaseOption) *Base {
	b := &Base{name: name}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Name returns the component name.
func (b *Base) Name() string {
	return b.name
}

// ComponentBase returns the base itself, satisfying the Component contract
// for embedders. The name avoids colliding with the embedded field, which
// would otherwise shadow the promoted method.
func (b *Base) ComponentBase() *Base {
	return b
}

// State returns the current lifecycle state.
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Identity returns the engine identity, zero until Bind.
func (b *Base) Identity() Identity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.identity
}

// Logger returns the component's structured logger.
func (b *Base) Logger() *slog.Logger {
	return b.logger
}

// Bind attaches the engine identity. Rebinding a live component is a
// binding error.
func (b *Base) Bind(id Identity) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.identity.Bound() {
		return errors.WrapBinding(errors.ErrAlreadyBound, b.name, "Bind", "identity attach")
	}
	if b.state == StateDestroyed {
		return errors.WrapBinding(errors.ErrStaleIdentity, b.name, "Bind", "identity attach")
	}
	b.identity = id
	return nil
}

// Param returns the bound value (or declared default) of a parameter.
func (b *Base) Param(name string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.spec == nil {
		return nil, false
	}
	return b.spec.value(name)
}

// ParamAs returns a parameter value asserted to type T.
func ParamAs[T any](b *Base, name string) (T, bool) {
	var zero T
	v, ok := b.Param(name)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// ParamInt returns an integer parameter, coercing the numeric types YAML and
// JSON decoders produce.
func ParamInt(b *Base, name string) (int64, bool) {
	v, ok := b.Param(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// advance moves the lifecycle forward, rejecting illegal transitions.
func (b *Base) advance(to State) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !canTransition(b.state, to) {
		return fmt.Errorf("%w: %s -> %s", errors.ErrLifecycleOrder, b.state, to)
	}
	b.state = to
	return nil
}

// Configure runs the component's Setup exactly once, capturing the declared
// parameter schema. Calling it twice, or after Initialize, is a
// configuration error rejected eagerly.
func Configure(c Component) error {
	b := c.ComponentBase()

	b.mu.Lock()
	if b.state != StateUnbound {
		b.mu.Unlock()
		return errors.WrapConfig(errors.ErrSetupAlreadyCalled, b.name, "Configure", "setup ordering")
	}
	b.mu.Unlock()

	spec := NewSpec()
	if err := c.Setup(spec); err != nil {
		return errors.WrapConfig(err, b.name, "Configure", "parameter declaration")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateUnbound {
		return errors.WrapConfig(errors.ErrSetupAlreadyCalled, b.name, "Configure", "setup ordering")
	}
	b.spec = spec
	b.state = StateConfigured
	return nil
}

// Initialize binds declared parameters to concrete values. It must follow
// Configure and runs at most once per lifecycle; failures identify the
// offending parameter and are fatal to this component's startup.
func Initialize(c Component, values map[string]any) error {
	b := c.ComponentBase()

	b.mu.Lock()
	switch b.state {
	case StateUnbound:
		b.mu.Unlock()
		return errors.WrapConfig(errors.ErrSetupNotCalled, b.name, "Initialize", "setup ordering")
	case StateConfigured:
		// proceed
	default:
		b.mu.Unlock()
		return errors.WrapConfig(
			fmt.Errorf("%w: initialize in state %s", errors.ErrLifecycleOrder, b.state),
			b.name, "Initialize", "lifecycle ordering")
	}

	if err := b.spec.bind(values); err != nil {
		b.mu.Unlock()
		return errors.WrapConfig(err, b.name, "Initialize", "parameter binding")
	}
	b.mu.Unlock()

	if init, ok := c.(Initializer); ok {
		if err := init.OnInitialize(); err != nil {
			return errors.WrapConfig(err, b.name, "Initialize", "component initialization")
		}
	}

	b.mu.Lock()
	b.state = StateInitialized
	b.mu.Unlock()

	b.logger.Debug("component initialized", "component", b.name)
	return nil
}

// Start brackets on the operator's tick sequence.
func Start(ctx context.Context, op Operator) error {
	b := op.ComponentBase()
	if err := b.advance(StateStarted); err != nil {
		return errors.WrapConfig(err, b.name, "Start", "lifecycle ordering")
	}
	if err := op.Start(ctx); err != nil {
		return errors.Wrap(err, b.name, "Start", "operator start")
	}
	return nil
}

// Tick runs one scheduling cycle. A panic inside Tick is recovered and
// surfaced as a runtime operator failure associated with the operator's
// Identity; the lifecycle state and identity stay intact either way.
func Tick(op Operator, ec *ExecutionContext) (err error) {
	b := op.ComponentBase()
	if advErr := b.advance(StateRunning); advErr != nil {
		return errors.WrapConfig(advErr, b.name, "Tick", "lifecycle ordering")
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.WrapRuntime(
				fmt.Errorf("tick panicked: %v", r),
				b.identity.String(), "Tick", "operator tick")
		}
		// Return to Started regardless of tick outcome.
		if advErr := b.advance(StateStarted); advErr != nil && err == nil {
			err = errors.WrapConfig(advErr, b.name, "Tick", "lifecycle ordering")
		}
	}()

	if tickErr := op.Tick(ec); tickErr != nil {
		return errors.WrapRuntime(tickErr, b.identity.String(), "Tick", "operator tick")
	}
	return nil
}

// Stop brackets off the operator's tick sequence.
func Stop(op Operator) error {
	b := op.ComponentBase()
	if err := b.advance(StateStopped); err != nil {
		return errors.WrapConfig(err, b.name, "Stop", "lifecycle ordering")
	}
	if err := op.Stop(); err != nil {
		return errors.Wrap(err, b.name, "Stop", "operator stop")
	}
	return nil
}

// Destroy tears the component down exactly once. A second Destroy is a
// binding error: the identity is dead and must not be reused.
func Destroy(c Component) error {
	b := c.ComponentBase()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateDestroyed {
		return errors.WrapBinding(errors.ErrStaleIdentity, b.name, "Destroy", "double destroy")
	}
	b.state = StateDestroyed
	return nil
}
