package component

import (
	"fmt"

	"github.com/weftworks/weft/entity"
	"github.com/weftworks/weft/errors"
)

// EntityQueue is the engine boundary a port drains or fills. The runtime
// supplies implementations backed by its connection queues; tests substitute
// in-memory fakes.
type EntityQueue interface {
	// Pop removes and returns the oldest entity, reporting false when the
	// queue is empty.
	Pop() (*entity.Entity, bool)
	// Push appends an entity. A full queue surfaces errors.ErrQueueFull.
	Push(*entity.Entity) error
}

// InputContext exposes an operator's named input ports for one tick.
type InputContext struct {
	ports map[string]EntityQueue
}

// NewInputContext builds an input context over the given port queues.
func NewInputContext(ports map[string]EntityQueue) *InputContext {
	return &InputContext{ports: ports}
}

// Receive pops the next entity waiting on the named port. An empty port
// returns (nil, false); this is an observation, not an error. Entities move
// by reference only: the pointer received is the pointer the upstream
// emitter pushed.
func (ic *InputContext) Receive(port string) (*entity.Entity, bool) {
	q, ok := ic.ports[port]
	if !ok {
		return nil, false
	}
	return q.Pop()
}

// OutputContext exposes an operator's named output ports for one tick.
type OutputContext struct {
	ports map[string]EntityQueue
}

// NewOutputContext builds an output context over the given port queues.
func NewOutputContext(ports map[string]EntityQueue) *OutputContext {
	return &OutputContext{ports: ports}
}

// Emit pushes an entity on the named port without copying its payload. An
// unknown port or a full downstream queue is an error the operator can
// observe within the same tick.
func (oc *OutputContext) Emit(e *entity.Entity, port string) error {
	q, ok := oc.ports[port]
	if !ok {
		return errors.WrapRuntime(
			fmt.Errorf("%w: %q", errors.ErrPortUnknown, port),
			"OutputContext", "Emit", "port lookup")
	}
	if err := q.Push(e); err != nil {
		return errors.WrapRuntime(err, "OutputContext", "Emit", "downstream enqueue")
	}
	return nil
}

// ExecutionContext is handed to an operator on every tick. It bundles the
// engine context handle, the operator's identity, and the tick's I/O
// contexts.
type ExecutionContext struct {
	context  Context
	identity Identity
	input    *InputContext
	output   *OutputContext
}

// NewExecutionContext assembles a per-tick execution context.
func NewExecutionContext(ctx Context, id Identity, in *InputContext, out *OutputContext) *ExecutionContext {
	if in == nil {
		in = NewInputContext(nil)
	}
	if out == nil {
		out = NewOutputContext(nil)
	}
	return &ExecutionContext{context: ctx, identity: id, input: in, output: out}
}

// Context returns the engine context handle for the tick.
func (ec *ExecutionContext) Context() Context {
	return ec.context
}

// Identity returns the ticking operator's identity.
func (ec *ExecutionContext) Identity() Identity {
	return ec.identity
}

// Input returns the tick's input context.
func (ec *ExecutionContext) Input() *InputContext {
	return ec.input
}

// Output returns the tick's output context.
func (ec *ExecutionContext) Output() *OutputContext {
	return ec.output
}

// Receive is shorthand for Input().Receive.
func (ec *ExecutionContext) Receive(port string) (*entity.Entity, bool) {
	return ec.input.Receive(port)
}

// Emit is shorthand for Output().Emit.
func (ec *ExecutionContext) Emit(e *entity.Entity, port string) error {
	return ec.output.Emit(e, port)
}
