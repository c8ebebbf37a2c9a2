// Package condition provides the scheduling conditions the runtime consults
// to decide operator eligibility: event-driven (Asynchronous), gate-style
// (Boolean), budgeted (Count), and clocked (Periodic).
package condition

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/weftworks/weft/component"
	"github.com/weftworks/weft/errors"
)

// EventState is the tri-state of an asynchronous condition.
type EventState int32

const (
	// EventWaiting means the awaited external event has not happened yet;
	// the operator is not eligible.
	EventWaiting EventState = iota
	// EventDone means the event happened; the operator is eligible until
	// the scheduler consumes the tick.
	EventDone
	// EventNever means the event source has retired; the operator will
	// not become eligible again unless explicitly revived.
	EventNever
)

// String returns the event state name.
func (s EventState) String() string {
	switch s {
	case EventWaiting:
		return "waiting"
	case EventDone:
		return "done"
	case EventNever:
		return "never"
	default:
		return "unknown"
	}
}

// SchedulingTerm is the engine-side hook an asynchronous condition drives.
// The runtime binds one per attached condition; until then state changes
// stay local.
type SchedulingTerm interface {
	Notify(state EventState)
}

// Asynchronous gates an operator on an external event. Producers call
// SetEventState from any goroutine; the scheduler observes eligibility
// through Check. The event state is the one designated cross-thread
// variable, held in an atomic with compare-and-swap transitions. With no
// scheduling term bound the condition degrades to a local state holder
// rather than failing, so components can be exercised outside a running
// engine.
type Asynchronous struct {
	*component.Base

	state atomic.Int32
	term  atomic.Pointer[termBox]
}

// termBox wraps the term interface so it fits an atomic.Pointer.
type termBox struct {
	term SchedulingTerm
}

var _ component.Condition = (*Asynchronous)(nil)

// NewAsynchronous creates an asynchronous condition in the waiting state.
func NewAsynchronous(name string, opts ...component.BaseOption) *Asynchronous {
	return &Asynchronous{Base: component.NewBase(name, opts...)}
}

// Setup declares no parameters.
func (a *Asynchronous) Setup(_ *component.Spec) error {
	return nil
}

// BindTerm attaches the engine-side scheduling term. The current state is
// published immediately so a term bound late does not miss an event.
func (a *Asynchronous) BindTerm(term SchedulingTerm) {
	if term == nil {
		a.term.Store(nil)
		return
	}
	a.term.Store(&termBox{term: term})
	term.Notify(a.EventState())
}

func (a *Asynchronous) notify(state EventState) {
	if box := a.term.Load(); box != nil {
		box.term.Notify(state)
	}
}

// SetEventState records an event transition. Leaving the never state toward
// done is rejected: a retired source cannot signal completion. The one legal
// exit from never is back to waiting, an explicit revival.
func (a *Asynchronous) SetEventState(state EventState) error {
	for {
		cur := EventState(a.state.Load())
		if cur == EventNever && state == EventDone {
			return errors.WrapRuntime(
				fmt.Errorf("%w: never -> done", errors.ErrConditionRetired),
				a.Name(), "SetEventState", "event transition")
		}
		if a.state.CompareAndSwap(int32(cur), int32(state)) {
			a.notify(state)
			return nil
		}
	}
}

// EventState returns the current event state.
func (a *Asynchronous) EventState() EventState {
	return EventState(a.state.Load())
}

// Check reports eligibility: true only while the event is done.
func (a *Asynchronous) Check(_ context.Context) (bool, error) {
	return a.EventState() == EventDone, nil
}

// Consume flips a done condition back to waiting, typically called by the
// scheduler after granting the tick the event earned.
func (a *Asynchronous) Consume() {
	if a.state.CompareAndSwap(int32(EventDone), int32(EventWaiting)) {
		a.notify(EventWaiting)
	}
}
