package component

// State represents the current lifecycle state of a component.
type State int

const (
	// StateUnbound indicates the component was constructed but Setup has
	// not yet declared its parameter schema.
	StateUnbound State = iota
	// StateConfigured indicates Setup declared the parameter schema.
	StateConfigured
	// StateInitialized indicates parameters were bound and resource
	// dependencies resolved.
	StateInitialized
	// StateStarted indicates the operator is between Start and Stop,
	// eligible for ticking.
	StateStarted
	// StateRunning indicates a tick is currently in flight.
	StateRunning
	// StateStopped indicates the tick sequence has been bracketed off.
	StateStopped
	// StateDestroyed indicates teardown happened; terminal.
	StateDestroyed
)

// String returns a string representation of the component state.
func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateConfigured:
		return "configured"
	case StateInitialized:
		return "initialized"
	case StateStarted:
		return "started"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// canTransition reports whether moving from one state to another is legal.
// The lifecycle only moves forward, with two exceptions: the Running/Started
// alternation of repeated ticks, and Destroy, which is reachable from every
// non-destroyed state.
func canTransition(from, to State) bool {
	if to == StateDestroyed {
		return from != StateDestroyed
	}
	switch from {
	case StateUnbound:
		return to == StateConfigured
	case StateConfigured:
		return to == StateInitialized
	case StateInitialized:
		return to == StateStarted
	case StateStarted:
		return to == StateRunning || to == StateStopped
	case StateRunning:
		return to == StateStarted
	default:
		return false
	}
}
