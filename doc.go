// Package weft provides the adapter contract that lets user-authored
// processing components cross the boundary between a high-level object model
// and an external event-driven dataflow engine without copying bulk data.
//
// # Architecture
//
// Weft is organized around four tightly coupled pieces:
//
//	┌─────────────────────────────────────┐
//	│          Registrar                  │  Type identifiers,
//	│  (allocate, add, register, reset)   │  extension sessions
//	└─────────────────────────────────────┘
//	           ↓ publishes types to
//	┌─────────────────────────────────────┐
//	│          Runtime                    │  Identities, entity arena,
//	│  (attach, connect, dispatch)        │  port queues, scheduling terms
//	└─────────────────────────────────────┘
//	           ↓ drives lifecycle of
//	┌─────────────────────────────────────┐
//	│         Components                  │  Operators, Conditions,
//	│  (setup, initialize, tick, stop)    │  Resources
//	└─────────────────────────────────────┘
//	           ↓ exchange data via
//	┌─────────────────────────────────────┐
//	│     Entity / Tensor interchange     │  Zero-copy descriptors,
//	│  (describe, capsule, video layout)  │  capsule hand-off
//	└─────────────────────────────────────┘
//
// # Packages
//
// Core contract:
//   - component: component base, lifecycle states, parameter specs,
//     operator/condition/resource contracts, I/O and execution contexts
//   - entity: entities, tensors, interchange descriptors, capsules, the
//     backing memory arena
//   - condition: scheduling conditions, including the asynchronous
//     tri-state condition settable from any thread
//   - registrar: type identifiers and extension registration sessions
//
// Runtime boundary:
//   - runtime: the in-process reference runtime implementing the engine
//     boundary (entity creation, identities, port queues, dispatch,
//     extension loading)
//   - resource: shared services resolved during initialize, such as the
//     arena-backed block allocator
//
// Infrastructure:
//   - errors: classified error handling (config, binding, interchange,
//     registrar, runtime)
//   - config: extension manifest loading and validation
//   - metric: Prometheus metrics registry
//   - pkg/queue: bounded non-blocking ring queues backing ports
//
// # Lifecycle
//
// Every component flows through the same states:
//
//	Unbound → Configured → Initialized → Started → Running ⇄ Started → Stopped → Destroyed
//
// Setup declares the parameter schema, Initialize binds values and resolves
// resource dependencies, Start/Stop bracket the tick sequence, and Destroy
// runs exactly once. Components never re-enter an earlier state except the
// Running/Started alternation of repeated ticks.
package weft
