// Package frp implements a pull-based reactive state store.
//
// A State holds a set of properties. Each property is identified by a Go type
// (or a name, see Named) and has a Behavior attached that computes its value
// whenever it is read. Behaviors may read other properties through the State
// and Entity handles they are given, so a single Get call evaluates the whole
// dependency chain implied by the behavior bodies. Nothing is cached between
// reads and nothing is pushed: every read re-runs the chain.
//
// Three kinds of behavior exist:
//
//   - Constant: always yields the same value.
//   - Alias: a function of the store, re-invoked on every read.
//   - Storage: a function with private state that persists across reads.
//
// Properties live either on the State itself (globals) or on entities created
// with State.CreateEntity. Per-entity behaviors receive their entity so they
// can read sibling properties.
//
// # Example
//
//	type Clock struct{ frp.Of[float64] }
//	type Speed struct{ frp.Of[float64] }
//	type Distance struct{ frp.Of[float64] }
//
//	st := frp.New()
//	frp.Add(st, Speed{}, frp.Constant(2.0))
//	frp.Add(st, Clock{}, frp.Alias(func(s *frp.State, _ *frp.Entity) float64 {
//		return now()
//	}))
//	frp.Add(st, Distance{}, frp.Storage(0.0, func(last *float64, s *frp.State, _ *frp.Entity) float64 {
//		...
//	}))
//	d, ok := frp.Get(st, Distance{})
//
// # Failure modes
//
// A missing property, or a value that does not have the requested type, reads
// as absent (ok == false). Reading a property that is already being evaluated
// further up the same call chain, or using a handle to a removed entity, is a
// wiring defect: Get panics with a *RuntimeError and TryGet returns it.
//
// # Concurrency
//
// A State may be read from several goroutines, and independent properties
// evaluate in parallel. Reads never wait on each other: reading an Alias or
// Storage property while it is being evaluated outside the reader's own call
// chain fails with ErrCodeBusy. Behaviors must read through the handles they
// are passed, otherwise re-entry is reported as busy rather than recursive.
package frp
