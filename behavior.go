package frp

import (
	"fmt"
	"sync"
)

// Kind enumerates the behavior variants.
type Kind uint8

const (
	KindConstant Kind = iota + 1
	KindAlias
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindConstant:
		return "constant"
	case KindAlias:
		return "alias"
	case KindStorage:
		return "storage"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Behavior computes the value of a property of type T.
//
// Behaviors are built with Constant, Alias and Storage.
type Behavior[T any] interface {
	Kind() Kind
	produce(s *State, e *Entity) T
}

// AliasFunc computes a value from the store. e is nil for global properties.
type AliasFunc[T any] func(s *State, e *Entity) T

// StorageFunc computes a value from the store and the behavior's private
// state, which it may update in place. e is nil for global properties.
type StorageFunc[S, T any] func(state *S, s *State, e *Entity) T

// Cloner is implemented by values that must not be shared between reads of a
// Constant behavior.
type Cloner[T any] interface {
	Clone() T
}

// Constant returns a behavior that always yields v.
func Constant[T any](v T) Behavior[T] {
	return constant[T]{value: v}
}

// Alias returns a behavior that calls fn on every read.
func Alias[T any](fn AliasFunc[T]) Behavior[T] {
	if fn == nil {
		panic("frp: nil alias function")
	}
	return alias[T]{fn: fn}
}

// Storage returns a behavior with private state initialised to initial.
// Each read runs fn with exclusive access to the state; the state left by one
// read is the input of the next.
func Storage[S, T any](initial S, fn StorageFunc[S, T]) Behavior[T] {
	if fn == nil {
		panic("frp: nil storage function")
	}
	return &storage[S, T]{state: initial, fn: fn}
}

type constant[T any] struct {
	value T
}

func (constant[T]) Kind() Kind { return KindConstant }

func (c constant[T]) produce(*State, *Entity) T {
	if cl, ok := any(c.value).(Cloner[T]); ok {
		return cl.Clone()
	}
	return c.value
}

type alias[T any] struct {
	fn AliasFunc[T]
}

func (alias[T]) Kind() Kind { return KindAlias }

func (a alias[T]) produce(s *State, e *Entity) T {
	return a.fn(s, e)
}

type storage[S, T any] struct {
	mu    sync.Mutex
	state S
	fn    StorageFunc[S, T]
}

func (*storage[S, T]) Kind() Kind { return KindStorage }

func (b *storage[S, T]) produce(s *State, e *Entity) T {
	if s.trail.contains(b) {
		panic(s.recursion(s.trail.top(), e))
	}
	if !b.mu.TryLock() {
		panic(s.busy(s.trail.top(), e))
	}
	defer b.mu.Unlock()

	inner, ie := s.descend(b, "", e)
	return b.fn(&b.state, inner, ie)
}

// evaluator is the type-erased view of a Behavior kept in property tables.
type evaluator interface {
	Kind() Kind
	evaluate(s *State, e *Entity) any
}

type erased[T any] struct {
	b Behavior[T]
}

func (x erased[T]) Kind() Kind { return x.b.Kind() }

func (x erased[T]) evaluate(s *State, e *Entity) any {
	return x.b.produce(s, e)
}
