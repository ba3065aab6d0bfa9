// Package slots provides a slot arena: an indexed collection that hands out
// stable indices and reuses the holes left by removed values.
//
// Every slot carries a generation counter. An Index is the pair (slot,
// generation) and stops resolving once the slot is freed, even if the slot is
// later reused by another value.
//
// Arena is not safe for concurrent use; callers guard it themselves.
package slots

import (
	"container/heap"
	"fmt"
	"iter"
)

// Index addresses a value stored in an Arena.
type Index struct {
	// Slot is the position in the arena. Slots are reused after removal.
	Slot uint32
	// Generation distinguishes successive occupants of the same slot.
	Generation uint32
}

// String formats the index as "slot#generation".
func (i Index) String() string {
	return fmt.Sprintf("%d#%d", i.Slot, i.Generation)
}

type slot[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

// Arena stores values in slots and reuses the lowest free slot first.
type Arena[T any] struct {
	slots []slot[T]
	free  freeList
	live  int
}

// New creates an empty arena.
func New[T any]() *Arena[T] {
	return &Arena[T]{}
}

// Push stores value in the lowest free slot, or appends a new slot when there
// is no hole, and returns its index.
func (a *Arena[T]) Push(value T) Index {
	a.live++
	if a.free.Len() > 0 {
		n := heap.Pop(&a.free).(uint32)
		s := &a.slots[n]
		s.value = value
		s.occupied = true
		return Index{Slot: n, Generation: s.generation}
	}
	a.slots = append(a.slots, slot[T]{value: value, occupied: true})
	return Index{Slot: uint32(len(a.slots) - 1)}
}

// Remove takes the value out of the slot and leaves a hole for reuse.
// Removing an empty slot or a stale index panics.
func (a *Arena[T]) Remove(i Index) T {
	if !a.Valid(i) {
		panic(fmt.Sprintf("slots: remove of empty slot %s", i))
	}
	s := &a.slots[i.Slot]
	value := s.value
	var zero T
	s.value = zero
	s.occupied = false
	s.generation++
	heap.Push(&a.free, i.Slot)
	a.live--
	return value
}

// Valid reports whether i refers to an occupied slot of the same generation.
func (a *Arena[T]) Valid(i Index) bool {
	if int(i.Slot) >= len(a.slots) {
		return false
	}
	s := &a.slots[i.Slot]
	return s.occupied && s.generation == i.Generation
}

// Get returns the value at i.
func (a *Arena[T]) Get(i Index) (T, bool) {
	if !a.Valid(i) {
		var zero T
		return zero, false
	}
	return a.slots[i.Slot].value, true
}

// Ptr returns a pointer to the value at i for in-place mutation, or nil when
// i does not resolve. The pointer is invalidated by the next Push.
func (a *Arena[T]) Ptr(i Index) *T {
	if !a.Valid(i) {
		return nil
	}
	return &a.slots[i.Slot].value
}

// Len returns the number of occupied slots.
func (a *Arena[T]) Len() int {
	return a.live
}

// Cap returns the number of slots ever allocated (the high-water mark).
func (a *Arena[T]) Cap() int {
	return len(a.slots)
}

// All yields the occupied slots in index order. It reads the live contents on
// every call and can be ranged over more than once.
func (a *Arena[T]) All() iter.Seq2[Index, T] {
	return func(yield func(Index, T) bool) {
		for n := 0; n < len(a.slots); n++ {
			s := a.slots[n]
			if !s.occupied {
				continue
			}
			if !yield(Index{Slot: uint32(n), Generation: s.generation}, s.value) {
				return
			}
		}
	}
}

// freeList is a min-heap of free slot numbers.
type freeList []uint32

func (f freeList) Len() int           { return len(f) }
func (f freeList) Less(i, j int) bool { return f[i] < f[j] }
func (f freeList) Swap(i, j int)      { f[i], f[j] = f[j], f[i] }

func (f *freeList) Push(x any) {
	*f = append(*f, x.(uint32))
}

func (f *freeList) Pop() any {
	old := *f
	n := len(old)
	x := old[n-1]
	*f = old[:n-1]
	return x
}
