package slots

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArena_PushAssignsSequentialSlots(t *testing.T) {
	a := New[string]()

	i0 := a.Push("a")
	i1 := a.Push("b")
	i2 := a.Push("c")

	assert.Equal(t, Index{Slot: 0}, i0)
	assert.Equal(t, Index{Slot: 1}, i1)
	assert.Equal(t, Index{Slot: 2}, i2)
	assert.Equal(t, 3, a.Len())
	assert.Equal(t, 3, a.Cap())
}

func TestArena_GetAndPtr(t *testing.T) {
	a := New[int]()
	i := a.Push(41)

	v, ok := a.Get(i)
	require.True(t, ok)
	assert.Equal(t, 41, v)

	p := a.Ptr(i)
	require.NotNil(t, p)
	*p++

	v, _ = a.Get(i)
	assert.Equal(t, 42, v)
}

func TestArena_GetOutOfBounds(t *testing.T) {
	a := New[int]()

	_, ok := a.Get(Index{Slot: 7})
	assert.False(t, ok)
	assert.Nil(t, a.Ptr(Index{Slot: 7}))
}

func TestArena_RemoveReturnsValueAndLeavesHole(t *testing.T) {
	a := New[string]()
	a.Push("a")
	i1 := a.Push("b")
	a.Push("c")

	got := a.Remove(i1)
	assert.Equal(t, "b", got)
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, 3, a.Cap())

	_, ok := a.Get(i1)
	assert.False(t, ok, "removed slot should be empty")
}

func TestArena_RemoveEmptySlotPanics(t *testing.T) {
	a := New[int]()
	i := a.Push(1)
	a.Remove(i)

	assert.Panics(t, func() { a.Remove(i) })
	assert.Panics(t, func() { a.Remove(Index{Slot: 99}) })
}

func TestArena_ReusesFreedSlotWithNewGeneration(t *testing.T) {
	a := New[string]()
	first := a.Push("a")
	a.Remove(first)

	second := a.Push("b")
	assert.Equal(t, first.Slot, second.Slot, "hole should be reused")
	assert.Equal(t, first.Generation+1, second.Generation)

	assert.False(t, a.Valid(first), "old index must not resolve to the new occupant")
	v, ok := a.Get(second)
	require.True(t, ok)
	assert.Equal(t, "b", v)
}

func TestArena_ReusesLowestHoleFirst(t *testing.T) {
	a := New[int]()
	idx := make([]Index, 5)
	for n := range idx {
		idx[n] = a.Push(n)
	}
	a.Remove(idx[3])
	a.Remove(idx[1])

	assert.Equal(t, uint32(1), a.Push(10).Slot)
	assert.Equal(t, uint32(3), a.Push(11).Slot)
	assert.Equal(t, uint32(5), a.Push(12).Slot)
}

func TestArena_AllSkipsHolesInOrder(t *testing.T) {
	a := New[string]()
	a.Push("a")
	b := a.Push("b")
	a.Push("c")
	a.Remove(b)

	var got []string
	for _, v := range a.All() {
		got = append(got, v)
	}
	assert.Equal(t, []string{"a", "c"}, got)
}

func TestArena_AllReflectsLiveContents(t *testing.T) {
	a := New[int]()
	a.Push(1)
	seq := a.All()

	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	assert.Equal(t, 1, count())

	a.Push(2)
	assert.Equal(t, 2, count(), "re-ranging should observe the new value")
}

func TestArena_AllStopsEarly(t *testing.T) {
	a := New[int]()
	for n := 0; n < 4; n++ {
		a.Push(n)
	}

	var seen []int
	for _, v := range a.All() {
		seen = append(seen, v)
		if v == 1 {
			break
		}
	}
	assert.Equal(t, []int{0, 1}, seen)
}

func TestIndex_String(t *testing.T) {
	assert.Equal(t, "3#2", Index{Slot: 3, Generation: 2}.String())
}
