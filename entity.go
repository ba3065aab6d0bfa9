package frp

import (
	"fmt"

	"github.com/roach88/frp/internal/slots"
)

// EntityID identifies an entity. Slots are reused after an entity is
// removed; the generation tells successive occupants of a slot apart.
type EntityID slots.Index

// String formats the id as "slot#generation".
func (id EntityID) String() string {
	return fmt.Sprintf("%d#%d", id.Slot, id.Generation)
}

// Entity is a handle on an entity of a State. It does not own the entity's
// properties; copying it is cheap.
type Entity struct {
	state *State
	id    EntityID
}

// ID returns the entity's identifier.
func (e Entity) ID() EntityID {
	return e.id
}

// State returns the store the entity belongs to.
func (e Entity) State() *State {
	return e.state
}

// Valid reports whether the entity still exists.
func (e Entity) Valid() bool {
	if e.state == nil {
		return false
	}
	_, ok := e.state.w.lookup(e.id)
	return ok
}

// Len returns the number of properties registered on the entity.
func (e Entity) Len() int {
	_, _, t, rerr := e.scope()
	if rerr != nil {
		return 0
	}
	return t.len()
}

func (e Entity) scope() (*State, *Entity, *table, *RuntimeError) {
	if e.state == nil {
		return nil, nil, nil, newInvalidEntityError(e.id)
	}
	t, ok := e.state.w.lookup(e.id)
	if !ok {
		err := newInvalidEntityError(e.id)
		e.state.w.observer.Failed("", err)
		return nil, nil, nil, err
	}
	return e.state, &e, t, nil
}
