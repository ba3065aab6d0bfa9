package frp

import (
	"iter"
	"log/slog"
	"sync"

	"github.com/roach88/frp/internal/slots"
)

// State is the store: it owns the global properties and the entities.
//
// The *State passed to a behavior is a handle onto the same store that also
// carries the evaluation trail of the current read.
type State struct {
	w     *world
	trail *trail
}

// world is the shared part of every handle on one store.
type world struct {
	globals *table

	mu       sync.Mutex // guards entities
	entities *slots.Arena[*table]

	observer Observer
	logger   *slog.Logger
}

// Option configures a State.
type Option func(*world)

// WithObserver installs an observer notified about every evaluation.
func WithObserver(o Observer) Option {
	return func(w *world) {
		w.observer = o
	}
}

// WithLogger sets the logger used for entity lifecycle and runtime errors.
func WithLogger(l *slog.Logger) Option {
	return func(w *world) {
		w.logger = l
	}
}

// New creates an empty store.
func New(opts ...Option) *State {
	w := &world{
		globals:  newTable(""),
		entities: slots.New[*table](),
		observer: nopObserver{},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.observer == nil {
		w.observer = nopObserver{}
	}
	return &State{w: w}
}

// Reader is implemented by *State (global properties) and Entity
// (per-entity properties).
type Reader interface {
	scope() (*State, *Entity, *table, *RuntimeError)
}

func (s *State) scope() (*State, *Entity, *table, *RuntimeError) {
	return s, nil, s.w.globals, nil
}

// Add registers b as the behavior of p on r, replacing any previous one.
// It fails only when r is a handle to a removed entity.
//
// Alias and Storage functions must read through the *State and *Entity they
// are passed. A read through any other handle, such as a State captured when
// the behavior was built, is outside the call chain: re-entering the same
// property that way fails with ErrCodeBusy instead of ErrCodeRecursiveBehavior.
func Add[T any](r Reader, p Property[T], b Behavior[T]) error {
	if b == nil {
		panic("frp: nil behavior")
	}
	s, e, t, rerr := r.scope()
	if rerr != nil {
		return rerr
	}
	k := keyOf(p)
	t.insert(k, erased[T]{b: b})
	if e != nil {
		s.w.logger.Debug("property added", "property", k.String(), "kind", b.Kind().String(), "entity", e.id.String())
	} else {
		s.w.logger.Debug("property added", "property", k.String(), "kind", b.Kind().String())
	}
	return nil
}

// Get reads p from r. ok is false when p is not registered or its value is
// not a T. Runtime errors panic with a *RuntimeError.
func Get[T any](r Reader, p Property[T]) (T, bool) {
	s, e, t, rerr := r.scope()
	if rerr != nil {
		panic(rerr)
	}
	raw, found := t.read(s, e, keyOf(p))
	if !found {
		var zero T
		return zero, false
	}
	v, ok := raw.(T)
	return v, ok
}

// TryGet is Get returning runtime errors instead of panicking.
func TryGet[T any](r Reader, p Property[T]) (value T, ok bool, err error) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		re, isRuntime := rec.(*RuntimeError)
		if !isRuntime {
			panic(rec)
		}
		var zero T
		value, ok, err = zero, false, re
	}()
	value, ok = Get(r, p)
	return value, ok, nil
}

// Has reports whether p is registered on r.
func Has[T any](r Reader, p Property[T]) bool {
	_, _, t, rerr := r.scope()
	if rerr != nil {
		return false
	}
	return t.has(keyOf(p))
}

// InProgress reports whether p is currently being evaluated on r by any
// goroutine. Constants are never in progress.
func InProgress[T any](r Reader, p Property[T]) bool {
	_, _, t, rerr := r.scope()
	if rerr != nil {
		return false
	}
	st, ok := t.status(keyOf(p))
	return ok && st == statusInProgress
}

// CreateEntity allocates a new entity with no properties.
func (s *State) CreateEntity() Entity {
	s.w.mu.Lock()
	t := newTable("")
	idx := s.w.entities.Push(t)
	id := EntityID(idx)
	t.owner = id.String()
	s.w.mu.Unlock()

	s.w.logger.Debug("entity created", "entity", id.String())
	return Entity{state: s, id: id}
}

// Entity returns a handle for id, or false if the entity was removed.
func (s *State) Entity(id EntityID) (Entity, bool) {
	if _, ok := s.w.lookup(id); !ok {
		return Entity{}, false
	}
	return Entity{state: s, id: id}, true
}

// RemoveEntity removes the entity and drops its properties. Handles and ids
// referring to it stop resolving, even after its slot is reused.
func (s *State) RemoveEntity(id EntityID) error {
	s.w.mu.Lock()
	if !s.w.entities.Valid(slots.Index(id)) {
		s.w.mu.Unlock()
		return newInvalidEntityError(id)
	}
	t := s.w.entities.Remove(slots.Index(id))
	s.w.mu.Unlock()

	t.clear()
	s.w.logger.Debug("entity removed", "entity", id.String())
	return nil
}

// Entities yields a handle for every live entity in slot order. Entities
// removed while iterating are skipped.
func (s *State) Entities() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		s.w.mu.Lock()
		ids := make([]EntityID, 0, s.w.entities.Len())
		for idx := range s.w.entities.All() {
			ids = append(ids, EntityID(idx))
		}
		s.w.mu.Unlock()

		for _, id := range ids {
			if _, ok := s.w.lookup(id); !ok {
				continue
			}
			if !yield(Entity{state: s, id: id}) {
				return
			}
		}
	}
}

// EntityCount returns the number of live entities.
func (s *State) EntityCount() int {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	return s.w.entities.Len()
}

func (w *world) lookup(id EntityID) (*table, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.entities.Get(slots.Index(id))
}

// descend returns the handles passed to a behavior evaluated under token.
func (s *State) descend(token any, label string, e *Entity) (*State, *Entity) {
	inner := &State{w: s.w, trail: s.trail.push(token, label)}
	if e == nil {
		return inner, nil
	}
	return inner, &Entity{state: inner, id: e.id}
}

// Fail aborts the evaluation in progress on s. It is meant for behaviors
// that cannot produce a value because of a defect, such as a broken script;
// missing inputs should be handled by falling back to a default instead.
//
// Fail unwinds like any runtime error: Get panics and TryGet returns a
// *RuntimeError with code ErrCodeBehaviorFailed wrapping err.
func (s *State) Fail(err error) {
	property := s.trail.top()
	rerr := &RuntimeError{
		Code:     ErrCodeBehaviorFailed,
		Message:  err.Error(),
		Property: property,
		Path:     s.trail.path(),
		Err:      err,
	}
	s.w.observer.Failed(property, rerr)
	s.w.logger.Warn("behavior failed", "property", property, "error", err)
	panic(rerr)
}

// recursion builds, reports and logs a recursive behavior error for property.
func (s *State) recursion(property string, e *Entity) *RuntimeError {
	entity := ""
	if e != nil {
		entity = e.id.String()
	}
	err := newRecursiveError(property, entity, append(s.trail.path(), property))
	s.w.observer.Failed(property, err)
	s.w.logger.Warn("recursive behavior", "property", property, "depth", s.trail.depth(), "error", err)
	return err
}

// busy builds, reports and logs an error for a read of property while its
// behavior is evaluated outside the chain of s.
func (s *State) busy(property string, e *Entity) *RuntimeError {
	entity := ""
	if e != nil {
		entity = e.id.String()
	}
	err := newBusyError(property, entity, append(s.trail.path(), property))
	s.w.observer.Failed(property, err)
	s.w.logger.Warn("behavior busy", "property", property, "depth", s.trail.depth(), "error", err)
	return err
}
