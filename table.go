package frp

import (
	"sync"
	"time"
)

type entryStatus uint8

const (
	statusIdle entryStatus = iota
	statusInProgress
)

// entry is one registered behavior.
type entry struct {
	behavior evaluator
	status   entryStatus
}

// table maps property keys to behaviors. It backs the globals of a State and
// each entity.
type table struct {
	mu      sync.Mutex
	entries map[key]*entry
	owner   string
}

func newTable(owner string) *table {
	return &table{
		entries: make(map[key]*entry),
		owner:   owner,
	}
}

// insert registers b under k, replacing any previous behavior. An evaluation
// of the replaced behavior that is still running finishes on the old entry.
func (t *table) insert(k key, b evaluator) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[k] = &entry{behavior: b}
}

func (t *table) has(k key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[k]
	return ok
}

func (t *table) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// clear drops every entry. Evaluations already running finish on their own
// entry.
func (t *table) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.entries)
}

func (t *table) label(k key) string {
	if t.owner == "" {
		return k.String()
	}
	return k.String() + "@" + t.owner
}

// status reports the evaluation state of k. ok is false when k is absent.
func (t *table) status(k key) (entryStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ent, ok := t.entries[k]
	if !ok {
		return statusIdle, false
	}
	return ent.status, true
}

// read evaluates the behavior registered under k.
//
// Alias and Storage entries are marked in progress for the duration of the
// evaluation. A read that finds the entry in progress never waits: it panics
// with a recursive behavior error when the entry is on its own trail, and
// with a busy error otherwise. Constants cannot re-enter and are shared.
func (t *table) read(s *State, e *Entity, k key) (any, bool) {
	t.mu.Lock()
	ent, ok := t.entries[k]
	if !ok {
		t.mu.Unlock()
		return nil, false
	}
	exclusive := ent.behavior.Kind() != KindConstant
	if exclusive {
		if ent.status == statusInProgress {
			t.mu.Unlock()
			if s.trail.contains(ent) {
				panic(s.recursion(t.label(k), e))
			}
			panic(s.busy(t.label(k), e))
		}
		ent.status = statusInProgress
	}
	t.mu.Unlock()

	if exclusive {
		defer func() {
			t.mu.Lock()
			ent.status = statusIdle
			t.mu.Unlock()
		}()
	}

	label := t.label(k)
	inner, ie := s.descend(ent, label, e)
	start := time.Now()
	v := ent.behavior.evaluate(inner, ie)
	s.w.observer.Evaluated(label, ent.behavior.Kind(), time.Since(start))
	return v, true
}
