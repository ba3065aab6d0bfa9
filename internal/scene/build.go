package scene

import (
	"fmt"

	"github.com/roach88/frp"
	"github.com/roach88/frp/internal/script"
)

// ClockProperty is the global property the driver provides with the
// simulation time in seconds.
const ClockProperty = "clock"

// Built is a scene registered on a store.
type Built struct {
	Scene    *Scene
	State    *frp.State
	Entities map[string]frp.EntityID
	Samples  []Sample
}

// Sample is a resolved sample reference.
type Sample struct {
	Ref    Ref
	Entity *frp.EntityID
}

// Read evaluates the sample on st.
func (s Sample) Read(st *frp.State) (any, bool, error) {
	p := frp.Named[any](s.Ref.Property)
	if s.Entity == nil {
		return frp.TryGet[any](st, p)
	}
	e, ok := st.Entity(*s.Entity)
	if !ok {
		return nil, false, &frp.RuntimeError{
			Code:    frp.ErrCodeInvalidEntity,
			Message: "entity does not exist",
			Entity:  s.Entity.String(),
		}
	}
	return frp.TryGet[any](e, p)
}

// Build registers the scene's globals on st, creates its entities, and
// resolves its samples.
func Build(sc *Scene, st *frp.State) (*Built, error) {
	b := &Built{
		Scene:    sc,
		State:    st,
		Entities: make(map[string]frp.EntityID, len(sc.Entities)),
	}

	for _, p := range sc.Globals {
		if err := register(st, "", p); err != nil {
			return nil, err
		}
	}

	for _, def := range sc.Entities {
		e := st.CreateEntity()
		b.Entities[def.Name] = e.ID()
		for _, p := range def.Properties {
			if err := register(e, def.Name, p); err != nil {
				return nil, err
			}
		}
	}

	for _, raw := range sc.Sample {
		ref, err := ParseRef(raw)
		if err != nil {
			return nil, err
		}
		s := Sample{Ref: ref}
		if ref.Entity != "" {
			id, ok := b.Entities[ref.Entity]
			if !ok {
				return nil, fmt.Errorf("sample %q: no entity %q", raw, ref.Entity)
			}
			s.Entity = &id
		}
		b.Samples = append(b.Samples, s)
	}
	return b, nil
}

func register(r frp.Reader, owner string, p Property) error {
	name := p.Name
	if owner != "" {
		name = owner + "." + p.Name
	}

	var (
		behavior frp.Behavior[any]
		err      error
	)
	switch p.Kind() {
	case "constant":
		behavior = frp.Constant(p.Constant)
	case "alias":
		behavior, err = script.Alias(name, p.Alias)
	case "storage":
		behavior, err = script.Storage(name, p.Storage.Init, p.Storage.Update)
	default:
		err = fmt.Errorf("property %s must declare exactly one of constant, alias, storage", name)
	}
	if err != nil {
		return err
	}
	return frp.Add(r, frp.Named[any](p.Name), behavior)
}
