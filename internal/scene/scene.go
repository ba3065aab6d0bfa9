package scene

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/frp/internal/canon"
)

// Scene describes a simulation: global properties, entities with their
// properties, and the properties sampled every tick.
type Scene struct {
	// Name identifies the scene in logs and recorded runs.
	Name string `yaml:"name" json:"name" validate:"required"`

	// Description is free text.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Ticks is the default number of ticks to run. Zero means until stopped.
	Ticks int `yaml:"ticks,omitempty" json:"ticks,omitempty" validate:"gte=0"`

	// DT is the default simulated time step in seconds.
	DT float64 `yaml:"dt,omitempty" json:"dt,omitempty" validate:"gte=0"`

	// Globals are registered on the store itself.
	Globals []Property `yaml:"globals,omitempty" json:"globals,omitempty" validate:"unique=Name,dive"`

	// Entities are created in order; each gets its own properties.
	Entities []Entity `yaml:"entities,omitempty" json:"entities,omitempty" validate:"unique=Name,dive"`

	// Sample lists the properties read every tick, as "property" for
	// globals or "entity.property" for entity properties.
	Sample []string `yaml:"sample,omitempty" json:"sample,omitempty" validate:"dive,required"`
}

// Entity is a named entity and its properties.
type Entity struct {
	Name       string     `yaml:"name" json:"name" validate:"required,excludes=."`
	Properties []Property `yaml:"properties,omitempty" json:"properties,omitempty" validate:"unique=Name,dive"`
}

// Property declares one property. Exactly one of Constant, Alias and
// Storage is set.
type Property struct {
	Name string `yaml:"name" json:"name" validate:"required,excludes=."`

	// Constant is a literal value (number, string, bool, list or map).
	Constant any `yaml:"constant,omitempty" json:"constant,omitempty"`

	// Alias is a Starlark expression evaluated on every read.
	Alias string `yaml:"alias,omitempty" json:"alias,omitempty"`

	// Storage is a Starlark update function with private state.
	Storage *Storage `yaml:"storage,omitempty" json:"storage,omitempty"`
}

// Storage is the definition of a stateful property.
type Storage struct {
	// Init is the initial state.
	Init any `yaml:"init,omitempty" json:"init,omitempty"`

	// Update is Starlark source defining update(state), which returns a
	// (value, new_state) pair.
	Update string `yaml:"update" json:"update" validate:"required"`
}

// Kind returns "constant", "alias" or "storage", or "" when the property
// does not declare exactly one of them.
func (p Property) Kind() string {
	var kinds []string
	if p.Constant != nil {
		kinds = append(kinds, "constant")
	}
	if p.Alias != "" {
		kinds = append(kinds, "alias")
	}
	if p.Storage != nil {
		kinds = append(kinds, "storage")
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// Ref is a parsed sample reference.
type Ref struct {
	// Entity is the entity name, empty for globals.
	Entity string
	// Property is the property name.
	Property string
}

// ParseRef parses "property" or "entity.property".
func ParseRef(s string) (Ref, error) {
	if s == "" {
		return Ref{}, fmt.Errorf("empty reference")
	}
	ent, prop, found := strings.Cut(s, ".")
	if !found {
		return Ref{Property: s}, nil
	}
	if ent == "" || prop == "" || strings.Contains(prop, ".") {
		return Ref{}, fmt.Errorf("invalid reference %q: want property or entity.property", s)
	}
	return Ref{Entity: ent, Property: prop}, nil
}

// String formats the reference the way ParseRef reads it.
func (r Ref) String() string {
	if r.Entity == "" {
		return r.Property
	}
	return r.Entity + "." + r.Property
}

// Hash returns a content hash of the scene. Scenes that decode to the same
// values hash the same whether they were written in YAML or CUE.
func (sc *Scene) Hash() (string, error) {
	data, err := json.Marshal(sc)
	if err != nil {
		return "", fmt.Errorf("hash scene: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", fmt.Errorf("hash scene: %w", err)
	}
	return canon.Hash(canon.DomainScene, v)
}
