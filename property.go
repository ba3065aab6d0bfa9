package frp

import (
	"reflect"

	"golang.org/x/text/unicode/norm"
)

// Property identifies a property whose values have type T.
//
// Implement it by embedding Of in a marker type, or use Named.
type Property[T any] interface {
	valueOf(T)
}

// Of is embedded in marker types to declare them as properties of type T:
//
//	type Position struct{ frp.Of[Vec2] }
type Of[T any] struct{}

func (Of[T]) valueOf(T) {}

// Named is a property identified by its name rather than by a Go type.
//
// Names are compared after Unicode NFC normalisation. The value type is not
// part of the identity: reading Named[int]("x") when Named[float64]("x") was
// registered finds the property but yields absent.
type Named[T any] string

func (Named[T]) valueOf(T) {}

func (n Named[T]) propertyName() string { return string(n) }

type namer interface {
	propertyName() string
}

// key is the table address of a property.
type key struct {
	typ  reflect.Type
	name string
}

func keyOf(p any) key {
	if n, ok := p.(namer); ok {
		return key{name: norm.NFC.String(n.propertyName())}
	}
	return key{typ: reflect.TypeOf(p)}
}

func (k key) String() string {
	if k.typ == nil {
		return "name:" + k.name
	}
	return "type:" + k.typ.String()
}

// Key returns a printable identity for p, e.g. "type:main.Clock" or
// "name:position".
func Key[T any](p Property[T]) string {
	return keyOf(p).String()
}
