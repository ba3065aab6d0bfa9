// Package script builds frp behaviors from Starlark source.
//
// Scripts read other properties with two builtins:
//
//	get(name, default=None)     the current entity's property, else the global
//	global(name, default=None)  the global property
//
// The math module is predeclared.
package script

import (
	"errors"
	"fmt"

	"go.starlark.net/lib/math"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/roach88/frp"
)

const (
	localState  = "frp.state"
	localEntity = "frp.entity"
	localFatal  = "frp.fatal"
)

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       false,
}

// Alias compiles expr into a behavior evaluating it on every read.
// name is used in error positions.
func Alias(name, expr string) (frp.Behavior[any], error) {
	fn, err := starlark.ExprFuncOptions(fileOptions, name, expr, predeclared())
	if err != nil {
		return nil, fmt.Errorf("compiling alias %s: %w", name, err)
	}
	return frp.Alias(func(s *frp.State, e *frp.Entity) any {
		out, err := call(s, e, name, fn, nil)
		if err != nil {
			fail(s, err)
		}
		v, err := FromStarlark(out)
		if err != nil {
			s.Fail(fmt.Errorf("%s: result: %w", name, err))
		}
		return v
	}), nil
}

// Storage compiles src, which must define update(state) returning a
// (value, new_state) pair, into a behavior whose private state starts as
// init.
func Storage(name string, init any, src string) (frp.Behavior[any], error) {
	thread := &starlark.Thread{Name: name}
	globals, err := starlark.ExecFileOptions(fileOptions, thread, name, src, predeclared())
	if err != nil {
		return nil, fmt.Errorf("compiling storage %s: %w", name, err)
	}
	update, ok := globals["update"].(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("storage %s: source must define update(state)", name)
	}
	initial, err := ToStarlark(init)
	if err != nil {
		return nil, fmt.Errorf("storage %s: init: %w", name, err)
	}

	return frp.Storage(initial, func(state *starlark.Value, s *frp.State, e *frp.Entity) any {
		out, err := call(s, e, name, update, starlark.Tuple{*state})
		if err != nil {
			fail(s, err)
		}
		var pair starlark.Indexable
		switch out := out.(type) {
		case starlark.Tuple:
			pair = out
		case *starlark.List:
			pair = out
		}
		if pair == nil || pair.Len() != 2 {
			s.Fail(fmt.Errorf("%s: update must return (value, state), got %s", name, out.Type()))
		}
		v, err := FromStarlark(pair.Index(0))
		if err != nil {
			s.Fail(fmt.Errorf("%s: value: %w", name, err))
		}
		*state = pair.Index(1)
		return v
	}), nil
}

func call(s *frp.State, e *frp.Entity, name string, fn starlark.Callable, args starlark.Tuple) (starlark.Value, error) {
	thread := &starlark.Thread{Name: name}
	thread.SetLocal(localState, s)
	if e != nil {
		thread.SetLocal(localEntity, e)
	}
	out, err := starlark.Call(thread, fn, args, nil)
	// A runtime error raised under a builtin takes precedence over the
	// Starlark error it was reported as.
	if re, ok := thread.Local(localFatal).(*frp.RuntimeError); ok {
		return nil, re
	}
	return out, err
}

// fail re-raises runtime errors caught by the builtins unchanged, and
// reports any other script error through State.Fail.
func fail(s *frp.State, err error) {
	var re *frp.RuntimeError
	if errors.As(err, &re) {
		panic(re)
	}
	s.Fail(err)
}

func predeclared() starlark.StringDict {
	return starlark.StringDict{
		"get":    starlark.NewBuiltin("get", builtinGet),
		"global": starlark.NewBuiltin("global", builtinGlobal),
		"math":   math.Module,
	}
}

func builtinGet(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var def starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "default?", &def); err != nil {
		return nil, err
	}
	s, ok := thread.Local(localState).(*frp.State)
	if !ok {
		return nil, fmt.Errorf("%s: called outside of an evaluation", b.Name())
	}
	if e, ok := thread.Local(localEntity).(*frp.Entity); ok && frp.Has(e, frp.Named[any](name)) {
		return read(thread, e, name, def)
	}
	return read(thread, s, name, def)
}

func builtinGlobal(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var def starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "default?", &def); err != nil {
		return nil, err
	}
	s, ok := thread.Local(localState).(*frp.State)
	if !ok {
		return nil, fmt.Errorf("%s: called outside of an evaluation", b.Name())
	}
	return read(thread, s, name, def)
}

func read(thread *starlark.Thread, r frp.Reader, name string, def starlark.Value) (starlark.Value, error) {
	v, ok, err := frp.TryGet(r, frp.Named[any](name))
	if err != nil {
		thread.SetLocal(localFatal, err)
		return nil, err
	}
	if !ok {
		return def, nil
	}
	return ToStarlark(v)
}
