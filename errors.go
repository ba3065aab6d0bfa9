package frp

import (
	"errors"
	"fmt"
	"strings"
)

// RuntimeError reports a defect in how properties are wired.
//
// It is never used for absent values. Get panics with a *RuntimeError and
// TryGet returns one.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Property is the key of the property being read, if any.
	Property string

	// Entity is the entity id ("slot#generation"), empty for globals.
	Entity string

	// Path lists the property keys being evaluated when the error was
	// detected, outermost first.
	Path []string

	// Err is the cause reported by a behavior through State.Fail.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeRecursiveBehavior indicates a behavior re-entered itself before
	// its evaluation finished.
	ErrCodeRecursiveBehavior RuntimeErrorCode = "RECURSIVE_BEHAVIOR"

	// ErrCodeInvalidEntity indicates a handle to an entity that was removed.
	ErrCodeInvalidEntity RuntimeErrorCode = "INVALID_ENTITY"

	// ErrCodeBehaviorFailed indicates a behavior gave up through State.Fail.
	ErrCodeBehaviorFailed RuntimeErrorCode = "BEHAVIOR_FAILED"

	// ErrCodeBusy indicates a read of a behavior that is being evaluated
	// outside the reader's own call chain: on another goroutine, or through a
	// handle the behavior was not passed.
	ErrCodeBusy RuntimeErrorCode = "BEHAVIOR_BUSY"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Property != "" {
		fmt.Fprintf(&b, " (property=%s", e.Property)
		if e.Entity != "" {
			fmt.Fprintf(&b, ", entity=%s", e.Entity)
		}
		b.WriteString(")")
	} else if e.Entity != "" {
		fmt.Fprintf(&b, " (entity=%s)", e.Entity)
	}
	if len(e.Path) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Path, " -> "))
	}
	return b.String()
}

// Unwrap returns the behavior's cause, if any.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsRecursiveError returns true if err is a recursive behavior error.
// Uses errors.As to handle wrapped errors.
func IsRecursiveError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeRecursiveBehavior
	}
	return false
}

// IsInvalidEntityError returns true if err reports a stale entity handle.
func IsInvalidEntityError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeInvalidEntity
	}
	return false
}

// IsBehaviorFailedError returns true if err was raised by State.Fail.
func IsBehaviorFailedError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeBehaviorFailed
	}
	return false
}

// IsBusyError returns true if err reports a behavior being evaluated outside
// the reader's call chain.
func IsBusyError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeBusy
	}
	return false
}

func newRecursiveError(property, entity string, path []string) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeRecursiveBehavior,
		Message:  "behavior re-entered itself during evaluation",
		Property: property,
		Entity:   entity,
		Path:     path,
	}
}

func newInvalidEntityError(id EntityID) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidEntity,
		Message: "entity does not exist",
		Entity:  id.String(),
	}
}

func newBusyError(property, entity string, path []string) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeBusy,
		Message:  "behavior is being evaluated outside this call chain",
		Property: property,
		Entity:   entity,
		Path:     path,
	}
}
