package scene

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterStructValidation(validateProperty, Property{})
	})
	return validate
}

// validateProperty enforces that a property declares exactly one behavior.
func validateProperty(sl validator.StructLevel) {
	p := sl.Current().Interface().(Property)
	if p.Kind() == "" {
		sl.ReportError(p.Name, "Name", "name", "onebehavior", "")
	}
}

// Validate checks field constraints and cross references: every property has
// exactly one behavior, names are unique, and every sample resolves.
func Validate(sc *Scene) error {
	if err := validatorInstance().Struct(sc); err != nil {
		return &LoadError{Code: ErrCodeValidation, Message: describe(err)}
	}

	globals := make(map[string]bool, len(sc.Globals))
	for _, p := range sc.Globals {
		globals[p.Name] = true
	}
	entities := make(map[string]map[string]bool, len(sc.Entities))
	for _, e := range sc.Entities {
		props := make(map[string]bool, len(e.Properties))
		for _, p := range e.Properties {
			props[p.Name] = true
		}
		entities[e.Name] = props
	}

	for _, s := range sc.Sample {
		ref, err := ParseRef(s)
		if err != nil {
			return &LoadError{Code: ErrCodeValidation, Message: "invalid sample", Err: err}
		}
		if ref.Entity == "" {
			// The driver provides the clock.
			if !globals[ref.Property] && ref.Property != ClockProperty {
				return &LoadError{Code: ErrCodeValidation, Message: fmt.Sprintf("sample %q: no global property %q", s, ref.Property)}
			}
			continue
		}
		props, ok := entities[ref.Entity]
		if !ok {
			return &LoadError{Code: ErrCodeValidation, Message: fmt.Sprintf("sample %q: no entity %q", s, ref.Entity)}
		}
		if !props[ref.Property] {
			return &LoadError{Code: ErrCodeValidation, Message: fmt.Sprintf("sample %q: entity %q has no property %q", s, ref.Entity, ref.Property)}
		}
	}
	return nil
}

// describe flattens validator errors into one line.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "onebehavior":
			msgs = append(msgs, fmt.Sprintf("%s: property %q must declare exactly one of constant, alias, storage", fe.Namespace(), fe.Value()))
		case "unique":
			msgs = append(msgs, fmt.Sprintf("%s: duplicate names", fe.Namespace()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
