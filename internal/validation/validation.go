// Package validation turns go-playground validator failures into field-keyed
// messages rendered as 422 responses.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "rescueboard/internal/errors"
)

// Validator wraps validator.Validate and reports failures as *errors.AppError.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator that names fields after their json tags.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct validates i. It returns nil or a validation *errors.AppError.
func (v *Validator) Struct(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string][]string, len(verrs))
	order := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := fields[field]; !seen {
			order = append(order, field)
		}
		fields[field] = append(fields[field], message(fe))
	}
	return apperrors.NewValidationErrors(order, fields)
}

func message(fe validator.FieldError) string {
	name := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", name)
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", name)
	case "min":
		return fmt.Sprintf("The %s field must be at least %s characters.", name, fe.Param())
	case "max":
		return fmt.Sprintf("The %s field must not be greater than %s characters.", name, fe.Param())
	case "eqfield":
		return fmt.Sprintf("The %s field confirmation does not match.", name)
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", name)
	default:
		return fmt.Sprintf("The %s field is invalid.", name)
	}
}
