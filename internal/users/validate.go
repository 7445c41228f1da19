package users

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gogotex/mongomodel/pkg/model"
)

// validate checks inputs against the same binding tags gin applies to
// request bodies.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	if err := RegisterValidations(v); err != nil {
		panic(err)
	}
	return v
}

// RegisterValidations adds the user-specific tags to v. Register them on
// gin's validator engine before binding CreateInput.
func RegisterValidations(v *validator.Validate) error {
	return v.RegisterValidation("username", isUsername)
}

// isUsername allows letters, digits and . _ - after a leading letter or
// digit. Case is folded by the service.
func isUsername(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case i > 0 && (r == '.' || r == '_' || r == '-'):
		default:
			return false
		}
	}
	return s != ""
}

// check validates in and reports the first failing field as InvalidArgument.
func check(op string, in any) error {
	return invalid(op, validate.Struct(in))
}

func checkVar(op, field string, value any, tag string) error {
	err := validate.Var(value, tag)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return model.Invalid(op, modelName, "invalid %s %q (%s)", field, fmt.Sprint(value), verrs[0].Tag())
	}
	return err
}

func invalid(op string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	f := verrs[0]
	return model.Invalid(op, modelName, "invalid %s %v (%s)", f.Field(), f.Value(), f.Tag())
}
