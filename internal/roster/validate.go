package roster

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"rollbook/internal/apperr"
)

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON names instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (f Fields) trimmed() Fields {
	f.RegisterNumber = strings.TrimSpace(f.RegisterNumber)
	f.RollNumber = strings.TrimSpace(f.RollNumber)
	f.Name = strings.TrimSpace(f.Name)
	f.Class = strings.TrimSpace(f.Class)
	f.Department = strings.TrimSpace(f.Department)
	f.Year = strings.TrimSpace(f.Year)
	return f
}

func (c Changes) trimmed() Changes {
	trim := func(s *string) *string {
		if s == nil {
			return nil
		}
		t := strings.TrimSpace(*s)
		return &t
	}
	c.Name = trim(c.Name)
	c.Class = trim(c.Class)
	c.Department = trim(c.Department)
	if c.Year != nil {
		y := Year(strings.TrimSpace(string(*c.Year)))
		c.Year = &y
	}
	return c
}

func validateFields(v *validator.Validate, f Fields) error {
	return toValidationError(v.Struct(f))
}

func validateChanges(v *validator.Validate, c Changes) error {
	var fields []apperr.FieldError
	check := func(name string, value any, tag string) {
		if err := v.Var(value, tag); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				for _, fe := range verrs {
					fields = append(fields, apperr.FieldError{Field: name, Message: message(fe)})
				}
			}
		}
	}
	if c.Name != nil {
		check("name", *c.Name, "required")
	}
	if c.Class != nil {
		check("class", *c.Class, "required")
	}
	if c.Department != nil {
		check("department", *c.Department, "required")
	}
	if c.Shift != nil {
		check("shift", *c.Shift, "oneof=1 2")
	}
	if c.Year != nil {
		check("year", string(*c.Year), "required,oneof=I II III IV")
	}
	if len(fields) > 0 {
		return apperr.NewValidationError(fields...)
	}
	return nil
}

func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperr.FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return apperr.NewValidationError(fields...)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}
