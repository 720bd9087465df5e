package validation

import (
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with the basket field rules registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// notblank rejects empty and whitespace-only strings.
	_ = v.RegisterValidation("notblank", func(fl validatorv10.FieldLevel) bool {
		f := fl.Field()
		if f.Kind() != reflect.String {
			return true
		}
		return strings.TrimSpace(f.String()) != ""
	})

	return v
}
