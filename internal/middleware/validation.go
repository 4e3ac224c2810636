package middleware

import (
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/pharmapointe/ordonnance-api/internal/model"
)

// RegisterValidators installs domain value checks on gin's binding engine so
// a malformed enum fails at bind time instead of deep inside a service.
// Validation errors report the json field name, not the Go field name.
func RegisterValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})

	checks := map[string]validator.Func{
		"prescription_kind": func(fl validator.FieldLevel) bool {
			return model.Kind(fl.Field().String()).Valid()
		},
		"prescription_status": func(fl validator.FieldLevel) bool {
			return model.PrescriptionStatus(fl.Field().String()).Valid()
		},
		"cycle_status": func(fl validator.FieldLevel) bool {
			return model.CycleStatus(fl.Field().String()).Valid()
		},
	}
	for tag, fn := range checks {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
}
