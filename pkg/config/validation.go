package config

import (
	"reflect"

	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// Validator is an optional interface for configuration structs that
// need checks beyond the `required` tag. When the struct handed to
// [Loader.Load] implements it, Validate runs after tag validation
// passes.
//
// Errors that are already [*sserr.Error] pass through unchanged;
// anything else is wrapped with [sserr.CodeValidation].
//
//	func (c *FunctionConfig) Validate() error {
//	    if c.Shutdown < time.Second {
//	        return sserr.Newf(sserr.CodeValidation,
//	            "config: shutdown timeout %v is below the 1s floor", c.Shutdown)
//	    }
//	    return nil
//	}
type Validator interface {
	Validate() error
}

// validate runs the `required` tag check and then the struct's own
// Validate method, if it has one. cfg is the original interface value
// for the type assertion; rv is its dereferenced struct value.
func validate(cfg any, rv reflect.Value) error {
	if err := validateRequired(rv, ""); err != nil {
		return err
	}

	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			if _, isSSErr := sserr.AsError(err); isSSErr {
				return err
			}
			return sserr.Wrap(err, sserr.CodeValidation,
				"config: custom validation failed")
		}
	}

	return nil
}

// validateRequired walks the struct and fails on the first zero-valued
// field tagged `required:"true"`. path accumulates the dotted field
// path for the error message, so a missing bucket inside a storage
// sub-config reports as "Storage.Bucket".
func validateRequired(rv reflect.Value, path string) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)

		if !field.CanSet() {
			continue
		}

		fieldPath := sf.Name
		if path != "" {
			fieldPath = path + "." + sf.Name
		}

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			if err := validateRequired(field, fieldPath); err != nil {
				return err
			}
			continue
		}

		if sf.Tag.Get("required") != "true" {
			continue
		}

		if field.IsZero() {
			return sserr.Newf(sserr.CodeValidationRequired,
				"config: required field %q is empty", fieldPath)
		}
	}

	return nil
}
