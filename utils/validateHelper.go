package utils

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs the `validate` tags of an input struct. Cross-record
// checks (id exists, folio unused) stay in the per-entity validate methods.
func ValidateStruct(input any) error {
	return validate.Struct(input)
}
