// Field-level validation support for transfer objects. Handlers translate a
// *ValidationError into a 400 response listing every offending field.
package services

import (
	"fmt"
	"strings"
	"time"
)

// FieldError describes a single invalid field in a request payload.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates the field errors of one request. It implements
// error so services can return it through the usual path.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	parts := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// add appends a field error and returns the receiver for chaining.
func (v *ValidationError) add(field, message string) *ValidationError {
	v.Fields = append(v.Fields, FieldError{Field: field, Message: message})
	return v
}

// orNil returns the receiver as an error when any field failed, nil otherwise.
func (v *ValidationError) orNil() error {
	if len(v.Fields) == 0 {
		return nil
	}
	return v
}

// validDateString reports whether s is a calendar date in YYYY-MM-DD form.
func validDateString(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
