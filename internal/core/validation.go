package core

// validation.go checks sources against their schema before and during a load.
//
// Validation happens at two levels:
//  1. Header validation: every required field must be present, reported all at once
//  2. Row validation: each declared field is coerced to its type; any failure rejects the row

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrHeaderValidation marks a source whose header lacks required fields or
// could not be read at all.
var ErrHeaderValidation = errors.New("header validation failed")

// ValidateHeaders returns every required field of schema that is missing
// from headers, in schema order. An empty result means the source is usable.
func ValidateHeaders(headers []string, schema *EntitySchema) []string {
	h := NewHeader(headers)
	var missing []string
	for _, name := range schema.RequiredFields() {
		if !h.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// SchemaError reports why an entity's source cannot be loaded.
type SchemaError struct {
	Entity  string   `json:"entity"`
	Source  string   `json:"source"`
	Missing []string `json:"missing,omitempty"`
	Err     error    `json:"-"`
}

func (e *SchemaError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: missing required headers: %s", e.Entity, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s: %v", e.Entity, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// MarshalJSON includes the rendered reason alongside the missing names.
func (e *SchemaError) MarshalJSON() ([]byte, error) {
	type plain SchemaError
	return json.Marshal(struct {
		*plain
		Reason string `json:"reason"`
	}{(*plain)(e), e.Error()})
}

// Is makes every SchemaError match ErrHeaderValidation.
func (e *SchemaError) Is(target error) bool { return target == ErrHeaderValidation }

// FieldError is a single field that failed coercion.
type FieldError struct {
	Field string // Canonical field name
	Value string // The raw value
	Err   error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %v (got %q)", e.Field, e.Err, e.Value)
}

func (e FieldError) Unwrap() error { return e.Err }

// RowError rejects a whole source row.
type RowError struct {
	Line   int
	Fields []FieldError
}

func (e *RowError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("line %d: %s", e.Line, strings.Join(parts, "; "))
}

func (e *RowError) Unwrap() []error {
	errs := make([]error, len(e.Fields))
	for i, f := range e.Fields {
		errs[i] = f
	}
	return errs
}
