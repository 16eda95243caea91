// Package validation checks job variables against the JSON schemas published
// in the activity registry.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Validator holds a compiled schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles schema once. An empty schema accepts everything.
func NewValidator(schema map[string]interface{}) (*Validator, error) {
	if len(schema) == 0 {
		return &Validator{}, nil
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// ValidateJSON validates a raw job variables document.
func (v *Validator) ValidateJSON(raw string) (*ValidationResult, error) {
	if v.schema == nil {
		return &ValidationResult{Valid: true}, nil
	}
	res, err := v.schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	return toResult(res), nil
}

// Validate validates an already decoded value (map, struct with json tags).
func (v *Validator) Validate(doc interface{}) (*ValidationResult, error) {
	if v.schema == nil {
		return &ValidationResult{Valid: true}, nil
	}
	res, err := v.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	return toResult(res), nil
}

// ValidateInput is a one-shot helper for callers that do not keep a Validator.
func ValidateInput(input map[string]interface{}, schema map[string]interface{}) (*ValidationResult, error) {
	v, err := NewValidator(schema)
	if err != nil {
		return nil, err
	}
	return v.Validate(input)
}

func toResult(res *gojsonschema.Result) *ValidationResult {
	out := &ValidationResult{Valid: res.Valid()}
	for _, desc := range res.Errors() {
		field := desc.Field()
		if field == "(root)" {
			if p, ok := desc.Details()["property"].(string); ok {
				field = p
			}
		}
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out
}

// Summary flattens the errors into one line for job failure messages.
func (r *ValidationResult) Summary() string {
	if r == nil || r.Valid {
		return ""
	}
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return strings.Join(parts, "; ")
}

// MarshalErrors renders the errors for inclusion in job variables.
func (r *ValidationResult) MarshalErrors() string {
	b, err := json.Marshal(r.Errors)
	if err != nil {
		return "[]"
	}
	return string(b)
}
