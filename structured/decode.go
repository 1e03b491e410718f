package structured

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Decode validates data against schema and unmarshals it into a new T.
// Validation failures are reported as *ValidationErrors.
func Decode[T any](data []byte, schema *JSONSchema, validator SchemaValidator) (*T, error) {
	if validator == nil {
		validator = NewValidator()
	}
	if err := validator.Validate(data, schema); err != nil {
		return nil, err
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, &ValidationErrors{Errors: []ParseError{{Message: fmt.Sprintf("JSON parse error: %v", err)}}}
	}
	return &value, nil
}

// ParseReply extracts the JSON document from a model reply and validates it.
func ParseReply(reply string, schema *JSONSchema, validator SchemaValidator) (json.RawMessage, error) {
	doc, ok := ExtractJSON(reply)
	if !ok {
		return nil, ErrNoJSON
	}
	if validator == nil {
		validator = NewValidator()
	}
	if err := validator.Validate([]byte(doc), schema); err != nil {
		return json.RawMessage(doc), err
	}
	return json.RawMessage(doc), nil
}

// ErrNoJSON is returned when a model reply contains no JSON document.
var ErrNoJSON = errors.New("reply contains no JSON document")
