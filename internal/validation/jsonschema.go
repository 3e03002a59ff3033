package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/pathmap/pkg/schema"
)

const datasetSchemaURL = "https://pathmap.dev/schemas/dataset.json"

// datasetSchemaJSON is the JSON Schema for dataset documents.
const datasetSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://pathmap.dev/schemas/dataset.json",
  "type": "object",
  "required": ["nodes"],
  "properties": {
    "title": { "type": "string" },
    "nodes": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/node" }
    },
    "edges": {
      "type": ["array", "null"],
      "items": { "$ref": "#/$defs/edge" }
    },
    "positions": {
      "type": ["object", "null"],
      "additionalProperties": { "$ref": "#/$defs/coordinate" }
    },
    "details": {
      "type": ["object", "null"],
      "additionalProperties": { "$ref": "#/$defs/detail" }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "node": {
      "type": "object",
      "required": ["id", "label"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "label": { "type": "string" },
        "type": { "type": "string" }
      },
      "additionalProperties": false
    },
    "edge": {
      "type": "object",
      "required": ["from", "to"],
      "properties": {
        "from": { "type": "string", "minLength": 1 },
        "to": { "type": "string", "minLength": 1 }
      },
      "additionalProperties": false
    },
    "coordinate": {
      "type": "object",
      "required": ["x", "y"],
      "properties": {
        "x": { "type": "number" },
        "y": { "type": "number" }
      },
      "additionalProperties": false
    },
    "detail": {
      "type": "object",
      "required": ["title"],
      "properties": {
        "title": { "type": "string", "minLength": 1 },
        "description": { "type": "string" },
        "duration": { "type": "string" },
        "requirements": { "type": "string" },
        "next_steps": { "type": "string" },
        "pros": { "type": "array", "items": { "type": "string" } },
        "cons": { "type": "array", "items": { "type": "string" } }
      },
      "additionalProperties": false
    }
  }
}`

// JSONSchemaValidator validates dataset documents against the dataset schema.
// It is safe for concurrent use.
type JSONSchemaValidator struct {
	datasetSchema *jsonschema.Schema
}

// NewJSONSchemaValidator compiles the dataset schema.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(datasetSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal dataset schema: %w", err)
	}
	if err := c.AddResource(datasetSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add dataset schema resource: %w", err)
	}

	compiled, err := c.Compile(datasetSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile dataset schema: %w", err)
	}

	return &JSONSchemaValidator{datasetSchema: compiled}, nil
}

// ValidateDataset validates a decoded dataset.
func (v *JSONSchemaValidator) ValidateDataset(ds *schema.Dataset) error {
	if ds == nil {
		return schema.NewError(schema.ErrCodeValidation, "dataset is nil")
	}

	doc, err := toJSONValue(ds)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize dataset").WithCause(err)
	}
	return v.validate(doc)
}

// ValidateDocument validates raw JSON bytes before they are decoded, so that
// type mismatches are reported with their instance location.
func (v *JSONSchemaValidator) ValidateDocument(data []byte) error {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "dataset is not valid JSON").WithCause(err)
	}
	return v.validate(doc)
}

func (v *JSONSchemaValidator) validate(doc any) error {
	if err := v.datasetSchema.Validate(doc); err != nil {
		return toPathmapError(err)
	}
	return nil
}

// toJSONValue round-trips a Go value through JSON so that numbers become
// json.Number, which the jsonschema library requires.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toPathmapError converts a jsonschema.ValidationError into a PathmapError
// listing every leaf violation with its instance location.
func toPathmapError(err error) *schema.PathmapError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}
	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf messages.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
