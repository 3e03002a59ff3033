package validation

import "github.com/rendis/pathmap/pkg/schema"

// DatasetValidator orchestrates the three-stage validation pipeline:
// 1. Structural (JSON Schema)
// 2. Semantic (duplicate ids, edge endpoints, table keys)
// 3. Graph (cycles, reachability from start stages)
type DatasetValidator struct {
	jsonSchema *JSONSchemaValidator
}

// NewDatasetValidator creates a DatasetValidator with the schema pre-compiled.
func NewDatasetValidator() (*DatasetValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &DatasetValidator{jsonSchema: jsv}, nil
}

// Validate runs the full pipeline and returns an aggregated result.
// Structural errors short-circuit: semantic and graph stages are skipped.
func (dv *DatasetValidator) Validate(ds *schema.Dataset) *schema.ValidationResult {
	if ds == nil {
		r := &schema.ValidationResult{}
		r.AddError("/", schema.ErrCodeValidation, "dataset is nil")
		return r
	}

	result := validateStructural(dv.jsonSchema, ds)
	if !result.Valid() {
		return result
	}

	result.Merge(validateSemantic(ds))

	// Graph analysis needs every edge endpoint to resolve.
	if result.Valid() {
		result.Merge(validateGraph(ds))
	}

	return result
}

// ValidateDataset satisfies the Validator interface.
func (dv *DatasetValidator) ValidateDataset(ds *schema.Dataset) error {
	return dv.Validate(ds).ToError()
}

// validateStructural converts JSONSchemaValidator output into a ValidationResult.
func validateStructural(v *JSONSchemaValidator, ds *schema.Dataset) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	err := v.ValidateDataset(ds)
	if err == nil {
		return result
	}

	pmErr, ok := err.(*schema.PathmapError)
	if !ok {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return result
	}

	if violations, ok := pmErr.Details["violations"].([]string); ok {
		for _, v := range violations {
			result.AddError("/", schema.ErrCodeValidation, v)
		}
		return result
	}
	result.AddError("/", schema.ErrCodeValidation, pmErr.Message)
	return result
}
