package validation

import "github.com/rendis/pathmap/pkg/schema"

// Validator checks dataset documents before a graph is built from them.
type Validator interface {
	Validate(ds *schema.Dataset) *schema.ValidationResult
	ValidateDataset(ds *schema.Dataset) error
}
