// Package dataset reads pathway datasets from JSON or YAML and carries the
// bundled educational-pathways dataset.
package dataset

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rendis/pathmap/pkg/schema"
)

//go:embed pathways.json
var bundled []byte

// BundledName is the source name reported for the embedded dataset.
const BundledName = "bundled:pathways"

// Format is a dataset document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Bundled returns a fresh copy of the embedded dataset.
func Bundled() *schema.Dataset {
	ds, err := Parse(bundled, FormatJSON)
	if err != nil {
		panic(fmt.Sprintf("dataset: bundled dataset is invalid: %v", err))
	}
	return ds
}

// BundledBytes returns the raw embedded document.
func BundledBytes() []byte {
	return append([]byte(nil), bundled...)
}

// Parse decodes a dataset document. Unknown fields are rejected so that a
// misspelled key does not silently drop content.
func Parse(data []byte, format Format) (*schema.Dataset, error) {
	var ds schema.Dataset
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&ds); err != nil {
			return nil, schema.NewError(schema.ErrCodeValidation, "invalid JSON dataset").WithCause(err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&ds); err != nil {
			return nil, schema.NewError(schema.ErrCodeValidation, "invalid YAML dataset").WithCause(err)
		}
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unsupported dataset format %q", format)
	}
	return &ds, nil
}

// DetectFormat picks a format from a file extension, defaulting to JSON.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadFile reads and decodes the dataset at path.
func LoadFile(path string) (*schema.Dataset, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	ds, err := Parse(data, DetectFormat(path))
	if err != nil {
		return nil, nil, err
	}
	return ds, data, nil
}

// Source loads a dataset by name: an empty name or BundledName yields the
// embedded dataset, anything else is read as a file path.
func Source(name string) (*schema.Dataset, []byte, error) {
	if name == "" || name == BundledName {
		return Bundled(), BundledBytes(), nil
	}
	return LoadFile(name)
}
