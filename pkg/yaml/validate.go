package yaml

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator checks decoded YAML documents against a compiled JSON schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles schemaData, registered under url.
func NewValidator(url string, schemaData []byte) (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaData))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	schema, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// MustNewValidator is [NewValidator] for embedded schemas; it panics on error.
func MustNewValidator(url string, schemaData []byte) *Validator {
	v, err := NewValidator(url, schemaData)
	if err != nil {
		panic(err)
	}

	return v
}

// ValidateBytes decodes a YAML document and validates it. Errors carry the
// document source so they print with an excerpt.
func (v *Validator) ValidateBytes(data []byte) error {
	var doc any

	err := NewDecoder(bytes.NewReader(data)).Decode(&doc)
	if err == nil {
		err = v.Validate(doc)
	}

	return NewErrorWrapper(WithSource(data)).Wrap(err)
}

// Validate checks decoded data. A failure is returned as an [*Error]
// pointing at the deepest offending location.
func (v *Validator) Validate(data any) error {
	err := v.schema.Validate(data)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return fmt.Errorf("schema validation: %w", err)
	}

	return &Error{Err: verr, Path: locationPath(deepestLocation(verr))}
}

// deepestLocation returns the longest instance location among err and its
// causes.
func deepestLocation(err *jsonschema.ValidationError) []string {
	loc := err.InstanceLocation
	for _, cause := range err.Causes {
		if l := deepestLocation(cause); len(l) > len(loc) {
			loc = l
		}
	}

	return loc
}

// locationPath converts a JSON instance location into a [yaml.Path].
// Numeric segments are treated as sequence indexes.
func locationPath(loc []string) *yaml.Path {
	pb := NewPathBuilder().Root()

	for _, seg := range loc {
		if i, err := strconv.ParseUint(seg, 10, 0); err == nil {
			pb = pb.Index(uint(i))
			continue
		}

		pb = pb.Child(seg)
	}

	return pb.Build()
}
