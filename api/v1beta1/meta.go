// Package v1beta1 contains the v1beta1 document types read and written by kfold.
package v1beta1

import (
	"errors"
	"fmt"
	"slices"

	"github.com/invopop/jsonschema"
)

// APIVersion is the apiVersion of every kfold document.
const APIVersion = "kfold.jacobcolvin.com/v1beta1"

var (
	// ValidAPIVersions lists the apiVersions kfold reads.
	ValidAPIVersions = []string{APIVersion}

	// ErrTypeMeta is returned when a document declares an unexpected apiVersion or kind.
	ErrTypeMeta = errors.New("unexpected document type")
)

// TypeMeta is the apiVersion and kind header of a document.
type TypeMeta struct {
	APIVersion string `json:"apiVersion" jsonschema:"title=API Version"`
	Kind       string `json:"kind"       jsonschema:"title=Kind"`
}

// NewTypeMeta returns the current [TypeMeta] for kind.
func NewTypeMeta(kind string) TypeMeta {
	return TypeMeta{APIVersion: APIVersion, Kind: kind}
}

func (tm TypeMeta) GetAPIVersion() string { return tm.APIVersion }
func (tm TypeMeta) GetKind() string       { return tm.Kind }

// Check verifies that tm declares a supported apiVersion and the given kind.
func (tm TypeMeta) Check(kind string) error {
	if !slices.Contains(ValidAPIVersions, tm.APIVersion) {
		return fmt.Errorf("%w: apiVersion %q (expected one of %v)", ErrTypeMeta, tm.APIVersion, ValidAPIVersions)
	}

	if tm.Kind != kind {
		return fmt.Errorf("%w: kind %q (expected %q)", ErrTypeMeta, tm.Kind, kind)
	}

	return nil
}

// Object is a document the settings loader can decode and default.
type Object interface {
	GetAPIVersion() string
	GetKind() string
	EnsureDefaults()
}

// ExtendSchemaWithEnums restricts the apiVersion and kind properties of jss
// to the given values. It panics if either property is missing, since that
// means the schema was not generated from a [TypeMeta] document.
func ExtendSchemaWithEnums(jss *jsonschema.Schema, apiVersions, kinds []string) {
	restrict(jss, "apiVersion", "API Version", apiVersions)
	restrict(jss, "kind", "Kind", kinds)
}

func restrict(jss *jsonschema.Schema, property, title string, values []string) {
	prop, ok := jss.Properties.Get(property)
	if !ok {
		panic(fmt.Sprintf("schema has no %q property", property))
	}

	for _, v := range values {
		prop.OneOf = append(prop.OneOf, &jsonschema.Schema{Type: "string", Const: v, Title: title})
	}

	jss.Properties.Set(property, prop)
}
