// Package schema generates JSON schemas for kfold's YAML documents.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// ModulePath is the import path comment directories are resolved against.
const ModulePath = "github.com/macropower/kfold"

// Generator reflects a JSON schema from a Go value.
// Uses [github.com/invopop/jsonschema].
type Generator struct {
	reflector   *jsonschema.Reflector
	value       any
	commentDirs []string
}

// NewGenerator creates a [Generator] for value. Doc comments are read from
// commentDirs, given relative to the module root, and become schema
// descriptions.
func NewGenerator(value any, commentDirs ...string) *Generator {
	return &Generator{
		value:       value,
		commentDirs: commentDirs,
		reflector: &jsonschema.Reflector{
			Anonymous: true,
		},
	}
}

// Generate returns the indented JSON schema.
func (g *Generator) Generate() ([]byte, error) {
	for _, dir := range g.commentDirs {
		err := g.reflector.AddGoComments(ModulePath, dir)
		if err != nil {
			return nil, fmt.Errorf("read comments from %s: %w", dir, err)
		}
	}

	js := g.reflector.Reflect(g.value)

	b, err := json.MarshalIndent(js, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	return append(b, '\n'), nil
}
