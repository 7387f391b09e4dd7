// Package schema publishes JSON Schemas for the wire types plugins exchange
// with the shell.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Generate creates a JSON schema from a Go value.
// It uses the `invopop/jsonschema` library to reflect on the type
// and generate a standard JSON Schema (Draft 2020-12).
func Generate(v any) ([]byte, error) {
	jsonBytes, err := json.MarshalIndent(Reflect(v), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return jsonBytes, nil
}

// Reflect returns the schema of v with struct definitions expanded inline.
func Reflect(v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	return reflector.Reflect(v)
}
