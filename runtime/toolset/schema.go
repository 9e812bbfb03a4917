package toolset

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	schemavalidator "github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaFor derives the JSON schema for a tool argument struct T. Field
// names follow the struct's json tags; `jsonschema` struct tags refine
// descriptions, enums, and constraints. Objects reject additional properties
// so stray argument keys surface as validation errors.
func SchemaFor[T any]() ([]byte, error) {
	reflector := jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		ExpandedStruct: true,
	}
	var zero T
	schema := reflector.Reflect(&zero)
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

// MustSchemaFor is SchemaFor that panics on error. Intended for package-level
// tool registrations where the argument type is fixed at compile time.
func MustSchemaFor[T any]() []byte {
	data, err := SchemaFor[T]()
	if err != nil {
		panic(err)
	}
	return data
}

// compileSchema compiles raw JSON schema bytes into a validator.
func compileSchema(raw []byte) (*schemavalidator.Schema, error) {
	doc, err := schemavalidator.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	c := schemavalidator.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}
