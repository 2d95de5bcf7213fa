package artifact

import (
	"encoding/json"
	"fmt"
	"sync"

	invjs "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

const metaSchemaURL = "schema://coping_action_meta.json"

// MetaSchema returns the JSON Schema of the metadata descriptor.
func MetaSchema() map[string]any {
	r := invjs.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
	s := r.Reflect(&Meta{})
	b, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	// the reflector derives $id from the Go package path; the compiler keys by URL
	delete(m, "$id")
	return m
}

var compiledMeta = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(metaSchemaURL, MetaSchema()); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	return c.Compile(metaSchemaURL)
})

// validateMetaJSON checks raw metadata bytes against MetaSchema.
func validateMetaJSON(raw []byte) error {
	sch, err := compiledMeta()
	if err != nil {
		return fmt.Errorf("compile meta schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
