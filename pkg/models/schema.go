package models

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ConfigurationSchema is an optional JSON Schema a component can register to
// constrain a WorkflowConfiguration's Env; Resources are not validated.
// Most workflows carry no schema, in which case ValidateConfiguration is a
// no-op.
//
// Grounded on pkg/sources/webhook/server.go's validateJSONSchema: same
// NewGoLoader/Validate shape, adapted from webhook event payloads to
// workflow env maps.
type ConfigurationSchema struct {
	document map[string]any
}

// NewConfigurationSchema wraps a JSON Schema document (already decoded into
// a map, e.g. from YAML or JSON workflow config) for later validation.
func NewConfigurationSchema(document map[string]any) ConfigurationSchema {
	return ConfigurationSchema{document: document}
}

// Empty reports whether no schema was registered, in which case validation
// always succeeds.
func (s ConfigurationSchema) Empty() bool {
	return len(s.document) == 0
}

// ValidateConfiguration checks configuration's Env against the registered
// schema. It is a no-op when no schema was registered.
func (s ConfigurationSchema) ValidateConfiguration(configuration WorkflowConfiguration) error {
	if s.Empty() {
		return nil
	}

	data := make(map[string]any, len(configuration.Env))
	for k, v := range configuration.Env {
		data[k] = v
	}

	schemaLoader := gojsonschema.NewGoLoader(s.document)
	dataLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("validate configuration against schema: %w", err)
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}
		return fmt.Errorf("configuration failed schema validation: %s", strings.Join(descriptions, "; "))
	}

	return nil
}
