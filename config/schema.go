package config

import (
	"encoding/json"
	"sync"

	"github.com/grovetools/wagate/schema"
	"github.com/invopop/jsonschema"
)

// GenerateSchema generates the JSON Schema for wagate.yml. Extension sections
// are free-form, so only the root object accepts unknown keys.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		ExpandedStruct:            true,
		FieldNameTag:              "yaml",
	}

	s := r.Reflect(&Config{})
	s.Title = "wagate configuration"
	s.Description = "Configuration for the wagate messaging-session gateway."
	s.Version = "http://json-schema.org/draft-07/schema#"
	s.AdditionalProperties = jsonschema.TrueSchema

	return json.MarshalIndent(s, "", "  ")
}

var (
	validatorOnce sync.Once
	validator     *SchemaValidator
	validatorErr  error
)

// SchemaValidator validates raw configuration documents against the generated schema.
type SchemaValidator struct {
	validator *schema.Validator
}

// NewSchemaValidator returns the process-wide validator, compiling it on first use.
func NewSchemaValidator() (*SchemaValidator, error) {
	validatorOnce.Do(func() {
		doc, err := GenerateSchema()
		if err != nil {
			validatorErr = err
			return
		}
		v, err := schema.NewValidator("wagate.schema.json", doc)
		if err != nil {
			validatorErr = err
			return
		}
		validator = &SchemaValidator{validator: v}
	})
	return validator, validatorErr
}

// Validate validates configuration data against the schema.
func (v *SchemaValidator) Validate(configData interface{}) error {
	return v.validator.Validate(configData)
}
