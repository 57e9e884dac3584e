package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "listen": {"type": "string"},
    "workers": {"type": "integer", "minimum": 1}
  },
  "additionalProperties": false
}`

func TestValidator(t *testing.T) {
	v, err := NewValidator("test.json", []byte(testSchema))
	require.NoError(t, err)

	assert.NoError(t, v.Validate(map[string]interface{}{"listen": ":8000", "workers": 4}))

	err = v.Validate(map[string]interface{}{"workers": 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/workers")

	err = v.Validate(map[string]interface{}{"unknown": true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation failed")
}

func TestNewValidatorRejectsBadDocument(t *testing.T) {
	_, err := NewValidator("bad.json", []byte(`{"type": 12}`))
	assert.Error(t, err)
}
