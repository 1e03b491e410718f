package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSpec(t *testing.T) {
	doc, err := LoadSpec()
	require.NoError(t, err)

	for _, path := range []string{
		"/api/v1/structure",
		"/api/v1/generate-model",
		"/api/v1/models",
		"/api/v1/models/{name}",
		"/health",
		"/version",
	} {
		assert.NotNil(t, doc.Paths.Find(path), path)
	}
	assert.Contains(t, doc.Components.Schemas, "StructureRequest")
}

func TestOpenAPIJSON(t *testing.T) {
	b, err := OpenAPIJSON()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "3.0.3", raw["openapi"])
}
