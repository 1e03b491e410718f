package structured

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSchema_MarshalPreservesPropertyOrder(t *testing.T) {
	s := NewObjectSchema().
		AddProperty("zeta", NewStringSchema()).
		AddProperty("alpha", NewIntegerSchema()).
		AddProperty("mid", NewBooleanSchema())

	data, err := s.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","properties":{"zeta":{"type":"string"},"alpha":{"type":"integer"},"mid":{"type":"boolean"}}}`, string(data))

	z := strings.Index(string(data), `"zeta"`)
	a := strings.Index(string(data), `"alpha"`)
	m := strings.Index(string(data), `"mid"`)
	assert.True(t, z < a && a < m, "properties must keep insertion order: %s", data)
}

func TestJSONSchema_UnmarshalRecordsOrder(t *testing.T) {
	raw := `{"type":"object","properties":{"b":{"type":"string"},"a":{"type":"number"},"c":{"type":"array","items":{"type":"string"}}},"required":["b"]}`
	s, err := FromJSON([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, TypeObject, s.Type)
	assert.Equal(t, []string{"b", "a", "c"}, s.PropertyOrder)
	assert.Equal(t, []string{"b", "a", "c"}, s.OrderedPropertyNames())
	assert.Equal(t, TypeString, s.Properties["c"].Items.Type)
	assert.True(t, s.IsRequired("b"))
}

func TestJSONSchema_NullableTypeList(t *testing.T) {
	s, err := FromJSON([]byte(`{"type":["string","null"],"maxLength":3}`))
	require.NoError(t, err)
	assert.Equal(t, TypeString, s.Type)
	assert.True(t, s.Nullable)
	require.NotNil(t, s.MaxLength)
	assert.Equal(t, 3, *s.MaxLength)

	data, err := s.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":["string","null"],"maxLength":3}`, string(data))

	onlyNull, err := FromJSON([]byte(`{"type":["null"]}`))
	require.NoError(t, err)
	assert.Equal(t, TypeNull, onlyNull.Type)
	assert.False(t, onlyNull.Nullable)

	_, err = FromJSON([]byte(`{"type":42}`))
	assert.Error(t, err)
}

func TestJSONSchema_LegacyDefinitionsMerged(t *testing.T) {
	s, err := FromJSON([]byte(`{
		"type":"object",
		"properties":{"addr":{"$ref":"#/definitions/Address"}},
		"definitions":{"Address":{"type":"object","properties":{"city":{"type":"string"}}}}
	}`))
	require.NoError(t, err)
	require.Contains(t, s.Defs, "Address")

	name, ok := s.Properties["addr"].RefName()
	assert.True(t, ok)
	assert.Equal(t, "Address", name)
	assert.Equal(t, []string{"Address"}, s.Refs())
}

func TestJSONSchema_AdditionalProperties(t *testing.T) {
	var s JSONSchema
	require.NoError(t, json.Unmarshal([]byte(`{"type":"object","additionalProperties":false}`), &s))
	require.NotNil(t, s.AdditionalProperties)
	assert.False(t, s.AdditionalProperties.Allowed)

	require.NoError(t, json.Unmarshal([]byte(`{"type":"object","additionalProperties":{"type":"integer"}}`), &s))
	require.NotNil(t, s.AdditionalProperties.Schema)
	assert.Equal(t, TypeInteger, s.AdditionalProperties.Schema.Type)

	data, err := s.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","additionalProperties":{"type":"integer"}}`, string(data))
}

func TestJSONSchema_CloneIsDeep(t *testing.T) {
	orig := NewObjectSchema().
		WithTitle("Person").
		AddProperty("name", NewStringSchema().WithMinLength(1)).
		AddProperty("tags", NewArraySchema(NewStringSchema())).
		AddRequired("name").
		AddDef("Address", NewObjectSchema().AddProperty("city", NewStringSchema()))

	c := orig.Clone()
	require.Equal(t, orig.OrderedPropertyNames(), c.OrderedPropertyNames())

	*c.Properties["name"].MinLength = 5
	c.Properties["tags"].Items.Type = TypeInteger
	c.Required[0] = "other"
	c.Defs["Address"].Title = "changed"
	c.AddProperty("extra", NewStringSchema())

	assert.Equal(t, 1, *orig.Properties["name"].MinLength)
	assert.Equal(t, TypeString, orig.Properties["tags"].Items.Type)
	assert.Equal(t, []string{"name"}, orig.Required)
	assert.Empty(t, orig.Defs["Address"].Title)
	assert.False(t, orig.HasProperty("extra"))
	assert.Nil(t, (*JSONSchema)(nil).Clone())
}

func TestJSONSchema_AddRequiredDeduplicates(t *testing.T) {
	s := NewObjectSchema().AddRequired("a", "b").AddRequired("a")
	assert.Equal(t, []string{"a", "b"}, s.Required)
}

func TestJSONSchema_OrderedPropertyNamesFallback(t *testing.T) {
	s := &JSONSchema{
		Type: TypeObject,
		Properties: map[string]*JSONSchema{
			"c": NewStringSchema(), "a": NewStringSchema(), "b": NewStringSchema(),
		},
		PropertyOrder: []string{"b", "missing"},
	}
	assert.Equal(t, []string{"b", "a", "c"}, s.OrderedPropertyNames())
}

func TestJSONSchema_IsObject(t *testing.T) {
	assert.True(t, NewObjectSchema().IsObject())
	assert.True(t, (&JSONSchema{Properties: map[string]*JSONSchema{}}).IsObject())
	assert.False(t, NewStringSchema().IsObject())
	assert.False(t, (*JSONSchema)(nil).IsObject())
}
