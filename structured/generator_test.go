package structured

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type genAddress struct {
	Street string `json:"street" description:"Street and number"`
	City   string `json:"city"`
	Zip    string `json:"zip,omitempty" jsonschema:"pattern=^[0-9]{5}$"`
}

type genPerson struct {
	Name      string            `json:"name" description:"Full name" jsonschema:"minLength=1"`
	Age       int               `json:"age" jsonschema:"minimum=0,maximum=150"`
	Email     *string           `json:"email" jsonschema:"format=email"`
	Role      string            `json:"role" jsonschema:"enum=admin,user,guest,default=user"`
	Home      genAddress        `json:"home" description:"Primary residence"`
	Previous  []genAddress      `json:"previous,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
	Born      time.Time         `json:"born"`
	Extra     json.RawMessage   `json:"extra,omitempty"`
	Ignored   string            `json:"-"`
	internal  string
	Nickname  string `json:"nickname" jsonschema:"optional,nullable"`
	Confirmed bool   `json:"confirmed,omitempty" jsonschema:"required"`
}

func (genPerson) SchemaDescription() string { return "A person record" }

func TestSchemaGenerator_Struct(t *testing.T) {
	s, err := SchemaFor[genPerson]()
	require.NoError(t, err)

	assert.Equal(t, TypeObject, s.Type)
	assert.Equal(t, "genPerson", s.Title)
	assert.Equal(t, "A person record", s.Description)
	assert.Equal(t,
		[]string{"name", "age", "email", "role", "home", "previous", "labels", "born", "extra", "nickname", "confirmed"},
		s.OrderedPropertyNames())
	assert.ElementsMatch(t, []string{"name", "age", "role", "home", "born", "confirmed"}, s.Required)

	name := s.Properties["name"]
	assert.Equal(t, "Full name", name.Description)
	require.NotNil(t, name.MinLength)
	assert.Equal(t, 1, *name.MinLength)

	age := s.Properties["age"]
	assert.Equal(t, TypeInteger, age.Type)
	assert.Equal(t, 0.0, *age.Minimum)
	assert.Equal(t, 150.0, *age.Maximum)

	assert.Equal(t, FormatEmail, s.Properties["email"].Format)
	assert.Equal(t, []any{"admin", "user", "guest"}, s.Properties["role"].Enum)
	assert.Equal(t, "user", s.Properties["role"].Default)

	home := s.Properties["home"]
	require.Len(t, home.AllOf, 1, "described $ref is wrapped")
	assert.Equal(t, "#/$defs/genAddress", home.AllOf[0].Ref)
	assert.Equal(t, "Primary residence", home.Description)

	prev := s.Properties["previous"]
	assert.Equal(t, TypeArray, prev.Type)
	assert.Equal(t, "#/$defs/genAddress", prev.Items.Ref)

	labels := s.Properties["labels"]
	assert.Equal(t, TypeObject, labels.Type)
	require.NotNil(t, labels.AdditionalProperties)
	assert.Equal(t, TypeString, labels.AdditionalProperties.Schema.Type)

	assert.Equal(t, FormatDateTime, s.Properties["born"].Format)
	assert.Equal(t, SchemaType(""), s.Properties["extra"].Type)
	assert.True(t, s.Properties["nickname"].Nullable)
	assert.False(t, s.HasProperty("Ignored"))
	assert.False(t, s.HasProperty("internal"))

	require.Contains(t, s.Defs, "genAddress")
	addr := s.Defs["genAddress"]
	assert.Equal(t, "genAddress", addr.Title)
	assert.Equal(t, []string{"street", "city"}, addr.Required)
	assert.Equal(t, "^[0-9]{5}$", addr.Properties["zip"].Pattern)
}

type genNode struct {
	Value    int        `json:"value"`
	Children []*genNode `json:"children,omitempty"`
	Parent   *genTree   `json:"parent,omitempty"`
}

type genTree struct {
	Root *genNode `json:"root"`
}

func TestSchemaGenerator_RecursiveTypes(t *testing.T) {
	s, err := SchemaFor[genNode]()
	require.NoError(t, err)

	assert.Equal(t, "#", s.Properties["children"].Items.Ref)
	assert.Equal(t, "#/$defs/genTree", s.Properties["parent"].Ref)
	require.Contains(t, s.Defs, "genTree")
	assert.Equal(t, "#", s.Defs["genTree"].Properties["root"].Ref)

	data, err := json.Marshal(genNode{Value: 1, Children: []*genNode{{Value: 2}}})
	require.NoError(t, err)
	assert.NoError(t, NewValidator().Validate(data, s))
}

type genBase struct {
	ID string `json:"id"`
}

type genEmbedded struct {
	genBase
	Name string `json:"name"`
}

func TestSchemaGenerator_EmbeddedFieldsFlattened(t *testing.T) {
	s, err := SchemaFor[genEmbedded]()
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, s.OrderedPropertyNames())
}

func TestSchemaGenerator_Primitives(t *testing.T) {
	g := NewSchemaGenerator()
	tests := []struct {
		v    any
		want SchemaType
	}{
		{"", TypeString},
		{true, TypeBoolean},
		{int8(1), TypeInteger},
		{uint64(1), TypeInteger},
		{1.5, TypeNumber},
		{[]int{}, TypeArray},
		{[]byte("x"), TypeString},
		{map[string]int{}, TypeObject},
	}
	for _, tt := range tests {
		s, err := g.GenerateSchemaFromValue(tt.v)
		require.NoError(t, err)
		assert.Equal(t, tt.want, s.Type, "%T", tt.v)
	}

	_, err := g.GenerateSchemaFromValue(nil)
	assert.Error(t, err)
	_, err = g.GenerateSchema(reflect.TypeOf(make(chan int)))
	assert.Error(t, err)
	_, err = g.GenerateSchema(reflect.TypeOf(map[int]string{}))
	assert.Error(t, err)
}

func TestSplitTagParts(t *testing.T) {
	tests := []struct {
		tag  string
		want []string
	}{
		{"required", []string{"required"}},
		{"required,minLength=1", []string{"required", "minLength=1"}},
		{"enum=a,b,c", []string{"enum=a,b,c"}},
		{"enum=a,b,c,required", []string{"enum=a,b,c", "required"}},
		{"enum=a,b,default=b,nullable", []string{"enum=a,b", "default=b", "nullable"}},
		{"pattern=^a,b$", []string{"pattern=^a,b$"}},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			assert.Equal(t, tt.want, splitTagParts(tt.tag))
		})
	}
}

func TestParseDefaultValue(t *testing.T) {
	assert.Equal(t, true, parseDefaultValue("true", reflect.TypeOf(false)))
	assert.Equal(t, int64(-3), parseDefaultValue("-3", reflect.TypeOf(0)))
	assert.Equal(t, uint64(3), parseDefaultValue("3", reflect.TypeOf(uint(0))))
	assert.Equal(t, 2.5, parseDefaultValue("2.5", reflect.TypeOf(0.0)))
	assert.Equal(t, "x", parseDefaultValue("x", reflect.TypeOf("")))
	assert.Equal(t, "nan", parseDefaultValue("nan", reflect.TypeOf(0)))
}
