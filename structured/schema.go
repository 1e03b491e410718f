package structured

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// SchemaType represents JSON Schema types.
type SchemaType string

const (
	TypeString  SchemaType = "string"
	TypeNumber  SchemaType = "number"
	TypeInteger SchemaType = "integer"
	TypeBoolean SchemaType = "boolean"
	TypeNull    SchemaType = "null"
	TypeObject  SchemaType = "object"
	TypeArray   SchemaType = "array"
)

// StringFormat represents common string format constraints.
type StringFormat string

const (
	FormatDateTime StringFormat = "date-time"
	FormatDate     StringFormat = "date"
	FormatTime     StringFormat = "time"
	FormatEmail    StringFormat = "email"
	FormatURI      StringFormat = "uri"
	FormatUUID     StringFormat = "uuid"
	FormatHostname StringFormat = "hostname"
	FormatIPv4     StringFormat = "ipv4"
	FormatIPv6     StringFormat = "ipv6"
)

// DefsPrefix is the JSON pointer prefix used for local model references.
const DefsPrefix = "#/$defs/"

// legacyDefsPrefix is accepted when resolving references produced by older generators.
const legacyDefsPrefix = "#/definitions/"

// JSONSchema is the subset of JSON Schema (2020-12) that SchemaForge exchanges
// with clients and language models.
//
// Property order is preserved through PropertyOrder: it is filled when a schema
// is reflected from a Go type or decoded from JSON, and honoured when encoding.
type JSONSchema struct {
	Schema      string `json:"$schema,omitempty"`
	ID          string `json:"$id,omitempty"`
	Ref         string `json:"$ref,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	// Type is the primary type. Nullable is set when the type list also admits null,
	// e.g. {"type": ["string", "null"]}.
	Type     SchemaType `json:"-"`
	Nullable bool       `json:"-"`

	Properties           map[string]*JSONSchema `json:"-"`
	PropertyOrder        []string               `json:"-"`
	Required             []string               `json:"required,omitempty"`
	AdditionalProperties *AdditionalProperties  `json:"additionalProperties,omitempty"`
	MinProperties        *int                   `json:"minProperties,omitempty"`
	MaxProperties        *int                   `json:"maxProperties,omitempty"`

	Items       *JSONSchema `json:"items,omitempty"`
	MinItems    *int        `json:"minItems,omitempty"`
	MaxItems    *int        `json:"maxItems,omitempty"`
	UniqueItems *bool       `json:"uniqueItems,omitempty"`

	Enum  []any `json:"enum,omitempty"`
	Const any   `json:"const,omitempty"`

	MinLength *int         `json:"minLength,omitempty"`
	MaxLength *int         `json:"maxLength,omitempty"`
	Pattern   string       `json:"pattern,omitempty"`
	Format    StringFormat `json:"format,omitempty"`

	Minimum          *float64 `json:"minimum,omitempty"`
	Maximum          *float64 `json:"maximum,omitempty"`
	ExclusiveMinimum *float64 `json:"exclusiveMinimum,omitempty"`
	ExclusiveMaximum *float64 `json:"exclusiveMaximum,omitempty"`
	MultipleOf       *float64 `json:"multipleOf,omitempty"`

	Default  any   `json:"default,omitempty"`
	Examples []any `json:"examples,omitempty"`

	AllOf []*JSONSchema `json:"allOf,omitempty"`
	AnyOf []*JSONSchema `json:"anyOf,omitempty"`
	OneOf []*JSONSchema `json:"oneOf,omitempty"`

	Defs map[string]*JSONSchema `json:"$defs,omitempty"`
}

// AdditionalProperties represents the additionalProperties keyword, which is
// either a boolean or a schema.
type AdditionalProperties struct {
	Allowed bool
	Schema  *JSONSchema
}

// MarshalJSON implements json.Marshaler.
func (ap *AdditionalProperties) MarshalJSON() ([]byte, error) {
	if ap == nil {
		return []byte("null"), nil
	}
	if ap.Schema != nil {
		return json.Marshal(ap.Schema)
	}
	return json.Marshal(ap.Allowed)
}

// UnmarshalJSON implements json.Unmarshaler.
func (ap *AdditionalProperties) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		ap.Allowed = b
		ap.Schema = nil
		return nil
	}
	var schema JSONSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return fmt.Errorf("additionalProperties must be boolean or schema: %w", err)
	}
	ap.Allowed = true
	ap.Schema = &schema
	return nil
}

// schemaAlias drops the methods of JSONSchema so the wrappers below can reuse
// the default encoding for every plain field.
type schemaAlias JSONSchema

type schemaWire struct {
	*schemaAlias
	Type        json.RawMessage        `json:"type,omitempty"`
	Properties  json.RawMessage        `json:"properties,omitempty"`
	Definitions map[string]*JSONSchema `json:"definitions,omitempty"`
}

// MarshalJSON encodes the schema with ordered properties and a type list for
// nullable types.
func (s *JSONSchema) MarshalJSON() ([]byte, error) {
	w := schemaWire{schemaAlias: (*schemaAlias)(s)}

	if s.Type != "" {
		var err error
		if s.Nullable && s.Type != TypeNull {
			w.Type, err = json.Marshal([]SchemaType{s.Type, TypeNull})
		} else {
			w.Type, err = json.Marshal(s.Type)
		}
		if err != nil {
			return nil, err
		}
	}

	if s.Properties != nil {
		props, err := marshalOrdered(s.Properties, s.OrderedPropertyNames())
		if err != nil {
			return nil, err
		}
		w.Properties = props
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a schema, accepting "type" as a string or a list and
// recording property order. Legacy "definitions" are merged into Defs.
func (s *JSONSchema) UnmarshalJSON(data []byte) error {
	var alias schemaAlias
	w := schemaWire{schemaAlias: &alias}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = JSONSchema(alias)

	if len(w.Type) > 0 {
		if err := s.decodeType(w.Type); err != nil {
			return err
		}
	}

	if len(w.Properties) > 0 && !bytes.Equal(bytes.TrimSpace(w.Properties), []byte("null")) {
		if err := json.Unmarshal(w.Properties, &s.Properties); err != nil {
			return fmt.Errorf("properties: %w", err)
		}
		order, err := objectKeys(w.Properties)
		if err != nil {
			return fmt.Errorf("properties: %w", err)
		}
		s.PropertyOrder = order
	}

	for name, def := range w.Definitions {
		if s.Defs == nil {
			s.Defs = make(map[string]*JSONSchema, len(w.Definitions))
		}
		if _, exists := s.Defs[name]; !exists {
			s.Defs[name] = def
		}
	}
	return nil
}

func (s *JSONSchema) decodeType(raw json.RawMessage) error {
	var single SchemaType
	if err := json.Unmarshal(raw, &single); err == nil {
		s.Type = single
		return nil
	}
	var list []SchemaType
	if err := json.Unmarshal(raw, &list); err != nil {
		return fmt.Errorf("type must be a string or an array of strings")
	}
	for _, t := range list {
		if t == TypeNull {
			s.Nullable = true
			continue
		}
		if s.Type == "" {
			s.Type = t
		}
	}
	if s.Type == "" && s.Nullable {
		s.Type = TypeNull
		s.Nullable = false
	}
	return nil
}

// marshalOrdered writes a JSON object with keys in the given order.
func marshalOrdered(m map[string]*JSONSchema, order []string) (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range order {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(m[key])
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// objectKeys returns the top-level keys of a JSON object in document order.
func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object")
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key")
		}
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// ===== 构造函数 =====

// NewSchema creates a new JSONSchema with the specified type.
func NewSchema(t SchemaType) *JSONSchema {
	return &JSONSchema{Type: t}
}

// NewObjectSchema creates a new object schema.
func NewObjectSchema() *JSONSchema {
	return &JSONSchema{
		Type:       TypeObject,
		Properties: make(map[string]*JSONSchema),
	}
}

// NewArraySchema creates a new array schema with the specified items schema.
func NewArraySchema(items *JSONSchema) *JSONSchema {
	return &JSONSchema{Type: TypeArray, Items: items}
}

// NewStringSchema creates a new string schema.
func NewStringSchema() *JSONSchema { return &JSONSchema{Type: TypeString} }

// NewNumberSchema creates a new number schema.
func NewNumberSchema() *JSONSchema { return &JSONSchema{Type: TypeNumber} }

// NewIntegerSchema creates a new integer schema.
func NewIntegerSchema() *JSONSchema { return &JSONSchema{Type: TypeInteger} }

// NewBooleanSchema creates a new boolean schema.
func NewBooleanSchema() *JSONSchema { return &JSONSchema{Type: TypeBoolean} }

// NewEnumSchema creates a new enum schema with the specified values.
func NewEnumSchema(values ...any) *JSONSchema { return &JSONSchema{Enum: values} }

// NewRefSchema creates a reference to a named definition.
func NewRefSchema(name string) *JSONSchema { return &JSONSchema{Ref: DefsPrefix + name} }

// WithTitle sets the title and returns the schema for chaining.
func (s *JSONSchema) WithTitle(title string) *JSONSchema {
	s.Title = title
	return s
}

// WithDescription sets the description and returns the schema for chaining.
func (s *JSONSchema) WithDescription(desc string) *JSONSchema {
	s.Description = desc
	return s
}

// WithNullable admits null in addition to the primary type.
func (s *JSONSchema) WithNullable() *JSONSchema {
	s.Nullable = true
	return s
}

// WithFormat sets the format for string schema.
func (s *JSONSchema) WithFormat(format StringFormat) *JSONSchema {
	s.Format = format
	return s
}

// WithMinimum sets the minimum value for numeric schema.
func (s *JSONSchema) WithMinimum(min float64) *JSONSchema {
	s.Minimum = &min
	return s
}

// WithMaximum sets the maximum value for numeric schema.
func (s *JSONSchema) WithMaximum(max float64) *JSONSchema {
	s.Maximum = &max
	return s
}

// WithMinLength sets the minimum length for string schema.
func (s *JSONSchema) WithMinLength(min int) *JSONSchema {
	s.MinLength = &min
	return s
}

// WithMaxLength sets the maximum length for string schema.
func (s *JSONSchema) WithMaxLength(max int) *JSONSchema {
	s.MaxLength = &max
	return s
}

// WithMinItems sets the minimum items for array schema.
func (s *JSONSchema) WithMinItems(min int) *JSONSchema {
	s.MinItems = &min
	return s
}

// WithAdditionalProperties sets the additionalProperties constraint.
func (s *JSONSchema) WithAdditionalProperties(allowed bool) *JSONSchema {
	s.AdditionalProperties = &AdditionalProperties{Allowed: allowed}
	return s
}

// AddProperty adds a property to an object schema, keeping insertion order.
func (s *JSONSchema) AddProperty(name string, prop *JSONSchema) *JSONSchema {
	if s.Properties == nil {
		s.Properties = make(map[string]*JSONSchema)
	}
	if _, exists := s.Properties[name]; !exists {
		s.PropertyOrder = append(s.PropertyOrder, name)
	}
	s.Properties[name] = prop
	return s
}

// AddRequired adds required field names to an object schema.
func (s *JSONSchema) AddRequired(names ...string) *JSONSchema {
	for _, name := range names {
		if !s.IsRequired(name) {
			s.Required = append(s.Required, name)
		}
	}
	return s
}

// AddDef registers a named definition.
func (s *JSONSchema) AddDef(name string, def *JSONSchema) *JSONSchema {
	if s.Defs == nil {
		s.Defs = make(map[string]*JSONSchema)
	}
	s.Defs[name] = def
	return s
}

// ===== 查询 =====

// OrderedPropertyNames returns property names in declaration order. Names
// missing from PropertyOrder are appended alphabetically.
func (s *JSONSchema) OrderedPropertyNames() []string {
	if len(s.Properties) == 0 {
		return nil
	}
	names := make([]string, 0, len(s.Properties))
	seen := make(map[string]bool, len(s.Properties))
	for _, name := range s.PropertyOrder {
		if _, ok := s.Properties[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range s.Properties {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// IsRequired checks if a property is required.
func (s *JSONSchema) IsRequired(name string) bool {
	for _, req := range s.Required {
		if req == name {
			return true
		}
	}
	return false
}

// GetProperty returns a property schema by name.
func (s *JSONSchema) GetProperty(name string) *JSONSchema {
	if s.Properties == nil {
		return nil
	}
	return s.Properties[name]
}

// HasProperty checks if a property exists.
func (s *JSONSchema) HasProperty(name string) bool {
	_, ok := s.Properties[name]
	return ok
}

// IsObject reports whether the schema describes a JSON object.
func (s *JSONSchema) IsObject() bool {
	return s != nil && (s.Type == TypeObject || (s.Type == "" && s.Properties != nil))
}

// RefName returns the definition name referenced by Ref, if it is a local reference.
func (s *JSONSchema) RefName() (string, bool) {
	if s == nil || s.Ref == "" {
		return "", false
	}
	for _, prefix := range []string{DefsPrefix, legacyDefsPrefix} {
		if strings.HasPrefix(s.Ref, prefix) {
			name := strings.TrimPrefix(s.Ref, prefix)
			return name, name != ""
		}
	}
	return "", false
}

// Refs returns the names of every definition referenced anywhere below s,
// sorted and without duplicates.
func (s *JSONSchema) Refs() []string {
	seen := make(map[string]bool)
	s.walk(func(node *JSONSchema) {
		if name, ok := node.RefName(); ok {
			seen[name] = true
		}
	})
	refs := make([]string, 0, len(seen))
	for name := range seen {
		refs = append(refs, name)
	}
	sort.Strings(refs)
	return refs
}

func sortedDefNames(defs map[string]*JSONSchema) []string {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// walk visits s and every nested schema except entries of Defs.
func (s *JSONSchema) walk(fn func(*JSONSchema)) {
	if s == nil {
		return
	}
	fn(s)
	for _, name := range s.OrderedPropertyNames() {
		s.Properties[name].walk(fn)
	}
	s.Items.walk(fn)
	if s.AdditionalProperties != nil {
		s.AdditionalProperties.Schema.walk(fn)
	}
	for _, group := range [][]*JSONSchema{s.AllOf, s.AnyOf, s.OneOf} {
		for _, sub := range group {
			sub.walk(fn)
		}
	}
}

// ===== 序列化与复制 =====

// Clone creates a deep copy of the schema.
func (s *JSONSchema) Clone() *JSONSchema {
	if s == nil {
		return nil
	}
	c := *s
	c.Properties = cloneSchemaMap(s.Properties)
	c.Defs = cloneSchemaMap(s.Defs)
	c.PropertyOrder = cloneSlice(s.PropertyOrder)
	c.Required = cloneSlice(s.Required)
	c.Enum = cloneSlice(s.Enum)
	c.Examples = cloneSlice(s.Examples)
	c.Items = s.Items.Clone()
	c.AllOf = cloneSchemaSlice(s.AllOf)
	c.AnyOf = cloneSchemaSlice(s.AnyOf)
	c.OneOf = cloneSchemaSlice(s.OneOf)
	c.MinProperties = clonePtr(s.MinProperties)
	c.MaxProperties = clonePtr(s.MaxProperties)
	c.MinItems = clonePtr(s.MinItems)
	c.MaxItems = clonePtr(s.MaxItems)
	c.UniqueItems = clonePtr(s.UniqueItems)
	c.MinLength = clonePtr(s.MinLength)
	c.MaxLength = clonePtr(s.MaxLength)
	c.Minimum = clonePtr(s.Minimum)
	c.Maximum = clonePtr(s.Maximum)
	c.ExclusiveMinimum = clonePtr(s.ExclusiveMinimum)
	c.ExclusiveMaximum = clonePtr(s.ExclusiveMaximum)
	c.MultipleOf = clonePtr(s.MultipleOf)
	if s.AdditionalProperties != nil {
		c.AdditionalProperties = &AdditionalProperties{
			Allowed: s.AdditionalProperties.Allowed,
			Schema:  s.AdditionalProperties.Schema.Clone(),
		}
	}
	return &c
}

func cloneSchemaMap(m map[string]*JSONSchema) map[string]*JSONSchema {
	if m == nil {
		return nil
	}
	out := make(map[string]*JSONSchema, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}

func cloneSchemaSlice(in []*JSONSchema) []*JSONSchema {
	if in == nil {
		return nil
	}
	out := make([]*JSONSchema, len(in))
	for i, v := range in {
		out[i] = v.Clone()
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ToJSON serializes the schema to JSON.
func (s *JSONSchema) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// ToJSONIndent serializes the schema to indented JSON.
func (s *JSONSchema) ToJSONIndent() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// FromJSON deserializes a schema from JSON.
func FromJSON(data []byte) (*JSONSchema, error) {
	var schema JSONSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON schema: %w", err)
	}
	return &schema, nil
}
