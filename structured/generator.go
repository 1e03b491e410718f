package structured

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Describer lets a Go type supply the model-level description used in prompts
// and generated schemas.
type Describer interface {
	SchemaDescription() string
}

var (
	timeType       = reflect.TypeOf(time.Time{})
	rawMessageType = reflect.TypeOf(json.RawMessage{})
	describerType  = reflect.TypeOf((*Describer)(nil)).Elem()
)

// SchemaGenerator 利用反射从 Go 类型生成 JSON Schema。
//
// The root struct is rendered inline with its type name as title. Every other
// named struct becomes an entry in $defs and is referenced via $ref, which keeps
// recursive types finite and mirrors the main-model/sub-model split used by
// model generation.
type SchemaGenerator struct {
	defs  map[string]*JSONSchema
	names map[reflect.Type]string
	root  reflect.Type
}

// NewSchemaGenerator creates a new SchemaGenerator.
func NewSchemaGenerator() *SchemaGenerator {
	return &SchemaGenerator{}
}

// GenerateSchema generates a JSON Schema from a Go type.
//
// Struct fields use the "json" tag for names, a "description" tag for field
// documentation, and a "jsonschema" tag for constraints:
//   - required / optional: override the default (required unless omitempty or pointer)
//   - nullable: admit null
//   - title=..., description=..., default=...
//   - enum=a,b,c
//   - minimum=0, maximum=100
//   - minLength=1, maxLength=100, pattern=^[a-z]+$, format=email
//   - minItems=1, maxItems=10
func (g *SchemaGenerator) GenerateSchema(t reflect.Type) (*JSONSchema, error) {
	if t == nil {
		return nil, fmt.Errorf("cannot generate schema for nil type")
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	g.defs = make(map[string]*JSONSchema)
	g.names = make(map[reflect.Type]string)
	g.root = t

	var (
		schema *JSONSchema
		err    error
	)
	if t.Kind() == reflect.Struct && t != timeType {
		g.names[t] = t.Name()
		schema, err = g.structSchema(t)
	} else {
		schema, err = g.generateSchema(t)
	}
	if err != nil {
		return nil, err
	}
	if t.Kind() == reflect.Struct && t != timeType && t.Name() != "" && schema.Title == "" {
		schema.Title = t.Name()
	}
	if len(g.defs) > 0 {
		schema.Defs = g.defs
	}
	return schema, nil
}

// GenerateSchemaFromValue generates a JSON Schema from the type of v.
func (g *SchemaGenerator) GenerateSchemaFromValue(v any) (*JSONSchema, error) {
	if v == nil {
		return nil, fmt.Errorf("cannot generate schema from nil value")
	}
	return g.GenerateSchema(reflect.TypeOf(v))
}

// SchemaFor reflects the schema of T.
func SchemaFor[T any]() (*JSONSchema, error) {
	return NewSchemaGenerator().GenerateSchema(reflect.TypeOf((*T)(nil)).Elem())
}

func (g *SchemaGenerator) generateSchema(t reflect.Type) (*JSONSchema, error) {
	if t.Kind() == reflect.Ptr {
		return g.generateSchema(t.Elem())
	}

	switch t {
	case timeType:
		return NewStringSchema().WithFormat(FormatDateTime), nil
	case rawMessageType:
		return &JSONSchema{}, nil
	}

	switch t.Kind() {
	case reflect.String:
		return NewStringSchema(), nil
	case reflect.Bool:
		return NewBooleanSchema(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return NewIntegerSchema(), nil
	case reflect.Float32, reflect.Float64:
		return NewNumberSchema(), nil
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			// encoding/json renders []byte as base64 text
			return NewStringSchema(), nil
		}
		items, err := g.generateSchema(t.Elem())
		if err != nil {
			return nil, fmt.Errorf("array element: %w", err)
		}
		return NewArraySchema(items), nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("unsupported map key type: %s", t.Key())
		}
		values, err := g.generateSchema(t.Elem())
		if err != nil {
			return nil, fmt.Errorf("map value: %w", err)
		}
		schema := NewObjectSchema()
		schema.Properties = nil
		schema.AdditionalProperties = &AdditionalProperties{Allowed: true, Schema: values}
		return schema, nil
	case reflect.Struct:
		if t.Name() == "" {
			return g.structSchema(t)
		}
		return g.namedStruct(t)
	case reflect.Interface:
		return &JSONSchema{}, nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", t.Kind())
	}
}

// namedStruct returns a $ref to the definition of t, generating it on first use.
func (g *SchemaGenerator) namedStruct(t reflect.Type) (*JSONSchema, error) {
	if t == g.root {
		return &JSONSchema{Ref: "#"}, nil
	}
	if name, ok := g.names[t]; ok {
		return NewRefSchema(name), nil
	}

	name := g.uniqueName(t.Name())
	g.names[t] = name
	// 先占位，递归引用时可以直接返回 $ref
	g.defs[name] = &JSONSchema{}

	schema, err := g.structSchema(t)
	if err != nil {
		return nil, err
	}
	schema.Title = name
	g.defs[name] = schema
	return NewRefSchema(name), nil
}

func (g *SchemaGenerator) uniqueName(base string) string {
	name := base
	for i := 2; ; i++ {
		if _, taken := g.defs[name]; !taken {
			return name
		}
		name = base + strconv.Itoa(i)
	}
}

func (g *SchemaGenerator) structSchema(t reflect.Type) (*JSONSchema, error) {
	schema := NewObjectSchema()
	if desc, ok := typeDescription(t); ok {
		schema.Description = desc
	}
	if err := g.addFields(schema, t); err != nil {
		return nil, err
	}
	return schema, nil
}

// addFields adds the exported fields of t, flattening embedded structs the
// way encoding/json does.
func (g *SchemaGenerator) addFields(schema *JSONSchema, t reflect.Type) error {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		name, omitEmpty, skip := jsonFieldName(field)
		if skip {
			continue
		}

		if field.Anonymous && field.Tag.Get("json") == "" {
			ft := field.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				if err := g.addFields(schema, ft); err != nil {
					return err
				}
				continue
			}
		}
		if !field.IsExported() {
			continue
		}

		fieldSchema, err := g.generateSchema(field.Type)
		if err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}

		options := parseTagOptions(field.Tag.Get("jsonschema"))
		if desc := field.Tag.Get("description"); desc != "" {
			fieldSchema = withRefSafe(fieldSchema)
			fieldSchema.Description = desc
		}
		if len(options) > 0 {
			fieldSchema = withRefSafe(fieldSchema)
			applyTagOptions(fieldSchema, options, field.Type)
		}

		schema.AddProperty(name, fieldSchema)
		if isFieldRequired(field, omitEmpty, options) {
			schema.AddRequired(name)
		}
	}
	return nil
}

// withRefSafe wraps a bare $ref so sibling keywords do not alter the shared
// definition's meaning for older validators.
func withRefSafe(s *JSONSchema) *JSONSchema {
	if s.Ref == "" {
		return s
	}
	return &JSONSchema{AllOf: []*JSONSchema{s}}
}

func typeDescription(t reflect.Type) (string, bool) {
	var d Describer
	switch {
	case t.Implements(describerType):
		d, _ = reflect.Zero(t).Interface().(Describer)
	case reflect.PointerTo(t).Implements(describerType):
		d, _ = reflect.New(t).Interface().(Describer)
	default:
		return "", false
	}
	if d == nil {
		return "", false
	}
	desc := d.SchemaDescription()
	return desc, desc != ""
}

// jsonFieldName follows encoding/json naming rules.
func jsonFieldName(field reflect.StructField) (name string, omitEmpty, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	for _, opt := range parts[1:] {
		if opt == "omitempty" || opt == "omitzero" {
			omitEmpty = true
		}
	}
	if name == "" {
		name = field.Name
	}
	return name, omitEmpty, false
}

func isFieldRequired(field reflect.StructField, omitEmpty bool, options map[string]string) bool {
	if _, ok := options["required"]; ok {
		return true
	}
	if _, ok := options["optional"]; ok {
		return false
	}
	return !omitEmpty && field.Type.Kind() != reflect.Ptr
}

// applyTagOptions 将 jsonschema 标签约束应用到 schema。
func applyTagOptions(schema *JSONSchema, options map[string]string, t reflect.Type) {
	if title, ok := options["title"]; ok {
		schema.Title = title
	}
	if desc, ok := options["description"]; ok {
		schema.Description = desc
	}
	if _, ok := options["nullable"]; ok {
		schema.Nullable = true
	}
	if def, ok := options["default"]; ok {
		schema.Default = parseDefaultValue(def, t)
	}
	if enumStr, ok := options["enum"]; ok {
		values := strings.Split(enumStr, ",")
		schema.Enum = make([]any, len(values))
		for i, v := range values {
			schema.Enum[i] = parseDefaultValue(strings.TrimSpace(v), t)
		}
	}
	if pattern, ok := options["pattern"]; ok {
		schema.Pattern = pattern
	}
	if format, ok := options["format"]; ok {
		schema.Format = StringFormat(format)
	}

	intOpts := map[string]**int{
		"minLength": &schema.MinLength,
		"maxLength": &schema.MaxLength,
		"minItems":  &schema.MinItems,
		"maxItems":  &schema.MaxItems,
	}
	for key, dst := range intOpts {
		if raw, ok := options[key]; ok {
			if v, err := strconv.Atoi(raw); err == nil {
				*dst = &v
			}
		}
	}

	floatOpts := map[string]**float64{
		"minimum":          &schema.Minimum,
		"maximum":          &schema.Maximum,
		"exclusiveMinimum": &schema.ExclusiveMinimum,
		"exclusiveMaximum": &schema.ExclusiveMaximum,
		"multipleOf":       &schema.MultipleOf,
	}
	for key, dst := range floatOpts {
		if raw, ok := options[key]; ok {
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				*dst = &v
			}
		}
	}
}

// parseTagOptions 将 jsonschema 标签解析为选项表。
// 格式："opt1,opt2=value2,enum=a,b,c"
func parseTagOptions(tag string) map[string]string {
	options := make(map[string]string)
	for _, part := range splitTagParts(tag) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if idx := strings.Index(part, "="); idx > 0 {
			options[part[:idx]] = part[idx+1:]
		} else {
			options[part] = ""
		}
	}
	return options
}

var boolTagOptions = map[string]bool{
	"required": true,
	"optional": true,
	"nullable": true,
}

// splitTagParts 按逗号切分标签，但保留值内部的逗号（如 enum=a,b,c）。
// 进入值之后，只有当下一段是已知布尔选项或形如 key=value 时才切分。
func splitTagParts(tag string) []string {
	var parts []string
	var current strings.Builder
	inValue := false

	for i := 0; i < len(tag); i++ {
		ch := tag[i]
		switch {
		case ch == '=':
			inValue = true
			current.WriteByte(ch)
		case ch == ',' && !inValue:
			parts = append(parts, current.String())
			current.Reset()
		case ch == ',':
			next := tag[i+1:]
			if j := strings.IndexByte(next, ','); j >= 0 {
				next = next[:j]
			}
			next = strings.TrimSpace(next)
			if boolTagOptions[next] || looksLikeOption(next) {
				parts = append(parts, current.String())
				current.Reset()
				inValue = false
				continue
			}
			current.WriteByte(ch)
		default:
			current.WriteByte(ch)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

func looksLikeOption(segment string) bool {
	eq := strings.IndexByte(segment, '=')
	if eq <= 0 {
		return false
	}
	for _, c := range segment[:eq] {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

// parseDefaultValue converts a tag value to the field's JSON type.
func parseDefaultValue(value string, t reflect.Type) any {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			return v
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			return v
		}
	case reflect.Float32, reflect.Float64:
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return value
}
