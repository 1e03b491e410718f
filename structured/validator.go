package structured

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// SchemaValidator validates JSON data against a JSONSchema.
type SchemaValidator interface {
	Validate(data []byte, schema *JSONSchema) error
}

// ParseError represents a validation error with field path.
type ParseError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors represents multiple validation errors.
type ValidationErrors struct {
	Errors []ParseError `json:"errors"`
}

// Error implements the error interface.
func (e *ValidationErrors) Error() string {
	switch len(e.Errors) {
	case 0:
		return "validation failed"
	case 1:
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i := range e.Errors {
		msgs[i] = e.Errors[i].Error()
	}
	return fmt.Sprintf("validation failed with %d errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// maxRefDepth bounds $ref chains so that malformed self-references terminate.
const maxRefDepth = 64

// DefaultValidator is the default implementation of SchemaValidator.
// It is safe for concurrent use once formats are registered.
type DefaultValidator struct {
	formats  map[StringFormat]func(string) bool
	patterns sync.Map // string -> *regexp.Regexp
}

// NewValidator creates a new DefaultValidator with built-in format validators.
func NewValidator() *DefaultValidator {
	return &DefaultValidator{formats: builtinFormats()}
}

var (
	emailRe    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	uuidRe     = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	hostnameRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
	timeRe     = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})?$`)
)

func builtinFormats() map[StringFormat]func(string) bool {
	return map[StringFormat]func(string) bool{
		FormatEmail: emailRe.MatchString,
		FormatUUID:  uuidRe.MatchString,
		FormatTime:  timeRe.MatchString,
		FormatURI: func(s string) bool {
			u, err := url.Parse(s)
			return err == nil && u.Scheme != ""
		},
		FormatDateTime: func(s string) bool {
			_, err := time.Parse(time.RFC3339, s)
			return err == nil
		},
		FormatDate: func(s string) bool {
			_, err := time.Parse(time.DateOnly, s)
			return err == nil
		},
		FormatIPv4: func(s string) bool {
			ip := net.ParseIP(s)
			return ip != nil && ip.To4() != nil && strings.Count(s, ".") == 3
		},
		FormatIPv6: func(s string) bool {
			ip := net.ParseIP(s)
			return ip != nil && strings.Contains(s, ":")
		},
		FormatHostname: func(s string) bool {
			return len(s) <= 253 && hostnameRe.MatchString(s)
		},
	}
}

// RegisterFormat registers a custom format validator.
func (v *DefaultValidator) RegisterFormat(format StringFormat, fn func(string) bool) {
	v.formats[format] = fn
}

// Validate validates JSON data against a schema.
func (v *DefaultValidator) Validate(data []byte, schema *JSONSchema) error {
	if schema == nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return &ValidationErrors{Errors: []ParseError{{Message: fmt.Sprintf("invalid JSON: %v", err)}}}
	}
	return v.ValidateValue(value, schema)
}

// ValidateValue validates an already decoded JSON value.
func (v *DefaultValidator) ValidateValue(value any, schema *JSONSchema) error {
	if schema == nil {
		return nil
	}
	run := &validation{v: v, root: schema}
	run.value(value, schema, "", 0)
	if len(run.errs) > 0 {
		return &ValidationErrors{Errors: run.errs}
	}
	return nil
}

// validation carries the state of a single Validate call.
type validation struct {
	v    *DefaultValidator
	root *JSONSchema
	errs []ParseError
}

func (r *validation) fail(path, format string, args ...any) {
	r.errs = append(r.errs, ParseError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// resolve follows $ref to the target definition.
func (r *validation) resolve(s *JSONSchema, depth int) (*JSONSchema, error) {
	for s != nil && s.Ref != "" {
		if depth > maxRefDepth {
			return nil, fmt.Errorf("$ref chain too deep")
		}
		depth++
		if s.Ref == "#" {
			s = r.root
			continue
		}
		name, ok := s.RefName()
		if !ok {
			return nil, fmt.Errorf("unsupported $ref %q", s.Ref)
		}
		def, ok := r.root.Defs[name]
		if !ok {
			return nil, fmt.Errorf("unresolved $ref %q", s.Ref)
		}
		s = def
	}
	return s, nil
}

// admitsNull reports whether null is an acceptable value for s.
func (r *validation) admitsNull(s *JSONSchema) bool {
	s, err := r.resolve(s, 0)
	if err != nil || s == nil {
		return false
	}
	if s.Nullable || s.Type == TypeNull || (s.Type == "" && s.Const == nil && len(s.Enum) == 0 && len(s.AnyOf) == 0 && len(s.OneOf) == 0 && len(s.AllOf) == 0) {
		return true
	}
	for _, sub := range append(append([]*JSONSchema{}, s.AnyOf...), s.OneOf...) {
		if r.admitsNull(sub) {
			return true
		}
	}
	return false
}

func (r *validation) value(value any, schema *JSONSchema, path string, depth int) {
	schema, err := r.resolve(schema, depth)
	if err != nil {
		r.fail(path, "%v", err)
		return
	}
	if schema == nil {
		return
	}

	if value == nil && schema.Nullable {
		return
	}

	if schema.Const != nil {
		if !equalValues(value, schema.Const) {
			r.fail(path, "value must be %v", schema.Const)
		}
		return
	}

	if len(schema.Enum) > 0 {
		found := false
		for _, e := range schema.Enum {
			if equalValues(value, e) {
				found = true
				break
			}
		}
		if !found {
			r.fail(path, "value must be one of: %v", schema.Enum)
		}
	}

	for _, sub := range schema.AllOf {
		r.value(value, sub, path, depth+1)
	}
	if len(schema.AnyOf) > 0 && r.countMatches(value, schema.AnyOf, depth) == 0 {
		r.fail(path, "value does not match any of the allowed schemas")
	}
	if len(schema.OneOf) > 0 {
		if n := r.countMatches(value, schema.OneOf, depth); n != 1 {
			r.fail(path, "value must match exactly one schema, matched %d", n)
		}
	}

	switch schema.Type {
	case TypeString:
		r.str(value, schema, path)
	case TypeNumber:
		if num, ok := toFloat64(value); ok {
			r.numeric(num, schema, path)
		} else {
			r.fail(path, "expected number, got %s", jsonTypeName(value))
		}
	case TypeInteger:
		num, ok := toFloat64(value)
		switch {
		case !ok:
			r.fail(path, "expected integer, got %s", jsonTypeName(value))
		case num != math.Trunc(num):
			r.fail(path, "expected integer, got %v", num)
		default:
			r.numeric(num, schema, path)
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			r.fail(path, "expected boolean, got %s", jsonTypeName(value))
		}
	case TypeNull:
		if value != nil {
			r.fail(path, "expected null, got %s", jsonTypeName(value))
		}
	case TypeObject:
		r.object(value, schema, path, depth)
	case TypeArray:
		r.array(value, schema, path, depth)
	case "":
		if schema.Properties != nil {
			if _, isObj := value.(map[string]any); isObj {
				r.object(value, schema, path, depth)
			}
		}
	}
}

func (r *validation) countMatches(value any, schemas []*JSONSchema, depth int) int {
	n := 0
	for _, sub := range schemas {
		probe := &validation{v: r.v, root: r.root}
		probe.value(value, sub, "", depth+1)
		if len(probe.errs) == 0 {
			n++
		}
	}
	return n
}

func (r *validation) str(value any, schema *JSONSchema, path string) {
	s, ok := value.(string)
	if !ok {
		r.fail(path, "expected string, got %s", jsonTypeName(value))
		return
	}
	length := utf8.RuneCountInString(s)
	if schema.MinLength != nil && length < *schema.MinLength {
		r.fail(path, "string length %d is less than minimum %d", length, *schema.MinLength)
	}
	if schema.MaxLength != nil && length > *schema.MaxLength {
		r.fail(path, "string length %d exceeds maximum %d", length, *schema.MaxLength)
	}
	if schema.Pattern != "" {
		re, err := r.v.compile(schema.Pattern)
		if err != nil {
			r.fail(path, "invalid pattern %q: %v", schema.Pattern, err)
		} else if !re.MatchString(s) {
			r.fail(path, "string does not match pattern %q", schema.Pattern)
		}
	}
	if schema.Format != "" {
		if check, ok := r.v.formats[schema.Format]; ok && !check(s) {
			r.fail(path, "string does not match format %q", schema.Format)
		}
	}
}

func (r *validation) numeric(num float64, schema *JSONSchema, path string) {
	if schema.Minimum != nil && num < *schema.Minimum {
		r.fail(path, "value %v is less than minimum %v", num, *schema.Minimum)
	}
	if schema.Maximum != nil && num > *schema.Maximum {
		r.fail(path, "value %v exceeds maximum %v", num, *schema.Maximum)
	}
	if schema.ExclusiveMinimum != nil && num <= *schema.ExclusiveMinimum {
		r.fail(path, "value %v must be greater than %v", num, *schema.ExclusiveMinimum)
	}
	if schema.ExclusiveMaximum != nil && num >= *schema.ExclusiveMaximum {
		r.fail(path, "value %v must be less than %v", num, *schema.ExclusiveMaximum)
	}
	if schema.MultipleOf != nil && *schema.MultipleOf != 0 {
		q := num / *schema.MultipleOf
		if math.Abs(q-math.Round(q)) > 1e-9 {
			r.fail(path, "value %v is not a multiple of %v", num, *schema.MultipleOf)
		}
	}
}

func (r *validation) object(value any, schema *JSONSchema, path string, depth int) {
	obj, ok := value.(map[string]any)
	if !ok {
		r.fail(path, "expected object, got %s", jsonTypeName(value))
		return
	}

	for _, req := range schema.Required {
		val, exists := obj[req]
		switch {
		case !exists:
			r.fail(joinPath(path, req), "required field is missing")
		case val == nil && !r.admitsNull(schema.Properties[req]):
			r.fail(joinPath(path, req), "required field must not be null")
		}
	}

	if schema.MinProperties != nil && len(obj) < *schema.MinProperties {
		r.fail(path, "object has %d properties, minimum is %d", len(obj), *schema.MinProperties)
	}
	if schema.MaxProperties != nil && len(obj) > *schema.MaxProperties {
		r.fail(path, "object has %d properties, maximum is %d", len(obj), *schema.MaxProperties)
	}

	// 按 schema 声明顺序校验，保证错误输出稳定
	for _, name := range schema.OrderedPropertyNames() {
		val, exists := obj[name]
		// null 已在 required 检查中处理
		if !exists || val == nil {
			continue
		}
		r.value(val, schema.Properties[name], joinPath(path, name), depth+1)
	}

	if ap := schema.AdditionalProperties; ap != nil {
		for _, name := range sortedKeys(obj) {
			if schema.HasProperty(name) {
				continue
			}
			switch {
			case ap.Schema != nil:
				r.value(obj[name], ap.Schema, joinPath(path, name), depth+1)
			case !ap.Allowed:
				r.fail(joinPath(path, name), "additional property not allowed")
			}
		}
	}
}

func (r *validation) array(value any, schema *JSONSchema, path string, depth int) {
	arr, ok := value.([]any)
	if !ok {
		r.fail(path, "expected array, got %s", jsonTypeName(value))
		return
	}
	if schema.MinItems != nil && len(arr) < *schema.MinItems {
		r.fail(path, "array has %d items, minimum is %d", len(arr), *schema.MinItems)
	}
	if schema.MaxItems != nil && len(arr) > *schema.MaxItems {
		r.fail(path, "array has %d items, maximum is %d", len(arr), *schema.MaxItems)
	}
	if schema.UniqueItems != nil && *schema.UniqueItems {
		seen := make(map[string]bool, len(arr))
		for i, item := range arr {
			key := valueKey(item)
			if seen[key] {
				r.fail(indexPath(path, i), "duplicate item in array with uniqueItems constraint")
			}
			seen[key] = true
		}
	}
	if schema.Items != nil {
		for i, item := range arr {
			r.value(item, schema.Items, indexPath(path, i), depth+1)
		}
	}
}

func (v *DefaultValidator) compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := v.patterns.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	v.patterns.Store(pattern, re)
	return re, nil
}

func toFloat64(value any) (float64, bool) {
	switch n := value.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func equalValues(a, b any) bool {
	if an, ok := toFloat64(a); ok {
		bn, ok := toFloat64(b)
		return ok && an == bn
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return valueKey(a) == valueKey(b)
}

func valueKey(value any) string {
	data, _ := json.Marshal(value)
	return string(data)
}

func jsonTypeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, float32, int, int64, int32:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", value)
	}
}

func joinPath(base, segment string) string {
	if base == "" {
		return segment
	}
	return base + "." + segment
}

func indexPath(base string, i int) string {
	return fmt.Sprintf("%s[%d]", base, i)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
