package codegen

import (
	"bytes"
	"fmt"
	"go/format"
	"go/token"
	"sort"
	"strings"
	"text/template"

	"github.com/BaSui01/schemaforge/structured"
)

// DefaultPackage 未指定包名时使用
const DefaultPackage = "models"

type fieldData struct {
	Doc  []string
	Name string
	Type string
	Tag  string
}

type structData struct {
	Doc    []string
	Name   string
	Fields []fieldData
}

type fileData struct {
	Package    string
	ImportTime bool
	Structs    []structData
}

var fileTemplate = template.Must(template.New("models").Parse(`// Code generated by schemaforge. DO NOT EDIT.

package {{.Package}}
{{if .ImportTime}}
import "time"
{{end}}
{{- range .Structs}}
{{range .Doc}}// {{.}}
{{end -}}
type {{.Name}} struct {
{{- range .Fields}}
{{range .Doc}}	// {{.}}
{{end -}}
	{{.Name}} {{.Type}} ` + "`{{.Tag}}`" + `
{{- end}}
}
{{end}}`))

// Generate 渲染 models 中全部模型的 Go 源码，主模型在前，其余按名称排序
func Generate(pkg, main string, models map[string]*structured.JSONSchema) (string, error) {
	if pkg == "" {
		pkg = DefaultPackage
	}
	if !token.IsIdentifier(pkg) {
		return "", fmt.Errorf("invalid package name %q", pkg)
	}
	if _, ok := models[main]; !ok {
		return "", fmt.Errorf("main model %q not found", main)
	}

	r := &renderer{models: models, typeNames: make(map[string]string, len(models))}
	used := make(map[string]bool, len(models))
	for _, name := range orderedModelNames(main, models) {
		r.typeNames[name] = uniqueName(ExportedName(name), used)
	}

	data := fileData{Package: pkg}
	for _, name := range orderedModelNames(main, models) {
		sd, err := r.structFor(name, models[name])
		if err != nil {
			return "", err
		}
		data.Structs = append(data.Structs, sd)
	}
	data.ImportTime = r.usesTime

	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render models: %w", err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("format generated source: %w", err)
	}
	return string(src), nil
}

func orderedModelNames(main string, models map[string]*structured.JSONSchema) []string {
	rest := make([]string, 0, len(models))
	for name := range models {
		if name != main {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append([]string{main}, rest...)
}

type renderer struct {
	models    map[string]*structured.JSONSchema
	typeNames map[string]string
	usesTime  bool
}

func (r *renderer) structFor(name string, schema *structured.JSONSchema) (structData, error) {
	if schema == nil {
		return structData{}, fmt.Errorf("model %q has no schema", name)
	}
	sd := structData{Name: r.typeNames[name], Doc: docLines(schema.Description)}

	used := make(map[string]bool)
	for _, prop := range schema.OrderedPropertyNames() {
		if strings.ContainsAny(prop, "`\"\\") {
			return structData{}, fmt.Errorf("model %s: property name %q cannot be used in a struct tag", name, prop)
		}
		ps := schema.Properties[prop]
		required := schema.IsRequired(prop)
		typ, err := r.goType(ps, required)
		if err != nil {
			return structData{}, fmt.Errorf("model %s.%s: %w", name, prop, err)
		}
		sd.Fields = append(sd.Fields, fieldData{
			Doc:  docLines(ps.Description),
			Name: uniqueName(ExportedName(prop), used),
			Type: typ,
			Tag:  fieldTag(prop, required),
		})
	}
	return sd, nil
}

func fieldTag(prop string, required bool) string {
	if required {
		return fmt.Sprintf(`json:"%s" jsonschema:"required"`, prop)
	}
	return fmt.Sprintf(`json:"%s,omitempty"`, prop)
}

// goType 将 schema 映射为 Go 类型表达式
func (r *renderer) goType(s *structured.JSONSchema, required bool) (string, error) {
	if s == nil {
		return "any", nil
	}
	if ref, ok := refOf(s); ok {
		typeName, found := r.typeNames[ref]
		if !found {
			return "", fmt.Errorf("unresolved reference %q", ref)
		}
		if !required || s.Nullable {
			return "*" + typeName, nil
		}
		return typeName, nil
	}

	var base string
	switch s.Type {
	case structured.TypeString:
		base = "string"
		if s.Format == structured.FormatDateTime {
			r.usesTime = true
			base = "time.Time"
			if !required {
				return "*time.Time", nil
			}
		}
	case structured.TypeInteger:
		base = "int64"
	case structured.TypeNumber:
		base = "float64"
	case structured.TypeBoolean:
		base = "bool"
	case structured.TypeArray:
		elem, err := r.goType(s.Items, true)
		if err != nil {
			return "", err
		}
		return "[]" + elem, nil
	case structured.TypeObject:
		if s.AdditionalProperties != nil && s.AdditionalProperties.Schema != nil {
			elem, err := r.goType(s.AdditionalProperties.Schema, true)
			if err != nil {
				return "", err
			}
			return "map[string]" + elem, nil
		}
		return "map[string]any", nil
	default:
		return "any", nil
	}
	if s.Nullable {
		return "*" + base, nil
	}
	return base, nil
}

// refOf 识别 $ref 以及 {"allOf":[{"$ref":...}]} 包装
func refOf(s *structured.JSONSchema) (string, bool) {
	if name, ok := s.RefName(); ok {
		return name, true
	}
	if len(s.AllOf) == 1 {
		return s.AllOf[0].RefName()
	}
	return "", false
}

func docLines(desc string) []string {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return nil
	}
	lines := strings.Split(desc, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return lines
}
