package codegen

import (
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/schemaforge/structured"
)

func personModels() map[string]*structured.JSONSchema {
	person := structured.NewObjectSchema().WithTitle("Person").WithDescription("A person record.")
	person.AddProperty("name", structured.NewStringSchema().WithDescription("Full name"))
	person.AddProperty("age", structured.NewIntegerSchema())
	person.AddProperty("email", structured.NewStringSchema().WithFormat(structured.FormatEmail))
	person.AddProperty("born_at", structured.NewStringSchema().WithFormat(structured.FormatDateTime))
	person.AddProperty("address", structured.NewRefSchema("Address"))
	person.AddProperty("previous_addresses", structured.NewArraySchema(structured.NewRefSchema("Address")))
	person.AddProperty("tags", structured.NewArraySchema(structured.NewStringSchema()))
	person.AddProperty("scores", structured.NewObjectSchema())
	person.AddRequired("name", "age", "address")

	addr := structured.NewObjectSchema().WithTitle("Address")
	addr.AddProperty("city", structured.NewStringSchema())
	addr.AddProperty("zip_code", structured.NewStringSchema().WithNullable())
	addr.AddRequired("city", "zip_code")

	return map[string]*structured.JSONSchema{"Person": person, "Address": addr}
}

func parseStructs(t *testing.T, src string) map[string]*ast.StructType {
	t.Helper()
	f, err := parser.ParseFile(token.NewFileSet(), "models.go", src, parser.ParseComments)
	require.NoError(t, err)
	out := make(map[string]*ast.StructType)
	ast.Inspect(f, func(n ast.Node) bool {
		if ts, ok := n.(*ast.TypeSpec); ok {
			if st, ok := ts.Type.(*ast.StructType); ok {
				out[ts.Name.Name] = st
			}
		}
		return true
	})
	return out
}

func TestGenerate_PersonModels(t *testing.T) {
	src, err := Generate("people", "Person", personModels())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(src, "// Code generated by schemaforge. DO NOT EDIT."))
	assert.Contains(t, src, "package people")
	assert.Contains(t, src, `import "time"`)
	assert.Contains(t, src, "// A person record.\ntype Person struct")
	assert.Contains(t, src, "// Full name\n")
	assert.Contains(t, src, "`json:\"name\" jsonschema:\"required\"`")
	assert.Contains(t, src, "`json:\"email,omitempty\"`")

	// 主模型在前
	assert.Less(t, strings.Index(src, "type Person struct"), strings.Index(src, "type Address struct"))

	structs := parseStructs(t, src)
	require.Len(t, structs, 2)

	fieldTypes := func(st *ast.StructType) map[string]string {
		m := make(map[string]string)
		for _, f := range st.Fields.List {
			var sb strings.Builder
			require.NoError(t, format.Node(&sb, token.NewFileSet(), f.Type))
			m[f.Names[0].Name] = sb.String()
		}
		return m
	}
	person := fieldTypes(structs["Person"])
	assert.Equal(t, map[string]string{
		"Name":              "string",
		"Age":               "int64",
		"Email":             "string",
		"BornAt":            "*time.Time",
		"Address":           "Address",
		"PreviousAddresses": "[]Address",
		"Tags":              "[]string",
		"Scores":            "map[string]any",
	}, person)

	addr := fieldTypes(structs["Address"])
	assert.Equal(t, "*string", addr["ZipCode"])
}

func TestGenerate_IsFormatted(t *testing.T) {
	src, err := Generate("", "Person", personModels())
	require.NoError(t, err)
	assert.Contains(t, src, "package "+DefaultPackage)

	formatted, err := format.Source([]byte(src))
	require.NoError(t, err)
	assert.Equal(t, src, string(formatted))
}

func TestGenerate_OptionalRefIsPointer(t *testing.T) {
	order := structured.NewObjectSchema()
	order.AddProperty("customer", structured.NewRefSchema("Customer"))
	order.AddProperty("billing", &structured.JSONSchema{AllOf: []*structured.JSONSchema{structured.NewRefSchema("Customer")}})
	order.AddProperty("lines", &structured.JSONSchema{
		Type:                 structured.TypeObject,
		AdditionalProperties: &structured.AdditionalProperties{Allowed: true, Schema: structured.NewNumberSchema()},
	})
	order.AddRequired("billing")
	customer := structured.NewObjectSchema()
	customer.AddProperty("id", structured.NewStringSchema())
	customer.AddRequired("id")

	src, err := Generate("orders", "Order", map[string]*structured.JSONSchema{"Order": order, "Customer": customer})
	require.NoError(t, err)
	assert.Regexp(t, `Customer\s+\*Customer\s+`, src)
	assert.Regexp(t, `Billing\s+Customer\s+`, src)
	assert.Regexp(t, `Lines\s+map\[string\]float64\s+`, src)
	assert.Regexp(t, `ID\s+string\s+`, src)
	assert.NotContains(t, src, "import")
}

func TestGenerate_Errors(t *testing.T) {
	models := personModels()

	_, err := Generate("people", "Missing", models)
	assert.ErrorContains(t, err, "main model")

	_, err = Generate("not a package", "Person", models)
	assert.ErrorContains(t, err, "invalid package name")

	delete(models, "Address")
	_, err = Generate("people", "Person", models)
	assert.ErrorContains(t, err, `unresolved reference "Address"`)

	bad := structured.NewObjectSchema()
	bad.AddProperty("we`ird", structured.NewStringSchema())
	_, err = Generate("people", "Bad", map[string]*structured.JSONSchema{"Bad": bad})
	assert.ErrorContains(t, err, "struct tag")
}

func TestGenerate_RoundTripsThroughReflection(t *testing.T) {
	// 生成代码中的字段标签与反射生成器的 required 语义一致
	src, err := Generate("people", "Person", personModels())
	require.NoError(t, err)
	for _, required := range []string{"name", "age", "address"} {
		assert.Contains(t, src, `json:"`+required+`" jsonschema:"required"`)
	}
	for _, optional := range []string{"email", "born_at", "tags"} {
		assert.Contains(t, src, `json:"`+optional+`,omitempty"`)
	}
}

func TestExportedName(t *testing.T) {
	tests := map[string]string{
		"name":           "Name",
		"user_id":        "UserID",
		"firstName":      "FirstName",
		"HTTPServer":     "HTTPServer",
		"api-url":        "APIURL",
		"2fa_code":       "F2faCode",
		"":               "Field",
		"__":             "Field",
		"already_Camel":  "AlreadyCamel",
		"version2Update": "Version2Update",
	}
	for in, want := range tests {
		assert.Equal(t, want, ExportedName(in), "input %q", in)
	}
}

func TestGenerate_DuplicateFieldNames(t *testing.T) {
	s := structured.NewObjectSchema()
	s.AddProperty("user_id", structured.NewStringSchema())
	s.AddProperty("userId", structured.NewStringSchema())
	src, err := Generate("dup", "Dup", map[string]*structured.JSONSchema{"Dup": s})
	require.NoError(t, err)
	assert.Regexp(t, `UserID\s+string`, src)
	assert.Regexp(t, `UserID2\s+string`, src)
}
